package config

import (
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Store configuration for persisted bindings, anchor versions and the audit trail
type Store struct {
	Type StoreType `yaml:"type" default:"memory"`
	// Target data source name of the database (sqlite file, mysql or postgres DSN)
	Target             string   `yaml:"target"`
	ConnectionAttempts int      `yaml:"connectionAttempts" default:"3"`
	ConnectionCooldown Duration `yaml:"connectionCooldown" default:"1s"`
	// Redis settings, used with type redis
	RedisAddress   string `yaml:"redisAddress"`
	RedisPassword  string `yaml:"redisPassword"`
	RedisDatabase  int    `yaml:"redisDatabase" default:"0"`
	RedisKeyPrefix string `yaml:"redisKeyPrefix" default:"dnssec-oracle"`
}

// IsEnabled implements `config.Configurable`
func (c *Store) IsEnabled() bool {
	return c.Type != StoreTypeMemory
}

// LogConfig implements `config.Configurable`
func (c *Store) LogConfig(logger *logrus.Entry) {
	logger.Infof("type = %s", c.Type)

	switch c.Type {
	case StoreTypeRedis:
		logger.Infof("address = %s", c.RedisAddress)
		logger.Infof("database = %d", c.RedisDatabase)
		logger.Infof("keyPrefix = %s", c.RedisKeyPrefix)
	case StoreTypeMemory:
	default:
		logger.Info("target = ********")
	}

	logger.Infof("connectionAttempts = %d", c.ConnectionAttempts)
	logger.Infof("connectionCooldown = %s", c.ConnectionCooldown)
}

// ConnectionCooldownDuration returns the pause between connection attempts
func (c *Store) ConnectionCooldownDuration() time.Duration {
	return c.ConnectionCooldown.ToDuration()
}

func (c *Store) validate() error {
	var result *multierror.Error

	switch c.Type {
	case StoreTypeSqlite, StoreTypeMysql, StoreTypePostgres:
		if c.Target == "" {
			result = multierror.Append(result, errors.New("store: target must be set for database stores"))
		}
	case StoreTypeRedis:
		if c.RedisAddress == "" {
			result = multierror.Append(result, errors.New("store: redisAddress must be set for the redis store"))
		}
	case StoreTypeMemory:
	}

	if c.ConnectionAttempts < 1 {
		result = multierror.Append(result, errors.New("store: connectionAttempts must be positive"))
	}

	return result.ErrorOrNil()
}
