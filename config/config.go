package config

//go:generate go run github.com/abice/go-enum -f=$GOFILE --marshal --names

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf"
	"github.com/sirupsen/logrus"

	"github.com/mdtanrikulu/dnssec-oracle/log"
)

// NetProtocol transport of an upstream resolver ENUM(
// udp // plain DNS, retried over tcp if the answer is truncated
// tcp
// tcp-tls // DNS over TLS
// https // DNS over HTTPS
// )
type NetProtocol uint8

// StoreType selects the persistence backend ENUM(
// memory // state is lost on restart
// sqlite
// mysql
// postgres
// redis
// )
type StoreType uint8

// Configurable is implemented by all config sections
type Configurable interface {
	// IsEnabled returns true when the component using this config is enabled.
	IsEnabled() bool

	// LogConfig logs the config values.
	LogConfig(*logrus.Entry)
}

// Config main configuration
type Config struct {
	Log        log.Config `yaml:"log"`
	Oracle     Oracle     `yaml:"oracle"`
	Store      Store      `yaml:"store"`
	Prover     Prover     `yaml:"prover"`
	Ports      Ports      `yaml:"ports"`
	Prometheus Metrics    `yaml:"prometheus"`
}

// Ports listen addresses of the HTTP API
type Ports struct {
	HTTP     string `yaml:"http" default:"4000"`
	HTTPS    string `yaml:"https"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
}

// IsEnabled implements `config.Configurable`
func (c *Ports) IsEnabled() bool {
	return c.HTTP != "" || c.HTTPS != ""
}

// LogConfig implements `config.Configurable`
func (c *Ports) LogConfig(logger *logrus.Entry) {
	logger.Infof("http: %q", c.HTTP)
	logger.Infof("https: %q", c.HTTPS)

	if c.HTTPS != "" && c.CertFile == "" {
		logger.Info("using self-signed certificate")
	}
}

// HTTPAddress returns the listen address of the HTTP port
func (c *Ports) HTTPAddress() string {
	return listenAddress(c.HTTP)
}

// HTTPSAddress returns the listen address of the HTTPS port
func (c *Ports) HTTPSAddress() string {
	return listenAddress(c.HTTPS)
}

// a bare port listens on all interfaces
func listenAddress(port string) string {
	if port == "" || strings.Contains(port, ":") {
		return port
	}

	return ":" + port
}

// Metrics contains the config values for prometheus
type Metrics struct {
	Enable bool   `yaml:"enable" default:"false"`
	Path   string `yaml:"path" default:"/metrics"`
}

// IsEnabled implements `config.Configurable`
func (c *Metrics) IsEnabled() bool {
	return c.Enable
}

// LogConfig implements `config.Configurable`
func (c *Metrics) LogConfig(logger *logrus.Entry) {
	logger.Infof("url path: %s", c.Path)
}

// NewDefaultConfig returns a configuration with all default values applied
func NewDefaultConfig() (*Config, error) {
	cfg := Config{}

	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("can't apply default values: %w", err)
	}

	return &cfg, nil
}

// LoadConfig creates new config from YAML file or a directory containing YAML files.
// Values are overridden by ORACLE_ prefixed environment variables.
// If mandatory is false, a missing path results in the default configuration.
func LoadConfig(path string, mandatory bool) (*Config, error) {
	cfg, err := NewDefaultConfig()
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path != "" {
		fs, err := os.Stat(path)

		switch {
		case errors.Is(err, os.ErrNotExist) && !mandatory:
			log.Log().Infof("config file '%s' not found, using defaults", path)
		case err != nil:
			return nil, fmt.Errorf("can't read config file(s): %w", err)
		case fs.IsDir():
			err = loadDir(path, k)
		default:
			err = loadFile(k, path)
		}

		if err != nil {
			return nil, fmt.Errorf("can't read config file(s): %w", err)
		}
	}

	if err := loadEnvironment(k); err != nil {
		return nil, fmt.Errorf("can't read environment: %w", err)
	}

	if err := unmarshalKoanf(k, cfg); err != nil {
		return nil, fmt.Errorf("wrong file structure: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks all sections and reports every problem at once
func (c *Config) Validate() error {
	var result *multierror.Error

	if err := c.Oracle.validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := c.Store.validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := c.Prover.validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if (c.Ports.CertFile == "") != (c.Ports.KeyFile == "") {
		result = multierror.Append(result, errors.New("ports: certFile and keyFile must be set together"))
	}

	if !c.Ports.IsEnabled() {
		result = multierror.Append(result, errors.New("ports: at least one of http or https must be set"))
	}

	return result.ErrorOrNil()
}

// LogConfig logs all enabled sections
func (c *Config) LogConfig(logger *logrus.Entry) {
	sections := []struct {
		name string
		cfg  Configurable
	}{
		{"oracle", &c.Oracle},
		{"store", &c.Store},
		{"prover", &c.Prover},
		{"ports", &c.Ports},
		{"prometheus", &c.Prometheus},
	}

	for _, s := range sections {
		if !s.cfg.IsEnabled() {
			logger.Infof("%s: disabled", s.name)

			continue
		}

		logger.Infof("%s:", s.name)
		s.cfg.LogConfig(logger.WithField("section", s.name))
	}
}
