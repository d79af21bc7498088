package config

import (
	"errors"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Prover configuration of the DNS proof collector
type Prover struct {
	Upstreams []Upstream `yaml:"upstreams" default:"[\"udp:1.1.1.1\",\"udp:8.8.8.8\"]"`
	Attempts  uint       `yaml:"attempts" default:"3"`
	Timeout   Duration   `yaml:"timeout" default:"2s"`
}

// IsEnabled implements `config.Configurable`
func (c *Prover) IsEnabled() bool {
	return len(c.Upstreams) > 0
}

// LogConfig implements `config.Configurable`
func (c *Prover) LogConfig(logger *logrus.Entry) {
	logger.Info("upstreams:")

	for _, u := range c.Upstreams {
		logger.Infof("  - %s", u)
	}

	logger.Infof("attempts = %d", c.Attempts)
	logger.Infof("timeout = %s", c.Timeout)
}

func (c *Prover) validate() error {
	var result *multierror.Error

	if c.Attempts < 1 {
		result = multierror.Append(result, errors.New("prover: attempts must be positive"))
	}

	if !c.Timeout.IsAboveZero() {
		result = multierror.Append(result, errors.New("prover: timeout must be above zero"))
	}

	return result.ErrorOrNil()
}
