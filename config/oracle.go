package config

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"

	"github.com/mdtanrikulu/dnssec-oracle/dnssec"
)

// Binding maps an algorithm or digest id to a handler of the built-in catalog
type Binding struct {
	ID      uint8  `yaml:"id"`
	Handler string `yaml:"handler"`
}

// Oracle configuration of the verification service
type Oracle struct {
	// Owner may change registries and trust anchors
	Owner string `yaml:"owner" default:"admin"`
	// Token authenticates the owner on the HTTP API
	Token string `yaml:"token"`
	// TrustAnchors DS or DNSKEY records in zone file format, empty uses the IANA root anchors
	TrustAnchors []string `yaml:"trustAnchors"`
	// Algorithms and Digests extend or replace the default bindings
	Algorithms    []Binding `yaml:"algorithms"`
	Digests       []Binding `yaml:"digests"`
	MaxProofSteps int       `yaml:"maxProofSteps" default:"20"`
	// CacheSize max number of cached verification results, 0 disables the cache
	CacheSize int `yaml:"cacheSize" default:"1000"`
	// CacheTTL how long a verified proof is kept, hits are still checked against the signature validity
	CacheTTL Duration `yaml:"cacheTTL" default:"1h"`
}

// IsEnabled implements `config.Configurable`
func (c *Oracle) IsEnabled() bool {
	return true
}

// LogConfig implements `config.Configurable`
func (c *Oracle) LogConfig(logger *logrus.Entry) {
	logger.Infof("owner = %s", c.Owner)

	if c.Token == "" {
		logger.Info("token not set, API is read-only")
	} else {
		logger.Info("token = ********")
	}

	if len(c.TrustAnchors) == 0 {
		logger.Info("trustAnchors = IANA root")
	} else {
		logger.Info("trustAnchors:")

		for _, a := range c.TrustAnchors {
			logger.Infof("  - %s", a)
		}
	}

	for _, b := range c.AlgorithmBindings() {
		logger.Infof("algorithm %d = %s", b.ID, b.Handler)
	}

	for _, b := range c.DigestBindings() {
		logger.Infof("digest %d = %s", b.ID, b.Handler)
	}

	logger.Infof("maxProofSteps = %d", c.MaxProofSteps)
	logger.Infof("cacheSize = %d", c.CacheSize)
	logger.Infof("cacheTTL = %s", c.CacheTTL)
}

// AlgorithmBindings returns the default algorithm bindings overridden by the configured ones
func (c *Oracle) AlgorithmBindings() []Binding {
	return mergeBindings(dnssec.DefaultAlgorithmBindings(), c.Algorithms)
}

// DigestBindings returns the default digest bindings overridden by the configured ones
func (c *Oracle) DigestBindings() []Binding {
	return mergeBindings(dnssec.DefaultDigestBindings(), c.Digests)
}

func mergeBindings(defaults map[uint8]string, configured []Binding) []Binding {
	merged := make(map[uint8]string, len(defaults)+len(configured))

	for id, h := range defaults {
		merged[id] = h
	}

	for _, b := range configured {
		merged[b.ID] = b.Handler
	}

	res := make([]Binding, 0, len(merged))

	for id := 0; id <= 255; id++ {
		if h, ok := merged[uint8(id)]; ok {
			res = append(res, Binding{ID: uint8(id), Handler: h})
		}
	}

	return res
}

func (c *Oracle) validate() error {
	var result *multierror.Error

	if c.Owner == "" {
		result = multierror.Append(result, errors.New("oracle: owner must not be empty"))
	}

	if c.MaxProofSteps < 1 {
		result = multierror.Append(result, fmt.Errorf("oracle: maxProofSteps must be positive, got %d", c.MaxProofSteps))
	}

	if c.CacheSize < 0 {
		result = multierror.Append(result, fmt.Errorf("oracle: cacheSize must not be negative, got %d", c.CacheSize))
	}

	if _, err := dnssec.ParseTrustAnchors(c.TrustAnchors); err != nil {
		result = multierror.Append(result, fmt.Errorf("oracle: %w", err))
	}

	for _, b := range c.Algorithms {
		if _, ok := dnssec.AlgorithmByName(b.Handler); !ok {
			result = multierror.Append(result, fmt.Errorf("oracle: unknown algorithm handler '%s' for %s (%d), use one of %v",
				b.Handler, dns.AlgorithmToString[b.ID], b.ID, dnssec.AlgorithmNames()))
		}
	}

	for _, b := range c.Digests {
		if _, ok := dnssec.DigestByName(b.Handler); !ok {
			result = multierror.Append(result, fmt.Errorf("oracle: unknown digest handler '%s' for id %d, use one of %v",
				b.Handler, b.ID, dnssec.DigestNames()))
		}
	}

	return result.ErrorOrNil()
}
