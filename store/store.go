package store

//go:generate go run github.com/abice/go-enum -f=$GOFILE --marshal --names

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"

	"github.com/mdtanrikulu/dnssec-oracle/config"
	"github.com/mdtanrikulu/dnssec-oracle/log"
)

// Kind of registry a binding belongs to ENUM(
// algorithm
// digest
// )
type Kind uint8

// Action recorded in the audit trail ENUM(
// setAlgorithm
// setDigest
// rotateAnchors
// )
type Action uint8

// Binding is a persisted registry entry
type Binding struct {
	Kind      Kind      `json:"kind"`
	ID        uint8     `json:"id"`
	Handler   string    `json:"handler"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AnchorSet is a persisted trust anchor version
type AnchorSet struct {
	Version   uint64    `json:"version"`
	Records   []string  `json:"records"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditEntry records an administrative change
type AuditEntry struct {
	Time   time.Time `json:"time"`
	Actor  string    `json:"actor"`
	Action Action    `json:"action"`
	Target string    `json:"target"`
	Detail string    `json:"detail"`
}

// Store persists the mutable state of the oracle
type Store interface {
	// SaveBinding creates or replaces the binding of kind and id
	SaveBinding(ctx context.Context, b Binding) error

	// Bindings returns all bindings of kind ordered by id
	Bindings(ctx context.Context, kind Kind) ([]Binding, error)

	// SaveAnchors persists a new anchor set version
	SaveAnchors(ctx context.Context, set AnchorSet) error

	// LatestAnchors returns the anchor set with the highest version or nil if none was saved
	LatestAnchors(ctx context.Context) (*AnchorSet, error)

	// Audit appends an entry to the audit trail
	Audit(ctx context.Context, entry AuditEntry) error

	// AuditTrail returns up to limit entries, newest first. A limit <= 0 returns all entries.
	AuditTrail(ctx context.Context, limit int) ([]AuditEntry, error)

	Close() error
}

// New creates the store selected by the configuration
func New(ctx context.Context, cfg config.Store) (Store, error) {
	logger := log.PrefixedLog("store")

	switch cfg.Type {
	case config.StoreTypeMemory:
		return NewMemoryStore(), nil
	case config.StoreTypeSqlite:
		return NewDatabaseStore(ctx, sqlite.Open(cfg.Target), cfg)
	case config.StoreTypeMysql:
		return NewDatabaseStore(ctx, mysql.Open(cfg.Target), cfg)
	case config.StoreTypePostgres:
		return NewDatabaseStore(ctx, postgres.Open(cfg.Target), cfg)
	case config.StoreTypeRedis:
		return NewRedisStore(ctx, cfg)
	}

	logger.Errorf("unsupported store type %s", cfg.Type)

	return nil, fmt.Errorf("unsupported store type %s", cfg.Type)
}

// connect retries fn as configured in cfg
func connect(ctx context.Context, cfg config.Store, fn func() error) error {
	logger := log.PrefixedLog("store")

	attempts := cfg.ConnectionAttempts
	if attempts < 1 {
		attempts = 1
	}

	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(cfg.ConnectionCooldownDuration()),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.WithField("attempt", fmt.Sprintf("%d/%d", n+1, attempts)).
				Warnf("can't connect to %s store: %v", cfg.Type, err)
		}))
}

func limitEntries[T any](entries []T, limit int) []T {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}

	return entries
}
