package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/mdtanrikulu/dnssec-oracle/config"
	"github.com/mdtanrikulu/dnssec-oracle/log"
)

// RedisStore keeps bindings in hashes, the audit trail in a list and the latest anchor set in a string key
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the configured redis server
func NewRedisStore(ctx context.Context, cfg config.Store) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDatabase,
	})

	err := connect(ctx, cfg, func() error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		_ = rdb.Close()

		return nil, fmt.Errorf("can't connect to redis: %w", err)
	}

	log.PrefixedLog("store").Infof("using redis at %s", cfg.RedisAddress)

	return &RedisStore{client: rdb, prefix: cfg.RedisKeyPrefix}, nil
}

func (r *RedisStore) key(parts ...string) string {
	k := r.prefix

	for _, p := range parts {
		k += ":" + p
	}

	return k
}

// SaveBinding implements `Store`
func (r *RedisStore) SaveBinding(ctx context.Context, b Binding) error {
	value, err := json.Marshal(b)
	if err != nil {
		return err
	}

	return r.client.HSet(ctx, r.key("bindings", b.Kind.String()), strconv.Itoa(int(b.ID)), value).Err()
}

// Bindings implements `Store`
func (r *RedisStore) Bindings(ctx context.Context, kind Kind) ([]Binding, error) {
	values, err := r.client.HGetAll(ctx, r.key("bindings", kind.String())).Result()
	if err != nil {
		return nil, err
	}

	res := make([]Binding, 0, len(values))

	for field, value := range values {
		var b Binding
		if err := json.Unmarshal([]byte(value), &b); err != nil {
			return nil, fmt.Errorf("invalid binding '%s': %w", field, err)
		}

		res = append(res, b)
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })

	return res, nil
}

// SaveAnchors implements `Store`. Older versions are not kept.
func (r *RedisStore) SaveAnchors(ctx context.Context, set AnchorSet) error {
	value, err := json.Marshal(set)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, r.key("anchors"), value, 0).Err()
}

// LatestAnchors implements `Store`
func (r *RedisStore) LatestAnchors(ctx context.Context) (*AnchorSet, error) {
	value, err := r.client.Get(ctx, r.key("anchors")).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	var set AnchorSet
	if err := json.Unmarshal(value, &set); err != nil {
		return nil, fmt.Errorf("invalid anchor set: %w", err)
	}

	return &set, nil
}

// Audit implements `Store`
func (r *RedisStore) Audit(ctx context.Context, entry AuditEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return r.client.LPush(ctx, r.key("audit"), value).Err()
}

// AuditTrail implements `Store`
func (r *RedisStore) AuditTrail(ctx context.Context, limit int) ([]AuditEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	values, err := r.client.LRange(ctx, r.key("audit"), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	res := make([]AuditEntry, len(values))

	for i, v := range values {
		if err := json.Unmarshal([]byte(v), &res[i]); err != nil {
			return nil, fmt.Errorf("invalid audit entry: %w", err)
		}
	}

	return res, nil
}

// Close implements `Store`
func (r *RedisStore) Close() error {
	return r.client.Close()
}
