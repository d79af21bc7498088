package expirationcache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const (
	defaultCleanUpInterval = 10 * time.Second
	defaultSize            = 10_000
)

type element[T any] struct {
	val            *T
	expiresEpochMs int64
}

type ExpiringLRUCache[T any] struct {
	cleanUpInterval time.Duration
	onCacheHit      OnCacheHitCallback
	onCacheMiss     OnCacheMissCallback
	onAfterPut      OnAfterPutCallback
	lru             *lru.Cache
}

// OnCacheHitCallback will be called on cache get if entry was found
type OnCacheHitCallback func(key string)

// OnCacheMissCallback will be called on cache get if entry was not found or is expired
type OnCacheMissCallback func(key string)

// OnAfterPutCallback will be called after put or cleanup with the new element count
type OnAfterPutCallback func(newSize int)

type Options struct {
	OnCacheHitFn    OnCacheHitCallback
	OnCacheMissFn   OnCacheMissCallback
	OnAfterPutFn    OnAfterPutCallback
	CleanupInterval time.Duration
	MaxSize         uint
}

// NewCache creates a new cache. The cleanup goroutine stops when ctx is done.
func NewCache[T any](ctx context.Context, options Options) *ExpiringLRUCache[T] {
	size := defaultSize
	if options.MaxSize > 0 {
		size = int(options.MaxSize)
	}

	l, _ := lru.New(size)

	c := &ExpiringLRUCache[T]{
		cleanUpInterval: defaultCleanUpInterval,
		onCacheHit:      func(key string) {},
		onCacheMiss:     func(key string) {},
		onAfterPut:      func(newSize int) {},
		lru:             l,
	}

	if options.CleanupInterval > 0 {
		c.cleanUpInterval = options.CleanupInterval
	}

	if options.OnCacheHitFn != nil {
		c.onCacheHit = options.OnCacheHitFn
	}

	if options.OnCacheMissFn != nil {
		c.onCacheMiss = options.OnCacheMissFn
	}

	if options.OnAfterPutFn != nil {
		c.onAfterPut = options.OnAfterPutFn
	}

	go periodicCleanup(ctx, c)

	return c
}

func periodicCleanup[T any](ctx context.Context, c *ExpiringLRUCache[T]) {
	ticker := time.NewTicker(c.cleanUpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}

			c.cleanUp()
		case <-ctx.Done():
			return
		}
	}
}

func (e *ExpiringLRUCache[T]) cleanUp() {
	var expiredKeys []string

	for _, k := range e.lru.Keys() {
		if v, ok := e.lru.Peek(k); ok {
			if isExpired(v.(*element[T])) {
				expiredKeys = append(expiredKeys, k.(string))
			}
		}
	}

	if len(expiredKeys) == 0 {
		return
	}

	for _, key := range expiredKeys {
		e.lru.Remove(key)
	}

	e.onAfterPut(e.lru.Len())
}

func (e *ExpiringLRUCache[T]) Put(key string, val *T, ttl time.Duration) {
	if ttl <= 0 {
		// entry should be considered as already expired
		return
	}

	e.lru.Add(key, &element[T]{
		val:            val,
		expiresEpochMs: time.Now().UnixMilli() + ttl.Milliseconds(),
	})

	e.onAfterPut(e.lru.Len())
}

// Get returns the value and its remaining TTL. Expired entries not yet cleaned up are returned with TTL 0.
func (e *ExpiringLRUCache[T]) Get(key string) (val *T, ttl time.Duration) {
	el, found := e.lru.Get(key)
	if !found {
		e.onCacheMiss(key)

		return nil, 0
	}

	entry := el.(*element[T])
	ttl = calculateRemainTTL(entry.expiresEpochMs)

	if ttl > 0 {
		e.onCacheHit(key)
	} else {
		e.onCacheMiss(key)
	}

	return entry.val, ttl
}

func isExpired[T any](el *element[T]) bool {
	return el.expiresEpochMs > 0 && time.Now().UnixMilli() > el.expiresEpochMs
}

func calculateRemainTTL(expiresEpoch int64) time.Duration {
	if now := time.Now().UnixMilli(); now < expiresEpoch {
		return time.Duration(expiresEpoch-now) * time.Millisecond
	}

	return 0
}

func (e *ExpiringLRUCache[T]) TotalCount() (count int) {
	return e.lru.Len()
}

func (e *ExpiringLRUCache[T]) Clear() {
	e.lru.Purge()
	e.onAfterPut(0)
}
