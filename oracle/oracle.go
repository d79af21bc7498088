// Package oracle hosts the proof verifier together with its mutable state: the trust anchors and
// the algorithm and digest registries. Changes by the owner are persisted and audited.
package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"

	"github.com/mdtanrikulu/dnssec-oracle/cache/expirationcache"
	"github.com/mdtanrikulu/dnssec-oracle/config"
	"github.com/mdtanrikulu/dnssec-oracle/dnssec"
	"github.com/mdtanrikulu/dnssec-oracle/evt"
	"github.com/mdtanrikulu/dnssec-oracle/log"
	"github.com/mdtanrikulu/dnssec-oracle/store"
)

// OutcomeAccepted is published for successfully verified proofs
const OutcomeAccepted = "accepted"

// ErrUnknownHandler is returned if a handler name is not part of the built-in catalog
var ErrUnknownHandler = errors.New("unknown handler")

// Oracle verifies proofs against the current anchors and registries
type Oracle struct {
	owner      string
	store      store.Store
	anchors    *dnssec.TrustAnchorStore
	algorithms *dnssec.AlgorithmRegistry
	digests    *dnssec.DigestRegistry
	verifier   *dnssec.Verifier
	cache      expirationcache.ExpiringCache[dnssec.Result]
	cacheTTL   time.Duration
	logger     *logrus.Entry

	// changes by the owner hold the write lock, cache writes the read lock
	mu sync.RWMutex
	// bumped by every change of anchors or bindings
	generation atomic.Uint64
}

// New creates the oracle from the configuration and replays the persisted state of st
func New(ctx context.Context, cfg config.Oracle, st store.Store) (*Oracle, error) {
	logger := log.PrefixedLog("oracle")

	anchors, err := dnssec.NewTrustAnchorStore(cfg.Owner, cfg.TrustAnchors)
	if err != nil {
		return nil, err
	}

	o := &Oracle{
		owner:      cfg.Owner,
		store:      st,
		anchors:    anchors,
		algorithms: dnssec.NewAlgorithmRegistry(cfg.Owner),
		digests:    dnssec.NewDigestRegistry(cfg.Owner),
		cacheTTL:   cfg.CacheTTL.ToDuration(),
		logger:     logger,
	}

	for _, b := range cfg.AlgorithmBindings() {
		if err := o.bindAlgorithm(b.ID, b.Handler); err != nil {
			return nil, err
		}
	}

	for _, b := range cfg.DigestBindings() {
		if err := o.bindDigest(b.ID, b.Handler); err != nil {
			return nil, err
		}
	}

	if err := o.restore(ctx); err != nil {
		return nil, fmt.Errorf("can't restore persisted state: %w", err)
	}

	o.verifier = dnssec.NewVerifier(o.anchors, o.algorithms, o.digests, dnssec.WithMaxSteps(cfg.MaxProofSteps))

	if cfg.CacheSize > 0 {
		o.cache = expirationcache.NewCache[dnssec.Result](ctx, expirationcache.Options{
			MaxSize: uint(cfg.CacheSize),
			OnAfterPutFn: func(newSize int) {
				evt.Bus().Publish(evt.VerificationCacheChanged, newSize)
			},
		})
	}

	return o, nil
}

func (o *Oracle) restore(ctx context.Context) error {
	algorithms, err := o.store.Bindings(ctx, store.KindAlgorithm)
	if err != nil {
		return err
	}

	for _, b := range algorithms {
		if err := o.bindAlgorithm(b.ID, b.Handler); err != nil {
			return err
		}
	}

	digests, err := o.store.Bindings(ctx, store.KindDigest)
	if err != nil {
		return err
	}

	for _, b := range digests {
		if err := o.bindDigest(b.ID, b.Handler); err != nil {
			return err
		}
	}

	latest, err := o.store.LatestAnchors(ctx)
	if err != nil || latest == nil {
		return err
	}

	anchors, err := dnssec.ParseTrustAnchors(latest.Records)
	if err != nil {
		return err
	}

	if err := o.anchors.Restore(o.owner, anchors, latest.Version); err != nil {
		return err
	}

	o.logger.Infof("restored trust anchors version %d", latest.Version)

	return nil
}

func (o *Oracle) bindAlgorithm(id uint8, handler string) error {
	h, ok := dnssec.AlgorithmByName(handler)
	if !ok {
		return fmt.Errorf("%w '%s' for algorithm %d, use one of %v",
			ErrUnknownHandler, handler, id, dnssec.AlgorithmNames())
	}

	return o.algorithms.Register(o.owner, id, h)
}

func (o *Oracle) bindDigest(id uint8, handler string) error {
	h, ok := dnssec.DigestByName(handler)
	if !ok {
		return fmt.Errorf("%w '%s' for digest %d, use one of %v",
			ErrUnknownHandler, handler, id, dnssec.DigestNames())
	}

	return o.digests.Register(o.owner, id, h)
}

// Owner returns the identity allowed to change the oracle
func (o *Oracle) Owner() string {
	return o.owner
}

// Anchors returns the current trust anchor set
func (o *Oracle) Anchors() []dnssec.TrustAnchor {
	return o.anchors.Anchors()
}

// AnchorsVersion returns the version of the current trust anchor set
func (o *Oracle) AnchorsVersion() uint64 {
	return o.anchors.Version()
}

// AnchorsBytes returns the wire encoding of the current trust anchor set
func (o *Oracle) AnchorsBytes() []byte {
	return o.anchors.Bytes()
}

// Algorithm returns the handler name bound to the algorithm id
func (o *Oracle) Algorithm(id uint8) (string, bool) {
	if h, ok := o.algorithms.Lookup(id); ok {
		return h.Name(), true
	}

	return "", false
}

// Algorithms returns all algorithm bindings
func (o *Oracle) Algorithms() map[uint8]string {
	res := make(map[uint8]string)

	for _, id := range o.algorithms.IDs() {
		res[id], _ = o.Algorithm(id)
	}

	return res
}

// Digest returns the handler name bound to the digest id
func (o *Oracle) Digest(id uint8) (string, bool) {
	if h, ok := o.digests.Lookup(id); ok {
		return h.Name(), true
	}

	return "", false
}

// Digests returns all digest bindings
func (o *Oracle) Digests() map[uint8]string {
	res := make(map[uint8]string)

	for _, id := range o.digests.IDs() {
		res[id], _ = o.Digest(id)
	}

	return res
}

func (o *Oracle) authorize(caller, what string) error {
	if o.owner == "" || caller != o.owner {
		o.logger.Warnf("rejected change of %s by '%s'", what, log.EscapeInput(caller))

		return fmt.Errorf("%w: '%s' may not change %s", dnssec.ErrUnauthorized, caller, what)
	}

	return nil
}

// SetAlgorithm binds the built-in handler to the algorithm id
func (o *Oracle) SetAlgorithm(ctx context.Context, caller string, id uint8, handler string) error {
	return o.setBinding(ctx, caller, store.KindAlgorithm, id, handler)
}

// SetDigest binds the built-in handler to the digest id
func (o *Oracle) SetDigest(ctx context.Context, caller string, id uint8, handler string) error {
	return o.setBinding(ctx, caller, store.KindDigest, id, handler)
}

func (o *Oracle) setBinding(ctx context.Context, caller string, kind store.Kind, id uint8, handler string) error {
	if err := o.authorize(caller, kind.String()+" registry"); err != nil {
		return err
	}

	bind, action, known := o.bindAlgorithm, store.ActionSetAlgorithm, dnssec.AlgorithmNames()
	if kind == store.KindDigest {
		bind, action, known = o.bindDigest, store.ActionSetDigest, dnssec.DigestNames()
	}

	if !contains(known, handler) {
		return fmt.Errorf("%w '%s' for %s %d, use one of %v", ErrUnknownHandler, handler, kind, id, known)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()

	err := o.store.SaveBinding(ctx, store.Binding{Kind: kind, ID: id, Handler: handler, UpdatedAt: now})
	if err != nil {
		return fmt.Errorf("can't persist %s binding: %w", kind, err)
	}

	if err := bind(id, handler); err != nil {
		return err
	}

	o.audit(ctx, store.AuditEntry{
		Time:   now,
		Actor:  caller,
		Action: action,
		Target: fmt.Sprintf("%s %d", kind, id),
		Detail: handler,
	})

	o.invalidate()

	o.logger.Infof("%s %d bound to %s", kind, id, handler)

	evt.Bus().Publish(evt.RegistryUpdated, kind.String(), id, handler)

	return nil
}

// RotateAnchors replaces the trust anchor set and returns its new version
func (o *Oracle) RotateAnchors(ctx context.Context, caller string, records []string) (uint64, error) {
	if err := o.authorize(caller, "trust anchors"); err != nil {
		return 0, err
	}

	if len(records) == 0 {
		return 0, errors.New("anchor set must not be empty")
	}

	anchors, err := dnssec.ParseTrustAnchors(records)
	if err != nil {
		return 0, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	version := o.anchors.Version() + 1

	normalized := make([]string, len(anchors))
	tags := make([]string, len(anchors))

	for i, a := range anchors {
		normalized[i] = a.Record.String()
		tags[i] = fmt.Sprint(a.KeyTag())
	}

	err = o.store.SaveAnchors(ctx, store.AnchorSet{Version: version, Records: normalized, CreatedAt: now})
	if err != nil {
		return 0, fmt.Errorf("can't persist trust anchors: %w", err)
	}

	if err := o.anchors.Restore(caller, anchors, version); err != nil {
		return 0, err
	}

	o.audit(ctx, store.AuditEntry{
		Time:   now,
		Actor:  caller,
		Action: store.ActionRotateAnchors,
		Target: fmt.Sprintf("anchors version %d", version),
		Detail: "key tags " + strings.Join(tags, ", "),
	})

	o.invalidate()

	o.logger.Infof("trust anchors rotated to version %d with %d anchor(s)", version, len(anchors))

	evt.Bus().Publish(evt.TrustAnchorsRotated, version, len(anchors))

	return version, nil
}

// AuditTrail returns up to limit of the most recent changes, newest first
func (o *Oracle) AuditTrail(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	return o.store.AuditTrail(ctx, limit)
}

// audit failures do not revert the change
func (o *Oracle) audit(ctx context.Context, entry store.AuditEntry) {
	if err := o.store.Audit(ctx, entry); err != nil {
		o.logger.Errorf("can't write audit entry for %s: %v", entry.Action, err)
	}
}

// invalidate must be called with the write lock held
func (o *Oracle) invalidate() {
	o.generation.Add(1)

	if o.cache != nil {
		o.cache.Clear()
	}
}

// storeResult caches res unless anchors or bindings changed since generation was read
func (o *Oracle) storeResult(key string, res *dnssec.Result, generation uint64) {
	if o.cache == nil {
		return
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.generation.Load() != generation {
		return
	}

	o.cache.Put(key, res.Clone(), o.cacheTTL)
}

// VerifyRRSet verifies the proof at time now and returns the records of its last step
func (o *Oracle) VerifyRRSet(ctx context.Context, proof []dnssec.ProofStep, now uint32) (*dnssec.Result, error) {
	logger := log.FromCtx(ctx)
	start := time.Now()

	key := cacheKey(proof)

	if res := o.cached(key, now); res != nil {
		logger.Debugf("verification result for %s taken from cache", log.Obfuscate(res.RRSet.Name))
		evt.Bus().Publish(evt.VerificationCompleted, OutcomeAccepted, time.Since(start))

		return res, nil
	}

	generation := o.generation.Load()

	res, err := o.verifier.VerifyRRSet(proof, now)

	evt.Bus().Publish(evt.VerificationCompleted, Outcome(err), time.Since(start))

	if err != nil {
		logger.Debugf("proof with %d step(s) rejected: %v", len(proof), err)

		return nil, err
	}

	logger.Debugf("verified %s %s", log.Obfuscate(res.RRSet.Name), dns.TypeToString[res.RRSet.Type])

	o.storeResult(key, res, generation)

	return res, nil
}

func (o *Oracle) cached(key string, now uint32) *dnssec.Result {
	if o.cache == nil {
		return nil
	}

	res, ttl := o.cache.Get(key)
	if res == nil || ttl <= 0 || !res.ValidAt(now) {
		evt.Bus().Publish(evt.VerificationCacheMiss, key)

		return nil
	}

	evt.Bus().Publish(evt.VerificationCacheHit, key)

	return res.Clone()
}

// Outcome returns the metric label of a verification result
func Outcome(err error) string {
	if err == nil {
		return OutcomeAccepted
	}

	var vErr *dnssec.Error
	if errors.As(err, &vErr) {
		return vErr.Kind.String()
	}

	return "error"
}

// cacheKey identifies a proof by the hash of its length prefixed steps
func cacheKey(proof []dnssec.ProofStep) string {
	h := sha256.New()

	var l [4]byte

	for _, step := range proof {
		for _, b := range [][]byte{step.RRSet, step.Sig} {
			binary.BigEndian.PutUint32(l[:], uint32(len(b)))
			h.Write(l[:])
			h.Write(b)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func contains(names []string, name string) bool {
	i := sort.SearchStrings(names, name)

	return i < len(names) && names[i] == name
}
