// Package prover collects DNSSEC proof chains from recursive resolvers.
//
// For a queried set it follows the signers up to the root: each zone's self signed DNSKEY set and
// the DS set its parent signed. The result is ordered root first, ready for the verifier.
package prover

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/idna"

	"github.com/mdtanrikulu/dnssec-oracle/config"
	"github.com/mdtanrikulu/dnssec-oracle/dnssec"
	"github.com/mdtanrikulu/dnssec-oracle/log"
	"github.com/mdtanrikulu/dnssec-oracle/util"
)

const defaultMaxSteps = 20

// underscore labels such as _ens are common for TXT lookups
//
//nolint:gochecknoglobals
var nameProfile = idna.New(idna.MapForLookup(), idna.StrictDomainName(false), idna.Transitional(false))

var (
	// ErrNoRecords is returned if the queried set does not exist
	ErrNoRecords = errors.New("no records found")

	// ErrUnsigned is returned if a set in the chain comes without a usable signature
	ErrUnsigned = errors.New("records are not signed")
)

// SignedRRSet is a record set together with the signature proving it
type SignedRRSet struct {
	Sig *dns.RRSIG
	RRs []dns.RR
}

// Proof is a chain from the root DNSKEY set to the queried set
type Proof struct {
	Name string
	Type uint16

	// Sets and Steps are ordered root first, Steps[i] encodes Sets[i]
	Sets  []SignedRRSet
	Steps []dnssec.ProofStep
}

// Answer returns the queried set, the last set of the chain
func (p *Proof) Answer() SignedRRSet {
	return p.Sets[len(p.Sets)-1]
}

// Prover queries upstream resolvers for signed sets
type Prover struct {
	upstreams []*upstreamStatus
	attempts  uint
	maxSteps  int
	tlsConfig *tls.Config
}

// Option configures a Prover
type Option func(p *Prover)

// WithMaxSteps limits the length of collected proofs
func WithMaxSteps(n int) Option {
	return func(p *Prover) {
		if n > 0 {
			p.maxSteps = n
		}
	}
}

// WithTLSConfig sets the TLS client configuration for tcp-tls and https upstreams
func WithTLSConfig(cfg *tls.Config) Option {
	return func(p *Prover) {
		p.tlsConfig = cfg
	}
}

// New creates a prover using the configured upstreams
func New(cfg config.Prover, opts ...Option) (*Prover, error) {
	if len(cfg.Upstreams) == 0 {
		return nil, errors.New("no upstream configured")
	}

	p := &Prover{
		attempts: cfg.Attempts,
		maxSteps: defaultMaxSteps,
	}

	if p.attempts == 0 {
		p.attempts = 1
	}

	for _, opt := range opts {
		opt(p)
	}

	for _, u := range cfg.Upstreams {
		p.upstreams = append(p.upstreams, newUpstreamStatus(u, cfg.Timeout.ToDuration(), p.tlsConfig))
	}

	return p, nil
}

// QueryWithProof looks up the qType set of name and collects the chain of signed sets proving it
func (p *Prover) QueryWithProof(ctx context.Context, qType uint16, name string) (*Proof, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}

	ctx, logger := log.CtxWithFields(ctx, logrus.Fields{
		"prefix": "prover",
		"name":   log.Obfuscate(name),
		"type":   dns.TypeToString[qType],
	})

	answer, err := p.querySigned(ctx, name, qType, nil)
	if err != nil {
		return nil, err
	}

	sets := []SignedRRSet{answer}
	signer := answer.Sig.SignerName

	if qType == dns.TypeDNSKEY && strings.EqualFold(signer, name) {
		// zone keys are proven by the chain itself
		sets = sets[:0]
	}

	for {
		var dsTags map[uint16]bool

		var ds SignedRRSet

		if signer != "." {
			ds, err = p.querySigned(ctx, signer, dns.TypeDS, nil)
			if err != nil {
				return nil, err
			}

			dsTags = make(map[uint16]bool, len(ds.RRs))

			for _, rr := range ds.RRs {
				if v, ok := rr.(*dns.DS); ok {
					dsTags[v.KeyTag] = true
				}
			}
		}

		keys, err := p.querySigned(ctx, signer, dns.TypeDNSKEY, keySigningSig(dsTags))
		if err != nil {
			return nil, err
		}

		sets = append(sets, keys)

		if len(sets) > p.maxSteps {
			return nil, fmt.Errorf("proof of '%s' exceeds %d steps", name, p.maxSteps)
		}

		if signer == "." {
			break
		}

		parent := ds.Sig.SignerName
		if parent == signer || !dns.IsSubDomain(parent, signer) {
			return nil, fmt.Errorf("%w: DS of '%s' is signed by '%s'", ErrUnsigned, signer, parent)
		}

		sets = append(sets, ds)
		signer = parent
	}

	// root first
	for i, j := 0, len(sets)-1; i < j; i, j = i+1, j-1 {
		sets[i], sets[j] = sets[j], sets[i]
	}

	proof := &Proof{
		Name:  name,
		Type:  qType,
		Sets:  sets,
		Steps: make([]dnssec.ProofStep, len(sets)),
	}

	for i, s := range sets {
		proof.Steps[i], err = dnssec.NewProofStep(s.Sig, s.RRs)
		if err != nil {
			return nil, fmt.Errorf("can't encode proof step %d: %w", i, err)
		}
	}

	logger.WithField("steps", len(proof.Steps)).Debug("proof collected")

	return proof, nil
}

// sigFilter selects an acceptable signature among those covering a set
type sigFilter func(sig *dns.RRSIG, rrs []dns.RR) bool

// keySigningSig prefers a DNSKEY signature made by a key the parent delegates to.
// Without DS tags (the root) a secure entry point key is preferred.
func keySigningSig(dsTags map[uint16]bool) sigFilter {
	return func(sig *dns.RRSIG, rrs []dns.RR) bool {
		if dsTags != nil {
			return dsTags[sig.KeyTag]
		}

		for _, rr := range rrs {
			if k, ok := rr.(*dns.DNSKEY); ok && k.Flags&dns.SEP != 0 && k.KeyTag() == sig.KeyTag {
				return true
			}
		}

		return false
	}
}

// querySigned returns the qType set of name together with a signature covering it.
// If prefer rejects all signatures the first one is used.
func (p *Prover) querySigned(ctx context.Context, name string, qType uint16, prefer sigFilter) (SignedRRSet, error) {
	resp, err := p.exchange(ctx, util.NewMsgWithQuestion(name, dns.Type(qType)))
	if err != nil {
		return SignedRRSet{}, err
	}

	if resp.Rcode != dns.RcodeSuccess {
		return SignedRRSet{}, fmt.Errorf("%w: %s %s returned %s",
			ErrNoRecords, name, dns.TypeToString[qType], dns.RcodeToString[resp.Rcode])
	}

	var (
		res  SignedRRSet
		sigs []*dns.RRSIG
	)

	for _, rr := range resp.Answer {
		if !strings.EqualFold(rr.Header().Name, name) {
			continue
		}

		switch v := rr.(type) {
		case *dns.RRSIG:
			if v.TypeCovered == qType {
				sigs = append(sigs, v)
			}
		default:
			if rr.Header().Rrtype == qType {
				res.RRs = append(res.RRs, rr)
			}
		}
	}

	if len(res.RRs) == 0 {
		return SignedRRSet{}, fmt.Errorf("%w: %s %s", ErrNoRecords, name, dns.TypeToString[qType])
	}

	if len(sigs) == 0 {
		return SignedRRSet{}, fmt.Errorf("%w: %s %s", ErrUnsigned, name, dns.TypeToString[qType])
	}

	res.Sig = sigs[0]

	if prefer != nil {
		for _, sig := range sigs {
			if prefer(sig, res.RRs) {
				res.Sig = sig

				break
			}
		}
	}

	return res, nil
}

// exchange sends msg, retrying on another upstream after a failure
func (p *Prover) exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	var (
		resp *dns.Msg
		last *upstreamStatus
	)

	question := msg.Question[0]
	logger := log.FromCtx(ctx)

	err := retry.Do(
		func() error {
			upstream := pickUpstream(p.upstreams, last)
			last = upstream

			r, rtt, err := upstream.client.exchange(ctx, msg)
			if err != nil {
				upstream.markFailed()

				return err
			}

			logger.WithFields(logrus.Fields{
				"question":         log.Obfuscate(question.Name),
				"answer":           util.AnswerToString(r.Answer),
				"return_code":      dns.RcodeToString[r.Rcode],
				"upstream":         upstream,
				"response_time_ms": rtt.Milliseconds(),
			}).Debug("received response from upstream")

			resp = r

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(10*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.WithFields(logrus.Fields{
				"upstream": last,
				"attempt":  fmt.Sprintf("%d/%d", n+1, p.attempts),
			}).Warnf("upstream failed: %v", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("can't query %s %s: %w", log.Obfuscate(question.Name), dns.TypeToString[question.Qtype], err)
	}

	return resp, nil
}

// NormalizeName converts name to a lowercase fully qualified ASCII name
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." {
		return ".", nil
	}

	ascii, err := nameProfile.ToASCII(strings.TrimSuffix(name, "."))
	if err != nil {
		return "", fmt.Errorf("invalid name '%s': %w", log.EscapeInput(name), err)
	}

	return dns.Fqdn(strings.ToLower(ascii)), nil
}
