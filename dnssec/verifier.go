// Package dnssec verifies DNSSEC proof chains.
//
// A proof is an ordered list of signed RRSets, root-most first. The first step is verified against
// the trust anchors, every following step against the records of the step before. The records of the
// last step are returned once every signature in the chain verified.
//
// Example usage:
//
//	anchors, err := dnssec.NewTrustAnchorStore(owner, nil) // Uses default root anchors
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	algorithms := dnssec.NewAlgorithmRegistry(owner)
//	rsa, _ := dnssec.AlgorithmByName("RSASHA256")
//	_ = algorithms.Register(owner, dns.RSASHA256, rsa)
//
//	digests := dnssec.NewDigestRegistry(owner)
//	sha256, _ := dnssec.DigestByName("SHA256")
//	_ = digests.Register(owner, dns.SHA256, sha256)
//
//	verifier := dnssec.NewVerifier(anchors, algorithms, digests)
//
//	result, err := verifier.VerifyRRSet(proof, dnssec.Timestamp(time.Now()))
//	if errors.Is(err, dnssec.ErrSignatureExpired) {
//		// fetch a fresh proof
//	}
package dnssec

import (
	"errors"
	"time"

	"github.com/mdtanrikulu/dnssec-oracle/log"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

const defaultMaxSteps = 20

// Result is the outcome of a successful verification
type Result struct {
	// RRSet contains the records of the last proof step
	RRSet RRSet
	// Inception and Expiration of the last step's signature
	Inception  uint32
	Expiration uint32
	// ValidFrom and ValidUntil bound the times for which every signature of the chain is valid
	ValidFrom  uint32
	ValidUntil uint32
}

// ValidAt reports whether every signature of the chain is valid at now
func (r *Result) ValidAt(now uint32) bool {
	return serialGTE(now, r.ValidFrom) && serialGTE(r.ValidUntil, now)
}

// Clone returns a deep copy of r
func (r *Result) Clone() *Result {
	res := *r
	res.RRSet.Data = cloneBytes(r.RRSet.Data)
	res.RRSet.Records = make([]RR, len(r.RRSet.Records))

	for i, rr := range r.RRSet.Records {
		rr.NameWire = cloneBytes(rr.NameWire)
		rr.RData = cloneBytes(rr.RData)
		rr.Raw = cloneBytes(rr.Raw)
		res.RRSet.Records[i] = rr
	}

	return &res
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	return append([]byte{}, b...)
}

// Timestamp converts t to DNSSEC signature time, truncated to whole seconds
func Timestamp(t time.Time) uint32 {
	return uint32(t.Unix())
}

// Verifier walks proof chains. It keeps no state between calls and may be used concurrently.
type Verifier struct {
	anchors    *TrustAnchorStore
	algorithms *AlgorithmRegistry
	digests    *DigestRegistry
	maxSteps   int
	logger     *logrus.Entry
}

// VerifierOption configures a Verifier
type VerifierOption func(v *Verifier)

// WithMaxSteps limits the number of steps of a proof
func WithMaxSteps(n int) VerifierOption {
	return func(v *Verifier) {
		if n > 0 {
			v.maxSteps = n
		}
	}
}

// WithLogger sets the logger used for tracing rejected steps
func WithLogger(logger *logrus.Entry) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// NewVerifier creates a verifier using the given anchors and registries
func NewVerifier(anchors *TrustAnchorStore, algorithms *AlgorithmRegistry, digests *DigestRegistry,
	opts ...VerifierOption,
) *Verifier {
	v := &Verifier{
		anchors:    anchors,
		algorithms: algorithms,
		digests:    digests,
		maxSteps:   defaultMaxSteps,
		logger:     log.PrefixedLog("dnssec"),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// VerifyRRSet verifies the proof at time now and returns the records of the last step
func (v *Verifier) VerifyRRSet(proof []ProofStep, now uint32) (*Result, error) {
	if len(proof) == 0 {
		return nil, invalidRRSet("empty proof")
	}

	if len(proof) > v.maxSteps {
		return nil, invalidRRSet("proof has %d steps, at most %d allowed", len(proof), v.maxSteps)
	}

	trusted := v.anchors.trusted()

	var (
		set    *SignedSet
		result Result
	)

	for i, step := range proof {
		var err error

		set, err = v.verifyStep(step, trusted, now)
		if err != nil {
			var vErr *Error
			if errors.As(err, &vErr) {
				vErr.Step = i
			}

			v.logger.Debugf("proof rejected: %v", err)

			return nil, err
		}

		v.logger.Tracef("step %d verified: %s %s signed by '%s'",
			i, log.Obfuscate(set.RRs[0].Name), typeString(set.TypeCovered), log.Obfuscate(set.SignerName))

		if i == 0 || serialGTE(set.Inception, result.ValidFrom) {
			result.ValidFrom = set.Inception
		}

		if i == 0 || serialGTE(result.ValidUntil, set.Expiration) {
			result.ValidUntil = set.Expiration
		}

		trusted = set.RRs
	}

	result.RRSet = set.RRSet()
	result.Inception = set.Inception
	result.Expiration = set.Expiration

	return &result, nil
}

// verifyStep checks one signed set against the records trusted so far
func (v *Verifier) verifyStep(step ProofStep, trusted []RR, now uint32) (*SignedSet, error) {
	set, err := ParseSignedSet(step.RRSet)
	if err != nil {
		return nil, invalidRRSet("%v", err)
	}

	if err := validateRRs(set); err != nil {
		return nil, err
	}

	if err := validateLabels(set); err != nil {
		return nil, err
	}

	if !serialGTE(set.Expiration, now) {
		e := newError(ErrorKindSignatureExpired)
		e.Time, e.Now = set.Expiration, now

		return nil, e
	}

	if !serialGTE(now, set.Inception) {
		e := newError(ErrorKindSignatureNotValidYet)
		e.Time, e.Now = set.Inception, now

		return nil, e
	}

	name := set.RRs[0].Name
	if !dns.IsSubDomain(set.SignerName, name) {
		e := newError(ErrorKindInvalidSignerName)
		e.Name, e.Signer = name, set.SignerName

		return nil, e
	}

	if _, ok := v.algorithms.Lookup(set.Algorithm); !ok {
		e := newError(ErrorKindUnknownAlgorithm)
		e.ID = set.Algorithm

		return nil, e
	}

	if len(trusted) == 0 {
		return nil, noMatchingProof(set)
	}

	switch trusted[0].Type {
	case dns.TypeDS:
		err = v.verifyWithDS(set, step.Sig, trusted)
	case dns.TypeDNSKEY:
		err = v.verifyWithKnownKey(set, step.Sig, trusted)
	default:
		e := newError(ErrorKindInvalidProofType)
		e.Type = trusted[0].Type
		err = e
	}

	if err != nil {
		return nil, err
	}

	return set, nil
}

// validateRRs checks that all records share owner, class IN and the covered type
func validateRRs(set *SignedSet) error {
	if len(set.RRs) == 0 {
		return invalidRRSet("no records")
	}

	name := set.RRs[0].Name

	for _, rr := range set.RRs {
		if rr.Class != classINET {
			e := newError(ErrorKindInvalidClass)
			e.Class = rr.Class

			return e
		}

		if !sameName(rr.Name, name) {
			return invalidRRSet("records with different owners '%s' and '%s'", name, rr.Name)
		}

		if rr.Type != set.TypeCovered {
			e := newError(ErrorKindSignatureTypeMismatch)
			e.Type, e.Covered = rr.Type, set.TypeCovered

			return e
		}
	}

	return nil
}

// validateLabels compares the RRSIG label count with the owner name (RFC 4035 section 5.3.1).
// A signed wildcard owner carries one label more than the signature declares.
func validateLabels(set *SignedSet) error {
	name := set.RRs[0].Name
	count := dns.CountLabel(name)

	if count == int(set.Labels) || (isWildcard(name) && count == int(set.Labels)+1) {
		return nil
	}

	e := newError(ErrorKindInvalidLabelCount)
	e.Name, e.Labels = name, set.Labels

	return e
}

// verifyWithKnownKey verifies a set signed by one of the trusted DNSKEYs
func (v *Verifier) verifyWithKnownKey(set *SignedSet, sig []byte, keys []RR) error {
	for _, rr := range keys {
		if !sameName(rr.Name, set.SignerName) {
			return proofNameMismatch(set.SignerName, rr.Name)
		}

		key, err := parseDNSKEY(rr.RData)
		if err != nil {
			continue
		}

		if v.verifySignatureWithKey(key, set, sig) {
			return nil
		}
	}

	return noMatchingProof(set)
}

// verifyWithDS verifies a DNSKEY set that is self signed by a key matching one of the trusted DS records
func (v *Verifier) verifyWithDS(set *SignedSet, sig []byte, dsRecords []RR) error {
	for _, rr := range set.RRs {
		if rr.Type != dns.TypeDNSKEY {
			e := newError(ErrorKindInvalidProofType)
			e.Type = rr.Type

			return e
		}
	}

	var unknownDigest *Error

	for _, rr := range set.RRs {
		key, err := parseDNSKEY(rr.RData)
		if err != nil {
			continue
		}

		if !v.verifySignatureWithKey(key, set, sig) {
			continue
		}

		ok, err := v.verifyKeyWithDS(set, key, rr.RData, dsRecords)
		if ok {
			return nil
		}

		var vErr *Error
		if errors.As(err, &vErr) {
			if vErr.Kind != ErrorKindUnknownDigest {
				return err
			}

			unknownDigest = vErr
		}
	}

	if unknownDigest != nil {
		return unknownDigest
	}

	return noMatchingProof(set)
}

// verifyKeyWithDS checks the digest of a DNSKEY against the trusted DS records.
// An unknown digest type is reported only if no other DS record matched.
func (v *Verifier) verifyKeyWithDS(set *SignedSet, key dnskeyData, keyRData []byte, dsRecords []RR) (bool, error) {
	tag := key.KeyTag()
	data := append(lowerName(set.SignerNameWire), keyRData...)

	var unknownDigest error

	for _, rr := range dsRecords {
		if !sameName(rr.Name, set.SignerName) {
			return false, proofNameMismatch(set.SignerName, rr.Name)
		}

		ds, err := parseDS(rr.RData)
		if err != nil {
			continue
		}

		if ds.KeyTag != tag || ds.Algorithm != key.Algorithm {
			continue
		}

		ok, err := v.digests.Verify(ds.DigestType, data, ds.Digest)
		if err != nil {
			unknownDigest = err

			continue
		}

		if ok {
			return true, nil
		}
	}

	return false, unknownDigest
}

// verifySignatureWithKey checks that key is a usable zone key for the signature and that it verifies
func (v *Verifier) verifySignatureWithKey(key dnskeyData, set *SignedSet, sig []byte) bool {
	if key.Protocol != dnskeyProtocolValue || key.Algorithm != set.Algorithm {
		return false
	}

	if key.Flags&dnskeyFlagZone == 0 || key.Flags&dnskeyFlagRevoke != 0 {
		return false
	}

	if key.KeyTag() != set.KeyTag {
		return false
	}

	ok, err := v.algorithms.Verify(set.Algorithm, key.PublicKey, set.Raw, sig)

	return err == nil && ok
}

func noMatchingProof(set *SignedSet) *Error {
	e := newError(ErrorKindNoMatchingProof)
	e.Signer = set.SignerName

	return e
}

func proofNameMismatch(expected, actual string) *Error {
	e := newError(ErrorKindProofNameMismatch)
	e.Expected, e.Name = expected, actual

	return e
}
