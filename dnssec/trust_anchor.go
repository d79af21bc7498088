package dnssec

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/miekg/dns"
)

const (
	// Root KSK key tags from IANA
	ksk2017Tag = 20326 // KSK-2017
	ksk2024Tag = 38696 // KSK-2024
)

// DefaultRootTrustAnchors returns the DS records of the IANA root KSKs
// Source: https://data.iana.org/root-anchors/root-anchors.xml
func DefaultRootTrustAnchors() []string {
	return []string{
		fmt.Sprintf(". 86400 IN DS %d 8 2 E06D44B80B8F1D39A95C0B0D7C65D08458E880409BBC683457104237C7F8EC8D", ksk2017Tag),
		fmt.Sprintf(". 86400 IN DS %d 8 2 683D2D0ACB8C9B712A1948B27F741219298D0A450D612C483AF444A4C0FB2B16", ksk2024Tag),
	}
}

// TrustAnchor is a pre-trusted DS or DNSKEY record
type TrustAnchor struct {
	Record dns.RR
	wire   RR
}

// KeyTag returns the key tag of the anchor
func (a TrustAnchor) KeyTag() uint16 {
	switch rr := a.Record.(type) {
	case *dns.DS:
		return rr.KeyTag
	case *dns.DNSKEY:
		return rr.KeyTag()
	}

	return 0
}

// Wire returns the canonical wire encoding of the anchor
func (a TrustAnchor) Wire() []byte {
	return append([]byte(nil), a.wire.Raw...)
}

// NewTrustAnchor creates an anchor from a DS or DNSKEY record in zone file format.
// DNSKEY anchors must be KSKs (SEP flag set).
func NewTrustAnchor(record string) (TrustAnchor, error) {
	rr, err := dns.NewRR(record)
	if err != nil {
		return TrustAnchor{}, fmt.Errorf("failed to parse trust anchor: %w", err)
	}

	if rr == nil {
		return TrustAnchor{}, errors.New("empty trust anchor")
	}

	switch v := rr.(type) {
	case *dns.DS:
	case *dns.DNSKEY:
		if v.Flags&dns.SEP == 0 {
			return TrustAnchor{}, errors.New("trust anchor is not a KSK (SEP flag not set)")
		}
	default:
		return TrustAnchor{}, fmt.Errorf("trust anchor is a %s record, expected DS or DNSKEY", typeString(rr.Header().Rrtype))
	}

	b, err := EncodeRR(canonicalCopy(rr, nil))
	if err != nil {
		return TrustAnchor{}, err
	}

	wire, _, err := readRR(b, 0)
	if err != nil {
		return TrustAnchor{}, err
	}

	return TrustAnchor{Record: rr, wire: wire}, nil
}

// ParseTrustAnchors parses an anchor set. All anchors must be of the same type.
func ParseTrustAnchors(records []string) ([]TrustAnchor, error) {
	res := make([]TrustAnchor, 0, len(records))

	for _, r := range records {
		a, err := NewTrustAnchor(r)
		if err != nil {
			return nil, err
		}

		if len(res) > 0 && res[0].wire.Type != a.wire.Type {
			return nil, errors.New("trust anchors must either all be DS or all be DNSKEY records")
		}

		res = append(res, a)
	}

	return res, nil
}

// TrustAnchorStore holds the versioned anchor set seeding every verification
type TrustAnchorStore struct {
	owner string

	mu      sync.RWMutex
	anchors []TrustAnchor
	version uint64
}

// NewTrustAnchorStore creates a store with the given anchors in zone file format.
// If records is empty, the IANA root anchors are used.
func NewTrustAnchorStore(owner string, records []string) (*TrustAnchorStore, error) {
	if len(records) == 0 {
		records = DefaultRootTrustAnchors()
	}

	anchors, err := ParseTrustAnchors(records)
	if err != nil {
		return nil, fmt.Errorf("failed to load trust anchor: %w", err)
	}

	return &TrustAnchorStore{
		owner:   owner,
		anchors: anchors,
		version: 1,
	}, nil
}

// Anchors returns the current anchor set in store order
func (s *TrustAnchorStore) Anchors() []TrustAnchor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]TrustAnchor(nil), s.anchors...)
}

// Version returns the version of the current anchor set
func (s *TrustAnchorStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.version
}

// Bytes returns the concatenated wire encoding of the anchor set
func (s *TrustAnchorStore) Bytes() []byte {
	var buf bytes.Buffer

	for _, a := range s.Anchors() {
		buf.Write(a.wire.Raw)
	}

	return buf.Bytes()
}

// Rotate replaces the anchor set and increments the version
func (s *TrustAnchorStore) Rotate(caller string, anchors []TrustAnchor) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.replace(caller, anchors, s.version+1)
}

// Restore replaces the anchor set with a persisted version
func (s *TrustAnchorStore) Restore(caller string, anchors []TrustAnchor, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.replace(caller, anchors, version)

	return err
}

func (s *TrustAnchorStore) replace(caller string, anchors []TrustAnchor, version uint64) (uint64, error) {
	if s.owner == "" || caller != s.owner {
		return 0, fmt.Errorf("%w: '%s' may not change trust anchors", ErrUnauthorized, caller)
	}

	if len(anchors) == 0 {
		return 0, errors.New("anchor set must not be empty")
	}

	for _, a := range anchors[1:] {
		if a.wire.Type != anchors[0].wire.Type {
			return 0, errors.New("trust anchors must either all be DS or all be DNSKEY records")
		}
	}

	s.anchors = append([]TrustAnchor(nil), anchors...)
	s.version = version

	return version, nil
}

func (s *TrustAnchorStore) trusted() []RR {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]RR, len(s.anchors))
	for i, a := range s.anchors {
		res[i] = a.wire
	}

	return res
}
