package dnssec

import (
	"encoding/binary"
	"fmt"

	"github.com/miekg/dns"
)

// ProofStep is one signed RRSet of a proof chain.
// RRSet holds the RRSIG RDATA without the signature followed by the canonical records,
// which are exactly the signed bytes. Sig holds the signature.
type ProofStep struct {
	RRSet []byte
	Sig   []byte
}

// RR is a single resource record in canonical wire format
type RR struct {
	Name     string
	NameWire []byte
	Type     uint16
	Class    uint16
	TTL      uint32
	RData    []byte
	// Raw is the complete wire encoding of the record
	Raw []byte
}

// Decode parses the record with miekg/dns
func (r RR) Decode() (dns.RR, error) {
	rr, _, err := dns.UnpackRR(r.Raw, 0)

	return rr, err
}

// RRSet is a set of records sharing owner, class and type
type RRSet struct {
	Name    string
	Type    uint16
	Class   uint16
	TTL     uint32
	Records []RR
	// Data holds the canonical wire records as received
	Data []byte
}

// Decode parses all records with miekg/dns
func (s RRSet) Decode() ([]dns.RR, error) {
	res := make([]dns.RR, 0, len(s.Records))

	for _, r := range s.Records {
		rr, err := r.Decode()
		if err != nil {
			return nil, err
		}

		res = append(res, rr)
	}

	return res, nil
}

// SignedSet is the parsed form of ProofStep.RRSet
type SignedSet struct {
	TypeCovered    uint16
	Algorithm      uint8
	Labels         uint8
	OrigTTL        uint32
	Expiration     uint32
	Inception      uint32
	KeyTag         uint16
	SignerName     string
	SignerNameWire []byte
	RRs            []RR
	// Data holds the records following the RRSIG header
	Data []byte
	// Raw holds the complete signed bytes
	Raw []byte
}

// RRSet returns the signed records as set
func (s *SignedSet) RRSet() RRSet {
	res := RRSet{
		Type:    s.TypeCovered,
		TTL:     s.OrigTTL,
		Records: s.RRs,
		Data:    s.Data,
	}

	if len(s.RRs) > 0 {
		res.Name = s.RRs[0].Name
		res.Class = s.RRs[0].Class
	}

	return res
}

// ParseSignedSet parses the RRSIG header and the records of a proof step.
// The result does not share memory with in.
func ParseSignedSet(in []byte) (*SignedSet, error) {
	b := append([]byte(nil), in...)

	if len(b) < rrsigFixedLen {
		return nil, fmt.Errorf("signature header: %w", errTruncated)
	}

	nameEnd, _, err := readName(b, rrsigFixedLen)
	if err != nil {
		return nil, fmt.Errorf("signer name: %w", err)
	}

	signer, err := decodeName(b[rrsigFixedLen:nameEnd])
	if err != nil {
		return nil, fmt.Errorf("signer name: %w", err)
	}

	rrs, err := readRRs(b, nameEnd)
	if err != nil {
		return nil, err
	}

	return &SignedSet{
		TypeCovered:    binary.BigEndian.Uint16(b[0:]),
		Algorithm:      b[2],
		Labels:         b[3],
		OrigTTL:        binary.BigEndian.Uint32(b[4:]),
		Expiration:     binary.BigEndian.Uint32(b[8:]),
		Inception:      binary.BigEndian.Uint32(b[12:]),
		KeyTag:         binary.BigEndian.Uint16(b[16:]),
		SignerName:     signer,
		SignerNameWire: b[rrsigFixedLen:nameEnd],
		RRs:            rrs,
		Data:           b[nameEnd:],
		Raw:            b,
	}, nil
}

// ParseRRs parses a sequence of canonical wire records
func ParseRRs(b []byte) ([]RR, error) {
	return readRRs(b, 0)
}

func readRRs(b []byte, off int) ([]RR, error) {
	var res []RR

	for off < len(b) {
		rr, next, err := readRR(b, off)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(res), err)
		}

		res = append(res, rr)
		off = next
	}

	return res, nil
}

func readRR(b []byte, off int) (RR, int, error) {
	nameEnd, _, err := readName(b, off)
	if err != nil {
		return RR{}, 0, err
	}

	if len(b) < nameEnd+rrFixedLen {
		return RR{}, 0, errTruncated
	}

	name, err := decodeName(b[off:nameEnd])
	if err != nil {
		return RR{}, 0, err
	}

	rdlength := int(binary.BigEndian.Uint16(b[nameEnd+8:]))
	rdataStart := nameEnd + rrFixedLen
	end := rdataStart + rdlength

	if end > len(b) {
		return RR{}, 0, errTruncated
	}

	return RR{
		Name:     name,
		NameWire: b[off:nameEnd],
		Type:     binary.BigEndian.Uint16(b[nameEnd:]),
		Class:    binary.BigEndian.Uint16(b[nameEnd+2:]),
		TTL:      binary.BigEndian.Uint32(b[nameEnd+4:]),
		RData:    b[rdataStart:end],
		Raw:      b[off:end],
	}, end, nil
}
