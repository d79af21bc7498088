package dnssec

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/miekg/dns"
)

const (
	classINET = dns.ClassINET

	dnskeyProtocolValue = 3
	dnskeyFlagZone      = dns.ZONE
	dnskeyFlagRevoke    = dns.REVOKE

	// type covered, algorithm, labels, original TTL, expiration, inception, key tag
	rrsigFixedLen = 18
	// type, class, TTL, rdlength
	rrFixedLen = 10

	dnskeyFixedLen = 4
	dsFixedLen     = 4

	maxNameLen = 255
)

var errTruncated = errors.New("truncated data")

// readName walks the uncompressed wire name at off. It returns the offset after the name
// and the number of labels, not counting the root label.
func readName(b []byte, off int) (end, labels int, err error) {
	start := off

	for {
		if off >= len(b) {
			return 0, 0, errTruncated
		}

		l := int(b[off])
		if l == 0 {
			off++

			break
		}

		if l&0xC0 != 0 {
			return 0, 0, fmt.Errorf("compressed or extended label at offset %d", off)
		}

		off += l + 1
		labels++
	}

	if off-start > maxNameLen {
		return 0, 0, fmt.Errorf("name exceeds %d octets", maxNameLen)
	}

	return off, labels, nil
}

// decodeName converts a wire name to its presentation format
func decodeName(wire []byte) (string, error) {
	name, _, err := dns.UnpackDomainName(wire, 0)

	return name, err
}

// lowerName returns a copy of the wire name with ASCII letters lowercased.
// Length octets are below 64 and never affected.
func lowerName(wire []byte) []byte {
	res := make([]byte, len(wire))

	for i, c := range wire {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}

		res[i] = c
	}

	return res
}

func sameName(a, b string) bool {
	return dns.CanonicalName(a) == dns.CanonicalName(b)
}

// isWildcard returns true if the first label of the presentation name is '*'
func isWildcard(name string) bool {
	labels := dns.SplitDomainName(name)

	return len(labels) > 0 && labels[0] == "*"
}

// serialGTE compares two 32 bit timestamps in serial number arithmetic (RFC 1982)
func serialGTE(a, b uint32) bool {
	return int32(a-b) >= 0
}

type dnskeyData struct {
	Flags     uint16
	Protocol  uint8
	Algorithm uint8
	PublicKey []byte
}

// KeyTag computes the key tag (RFC 4034, Appendix B)
func (k dnskeyData) KeyTag() uint16 {
	key := dns.DNSKEY{
		Flags:     k.Flags,
		Protocol:  k.Protocol,
		Algorithm: k.Algorithm,
		PublicKey: base64.StdEncoding.EncodeToString(k.PublicKey),
	}

	return key.KeyTag()
}

func parseDNSKEY(rdata []byte) (dnskeyData, error) {
	if len(rdata) < dnskeyFixedLen {
		return dnskeyData{}, errTruncated
	}

	return dnskeyData{
		Flags:     binary.BigEndian.Uint16(rdata),
		Protocol:  rdata[2],
		Algorithm: rdata[3],
		PublicKey: rdata[dnskeyFixedLen:],
	}, nil
}

type dsData struct {
	KeyTag     uint16
	Algorithm  uint8
	DigestType uint8
	Digest     []byte
}

func parseDS(rdata []byte) (dsData, error) {
	if len(rdata) <= dsFixedLen {
		return dsData{}, errTruncated
	}

	return dsData{
		KeyTag:     binary.BigEndian.Uint16(rdata),
		Algorithm:  rdata[2],
		DigestType: rdata[3],
		Digest:     rdata[dsFixedLen:],
	}, nil
}
