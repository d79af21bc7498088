package dnssec

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/miekg/dns"
)

// NewProofStep encodes a signature and the records it covers into a proof step.
// The records are brought into canonical form (RFC 4034 section 6) the same way the signer did.
func NewProofStep(sig *dns.RRSIG, rrs []dns.RR) (ProofStep, error) {
	if sig == nil || len(rrs) == 0 {
		return ProofStep{}, errors.New("signature and at least one record required")
	}

	header, err := encodeSignatureHeader(sig)
	if err != nil {
		return ProofStep{}, err
	}

	data, err := CanonicalRRSet(sig, rrs)
	if err != nil {
		return ProofStep{}, err
	}

	rawSig, err := base64.StdEncoding.DecodeString(sig.Signature)
	if err != nil {
		return ProofStep{}, fmt.Errorf("can't decode signature: %w", err)
	}

	return ProofStep{
		RRSet: append(header, data...),
		Sig:   rawSig,
	}, nil
}

// CanonicalRRSet returns the canonical wire form of rrs as covered by sig
func CanonicalRRSet(sig *dns.RRSIG, rrs []dns.RR) ([]byte, error) {
	wires := make([]RR, 0, len(rrs))

	for _, rr := range rrs {
		b, err := EncodeRR(canonicalCopy(rr, sig))
		if err != nil {
			return nil, err
		}

		parsed, _, err := readRR(b, 0)
		if err != nil {
			return nil, err
		}

		wires = append(wires, parsed)
	}

	sort.SliceStable(wires, func(i, j int) bool {
		return bytes.Compare(wires[i].RData, wires[j].RData) < 0
	})

	var buf bytes.Buffer

	for i, w := range wires {
		if i > 0 && bytes.Equal(w.RData, wires[i-1].RData) {
			continue
		}

		buf.Write(w.Raw)
	}

	return buf.Bytes(), nil
}

// EncodeRR packs a single record without name compression
func EncodeRR(rr dns.RR) ([]byte, error) {
	buf := make([]byte, dns.Len(rr)+1)

	off, err := dns.PackRR(rr, buf, 0, nil, false)
	if err != nil {
		return nil, fmt.Errorf("can't pack %s record: %w", typeString(rr.Header().Rrtype), err)
	}

	return buf[:off], nil
}

func encodeSignatureHeader(sig *dns.RRSIG) ([]byte, error) {
	buf := make([]byte, rrsigFixedLen+maxNameLen+1)

	binary.BigEndian.PutUint16(buf[0:], sig.TypeCovered)
	buf[2] = sig.Algorithm
	buf[3] = sig.Labels
	binary.BigEndian.PutUint32(buf[4:], sig.OrigTtl)
	binary.BigEndian.PutUint32(buf[8:], sig.Expiration)
	binary.BigEndian.PutUint32(buf[12:], sig.Inception)
	binary.BigEndian.PutUint16(buf[16:], sig.KeyTag)

	off, err := dns.PackDomainName(dns.CanonicalName(sig.SignerName), buf, rrsigFixedLen, nil, false)
	if err != nil {
		return nil, fmt.Errorf("can't pack signer name: %w", err)
	}

	return buf[:off], nil
}

func canonicalCopy(rr dns.RR, sig *dns.RRSIG) dns.RR {
	c := dns.Copy(rr)
	h := c.Header()
	h.Name = dns.CanonicalName(h.Name)

	if sig != nil {
		h.Ttl = sig.OrigTtl

		labels := dns.SplitDomainName(h.Name)
		if len(labels) > int(sig.Labels) {
			suffix := strings.Join(labels[len(labels)-int(sig.Labels):], ".")
			h.Name = "*." + suffix

			if suffix != "" {
				h.Name += "."
			}
		}
	}

	lowercaseRData(c)

	return c
}

// lowercaseRData lowercases the embedded domain names of the types listed in RFC 4034 section 6.2
func lowercaseRData(rr dns.RR) {
	switch v := rr.(type) {
	case *dns.NS:
		v.Ns = dns.CanonicalName(v.Ns)
	case *dns.MD:
		v.Md = dns.CanonicalName(v.Md)
	case *dns.MF:
		v.Mf = dns.CanonicalName(v.Mf)
	case *dns.CNAME:
		v.Target = dns.CanonicalName(v.Target)
	case *dns.SOA:
		v.Ns = dns.CanonicalName(v.Ns)
		v.Mbox = dns.CanonicalName(v.Mbox)
	case *dns.MB:
		v.Mb = dns.CanonicalName(v.Mb)
	case *dns.MG:
		v.Mg = dns.CanonicalName(v.Mg)
	case *dns.MR:
		v.Mr = dns.CanonicalName(v.Mr)
	case *dns.PTR:
		v.Ptr = dns.CanonicalName(v.Ptr)
	case *dns.MINFO:
		v.Rmail = dns.CanonicalName(v.Rmail)
		v.Email = dns.CanonicalName(v.Email)
	case *dns.MX:
		v.Mx = dns.CanonicalName(v.Mx)
	case *dns.RP:
		v.Mbox = dns.CanonicalName(v.Mbox)
		v.Txt = dns.CanonicalName(v.Txt)
	case *dns.AFSDB:
		v.Hostname = dns.CanonicalName(v.Hostname)
	case *dns.RT:
		v.Host = dns.CanonicalName(v.Host)
	case *dns.PX:
		v.Map822 = dns.CanonicalName(v.Map822)
		v.Mapx400 = dns.CanonicalName(v.Mapx400)
	case *dns.NAPTR:
		v.Replacement = dns.CanonicalName(v.Replacement)
	case *dns.KX:
		v.Exchanger = dns.CanonicalName(v.Exchanger)
	case *dns.SRV:
		v.Target = dns.CanonicalName(v.Target)
	case *dns.DNAME:
		v.Target = dns.CanonicalName(v.Target)
	}
}
