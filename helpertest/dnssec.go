package helpertest

import (
	"crypto"
	"fmt"

	"github.com/miekg/dns"
	"github.com/onsi/gomega"
)

const (
	// Inception, expiration and a time in between used for all test signatures
	TestInception  uint32 = 1_600_000_000
	TestExpiration uint32 = 1_700_000_000
	TestNow        uint32 = 1_650_000_000
)

// TestZone is a signed zone with a single KSK used for both keys and data
type TestZone struct {
	Name   string
	Key    *dns.DNSKEY
	Signer crypto.Signer
}

// NewTestZone creates a zone with a freshly generated key
func NewTestZone(name string, algorithm uint8) *TestZone {
	key := &dns.DNSKEY{
		Hdr: dns.RR_Header{
			Name:   dns.Fqdn(name),
			Rrtype: dns.TypeDNSKEY,
			Class:  dns.ClassINET,
			Ttl:    3600,
		},
		Flags:     dns.ZONE | dns.SEP,
		Protocol:  3,
		Algorithm: algorithm,
	}

	priv, err := key.Generate(keySize(algorithm))
	gomega.Expect(err).Should(gomega.Succeed())

	signer, ok := priv.(crypto.Signer)
	gomega.Expect(ok).Should(gomega.BeTrue())

	return &TestZone{
		Name:   dns.Fqdn(name),
		Key:    key,
		Signer: signer,
	}
}

func keySize(algorithm uint8) int {
	switch algorithm {
	case dns.ECDSAP256SHA256, dns.ED25519:
		return 256
	case dns.ECDSAP384SHA384:
		return 384
	default:
		return 1024
	}
}

// Sign signs rrs with the zone key, valid between TestInception and TestExpiration
func (z *TestZone) Sign(rrs ...dns.RR) *dns.RRSIG {
	return z.SignWithValidity(TestInception, TestExpiration, rrs...)
}

// SignWithValidity signs rrs with the zone key and the given validity
func (z *TestZone) SignWithValidity(inception, expiration uint32, rrs ...dns.RR) *dns.RRSIG {
	return z.SignWithKey(z.Key, z.Signer, inception, expiration, rrs...)
}

// SignWithKey signs rrs as the zone with another key
func (z *TestZone) SignWithKey(key *dns.DNSKEY, signer crypto.Signer, inception, expiration uint32,
	rrs ...dns.RR,
) *dns.RRSIG {
	sig := &dns.RRSIG{
		Hdr:        dns.RR_Header{Ttl: rrs[0].Header().Ttl},
		Algorithm:  key.Algorithm,
		KeyTag:     key.KeyTag(),
		SignerName: z.Name,
		Inception:  inception,
		Expiration: expiration,
	}

	gomega.Expect(sig.Sign(signer, rrs)).Should(gomega.Succeed())

	return sig
}

// DS returns the delegation record of the zone key
func (z *TestZone) DS(digest uint8) *dns.DS {
	ds := z.Key.ToDS(digest)
	gomega.Expect(ds).ShouldNot(gomega.BeNil())

	return ds
}

// DSRecord returns the delegation record in zone file format
func (z *TestZone) DSRecord(digest uint8) string {
	return z.DS(digest).String()
}

// AddKey adds another key with the given flags to the zone and returns it with its signer
func (z *TestZone) AddKey(flags uint16) (*dns.DNSKEY, crypto.Signer) {
	key := &dns.DNSKEY{
		Hdr:       z.Key.Hdr,
		Flags:     flags,
		Protocol:  3,
		Algorithm: z.Key.Algorithm,
	}

	priv, err := key.Generate(keySize(key.Algorithm))
	gomega.Expect(err).Should(gomega.Succeed())

	signer, ok := priv.(crypto.Signer)
	gomega.Expect(ok).Should(gomega.BeTrue())

	return key, signer
}

// TXT creates a TXT record in the zone
func (z *TestZone) TXT(label, text string) *dns.TXT {
	name := z.Name
	if label != "" {
		name = dns.Fqdn(label + "." + z.Name)
	}

	return MustRR(fmt.Sprintf("%s 300 IN TXT %q", name, text)).(*dns.TXT)
}

// MustRR parses a record in zone file format
func MustRR(s string) dns.RR {
	rr, err := dns.NewRR(s)
	gomega.Expect(err).Should(gomega.Succeed())
	gomega.Expect(rr).ShouldNot(gomega.BeNil())

	return rr
}

// TestSignedRRSet is a record set together with its signature
type TestSignedRRSet struct {
	Sig *dns.RRSIG
	RRs []dns.RR
}

// TestChain is a signed delegation chain . -> com. -> example.com. ending in a TXT record
type TestChain struct {
	Root    *TestZone
	Com     *TestZone
	Example *TestZone
	TXT     *dns.TXT

	// Sets are ordered root first, as required for a proof
	Sets []TestSignedRRSet
}

// NewTestChain creates the zones with freshly generated keys of algorithm and signs all sets
func NewTestChain(algorithm uint8) *TestChain {
	c := &TestChain{
		Root:    NewTestZone(".", algorithm),
		Com:     NewTestZone("com.", algorithm),
		Example: NewTestZone("example.com.", algorithm),
	}

	c.TXT = c.Example.TXT("", "v=1 addr=0x1234")

	comDS := c.Com.DS(dns.SHA256)
	exampleDS := c.Example.DS(dns.SHA256)

	c.Sets = []TestSignedRRSet{
		{c.Root.Sign(c.Root.Key), []dns.RR{c.Root.Key}},
		{c.Root.Sign(comDS), []dns.RR{comDS}},
		{c.Com.Sign(c.Com.Key), []dns.RR{c.Com.Key}},
		{c.Com.Sign(exampleDS), []dns.RR{exampleDS}},
		{c.Example.Sign(c.Example.Key), []dns.RR{c.Example.Key}},
		{c.Example.Sign(c.TXT), []dns.RR{c.TXT}},
	}

	return c
}

// Anchor returns the root DS record trusting the chain
func (c *TestChain) Anchor() string {
	return c.Root.DSRecord(dns.SHA256)
}

// Zones returns all zones of the chain, root first
func (c *TestChain) Zones() []*TestZone {
	return []*TestZone{c.Root, c.Com, c.Example}
}
