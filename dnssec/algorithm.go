package dnssec

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha1" // nolint:gosec
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"hash"
	"math/big"

	"github.com/miekg/dns"
)

// Go's crypto/rsa only accepts public exponents up to 2^31-1
const maxRSAExponent = 1<<31 - 1

var errUnsupportedRSAExponent = errors.New("unsupported RSA exponent exceeds Go crypto limit")

// SignatureVerifier checks an RRSIG signature with the public key field of a DNSKEY
type SignatureVerifier interface {
	Name() string
	Verify(publicKey, data, signature []byte) bool
}

type rsaVerifier struct {
	name    string
	hash    crypto.Hash
	newHash func() hash.Hash
}

func (v rsaVerifier) Name() string {
	return v.name
}

func (v rsaVerifier) Verify(publicKey, data, signature []byte) bool {
	pub, err := parseRSAPublicKey(publicKey)
	if err != nil {
		return false
	}

	h := v.newHash()
	_, _ = h.Write(data)

	return rsa.VerifyPKCS1v15(pub, v.hash, h.Sum(nil), signature) == nil
}

// parseRSAPublicKey decodes the key format of RFC 3110 section 2
func parseRSAPublicKey(key []byte) (*rsa.PublicKey, error) {
	if len(key) < 1 {
		return nil, errTruncated
	}

	expLen := int(key[0])
	off := 1

	if expLen == 0 {
		if len(key) < 3 {
			return nil, errTruncated
		}

		expLen = int(binary.BigEndian.Uint16(key[1:]))
		off = 3
	}

	if expLen == 0 || len(key) <= off+expLen {
		return nil, errTruncated
	}

	if expLen > 4 {
		return nil, errUnsupportedRSAExponent
	}

	var e uint64
	for _, b := range key[off : off+expLen] {
		e = e<<8 | uint64(b)
	}

	if e > maxRSAExponent {
		return nil, errUnsupportedRSAExponent
	}

	n := new(big.Int).SetBytes(key[off+expLen:])
	if n.Sign() == 0 {
		return nil, errors.New("empty RSA modulus")
	}

	return &rsa.PublicKey{N: n, E: int(e)}, nil
}

type ecdsaVerifier struct {
	name    string
	curve   elliptic.Curve
	size    int
	newHash func() hash.Hash
}

func (v ecdsaVerifier) Name() string {
	return v.name
}

// Verify expects the public key as X|Y and the signature as R|S (RFC 6605 section 4)
func (v ecdsaVerifier) Verify(publicKey, data, signature []byte) bool {
	if len(publicKey) != 2*v.size || len(signature) != 2*v.size {
		return false
	}

	pub := &ecdsa.PublicKey{
		Curve: v.curve,
		X:     new(big.Int).SetBytes(publicKey[:v.size]),
		Y:     new(big.Int).SetBytes(publicKey[v.size:]),
	}

	if !v.curve.IsOnCurve(pub.X, pub.Y) {
		return false
	}

	h := v.newHash()
	_, _ = h.Write(data)

	r := new(big.Int).SetBytes(signature[:v.size])
	s := new(big.Int).SetBytes(signature[v.size:])

	return ecdsa.Verify(pub, h.Sum(nil), r, s)
}

type ed25519Verifier struct{}

func (ed25519Verifier) Name() string {
	return "ED25519"
}

func (ed25519Verifier) Verify(publicKey, data, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(publicKey, data, signature)
}

// nolint:gochecknoglobals
var algorithmCatalog = map[string]SignatureVerifier{
	"RSASHA1":         rsaVerifier{name: "RSASHA1", hash: crypto.SHA1, newHash: sha1.New},
	"RSASHA256":       rsaVerifier{name: "RSASHA256", hash: crypto.SHA256, newHash: sha256.New},
	"RSASHA512":       rsaVerifier{name: "RSASHA512", hash: crypto.SHA512, newHash: sha512.New},
	"ECDSAP256SHA256": ecdsaVerifier{name: "ECDSAP256SHA256", curve: elliptic.P256(), size: 32, newHash: sha256.New},
	"ECDSAP384SHA384": ecdsaVerifier{name: "ECDSAP384SHA384", curve: elliptic.P384(), size: 48, newHash: sha512.New384},
	"ED25519":         ed25519Verifier{},
}

// AlgorithmByName returns a built-in signature handler
func AlgorithmByName(name string) (SignatureVerifier, bool) {
	a, ok := algorithmCatalog[name]

	return a, ok
}

// AlgorithmNames returns the names of all built-in signature handlers
func AlgorithmNames() []string {
	return sortedKeys(algorithmCatalog)
}

// DefaultAlgorithmBindings returns the algorithm registrations of a fresh deployment
func DefaultAlgorithmBindings() map[uint8]string {
	return map[uint8]string{
		dns.RSASHA1:          "RSASHA1",
		dns.RSASHA1NSEC3SHA1: "RSASHA1",
		dns.RSASHA256:        "RSASHA256",
		dns.ECDSAP256SHA256:  "ECDSAP256SHA256",
	}
}

// AlgorithmRegistry maps DNSSEC signature algorithm numbers to their handlers
type AlgorithmRegistry struct {
	*Registry[SignatureVerifier]
}

// NewAlgorithmRegistry creates an empty registry modifiable by owner
func NewAlgorithmRegistry(owner string) *AlgorithmRegistry {
	return &AlgorithmRegistry{newRegistry[SignatureVerifier]("algorithm", owner)}
}

// Verify checks signature with the handler registered for id
func (r *AlgorithmRegistry) Verify(id uint8, publicKey, data, signature []byte) (bool, error) {
	h, ok := r.Lookup(id)
	if !ok {
		e := newError(ErrorKindUnknownAlgorithm)
		e.ID = id

		return false, e
	}

	return h.Verify(publicKey, data, signature), nil
}
