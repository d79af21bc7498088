package dnssec

import (
	"crypto/sha1" // nolint:gosec
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"hash"

	"github.com/miekg/dns"
)

// DigestVerifier checks a DS digest against the data it was computed over
type DigestVerifier interface {
	Name() string
	Verify(data, digest []byte) bool
}

type hashDigest struct {
	name    string
	newHash func() hash.Hash
}

func (d hashDigest) Name() string {
	return d.name
}

func (d hashDigest) Verify(data, digest []byte) bool {
	h := d.newHash()
	_, _ = h.Write(data)

	return subtle.ConstantTimeCompare(h.Sum(nil), digest) == 1
}

// nolint:gochecknoglobals
var digestCatalog = map[string]DigestVerifier{
	"SHA1":   hashDigest{name: "SHA1", newHash: sha1.New},
	"SHA256": hashDigest{name: "SHA256", newHash: sha256.New},
	"SHA384": hashDigest{name: "SHA384", newHash: sha512.New384},
}

// DigestByName returns a built-in digest handler
func DigestByName(name string) (DigestVerifier, bool) {
	d, ok := digestCatalog[name]

	return d, ok
}

// DigestNames returns the names of all built-in digest handlers
func DigestNames() []string {
	return sortedKeys(digestCatalog)
}

// DefaultDigestBindings returns the digest registrations of a fresh deployment
func DefaultDigestBindings() map[uint8]string {
	return map[uint8]string{
		dns.SHA1:   "SHA1",
		dns.SHA256: "SHA256",
	}
}

// DigestRegistry maps DS digest types to their handlers
type DigestRegistry struct {
	*Registry[DigestVerifier]
}

// NewDigestRegistry creates an empty registry modifiable by owner
func NewDigestRegistry(owner string) *DigestRegistry {
	return &DigestRegistry{newRegistry[DigestVerifier]("digest", owner)}
}

// Verify checks digest with the handler registered for id
func (r *DigestRegistry) Verify(id uint8, data, digest []byte) (bool, error) {
	h, ok := r.Lookup(id)
	if !ok {
		e := newError(ErrorKindUnknownDigest)
		e.ID = id

		return false, e
	}

	return h.Verify(data, digest), nil
}
