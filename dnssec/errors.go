package dnssec

//go:generate go run github.com/abice/go-enum -f=$GOFILE --marshal --names

import (
	"errors"
	"fmt"

	"github.com/miekg/dns"
)

// ErrorKind classifies a rejected proof ENUM(
// InvalidClass
// InvalidLabelCount
// InvalidProofType
// InvalidRRSet
// InvalidSignerName
// NoMatchingProof
// ProofNameMismatch
// SignatureExpired
// SignatureNotValidYet
// SignatureTypeMismatch
// UnknownAlgorithm
// UnknownDigest
// )
type ErrorKind int

// ErrUnauthorized is returned if a caller other than the owner tries to modify a registry or the anchors
var ErrUnauthorized = errors.New("caller is not the owner")

// Error is the typed rejection of a proof. Only the fields relevant for Kind are set.
type Error struct {
	Kind ErrorKind
	// Step is the index of the failing proof step, -1 if the failure is not bound to a step
	Step int

	Name     string
	Signer   string
	Expected string
	Type     uint16
	Covered  uint16
	Class    uint16
	Labels   uint8
	Time     uint32
	Now      uint32
	ID       uint8
	Reason   string
}

// nolint:gochecknoglobals
var (
	ErrInvalidClass          = newError(ErrorKindInvalidClass)
	ErrInvalidLabelCount     = newError(ErrorKindInvalidLabelCount)
	ErrInvalidProofType      = newError(ErrorKindInvalidProofType)
	ErrInvalidRRSet          = newError(ErrorKindInvalidRRSet)
	ErrInvalidSignerName     = newError(ErrorKindInvalidSignerName)
	ErrNoMatchingProof       = newError(ErrorKindNoMatchingProof)
	ErrProofNameMismatch     = newError(ErrorKindProofNameMismatch)
	ErrSignatureExpired      = newError(ErrorKindSignatureExpired)
	ErrSignatureNotValidYet  = newError(ErrorKindSignatureNotValidYet)
	ErrSignatureTypeMismatch = newError(ErrorKindSignatureTypeMismatch)
	ErrUnknownAlgorithm      = newError(ErrorKindUnknownAlgorithm)
	ErrUnknownDigest         = newError(ErrorKindUnknownDigest)
)

// Is matches errors of the same kind, so errors.Is(err, ErrSignatureExpired) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)

	return ok && t.Kind == e.Kind
}

func (e *Error) Error() string {
	var msg string

	switch e.Kind {
	case ErrorKindInvalidClass:
		msg = fmt.Sprintf("invalid class %s", dns.Class(e.Class).String())
	case ErrorKindInvalidLabelCount:
		msg = fmt.Sprintf("invalid label count %d for '%s'", e.Labels, e.Name)
	case ErrorKindInvalidProofType:
		msg = fmt.Sprintf("invalid proof type %s", typeString(e.Type))
	case ErrorKindInvalidRRSet:
		msg = "invalid RRSet"
		if e.Reason != "" {
			msg += ": " + e.Reason
		}
	case ErrorKindInvalidSignerName:
		msg = fmt.Sprintf("'%s' is not a subdomain of signer '%s'", e.Name, e.Signer)
	case ErrorKindNoMatchingProof:
		msg = fmt.Sprintf("no matching proof for signer '%s'", e.Signer)
	case ErrorKindProofNameMismatch:
		msg = fmt.Sprintf("proof name '%s' does not match '%s'", e.Name, e.Expected)
	case ErrorKindSignatureExpired:
		msg = fmt.Sprintf("signature expired at %d (now %d)", e.Time, e.Now)
	case ErrorKindSignatureNotValidYet:
		msg = fmt.Sprintf("signature not valid before %d (now %d)", e.Time, e.Now)
	case ErrorKindSignatureTypeMismatch:
		msg = fmt.Sprintf("record type %s does not match covered type %s", typeString(e.Type), typeString(e.Covered))
	case ErrorKindUnknownAlgorithm:
		msg = fmt.Sprintf("unknown algorithm %d", e.ID)
	case ErrorKindUnknownDigest:
		msg = fmt.Sprintf("unknown digest %d", e.ID)
	default:
		msg = e.Kind.String()
	}

	if e.Step >= 0 {
		return fmt.Sprintf("step %d: %s", e.Step, msg)
	}

	return msg
}

func newError(kind ErrorKind) *Error {
	return &Error{Kind: kind, Step: -1}
}

func invalidRRSet(format string, args ...interface{}) *Error {
	e := newError(ErrorKindInvalidRRSet)
	e.Reason = fmt.Sprintf(format, args...)

	return e
}

func typeString(t uint16) string {
	return dns.Type(t).String()
}
