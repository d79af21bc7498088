package dnssec

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Errors", func() {
	It("should match by kind", func() {
		err := newError(ErrorKindNoMatchingProof)
		err.Signer = "example.com."
		err.Step = 3

		wrapped := fmt.Errorf("verification failed: %w", err)

		Expect(errors.Is(wrapped, ErrNoMatchingProof)).Should(BeTrue())
		Expect(errors.Is(wrapped, ErrInvalidRRSet)).Should(BeFalse())
		Expect(errors.Is(wrapped, ErrUnauthorized)).Should(BeFalse())

		var e *Error
		Expect(errors.As(wrapped, &e)).Should(BeTrue())
		Expect(e.Step).Should(Equal(3))
	})

	DescribeTable("messages",
		func(err *Error, expected string) {
			Expect(err.Error()).Should(Equal(expected))
		},
		Entry("class", &Error{Kind: ErrorKindInvalidClass, Step: -1, Class: 3}, "invalid class CH"),
		Entry("label count", &Error{Kind: ErrorKindInvalidLabelCount, Step: -1, Name: "a.", Labels: 4},
			"invalid label count 4 for 'a.'"),
		Entry("proof type", &Error{Kind: ErrorKindInvalidProofType, Step: 1, Type: 16},
			"step 1: invalid proof type TXT"),
		Entry("rrset", &Error{Kind: ErrorKindInvalidRRSet, Step: -1}, "invalid RRSet"),
		Entry("rrset with reason", invalidRRSet("no %s", "records"), "invalid RRSet: no records"),
		Entry("signer", &Error{Kind: ErrorKindInvalidSignerName, Step: -1, Name: "a.", Signer: "b."},
			"'a.' is not a subdomain of signer 'b.'"),
		Entry("no proof", &Error{Kind: ErrorKindNoMatchingProof, Step: 0, Signer: "."},
			"step 0: no matching proof for signer '.'"),
		Entry("name mismatch", &Error{Kind: ErrorKindProofNameMismatch, Step: -1, Expected: "a.", Name: "b."},
			"proof name 'b.' does not match 'a.'"),
		Entry("expired", &Error{Kind: ErrorKindSignatureExpired, Step: -1, Time: 1, Now: 2},
			"signature expired at 1 (now 2)"),
		Entry("not valid yet", &Error{Kind: ErrorKindSignatureNotValidYet, Step: -1, Time: 2, Now: 1},
			"signature not valid before 2 (now 1)"),
		Entry("type mismatch", &Error{Kind: ErrorKindSignatureTypeMismatch, Step: -1, Type: 1, Covered: 16},
			"record type A does not match covered type TXT"),
		Entry("algorithm", &Error{Kind: ErrorKindUnknownAlgorithm, Step: -1, ID: 250}, "unknown algorithm 250"),
		Entry("digest", &Error{Kind: ErrorKindUnknownDigest, Step: -1, ID: 9}, "unknown digest 9"),
	)

	It("should parse kinds", func() {
		kind, err := ParseErrorKind("SignatureExpired")
		Expect(err).Should(Succeed())
		Expect(kind).Should(Equal(ErrorKindSignatureExpired))

		_, err = ParseErrorKind("nope")
		Expect(err).Should(MatchError(ErrInvalidErrorKind))

		Expect(ErrorKindNames()).Should(HaveLen(12))
	})
})
