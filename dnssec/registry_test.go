package dnssec

import (
	"crypto/sha256"
	"sync"

	"github.com/miekg/dns"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registries", func() {
	Describe("Registry", func() {
		var sut *AlgorithmRegistry

		BeforeEach(func() {
			sut = NewAlgorithmRegistry(testOwner)
		})

		It("should bind and replace handlers", func() {
			rsa, _ := AlgorithmByName("RSASHA256")
			ec, _ := AlgorithmByName("ECDSAP256SHA256")

			Expect(sut.Register(testOwner, 200, rsa)).Should(Succeed())

			h, ok := sut.Lookup(200)
			Expect(ok).Should(BeTrue())
			Expect(h.Name()).Should(Equal("RSASHA256"))

			Expect(sut.Register(testOwner, 200, ec)).Should(Succeed())

			h, _ = sut.Lookup(200)
			Expect(h.Name()).Should(Equal("ECDSAP256SHA256"))
		})

		It("should reject other callers", func() {
			rsa, _ := AlgorithmByName("RSASHA256")

			err := sut.Register("mallory", dns.RSASHA256, rsa)
			Expect(err).Should(MatchError(ErrUnauthorized))
			Expect(err.Error()).Should(ContainSubstring("algorithm registry"))

			_, ok := sut.Lookup(dns.RSASHA256)
			Expect(ok).Should(BeFalse())
		})

		It("should be immutable without owner", func() {
			rsa, _ := AlgorithmByName("RSASHA256")

			Expect(NewAlgorithmRegistry("").Register("", dns.RSASHA256, rsa)).Should(MatchError(ErrUnauthorized))
		})

		It("should list ids in ascending order", func() {
			for id, name := range map[uint8]string{15: "ED25519", 8: "RSASHA256", 13: "ECDSAP256SHA256"} {
				h, _ := AlgorithmByName(name)
				Expect(sut.Register(testOwner, id, h)).Should(Succeed())
			}

			Expect(sut.IDs()).Should(Equal([]uint8{8, 13, 15}))
			Expect(sut.Owner()).Should(Equal(testOwner))
		})

		It("should be safe for concurrent use", func() {
			rsa, _ := AlgorithmByName("RSASHA256")

			var wg sync.WaitGroup

			for i := 0; i < 10; i++ {
				wg.Add(2)

				go func(id uint8) {
					defer GinkgoRecover()
					defer wg.Done()

					Expect(sut.Register(testOwner, id, rsa)).Should(Succeed())
				}(uint8(i))

				go func(id uint8) {
					defer wg.Done()

					_, _ = sut.Lookup(id)
				}(uint8(i))
			}

			wg.Wait()
			Expect(sut.IDs()).Should(HaveLen(10))
		})

		It("should report unbound ids", func() {
			_, err := sut.Verify(99, nil, nil, nil)
			Expect(err).Should(MatchError(ErrUnknownAlgorithm))
		})
	})

	Describe("Digests", func() {
		It("should provide the catalog", func() {
			Expect(DigestNames()).Should(Equal([]string{"SHA1", "SHA256", "SHA384"}))

			_, ok := DigestByName("MD5")
			Expect(ok).Should(BeFalse())
		})

		It("should verify digests", func() {
			sut := newDigestRegistry(DefaultDigestBindings())
			data := []byte("data")
			sum := sha256.Sum256(data)

			ok, err := sut.Verify(dns.SHA256, data, sum[:])
			Expect(err).Should(Succeed())
			Expect(ok).Should(BeTrue())

			ok, err = sut.Verify(dns.SHA256, []byte("other"), sum[:])
			Expect(err).Should(Succeed())
			Expect(ok).Should(BeFalse())

			ok, err = sut.Verify(dns.SHA256, data, sum[:16])
			Expect(err).Should(Succeed())
			Expect(ok).Should(BeFalse())

			_, err = sut.Verify(dns.SHA384, data, sum[:])
			Expect(err).Should(MatchError(ErrUnknownDigest))
			Expect(asError(err).ID).Should(Equal(uint8(dns.SHA384)))
		})

		It("should bind SHA1 and SHA256 by default", func() {
			Expect(DefaultDigestBindings()).Should(Equal(map[uint8]string{1: "SHA1", 2: "SHA256"}))
		})
	})

	Describe("Algorithms", func() {
		It("should provide the catalog", func() {
			Expect(AlgorithmNames()).Should(ConsistOf(
				"RSASHA1", "RSASHA256", "RSASHA512", "ECDSAP256SHA256", "ECDSAP384SHA384", "ED25519"))
		})

		It("should bind the common algorithms by default", func() {
			Expect(DefaultAlgorithmBindings()).Should(HaveKeyWithValue(uint8(8), "RSASHA256"))
			Expect(DefaultAlgorithmBindings()).Should(HaveKeyWithValue(uint8(13), "ECDSAP256SHA256"))
		})

		It("should reject malformed keys and signatures", func() {
			for _, name := range AlgorithmNames() {
				h, _ := AlgorithmByName(name)
				Expect(h.Verify(nil, []byte("data"), nil)).Should(BeFalse(), name)
				Expect(h.Verify([]byte{1, 2, 3}, []byte("data"), []byte{4, 5, 6})).Should(BeFalse(), name)
			}
		})
	})

	Describe("parseRSAPublicKey", func() {
		It("should decode short exponents", func() {
			pub, err := parseRSAPublicKey([]byte{3, 0x01, 0x00, 0x01, 0xC5, 0x01})
			Expect(err).Should(Succeed())
			Expect(pub.E).Should(Equal(65537))
			Expect(pub.N.Int64()).Should(Equal(int64(0xC501)))
		})

		It("should decode long exponent lengths", func() {
			pub, err := parseRSAPublicKey([]byte{0, 0, 1, 0x03, 0xFF})
			Expect(err).Should(Succeed())
			Expect(pub.E).Should(Equal(3))
		})

		It("should reject unsupported exponents", func() {
			_, err := parseRSAPublicKey([]byte{5, 1, 0, 0, 0, 1, 0xFF})
			Expect(err).Should(MatchError(errUnsupportedRSAExponent))
		})

		It("should reject missing moduli", func() {
			_, err := parseRSAPublicKey([]byte{1, 3})
			Expect(err).Should(MatchError(errTruncated))

			_, err = parseRSAPublicKey([]byte{1, 3, 0})
			Expect(err).Should(MatchError(ContainSubstring("empty RSA modulus")))
		})
	})
})
