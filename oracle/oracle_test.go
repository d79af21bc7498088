package oracle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/miekg/dns"

	"github.com/mdtanrikulu/dnssec-oracle/config"
	"github.com/mdtanrikulu/dnssec-oracle/dnssec"
	. "github.com/mdtanrikulu/dnssec-oracle/evt"
	. "github.com/mdtanrikulu/dnssec-oracle/helpertest"
	"github.com/mdtanrikulu/dnssec-oracle/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const owner = "admin"

type failingStore struct {
	*store.MemoryStore
}

func (failingStore) SaveBinding(context.Context, store.Binding) error {
	return errors.New("disk full")
}

func (failingStore) SaveAnchors(context.Context, store.AnchorSet) error {
	return errors.New("disk full")
}

// blockingVerifier holds its first Verify call until release is closed
type blockingVerifier struct {
	dnssec.SignatureVerifier

	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newBlockingVerifier(name string) *blockingVerifier {
	h, ok := dnssec.AlgorithmByName(name)
	Expect(ok).Should(BeTrue())

	return &blockingVerifier{SignatureVerifier: h, started: make(chan struct{}), release: make(chan struct{})}
}

func (v *blockingVerifier) Verify(publicKey, data, signature []byte) bool {
	v.once.Do(func() {
		close(v.started)
		<-v.release
	})

	return v.SignatureVerifier.Verify(publicKey, data, signature)
}

func proofOf(chain *TestChain) []dnssec.ProofStep {
	proof := make([]dnssec.ProofStep, len(chain.Sets))

	for i, set := range chain.Sets {
		step, err := dnssec.NewProofStep(set.Sig, set.RRs)
		Expect(err).Should(Succeed())

		proof[i] = step
	}

	return proof
}

func bound(name string, ok bool) string {
	Expect(ok).Should(BeTrue())

	return name
}

func oracleConfig(anchors ...string) config.Oracle {
	var cfg config.Oracle

	Expect(defaults.Set(&cfg)).Should(Succeed())

	cfg.Owner = owner
	cfg.TrustAnchors = anchors

	return cfg
}

var _ = Describe("Oracle", func() {
	var (
		sut   *Oracle
		st    *store.MemoryStore
		chain *TestChain
		proof []dnssec.ProofStep
		cfg   config.Oracle
		ctx   context.Context
		err   error
	)

	BeforeEach(func() {
		var cancel context.CancelFunc

		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(cancel)

		chain = NewTestChain(dns.ECDSAP256SHA256)
		proof = proofOf(chain)
		cfg = oracleConfig(chain.Anchor())
		st = store.NewMemoryStore()
	})

	JustBeforeEach(func() {
		sut, err = New(ctx, cfg, st)
		Expect(err).Should(Succeed())
	})

	Describe("Creation", func() {
		When("no trust anchors are configured", func() {
			BeforeEach(func() {
				cfg.TrustAnchors = nil
			})

			It("should use the IANA root anchors", func() {
				Expect(sut.Anchors()).Should(HaveLen(2))
				Expect(sut.Anchors()[0].KeyTag()).Should(BeEquivalentTo(20326))
				Expect(sut.AnchorsVersion()).Should(BeEquivalentTo(1))
				Expect(sut.AnchorsBytes()).ShouldNot(BeEmpty())
			})
		})

		It("should bind the default handlers", func() {
			Expect(sut.Owner()).Should(Equal(owner))
			Expect(bound(sut.Algorithm(dns.RSASHA256))).Should(Equal("RSASHA256"))
			Expect(bound(sut.Digest(dns.SHA256))).Should(Equal("SHA256"))
			Expect(sut.Algorithms()).Should(HaveLen(4))
			Expect(sut.Digests()).Should(HaveKeyWithValue(uint8(dns.SHA1), "SHA1"))

			_, ok := sut.Algorithm(dns.ED25519)
			Expect(ok).Should(BeFalse())

			_, ok = sut.Digest(dns.SHA384)
			Expect(ok).Should(BeFalse())
		})

		When("bindings are configured", func() {
			BeforeEach(func() {
				cfg.Algorithms = []config.Binding{{ID: dns.ED25519, Handler: "ED25519"}}
				cfg.Digests = []config.Binding{{ID: dns.SHA384, Handler: "SHA384"}}
			})

			It("should add them to the defaults", func() {
				Expect(bound(sut.Algorithm(dns.ED25519))).Should(Equal("ED25519"))
				Expect(bound(sut.Digest(dns.SHA384))).Should(Equal("SHA384"))
				Expect(bound(sut.Algorithm(dns.RSASHA256))).Should(Equal("RSASHA256"))
			})
		})

		It("should fail with an unknown configured handler", func() {
			cfg.Algorithms = []config.Binding{{ID: 99, Handler: "GOST"}}

			_, err := New(ctx, cfg, st)
			Expect(err).Should(MatchError(ErrUnknownHandler))
		})

		It("should fail with invalid trust anchors", func() {
			cfg.TrustAnchors = []string{"example.com. 300 IN A 1.2.3.4"}

			_, err := New(ctx, cfg, st)
			Expect(err).Should(HaveOccurred())
		})

		When("state was persisted", func() {
			var other *TestChain

			BeforeEach(func() {
				other = NewTestChain(dns.ECDSAP256SHA256)

				prev, err := New(ctx, cfg, st)
				Expect(err).Should(Succeed())
				Expect(prev.SetAlgorithm(ctx, owner, dns.ED25519, "ED25519")).Should(Succeed())
				Expect(prev.SetDigest(ctx, owner, dns.SHA1, "SHA256")).Should(Succeed())
				Expect(prev.RotateAnchors(ctx, owner, []string{other.Anchor()})).Should(BeEquivalentTo(2))
			})

			It("should restore bindings and anchors", func() {
				Expect(bound(sut.Algorithm(dns.ED25519))).Should(Equal("ED25519"))
				Expect(bound(sut.Digest(dns.SHA1))).Should(Equal("SHA256"))
				Expect(sut.AnchorsVersion()).Should(BeEquivalentTo(2))
				Expect(sut.Anchors()).Should(HaveLen(1))
				Expect(sut.Anchors()[0].KeyTag()).Should(Equal(other.Root.Key.KeyTag()))

				_, err := sut.VerifyRRSet(ctx, proofOf(other), TestNow)
				Expect(err).Should(Succeed())
			})
		})
	})

	Describe("VerifyRRSet", func() {
		It("should return the verified records", func() {
			completed := make(chan string, 1)
			Expect(Bus().SubscribeOnce(VerificationCompleted, func(outcome string, _ time.Duration) {
				completed <- outcome
			})).Should(Succeed())

			res, err := sut.VerifyRRSet(ctx, proof, TestNow)
			Expect(err).Should(Succeed())

			rrs, err := res.RRSet.Decode()
			Expect(err).Should(Succeed())
			Expect(rrs).Should(BeDNSRecord("example.com.", TXT, "v=1 addr=0x1234"))
			Expect(res.ValidFrom).Should(Equal(TestInception))
			Expect(res.ValidUntil).Should(Equal(TestExpiration))

			Expect(completed).Should(Receive(Equal(OutcomeAccepted)))
		})

		It("should publish the error kind of rejected proofs", func() {
			completed := make(chan string, 1)
			Expect(Bus().SubscribeOnce(VerificationCompleted, func(outcome string, _ time.Duration) {
				completed <- outcome
			})).Should(Succeed())

			_, err := sut.VerifyRRSet(ctx, proof, TestExpiration+1)
			Expect(err).Should(MatchError(dnssec.ErrSignatureExpired))

			Expect(completed).Should(Receive(Equal("SignatureExpired")))
		})

		Describe("result cache", func() {
			It("should answer a repeated proof from the cache", func() {
				cacheSize := make(chan int, 1)
				Expect(Bus().SubscribeOnce(VerificationCacheChanged, func(size int) {
					cacheSize <- size
				})).Should(Succeed())

				first, err := sut.VerifyRRSet(ctx, proof, TestNow)
				Expect(err).Should(Succeed())
				Expect(cacheSize).Should(Receive(Equal(1)))

				hits := make(chan string, 1)
				Expect(Bus().SubscribeOnce(VerificationCacheHit, func(key string) {
					hits <- key
				})).Should(Succeed())

				second, err := sut.VerifyRRSet(ctx, proof, TestNow+10)
				Expect(err).Should(Succeed())
				Expect(hits).Should(Receive(HaveLen(64)))
				Expect(second).Should(Equal(first))
				Expect(second).ShouldNot(BeIdenticalTo(first))
			})

			It("should not answer from the cache outside the validity window", func() {
				_, err := sut.VerifyRRSet(ctx, proof, TestNow)
				Expect(err).Should(Succeed())

				misses := make(chan string, 1)
				Expect(Bus().SubscribeOnce(VerificationCacheMiss, func(key string) {
					misses <- key
				})).Should(Succeed())

				_, err = sut.VerifyRRSet(ctx, proof, TestExpiration+1)
				Expect(err).Should(MatchError(dnssec.ErrSignatureExpired))
				Expect(misses).Should(Receive())
			})

			It("should not share the cached result with callers", func() {
				first, err := sut.VerifyRRSet(ctx, proof, TestNow)
				Expect(err).Should(Succeed())

				first.RRSet.Records[0].RData[0] ^= 0xff

				second, err := sut.VerifyRRSet(ctx, proof, TestNow)
				Expect(err).Should(Succeed())
				Expect(second.RRSet.Records[0].RData).ShouldNot(Equal(first.RRSet.Records[0].RData))
			})

			When("the state changes during a verification", func() {
				var (
					blocking *blockingVerifier
					inFlight chan error
				)

				JustBeforeEach(func() {
					blocking = newBlockingVerifier("ECDSAP256SHA256")
					Expect(sut.algorithms.Register(owner, dns.ECDSAP256SHA256, blocking)).Should(Succeed())

					inFlight = make(chan error, 1)

					go func() {
						defer GinkgoRecover()

						_, err := sut.VerifyRRSet(ctx, proof, TestNow)
						inFlight <- err
					}()

					Eventually(blocking.started).Should(BeClosed())
				})

				It("should not cache a result based on rotated anchors", func() {
					_, err := sut.RotateAnchors(ctx, owner, []string{NewTestChain(dns.ECDSAP256SHA256).Anchor()})
					Expect(err).Should(Succeed())

					close(blocking.release)
					Eventually(inFlight).Should(Receive(BeNil()))

					_, err = sut.VerifyRRSet(ctx, proof, TestNow)
					Expect(err).Should(MatchError(dnssec.ErrNoMatchingProof))
				})

				It("should not cache a result based on replaced bindings", func() {
					Expect(sut.SetAlgorithm(ctx, owner, dns.ED25519, "ED25519")).Should(Succeed())

					close(blocking.release)
					Eventually(inFlight).Should(Receive(BeNil()))

					misses := make(chan string, 1)
					Expect(Bus().SubscribeOnce(VerificationCacheMiss, func(key string) {
						misses <- key
					})).Should(Succeed())

					_, err := sut.VerifyRRSet(ctx, proof, TestNow)
					Expect(err).Should(Succeed())
					Expect(misses).Should(Receive())
				})
			})

			When("the cache is disabled", func() {
				BeforeEach(func() {
					cfg.CacheSize = 0
				})

				It("should verify every time", func() {
					misses := make(chan string, 10)
					fn := func(key string) {
						misses <- key
					}
					Expect(Bus().Subscribe(VerificationCacheMiss, fn)).Should(Succeed())
					DeferCleanup(func() {
						Expect(Bus().Unsubscribe(VerificationCacheMiss, fn)).Should(Succeed())
					})

					Expect(sut.VerifyRRSet(ctx, proof, TestNow)).ShouldNot(BeNil())
					Expect(sut.VerifyRRSet(ctx, proof, TestNow)).ShouldNot(BeNil())
					Consistently(misses).ShouldNot(Receive())
				})
			})
		})
	})

	Describe("Registries", func() {
		It("should reject changes by others than the owner", func() {
			err := sut.SetAlgorithm(ctx, "mallory", dns.ED25519, "ED25519")
			Expect(err).Should(MatchError(dnssec.ErrUnauthorized))

			err = sut.SetDigest(ctx, "", dns.SHA384, "SHA384")
			Expect(err).Should(MatchError(dnssec.ErrUnauthorized))

			Expect(st.Bindings(ctx, store.KindAlgorithm)).Should(BeEmpty())
			Expect(sut.AuditTrail(ctx, 0)).Should(BeEmpty())
		})

		It("should reject unknown handlers", func() {
			err := sut.SetAlgorithm(ctx, owner, dns.ED25519, "ED448")
			Expect(err).Should(MatchError(ErrUnknownHandler))

			err = sut.SetDigest(ctx, owner, dns.SHA384, "MD5")
			Expect(err).Should(MatchError(ErrUnknownHandler))
		})

		It("should bind, persist and audit a handler", func() {
			updated := make(chan string, 1)
			Expect(Bus().SubscribeOnce(RegistryUpdated, func(registry string, id uint8, handler string) {
				updated <- registry + " " + handler
			})).Should(Succeed())

			Expect(sut.SetAlgorithm(ctx, owner, dns.ED25519, "ED25519")).Should(Succeed())

			Expect(bound(sut.Algorithm(dns.ED25519))).Should(Equal("ED25519"))
			Expect(updated).Should(Receive(Equal("algorithm ED25519")))

			bindings, err := st.Bindings(ctx, store.KindAlgorithm)
			Expect(err).Should(Succeed())
			Expect(bindings).Should(HaveLen(1))
			Expect(bindings[0].Handler).Should(Equal("ED25519"))

			trail, err := sut.AuditTrail(ctx, 10)
			Expect(err).Should(Succeed())
			Expect(trail).Should(HaveLen(1))
			Expect(trail[0].Actor).Should(Equal(owner))
			Expect(trail[0].Action).Should(Equal(store.ActionSetAlgorithm))
			Expect(trail[0].Target).Should(Equal("algorithm 15"))
			Expect(trail[0].Detail).Should(Equal("ED25519"))
		})

		It("should apply a changed binding to cached proofs", func() {
			_, err := sut.VerifyRRSet(ctx, proof, TestNow)
			Expect(err).Should(Succeed())

			Expect(sut.SetAlgorithm(ctx, owner, dns.ECDSAP256SHA256, "ED25519")).Should(Succeed())

			_, err = sut.VerifyRRSet(ctx, proof, TestNow)
			Expect(err).Should(MatchError(dnssec.ErrNoMatchingProof))
		})

		It("should reject a digest rebinding for cached proofs", func() {
			_, err := sut.VerifyRRSet(ctx, proof, TestNow)
			Expect(err).Should(Succeed())

			Expect(sut.SetDigest(ctx, owner, dns.SHA256, "SHA1")).Should(Succeed())

			_, err = sut.VerifyRRSet(ctx, proof, TestNow)
			Expect(err).Should(MatchError(dnssec.ErrNoMatchingProof))
			Expect(sut.AuditTrail(ctx, 0)).Should(HaveLen(1))
		})

		When("the store fails", func() {
			It("should not change the binding", func() {
				sut, err := New(ctx, cfg, failingStore{st})
				Expect(err).Should(Succeed())

				err = sut.SetAlgorithm(ctx, owner, dns.ED25519, "ED25519")
				Expect(err).Should(MatchError(ContainSubstring("disk full")))

				_, ok := sut.Algorithm(dns.ED25519)
				Expect(ok).Should(BeFalse())
			})
		})
	})

	Describe("RotateAnchors", func() {
		var other *TestChain

		BeforeEach(func() {
			other = NewTestChain(dns.ECDSAP256SHA256)
		})

		It("should reject changes by others than the owner", func() {
			_, err := sut.RotateAnchors(ctx, "mallory", []string{other.Anchor()})
			Expect(err).Should(MatchError(dnssec.ErrUnauthorized))
			Expect(sut.AnchorsVersion()).Should(BeEquivalentTo(1))
		})

		It("should reject invalid anchor sets", func() {
			_, err := sut.RotateAnchors(ctx, owner, nil)
			Expect(err).Should(HaveOccurred())

			_, err = sut.RotateAnchors(ctx, owner, []string{"invalid"})
			Expect(err).Should(HaveOccurred())

			_, err = sut.RotateAnchors(ctx, owner, []string{other.Anchor(), other.Root.Key.String()})
			Expect(err).Should(HaveOccurred())

			Expect(sut.AnchorsVersion()).Should(BeEquivalentTo(1))
		})

		It("should replace, persist and audit the anchors", func() {
			rotated := make(chan uint64, 1)
			Expect(Bus().SubscribeOnce(TrustAnchorsRotated, func(version uint64, count int) {
				rotated <- version
			})).Should(Succeed())

			_, err := sut.VerifyRRSet(ctx, proof, TestNow)
			Expect(err).Should(Succeed())

			version, err := sut.RotateAnchors(ctx, owner, []string{other.Anchor()})
			Expect(err).Should(Succeed())
			Expect(version).Should(BeEquivalentTo(2))
			Expect(sut.AnchorsVersion()).Should(BeEquivalentTo(2))
			Expect(rotated).Should(Receive(BeEquivalentTo(2)))

			_, err = sut.VerifyRRSet(ctx, proof, TestNow)
			Expect(err).Should(MatchError(dnssec.ErrNoMatchingProof))

			_, err = sut.VerifyRRSet(ctx, proofOf(other), TestNow)
			Expect(err).Should(Succeed())

			latest, err := st.LatestAnchors(ctx)
			Expect(err).Should(Succeed())
			Expect(latest.Version).Should(BeEquivalentTo(2))
			Expect(latest.Records).Should(HaveLen(1))

			trail, err := sut.AuditTrail(ctx, 1)
			Expect(err).Should(Succeed())
			Expect(trail[0].Action).Should(Equal(store.ActionRotateAnchors))
			Expect(trail[0].Target).Should(Equal("anchors version 2"))
		})

		When("the store fails", func() {
			It("should keep the current anchors", func() {
				sut, err := New(ctx, cfg, failingStore{st})
				Expect(err).Should(Succeed())

				_, err = sut.RotateAnchors(ctx, owner, []string{other.Anchor()})
				Expect(err).Should(MatchError(ContainSubstring("disk full")))
				Expect(sut.AnchorsVersion()).Should(BeEquivalentTo(1))
			})
		})
	})

	Describe("Outcome", func() {
		It("should name the outcome", func() {
			Expect(Outcome(nil)).Should(Equal(OutcomeAccepted))
			Expect(Outcome(dnssec.ErrUnknownDigest)).Should(Equal("UnknownDigest"))
			Expect(Outcome(errors.New("boom"))).Should(Equal("error"))
		})
	})
})
