package config

import (
	"os"
	"time"

	"github.com/miekg/dns"

	"github.com/mdtanrikulu/dnssec-oracle/helpertest"
	"github.com/mdtanrikulu/dnssec-oracle/log"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const dsRecord = ". 86400 IN DS 20326 8 2 E06D44B80B8F1D39A95C0B0D7C65D08458E880409BBC683457104237C7F8EC8D"

var _ = Describe("Config", func() {
	var tmpDir *helpertest.TmpFolder

	suiteBeforeEach()

	BeforeEach(func() {
		tmpDir = helpertest.NewTmpFolder("config")
	})

	setEnv := func(key, value string) {
		Expect(os.Setenv(key, value)).Should(Succeed())
		DeferCleanup(os.Unsetenv, key)
	}

	Describe("Default values", func() {
		It("should apply all defaults", func() {
			c, err := NewDefaultConfig()
			Expect(err).Should(Succeed())

			Expect(c.Log.Level).Should(Equal(log.LevelInfo))
			Expect(c.Oracle.Owner).Should(Equal("admin"))
			Expect(c.Oracle.MaxProofSteps).Should(Equal(20))
			Expect(c.Oracle.CacheSize).Should(Equal(1000))
			Expect(c.Store.Type).Should(Equal(StoreTypeMemory))
			Expect(c.Store.ConnectionAttempts).Should(Equal(3))
			Expect(c.Store.ConnectionCooldownDuration()).Should(Equal(time.Second))
			Expect(c.Prover.Attempts).Should(BeNumerically("==", 3))
			Expect(c.Prover.Timeout.ToDuration()).Should(Equal(2 * time.Second))
			Expect(c.Prover.Upstreams).Should(HaveLen(2))
			Expect(c.Prover.Upstreams[0].String()).Should(Equal("udp:1.1.1.1"))
			Expect(c.Ports.HTTP).Should(Equal("4000"))
			Expect(c.Prometheus.Path).Should(Equal("/metrics"))
			Expect(c.Prometheus.Enable).Should(BeFalse())

			Expect(c.Validate()).Should(Succeed())
		})
	})

	Describe("Loading the configuration", func() {
		When("a file is given", func() {
			It("should read all sections", func() {
				path := tmpDir.CreateStringFile("config.yml",
					"log:",
					"  level: debug",
					"oracle:",
					"  owner: ens",
					"  token: secret",
					"  trustAnchors:",
					"    - "+dsRecord,
					"  algorithms:",
					"    - id: 15",
					"      handler: ED25519",
					"  digests:",
					"    - id: 4",
					"      handler: SHA384",
					"  maxProofSteps: 10",
					"store:",
					"  type: sqlite",
					"  target: oracle.db",
					"  connectionCooldown: 5s",
					"prover:",
					"  upstreams:",
					"    - tcp-tls:1.1.1.1",
					"    - https://dns.google/dns-query",
					"  timeout: 500ms",
					"ports:",
					"  http: 127.0.0.1:8080",
					"prometheus:",
					"  enable: true",
				)

				c, err := LoadConfig(path, true)
				Expect(err).Should(Succeed())

				Expect(c.Log.Level).Should(Equal(log.LevelDebug))
				Expect(c.Oracle.Owner).Should(Equal("ens"))
				Expect(c.Oracle.Token).Should(Equal("secret"))
				Expect(c.Oracle.TrustAnchors).Should(ConsistOf(dsRecord))
				Expect(c.Oracle.Algorithms).Should(ConsistOf(Binding{ID: dns.ED25519, Handler: "ED25519"}))
				Expect(c.Oracle.Digests).Should(ConsistOf(Binding{ID: dns.SHA384, Handler: "SHA384"}))
				Expect(c.Oracle.MaxProofSteps).Should(Equal(10))
				Expect(c.Store.Type).Should(Equal(StoreTypeSqlite))
				Expect(c.Store.Target).Should(Equal("oracle.db"))
				Expect(c.Store.ConnectionCooldownDuration()).Should(Equal(5 * time.Second))
				Expect(c.Prover.Upstreams).Should(HaveLen(2))
				Expect(c.Prover.Upstreams[0].Net).Should(Equal(NetProtocolTcpTls))
				Expect(c.Prover.Upstreams[0].Port).Should(BeNumerically("==", 853))
				Expect(c.Prover.Upstreams[1].URL()).Should(Equal("https://dns.google/dns-query"))
				Expect(c.Prover.Timeout.ToDuration()).Should(Equal(500 * time.Millisecond))
				Expect(c.Ports.HTTPAddress()).Should(Equal("127.0.0.1:8080"))
				Expect(c.Prometheus.IsEnabled()).Should(BeTrue())
			})
		})

		When("a directory is given", func() {
			It("should merge all yaml files and ignore others", func() {
				tmpDir.CreateStringFile("a.yml", "oracle:", "  owner: first")
				tmpDir.CreateStringFile("b.yaml", "store:", "  type: redis", "  redisAddress: localhost:6379")
				tmpDir.CreateStringFile("c.txt", "invalid: [")

				c, err := LoadConfig(tmpDir.Path, true)
				Expect(err).Should(Succeed())

				Expect(c.Oracle.Owner).Should(Equal("first"))
				Expect(c.Store.Type).Should(Equal(StoreTypeRedis))
				Expect(c.Store.RedisAddress).Should(Equal("localhost:6379"))
			})
		})

		When("the file does not exist", func() {
			It("should use the defaults if the file is optional", func() {
				c, err := LoadConfig(tmpDir.JoinPath("missing.yml"), false)
				Expect(err).Should(Succeed())
				Expect(c.Oracle.Owner).Should(Equal("admin"))
			})

			It("should fail if the file is mandatory", func() {
				_, err := LoadConfig(tmpDir.JoinPath("missing.yml"), true)
				Expect(err).Should(HaveOccurred())
				Expect(err.Error()).Should(ContainSubstring("can't read config file(s)"))
			})
		})

		When("the file is malformed", func() {
			It("should fail", func() {
				path := tmpDir.CreateStringFile("config.yml", "oracle: [")

				_, err := LoadConfig(path, true)
				Expect(err).Should(HaveOccurred())
			})
		})

		When("an enum value is unknown", func() {
			It("should fail", func() {
				path := tmpDir.CreateStringFile("config.yml", "store:", "  type: cassandra")

				_, err := LoadConfig(path, true)
				Expect(err).Should(MatchError(ContainSubstring("wrong file structure")))
			})
		})

		When("environment variables are set", func() {
			BeforeEach(func() {
				setEnv("ORACLE_ORACLE_OWNER", "env-owner")
				setEnv("ORACLE_STORE_CONNECTION_ATTEMPTS", "7")
				setEnv("ORACLE_PROVER_UPSTREAMS", "udp:9.9.9.9,tcp:8.8.4.4:5353")
				setEnv("ORACLE_CONFIG_FILE", "/ignored")
			})

			It("should override the file", func() {
				path := tmpDir.CreateStringFile("config.yml", "oracle:", "  owner: file-owner", "  token: t")

				c, err := LoadConfig(path, true)
				Expect(err).Should(Succeed())

				Expect(c.Oracle.Owner).Should(Equal("env-owner"))
				Expect(c.Oracle.Token).Should(Equal("t"))
				Expect(c.Store.ConnectionAttempts).Should(Equal(7))
				Expect(c.Prover.Upstreams).Should(HaveLen(2))
				Expect(c.Prover.Upstreams[0].Address()).Should(Equal("9.9.9.9:53"))
				Expect(c.Prover.Upstreams[1].Net).Should(Equal(NetProtocolTcp))
				Expect(c.Prover.Upstreams[1].Port).Should(BeNumerically("==", 5353))
			})
		})
	})

	Describe("Validation", func() {
		var c *Config

		BeforeEach(func() {
			var err error
			c, err = NewDefaultConfig()
			Expect(err).Should(Succeed())
		})

		It("should report all problems at once", func() {
			c.Oracle.Owner = ""
			c.Oracle.MaxProofSteps = 0
			c.Oracle.Algorithms = []Binding{{ID: 99, Handler: "GOST"}}
			c.Oracle.Digests = []Binding{{ID: 3, Handler: "GOST94"}}
			c.Oracle.TrustAnchors = []string{"example.com. 300 IN A 1.2.3.4"}
			c.Store.Type = StoreTypePostgres
			c.Prover.Timeout = 0

			err := c.Validate()
			Expect(err).Should(HaveOccurred())
			Expect(err.Error()).Should(SatisfyAll(
				ContainSubstring("owner must not be empty"),
				ContainSubstring("maxProofSteps"),
				ContainSubstring("unknown algorithm handler 'GOST'"),
				ContainSubstring("unknown digest handler 'GOST94'"),
				ContainSubstring("expected DS or DNSKEY"),
				ContainSubstring("target must be set"),
				ContainSubstring("timeout must be above zero"),
			))
		})

		It("should require cert and key together", func() {
			c.Ports.CertFile = "cert.pem"

			Expect(c.Validate()).Should(MatchError(ContainSubstring("certFile and keyFile")))
		})

		It("should require a listen port", func() {
			c.Ports.HTTP = ""

			Expect(c.Validate()).Should(MatchError(ContainSubstring("at least one of http or https")))
		})

		It("should require the redis address", func() {
			c.Store.Type = StoreTypeRedis

			Expect(c.Validate()).Should(MatchError(ContainSubstring("redisAddress")))
		})
	})

	Describe("Bindings", func() {
		It("should override defaults with configured bindings", func() {
			o := Oracle{Algorithms: []Binding{
				{ID: dns.RSASHA1, Handler: "RSASHA256"},
				{ID: dns.ED25519, Handler: "ED25519"},
			}}

			Expect(o.AlgorithmBindings()).Should(Equal([]Binding{
				{ID: dns.RSASHA1, Handler: "RSASHA256"},
				{ID: dns.RSASHA1NSEC3SHA1, Handler: "RSASHA1"},
				{ID: dns.RSASHA256, Handler: "RSASHA256"},
				{ID: dns.ECDSAP256SHA256, Handler: "ECDSAP256SHA256"},
				{ID: dns.ED25519, Handler: "ED25519"},
			}))
			Expect(o.DigestBindings()).Should(Equal([]Binding{
				{ID: dns.SHA1, Handler: "SHA1"},
				{ID: dns.SHA256, Handler: "SHA256"},
			}))
		})
	})

	Describe("Logging the configuration", func() {
		It("should log every section and hide secrets", func() {
			c, err := NewDefaultConfig()
			Expect(err).Should(Succeed())

			c.Oracle.Token = "top-secret"
			c.Store.Type = StoreTypeMysql
			c.Store.Target = "user:password@tcp(db)/oracle"

			c.LogConfig(logger)

			Expect(hook.Calls).ShouldNot(BeEmpty())
			Expect(hook.Messages).Should(ContainElements(
				"oracle:",
				"owner = admin",
				"store:",
				"type = mysql",
				"prover:",
				"  - udp:1.1.1.1",
				"ports:",
				"prometheus: disabled",
			))
			Expect(hook.Messages).ShouldNot(ContainElement(ContainSubstring("top-secret")))
			Expect(hook.Messages).ShouldNot(ContainElement(ContainSubstring("password")))
		})
	})
})
