package cmd

import (
	"github.com/mdtanrikulu/dnssec-oracle/helpertest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Validate command", func() {
	var tmpDir *helpertest.TmpFolder

	BeforeEach(func() {
		tmpDir = helpertest.NewTmpFolder("config")
		apiPort = 0
	})

	When("Validate is called with not existing configuration file", func() {
		It("should terminate with error", func() {
			c := NewRootCommand()
			c.SetArgs([]string{"validate", "--config", "/notexisting/path.yaml"})

			Expect(c.Execute()).Should(HaveOccurred())
		})
	})

	When("Validate is called with existing valid configuration file", func() {
		It("should terminate without error", func() {
			cfgFile := tmpDir.CreateStringFile("config.yaml",
				"oracle:",
				"  owner: alice",
				"  algorithms:",
				"    - id: 15",
				"      handler: ED25519",
				"prover:",
				"  upstreams:",
				"    - tcp-tls:1.1.1.1:853")

			c := NewRootCommand()
			c.SetArgs([]string{"validate", "--config", cfgFile})

			Expect(c.Execute()).Should(Succeed())
			Expect(cfg.Oracle.Owner).Should(Equal("alice"))
		})
	})

	When("Validate is called with existing invalid configuration file", func() {
		It("should terminate with error", func() {
			cfgFile := tmpDir.CreateStringFile("config.yaml",
				"oracle:",
				"  algorithms:",
				"    - id: 15",
				"      handler: GOST")

			c := NewRootCommand()
			c.SetArgs([]string{"validate", "--config", cfgFile})

			Expect(c.Execute()).Should(MatchError(ContainSubstring("unknown algorithm handler 'GOST'")))
		})
	})
})
