package cmd

import (
	"net"
	"syscall"
	"time"

	"github.com/mdtanrikulu/dnssec-oracle/helpertest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const basePort = 4600

var _ = Describe("Serve command", func() {
	var (
		tmpDir *helpertest.TmpFolder
		port   string
	)

	BeforeEach(func() {
		port = helpertest.GetStringPort(basePort)
		tmpDir = helpertest.NewTmpFolder("config")

		apiPort = 0
	})

	loadConfig := func() {
		configPath = tmpDir.CreateStringFile("config.yml",
			"ports:",
			"  http: 127.0.0.1:"+port)

		Expect(initConfig()).Should(Succeed())
	}

	When("Serve command is called with valid config", func() {
		It("should start without error and terminate with signal", func() {
			loadConfig()

			errChan := make(chan error)

			By("start server", func() {
				go func() {
					// it is a blocking function, call async
					errChan <- startServer(newServeCommand(), []string{})
				}()
			})

			By("check HTTP port is open", func() {
				Eventually(func(g Gomega) {
					conn, err := net.DialTimeout("tcp", "127.0.0.1:"+port, 200*time.Millisecond)
					g.Expect(err).Should(Succeed())
					defer conn.Close()
				}, "5s").Should(Succeed())
			})

			By("terminate with signal", func() {
				signals <- syscall.SIGINT

				Eventually(errChan, "5s").Should(Receive(BeNil()))
			})
		})
	})

	When("the port is already in use", func() {
		It("should fail to start", func() {
			l, err := net.Listen("tcp", "127.0.0.1:"+port)
			Expect(err).Should(Succeed())
			DeferCleanup(l.Close)

			loadConfig()

			err = startServer(newServeCommand(), []string{})
			Expect(err).Should(MatchError(ContainSubstring("address already in use")))
		})
	})
})
