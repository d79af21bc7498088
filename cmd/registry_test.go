package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/mdtanrikulu/dnssec-oracle/api"
	"github.com/mdtanrikulu/dnssec-oracle/log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry command", func() {
	var (
		ts         *httptest.Server
		requests   []*http.Request
		bodies     []api.BindingRequest
		mockFn     func(w http.ResponseWriter, r *http.Request)
		loggerHook *test.Hook
	)

	JustBeforeEach(func() {
		ts = testHTTPAPIServer(mockFn)
	})

	JustAfterEach(func() {
		ts.Close()
	})

	BeforeEach(func() {
		configPath = defaultConfigPath
		requests = nil
		bodies = nil

		mockFn = func(w http.ResponseWriter, r *http.Request) {
			requests = append(requests, r)

			handler := "ECDSAP256SHA256"

			if r.Method == http.MethodPut {
				var body api.BindingRequest
				Expect(json.NewDecoder(r.Body).Decode(&body)).Should(Succeed())

				bodies = append(bodies, body)
				handler = body.Handler
			}

			w.Header().Add("Content-Type", "application/json")

			Expect(json.NewEncoder(w).Encode(api.BindingResult{ID: 13, Handler: handler})).Should(Succeed())
		}

		loggerHook = test.NewLocal(log.Log())
	})

	AfterEach(func() {
		loggerHook.Reset()
	})

	run := func(args ...string) error {
		c := newRegistryCommand()
		c.SetArgs(args)

		return c.Execute()
	}

	When("a binding is queried", func() {
		It("should print the handler", func() {
			Expect(run("algorithm", "13")).Should(Succeed())

			Expect(requests).Should(HaveLen(1))
			Expect(requests[0].Method).Should(Equal(http.MethodGet))
			Expect(requests[0].URL.Path).Should(Equal(api.PathAlgorithms + "/13"))
			Expect(requests[0].Header.Get("Authorization")).Should(BeEmpty())

			Expect(loggerHook.LastEntry().Message).Should(Equal("algorithm 13 = ECDSAP256SHA256"))
		})
	})

	When("a binding is changed", func() {
		It("should send handler and token", func() {
			Expect(run("digest", "13", "SHA384", "--token", "secret")).Should(Succeed())

			Expect(requests).Should(HaveLen(1))
			Expect(requests[0].Method).Should(Equal(http.MethodPut))
			Expect(requests[0].URL.Path).Should(Equal(api.PathDigests + "/13"))
			Expect(requests[0].Header.Get("Authorization")).Should(Equal("Bearer secret"))
			Expect(bodies).Should(Equal([]api.BindingRequest{{Handler: "SHA384"}}))

			Expect(loggerHook.LastEntry().Message).Should(Equal("digest 13 = SHA384"))
		})
	})

	When("the server rejects the request", func() {
		BeforeEach(func() {
			mockFn = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)

				_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "caller is not the owner"})
			}
		})

		It("should return the error message", func() {
			err := run("algorithm", "15", "ED25519")

			Expect(err).Should(MatchError("response NOK, 403 Forbidden caller is not the owner"))
		})
	})

	When("the id is invalid", func() {
		It("should end with error", func() {
			Expect(run("algorithm", "256")).Should(MatchError("invalid algorithm id '256'"))
			Expect(requests).Should(BeEmpty())
		})
	})
})
