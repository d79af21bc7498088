package util

import (
	"crypto/x509"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("TLS Util", func() {
	Describe("TLSGenerateSelfSignedCert", func() {
		It("should create a valid certificate for the given hosts", func() {
			cert, err := TLSGenerateSelfSignedCert([]string{"oracle.test"})
			Expect(err).Should(Succeed())
			Expect(cert.Leaf).ShouldNot(BeNil())
			Expect(cert.Leaf.DNSNames).Should(ConsistOf("oracle.test"))
			Expect(cert.Leaf.VerifyHostname("oracle.test")).Should(Succeed())
			Expect(cert.Leaf.ExtKeyUsage).Should(ContainElement(x509.ExtKeyUsageServerAuth))
		})
	})
})
