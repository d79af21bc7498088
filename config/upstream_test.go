package config

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Upstream", func() {
	DescribeTable("ParseUpstream",
		func(in string, expected Upstream, str string) {
			u, err := ParseUpstream(in)
			Expect(err).Should(Succeed())
			Expect(u).Should(Equal(expected))
			Expect(u.String()).Should(Equal(str))
		},
		Entry("host only", "1.1.1.1",
			Upstream{Net: NetProtocolUdp, Host: "1.1.1.1", Port: 53}, "udp:1.1.1.1"),
		Entry("udp with port", "udp:1.1.1.1:5353",
			Upstream{Net: NetProtocolUdp, Host: "1.1.1.1", Port: 5353}, "udp:1.1.1.1:5353"),
		Entry("tcp", "tcp:dns.quad9.net",
			Upstream{Net: NetProtocolTcp, Host: "dns.quad9.net", Port: 53}, "tcp:dns.quad9.net"),
		Entry("tcp-tls with common name", "tcp-tls:1.1.1.1#cloudflare-dns.com",
			Upstream{Net: NetProtocolTcpTls, Host: "1.1.1.1", Port: 853, CommonName: "cloudflare-dns.com"},
			"tcp-tls:1.1.1.1"),
		Entry("https default path", "https://dns.google",
			Upstream{Net: NetProtocolHttps, Host: "dns.google", Port: 443, Path: "/dns-query"},
			"https://dns.google/dns-query"),
		Entry("https custom port", "https://127.0.0.1:8443/resolve",
			Upstream{Net: NetProtocolHttps, Host: "127.0.0.1", Port: 8443, Path: "/resolve"},
			"https://127.0.0.1:8443/resolve"),
		Entry("IPv6", "tcp:[2606:4700:4700::1111]:53",
			Upstream{Net: NetProtocolTcp, Host: "2606:4700:4700::1111", Port: 53}, "tcp:[2606:4700:4700::1111]"),
	)

	DescribeTable("invalid upstreams",
		func(in string) {
			_, err := ParseUpstream(in)
			Expect(err).Should(HaveOccurred())
		},
		Entry("empty", ""),
		Entry("wrong port", "udp:1.1.1.1:99999"),
		Entry("wrong host", "udp:bad_host!"),
		Entry("path without https", "tcp:1.1.1.1/dns-query"),
	)

	It("should build addresses and urls", func() {
		u, err := ParseUpstream("tcp:[::1]:5300")
		Expect(err).Should(Succeed())
		Expect(u.Address()).Should(Equal("[::1]:5300"))

		u, err = ParseUpstream("https://[::1]:8443")
		Expect(err).Should(Succeed())
		Expect(u.URL()).Should(Equal("https://[::1]:8443/dns-query"))
	})

	It("should unmarshal from text", func() {
		var u Upstream

		Expect(u.IsDefault()).Should(BeTrue())
		Expect(u.String()).Should(Equal("no upstream"))

		Expect(u.UnmarshalText([]byte("tcp-tls:9.9.9.9"))).Should(Succeed())
		Expect(u.Net).Should(Equal(NetProtocolTcpTls))

		err := u.UnmarshalText([]byte("udp:1.1.1.1:0x"))
		Expect(err).Should(MatchError(ContainSubstring("can't convert upstream")))
	})
})
