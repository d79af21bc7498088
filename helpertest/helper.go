package helpertest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/mdtanrikulu/dnssec-oracle/log"

	"github.com/miekg/dns"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/onsi/gomega/types"
)

const (
	A      = dns.Type(dns.TypeA)
	TXT    = dns.Type(dns.TypeTXT)
	DS     = dns.Type(dns.TypeDS)
	DNSKEY = dns.Type(dns.TypeDNSKEY)
)

// GetIntPort returns an port for the current testing
// process by adding the current ginkgo parallel process to
// the base port and returning it as int
func GetIntPort(port int) int {
	return port + ginkgo.GinkgoParallelProcess()
}

// GetStringPort returns an port for the current testing
// process by adding the current ginkgo parallel process to
// the base port and returning it as string
func GetStringPort(port int) string {
	return fmt.Sprintf("%d", GetIntPort(port))
}

// TempFile creates temp file with passed data, removed after the test
func TempFile(data string) *os.File {
	f, err := os.CreateTemp("", "oracle")
	if err != nil {
		log.Log().Fatal(err)
	}

	ginkgo.DeferCleanup(func() { _ = os.Remove(f.Name()) })

	_, err = f.WriteString(data)
	if err != nil {
		log.Log().Fatal(err)
	}

	return f
}

// DoRequest performs a request against the handler and returns the recorded response
func DoRequest(ctx context.Context, method, url string, body []byte, header http.Header,
	handler http.Handler,
) (*httptest.ResponseRecorder, *bytes.Buffer) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	r, _ := http.NewRequestWithContext(ctx, method, url, reader)

	for k, v := range header {
		r.Header[k] = v
	}

	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, r)

	return rr, rr.Body
}

// Records returns all answer records of the message
func Records(m *dns.Msg) []dns.RR {
	return m.Answer
}

// HaveNoAnswer matches a response without answer records
func HaveNoAnswer() types.GomegaMatcher {
	return gomega.WithTransform(Records, gomega.BeEmpty())
}

// BeDNSRecord returns new dns matcher
func BeDNSRecord(domain string, dnsType dns.Type, answer string) types.GomegaMatcher {
	return &dnsRecordMatcher{
		domain:  domain,
		dnsType: dnsType,
		answer:  answer,
	}
}

type dnsRecordMatcher struct {
	domain  string
	dnsType dns.Type
	answer  string
}

func (matcher *dnsRecordMatcher) matchSingle(rr dns.RR) (success bool, err error) {
	if (rr.Header().Name != matcher.domain) ||
		(dns.Type(rr.Header().Rrtype) != matcher.dnsType) {
		return false, nil
	}

	switch v := rr.(type) {
	case *dns.A:
		return v.A.String() == matcher.answer, nil
	case *dns.TXT:
		return len(v.Txt) > 0 && v.Txt[0] == matcher.answer, nil
	case *dns.DS:
		return fmt.Sprintf("%d", v.KeyTag) == matcher.answer, nil
	case *dns.DNSKEY:
		return fmt.Sprintf("%d", v.KeyTag()) == matcher.answer, nil
	}

	return false, nil
}

// Match checks the DNS record
func (matcher *dnsRecordMatcher) Match(actual interface{}) (success bool, err error) {
	switch i := actual.(type) {
	case *dns.Msg:
		return matcher.Match(i.Answer)
	case []dns.RR:
		if len(i) != 1 {
			return false, fmt.Errorf("supports only single RR in answer, got %d", len(i))
		}

		return matcher.matchSingle(i[0])
	case dns.RR:
		return matcher.matchSingle(i)
	default:
		return false, fmt.Errorf("not supported type")
	}
}

// FailureMessage generates a failure message
func (matcher *dnsRecordMatcher) FailureMessage(actual interface{}) (message string) {
	return fmt.Sprintf("Expected\n\t%s\n to contain\n\t domain '%s', type '%s', answer '%s'",
		actual, matcher.domain, dns.TypeToString[uint16(matcher.dnsType)], matcher.answer)
}

// NegatedFailureMessage creates negated message
func (matcher *dnsRecordMatcher) NegatedFailureMessage(actual interface{}) (message string) {
	return fmt.Sprintf("Expected\n\t%s\n not to contain\n\t domain '%s', type '%s', answer '%s'",
		actual, matcher.domain, dns.TypeToString[uint16(matcher.dnsType)], matcher.answer)
}
