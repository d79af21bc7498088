package prover

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
	"github.com/mroth/weightedrand"

	"github.com/mdtanrikulu/dnssec-oracle/config"
	"github.com/mdtanrikulu/dnssec-oracle/util"
)

const (
	dnsContentType = "application/dns-message"

	maxUpstreamWeight = 60
)

type upstreamClient interface {
	exchange(ctx context.Context, msg *dns.Msg) (response *dns.Msg, rtt time.Duration, err error)
}

// dnsUpstreamClient queries over udp, tcp or tcp-tls.
// udpClient is nil for stream transports.
type dnsUpstreamClient struct {
	tcpClient, udpClient *dns.Client
	address              string
}

type httpUpstreamClient struct {
	client *http.Client
	url    string
}

// upstreamStatus remembers when an upstream failed last, which lowers its chance to be picked
type upstreamStatus struct {
	upstream      config.Upstream
	client        upstreamClient
	lastErrorTime atomic.Int64
}

func newUpstreamStatus(cfg config.Upstream, timeout time.Duration, tlsConfig *tls.Config) *upstreamStatus {
	s := &upstreamStatus{
		upstream: cfg,
		client:   createUpstreamClient(cfg, timeout, tlsConfig),
	}

	s.lastErrorTime.Store(time.Unix(0, 0).UnixNano())

	return s
}

func (s *upstreamStatus) String() string {
	return s.upstream.String()
}

func (s *upstreamStatus) markFailed() {
	s.lastErrorTime.Store(time.Now().UnixNano())
}

func (s *upstreamStatus) weight() uint {
	var weight float64 = maxUpstreamWeight

	sinceError := time.Since(time.Unix(0, s.lastErrorTime.Load()))
	if sinceError < time.Hour {
		// reduce weight: consider last error time
		weight = math.Max(1, weight-(maxUpstreamWeight-sinceError.Minutes()))
	}

	return uint(weight)
}

func createUpstreamClient(cfg config.Upstream, timeout time.Duration, tlsConfig *tls.Config) upstreamClient {
	clientTLS := upstreamTLSConfig(cfg, tlsConfig)

	switch cfg.Net {
	case config.NetProtocolHttps:
		return &httpUpstreamClient{
			client: &http.Client{
				Transport: &http.Transport{
					TLSClientConfig:     clientTLS,
					TLSHandshakeTimeout: timeout,
				},
				Timeout: timeout,
			},
			url: cfg.URL(),
		}

	case config.NetProtocolTcpTls:
		return &dnsUpstreamClient{
			tcpClient: &dns.Client{
				Net:       cfg.Net.String(),
				Timeout:   timeout,
				TLSConfig: clientTLS,
			},
			address: cfg.Address(),
		}

	case config.NetProtocolTcp:
		return &dnsUpstreamClient{
			tcpClient: &dns.Client{Net: "tcp", Timeout: timeout},
			address:   cfg.Address(),
		}
	}

	return &dnsUpstreamClient{
		tcpClient: &dns.Client{Net: "tcp", Timeout: timeout},
		udpClient: &dns.Client{Net: "udp", Timeout: timeout, UDPSize: dns.DefaultMsgSize},
		address:   cfg.Address(),
	}
}

// upstreamTLSConfig verifies the upstream certificate against the common name, or the host if none is set
func upstreamTLSConfig(cfg config.Upstream, base *tls.Config) *tls.Config {
	var res *tls.Config

	if base != nil {
		res = base.Clone()
	} else {
		res = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if res.ServerName == "" {
		res.ServerName = cfg.CommonName
		if res.ServerName == "" {
			res.ServerName = cfg.Host
		}
	}

	return res
}

func (r *httpUpstreamClient) exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
	start := time.Now()

	rawDNSMessage, err := msg.Pack()
	if err != nil {
		return nil, 0, fmt.Errorf("can't pack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(rawDNSMessage))
	if err != nil {
		return nil, 0, fmt.Errorf("can't create https request: %w", err)
	}

	req.Header.Set("Content-Type", dnsContentType)
	req.Header.Set("Accept", dnsContentType)

	httpResponse, err := r.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("can't perform https request: %w", err)
	}

	defer func() {
		util.LogOnError("can't close response body ", httpResponse.Body.Close())
	}()

	if httpResponse.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("http return code should be %d, but received %d", http.StatusOK, httpResponse.StatusCode)
	}

	contentType := httpResponse.Header.Get("content-type")
	if contentType != dnsContentType {
		return nil, 0, fmt.Errorf("http return content type should be '%s', but was '%s'",
			dnsContentType, contentType)
	}

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, 0, errors.New("can't read response body")
	}

	response := dns.Msg{}
	if err := response.Unpack(body); err != nil {
		return nil, 0, errors.New("can't unpack message")
	}

	return &response, time.Since(start), nil
}

func (r *dnsUpstreamClient) exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
	if r.udpClient == nil {
		return r.tcpClient.ExchangeContext(ctx, msg, r.address)
	}

	response, rtt, err := r.udpClient.ExchangeContext(ctx, msg, r.address)
	if err != nil {
		return nil, rtt, err
	}

	if response.Truncated {
		// signed answers often exceed the udp payload size
		return r.tcpClient.ExchangeContext(ctx, msg, r.address)
	}

	return response, rtt, nil
}

// pickUpstream chooses an upstream, preferring those without recent errors.
// exclude is skipped if there is any other upstream.
func pickUpstream(in []*upstreamStatus, exclude *upstreamStatus) *upstreamStatus {
	choices := make([]weightedrand.Choice, 0, len(in))

	for _, s := range in {
		if s != exclude || len(in) == 1 {
			choices = append(choices, weightedrand.Choice{
				Item:   s,
				Weight: s.weight(),
			})
		}
	}

	c, _ := weightedrand.NewChooser(choices...)

	return c.Pick().(*upstreamStatus)
}
