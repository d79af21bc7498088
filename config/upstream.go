package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

var validDomain = regexp.MustCompile(
	`^(([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9\-]*[a-zA-Z0-9])\.)*([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9\-]*[A-Za-z0-9])$`)

// nolint:gochecknoglobals
var netDefaultPort = map[NetProtocol]uint16{
	NetProtocolUdp:    53,
	NetProtocolTcp:    53,
	NetProtocolTcpTls: 853,
	NetProtocolHttps:  443,
}

// Upstream is the definition of an external DNS resolver used to collect proofs
type Upstream struct {
	Net        NetProtocol
	Host       string
	Port       uint16
	Path       string
	CommonName string // Common Name to use for certificate verification; optional. "" uses .Host
}

// IsDefault returns true if u is the default value
func (u *Upstream) IsDefault() bool {
	return *u == Upstream{}
}

// Address returns host and port in the form accepted by net.Dial
func (u Upstream) Address() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(int(u.Port)))
}

// URL returns the DNS over HTTPS endpoint
func (u Upstream) URL() string {
	if u.Port == netDefaultPort[NetProtocolHttps] {
		return "https://" + hostLiteral(u.Host) + u.Path
	}

	return "https://" + u.Address() + u.Path
}

// String returns the string representation of u
func (u Upstream) String() string {
	if u.IsDefault() {
		return "no upstream"
	}

	var sb strings.Builder

	sb.WriteString(u.Net.String())
	sb.WriteRune(':')

	if u.Net == NetProtocolHttps {
		sb.WriteString("//")
	}

	sb.WriteString(hostLiteral(u.Host))

	if u.Port != netDefaultPort[u.Net] {
		sb.WriteRune(':')
		sb.WriteString(fmt.Sprint(u.Port))
	}

	sb.WriteString(u.Path)

	return sb.String()
}

func hostLiteral(host string) string {
	if strings.ContainsRune(host, ':') {
		return "[" + host + "]"
	}

	return host
}

// UnmarshalText implements `encoding.TextUnmarshaler`.
func (u *Upstream) UnmarshalText(data []byte) error {
	s := string(data)

	upstream, err := ParseUpstream(s)
	if err != nil {
		return fmt.Errorf("can't convert upstream '%s': %w", s, err)
	}

	*u = upstream

	return nil
}

// ParseUpstream creates new Upstream from passed string in format [net]:host[:port][/path][#commonname]
func ParseUpstream(upstream string) (Upstream, error) {
	if strings.TrimSpace(upstream) == "" {
		return Upstream{}, fmt.Errorf("empty upstream")
	}

	var port uint16

	commonName, upstream := extractCommonName(upstream)

	n, upstream := extractNet(upstream)

	path, upstream := extractPath(upstream)

	if path != "" && n != NetProtocolHttps {
		return Upstream{}, fmt.Errorf("path '%s' is only allowed for https upstreams", path)
	}

	host, portString, err := net.SplitHostPort(upstream)

	// string contains host:port
	if err == nil {
		p, err := ConvertPort(portString)
		if err != nil {
			return Upstream{}, fmt.Errorf("can't convert port to number (1 - 65535) %w", err)
		}

		port = p
	} else {
		// only host, use default port
		host = upstream
		port = netDefaultPort[n]

		// trim any IPv6 brackets
		host = strings.TrimPrefix(host, "[")
		host = strings.TrimSuffix(host, "]")
	}

	// validate hostname or ip
	if ip := net.ParseIP(host); ip == nil && !validDomain.MatchString(host) {
		return Upstream{}, fmt.Errorf("wrong host name '%s'", host)
	}

	if n == NetProtocolHttps && path == "" {
		path = "/dns-query"
	}

	return Upstream{
		Net:        n,
		Host:       host,
		Port:       port,
		Path:       path,
		CommonName: commonName,
	}, nil
}

// ConvertPort converts string representation into a valid port (0 - 65535)
func ConvertPort(in string) (uint16, error) {
	const (
		base    = 10
		bitSize = 16
	)

	p, err := strconv.ParseUint(strings.TrimSpace(in), base, bitSize)
	if err != nil {
		return 0, err
	}

	return uint16(p), nil
}

func extractCommonName(in string) (string, string) {
	upstream, cn, _ := strings.Cut(in, "#")

	return cn, upstream
}

func extractPath(in string) (path, upstream string) {
	slashIdx := strings.Index(in, "/")

	if slashIdx >= 0 {
		return in[slashIdx:], in[:slashIdx]
	}

	return "", in
}

func extractNet(upstream string) (NetProtocol, string) {
	// longest prefix first: "tcp-tls:" also starts with "tcp"
	for _, n := range []NetProtocol{NetProtocolTcpTls, NetProtocolHttps, NetProtocolTcp, NetProtocolUdp} {
		prefix := n.String() + ":"
		if strings.HasPrefix(upstream, prefix) {
			rest := upstream[len(prefix):]
			if n == NetProtocolHttps {
				rest = strings.TrimPrefix(rest, "//")
			}

			return n, rest
		}
	}

	return NetProtocolUdp, upstream
}
