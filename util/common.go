package util

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mdtanrikulu/dnssec-oracle/log"
	"github.com/miekg/dns"
)

// nolint:gochecknoglobals
var (
	// Version current version number
	Version = "undefined"
	// BuildTime build time of the binary
	BuildTime = "undefined"
)

const hexPrefix = "0x"

// DecodeHex decodes a hex string with optional 0x prefix
func DecodeHex(in string) ([]byte, error) {
	s := strings.TrimSpace(in)
	s = strings.TrimPrefix(strings.TrimPrefix(s, hexPrefix), "0X")

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex value: %w", err)
	}

	return b, nil
}

// EncodeHex encodes bytes as 0x prefixed hex string
func EncodeHex(b []byte) string {
	return hexPrefix + hex.EncodeToString(b)
}

// AnswerToString creates a user-friendly representation of a list of records
func AnswerToString(answer []dns.RR) string {
	answers := make([]string, len(answer))

	for i, record := range answer {
		switch v := record.(type) {
		case *dns.TXT:
			answers[i] = fmt.Sprintf("TXT (%s)", strings.Join(v.Txt, ""))
		case *dns.A:
			answers[i] = fmt.Sprintf("A (%s)", v.A)
		case *dns.AAAA:
			answers[i] = fmt.Sprintf("AAAA (%s)", v.AAAA)
		case *dns.CNAME:
			answers[i] = fmt.Sprintf("CNAME (%s)", v.Target)
		case *dns.DS:
			answers[i] = fmt.Sprintf("DS (%d %d %d)", v.KeyTag, v.Algorithm, v.DigestType)
		case *dns.DNSKEY:
			answers[i] = fmt.Sprintf("DNSKEY (%d %d %d, tag %d)", v.Flags, v.Protocol, v.Algorithm, v.KeyTag())
		default:
			answers[i] = fmt.Sprint(record)
		}
	}

	return strings.Join(answers, ", ")
}

// NewMsgWithQuestion creates a new DNSSEC enabled query (DO bit set)
func NewMsgWithQuestion(question string, qType dns.Type) *dns.Msg {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(question), uint16(qType))
	msg.SetEdns0(dns.DefaultMsgSize, true)

	return msg
}

// FatalOnError logs the error and exits the application
func FatalOnError(message string, err error) {
	if err != nil {
		log.Log().Fatal(message, err)
	}
}

// LogOnError logs the error with message prefix
func LogOnError(message string, err error) {
	if err != nil {
		log.Log().Error(message, err)
	}
}

// LogOnErrorWithEntry logs the error with message prefix on the given entry
func LogOnErrorWithEntry(logEntry interface{ Error(args ...interface{}) }, message string, err error) {
	if err != nil {
		logEntry.Error(message, err)
	}
}
