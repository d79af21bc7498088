// Package api contains the request and response types of the oracle HTTP API
package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/publicsuffix"

	"github.com/mdtanrikulu/dnssec-oracle/dnssec"
	"github.com/mdtanrikulu/dnssec-oracle/util"
)

const (
	PathAnchors    = "/api/anchors"
	PathAlgorithms = "/api/algorithms"
	PathDigests    = "/api/digests"
	PathVerify     = "/api/verify"
	PathProve      = "/api/prove"
	PathAudit      = "/api/audit"

	ContentTypeHeader = "content-type"
	JSONContentType   = "application/json"
)

// ProofStep is a hex encoded signed RRSet
type ProofStep struct {
	// RRSIG RDATA without signature followed by the canonical records
	RRSet string `json:"rrset"`
	// Signature over RRSet
	Sig string `json:"sig"`
}

// VerifyRequest is the body of a verification request
type VerifyRequest struct {
	Proof []ProofStep `json:"proof"`
	// Now is the verification time in seconds since epoch, the current time if omitted
	Now *uint32 `json:"now,omitempty"`
}

// VerifyResult describes a verified RRSet
type VerifyResult struct {
	Name string `json:"name"`
	// Domain is the registrable domain of Name, empty for public suffixes
	Domain  string   `json:"domain,omitempty"`
	Type    string   `json:"type"`
	Records []string `json:"records"`
	// RRSet holds the hex encoded canonical records
	RRSet      string `json:"rrset"`
	Inception  uint32 `json:"inception"`
	Expiration uint32 `json:"expiration"`
	ValidFrom  uint32 `json:"validFrom"`
	ValidUntil uint32 `json:"validUntil"`
}

// ErrorResponse is returned for rejected requests
type ErrorResponse struct {
	Error string `json:"error"`
	// Kind of a rejected proof
	Kind string `json:"kind,omitempty"`
	// Step is the index of the failing proof step
	Step *int `json:"step,omitempty"`
}

// ProveRequest is the body of a proof request
type ProveRequest struct {
	Name string `json:"name"`
	// Type of the queried set, TXT if empty
	Type string `json:"type"`
}

// ProveResult contains the collected proof and its verification
type ProveResult struct {
	Proof  []ProofStep   `json:"proof"`
	Result *VerifyResult `json:"result,omitempty"`
	// Error is set if the collected proof was rejected
	Error *ErrorResponse `json:"error,omitempty"`
}

// Anchor is a trust anchor record
type Anchor struct {
	Record string `json:"record"`
	KeyTag uint16 `json:"keyTag"`
}

// AnchorsResult is the current trust anchor set
type AnchorsResult struct {
	Version uint64   `json:"version"`
	Anchors []Anchor `json:"anchors"`
	// Wire holds the hex encoded concatenated anchors
	Wire string `json:"wire"`
}

// AnchorsRequest replaces the trust anchor set
type AnchorsRequest struct {
	Records []string `json:"records"`
}

// BindingRequest binds a handler to a registry id
type BindingRequest struct {
	Handler string `json:"handler"`
}

// BindingResult is a registry entry
type BindingResult struct {
	ID      uint8  `json:"id"`
	Handler string `json:"handler"`
}

// NewProof encodes proof steps
func NewProof(steps []dnssec.ProofStep) []ProofStep {
	res := make([]ProofStep, len(steps))

	for i, s := range steps {
		res[i] = ProofStep{
			RRSet: util.EncodeHex(s.RRSet),
			Sig:   util.EncodeHex(s.Sig),
		}
	}

	return res
}

// DecodeProof decodes hex encoded proof steps
func DecodeProof(in []ProofStep) ([]dnssec.ProofStep, error) {
	res := make([]dnssec.ProofStep, len(in))

	for i, s := range in {
		rrset, err := util.DecodeHex(s.RRSet)
		if err != nil {
			return nil, fmt.Errorf("step %d: rrset: %w", i, err)
		}

		sig, err := util.DecodeHex(s.Sig)
		if err != nil {
			return nil, fmt.Errorf("step %d: sig: %w", i, err)
		}

		res[i] = dnssec.ProofStep{RRSet: rrset, Sig: sig}
	}

	return res, nil
}

// NewVerifyResult describes a verification result
func NewVerifyResult(res *dnssec.Result) (*VerifyResult, error) {
	rrs, err := res.RRSet.Decode()
	if err != nil {
		return nil, fmt.Errorf("can't decode records: %w", err)
	}

	records := make([]string, len(rrs))
	for i, rr := range rrs {
		records[i] = rr.String()
	}

	return &VerifyResult{
		Name:       res.RRSet.Name,
		Domain:     RegistrableDomain(res.RRSet.Name),
		Type:       dns.Type(res.RRSet.Type).String(),
		Records:    records,
		RRSet:      util.EncodeHex(res.RRSet.Data),
		Inception:  res.Inception,
		Expiration: res.Expiration,
		ValidFrom:  res.ValidFrom,
		ValidUntil: res.ValidUntil,
	}, nil
}

// NewErrorResponse describes err, including the kind and step of a rejected proof
func NewErrorResponse(err error) *ErrorResponse {
	res := &ErrorResponse{Error: err.Error()}

	var vErr *dnssec.Error
	if errors.As(err, &vErr) {
		res.Kind = vErr.Kind.String()

		if vErr.Step >= 0 {
			step := vErr.Step
			res.Step = &step
		}
	}

	return res
}

// RegistrableDomain returns the public suffix plus one label of name, "" if there is none
func RegistrableDomain(name string) string {
	domain, err := publicsuffix.EffectiveTLDPlusOne(strings.TrimSuffix(strings.ToLower(name), "."))
	if err != nil {
		return ""
	}

	return domain
}
