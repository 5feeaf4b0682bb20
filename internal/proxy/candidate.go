// Package proxy discovers public egress proxies and narrows them down to
// the few that can actually carry a browser session: a listing fetch
// produces unverified candidates, a cheap HTTP probe drops the dead ones,
// and a browser-driven check keeps only those that complete a real request.
package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Proxy protocols accepted from listing sources.
const (
	SchemeHTTP   = "http"
	SchemeHTTPS  = "https"
	SchemeSOCKS4 = "socks4"
	SchemeSOCKS5 = "socks5"
)

// Candidate is a single proxy endpoint moving through the verification
// ladder. Discovery creates it unverified, the prober promotes it to
// LivenessVerified, the validator to FunctionallyVerified. Candidates are
// rebuilt on every escalation and never persisted.
type Candidate struct {
	Scheme               string
	Addr                 string
	LivenessVerified     bool
	FunctionallyVerified bool
}

// URL renders the candidate as scheme://host:port.
func (c Candidate) URL() string {
	u := url.URL{Scheme: c.Scheme, Host: c.Addr}
	return u.String()
}

func (c Candidate) String() string {
	return c.URL()
}

// ParseCandidate parses one listing line. Lines arrive as host:port or
// protocol://host:port; a bare host:port defaults to http.
func ParseCandidate(line string) (Candidate, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Candidate{}, errors.New("empty candidate line")
	}
	if !strings.Contains(trimmed, ":") {
		return Candidate{}, fmt.Errorf("candidate %q has no port", trimmed)
	}
	raw := trimmed
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Candidate{}, fmt.Errorf("parse candidate %q: %w", trimmed, err)
	}
	switch u.Scheme {
	case SchemeHTTP, SchemeHTTPS, SchemeSOCKS4, SchemeSOCKS5:
	default:
		return Candidate{}, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return Candidate{}, fmt.Errorf("candidate %q is missing host or port", trimmed)
	}
	return Candidate{Scheme: u.Scheme, Addr: u.Host}, nil
}
