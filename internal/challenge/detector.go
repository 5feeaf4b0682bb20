// Package challenge classifies fetched pages as clean, challenged or blocked.
package challenge

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Verdict is the outcome of classifying a page snapshot.
type Verdict int

const (
	// VerdictClean means the page shows no sign of bot mitigation.
	VerdictClean Verdict = iota
	// VerdictChallenge means an interstitial is running and may clear on its own.
	VerdictChallenge
	// VerdictBlocked means the request was refused outright.
	VerdictBlocked
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictClean:
		return "clean"
	case VerdictChallenge:
		return "challenge"
	case VerdictBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// ClearanceCookie names the cookie issued once a challenge is solved.
const ClearanceCookie = "cf_clearance"

// Snapshot carries the page state a verdict is based on.
type Snapshot struct {
	URL        string
	Title      string
	HTML       string
	StatusCode int
}

var challengeHosts = []string{
	"challenges.cloudflare.com",
}

var titleMarkers = []string{
	"just a moment",
	"checking your browser",
	"please wait",
	"attention required",
	"ddos-guard",
}

var domSelectors = []string{
	"#cf-browser-verification",
	"#cf-captcha-container",
	"#cf-challenge-running",
	"#challenge-running",
	"#challenge-stage",
	"#turnstile-wrapper",
	"#cf-spinner-please-wait",
	"#cf-spinner-redirecting",
}

var htmlMarkers = []string{
	"cf-chl-",
}

// Detector applies ordered rule checks to a page snapshot.
type Detector struct{}

// New creates a new Detector.
func New() *Detector {
	return &Detector{}
}

// Classify inspects, in order: the final URL, the page title, DOM markers
// and finally the HTTP status. An interstitial served with 403/503
// classifies as challenge; a bare 403/429/503 classifies as blocked.
func (Detector) Classify(snap Snapshot) Verdict {
	if IsChallengeHost(snap.URL) {
		return VerdictChallenge
	}
	title := strings.ToLower(snap.Title)
	for _, marker := range titleMarkers {
		if strings.Contains(title, marker) {
			return VerdictChallenge
		}
	}
	if hasDOMMarkers(snap.HTML) {
		return VerdictChallenge
	}
	switch snap.StatusCode {
	case 403, 429, 503:
		return VerdictBlocked
	}
	return VerdictClean
}

// IsChallengeHost reports whether the URL points at a known challenge host.
func IsChallengeHost(rawURL string) bool {
	for _, host := range challengeHosts {
		if strings.Contains(rawURL, host) {
			return true
		}
	}
	return false
}

func hasDOMMarkers(html string) bool {
	if html == "" {
		return false
	}
	for _, marker := range htmlMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	for _, sel := range domSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}
