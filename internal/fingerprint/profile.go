// Package fingerprint holds the browser identity presented to the target:
// user agent, header set, TLS parameters and the stealth patches applied
// by the headless tier.
package fingerprint

import (
	"fmt"
	"net/url"
)

// Profile describes a desktop browser identity.
type Profile struct {
	UserAgent      string
	AcceptLanguage string
	Platform       string
	Locale         string
	Timezone       string
	ViewportWidth  int
	ViewportHeight int
}

// DesktopChrome is the identity used by both fetch tiers. The values are
// kept consistent with the stealth patches: platform, GPU strings and
// pixel ratio all describe the same machine.
var DesktopChrome = Profile{
	UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/125.0.0.0 Safari/537.36",
	AcceptLanguage: "en-US,en;q=0.9",
	Platform:       "MacIntel",
	Locale:         "en-US",
	Timezone:       "Europe/Kiev",
	ViewportWidth:  1280,
	ViewportHeight: 800,
}

// Headers returns the XHR-style header set sent with status requests.
// The target serves JSON to same-origin fetches, so the set mimics one.
func (p Profile) Headers(referer string) map[string]string {
	return map[string]string{
		"Accept":          "application/json, text/javascript, */*; q=0.01",
		"Accept-Language": p.AcceptLanguage,
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
		"Referer":         referer,
		"Sec-Fetch-Dest":  "empty",
		"Sec-Fetch-Mode":  "cors",
		"Sec-Fetch-Site":  "same-origin",
	}
}

// RefererFor derives the origin referer for a target URL, e.g.
// "https://example.com/path?q=1" -> "https://example.com/".
func RefererFor(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse target url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("target url %q has no scheme or host", target)
	}
	return u.Scheme + "://" + u.Host + "/", nil
}
