package fingerprint

import "crypto/tls"

// Chrome-like cipher suite ordering.
var chromeCipherSuites = []uint16{
	tls.TLS_AES_128_GCM_SHA256,
	tls.TLS_AES_256_GCM_SHA384,
	tls.TLS_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
	tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
	tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_RSA_WITH_AES_128_CBC_SHA,
	tls.TLS_RSA_WITH_AES_256_CBC_SHA,
}

var browserCurves = []tls.CurveID{
	tls.X25519,
	tls.CurveP256,
	tls.CurveP384,
	tls.CurveP521,
}

// NewTLSConfig returns a client TLS config matching the Chrome profile.
// Certificate verification is off, as in the headless tier.
func NewTLSConfig() *tls.Config {
	return &tls.Config{
		CipherSuites:           chromeCipherSuites,
		CurvePreferences:       browserCurves,
		MinVersion:             tls.VersionTLS12,
		MaxVersion:             tls.VersionTLS13,
		InsecureSkipVerify:     true, //nolint:gosec // proxied hops present invalid certs
		Renegotiation:          tls.RenegotiateOnceAsClient,
		SessionTicketsDisabled: false,
	}
}
