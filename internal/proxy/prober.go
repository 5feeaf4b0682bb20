package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"h12.io/socks"

	"github.com/ovsienko/statusgate/internal/fingerprint"
)

// ProberConfig controls the liveness probe.
type ProberConfig struct {
	// EchoURL is the cheap endpoint each candidate must reach.
	EchoURL string
	// Concurrency bounds in-flight probes.
	Concurrency int
	// Timeout bounds one whole probe, dial included.
	Timeout time.Duration
}

// Prober runs a cheap HTTP GET through each candidate. Anything that does
// not come back 200 within the timeout is dead; there is no partial
// credit and no retry.
type Prober struct {
	cfg    ProberConfig
	logger *zap.Logger
}

// NewProber constructs a Prober.
func NewProber(cfg ProberConfig, logger *zap.Logger) (*Prober, error) {
	if cfg.EchoURL == "" {
		return nil, errors.New("proxy prober: echo url required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Prober{cfg: cfg, logger: logger}, nil
}

// Probe checks all candidates concurrently and returns the alive subset,
// promoted to LivenessVerified, in the input order.
func (p *Prober) Probe(ctx context.Context, candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return nil
	}

	alive := make([]bool, len(candidates))
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, cand := range candidates {
		wg.Add(1)
		go func(i int, cand Candidate) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			if err := p.check(ctx, cand); err != nil {
				p.logger.Debug("proxy probe failed",
					zap.Stringer("proxy", cand),
					zap.Error(err))
				return
			}
			alive[i] = true
		}(i, cand)
	}
	wg.Wait()

	out := make([]Candidate, 0, len(candidates))
	for i, cand := range candidates {
		if !alive[i] {
			continue
		}
		cand.LivenessVerified = true
		out = append(out, cand)
	}

	p.logger.Info("proxy probe complete",
		zap.Int("alive", len(out)),
		zap.Int("probed", len(candidates)))
	return out
}

func (p *Prober) check(ctx context.Context, cand Candidate) error {
	attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	client, err := p.clientFor(cand)
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, p.cfg.EchoURL, nil)
	if err != nil {
		return fmt.Errorf("build echo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("echo returned status %d", resp.StatusCode)
	}
	return nil
}

// clientFor builds a throwaway client routed through the candidate. HTTP
// proxies go through the transport's proxy hook; SOCKS candidates need a
// dialer because net/http cannot speak socks4 natively.
func (p *Prober) clientFor(cand Candidate) (*http.Client, error) {
	transport := &http.Transport{
		TLSClientConfig:     fingerprint.NewTLSConfig(),
		TLSHandshakeTimeout: p.cfg.Timeout / 2,
		DisableKeepAlives:   true,
	}

	switch cand.Scheme {
	case SchemeSOCKS4, SchemeSOCKS5:
		dial := socks.Dial(fmt.Sprintf("%s?timeout=%s", cand.URL(), p.cfg.Timeout))
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dial(network, addr)
		}
	default:
		proxyURL, err := url.Parse(cand.URL())
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{Transport: transport, Timeout: p.cfg.Timeout}, nil
}
