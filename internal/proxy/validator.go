package proxy

import (
	"context"
	"errors"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IPEcho completes a browser-driven request to an echo endpoint through
// the given proxy and returns the raw body.
type IPEcho interface {
	EchoIP(ctx context.Context, echoURL, proxyURL string) ([]byte, error)
}

// ValidatorConfig controls functional validation.
type ValidatorConfig struct {
	// EchoURL is the endpoint whose reply carries the client IP.
	EchoURL string
	// Concurrency bounds in-flight browser checks. Browser checks cost far
	// more than plain probes, so this sits well below the prober's bound.
	Concurrency int
	// Timeout bounds one whole check, browser launch included.
	Timeout time.Duration
}

// Validator proves a candidate can carry a real browser session: it routes
// a full browser context through the proxy to the echo endpoint and keeps
// only candidates whose reply parses to a non-empty client IP.
type Validator struct {
	cfg    ValidatorConfig
	echo   IPEcho
	logger *zap.Logger
}

// NewValidator constructs a Validator around a browser-backed echo.
func NewValidator(cfg ValidatorConfig, echo IPEcho, logger *zap.Logger) (*Validator, error) {
	if cfg.EchoURL == "" {
		return nil, errors.New("proxy validator: echo url required")
	}
	if echo == nil {
		return nil, errors.New("proxy validator: echo implementation required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Validator{cfg: cfg, echo: echo, logger: logger}, nil
}

type echoReply struct {
	Origin string `json:"origin"`
}

// Validate checks all candidates concurrently and returns the working
// subset, promoted to FunctionallyVerified, in the input order.
func (v *Validator) Validate(ctx context.Context, candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return nil
	}

	working := make([]bool, len(candidates))
	sem := make(chan struct{}, v.cfg.Concurrency)
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

			working[i] = v.checkOne(ctx, cand)
		}(i, cand)
	}
	wg.Wait()

	out := make([]Candidate, 0, len(candidates))
	for i, cand := range candidates {
		if !working[i] {
			continue
		}
		cand.FunctionallyVerified = true
		out = append(out, cand)
	}

	v.logger.Info("proxy validation complete",
		zap.Int("working", len(out)),
		zap.Int("checked", len(candidates)))
	return out
}

func (v *Validator) checkOne(ctx context.Context, cand Candidate) bool {
	attemptCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	body, err := v.echo.EchoIP(attemptCtx, v.cfg.EchoURL, cand.URL())
	if err != nil {
		v.logger.Debug("proxy echo failed",
			zap.Stringer("proxy", cand),
			zap.Error(err))
		return false
	}

	var reply echoReply
	if err := json.Unmarshal(body, &reply); err != nil {
		v.logger.Debug("proxy echo body unparsable",
			zap.Stringer("proxy", cand),
			zap.Int("body_bytes", len(body)),
			zap.Error(err))
		return false
	}
	if reply.Origin == "" {
		v.logger.Debug("proxy echo reply missing origin",
			zap.Stringer("proxy", cand))
		return false
	}

	v.logger.Debug("proxy validated",
		zap.Stringer("proxy", cand),
		zap.String("origin", reply.Origin))
	return true
}
