// Package direct implements the fingerprinted plain-HTTP fetch tier.
package direct

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/ovsienko/statusgate/internal/fingerprint"
	"github.com/ovsienko/statusgate/internal/status"
)

// Config controls the direct fetch tier.
type Config struct {
	TargetBaseURL  string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Fetcher issues a single fingerprinted GET against the status endpoint.
// It is the cheapest tier: no browser, one request, tagged result.
type Fetcher struct {
	cfg           Config
	profile       fingerprint.Profile
	referer       string
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// New constructs a Fetcher for the given target.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.TargetBaseURL == "" {
		return nil, errors.New("direct fetcher: target base url required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 20 * time.Second
	}

	referer, err := fingerprint.RefererFor(cfg.TargetBaseURL)
	if err != nil {
		return nil, fmt.Errorf("direct fetcher: %w", err)
	}

	base := colly.NewCollector(colly.Async(false))
	base.IgnoreRobotsTxt = true
	base.WithTransport(newBrowserTransport(cfg.ConnectTimeout, cfg.ReadTimeout))
	base.SetRequestTimeout(cfg.ReadTimeout)

	return &Fetcher{
		cfg:           cfg,
		profile:       fingerprint.DesktopChrome,
		referer:       referer,
		logger:        logger,
		baseCollector: base,
	}, nil
}

// Fetch performs one GET with a fresh cache-busting nonce and parses the
// body. Any non-200 status, transport error, empty body or malformed
// payload yields a retryable result; mitigation is indistinguishable from
// a missing identifier at this tier.
func (f *Fetcher) Fetch(ctx context.Context, identifier string) status.TierResult {
	target := status.BuildTargetURL(f.cfg.TargetBaseURL, identifier, status.Nonce())

	collector := f.baseCollector.Clone()
	collector.UserAgent = f.profile.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.SetRequestTimeout(f.cfg.ReadTimeout)

	var (
		body       []byte
		statusCode int
		fetchErr   error
	)

	collector.OnRequest(func(r *colly.Request) {
		for key, value := range f.profile.Headers(f.referer) {
			r.Headers.Set(key, value)
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	start := time.Now()
	if err := f.runCollector(ctx, collector, target); err != nil {
		f.logger.Warn("direct fetch failed",
			zap.String("identifier", identifier),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return status.Retry(status.OutcomeNetworkError, err)
	}
	if fetchErr != nil {
		f.logger.Warn("direct fetch transport error",
			zap.String("identifier", identifier),
			zap.Int("status", statusCode),
			zap.Error(fetchErr))
		return status.Retry(status.OutcomeNetworkError, fetchErr)
	}
	if statusCode != http.StatusOK {
		f.logger.Warn("direct fetch rejected",
			zap.String("identifier", identifier),
			zap.Int("status", statusCode))
		return status.Retry(status.OutcomeNetworkError,
			fmt.Errorf("target returned status %d", statusCode))
	}

	records, err := status.ParseStatusInfo(body)
	if err != nil {
		f.logger.Warn("direct fetch returned unparsable payload",
			zap.String("identifier", identifier),
			zap.Int("body_bytes", len(body)),
			zap.Error(err))
		return status.Retry(status.OutcomeParseError, fmt.Errorf("parse status payload: %w", err))
	}

	f.logger.Debug("direct fetch succeeded",
		zap.String("identifier", identifier),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return status.Success(records)
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("direct fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit target: %w", err)
		}
		return nil
	}
}

func newBrowserTransport(connectTimeout, readTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       fingerprint.NewTLSConfig(),
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}
