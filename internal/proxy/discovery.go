package proxy

import (
	"bufio"
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DiscoveryConfig controls the listing fetch.
type DiscoveryConfig struct {
	// ListingURL is the full listing-source URL including country, protocol,
	// anonymity and latency filters.
	ListingURL string
	// Cap truncates the shuffled pool; zero means no cap.
	Cap int
	// Timeout bounds the whole listing request.
	Timeout time.Duration
}

// Discoverer fetches proxy candidates from a public listing source. A
// failed fetch is not an error: it yields an empty pool, which disables
// the proxy tier for that invocation.
type Discoverer struct {
	cfg     DiscoveryConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewDiscoverer constructs a Discoverer. Listing fetches are rate limited
// to one per second so that back-to-back escalations do not hammer the
// listing source.
func NewDiscoverer(cfg DiscoveryConfig, logger *zap.Logger) (*Discoverer, error) {
	if cfg.ListingURL == "" {
		return nil, errors.New("proxy discovery: listing url required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Discoverer{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  logger,
	}, nil
}

// Discover fetches the listing and returns a deduplicated, shuffled,
// capped pool of unverified candidates. Every failure path returns an
// empty pool.
func (d *Discoverer) Discover(ctx context.Context) []Candidate {
	if err := d.limiter.Wait(ctx); err != nil {
		d.logger.Warn("proxy listing rate wait canceled", zap.Error(err))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.ListingURL, nil)
	if err != nil {
		d.logger.Warn("build proxy listing request", zap.Error(err))
		return nil
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("proxy listing fetch failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.Warn("proxy listing rejected",
			zap.Int("status", resp.StatusCode))
		return nil
	}

	candidates := d.parseListing(resp.Body)
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if d.cfg.Cap > 0 && len(candidates) > d.cfg.Cap {
		candidates = candidates[:d.cfg.Cap]
	}

	d.logger.Info("proxy discovery complete",
		zap.Int("candidates", len(candidates)))
	return candidates
}

// parseListing reads line-delimited proxy entries, skipping anything that
// does not parse and collapsing duplicates.
func (d *Discoverer) parseListing(r io.Reader) []Candidate {
	var out []Candidate
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cand, err := ParseCandidate(scanner.Text())
		if err != nil {
			continue
		}
		key := cand.URL()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cand)
	}
	if err := scanner.Err(); err != nil {
		d.logger.Warn("read proxy listing", zap.Error(err))
	}
	return out
}
