// Package browser implements the headless-browser fetch tier via chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ovsienko/statusgate/internal/challenge"
	"github.com/ovsienko/statusgate/internal/fingerprint"
	"github.com/ovsienko/statusgate/internal/status"
)

// Config controls the browser tier.
type Config struct {
	TargetBaseURL         string
	Headless              bool
	MaxParallel           int
	NavigationTimeout     time.Duration
	ChallengeWaitAttempts int
	ChallengePollInterval time.Duration
}

// Fetcher renders the status endpoint in headless Chrome. Every attempt
// launches its own browser process: proxies bind at the process level, so
// cookies and fingerprint state never leak between proxied attempts.
type Fetcher struct {
	cfg      Config
	profile  fingerprint.Profile
	referer  string
	detector *challenge.Detector
	logger   *zap.Logger
	limiter  chan struct{}
}

// New creates a browser Fetcher.
func New(cfg Config, detector *challenge.Detector, logger *zap.Logger) (*Fetcher, error) {
	if cfg.TargetBaseURL == "" {
		return nil, errors.New("browser fetcher: target base url required")
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 15 * time.Second
	}
	if cfg.ChallengePollInterval <= 0 {
		cfg.ChallengePollInterval = time.Second
	}

	referer, err := fingerprint.RefererFor(cfg.TargetBaseURL)
	if err != nil {
		return nil, fmt.Errorf("browser fetcher: %w", err)
	}

	return &Fetcher{
		cfg:      cfg,
		profile:  fingerprint.DesktopChrome,
		referer:  referer,
		detector: detector,
		logger:   logger,
		limiter:  make(chan struct{}, cfg.MaxParallel),
	}, nil
}

// Fetch navigates to the status endpoint, rides out a challenge if one is
// running and extracts the JSON payload. An empty proxyURL means a direct
// connection. The attempt's browser is torn down on every exit path.
func (f *Fetcher) Fetch(ctx context.Context, identifier, proxyURL string) status.TierResult {
	if err := f.acquire(ctx); err != nil {
		return status.Retry(status.OutcomeNetworkError, err)
	}
	defer f.release()

	target := status.BuildTargetURL(f.cfg.TargetBaseURL, identifier, status.Nonce())

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, f.allocatorOptions(proxyURL)...)
	defer allocCancel()
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	if err := f.prepare(taskCtx); err != nil {
		return status.Retry(status.OutcomeNetworkError, err)
	}

	snap, err := f.navigate(taskCtx, meta, target)
	if err != nil {
		return status.Retry(status.OutcomeNetworkError, err)
	}

	verdict := f.detector.Classify(snap)
	f.logger.Debug("page classified",
		zap.String("identifier", identifier),
		zap.Stringer("verdict", verdict),
		zap.Int("status", snap.StatusCode),
		zap.String("url", snap.URL))

	switch verdict {
	case challenge.VerdictChallenge:
		if !f.waitForClearance(taskCtx, snap.URL) {
			return f.retryWithCapture(taskCtx, status.OutcomeChallengeTimeout,
				fmt.Errorf("challenge did not clear within %d polls", f.cfg.ChallengeWaitAttempts))
		}
		snap, err = f.navigate(taskCtx, meta, target)
		if err != nil {
			return status.Retry(status.OutcomeNetworkError, err)
		}
		if v := f.detector.Classify(snap); v != challenge.VerdictClean {
			return f.retryWithCapture(taskCtx, status.OutcomeChallengeTimeout,
				fmt.Errorf("page still %s after challenge wait", v))
		}
	case challenge.VerdictBlocked:
		return f.retryWithCapture(taskCtx, status.OutcomeNetworkError,
			fmt.Errorf("target refused with status %d", snap.StatusCode))
	}

	records, err := f.extractStatuses(taskCtx, meta, target)
	if err != nil {
		return f.retryWithCapture(taskCtx, status.OutcomeParseError, err)
	}
	return status.Success(records)
}

func (f *Fetcher) allocatorOptions(proxyURL string) []chromedp.ExecAllocatorOption {
	headless := any(false)
	if f.cfg.Headless {
		headless = "new"
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(f.profile.ViewportWidth, f.profile.ViewportHeight),
	)
	if proxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(proxyURL))
	}
	return opts
}

// prepare applies the identity before any navigation: user agent,
// timezone, header set and the stealth patches.
func (f *Fetcher) prepare(ctx context.Context) error {
	prepCtx, cancel := context.WithTimeout(ctx, f.cfg.NavigationTimeout)
	defer cancel()

	headers := f.profile.Headers(f.referer)
	err := chromedp.Run(prepCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(f.profile.UserAgent).
			WithAcceptLanguage(f.profile.AcceptLanguage).
			WithPlatform(f.profile.Platform).
			Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		if err := emulation.SetTimezoneOverride(f.profile.Timezone).Do(ctx); err != nil {
			return fmt.Errorf("set timezone: %w", err)
		}
		if err := network.SetExtraHTTPHeaders(toNetworkHeaders(headers)).Do(ctx); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(fingerprint.StealthScript).Do(ctx); err != nil {
			return fmt.Errorf("inject stealth script: %w", err)
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("prepare browser: %w", err)
	}
	return nil
}

func (f *Fetcher) navigate(ctx context.Context, meta *responseMeta, target string) (challenge.Snapshot, error) {
	navCtx, cancel := context.WithTimeout(ctx, f.cfg.NavigationTimeout)
	defer cancel()

	var (
		html     string
		title    string
		finalURL string
	)
	actions := []chromedp.Action{
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(navCtx, actions...); err != nil {
		return challenge.Snapshot{}, fmt.Errorf("navigate target: %w", err)
	}

	statusCode, respURL, _ := meta.snapshot()
	url := finalURL
	if url == "" {
		url = respURL
	}
	if url == "" {
		url = target
	}
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	return challenge.Snapshot{URL: url, Title: title, HTML: html, StatusCode: statusCode}, nil
}

// waitForClearance polls for the clearance cookie or a URL change, for at
// most ChallengeWaitAttempts one-interval polls.
func (f *Fetcher) waitForClearance(ctx context.Context, startURL string) bool {
	onChallengeHost := challenge.IsChallengeHost(startURL)
	for attempt := 0; attempt < f.cfg.ChallengeWaitAttempts; attempt++ {
		if !f.pause(ctx, f.cfg.ChallengePollInterval) {
			return false
		}
		if f.hasClearanceCookie(ctx) {
			f.logger.Debug("clearance cookie obtained", zap.Int("polls", attempt+1))
			return true
		}
		var current string
		if err := chromedp.Run(ctx, chromedp.Location(&current)); err != nil {
			return false
		}
		if onChallengeHost && !challenge.IsChallengeHost(current) {
			return true
		}
		if !onChallengeHost && current != startURL {
			return true
		}
	}
	return false
}

func (f *Fetcher) pause(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (f *Fetcher) hasClearanceCookie(ctx context.Context) bool {
	var found bool
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			if c.Name == challenge.ClearanceCookie {
				found = true
				return nil
			}
		}
		return nil
	}))
	return err == nil && found
}

// extractStatuses walks the extraction ladder: in-page authenticated fetch,
// then the raw navigation body, then the rendered page text.
func (f *Fetcher) extractStatuses(ctx context.Context, meta *responseMeta, target string) ([]status.Record, error) {
	raw, err := f.evalFetch(ctx, target)
	if err == nil {
		records, parseErr := status.ParseStatusInfo([]byte(raw))
		if parseErr == nil {
			return records, nil
		}
		err = parseErr
	}
	f.logger.Debug("in-page fetch failed, falling back", zap.Error(err))

	statusCode, _, requestID := meta.snapshot()
	if statusCode == http.StatusOK && requestID != "" {
		if records, bodyErr := f.parseNavigationBody(ctx, requestID); bodyErr == nil {
			return records, nil
		}
	}

	var text string
	if err := chromedp.Run(ctx, chromedp.Evaluate(`document.body.innerText`, &text)); err != nil {
		return nil, fmt.Errorf("read rendered text: %w", err)
	}
	records, err := status.ParseStatusInfo([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("parse rendered payload: %w", err)
	}
	return records, nil
}

func (f *Fetcher) evalFetch(ctx context.Context, target string) (string, error) {
	evalCtx, cancel := context.WithTimeout(ctx, f.cfg.NavigationTimeout)
	defer cancel()

	var raw string
	err := chromedp.Run(evalCtx, chromedp.Evaluate(fmt.Sprintf(fetchScript, target), &raw,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		return "", fmt.Errorf("in-page fetch: %w", err)
	}
	return raw, nil
}

const fetchScript = `(async () => {
  const r = await fetch(%q, { credentials: 'include' });
  if (!r.ok) throw new Error('bad status: ' + r.status);
  return await r.text();
})()`

func (f *Fetcher) parseNavigationBody(ctx context.Context, requestID network.RequestID) ([]status.Record, error) {
	var body []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		b, err := network.GetResponseBody(requestID).Do(ctx)
		if err != nil {
			return fmt.Errorf("get response body: %w", err)
		}
		body = b
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return status.ParseStatusInfo(body)
}

func (f *Fetcher) retryWithCapture(ctx context.Context, outcome status.Outcome, cause error) status.TierResult {
	return status.RetryWithCapture(outcome, cause, f.capturePage(ctx))
}

// capturePage grabs a full-page screenshot with title and URL, best effort.
// The bytes stay in memory; nothing is written to disk.
func (f *Fetcher) capturePage(ctx context.Context) *status.Capture {
	capCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		shot  []byte
		title string
		url   string
	)
	if err := chromedp.Run(capCtx,
		chromedp.Location(&url),
		chromedp.Title(&title),
		chromedp.FullScreenshot(&shot, 80),
	); err != nil {
		f.logger.Warn("diagnostics capture failed", zap.Error(err))
		return nil
	}
	return &status.Capture{Screenshot: shot, PageTitle: title, PageURL: url}
}

func (f *Fetcher) acquire(ctx context.Context) error {
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	select {
	case <-f.limiter:
	default:
	}
}

func toNetworkHeaders(h map[string]string) network.Headers {
	headers := network.Headers{}
	for key, value := range h {
		headers[key] = value
	}
	return headers
}
