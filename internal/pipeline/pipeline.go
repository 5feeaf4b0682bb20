// Package pipeline orchestrates the escalation ladder that turns an opaque
// session identifier into a status list: fingerprinted plain HTTP first,
// then a direct browser, then browser attempts through verified public
// proxies. Tiers communicate through tagged results; the orchestrator owns
// escalation, bookkeeping and the single diagnostics delivery on terminal
// failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sysclock "github.com/ovsienko/statusgate/internal/clock/system"
	idgen "github.com/ovsienko/statusgate/internal/id/uuid"
	"github.com/ovsienko/statusgate/internal/metrics"
	"github.com/ovsienko/statusgate/internal/proxy"
	"github.com/ovsienko/statusgate/internal/status"
	"github.com/ovsienko/statusgate/internal/track"
)

// diagnosticsTimeout bounds the detached delivery attempt after a terminal
// failure, which usually happens exactly when the invocation budget is gone.
const diagnosticsTimeout = 15 * time.Second

// DirectFetcher is the fingerprinted plain-HTTP tier.
type DirectFetcher interface {
	Fetch(ctx context.Context, identifier string) status.TierResult
}

// BrowserFetcher renders the target in a real browser. An empty proxyURL
// means a direct connection.
type BrowserFetcher interface {
	Fetch(ctx context.Context, identifier, proxyURL string) status.TierResult
}

// Discoverer produces unverified proxy candidates.
type Discoverer interface {
	Discover(ctx context.Context) []proxy.Candidate
}

// Prober narrows candidates down to the ones that answer at all.
type Prober interface {
	Probe(ctx context.Context, candidates []proxy.Candidate) []proxy.Candidate
}

// Validator narrows candidates down to the ones that actually relay traffic.
type Validator interface {
	Validate(ctx context.Context, candidates []proxy.Candidate) []proxy.Candidate
}

// Reporter delivers terminal-failure evidence to the operator channel.
type Reporter interface {
	Report(ctx context.Context, identifier string, capture *status.Capture) *status.ArtifactRef
}

// IDSource mints invocation IDs.
type IDSource interface {
	NewRawID() (uuid.UUID, error)
}

// Config tunes orchestration behavior.
type Config struct {
	// ProxyEnabled turns on the discovery/probe/validate escalation tier.
	ProxyEnabled bool
	// PublisherTopic names the outcome-event topic. Empty disables publishing.
	PublisherTopic string
}

// Deps bundles the tier implementations the pipeline drives.
type Deps struct {
	Direct    DirectFetcher
	Browser   BrowserFetcher
	Discover  Discoverer
	Prober    Prober
	Validator Validator
	Reporter  Reporter
	Emitter   track.Emitter
	Publisher status.Publisher
	IDs       IDSource
	Clock     status.Clock
}

// Pipeline runs the fetch ladder. Each invocation owns its attempt log and
// proxy pool; nothing mutable is shared between concurrent invocations.
type Pipeline struct {
	cfg       Config
	direct    DirectFetcher
	browser   BrowserFetcher
	discover  Discoverer
	prober    Prober
	validator Validator
	reporter  Reporter
	emitter   track.Emitter
	publisher status.Publisher
	ids       IDSource
	clock     status.Clock
	logger    *zap.Logger
}

// New wires a Pipeline. Proxy tier deps are only required when the tier is
// enabled; IDs and Clock fall back to the real implementations.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Pipeline, error) {
	if deps.Direct == nil {
		return nil, errors.New("pipeline: direct fetcher required")
	}
	if deps.Browser == nil {
		return nil, errors.New("pipeline: browser fetcher required")
	}
	if deps.Reporter == nil {
		return nil, errors.New("pipeline: diagnostics reporter required")
	}
	if deps.Emitter == nil {
		return nil, errors.New("pipeline: event emitter required")
	}
	if cfg.ProxyEnabled && (deps.Discover == nil || deps.Prober == nil || deps.Validator == nil) {
		return nil, errors.New("pipeline: proxy tier enabled without discoverer, prober and validator")
	}
	if deps.IDs == nil {
		deps.IDs = idgen.New()
	}
	if deps.Clock == nil {
		deps.Clock = sysclock.New()
	}
	metrics.Init()

	return &Pipeline{
		cfg:       cfg,
		direct:    deps.Direct,
		browser:   deps.Browser,
		discover:  deps.Discover,
		prober:    deps.Prober,
		validator: deps.Validator,
		reporter:  deps.Reporter,
		emitter:   deps.Emitter,
		publisher: deps.Publisher,
		ids:       deps.IDs,
		clock:     deps.Clock,
		logger:    logger,
	}, nil
}

// Check fetches the status list for an identifier. retrieveAll=false trims
// the result to the most recent record. A terminal fetch failure yields a
// nil slice and a nil error; the error return flags caller mistakes only.
func (p *Pipeline) Check(ctx context.Context, identifier string, retrieveAll bool) ([]status.Record, error) {
	result, err := p.Run(ctx, identifier, retrieveAll)
	if err != nil {
		return nil, err
	}
	return result.Statuses, nil
}

// Run drives the full escalation ladder for one identifier and returns the
// raw fetch result, including the diagnostics reference on failure.
func (p *Pipeline) Run(ctx context.Context, identifier string, retrieveAll bool) (status.FetchResult, error) {
	if identifier == "" {
		return status.FetchResult{}, errors.New("identifier is required")
	}
	rawID, err := p.ids.NewRawID()
	if err != nil {
		return status.FetchResult{}, fmt.Errorf("mint invocation id: %w", err)
	}

	inv := &invocation{id: rawID, identifier: identifier, started: p.clock.Now()}
	p.emit(inv.event(track.StageInvocationStart, inv.started))
	p.logger.Debug("invocation starting",
		zap.String("invocation_id", inv.id.String()),
		zap.String("identifier", identifier))

	start := p.clock.Now()
	res := p.direct.Fetch(ctx, identifier)
	p.recordAttempt(inv, status.MethodDirectHTTP, "", res, p.clock.Now().Sub(start))
	switch res.Kind {
	case status.KindSuccess:
		return p.finish(ctx, inv, res.Statuses, retrieveAll), nil
	case status.KindTerminal:
		return p.fail(ctx, inv), nil
	}

	p.logger.Debug("escalating to browser tier",
		zap.String("invocation_id", inv.id.String()),
		zap.String("identifier", identifier))
	start = p.clock.Now()
	res = p.browser.Fetch(ctx, identifier, "")
	p.recordAttempt(inv, status.MethodBrowserDirect, "", res, p.clock.Now().Sub(start))
	switch res.Kind {
	case status.KindSuccess:
		return p.finish(ctx, inv, res.Statuses, retrieveAll), nil
	case status.KindTerminal:
		return p.fail(ctx, inv), nil
	}

	if !p.cfg.ProxyEnabled {
		p.logger.Debug("proxy escalation disabled",
			zap.String("invocation_id", inv.id.String()),
			zap.String("identifier", identifier))
		return p.fail(ctx, inv), nil
	}

	res = p.runProxyTier(ctx, inv)
	if res.Kind == status.KindSuccess {
		return p.finish(ctx, inv, res.Statuses, retrieveAll), nil
	}
	if res.Err != nil {
		inv.lastErr = res.Err
	}
	return p.fail(ctx, inv), nil
}

// runProxyTier walks discovery, health probing, functional validation and
// the proxied browser attempts. It returns success or a terminal failure,
// never a retryable result. Candidates are tried sequentially in the order
// discovery shuffled them; each one is consumed at most once.
func (p *Pipeline) runProxyTier(ctx context.Context, inv *invocation) status.TierResult {
	candidates := p.discover.Discover(ctx)
	metrics.AddProxyCandidates(metrics.ProxyStageDiscovered, len(candidates))
	if len(candidates) == 0 {
		return status.Terminal(errors.New("proxy discovery produced no candidates"))
	}

	alive := p.prober.Probe(ctx, candidates)
	metrics.AddProxyCandidates(metrics.ProxyStageAlive, len(alive))
	if len(alive) == 0 {
		return status.Terminal(errors.New("no proxy candidates answered the health probe"))
	}

	validated := p.validator.Validate(ctx, alive)
	metrics.AddProxyCandidates(metrics.ProxyStageValidated, len(validated))
	if len(validated) == 0 {
		return status.Terminal(errors.New("no proxy candidates passed functional validation"))
	}

	p.logger.Info("proxy pool ready",
		zap.String("invocation_id", inv.id.String()),
		zap.Int("discovered", len(candidates)),
		zap.Int("alive", len(alive)),
		zap.Int("validated", len(validated)))

	for _, cand := range validated {
		if ctx.Err() != nil {
			return status.Terminal(fmt.Errorf("proxied attempts aborted: %w", ctx.Err()))
		}
		proxyURL := cand.URL()
		start := p.clock.Now()
		res := p.browser.Fetch(ctx, inv.identifier, proxyURL)
		p.recordAttempt(inv, status.MethodBrowserProxied, proxyURL, res, p.clock.Now().Sub(start))
		if res.Kind == status.KindSuccess {
			return res
		}
	}
	return status.Terminal(errors.New("all validated proxies failed"))
}

func (p *Pipeline) finish(ctx context.Context, inv *invocation, records []status.Record, retrieveAll bool) status.FetchResult {
	now := p.clock.Now()
	evt := inv.event(track.StageInvocationDone, now)
	evt.Method = inv.lastMethod
	evt.Outcome = status.OutcomeSuccess
	evt.Records = len(records)
	evt.Dur = now.Sub(inv.started)
	p.emit(evt)

	p.publishOutcome(ctx, inv, records)

	p.logger.Info("status fetch succeeded",
		zap.String("invocation_id", inv.id.String()),
		zap.String("identifier", inv.identifier),
		zap.String("method", string(inv.lastMethod)),
		zap.Int("attempts", len(inv.attempts)),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", evt.Dur))

	if !retrieveAll && len(records) > 0 {
		records = records[len(records)-1:]
	}
	return status.FetchResult{Statuses: records}
}

func (p *Pipeline) fail(ctx context.Context, inv *invocation) status.FetchResult {
	ref := p.deliverDiagnostics(ctx, inv)

	now := p.clock.Now()
	evt := inv.event(track.StageInvocationError, now)
	evt.Method = inv.lastMethod
	evt.Outcome = inv.lastOutcome
	evt.Dur = now.Sub(inv.started)
	evt.Note = errText(inv.lastErr)
	p.emit(evt)

	p.logger.Warn("status fetch failed",
		zap.String("invocation_id", inv.id.String()),
		zap.String("identifier", inv.identifier),
		zap.String("last_method", string(inv.lastMethod)),
		zap.String("last_outcome", string(inv.lastOutcome)),
		zap.Int("attempts", len(inv.attempts)),
		zap.Duration("elapsed", evt.Dur),
		zap.Error(inv.lastErr))

	return status.FetchResult{Diagnostics: ref}
}

// deliverDiagnostics runs the single per-invocation delivery. The attempt is
// detached from the invocation context so an exhausted fetch budget cannot
// starve it; an explicitly canceled invocation skips delivery instead of
// alerting operators about its own shutdown.
func (p *Pipeline) deliverDiagnostics(ctx context.Context, inv *invocation) *status.ArtifactRef {
	if errors.Is(ctx.Err(), context.Canceled) {
		p.logger.Debug("invocation canceled, skipping diagnostics",
			zap.String("invocation_id", inv.id.String()),
			zap.String("identifier", inv.identifier))
		return nil
	}
	diagCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), diagnosticsTimeout)
	defer cancel()
	return p.reporter.Report(diagCtx, inv.identifier, inv.capture)
}

func (p *Pipeline) recordAttempt(inv *invocation, method status.Method, proxyURL string, res status.TierResult, dur time.Duration) {
	inv.attempts = append(inv.attempts, status.AttemptRecord{
		Method:   method,
		Proxy:    proxyURL,
		Outcome:  res.Outcome,
		Duration: dur,
	})
	inv.lastMethod = method
	inv.lastOutcome = res.Outcome
	if res.Err != nil {
		inv.lastErr = res.Err
	}
	if res.Capture != nil {
		inv.capture = res.Capture
	}

	evt := inv.event(track.StageAttemptDone, p.clock.Now())
	evt.Method = method
	evt.Outcome = res.Outcome
	evt.Proxy = proxyURL
	evt.Records = len(res.Statuses)
	evt.Dur = dur
	evt.Note = errText(res.Err)
	p.emit(evt)
}

func (p *Pipeline) publishOutcome(ctx context.Context, inv *invocation, records []status.Record) {
	if p.publisher == nil || p.cfg.PublisherTopic == "" {
		return
	}
	evt := OutcomeEvent{
		InvocationID: inv.id.String(),
		Identifier:   inv.identifier,
		Outcome:      string(status.OutcomeSuccess),
		Method:       string(inv.lastMethod),
		Attempts:     len(inv.attempts),
		CheckedAt:    p.clock.Now().UTC(),
	}
	if len(records) > 0 {
		latest := records[len(records)-1]
		evt.Latest = &LatestStatus{Name: latest.Name, TimestampMillis: latest.TimestampMillis}
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.PublisherTopic, evt); err != nil {
		p.logger.Warn("outcome publish failed",
			zap.String("invocation_id", inv.id.String()),
			zap.String("identifier", inv.identifier),
			zap.Error(err))
	}
}

func (p *Pipeline) emit(evt track.Event) {
	if p.emitter != nil {
		p.emitter.Emit(evt)
	}
}

// invocation is the per-run bookkeeping. It is confined to one goroutine.
type invocation struct {
	id          uuid.UUID
	identifier  string
	started     time.Time
	attempts    []status.AttemptRecord
	capture     *status.Capture
	lastMethod  status.Method
	lastOutcome status.Outcome
	lastErr     error
}

func (inv *invocation) event(stage track.Stage, now time.Time) track.Event {
	return track.Event{
		InvocationID: track.UUIDToBytes(inv.id),
		TS:           now,
		Stage:        stage,
		Identifier:   inv.identifier,
		Attempts:     len(inv.attempts),
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
