package status

import (
	"time"
)

// Record is a single application status entry parsed from the upstream
// endpoint. Records are immutable once parsed and keep the source order;
// the pipeline never reorders or deduplicates them.
type Record struct {
	Name            string
	TimestampMillis int64
}

// Method identifies the pipeline tier that produced an attempt.
type Method string

// Fetch methods, in escalation order.
const (
	MethodDirectHTTP     Method = "direct-http"
	MethodBrowserDirect  Method = "browser-direct"
	MethodBrowserProxied Method = "browser-proxied"
)

// Outcome classifies how a single attempt ended.
type Outcome string

// Attempt outcomes.
const (
	OutcomeSuccess          Outcome = "success"
	OutcomeChallengeTimeout Outcome = "challenge-timeout"
	OutcomeNetworkError     Outcome = "network-error"
	OutcomeParseError       Outcome = "parse-error"
)

// AttemptRecord captures one attempt for bookkeeping within a single
// pipeline invocation. It is never shared across invocations.
type AttemptRecord struct {
	Method   Method
	Proxy    string
	Outcome  Outcome
	Duration time.Duration
}

// Capture holds the diagnostic evidence a browser attempt collected before
// failing. Screenshot bytes live in memory only and are discarded after the
// reporter delivers them.
type Capture struct {
	Screenshot []byte
	PageTitle  string
	PageURL    string
}

// ArtifactRef points at a delivered diagnostics artifact.
type ArtifactRef struct {
	ID   string
	Kind string
}

// FetchResult is the pipeline's sole output: a complete, freshly parsed
// status list on success, or nothing plus an optional diagnostics reference
// on failure. Partial results are never returned.
type FetchResult struct {
	Statuses    []Record
	Diagnostics *ArtifactRef
}

// Succeeded reports whether the pipeline produced a status list.
func (r FetchResult) Succeeded() bool {
	return len(r.Statuses) > 0
}

// Kind tags a tier result so the orchestrator can dispatch on it instead of
// inspecting errors.
type Kind int

// Tier result kinds.
const (
	KindSuccess Kind = iota
	KindRetryable
	KindTerminal
)

// TierResult is what every tier returns: success with statuses, a retryable
// failure that tells the orchestrator to escalate, or a terminal failure.
type TierResult struct {
	Kind     Kind
	Statuses []Record
	Outcome  Outcome
	Err      error
	Capture  *Capture
}

// Success builds a successful tier result.
func Success(records []Record) TierResult {
	return TierResult{Kind: KindSuccess, Statuses: records, Outcome: OutcomeSuccess}
}

// Retry builds a retryable failure carrying its classification.
func Retry(outcome Outcome, err error) TierResult {
	return TierResult{Kind: KindRetryable, Outcome: outcome, Err: err}
}

// RetryWithCapture builds a retryable failure with diagnostic evidence.
func RetryWithCapture(outcome Outcome, err error, capture *Capture) TierResult {
	return TierResult{Kind: KindRetryable, Outcome: outcome, Err: err, Capture: capture}
}

// Terminal builds a terminal failure. Only the orchestrator produces these.
func Terminal(err error) TierResult {
	return TierResult{Kind: KindTerminal, Err: err}
}
