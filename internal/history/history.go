// Package history persists one summary row per pipeline invocation.
package history

import (
	"context"
	"time"
)

// Invocation results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Invocation is the persisted summary of one pipeline run: who was asked
// about, how it ended, how hard the pipeline had to work. No payload data
// and no diagnostics artifacts are stored with it.
type Invocation struct {
	ID         string
	Identifier string
	Result     string
	Method     string
	Outcome    string
	Attempts   int
	Duration   time.Duration
	Note       string
	At         time.Time
}

// ListFilter narrows ListInvocations output. A zero value lists the most
// recent invocations across all results.
type ListFilter struct {
	Result string
	Limit  int
	Offset int
}

// Store records invocation summaries and serves them back for inspection.
type Store interface {
	RecordInvocation(ctx context.Context, inv Invocation) error
	ListInvocations(ctx context.Context, filter ListFilter) ([]Invocation, error)
	Close()
}
