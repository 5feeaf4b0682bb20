package history

import "context"

// NoopStore drops every invocation summary. It backs deployments that run
// without a database.
type NoopStore struct{}

// NewNoop returns a Store that discards everything.
func NewNoop() *NoopStore {
	return &NoopStore{}
}

// RecordInvocation implements Store; it performs no action.
func (*NoopStore) RecordInvocation(context.Context, Invocation) error {
	return nil
}

// ListInvocations implements Store; it never has anything to return.
func (*NoopStore) ListInvocations(context.Context, ListFilter) ([]Invocation, error) {
	return nil, nil
}

// Close implements Store; it performs no action.
func (*NoopStore) Close() {}
