package sinks

import (
	"context"
	"sync"

	"github.com/ovsienko/statusgate/internal/metrics"
	"github.com/ovsienko/statusgate/internal/track"
)

// MetricsSink bridges tracking events onto the service's Prometheus
// collectors. It keeps its own view of in-flight invocations so duplicate
// or out-of-order lifecycle events cannot skew the gauge.
type MetricsSink struct {
	tracker *invocationTracker
}

// NewMetricsSink initializes the shared collectors and returns the sink.
func NewMetricsSink() *MetricsSink {
	metrics.Init()
	return &MetricsSink{tracker: newInvocationTracker()}
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *MetricsSink) Consume(_ context.Context, batch []track.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *MetricsSink) consumeEvent(evt track.Event) {
	switch evt.Stage {
	case track.StageInvocationStart:
		if s.tracker.start(evt.InvocationID) {
			metrics.IncInflightInvocations()
		}
	case track.StageInvocationDone:
		metrics.ObserveInvocation("success")
		if s.tracker.complete(evt.InvocationID) {
			metrics.DecInflightInvocations()
		}
	case track.StageInvocationError:
		metrics.ObserveInvocation("failure")
		if s.tracker.complete(evt.InvocationID) {
			metrics.DecInflightInvocations()
		}
	case track.StageAttemptDone:
		metrics.ObserveAttempt(string(evt.Method), string(evt.Outcome), evt.Dur)
	}
}

// Close implements the Sink interface; it performs no action.
func (s *MetricsSink) Close(context.Context) error {
	return nil
}

type invocationTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newInvocationTracker() *invocationTracker {
	return &invocationTracker{running: make(map[[16]byte]struct{})}
}

func (t *invocationTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *invocationTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
