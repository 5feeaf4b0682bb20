package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ovsienko/statusgate/internal/status"
	"github.com/ovsienko/statusgate/internal/track"
)

func TestMetricsSinkBalancesInflightGauge(t *testing.T) {
	sink := NewMetricsSink()

	first := track.UUIDToBytes(uuid.New())
	second := track.UUIDToBytes(uuid.New())
	now := time.Now()

	before := gaugeValue(t, "statusgate_inflight_invocations")

	require.NoError(t, sink.Consume(context.Background(), []track.Event{
		{InvocationID: first, Stage: track.StageInvocationStart, Identifier: "a", TS: now},
		{InvocationID: first, Stage: track.StageInvocationStart, Identifier: "a", TS: now},
		{InvocationID: second, Stage: track.StageInvocationStart, Identifier: "b", TS: now},
	}))
	require.Equal(t, before+2, gaugeValue(t, "statusgate_inflight_invocations"))

	require.NoError(t, sink.Consume(context.Background(), []track.Event{
		{InvocationID: first, Stage: track.StageInvocationDone, Identifier: "a", TS: now},
		{InvocationID: second, Stage: track.StageInvocationError, Identifier: "b", TS: now},
		{
			InvocationID: second,
			Stage:        track.StageAttemptDone,
			Identifier:   "b",
			Method:       status.MethodDirectHTTP,
			Outcome:      status.OutcomeNetworkError,
			Dur:          50 * time.Millisecond,
			TS:           now,
		},
	}))
	require.Equal(t, before, gaugeValue(t, "statusgate_inflight_invocations"))
}

func TestInvocationTrackerDedupes(t *testing.T) {
	t.Parallel()

	tracker := newInvocationTracker()
	id := track.UUIDToBytes(uuid.New())

	require.True(t, tracker.start(id))
	require.False(t, tracker.start(id))
	require.True(t, tracker.complete(id))
	require.False(t, tracker.complete(id))
}

func gaugeValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			return m.GetGauge().GetValue()
		}
	}
	return 0
}
