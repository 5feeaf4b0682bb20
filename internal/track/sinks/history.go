package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ovsienko/statusgate/internal/history"
	"github.com/ovsienko/statusgate/internal/track"
)

// HistorySink persists one summary row per finished invocation via a
// history.Store. Attempt-level events pass through without writes.
type HistorySink struct {
	store  history.Store
	logger *zap.Logger
}

// NewHistorySink constructs a HistorySink for the provided store.
func NewHistorySink(store history.Store, logger *zap.Logger) *HistorySink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistorySink{store: store, logger: logger}
}

// Consume writes a row for each finished invocation in the batch. It respects
// ctx deadlines and returns any store errors verbatim.
func (s *HistorySink) Consume(ctx context.Context, batch []track.Event) error {
	if s == nil || s.store == nil {
		return nil
	}
	for _, evt := range batch {
		var result string
		switch evt.Stage {
		case track.StageInvocationDone:
			result = history.ResultSuccess
		case track.StageInvocationError:
			result = history.ResultFailure
		default:
			continue
		}

		inv := history.Invocation{
			ID:         evt.InvocationUUID().String(),
			Identifier: evt.Identifier,
			Result:     result,
			Method:     string(evt.Method),
			Outcome:    string(evt.Outcome),
			Attempts:   evt.Attempts,
			Duration:   evt.Dur,
			Note:       evt.Note,
			At:         evt.TS,
		}
		if err := s.store.RecordInvocation(ctx, inv); err != nil {
			return fmt.Errorf("record invocation: %w", err)
		}
	}
	return nil
}

// Close implements the Sink interface; the store's lifecycle belongs to the
// application container, not the sink.
func (s *HistorySink) Close(context.Context) error {
	return nil
}
