package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/ovsienko/statusgate/internal/track"
)

// LogSink emits structured logs for debugging tracking streams. It is useful
// during development or audits where a durable store is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []track.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("invocation_id", evt.InvocationUUID()),
			zap.String("stage", string(evt.Stage)),
			zap.String("identifier", evt.Identifier),
			zap.String("method", string(evt.Method)),
			zap.String("outcome", string(evt.Outcome)),
			zap.String("proxy", evt.Proxy),
			zap.Int("attempts", evt.Attempts),
			zap.Int("records", evt.Records),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		}
		s.logger.Info("invocation event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
