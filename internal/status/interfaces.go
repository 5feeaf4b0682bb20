package status

import (
	"context"
	"time"
)

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces invocation IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Publisher pushes fetch-outcome events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
