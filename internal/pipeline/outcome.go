package pipeline

import "time"

// OutcomeEvent is the payload published to the outcome topic after a
// successful invocation. Downstream consumers subscribe to it instead of
// polling the service.
type OutcomeEvent struct {
	InvocationID string        `json:"invocation_id"`
	Identifier   string        `json:"identifier"`
	Outcome      string        `json:"outcome"`
	Method       string        `json:"method,omitempty"`
	Attempts     int           `json:"attempts"`
	Latest       *LatestStatus `json:"latest,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`
}

// LatestStatus carries the most recent record at publish time.
type LatestStatus struct {
	Name            string `json:"name"`
	TimestampMillis int64  `json:"timestamp_millis"`
}
