package track

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ovsienko/statusgate/internal/status"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported tracking stages.
const (
	StageInvocationStart Stage = "INVOCATION_START"
	StageInvocationDone  Stage = "INVOCATION_DONE"
	StageInvocationError Stage = "INVOCATION_ERROR"
	StageAttemptDone     Stage = "ATTEMPT_DONE"
)

// Event captures a single milestone of a pipeline invocation.
type Event struct {
	// InvocationID uniquely identifies a pipeline run using the 16-byte UUID form.
	InvocationID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or attempt milestone occurred.
	Stage Stage
	// Identifier is the application identifier the invocation checks on.
	Identifier string
	// Method names the tier that produced an attempt (or the last tier tried).
	Method status.Method
	// Outcome classifies how the attempt (or the whole invocation) ended.
	Outcome status.Outcome
	// Proxy optionally carries the proxy URL a browser attempt rode through.
	Proxy string
	// Attempts counts attempts made so far within the invocation.
	Attempts int
	// Records carries the parsed record count on success.
	Records int
	// Dur captures execution latency for attempts and whole invocations.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.InvocationID == [16]byte{} {
		return errors.New("invocation id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.Identifier == "" {
		return errors.New("identifier is required")
	}
	switch e.Stage {
	case StageInvocationStart, StageInvocationDone, StageInvocationError:
	case StageAttemptDone:
		if e.Method == "" {
			return errors.New("attempt done requires method")
		}
		if e.Outcome == "" {
			return errors.New("attempt done requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// InvocationUUID converts the binary invocation ID to uuid.UUID for stores.
func (e Event) InvocationUUID() uuid.UUID {
	return uuid.UUID(e.InvocationID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
