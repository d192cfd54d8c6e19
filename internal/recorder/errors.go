package recorder

import (
	"errors"
	"fmt"
)

// ErrAlreadyRecording indicates Start was called while a recording was in
// flight. One recorder drives at most one session at a time.
var ErrAlreadyRecording = errors.New("a recording is already in progress")

// ErrNotRecording indicates Stop was called with no active recording.
var ErrNotRecording = errors.New("no recording in progress")

// Phase names the engine lifecycle call that failed.
type Phase string

const (
	PhaseInit  Phase = "init"
	PhaseStart Phase = "start"
	PhaseStop  Phase = "stop"
)

// EngineError wraps an engine-reported failure with the device and
// recording it happened on, so callers can render a specific message.
type EngineError struct {
	Phase       Phase
	DeviceID    string
	RecordingID string
	Err         error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("capture engine %s failed for device %q (recording %q): %v",
		e.Phase, e.DeviceID, e.RecordingID, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
