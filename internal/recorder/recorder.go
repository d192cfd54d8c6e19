// Package recorder owns the recording session lifecycle: it acquires a
// device, drives the capture engine through init/start/stop/close, and
// materializes the captured audio as WAV bytes.
package recorder

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Amumug/epicenter/internal/capture"
	"github.com/Amumug/epicenter/internal/device"
	"github.com/Amumug/epicenter/internal/status"
	"github.com/Amumug/epicenter/internal/wav"
)

// State is the recording session state.
type State int

const (
	Idle State = iota
	Initializing
	Recording
	Stopped
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Initializing:
		return "Initializing"
	case Recording:
		return "Recording"
	case Stopped:
		return "Stopped"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// CancelStatus is the outcome of a Cancel call.
type CancelStatus int

const (
	// CancelDone means an in-flight recording was cancelled and cleaned up.
	CancelDone CancelStatus = iota
	// NoRecording means there was nothing to cancel.
	NoRecording
)

// StartOptions identifies and parameterizes one recording attempt.
type StartOptions struct {
	// RecordingID correlates this Start with the later Stop or Cancel.
	RecordingID string
	// DeviceID is the caller's preferred device; empty means no preference.
	DeviceID string
	// OutputFolder is handed to engines that write their own files.
	OutputFolder string
	SampleRate   int
}

// Config wires a Recorder's collaborators.
type Config struct {
	Engine  capture.Engine
	Devices capture.Enumerator
	Files   capture.FileStore
	Status  status.Sink // optional
	Logger  zerolog.Logger
}

// Recorder is the stateful orchestrator for one recording session at a
// time. All methods are safe for concurrent use; operations run to
// completion under the session lock.
type Recorder struct {
	engine  capture.Engine
	devices capture.Enumerator
	files   capture.FileStore
	sink    status.Sink
	log     zerolog.Logger

	mu          sync.Mutex
	state       State
	recordingID string
	deviceID    string
}

func New(cfg Config) *Recorder {
	sink := cfg.Status
	if sink == nil {
		sink = status.NopSink{}
	}
	return &Recorder{
		engine:  cfg.Engine,
		devices: cfg.Devices,
		files:   cfg.Files,
		sink:    sink,
		log:     cfg.Logger,
	}
}

// Start enumerates devices, picks one, and drives the engine through
// session init and capture start. On any failure the recorder returns to
// Idle with no engine session left dangling.
func (r *Recorder) Start(ctx context.Context, opts StartOptions) (device.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Idle {
		return device.Outcome{}, ErrAlreadyRecording
	}
	r.state = Initializing

	r.sink.Notify("Starting recording", "Looking for recording devices")

	enumerated, err := r.devices.ListDevices(ctx)
	if err != nil {
		r.state = Idle
		return device.Outcome{}, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	ids := make([]string, len(enumerated))
	for i, d := range enumerated {
		ids[i] = d.ID
	}

	outcome, err := device.Acquire(ids, opts.DeviceID)
	if err != nil {
		r.state = Idle
		return device.Outcome{}, err
	}

	if outcome.Fallback {
		r.sink.Notify("Using fallback device",
			fmt.Sprintf("%s; recording with %q", outcome.Reason, outcome.DeviceID))
		r.log.Warn().
			Str("device", outcome.DeviceID).
			Str("reason", outcome.Reason.String()).
			Msg("Falling back to first enumerated device")
	} else {
		r.sink.Notify("Device connected", fmt.Sprintf("Recording with %q", outcome.DeviceID))
	}

	err = r.engine.InitSession(ctx, capture.SessionOpts{
		DeviceID:     outcome.DeviceID,
		RecordingID:  opts.RecordingID,
		OutputFolder: opts.OutputFolder,
		SampleRate:   opts.SampleRate,
	})
	if err != nil {
		r.state = Idle
		return device.Outcome{}, &EngineError{
			Phase:       PhaseInit,
			DeviceID:    outcome.DeviceID,
			RecordingID: opts.RecordingID,
			Err:         err,
		}
	}
	r.sink.Notify("Session ready", "Capture session initialized")

	if err := r.engine.BeginCapture(ctx); err != nil {
		beginErr := &EngineError{
			Phase:       PhaseStart,
			DeviceID:    outcome.DeviceID,
			RecordingID: opts.RecordingID,
			Err:         err,
		}
		// The session did initialize, so it must be closed or the
		// engine will refuse the next init.
		r.closeAndReset(ctx)
		return device.Outcome{}, beginErr
	}

	r.state = Recording
	r.recordingID = opts.RecordingID
	r.deviceID = outcome.DeviceID
	r.sink.Notify("Recording", "Capture started")
	r.log.Info().
		Str("recording_id", opts.RecordingID).
		Str("device", outcome.DeviceID).
		Msg("Recording started")

	return outcome, nil
}

// Stop ends the capture and returns the recording as WAV bytes: either
// the contents of a file the engine wrote, verbatim, or raw samples run
// through the WAV encoder. A close failure afterwards is logged and does
// not flip the result.
func (r *Recorder) Stop(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Recording {
		return nil, ErrNotRecording
	}

	result, err := r.engine.StopCapture(ctx)
	if err != nil {
		stopErr := &EngineError{
			Phase:       PhaseStop,
			DeviceID:    r.deviceID,
			RecordingID: r.recordingID,
			Err:         err,
		}
		r.closeAndReset(ctx)
		return nil, stopErr
	}

	var audio []byte
	switch {
	case result.FilePath != "":
		audio, err = r.files.ReadFile(result.FilePath)
		if err != nil {
			readErr := fmt.Errorf("failed to read recording file %q: %w", result.FilePath, err)
			r.closeAndReset(ctx)
			return nil, readErr
		}
	case result.Raw != nil:
		audio = wav.Encode(result.Raw.Samples, result.Raw.SampleRate, result.Raw.Channels)
	default:
		emptyErr := fmt.Errorf("engine returned neither samples nor a file for recording %q", r.recordingID)
		r.closeAndReset(ctx)
		return nil, emptyErr
	}

	r.state = Stopped
	r.sink.Notify("Recording stopped", "Audio captured")
	r.log.Info().
		Str("recording_id", r.recordingID).
		Int("bytes", len(audio)).
		Msg("Recording stopped")

	r.closeAndReset(ctx)
	return audio, nil
}

// Cancel discards an in-flight recording. When no recording is active it
// reports NoRecording without touching engine state. Cleanup failures
// (engine stop, file delete, session close) are logged, never surfaced;
// the only surfaced failure is the current-recording check itself.
func (r *Recorder) Cancel(ctx context.Context) (CancelStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.engine.CurrentRecordingID(ctx)
	if err != nil {
		return NoRecording, fmt.Errorf("failed to check current recording: %w", err)
	}
	if current == "" {
		return NoRecording, nil
	}

	// Stop anyway to learn whether a file was produced and needs deleting.
	result, err := r.engine.StopCapture(ctx)
	if err != nil {
		r.log.Warn().Err(err).
			Str("recording_id", current).
			Msg("Engine stop failed during cancel")
	} else if result.FilePath != "" {
		if err := r.files.Remove(result.FilePath); err != nil {
			r.log.Warn().Err(err).
				Str("path", result.FilePath).
				Msg("Failed to delete cancelled recording file")
		}
	}

	r.state = Cancelled
	r.sink.Notify("Recording cancelled", "Recording discarded")
	r.log.Info().Str("recording_id", current).Msg("Recording cancelled")

	r.closeAndReset(ctx)
	return CancelDone, nil
}

// State reports the current session state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// RecordingID reports the id of the in-flight recording, or "".
func (r *Recorder) RecordingID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recordingID
}

// closeAndReset closes the engine session best-effort and readies the
// recorder for a fresh recording id. A close failure must not block
// progress, so it is downgraded to a warning.
func (r *Recorder) closeAndReset(ctx context.Context) {
	if err := r.engine.CloseSession(ctx); err != nil {
		r.log.Warn().Err(err).
			Str("recording_id", r.recordingID).
			Msg("Failed to close capture session")
	}
	r.state = Idle
	r.recordingID = ""
	r.deviceID = ""
}
