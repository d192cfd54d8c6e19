// Package capture defines the contracts between the recording
// orchestrator and the components that own the actual microphone-to-bytes
// pipeline, plus the PortAudio and malgo implementations of them.
package capture

import "context"

// Device is an audio input device as reported by the host.
type Device struct {
	ID      string
	Name    string
	Default bool
}

// SessionOpts binds an engine session to a device and a recording.
type SessionOpts struct {
	DeviceID    string
	RecordingID string
	// OutputFolder, when set, asks the engine to write the finished
	// recording to disk itself; StopCapture then reports a file path
	// instead of raw samples.
	OutputFolder string
	SampleRate   int
}

// RawAudio is uncompressed capture output: interleaved 32-bit float
// samples plus the parameters needed to containerize them.
type RawAudio struct {
	Samples         []float32
	SampleRate      int
	Channels        int
	DurationSeconds float64
}

// StopResult is what an engine hands back when capture ends. Exactly one
// of Raw or FilePath is set: engines that buffer in memory return Raw,
// engines that stream to disk return the path of the file they wrote.
type StopResult struct {
	Raw      *RawAudio
	FilePath string
}

// Engine drives one capture session at a time. Every call is a fallible
// suspension point; callers must await each result before issuing the
// next call.
type Engine interface {
	InitSession(ctx context.Context, opts SessionOpts) error
	BeginCapture(ctx context.Context) error
	StopCapture(ctx context.Context) (StopResult, error)
	CloseSession(ctx context.Context) error
	// CurrentRecordingID returns the id of the in-flight recording, or
	// "" when no session is active.
	CurrentRecordingID(ctx context.Context) (string, error)
}

// Enumerator lists the capture devices the host currently exposes.
type Enumerator interface {
	ListDevices(ctx context.Context) ([]Device, error)
}

// FileStore reads and removes engine-written recording files.
type FileStore interface {
	ReadFile(path string) ([]byte, error)
	Remove(path string) error
}
