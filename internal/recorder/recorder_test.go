package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Amumug/epicenter/internal/capture"
	"github.com/Amumug/epicenter/internal/device"
	"github.com/Amumug/epicenter/internal/status"
)

// Mock implementations for testing

type mockEngine struct {
	initErr  error
	beginErr error
	stopErr  error
	closeErr error
	idErr    error

	stopResult  capture.StopResult
	recordingID string
	sessionOpen bool

	initCalls  int
	beginCalls int
	stopCalls  int
	closeCalls int

	lastOpts capture.SessionOpts
}

func (m *mockEngine) InitSession(ctx context.Context, opts capture.SessionOpts) error {
	m.initCalls++
	m.lastOpts = opts
	if m.initErr != nil {
		return m.initErr
	}
	// Same guard as the real backends: one session at a time.
	if m.sessionOpen {
		return errors.New("session is still open")
	}
	m.sessionOpen = true
	m.recordingID = opts.RecordingID
	return nil
}

func (m *mockEngine) BeginCapture(ctx context.Context) error {
	m.beginCalls++
	return m.beginErr
}

func (m *mockEngine) StopCapture(ctx context.Context) (capture.StopResult, error) {
	m.stopCalls++
	if m.stopErr != nil {
		return capture.StopResult{}, m.stopErr
	}
	return m.stopResult, nil
}

func (m *mockEngine) CloseSession(ctx context.Context) error {
	m.closeCalls++
	m.sessionOpen = false
	m.recordingID = ""
	return m.closeErr
}

func (m *mockEngine) CurrentRecordingID(ctx context.Context) (string, error) {
	if m.idErr != nil {
		return "", m.idErr
	}
	return m.recordingID, nil
}

type mockEnumerator struct {
	devices []capture.Device
	err     error
}

func (m *mockEnumerator) ListDevices(ctx context.Context) ([]capture.Device, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.devices, nil
}

type mockFiles struct {
	contents map[string][]byte
	readErr  error

	removed []string
	rmErr   error
}

func (m *mockFiles) ReadFile(path string) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.contents[path], nil
}

func (m *mockFiles) Remove(path string) error {
	m.removed = append(m.removed, path)
	return m.rmErr
}

func twoDevices() *mockEnumerator {
	return &mockEnumerator{devices: []capture.Device{
		{ID: "d1", Name: "Built-in Microphone", Default: true},
		{ID: "d2", Name: "USB Microphone"},
	}}
}

func newTestRecorder(engine *mockEngine, devices *mockEnumerator, files *mockFiles) *Recorder {
	if files == nil {
		files = &mockFiles{}
	}
	return New(Config{
		Engine:  engine,
		Devices: devices,
		Files:   files,
		Logger:  zerolog.Nop(),
	})
}

func TestStartWithPreferredDevice(t *testing.T) {
	engine := &mockEngine{}
	rec := newTestRecorder(engine, twoDevices(), nil)

	outcome, err := rec.Start(context.Background(), StartOptions{
		RecordingID: "rec-1",
		DeviceID:    "d2",
		SampleRate:  16000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Fallback {
		t.Error("expected preferred device to be used as-is")
	}
	if outcome.DeviceID != "d2" {
		t.Errorf("expected d2, got %q", outcome.DeviceID)
	}
	if engine.lastOpts.DeviceID != "d2" {
		t.Errorf("engine should be bound to d2, got %q", engine.lastOpts.DeviceID)
	}
	if rec.State() != Recording {
		t.Errorf("expected Recording state, got %v", rec.State())
	}
}

func TestStartFallsBackWhenPreferredMissing(t *testing.T) {
	engine := &mockEngine{}
	rec := newTestRecorder(engine, twoDevices(), nil)

	outcome, err := rec.Start(context.Background(), StartOptions{
		RecordingID: "rec-1",
		DeviceID:    "gone",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !outcome.Fallback || outcome.Reason != device.PreferredUnavailable {
		t.Errorf("expected PreferredUnavailable fallback, got %+v", outcome)
	}
	if outcome.DeviceID != "d1" {
		t.Errorf("expected fallback to first device d1, got %q", outcome.DeviceID)
	}
}

func TestStartFailsWithNoDevices(t *testing.T) {
	engine := &mockEngine{}
	rec := newTestRecorder(engine, &mockEnumerator{}, nil)

	_, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-1"})

	var noDevices *device.NoDevicesError
	if !errors.As(err, &noDevices) {
		t.Fatalf("expected NoDevicesError, got %v", err)
	}
	if rec.State() != Idle {
		t.Errorf("expected Idle after failed start, got %v", rec.State())
	}
	if engine.initCalls != 0 {
		t.Error("engine init should not be attempted without a device")
	}
}

func TestStartAbortsWhenInitFails(t *testing.T) {
	engine := &mockEngine{initErr: errors.New("device busy")}
	rec := newTestRecorder(engine, twoDevices(), nil)

	_, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-1"})

	var engErr *EngineError
	if !errors.As(err, &engErr) {
		t.Fatalf("expected EngineError, got %v", err)
	}
	if engErr.Phase != PhaseInit {
		t.Errorf("expected init phase, got %q", engErr.Phase)
	}
	if engine.beginCalls != 0 {
		t.Error("begin-capture should not be issued after a failed init")
	}
	if engine.closeCalls != 0 {
		t.Error("a session that never initialized should not be closed")
	}
	if rec.State() != Idle {
		t.Errorf("expected Idle after failed start, got %v", rec.State())
	}
}

func TestStartAbortsWhenBeginCaptureFails(t *testing.T) {
	engine := &mockEngine{beginErr: errors.New("stream refused")}
	rec := newTestRecorder(engine, twoDevices(), nil)

	_, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-1"})

	var engErr *EngineError
	if !errors.As(err, &engErr) {
		t.Fatalf("expected EngineError, got %v", err)
	}
	if engErr.Phase != PhaseStart {
		t.Errorf("expected start phase, got %q", engErr.Phase)
	}
	if engine.closeCalls != 1 {
		t.Errorf("the initialized session must be closed, close calls = %d", engine.closeCalls)
	}
	if rec.State() != Idle {
		t.Errorf("expected Idle after failed start, got %v", rec.State())
	}
}

func TestStartRecoversAfterBeginCaptureFailure(t *testing.T) {
	engine := &mockEngine{beginErr: errors.New("stream refused")}
	rec := newTestRecorder(engine, twoDevices(), nil)

	if _, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-1"}); err == nil {
		t.Fatal("expected first start to fail")
	}

	engine.beginErr = nil
	if _, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-2"}); err != nil {
		t.Fatalf("start after a transient begin failure should succeed, got %v", err)
	}
	if rec.State() != Recording {
		t.Errorf("expected Recording state, got %v", rec.State())
	}
}

func TestStartWhileRecordingFailsFast(t *testing.T) {
	engine := &mockEngine{}
	rec := newTestRecorder(engine, twoDevices(), nil)

	if _, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-2"})
	if !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("expected ErrAlreadyRecording, got %v", err)
	}
	if engine.initCalls != 1 {
		t.Errorf("second start must not reach the engine, init calls = %d", engine.initCalls)
	}
}

func TestStopEncodesRawSamples(t *testing.T) {
	samples := []float32{0.1, 0.2, 0.3, 0.4}
	engine := &mockEngine{stopResult: capture.StopResult{Raw: &capture.RawAudio{
		Samples:         samples,
		SampleRate:      16000,
		Channels:        1,
		DurationSeconds: 0.00025,
	}}}
	rec := newTestRecorder(engine, twoDevices(), nil)

	if _, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	audio, err := rec.Stop(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(audio) != 44+len(samples)*4 {
		t.Fatalf("expected %d WAV bytes, got %d", 44+len(samples)*4, len(audio))
	}
	if string(audio[0:4]) != "RIFF" {
		t.Error("expected stop result to be a WAV buffer")
	}
	if rate := binary.LittleEndian.Uint32(audio[24:]); rate != 16000 {
		t.Errorf("expected sample rate 16000 in header, got %d", rate)
	}
	if rec.State() != Idle {
		t.Errorf("expected Idle after stop completes, got %v", rec.State())
	}
}

func TestStopReadsEngineWrittenFile(t *testing.T) {
	fileBytes := []byte("RIFFxxxxWAVEdata")
	engine := &mockEngine{stopResult: capture.StopResult{FilePath: "/tmp/rec-1.wav"}}
	files := &mockFiles{contents: map[string][]byte{"/tmp/rec-1.wav": fileBytes}}
	rec := newTestRecorder(engine, twoDevices(), files)

	if _, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	audio, err := rec.Stop(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != string(fileBytes) {
		t.Error("expected file contents to be returned verbatim")
	}
}

func TestStopSurvivesCloseFailure(t *testing.T) {
	engine := &mockEngine{
		stopResult: capture.StopResult{Raw: &capture.RawAudio{
			Samples: []float32{0.5}, SampleRate: 16000, Channels: 1,
		}},
		closeErr: errors.New("close failed"),
	}
	rec := newTestRecorder(engine, twoDevices(), nil)

	if _, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	audio, err := rec.Stop(context.Background())
	if err != nil {
		t.Fatalf("close failure must not flip the stop result, got %v", err)
	}
	if len(audio) == 0 {
		t.Error("expected audio despite close failure")
	}
	if rec.State() != Idle {
		t.Errorf("expected Idle even when close fails, got %v", rec.State())
	}
}

func TestStopSurfacesEngineStopFailure(t *testing.T) {
	engine := &mockEngine{stopErr: errors.New("driver fault")}
	rec := newTestRecorder(engine, twoDevices(), nil)

	if _, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := rec.Stop(context.Background())
	var engErr *EngineError
	if !errors.As(err, &engErr) {
		t.Fatalf("expected EngineError, got %v", err)
	}
	if engErr.Phase != PhaseStop {
		t.Errorf("expected stop phase, got %q", engErr.Phase)
	}
	if engine.closeCalls != 1 {
		t.Error("close should still be attempted best-effort")
	}
}

func TestStopSurfacesFileReadFailure(t *testing.T) {
	engine := &mockEngine{stopResult: capture.StopResult{FilePath: "/tmp/rec-1.wav"}}
	files := &mockFiles{readErr: errors.New("permission denied")}
	rec := newTestRecorder(engine, twoDevices(), files)

	if _, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	audio, err := rec.Stop(context.Background())
	if err == nil {
		t.Fatal("expected a file read failure to surface")
	}
	if audio != nil {
		t.Error("no partial blob should be returned on a read failure")
	}
}

func TestStopWithoutRecording(t *testing.T) {
	rec := newTestRecorder(&mockEngine{}, twoDevices(), nil)

	if _, err := rec.Stop(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
}

func TestCancelWithNoActiveRecording(t *testing.T) {
	engine := &mockEngine{}
	rec := newTestRecorder(engine, twoDevices(), nil)

	got, err := rec.Cancel(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != NoRecording {
		t.Errorf("expected NoRecording, got %v", got)
	}
	if engine.stopCalls != 0 || engine.closeCalls != 0 {
		t.Error("cancel with no active recording must not touch engine state")
	}
}

func TestCancelDeletesEngineWrittenFile(t *testing.T) {
	engine := &mockEngine{stopResult: capture.StopResult{FilePath: "/tmp/rec-1.wav"}}
	files := &mockFiles{}
	rec := newTestRecorder(engine, twoDevices(), files)

	if _, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := rec.Cancel(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != CancelDone {
		t.Errorf("expected CancelDone, got %v", got)
	}
	if len(files.removed) != 1 || files.removed[0] != "/tmp/rec-1.wav" {
		t.Errorf("expected the engine-written file to be deleted, removed=%v", files.removed)
	}
	if rec.State() != Idle {
		t.Errorf("expected Idle after cancel, got %v", rec.State())
	}
}

func TestCancelSwallowsCleanupFailures(t *testing.T) {
	engine := &mockEngine{
		stopResult: capture.StopResult{FilePath: "/tmp/rec-1.wav"},
		closeErr:   errors.New("close failed"),
	}
	files := &mockFiles{rmErr: errors.New("delete failed")}
	rec := newTestRecorder(engine, twoDevices(), files)

	if _, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := rec.Cancel(context.Background())
	if err != nil {
		t.Fatalf("cleanup failures must not fail the cancel, got %v", err)
	}
	if got != CancelDone {
		t.Errorf("expected CancelDone, got %v", got)
	}
}

func TestCancelSurfacesRecordingCheckFailure(t *testing.T) {
	engine := &mockEngine{idErr: errors.New("transport down")}
	rec := newTestRecorder(engine, twoDevices(), nil)

	if _, err := rec.Cancel(context.Background()); err == nil {
		t.Fatal("expected the recording-id check failure to surface")
	}
	if engine.stopCalls != 0 {
		t.Error("stop must not be issued when the recording check fails")
	}
}

func TestCancelAfterStopIsNoOp(t *testing.T) {
	engine := &mockEngine{stopResult: capture.StopResult{Raw: &capture.RawAudio{
		Samples: []float32{0.1}, SampleRate: 16000, Channels: 1,
	}}}
	rec := newTestRecorder(engine, twoDevices(), nil)

	if _, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := rec.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := rec.Cancel(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != NoRecording {
		t.Errorf("cancel after a completed stop should observe no recording, got %v", got)
	}
}

func TestRecorderReusableAfterStop(t *testing.T) {
	engine := &mockEngine{stopResult: capture.StopResult{Raw: &capture.RawAudio{
		Samples: []float32{0.1}, SampleRate: 16000, Channels: 1,
	}}}
	rec := newTestRecorder(engine, twoDevices(), nil)

	for _, id := range []string{"rec-1", "rec-2"} {
		if _, err := rec.Start(context.Background(), StartOptions{RecordingID: id}); err != nil {
			t.Fatalf("start %s: unexpected error: %v", id, err)
		}
		if _, err := rec.Stop(context.Background()); err != nil {
			t.Fatalf("stop %s: unexpected error: %v", id, err)
		}
	}
}

func TestStopRejectsEmptyEngineResult(t *testing.T) {
	engine := &mockEngine{} // zero StopResult: no samples, no file
	rec := newTestRecorder(engine, twoDevices(), nil)

	if _, err := rec.Start(context.Background(), StartOptions{RecordingID: "rec-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	audio, err := rec.Stop(context.Background())
	if err == nil {
		t.Fatal("expected an error for an engine result with neither samples nor a file")
	}
	if audio != nil {
		t.Errorf("expected no audio, got %d bytes", len(audio))
	}
	if engine.closeCalls != 1 {
		t.Errorf("session should still be closed, close calls = %d", engine.closeCalls)
	}
	if rec.State() != Idle {
		t.Errorf("expected Idle, got %v", rec.State())
	}
}

func TestStartNotifiesFallback(t *testing.T) {
	engine := &mockEngine{}
	var notifications []string
	rec := New(Config{
		Engine:  engine,
		Devices: twoDevices(),
		Files:   &mockFiles{},
		Status: status.Func(func(title, description string) {
			notifications = append(notifications, title)
		}),
		Logger: zerolog.Nop(),
	})

	if _, err := rec.Start(context.Background(), StartOptions{
		RecordingID: "rec-1",
		DeviceID:    "gone",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawFallback bool
	for _, title := range notifications {
		if title == "Using fallback device" {
			sawFallback = true
		}
	}
	if !sawFallback {
		t.Errorf("expected a fallback notification, got %v", notifications)
	}
}
