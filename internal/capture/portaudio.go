package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/Amumug/epicenter/internal/wav"
)

const framesPerBuffer = 512

// PortAudioEngine captures mono float32 audio into memory via PortAudio.
// StopCapture returns the raw-PCM branch of StopResult.
type PortAudioEngine struct {
	mu          sync.Mutex
	stream      *portaudio.Stream
	buf         []float32
	recorded    []float32
	recordingID string
	sampleRate  int
	done        chan struct{}
	stopped     chan struct{}
}

// NewPortAudioEngine initializes PortAudio. Call Terminate when the
// process is done with audio entirely.
func NewPortAudioEngine() (*PortAudioEngine, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudioEngine{}, nil
}

// Terminate releases the PortAudio runtime.
func (e *PortAudioEngine) Terminate() error {
	return portaudio.Terminate()
}

func (e *PortAudioEngine) InitSession(ctx context.Context, opts SessionOpts) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream != nil {
		return fmt.Errorf("session %q is still open", e.recordingID)
	}

	dev, err := findInputDevice(opts.DeviceID)
	if err != nil {
		return err
	}

	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}

	buf := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}, buf)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	e.stream = stream
	e.buf = buf
	e.recorded = nil
	e.recordingID = opts.RecordingID
	e.sampleRate = sampleRate
	return nil
}

func (e *PortAudioEngine) BeginCapture(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil {
		return fmt.Errorf("no session initialized")
	}
	if err := e.stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	e.done = make(chan struct{})
	e.stopped = make(chan struct{})
	go e.readLoop(e.done, e.stopped)
	return nil
}

func (e *PortAudioEngine) readLoop(done, stopped chan struct{}) {
	defer close(stopped)
	for {
		select {
		case <-done:
			return
		default:
		}

		if err := e.stream.Read(); err != nil {
			return
		}
		chunk := make([]float32, len(e.buf))
		copy(chunk, e.buf)
		e.mu.Lock()
		e.recorded = append(e.recorded, chunk...)
		e.mu.Unlock()
	}
}

func (e *PortAudioEngine) StopCapture(ctx context.Context) (StopResult, error) {
	e.mu.Lock()
	if e.stream == nil {
		e.mu.Unlock()
		return StopResult{}, fmt.Errorf("no session initialized")
	}
	done, stopped := e.done, e.stopped
	e.mu.Unlock()

	if done != nil {
		close(done)
		<-stopped
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.done, e.stopped = nil, nil

	if err := e.stream.Stop(); err != nil {
		return StopResult{}, fmt.Errorf("failed to stop audio stream: %w", err)
	}

	samples := e.recorded
	e.recorded = nil

	return StopResult{Raw: &RawAudio{
		Samples:         samples,
		SampleRate:      e.sampleRate,
		Channels:        1,
		DurationSeconds: wav.Duration(len(samples), e.sampleRate, 1),
	}}, nil
}

func (e *PortAudioEngine) CloseSession(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil {
		return nil
	}
	err := e.stream.Close()
	e.stream = nil
	e.recordingID = ""
	if err != nil {
		return fmt.Errorf("failed to close audio stream: %w", err)
	}
	return nil
}

func (e *PortAudioEngine) CurrentRecordingID(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recordingID, nil
}

// ListDevices reports every host device with at least one input channel.
func (e *PortAudioEngine) ListDevices(ctx context.Context) ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultDevice, _ := portaudio.DefaultInputDevice()

	result := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, Device{
				ID:      d.Name,
				Name:    d.Name,
				Default: defaultDevice != nil && d.Index == defaultDevice.Index,
			})
		}
	}
	return result, nil
}

func findInputDevice(deviceID string) (*portaudio.DeviceInfo, error) {
	if deviceID == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == deviceID {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", deviceID)
}
