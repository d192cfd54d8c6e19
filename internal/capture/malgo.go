package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/Amumug/epicenter/internal/wav"
)

// MalgoEngine captures float32 audio via miniaudio and writes the
// finished recording to disk itself. StopCapture returns the file-path
// branch of StopResult.
type MalgoEngine struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext

	device *malgo.Device

	// pcmMu guards pcm alone: the data callback runs on the audio
	// thread while StopCapture holds mu waiting for the device to stop.
	pcmMu        sync.Mutex
	pcm          []byte
	recordingID  string
	outputFolder string
	sampleRate   int
	channels     int
}

func NewMalgoEngine() (*MalgoEngine, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	return &MalgoEngine{ctx: mctx}, nil
}

// Terminate releases the miniaudio context.
func (e *MalgoEngine) Terminate() error {
	if e.ctx == nil {
		return nil
	}
	err := e.ctx.Uninit()
	e.ctx.Free()
	e.ctx = nil
	return err
}

func (e *MalgoEngine) InitSession(ctx context.Context, opts SessionOpts) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.device != nil {
		return fmt.Errorf("session %q is still open", e.recordingID)
	}

	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)

	if opts.DeviceID != "" {
		info, err := e.findDevice(opts.DeviceID)
		if err != nil {
			return err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	e.pcmMu.Lock()
	e.pcm = nil
	e.pcmMu.Unlock()
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, framecount uint32) {
			chunk := make([]byte, len(input))
			copy(chunk, input)
			e.pcmMu.Lock()
			e.pcm = append(e.pcm, chunk...)
			e.pcmMu.Unlock()
		},
	}

	dev, err := malgo.InitDevice(e.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	e.device = dev
	e.recordingID = opts.RecordingID
	e.outputFolder = opts.OutputFolder
	e.sampleRate = sampleRate
	e.channels = 1
	return nil
}

func (e *MalgoEngine) BeginCapture(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.device == nil {
		return fmt.Errorf("no session initialized")
	}
	if err := e.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (e *MalgoEngine) StopCapture(ctx context.Context) (StopResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.device == nil {
		return StopResult{}, fmt.Errorf("no session initialized")
	}
	if err := e.device.Stop(); err != nil {
		return StopResult{}, fmt.Errorf("failed to stop capture device: %w", err)
	}

	e.pcmMu.Lock()
	samples := bytesToFloat32(e.pcm)
	e.pcm = nil
	e.pcmMu.Unlock()

	folder := e.outputFolder
	if folder == "" {
		folder = os.TempDir()
	}
	if err := os.MkdirAll(folder, 0755); err != nil {
		return StopResult{}, fmt.Errorf("failed to create output folder: %w", err)
	}

	path := filepath.Join(folder, e.recordingID+".wav")
	if err := os.WriteFile(path, wav.Encode(samples, e.sampleRate, e.channels), 0644); err != nil {
		return StopResult{}, fmt.Errorf("failed to write recording file: %w", err)
	}

	return StopResult{FilePath: path}, nil
}

func (e *MalgoEngine) CloseSession(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.device == nil {
		return nil
	}
	e.device.Uninit()
	e.device = nil
	e.recordingID = ""
	return nil
}

func (e *MalgoEngine) CurrentRecordingID(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recordingID, nil
}

// ListDevices reports the capture devices miniaudio exposes.
func (e *MalgoEngine) ListDevices(ctx context.Context) ([]Device, error) {
	infos, err := e.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			ID:      info.Name(),
			Name:    info.Name(),
			Default: info.IsDefault > 0,
		})
	}
	return devices, nil
}

func (e *MalgoEngine) findDevice(name string) (*malgo.DeviceInfo, error) {
	infos, err := e.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for i := range infos {
		if infos[i].Name() == name {
			return &infos[i], nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

// bytesToFloat32 reinterprets little-endian float32 PCM bytes as samples.
// A trailing partial sample, if the driver ever produces one, is dropped.
func bytesToFloat32(data []byte) []float32 {
	samples := make([]float32, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		bits := binary.LittleEndian.Uint32(data[i:])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
