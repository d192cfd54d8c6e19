// Package tray is the system-tray surface for the recorder: a status
// icon, start/stop/cancel controls and a device picker.
package tray

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"github.com/Amumug/epicenter/internal/capture"
	"github.com/Amumug/epicenter/internal/config"
	"github.com/Amumug/epicenter/internal/recorder"
)

type UI struct {
	rec     *recorder.Recorder
	devices capture.Enumerator
	cfg     *config.Config
	log     zerolog.Logger

	mu       sync.Mutex
	lastPath string

	mStartStop *systray.MenuItem
	mCancel    *systray.MenuItem
	mDevices   *systray.MenuItem
	mCopyPath  *systray.MenuItem
}

func New(rec *recorder.Recorder, devices capture.Enumerator, cfg *config.Config, log zerolog.Logger) *UI {
	return &UI{
		rec:     rec,
		devices: devices,
		cfg:     cfg,
		log:     log,
	}
}

// SetRecorder wires the recorder in after construction. The UI is the
// recorder's status sink, so the two reference each other.
func (u *UI) SetRecorder(rec *recorder.Recorder) {
	u.rec = rec
}

// Notify implements status.Sink: recorder progress shows up as the tray
// tooltip.
func (u *UI) Notify(title, description string) {
	systray.SetTooltip(fmt.Sprintf("%s — %s", title, description))
}

// Run starts the tray event loop. Must run on the main thread.
func (u *UI) Run(ctx context.Context) error {
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	u.updateStatus(recorder.Idle)
	systray.SetTooltip("Local audio recorder")

	u.mStartStop = systray.AddMenuItem("Start Recording", "Start a new recording")
	u.mCancel = systray.AddMenuItem("Cancel Recording", "Discard the current recording")
	u.mCancel.Disable()
	systray.AddSeparator()

	u.mDevices = systray.AddMenuItem("Microphone", "Select audio device")
	u.buildDeviceMenu()

	systray.AddSeparator()
	u.mCopyPath = systray.AddMenuItem("Copy Last Recording Path", "Copy the path of the last saved recording")
	u.mCopyPath.Disable()

	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	go u.handleEvents(mQuit)
}

func (u *UI) handleEvents(mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mStartStop.ClickedCh:
			u.Toggle(u.rec.State() != recorder.Recording)
		case <-u.mCancel.ClickedCh:
			u.cancelRecording()
		case <-u.mCopyPath.ClickedCh:
			u.copyLastPath()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

// Toggle starts or stops a recording. It doubles as the global hotkey
// callback.
func (u *UI) Toggle(start bool) {
	if start {
		u.startRecording()
	} else {
		u.stopRecording()
	}
}

func (u *UI) startRecording() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := "rec-" + time.Now().Format("20060102-150405")
	outcome, err := u.rec.Start(ctx, recorder.StartOptions{
		RecordingID:  id,
		DeviceID:     u.selectedDevice(),
		OutputFolder: u.cfg.Output.Directory,
		SampleRate:   u.cfg.Audio.SampleRate,
	})
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to start recording")
		return
	}

	if outcome.Fallback {
		u.log.Warn().Str("device", outcome.DeviceID).Msg("Recording with fallback device")
	}

	u.updateStatus(recorder.Recording)
	u.mStartStop.SetTitle("Stop Recording")
	u.mCancel.Enable()
}

func (u *UI) stopRecording() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	audio, err := u.rec.Stop(ctx)
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to stop recording")
		u.resetControls()
		return
	}

	path, err := u.saveRecording(audio)
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to save recording")
	} else {
		u.mu.Lock()
		u.lastPath = path
		u.mu.Unlock()
		u.mCopyPath.Enable()
		u.log.Info().Str("path", path).Msg("Recording saved")
	}

	u.resetControls()
}

func (u *UI) cancelRecording() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := u.rec.Cancel(ctx); err != nil {
		u.log.Error().Err(err).Msg("Failed to cancel recording")
	}
	u.resetControls()
}

func (u *UI) resetControls() {
	u.updateStatus(recorder.Idle)
	u.mStartStop.SetTitle("Start Recording")
	u.mCancel.Disable()
}

func (u *UI) saveRecording(audio []byte) (string, error) {
	dir := u.cfg.Output.Directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "rec-"+time.Now().Format("20060102-150405")+".wav")
	if err := os.WriteFile(path, audio, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (u *UI) copyLastPath() {
	u.mu.Lock()
	path := u.lastPath
	u.mu.Unlock()

	if path == "" {
		return
	}
	if err := clipboard.WriteAll(path); err != nil {
		u.log.Error().Err(err).Msg("Failed to copy path to clipboard")
	}
}

func (u *UI) buildDeviceMenu() {
	devices, err := u.devices.ListDevices(context.Background())
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to list audio devices")
		return
	}

	// Populate the map fully before any goroutine can range over it.
	deviceItems := make(map[string]*systray.MenuItem, len(devices))
	for _, dev := range devices {
		item := u.mDevices.AddSubMenuItem(dev.Name, "")
		if dev.Default {
			item.Check()
		}
		deviceItems[dev.ID] = item
	}

	for _, dev := range devices {
		go func(deviceID, deviceName string, menuItem *systray.MenuItem) {
			for {
				<-menuItem.ClickedCh
				for id, itm := range deviceItems {
					if id != deviceID {
						itm.Uncheck()
					}
				}
				menuItem.Check()
				u.selectDevice(deviceID)
				u.log.Info().Str("device", deviceName).Msg("Changed audio device")
			}
		}(dev.ID, dev.Name, deviceItems[dev.ID])
	}
}

// selectDevice records the user's device choice for the next recording.
func (u *UI) selectDevice(deviceID string) {
	u.mu.Lock()
	u.cfg.Audio.DeviceID = deviceID
	u.mu.Unlock()
}

func (u *UI) selectedDevice() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cfg.Audio.DeviceID
}

func (u *UI) onExit() {
	// Cleanup
}

// updateStatus sets the tray title with microphone emoji and status indicator
func (u *UI) updateStatus(state recorder.State) {
	systray.SetTitle(fmt.Sprintf("🎤 %s", emojiForState(state)))
}

func emojiForState(state recorder.State) string {
	switch state {
	case recorder.Recording:
		return "🔴"
	case recorder.Initializing:
		return "🟡"
	case recorder.Idle:
		return "🟢"
	default:
		return "🟢"
	}
}
