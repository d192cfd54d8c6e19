package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Amumug/epicenter/internal/capture"
	"github.com/Amumug/epicenter/internal/hotkey"
	"github.com/Amumug/epicenter/internal/recorder"
	"github.com/Amumug/epicenter/internal/tray"
)

var trayCmd = &cobra.Command{
	Use:   "tray",
	Short: "Run the system tray recorder",
	Long: `Run the recorder as a system tray application with a global hotkey
for toggling recording.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine(cfg.Audio.Engine)
		if err != nil {
			return err
		}
		defer engine.Terminate()

		ui := tray.New(nil, engine, cfg, log)
		rec := recorder.New(recorder.Config{
			Engine:  engine,
			Devices: engine,
			Files:   capture.OSFileStore{},
			Status:  ui,
			Logger:  log,
		})
		ui.SetRecorder(rec)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if cfg.Hotkey != "" {
			hk := hotkey.NewManager(ui.Toggle)
			if err := hk.Start(ctx, cfg.Hotkey); err != nil {
				log.Warn().Err(err).Str("hotkey", cfg.Hotkey).Msg("Global hotkey unavailable")
			} else {
				defer hk.Stop()
				log.Info().Str("hotkey", cfg.Hotkey).Msg("Global hotkey registered")
			}
		}

		// systray requires the main thread.
		return ui.Run(ctx)
	},
}
