package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Amumug/epicenter/internal/capture"
	"github.com/Amumug/epicenter/internal/recorder"
	"github.com/Amumug/epicenter/internal/status"
)

var (
	recordDevice string
	recordOutput string
	recordRate   int
)

var recordCmd = &cobra.Command{
	Use:   "record [recording-id]",
	Short: "Record audio until interrupted and save it as WAV",
	Long: `Record from the configured capture device until Ctrl+C, then write
the captured audio as a WAV file into the output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recordingID := args[0]

		engine, err := newEngine(cfg.Audio.Engine)
		if err != nil {
			return err
		}
		defer engine.Terminate()

		rec := recorder.New(recorder.Config{
			Engine:  engine,
			Devices: engine,
			Files:   capture.OSFileStore{},
			Status:  status.LogSink{Log: log},
			Logger:  log,
		})

		deviceID := recordDevice
		if deviceID == "" {
			deviceID = cfg.Audio.DeviceID
		}
		sampleRate := recordRate
		if sampleRate == 0 {
			sampleRate = cfg.Audio.SampleRate
		}
		outputDir := recordOutput
		if outputDir == "" {
			outputDir = cfg.Output.Directory
		}

		ctx := context.Background()
		outcome, err := rec.Start(ctx, recorder.StartOptions{
			RecordingID:  recordingID,
			DeviceID:     deviceID,
			OutputFolder: outputDir,
			SampleRate:   sampleRate,
		})
		if err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}

		if outcome.Fallback {
			log.Warn().
				Str("device", outcome.DeviceID).
				Str("reason", outcome.Reason.String()).
				Msg("Preferred device not used")
		}
		log.Info().Str("recording_id", recordingID).Msg("Recording... press Ctrl+C to stop")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		audio, err := rec.Stop(ctx)
		if err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}

		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		path := filepath.Join(outputDir, recordingID+".wav")
		if err := os.WriteFile(path, audio, 0644); err != nil {
			return fmt.Errorf("failed to write recording: %w", err)
		}

		log.Info().Str("path", path).Int("bytes", len(audio)).Msg("Recording saved")
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVarP(&recordDevice, "device", "d", "", "preferred capture device (overrides config)")
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "output directory (overrides config)")
	recordCmd.Flags().IntVarP(&recordRate, "sample-rate", "r", 0, "sample rate in Hz (overrides config)")
}
