package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Amumug/epicenter/internal/capture"
	"github.com/Amumug/epicenter/internal/config"
	"github.com/Amumug/epicenter/internal/logging"
)

var (
	cfg     *config.Config
	cfgFile string
	verbose bool
	log     zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "epicenter",
	Short: "Local audio recording session manager",
	Long: `Epicenter records audio from a local capture device and materializes
it as a standard WAV file, with graceful fallback when the preferred
device is unavailable.

It can be driven from the command line, from the system tray, or over a
localhost HTTP API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		log = logging.NewWithLevel(level)
		return nil
	},
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s)", Version, Commit)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the platform config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trayCmd)
}

// engineTerminator is implemented by both capture backends.
type engineTerminator interface {
	capture.Engine
	capture.Enumerator
	Terminate() error
}

// newEngine builds the configured capture backend. Both backends also
// enumerate devices.
func newEngine(name string) (engineTerminator, error) {
	switch name {
	case "", "portaudio":
		return capture.NewPortAudioEngine()
	case "malgo", "miniaudio":
		return capture.NewMalgoEngine()
	default:
		return nil, fmt.Errorf("unknown capture engine %q (want portaudio or malgo)", name)
	}
}
