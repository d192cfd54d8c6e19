package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Audio    AudioConfig  `mapstructure:"audio" yaml:"audio"`
	Server   ServerConfig `mapstructure:"server" yaml:"server"`
	Output   OutputConfig `mapstructure:"output" yaml:"output"`
	Hotkey   string       `mapstructure:"hotkey" yaml:"hotkey"`
	LogLevel string       `mapstructure:"log_level" yaml:"log_level"`
}

type AudioConfig struct {
	// DeviceID is the preferred capture device; empty means no preference.
	DeviceID   string `mapstructure:"device_id" yaml:"device_id"`
	SampleRate int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	// Engine selects the capture backend: "portaudio" or "malgo".
	Engine string `mapstructure:"engine" yaml:"engine"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

func defaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			DeviceID:   "",
			SampleRate: 16000,
			Engine:     "portaudio",
		},
		Server: ServerConfig{
			Port: 18765,
		},
		Output: OutputConfig{
			Directory: filepath.Join(os.Getenv("HOME"), "Recordings"),
		},
		Hotkey:   "ctrl+shift+r",
		LogLevel: "info",
	}
}

// Load reads the YAML config at path, or falls back to defaults when the
// file does not exist. An empty path resolves to the platform default
// location. EPICENTER_* environment variables override file values, with
// dots in nested keys mapped to underscores (audio.sample_rate becomes
// EPICENTER_AUDIO_SAMPLE_RATE).
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	defaults := defaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("EPICENTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a viper-side default so env lookups see it.
	v.SetDefault("audio.device_id", defaults.Audio.DeviceID)
	v.SetDefault("audio.sample_rate", defaults.Audio.SampleRate)
	v.SetDefault("audio.engine", defaults.Audio.Engine)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("output.directory", defaults.Output.Directory)
	v.SetDefault("hotkey", defaults.Hotkey)
	v.SetDefault("log_level", defaults.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// DefaultPath returns the platform-specific config file path.
func DefaultPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "epicenter", "config.yaml")
}
