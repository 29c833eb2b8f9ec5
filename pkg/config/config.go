// Package config loads runtime settings from a YAML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/metalblueberry/chordsnake/pkg/audio"
	"github.com/metalblueberry/chordsnake/pkg/capture"
	"github.com/metalblueberry/chordsnake/pkg/chord"
	"github.com/metalblueberry/chordsnake/pkg/command"
)

// Defaults used when neither the file nor the environment sets a value.
const (
	DefaultFramesPerBuffer = capture.DefaultChunkSize
	DefaultLogLevel        = "info"
)

// Config holds all runtime configuration.
type Config struct {
	Audio    AudioConfig       `yaml:"audio"`
	Bindings map[string]string `yaml:"bindings" validate:"len=4,dive,keys,required,endkeys,oneof=left up down right"`
	Remote   RemoteConfig      `yaml:"remote"`
	LogLevel string            `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	Device          string        `yaml:"device"`
	FramesPerBuffer int           `yaml:"frames_per_buffer" validate:"min=64,max=16384"`
	Window          time.Duration `yaml:"window" validate:"min=100ms,max=5s"`
	SilenceDB       float64       `yaml:"silence_db" validate:"min=-60,max=0"`
	BackoffInitial  time.Duration `yaml:"backoff_initial" validate:"min=1ms"`
	BackoffMax      time.Duration `yaml:"backoff_max" validate:"gtefield=BackoffInitial"`
}

// RemoteConfig holds the optional WebSocket surface settings.
type RemoteConfig struct {
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

// Default returns the built-in configuration.
func Default() Config {
	bindings := make(map[string]string)
	for idx, d := range command.DefaultBindings() {
		e, _ := chord.At(idx)
		bindings[e.Name()] = d.String()
	}
	return Config{
		Audio: AudioConfig{
			FramesPerBuffer: DefaultFramesPerBuffer,
			Window:          audio.WindowDuration,
			SilenceDB:       command.DefaultMinLevel,
			BackoffInitial:  capture.DefaultBackoffInitial,
			BackoffMax:      capture.DefaultBackoffMax,
		},
		Bindings: bindings,
		LogLevel: DefaultLogLevel,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path (if non-empty and present), applies CHORDSNAKE_*
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Info("config file not found, using defaults", "path", path)
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		default:
			defaults := cfg.Bindings
			cfg.Bindings = nil
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
			if cfg.Bindings == nil {
				cfg.Bindings = defaults
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and that the bindings name known chords.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	_, err := c.Mapper()
	return err
}

// Mapper builds the command mapper described by the bindings and silence
// threshold.
func (c Config) Mapper() (*command.Mapper, error) {
	bindings := make(map[int]command.Direction, len(c.Bindings))
	for name, dir := range c.Bindings {
		e, err := chord.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("invalid binding: %w", err)
		}
		d, err := command.ParseDirection(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid binding for %s: %w", name, err)
		}
		if _, dup := bindings[e.Index]; dup {
			return nil, fmt.Errorf("%w: chord %s bound twice", command.ErrInvalidBindings, e.Name())
		}
		bindings[e.Index] = d
	}
	return command.NewMapper(bindings, c.Audio.SilenceDB)
}

// Capture returns the capture loop configuration. Mapper, logger and
// observer are left for the caller.
func (c Config) Capture() capture.Config {
	return capture.Config{
		SampleRate:     audio.SampleRate,
		WindowDuration: c.Audio.Window,
		ChunkSize:      c.Audio.FramesPerBuffer,
		BackoffInitial: c.Audio.BackoffInitial,
		BackoffMax:     c.Audio.BackoffMax,
	}
}

// SlogLevel converts LogLevel.
func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func applyEnv(cfg *Config) {
	cfg.Audio.Device = envStr("CHORDSNAKE_DEVICE", cfg.Audio.Device)
	cfg.Audio.FramesPerBuffer = envInt("CHORDSNAKE_FRAMES_PER_BUFFER", cfg.Audio.FramesPerBuffer)
	cfg.Audio.Window = envDuration("CHORDSNAKE_WINDOW", cfg.Audio.Window)
	cfg.Audio.SilenceDB = envFloat("CHORDSNAKE_SILENCE_DB", cfg.Audio.SilenceDB)
	cfg.Remote.Listen = envStr("CHORDSNAKE_REMOTE_LISTEN", cfg.Remote.Listen)
	cfg.LogLevel = envStr("CHORDSNAKE_LOG_LEVEL", cfg.LogLevel)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
