// Package config loads gifcut settings from GIFCUT_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultPort     = 8788
	DefaultLogLevel = "info"
	DefaultDataDir  = ".gifcut"

	// DefaultServeFFmpegTimeout bounds each pass of a queued job when
	// GIFCUT_FFMPEG_TIMEOUT is unset or zero.
	DefaultServeFFmpegTimeout = 10 * time.Minute

	EnvPrefix = "GIFCUT_"

	EnvPort          = EnvPrefix + "PORT"
	EnvLogLevel      = EnvPrefix + "LOG_LEVEL"
	EnvDataDir       = EnvPrefix + "DATA_DIR"
	EnvFFmpeg        = EnvPrefix + "FFMPEG"
	EnvTempDir       = EnvPrefix + "TEMP_DIR"
	EnvFFmpegTimeout = EnvPrefix + "FFMPEG_TIMEOUT"
	EnvDoctorTimeout = EnvPrefix + "DOCTOR_TIMEOUT"

	DBFilename = "gifcut.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	OutputDir() string
	FFmpegBinary() string
	TempDir() string
	FFmpegTimeout() time.Duration
	ServeFFmpegTimeout() time.Duration
	DoctorTimeout() time.Duration
}

type settings struct {
	Port          int           `env:"PORT" envDefault:"8788"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	DataDir       string        `env:"DATA_DIR"`
	FFmpeg        string        `env:"FFMPEG"`
	TempDir       string        `env:"TEMP_DIR"`
	FFmpegTimeout time.Duration `env:"FFMPEG_TIMEOUT" envDefault:"0"`
	DoctorTimeout time.Duration `env:"DOCTOR_TIMEOUT" envDefault:"15s"`
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	s settings
}

// New parses the environment. An unparsable value, a negative ffmpeg timeout
// or a port outside 1-65535 is an error.
func New() (*EnvConfig, error) {
	var s settings
	if err := env.ParseWithOptions(&s, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if s.Port < 1 || s.Port > 65535 {
		return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
	}
	if s.FFmpegTimeout < 0 {
		return nil, fmt.Errorf("invalid %s: must not be negative", EnvFFmpegTimeout)
	}
	if s.DoctorTimeout <= 0 {
		return nil, fmt.Errorf("invalid %s: must be positive", EnvDoctorTimeout)
	}
	if s.DataDir == "" {
		s.DataDir = defaultDataDir()
	}

	return &EnvConfig{s: s}, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.s.Port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.s.LogLevel
}

func (c *EnvConfig) DataDir() string {
	return c.s.DataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.s.DataDir, DBFilename)
}

// OutputDir is where the HTTP service writes GIFs for requests without an
// explicit output path.
func (c *EnvConfig) OutputDir() string {
	return filepath.Join(c.s.DataDir, "output")
}

// FFmpegBinary is empty when ffmpeg should be found on PATH.
func (c *EnvConfig) FFmpegBinary() string {
	return c.s.FFmpeg
}

func (c *EnvConfig) TempDir() string {
	return c.s.TempDir
}

// FFmpegTimeout is the per-pass limit for CLI conversions. Zero means ffmpeg
// runs until it exits or is killed from outside.
func (c *EnvConfig) FFmpegTimeout() time.Duration {
	return c.s.FFmpegTimeout
}

// ServeFFmpegTimeout is the per-pass limit for queued jobs. It is never zero
// so one stuck ffmpeg cannot hold the queue forever.
func (c *EnvConfig) ServeFFmpegTimeout() time.Duration {
	if c.s.FFmpegTimeout > 0 {
		return c.s.FFmpegTimeout
	}
	return DefaultServeFFmpegTimeout
}

func (c *EnvConfig) DoctorTimeout() time.Duration {
	return c.s.DoctorTimeout
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
