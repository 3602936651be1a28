// Package config provides configuration management for the Framecull Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8799
	DefaultLogLevel = "info"
	DefaultDataDir  = ".framecull"

	// Environment variable names
	EnvPort     = "FRAMECULL_PORT"
	EnvLogLevel = "FRAMECULL_LOG_LEVEL"
	EnvDataDir  = "FRAMECULL_DATA_DIR"
	EnvLUTDir   = "FRAMECULL_LUT_DIR"
	EnvFFmpeg   = "FRAMECULL_FFMPEG"
	EnvFFprobe  = "FRAMECULL_FFPROBE"
	EnvHeadless = "FRAMECULL_HEADLESS"

	// Database filename
	DBFilename = "framecull.db"

	// Playback defaults
	DefaultMaxDecodeHandles = 4
	DefaultGuardBandFrames  = 2

	// Compositor defaults
	DefaultPreviewCacheSize = 128

	// Export defaults
	DefaultEncodeTimeout      = 3600 // seconds, per clip
	DefaultPassthroughTimeout = 300  // seconds, per clip
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	BundledLUTDir() string
	UserLUTDir() string
	TrashDir() string
	FFmpegPath() string
	FFprobePath() string
	MaxDecodeHandles() int
	GuardBandFrames() int
	PreviewCacheSize() int
	EncodeTimeout() time.Duration
	PassthroughTimeout() time.Duration
	Headless() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	lutDir   string
	ffmpeg   string
	ffprobe  string
	headless bool
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	// Override bundled LUT directory from environment
	if ld := os.Getenv(EnvLUTDir); ld != "" {
		cfg.lutDir = ld
	}

	cfg.ffmpeg = os.Getenv(EnvFFmpeg)
	cfg.ffprobe = os.Getenv(EnvFFprobe)
	cfg.headless = os.Getenv(EnvHeadless) == "1" || os.Getenv(EnvHeadless) == "true"

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// BundledLUTDir returns the read-only directory holding packaged LUT files.
// FRAMECULL_LUT_DIR overrides the default location next to the data dir.
func (c *EnvConfig) BundledLUTDir() string {
	if c.lutDir != "" {
		return c.lutDir
	}
	return filepath.Join(c.dataDir, "luts", "bundled")
}

// UserLUTDir returns the read-write directory holding user-imported LUT files
func (c *EnvConfig) UserLUTDir() string {
	return filepath.Join(c.dataDir, "luts", "user")
}

// TrashDir returns the directory flagged clips are moved into during
// a cull-in-place export. Files here are never deleted by the agent.
func (c *EnvConfig) TrashDir() string {
	return filepath.Join(c.dataDir, "trash")
}

// FFmpegPath returns the ffmpeg binary path; empty means look up via PATH
func (c *EnvConfig) FFmpegPath() string {
	if c.ffmpeg != "" {
		return c.ffmpeg
	}
	return "ffmpeg"
}

// FFprobePath returns the ffprobe binary path; empty means look up via PATH
func (c *EnvConfig) FFprobePath() string {
	if c.ffprobe != "" {
		return c.ffprobe
	}
	return "ffprobe"
}

// MaxDecodeHandles returns the cap on concurrently live decode handles
func (c *EnvConfig) MaxDecodeHandles() int {
	return DefaultMaxDecodeHandles
}

// GuardBandFrames returns the early-stop margin in frame durations
func (c *EnvConfig) GuardBandFrames() int {
	return DefaultGuardBandFrames
}

// PreviewCacheSize returns the composited still-frame cache capacity
func (c *EnvConfig) PreviewCacheSize() int {
	return DefaultPreviewCacheSize
}

func (c *EnvConfig) EncodeTimeout() time.Duration {
	return time.Duration(DefaultEncodeTimeout) * time.Second
}

func (c *EnvConfig) PassthroughTimeout() time.Duration {
	return time.Duration(DefaultPassthroughTimeout) * time.Second
}

// Headless disables the system tray when set
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
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
