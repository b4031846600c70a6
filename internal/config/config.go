// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	DataDir     string `env:"DATA_DIR, default=/tmp/faunalens" json:"data_dir"`
	MaxFileSize int64  `env:"MAX_FILE_SIZE, default=524288000" json:"max_file_size"` // 500 MB

	// Job store backend: "memory", "json" or "sqlite".
	StoreBackend string `env:"STORE_BACKEND, default=json" json:"store_backend"`

	// External tools
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Downscale settings
	DownscaleWidth      int `env:"DOWNSCALE_WIDTH, default=640" json:"downscale_width"`
	DownscaleHeight     int `env:"DOWNSCALE_HEIGHT, default=360" json:"downscale_height"`
	DownscaleTimeoutSec int `env:"DOWNSCALE_TIMEOUT_SEC, default=300" json:"downscale_timeout_sec"`

	// Audio and transcription settings
	AudioTimeoutSec int `env:"AUDIO_TIMEOUT_SEC, default=120" json:"audio_timeout_sec"`
	ChunkSec        int `env:"TRANSCRIBE_CHUNK_SEC, default=30" json:"transcribe_chunk_sec"`

	// Language detection settings
	CandidateLanguages []string `env:"CANDIDATE_LANGUAGES, default=fr,en" json:"candidate_languages"`
	DefaultLanguage    string   `env:"DEFAULT_LANGUAGE, default=fr" json:"default_language"`

	// Animal detection settings
	FrameSamples  int     `env:"FRAME_SAMPLES, default=12" json:"frame_samples"`
	MinConfidence float64 `env:"MIN_CONFIDENCE, default=0.4" json:"min_confidence"`

	// Inference endpoints
	SpeechEndpoint string `env:"SPEECH_ENDPOINT, default=http://localhost:9000" json:"speech_endpoint"`
	VisionEndpoint string `env:"VISION_ENDPOINT, default=http://localhost:9001" json:"vision_endpoint"`
	InferenceKey   string `env:"INFERENCE_API_KEY" json:"-"` // Masked in JSON

	// Optional S3 settings for final artifact delivery
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, DataDir: %s, StoreBackend: %s, DownscaleWidth: %d, DownscaleHeight: %d, FrameSamples: %d, SpeechEndpoint: %s, VisionEndpoint: %s, S3Bucket: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.DataDir,
		c.StoreBackend,
		c.DownscaleWidth,
		c.DownscaleHeight,
		c.FrameSamples,
		c.SpeechEndpoint,
		c.VisionEndpoint,
		c.S3Bucket,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
