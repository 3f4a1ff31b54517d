package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. GOSTT_LOG_LEVEL.
const EnvPrefix = "GOSTT_"

// Config holds all application configuration.
type Config struct {
	LogLevel    string            `yaml:"log_level" env:"LOG_LEVEL"`
	Audio       AudioConfig       `yaml:"audio" envPrefix:"AUDIO_"`
	VAD         VADConfig         `yaml:"vad" envPrefix:"VAD_"`
	Segmenter   SegmenterConfig   `yaml:"segmenter" envPrefix:"SEGMENTER_"`
	Pipeline    PipelineConfig    `yaml:"pipeline" envPrefix:"PIPELINE_"`
	Punctuation PunctuationConfig `yaml:"punctuation" envPrefix:"PUNCTUATION_"`
	Recognizer  RecognizerConfig  `yaml:"recognizer" envPrefix:"RECOGNIZER_"`
	Corrector   CorrectorConfig   `yaml:"corrector" envPrefix:"CORRECTOR_"`
	Watch       WatchConfig       `yaml:"watch" envPrefix:"WATCH_"`
	Metrics     MetricsConfig     `yaml:"metrics" envPrefix:"METRICS_"`
}

// AudioConfig holds audio input settings.
type AudioConfig struct {
	SampleRate    int           `yaml:"sample_rate" env:"SAMPLE_RATE"`
	Channels      int           `yaml:"channels" env:"CHANNELS"`
	FrameDuration time.Duration `yaml:"frame_duration" env:"FRAME_DURATION"`
	Device        string        `yaml:"device" env:"DEVICE"` // substring of the capture device name
}

// VADConfig holds voice-activity detection settings.
type VADConfig struct {
	Mode int `yaml:"mode" env:"MODE"` // 0 (lenient) to 3 (aggressive)
}

// SegmenterConfig controls how silence splits utterances.
type SegmenterConfig struct {
	MaxPause       time.Duration `yaml:"max_pause" env:"MAX_PAUSE"`
	MinPauseOffset int           `yaml:"min_pause_offset" env:"MIN_PAUSE_OFFSET"`
}

// PipelineConfig holds queue and shutdown settings.
type PipelineConfig struct {
	QueueSize    int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	SilenceLimit time.Duration `yaml:"silence_limit" env:"SILENCE_LIMIT"`
	SegmentDir   string        `yaml:"segment_dir" env:"SEGMENT_DIR"`
}

// PunctuationConfig holds pause classification settings.
type PunctuationConfig struct {
	ThresholdMultiplier float64 `yaml:"threshold_multiplier" env:"THRESHOLD_MULTIPLIER"`
}

// RecognizerConfig holds speech recognition settings.
type RecognizerConfig struct {
	Backend   string        `yaml:"backend" env:"BACKEND"` // "http"
	URL       string        `yaml:"url" env:"URL"`
	VocabPath string        `yaml:"vocab_path" env:"VOCAB_PATH"`
	VocabURL  string        `yaml:"vocab_url" env:"VOCAB_URL"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// CorrectorConfig holds text correction settings.
type CorrectorConfig struct {
	Backend     string        `yaml:"backend" env:"BACKEND"` // "http" or "none"
	URL         string        `yaml:"url" env:"URL"`
	MaxLength   int           `yaml:"max_length" env:"MAX_LENGTH"`
	Chunked     bool          `yaml:"chunked" env:"CHUNKED"`
	Concurrency int           `yaml:"concurrency" env:"CONCURRENCY"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" env:"DEBOUNCE"`
}

// MetricsConfig holds the Prometheus listener settings. An empty Addr
// disables the listener.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gostt-stream")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	home, _ := os.UserHomeDir()
	vocabPath := filepath.Join(home, ".local", "share", "gostt-stream", "models", "vocab.json")

	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			SampleRate:    16000,
			Channels:      1,
			FrameDuration: 30 * time.Millisecond,
		},
		VAD: VADConfig{Mode: 3},
		Segmenter: SegmenterConfig{
			MinPauseOffset: 10,
		},
		Pipeline: PipelineConfig{
			QueueSize:    16,
			SilenceLimit: 5 * time.Second,
		},
		Punctuation: PunctuationConfig{ThresholdMultiplier: 1.2},
		Recognizer: RecognizerConfig{
			Backend:   "http",
			URL:       "http://127.0.0.1:8000/recognize",
			VocabPath: vocabPath,
			VocabURL:  "https://huggingface.co/facebook/wav2vec2-base-960h/resolve/main/vocab.json",
			Timeout:   30 * time.Second,
		},
		Corrector: CorrectorConfig{
			Backend:     "none",
			MaxLength:   256,
			Concurrency: 4,
			Timeout:     30 * time.Second,
		},
		Watch: WatchConfig{Debounce: 500 * time.Millisecond},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.expandPaths()
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from GOSTT_* environment variables. Unset
// variables leave the current values alone.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	c.expandPaths()
	return nil
}

func (c *Config) expandPaths() {
	c.Recognizer.VocabPath = expandTilde(c.Recognizer.VocabPath)
	c.Pipeline.SegmentDir = expandTilde(c.Pipeline.SegmentDir)
}

// MaxPauseFrames converts Segmenter.MaxPause to whole frames.
func (c *Config) MaxPauseFrames() int {
	if c.Audio.FrameDuration <= 0 {
		return 0
	}
	return int(c.Segmenter.MaxPause / c.Audio.FrameDuration)
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}
	if c.Audio.Channels != 1 {
		return fmt.Errorf("audio.channels must be 1, got %d", c.Audio.Channels)
	}
	switch c.Audio.FrameDuration {
	case 10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond:
	default:
		return fmt.Errorf("audio.frame_duration must be 10ms, 20ms, or 30ms, got %s", c.Audio.FrameDuration)
	}

	if c.VAD.Mode < 0 || c.VAD.Mode > 3 {
		return fmt.Errorf("vad.mode must be between 0 and 3, got %d", c.VAD.Mode)
	}

	if c.Segmenter.MaxPause < 0 {
		return fmt.Errorf("segmenter.max_pause must be >= 0")
	}
	if c.Segmenter.MinPauseOffset < 0 {
		return fmt.Errorf("segmenter.min_pause_offset must be >= 0")
	}

	if c.Pipeline.QueueSize <= 0 {
		return fmt.Errorf("pipeline.queue_size must be > 0")
	}
	if c.Pipeline.SilenceLimit < 0 {
		return fmt.Errorf("pipeline.silence_limit must be >= 0")
	}

	if c.Punctuation.ThresholdMultiplier < 0 {
		return fmt.Errorf("punctuation.threshold_multiplier must be >= 0")
	}

	switch c.Recognizer.Backend {
	case "http":
		if c.Recognizer.URL == "" {
			return fmt.Errorf("recognizer.url must not be empty when backend is \"http\"")
		}
	default:
		return fmt.Errorf("recognizer.backend must be \"http\", got %q", c.Recognizer.Backend)
	}
	if c.Recognizer.VocabPath == "" {
		return fmt.Errorf("recognizer.vocab_path must not be empty")
	}

	switch c.Corrector.Backend {
	case "http":
		if c.Corrector.URL == "" {
			return fmt.Errorf("corrector.url must not be empty when backend is \"http\"")
		}
	case "none":
	default:
		return fmt.Errorf("corrector.backend must be \"http\" or \"none\", got %q", c.Corrector.Backend)
	}
	if c.Corrector.MaxLength <= 0 {
		return fmt.Errorf("corrector.max_length must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// WriteDefault writes the default config to DefaultConfigPath if no file
// exists there. It returns the written path, or "" if a file already existed.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	header := "# gostt-stream configuration\n# Environment variables prefixed with " + EnvPrefix + " override these values.\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// ParseLogLevel converts a config log level to a zerolog level, defaulting
// to info.
func ParseLogLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
