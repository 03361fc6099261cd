package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Script      ScriptConfig      `yaml:"script"`
	Convergence ConvergenceConfig `yaml:"convergence"`
	Estimator   EstimatorConfig   `yaml:"estimator"`
	Audio       AudioConfig       `yaml:"audio"`
	Timeline    TimelineConfig    `yaml:"timeline"`
	Render      RenderConfig      `yaml:"render"`
	Upload      UploadConfig      `yaml:"upload"`
	Store       StoreConfig       `yaml:"store"`
	Server      ServerConfig      `yaml:"server"`
	Paths       PathsConfig       `yaml:"paths"`
	Log         LogConfig         `yaml:"log"`
}

type ScriptConfig struct {
	Model          string   `yaml:"model"`
	BaseURL        string   `yaml:"base_url"`
	Temperature    float64  `yaml:"temperature"`
	TimeoutSec     int      `yaml:"timeout_sec"`
	MinScenes      int      `yaml:"min_scenes"`
	MaxScenes      int      `yaml:"max_scenes"`
	UseFallback    bool     `yaml:"use_fallback_without_key"`
	CriticalEvents []string `yaml:"critical_event_keywords"`
}

type ConvergenceConfig struct {
	Enabled       bool    `yaml:"enabled"`
	LeadSec       float64 `yaml:"lead_sec"`
	ToleranceSec  float64 `yaml:"tolerance_sec"`
	MaxIterations int     `yaml:"max_iterations"`
}

type EstimatorConfig struct {
	UnitsPerSecond float64 `yaml:"units_per_second"`
	EmphasisFactor float64 `yaml:"emphasis_factor"`
	CommaFactor    float64 `yaml:"comma_factor"`
	FloorSec       float64 `yaml:"floor_sec"`
}

type AudioConfig struct {
	Engine          string  `yaml:"engine"` // google | command
	LanguageCode    string  `yaml:"language_code"`
	Voice           string  `yaml:"voice"`
	SpeakingRate    float64 `yaml:"speaking_rate"`
	CredentialsFile string  `yaml:"credentials_file"`
	Command         string  `yaml:"command"`
	TimeoutSec      int     `yaml:"timeout_sec"`
}

type TimelineConfig struct {
	PlacementEnabled bool    `yaml:"placement_enabled"`
	Model            string  `yaml:"model"`
	DefaultPadding   float64 `yaml:"default_padding_sec"`
	TimeoutSec       int     `yaml:"timeout_sec"`
	Title            string  `yaml:"title"`
}

type RenderConfig struct {
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	FPS           int     `yaml:"fps"`
	Workers       int     `yaml:"workers"`
	Font          string  `yaml:"font"`
	FontSize      int     `yaml:"font_size"`
	OutroDuration float64 `yaml:"outro_duration_sec"`
	OutroText     string  `yaml:"outro_text"`
	OutroFontSize int     `yaml:"outro_font_size"`
	OutputPrefix  string  `yaml:"output_prefix"`
	Container     string  `yaml:"container"`
	FFmpegBin     string  `yaml:"ffmpeg_bin"`
	FFprobeBin    string  `yaml:"ffprobe_bin"`
	Subtitles     bool    `yaml:"write_subtitles"`
}

type UploadConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Visibility        string `yaml:"visibility"`
	CategoryID        string `yaml:"category_id"`
	NotifySubscribers bool   `yaml:"notify_subscribers"`
	MadeForKids       bool   `yaml:"made_for_kids"`
	DefaultLanguage   string `yaml:"default_language"`
	TitleMaxChars     int    `yaml:"title_max_chars"`
}

type StoreConfig struct {
	Driver    string `yaml:"driver"` // file | redis
	RedisAddr string `yaml:"redis_addr"`
	KeyPrefix string `yaml:"key_prefix"`
	TTLHours  int    `yaml:"ttl_hours"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type PathsConfig struct {
	Output string `yaml:"output"`
	Logs   string `yaml:"logs"`
	Runs   string `yaml:"runs"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns a Config with every knob set to a working value
func Default() *Config {
	return &Config{
		Script: ScriptConfig{
			Model:       "gemini-2.5-pro",
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/openai/",
			Temperature: 0.7,
			TimeoutSec:  90,
			MinScenes:   4,
			MaxScenes:   5,
			UseFallback: true,
		},
		Convergence: ConvergenceConfig{
			Enabled:       true,
			LeadSec:       1.0,
			ToleranceSec:  0.5,
			MaxIterations: 3,
		},
		Estimator: EstimatorConfig{
			UnitsPerSecond: 5.0,
			EmphasisFactor: 1.10,
			CommaFactor:    1.05,
			FloorSec:       1.0,
		},
		Audio: AudioConfig{
			Engine:       "google",
			LanguageCode: "ko-KR",
			Voice:        "ko-KR-Chirp3-HD-Algenib",
			SpeakingRate: 1.25,
			TimeoutSec:   60,
		},
		Timeline: TimelineConfig{
			PlacementEnabled: true,
			Model:            "gemini-2.5-pro",
			DefaultPadding:   0.5,
			TimeoutSec:       90,
			Title:            "Accident Review",
		},
		Render: RenderConfig{
			Width:         1920,
			Height:        1080,
			FPS:           30,
			Workers:       2,
			Font:          "NanumGothic",
			FontSize:      35,
			OutroDuration: 3.0,
			OutroText:     "Drive safe!",
			OutroFontSize: 60,
			OutputPrefix:  "final_video",
			Container:     "mp4",
			FFmpegBin:     "ffmpeg",
			FFprobeBin:    "ffprobe",
			Subtitles:     true,
		},
		Upload: UploadConfig{
			Visibility:      "unlisted",
			CategoryID:      "2",
			DefaultLanguage: "ko",
			TitleMaxChars:   100,
		},
		Store: StoreConfig{
			Driver:    "file",
			KeyPrefix: "crashreview",
			TTLHours:  72,
		},
		Server: ServerConfig{Addr: ":8080"},
		Paths: PathsConfig{
			Output: "output",
			Logs:   "logs",
			Runs:   "output/runs",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads config.yaml over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Convergence.ToleranceSec <= 0:
		return errors.New("convergence.tolerance_sec must be positive")
	case c.Convergence.LeadSec < 0:
		return errors.New("convergence.lead_sec must not be negative")
	case c.Convergence.MaxIterations < 0:
		return errors.New("convergence.max_iterations must not be negative")
	case c.Estimator.UnitsPerSecond <= 0:
		return errors.New("estimator.units_per_second must be positive")
	case c.Estimator.EmphasisFactor <= 0 || c.Estimator.CommaFactor <= 0:
		return errors.New("estimator.emphasis_factor and estimator.comma_factor must be positive")
	case c.Render.Workers < 1:
		return errors.New("render.workers must be at least 1")
	case c.Render.Width <= 0 || c.Render.Height <= 0 || c.Render.FPS <= 0:
		return errors.New("render.width, render.height and render.fps must be positive")
	case c.Timeline.DefaultPadding < 0:
		return errors.New("timeline.default_padding_sec must not be negative")
	}
	switch c.Store.Driver {
	case "file", "redis":
	default:
		return fmt.Errorf("store.driver %q: want file or redis", c.Store.Driver)
	}
	return nil
}
