package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sales-coach-go/internal/engine"
	"sales-coach-go/internal/source"
)

// Config is the complete service configuration. Values come from defaults,
// then an optional YAML file, then the environment.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Audio   AudioConfig   `yaml:"audio"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type EngineConfig struct {
	Provider   string `yaml:"provider"` // gemini | mock
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type AudioConfig struct {
	FFMPEGCommand string `yaml:"ffmpeg_command"`
	InputFormat   string `yaml:"input_format"`
	InputDevice   string `yaml:"input_device"`
	Container     string `yaml:"container"`
	SampleRate    int    `yaml:"sample_rate"`
	Channels      int    `yaml:"channels"`
}

type LoggingConfig struct {
	Environment string `yaml:"environment"`
	Level       string `yaml:"level"`
}

const (
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: "8080"},
		Engine: EngineConfig{
			Provider:   ProviderGemini,
			Model:      engine.DefaultModel,
			TimeoutSec: 120,
		},
		Audio: AudioConfig{
			FFMPEGCommand: "ffmpeg",
			InputFormat:   "pulse",
			InputDevice:   "default",
			Container:     "webm",
			SampleRate:    48000,
			Channels:      1,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration. path names an optional YAML file; when
// empty COACH_CONFIG is consulted. A .env file in the working directory is
// loaded first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("COACH_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")

	setString(&c.Engine.APIKey, "GEMINI_API_KEY")
	setString(&c.Engine.APIKey, "API_KEY")
	setString(&c.Engine.Model, "COACH_MODEL")
	setString(&c.Engine.BaseURL, "COACH_ENGINE_BASE_URL")
	if err := setInt(&c.Engine.TimeoutSec, "COACH_ENGINE_TIMEOUT_SEC"); err != nil {
		return err
	}
	if v := os.Getenv("USE_MOCK_LLM"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("USE_MOCK_LLM: %w", err)
		}
		if on {
			c.Engine.Provider = ProviderMock
		}
	}

	setString(&c.Audio.FFMPEGCommand, "COACH_FFMPEG_COMMAND")
	setString(&c.Audio.InputFormat, "COACH_AUDIO_INPUT_FORMAT")
	setString(&c.Audio.InputDevice, "COACH_AUDIO_INPUT_DEVICE")
	setString(&c.Audio.Container, "COACH_AUDIO_CONTAINER")
	if err := setInt(&c.Audio.SampleRate, "COACH_SAMPLE_RATE"); err != nil {
		return err
	}
	if err := setInt(&c.Audio.Channels, "COACH_CHANNELS"); err != nil {
		return err
	}

	setString(&c.Logging.Environment, "ENVIRONMENT")
	setString(&c.Logging.Level, "LOG_LEVEL")
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server config: port cannot be empty")
	}
	if p, err := strconv.Atoi(c.Server.Port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("server config: port must be between 1 and 65535, got %q", c.Server.Port)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	return nil
}

func (e *EngineConfig) Validate() error {
	switch e.Provider {
	case ProviderGemini, ProviderMock:
	default:
		return fmt.Errorf("unknown provider %q", e.Provider)
	}
	if e.TimeoutSec <= 0 {
		return fmt.Errorf("timeout_sec must be positive, got %d", e.TimeoutSec)
	}
	if e.Provider == ProviderGemini && e.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	if _, ok := source.LookupContainer(a.Container); !ok {
		return fmt.Errorf("unknown container %q", a.Container)
	}
	if a.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", a.SampleRate)
	}
	if a.Channels < 1 || a.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", a.Channels)
	}
	if a.FFMPEGCommand == "" {
		return fmt.Errorf("ffmpeg_command cannot be empty")
	}
	return nil
}

// EngineTimeout is the per-analysis bound on the engine round trip.
func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSec) * time.Second
}

// HasAPIKey reports whether a Gemini key is configured.
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.Engine.APIKey) != ""
}

// Capture returns the microphone settings in the form the recorder expects.
func (c *Config) Capture() source.CaptureConfig {
	container, _ := source.LookupContainer(c.Audio.Container)
	return source.CaptureConfig{
		InputFormat: c.Audio.InputFormat,
		InputDevice: c.Audio.InputDevice,
		SampleRate:  c.Audio.SampleRate,
		Channels:    c.Audio.Channels,
		Container:   container,
	}
}
