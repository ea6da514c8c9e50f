// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/telq/promptseq/internal/domain/sound"
	"github.com/telq/promptseq/internal/signaling"
)

// Config represents the application configuration.
type Config struct {
	Signaling    SignalingConfig   `yaml:"signaling"`
	Driver       DriverConfig      `yaml:"driver"`
	Prompts      []PromptConfig    `yaml:"prompts" validate:"required,min=1,dive"`
	Replacements map[string]string `yaml:"replacements"`
}

// SignalingConfig holds the signaling endpoint connection parameters
// and the application identifier presented to it.
type SignalingConfig struct {
	URL      string `yaml:"url" validate:"required,url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	AppName  string `yaml:"app_name" validate:"required"`
}

// DriverConfig selects the signaling driver implementation. Settings
// are driver-specific and decoded by the driver factory.
type DriverConfig struct {
	Type     string         `yaml:"type" default:"loopback" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// PromptConfig describes one sound in the prompt sequence.
type PromptConfig struct {
	Media         string `yaml:"media" validate:"required"`
	Skipable      bool   `yaml:"skipable"`
	PostSilenceMs int    `yaml:"post_silence_ms" validate:"gte=0"`
}

// Load loads configuration from a YAML file. Environment variables
// take precedence over file values for credentials.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SIGNALING_USERNAME"); v != "" {
		c.Signaling.Username = v
	}
	if v := os.Getenv("SIGNALING_PASSWORD"); v != "" {
		c.Signaling.Password = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// ConnectionParams returns the signaling connection parameters.
func (c *Config) ConnectionParams() signaling.ConnectionParams {
	return signaling.ConnectionParams{
		URL:      c.Signaling.URL,
		Username: c.Signaling.Username,
		Password: c.Signaling.Password,
	}
}

// Sounds returns the configured prompt sequence as sound descriptors,
// in playback order.
func (c *Config) Sounds() []sound.Sound {
	sounds := make([]sound.Sound, len(c.Prompts))
	for i, p := range c.Prompts {
		sounds[i] = sound.Sound{
			Media:       p.Media,
			Skipable:    p.Skipable,
			PostSilence: time.Duration(p.PostSilenceMs) * time.Millisecond,
		}
	}
	return sounds
}
