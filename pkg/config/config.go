package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfigUnreadable = errors.New("config file unreadable")
	ErrConfigMalformed  = errors.New("config file malformed")
	ErrInvalidConfig    = errors.New("invalid config")
)

// OutputFormats lists the accepted values of Config.OutputFormat
var OutputFormats = []string{"text", "json"}

// MaxJournalSize caps Config.JournalSize
const MaxJournalSize = 1024 * 1024

// StreamConfig names an event stream to start automatically
type StreamConfig struct {
	Namespace string        `yaml:"namespace" json:"namespace"`
	Event     string        `yaml:"event" json:"event"`
	Interval  time.Duration `yaml:"interval" json:"interval"`
}

// Config holds application configuration
type Config struct {
	LogLevel        logrus.Level  `yaml:"logLevel" json:"log_level"`
	DefaultInterval time.Duration `yaml:"defaultInterval" json:"default_interval" default:"3s"`
	JournalSize     uint32        `yaml:"journalSize" json:"journal_size" default:"256"`
	OutputFormat    string        `yaml:"outputFormat" json:"output_format" default:"text"` // text, json

	// Namespaces restricts the demo namespaces installed; empty installs all of them
	Namespaces []string `yaml:"namespaces" json:"namespaces"`

	// Scripts maps an API name to a Lua file producing its payload
	Scripts map[string]string `yaml:"scripts" json:"scripts"`

	Streams []StreamConfig `yaml:"streams" json:"streams"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{
		LogLevel: logrus.InfoLevel,
	}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigUnreadable, path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigMalformed, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values a running simulator depends on
func (c *Config) Validate() error {
	if !slices.Contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, c.OutputFormat)
	}
	if c.DefaultInterval <= 0 {
		return fmt.Errorf("%w: default interval must be positive", ErrInvalidConfig)
	}
	if c.JournalSize == 0 || c.JournalSize > MaxJournalSize {
		return fmt.Errorf("%w: journal size %d outside 1..%d", ErrInvalidConfig, c.JournalSize, MaxJournalSize)
	}
	for i, s := range c.Streams {
		if s.Namespace == "" || s.Event == "" {
			return fmt.Errorf("%w: stream %d needs a namespace and an event", ErrInvalidConfig, i)
		}
		if s.Interval < 0 {
			return fmt.Errorf("%w: stream %s/%s has a negative interval", ErrInvalidConfig, s.Namespace, s.Event)
		}
	}
	for api, path := range c.Scripts {
		if api == "" || path == "" {
			return fmt.Errorf("%w: scripts need an api name and a file", ErrInvalidConfig)
		}
	}
	return nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
