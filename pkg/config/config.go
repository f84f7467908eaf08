// Package config provides configuration management for the preload tool.
// It loads, validates and saves YAML configuration files and provides
// defaults for every setting. Command-line flags override file values.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glorpus-work/preload/pkg/auth"
	"github.com/glorpus-work/preload/pkg/errors"
	"github.com/glorpus-work/preload/pkg/fsutil"
	"github.com/glorpus-work/preload/pkg/hooks"
	"github.com/glorpus-work/preload/pkg/preloader"
	"github.com/glorpus-work/preload/pkg/transfer"
)

// Config represents the application configuration.
type Config struct {
	// General settings
	Settings Settings `yaml:"settings"`

	// Hooks maps event names to inline Tengo source or a path to a .tengo file.
	Hooks map[string]string `yaml:"hooks,omitempty"`
}

// Settings represents general application settings.
type Settings struct {
	// Network settings
	HTTPTimeout  time.Duration     `yaml:"http_timeout"` // 0 disables the timeout
	UserAgent    string            `yaml:"user_agent"`
	ResponseType string            `yaml:"response_type"` // blob, discard
	Headers      map[string]string `yaml:"headers,omitempty"`
	Auth         auth.Credentials  `yaml:"auth,omitempty"`

	// Orchestration settings
	CancelOnTransportError bool `yaml:"cancel_on_transport_error"`

	// Output settings
	OutputFormat string `yaml:"output_format"` // text, json
	LogLevel     string `yaml:"log_level"`     // error, warn, info, debug
}

// Default configuration values.
const (
	DefaultOutputFormat = "text"
	DefaultLogLevel     = "info"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			UserAgent:    transfer.DefaultUserAgent,
			ResponseType: string(transfer.ResponseBlob),
			OutputFormat: DefaultOutputFormat,
			LogLevel:     DefaultLogLevel,
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrConfigValidation, err.Error())
	}

	return &config, nil
}

// SaveConfig writes the configuration atomically through a temporary file.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	if err := fsutil.EnsureFileDir(absPath); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	// Headers may carry credentials, so the file is owner-only.
	tempPath := absPath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeSecure)
	if err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(YAMLIndent)

	if err := encoder.Encode(c); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}

	_ = encoder.Close()
	_ = file.Close()

	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigFileRename, err.Error())
	}

	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigMarshal, err.Error())
	}
	return data, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if err := validateSettings(c.Settings); err != nil {
		return err
	}
	for name := range c.Hooks {
		if _, err := hooks.ParseEvent(name); err != nil {
			return err
		}
	}
	return nil
}

func validateSettings(s Settings) error {
	if s.HTTPTimeout < 0 {
		return errors.ErrHTTPTimeoutNegative
	}
	if !s.Auth.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q, must be one of: basic, bearer", errors.ErrInvalidAuth, s.Auth.Type)
	}
	if !transfer.ResponseType(s.ResponseType).Valid() {
		return errors.ErrInvalidResponseTypeWithDetails(s.ResponseType)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[s.OutputFormat] {
		return errors.ErrInvalidOutputFormatWithDetails(s.OutputFormat)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return errors.ErrInvalidLogLevelWithDetails(s.LogLevel)
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := fsutil.GetConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user config directory")
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// HTTPOptions derives the HTTP transport options.
func (c *Config) HTTPOptions() transfer.HTTPOptions {
	opts := transfer.DefaultHTTPOptions()
	opts.Timeout = c.Settings.HTTPTimeout
	if c.Settings.UserAgent != "" {
		opts.UserAgent = c.Settings.UserAgent
	}
	opts.Auth = c.Settings.Auth.Authenticator()
	return opts
}

// PreloaderOptions derives controller options. Headers are sent by the
// controller so per-load headers can override them.
func (c *Config) PreloaderOptions() preloader.Options {
	opts := preloader.Options{
		Transport:    transfer.NewHTTPTransport(c.HTTPOptions()),
		ResponseType: transfer.ResponseType(c.Settings.ResponseType),
		Headers:      c.Settings.Headers,
	}
	if c.Settings.CancelOnTransportError {
		opts.TransportErrorPolicy = preloader.PolicyCancelSiblings
	}
	return opts
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Settings.UserAgent == "" {
		c.Settings.UserAgent = defaults.Settings.UserAgent
	}
	if c.Settings.ResponseType == "" {
		c.Settings.ResponseType = defaults.Settings.ResponseType
	}
	if c.Settings.OutputFormat == "" {
		c.Settings.OutputFormat = defaults.Settings.OutputFormat
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
}
