package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/preload/pkg/errors"
	"github.com/glorpus-work/preload/pkg/fsutil"
	"github.com/glorpus-work/preload/pkg/preloader"
	"github.com/glorpus-work/preload/pkg/transfer"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Settings.LogLevel)
	assert.Equal(t, "text", cfg.Settings.OutputFormat)
	assert.Equal(t, "blob", cfg.Settings.ResponseType)
	assert.Equal(t, transfer.DefaultUserAgent, cfg.Settings.UserAgent)
	assert.Zero(t, cfg.Settings.HTTPTimeout)
	assert.False(t, cfg.Settings.CancelOnTransportError)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `settings:
  http_timeout: 15s
  response_type: discard
  cancel_on_transport_error: true
  log_level: debug
  headers:
    Authorization: Bearer abc
hooks:
  complete: |
    fmt := import("fmt")
    fmt.println(count)
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), fsutil.FileModeDefault))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Settings.HTTPTimeout)
	assert.Equal(t, "discard", cfg.Settings.ResponseType)
	assert.True(t, cfg.Settings.CancelOnTransportError)
	assert.Equal(t, "debug", cfg.Settings.LogLevel)
	assert.Equal(t, "text", cfg.Settings.OutputFormat)
	assert.Equal(t, transfer.DefaultUserAgent, cfg.Settings.UserAgent)
	assert.Equal(t, "Bearer abc", cfg.Settings.Headers["Authorization"])
	assert.Contains(t, cfg.Hooks["complete"], "fmt.println(count)")

	opts := cfg.PreloaderOptions()
	assert.Equal(t, preloader.PolicyCancelSiblings, opts.TransportErrorPolicy)
	assert.Equal(t, transfer.ResponseDiscard, opts.ResponseType)
	assert.NotNil(t, opts.Transport)
	assert.Equal(t, 15*time.Second, cfg.HTTPOptions().Timeout)
}

func TestLoadConfig_Missing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig("")
	assert.ErrorIs(t, err, errors.ErrEmptyConfigPath)
}

func TestSaveConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Settings.LogLevel = "debug"
	cfg.Settings.Headers = map[string]string{"X-Token": "secret"}
	cfg.Hooks = map[string]string{"error": `err := url`}

	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.SaveConfig(configPath))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(configPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(fsutil.FileModeSecure), info.Mode().Perm())
	}
	assert.NoFileExists(t, configPath+".tmp")

	loaded, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "negative timeout", mutate: func(c *Config) { c.Settings.HTTPTimeout = -time.Second }, wantErr: errors.ErrHTTPTimeoutNegative},
		{name: "bad response type", mutate: func(c *Config) { c.Settings.ResponseType = "text" }, wantErr: errors.ErrInvalidResponseType},
		{name: "bad output format", mutate: func(c *Config) { c.Settings.OutputFormat = "yaml" }, wantErr: errors.ErrInvalidOutputFormat},
		{name: "bad log level", mutate: func(c *Config) { c.Settings.LogLevel = "trace" }, wantErr: errors.ErrInvalidLogLevel},
		{name: "unknown hook", mutate: func(c *Config) { c.Hooks = map[string]string{"pre-install": "x"} }, wantErr: errors.ErrUnknownHookEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigFromReader_Invalid(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("settings: [1, 2"))
	assert.ErrorIs(t, err, errors.ErrConfigParse)

	_, err = LoadConfigFromReader(strings.NewReader("settings:\n  output_format: xml\n"))
	assert.ErrorIs(t, err, errors.ErrConfigValidation)
}

func TestGetDefaultConfigPath(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only honoured on Linux")
	}
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	path, err := GetDefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "preload", "config.yaml"), path)
}
