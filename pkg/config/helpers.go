package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/preload/pkg/auth"
	"github.com/glorpus-work/preload/pkg/errors"
	"github.com/glorpus-work/preload/pkg/hooks"
)

const (
	headerPrefix = "headers."
	hookPrefix   = "hooks."

	secretMask = "********"
)

// secretKeys are masked by ToMap.
var secretKeys = map[string]bool{"auth.password": true, "auth.token": true}

// SetValue sets a configuration value by key.
// Supported keys:
//   - http_timeout: duration - request timeout, 0 disables it
//   - user_agent: string - User-Agent header
//   - response_type: string - blob or discard
//   - cancel_on_transport_error: bool - cancel siblings after a transport failure
//   - output_format: string - text or json
//   - log_level: string - error, warn, info or debug
//   - auth.type: string - basic, bearer or empty for none
//   - auth.username, auth.password: string - basic auth credentials
//   - auth.token, auth.token_env: string - bearer token or the variable holding it
//   - headers.<Name>: string - extra request header, empty removes it
//   - hooks.<event>: string - hook script or .tengo path, empty removes it
func (c *Config) SetValue(key, value string) error {
	switch {
	case strings.HasPrefix(key, headerPrefix):
		name := strings.TrimPrefix(key, headerPrefix)
		if name == "" {
			return fmt.Errorf("%w: %s", errors.ErrUnknownConfigKey, key)
		}
		c.Settings.Headers = setOrDelete(c.Settings.Headers, name, value)
		return nil
	case strings.HasPrefix(key, hookPrefix):
		event, err := hooks.ParseEvent(strings.TrimPrefix(key, hookPrefix))
		if err != nil {
			return err
		}
		c.Hooks = setOrDelete(c.Hooks, string(event), value)
		return nil
	}

	switch key {
	case "http_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "invalid duration for %s", key)
		}
		if d < 0 {
			return errors.ErrHTTPTimeoutNegative
		}
		c.Settings.HTTPTimeout = d
	case "user_agent":
		c.Settings.UserAgent = value
	case "response_type":
		c.Settings.ResponseType = value
	case "cancel_on_transport_error":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w for %s: %s", errors.ErrInvalidBoolValue, key, value)
		}
		c.Settings.CancelOnTransportError = b
	case "output_format":
		c.Settings.OutputFormat = value
	case "log_level":
		c.Settings.LogLevel = value
	case "auth.type":
		c.Settings.Auth.Type = auth.Type(value)
	case "auth.username":
		c.Settings.Auth.Username = value
	case "auth.password":
		c.Settings.Auth.Password = value
	case "auth.token":
		c.Settings.Auth.Token = value
	case "auth.token_env":
		c.Settings.Auth.TokenEnv = value
	default:
		return fmt.Errorf("%w: %s", errors.ErrUnknownConfigKey, key)
	}
	return validateSettings(c.Settings)
}

// GetValue returns the value of key as a string.
func (c *Config) GetValue(key string) (string, error) {
	switch {
	case strings.HasPrefix(key, headerPrefix):
		return c.Settings.Headers[strings.TrimPrefix(key, headerPrefix)], nil
	case strings.HasPrefix(key, hookPrefix):
		return c.Hooks[strings.TrimPrefix(key, hookPrefix)], nil
	}

	switch key {
	case "http_timeout":
		return c.Settings.HTTPTimeout.String(), nil
	case "user_agent":
		return c.Settings.UserAgent, nil
	case "response_type":
		return c.Settings.ResponseType, nil
	case "cancel_on_transport_error":
		return strconv.FormatBool(c.Settings.CancelOnTransportError), nil
	case "output_format":
		return c.Settings.OutputFormat, nil
	case "log_level":
		return c.Settings.LogLevel, nil
	case "auth.type":
		return string(c.Settings.Auth.Type), nil
	case "auth.username":
		return c.Settings.Auth.Username, nil
	case "auth.password":
		return c.Settings.Auth.Password, nil
	case "auth.token":
		return c.Settings.Auth.Token, nil
	case "auth.token_env":
		return c.Settings.Auth.TokenEnv, nil
	default:
		return "", fmt.Errorf("%w: %s", errors.ErrUnknownConfigKey, key)
	}
}

// Keys lists the scalar keys accepted by GetValue and SetValue.
func Keys() []string {
	return []string{
		"http_timeout",
		"user_agent",
		"response_type",
		"cancel_on_transport_error",
		"output_format",
		"log_level",
		"auth.type",
		"auth.username",
		"auth.password",
		"auth.token",
		"auth.token_env",
	}
}

// ToMap flattens the configuration for display. Secrets are masked.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string)
	for _, k := range Keys() {
		v, _ := c.GetValue(k)
		if v != "" && secretKeys[k] {
			v = secretMask
		}
		result[k] = v
	}
	for name, v := range c.Settings.Headers {
		result[headerPrefix+name] = v
	}
	for event, v := range c.Hooks {
		result[hookPrefix+event] = v
	}
	return result
}

// SortedKeys returns the keys of ToMap in display order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func setOrDelete(m map[string]string, key, value string) map[string]string {
	if value == "" {
		delete(m, key)
		return m
	}
	if m == nil {
		m = make(map[string]string)
	}
	m[key] = value
	return m
}
