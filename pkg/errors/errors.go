// Package errors defines the sentinel errors shared by the preloader packages
// and small helpers for wrapping them with context.
package errors

import "fmt"

// Common error types.
var (
	// Controller errors.
	ErrDisposed          = fmt.Errorf("preloader has been disposed")
	ErrEmptyURL          = fmt.Errorf("asset URL cannot be empty")
	ErrTransport         = fmt.Errorf("transport failure")
	ErrSubscriberPanic   = fmt.Errorf("event subscriber panicked")
	ErrInvalidTransition = fmt.Errorf("invalid asset state transition")
	ErrUnknownToken      = fmt.Errorf("unknown asset token")

	// Config errors.
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate  = fmt.Errorf("failed to create config file")
	ErrConfigFileExists  = fmt.Errorf("configuration file already exists (use --force to overwrite)")
	ErrConfigFileRename  = fmt.Errorf("failed to rename temporary config file")
	ErrConfigMarshal     = fmt.Errorf("failed to marshal config to YAML")

	// ErrHTTPTimeoutNegative is returned when HTTP timeout is set to a negative value.
	ErrHTTPTimeoutNegative = fmt.Errorf("http_timeout cannot be negative")
	ErrInvalidOutputFormat = fmt.Errorf("invalid output format")
	ErrInvalidLogLevel     = fmt.Errorf("invalid log level")
	ErrInvalidResponseType = fmt.Errorf("invalid response type")
	ErrInvalidBoolValue    = fmt.Errorf("invalid boolean value")
	ErrUnknownConfigKey    = fmt.Errorf("unknown configuration key")
	ErrUnknownHookEvent    = fmt.Errorf("unknown hook event")
	ErrInvalidAuth         = fmt.Errorf("invalid auth settings")

	// Manifest errors.
	ErrManifestParse       = fmt.Errorf("failed to parse manifest")
	ErrManifestEmpty       = fmt.Errorf("manifest lists no assets")
	ErrInvalidConstraint   = fmt.Errorf("invalid version constraint")
	ErrIncompatibleVersion = fmt.Errorf("incompatible tool version")

	// Hook errors.
	ErrHookExecution = fmt.Errorf("error executing hook")
	ErrHookScript    = fmt.Errorf("hook script error")

	// Command errors.
	ErrNoAssets     = fmt.Errorf("no assets to fetch")
	ErrAssetsFailed = fmt.Errorf("one or more assets failed")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ErrInvalidOutputFormatWithDetails is a helper to create a wrapped error with the invalid format and valid options.
func ErrInvalidOutputFormatWithDetails(format string) error {
	return fmt.Errorf("%w: '%s', must be one of: text, json", ErrInvalidOutputFormat, format)
}

// ErrInvalidLogLevelWithDetails is a helper to create a wrapped error with the invalid level and valid options.
func ErrInvalidLogLevelWithDetails(level string) error {
	return fmt.Errorf("%w: '%s', must be one of: error, warn, info, debug", ErrInvalidLogLevel, level)
}

// ErrInvalidResponseTypeWithDetails reports a response type outside blob and discard.
func ErrInvalidResponseTypeWithDetails(rt string) error {
	return fmt.Errorf("%w: '%s', must be one of: blob, discard", ErrInvalidResponseType, rt)
}

// ErrUnknownHookEventWithName reports a hook configured for an event the preloader never emits.
func ErrUnknownHookEventWithName(name string) error {
	return fmt.Errorf("%w: %s", ErrUnknownHookEvent, name)
}

// ErrTransportWithURL marks err as a transport-level failure for url.
func ErrTransportWithURL(url string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, url, err)
}
