package fsutil

import (
	"os"
	"path/filepath"
)

// AppName is the name of the application used in paths.
const AppName = "preload"

// GetConfigDir returns the platform-specific configuration directory.
// On Linux: $XDG_CONFIG_HOME/preload or ~/.config/preload
// On macOS: ~/Library/Application Support/preload
// On Windows: %AppData%\preload
func GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, AppName), nil
}

// GetHooksDir returns the directory scanned for <event>.tengo hook files.
func GetHooksDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "hooks"), nil
}
