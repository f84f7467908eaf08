package hooks

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/preload/pkg/errors"
)

// HookFileExtension is the extension of hook script files.
const HookFileExtension = ".tengo"

// LoadDir registers every <event>.tengo file found in dir. A missing
// directory is not an error; files for unknown events are skipped.
func (m *Manager) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read hooks directory %s", dir)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != HookFileExtension {
			continue
		}
		event, err := ParseEvent(strings.TrimSuffix(entry.Name(), HookFileExtension))
		if err != nil {
			continue
		}

		hookPath := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(hookPath)
		if err != nil {
			return errors.Wrapf(err, "error reading hook file %s", hookPath)
		}
		if err := m.AddHook(Hook{Event: event, Content: string(content)}); err != nil {
			return errors.Wrapf(err, "error adding hook %s", event)
		}
	}
	return nil
}

// resolveScript treats a single-line value ending in .tengo as a path and
// anything else as inline source.
func resolveScript(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if strings.ContainsAny(trimmed, "\n;") || !strings.HasSuffix(trimmed, HookFileExtension) {
		return value, nil
	}
	content, err := os.ReadFile(trimmed)
	if err != nil {
		return "", errors.Wrapf(err, "error reading hook file %s", trimmed)
	}
	return string(content), nil
}

// Template returns a commented starter script for event.
func Template(event Event) string {
	const vars = `// Available variables:
// - event: string - the event name
// - url: string - asset URL
// - status: string - pending, in-flight, succeeded, failed or aborted
// - progress: float - aggregate progress for progress events, asset progress otherwise
// - downloaded, total: int - bytes (total is -1 when unknown)
// - contentType, fileName: string - set once an asset succeeded
// - count: int - number of assets for complete and cancel events
// Set err to a string to report a failure.
`
	switch event {
	case EventProgress:
		return `// Progress hook
// Runs on every accepted progress sample.
` + vars + `
/*
fmt := import("fmt")
fmt.printf("%s %.0f%%\n", url, progress * 100)
*/`

	case EventFetched:
		return `// Fetched hook
// Runs once per asset that succeeded or failed.
` + vars + `
/*
fmt := import("fmt")
if status == "succeeded" {
    fmt.println("fetched " + fileName + " (" + contentType + ")")
}
*/`

	case EventError:
		return `// Error hook
// Runs once per failed asset.
` + vars + `
/*
err := "could not fetch " + url
*/`

	case EventComplete:
		return `// Complete hook
// Runs when no asset is outstanding.
` + vars + `
/*
fmt := import("fmt")
fmt.printf("%d assets, %d bytes\n", count, downloaded)
*/`

	case EventCancel:
		return `// Cancel hook
// Runs when in-flight transfers were aborted.
` + vars

	default:
		return "// Unknown hook event: " + string(event)
	}
}
