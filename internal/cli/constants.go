package cli

import "time"

// Default values for CLI flags and output.
const (
	// TabWidth is the width of tabs in formatted output.
	TabWidth = 2
	// ProgressInterval is the minimum time between two progress lines.
	ProgressInterval = 250 * time.Millisecond
	// MaxURLLength is the maximum length of a URL in tables.
	MaxURLLength = 60
)
