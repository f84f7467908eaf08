// Package progress computes aggregate preload progress and formats it for humans.
package progress

import (
	"fmt"
	"math"

	"github.com/glorpus-work/preload/pkg/asset"
)

// Aggregate returns the mean progress of assets. Assets that have not
// reported a sample count as zero. The result is NaN for an empty slice;
// callers must check with math.IsNaN before publishing it.
func Aggregate(assets []asset.Asset) float64 {
	if len(assets) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, a := range assets {
		if a.Progress > 0 {
			sum += a.Progress
		}
	}
	return sum / float64(len(assets))
}

// Bytes sums downloaded and known total bytes across assets.
// Assets with an unknown total contribute only to downloaded.
func Bytes(assets []asset.Asset) (downloaded, total int64) {
	for _, a := range assets {
		downloaded += a.DownloadedBytes
		if a.TotalBytes > 0 {
			total += a.TotalBytes
		}
	}
	return downloaded, total
}

// Percent renders an aggregate value as a whole percentage.
func Percent(p float64) string {
	if math.IsNaN(p) {
		return "--%"
	}
	return fmt.Sprintf("%.0f%%", math.Round(p*100))
}

// FormatBytes formats bytes as a human-readable string.
func FormatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
