// Package archive identifies archive and compression formats of fetched payloads.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/mholt/archives"
)

// Identify returns the extension of the archive or compression format of
// data (for example ".zip" or ".tar.gz"). Payloads in no known format yield
// an empty string and a nil error. The filename hint may be empty.
func Identify(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	format, _, err := archives.Identify(ctx, filename, bytes.NewReader(data))
	if errors.Is(err, archives.NoMatch) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to identify payload format: %w", err)
	}
	return format.Extension(), nil
}
