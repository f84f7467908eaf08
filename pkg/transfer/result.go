package transfer

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"

	"github.com/glorpus-work/preload/internal/logger"
	"github.com/glorpus-work/preload/pkg/archive"
	"github.com/glorpus-work/preload/pkg/asset"
)

// NewResult materializes the result metadata of a successful payload.
func NewResult(ctx context.Context, p *Payload) asset.Result {
	name := FileName(p)

	contentType := p.ContentType
	if contentType == "" && len(p.Data) > 0 {
		contentType = http.DetectContentType(p.Data)
	}

	format, err := archive.Identify(ctx, name, p.Data)
	if err != nil {
		logger.Debug("payload format not identified", logger.Fields{"url": p.FinalURL, "error": err})
	}

	return asset.Result{
		ContentType: contentType,
		FileName:    name,
		Format:      format,
		StatusCode:  p.StatusCode,
		Size:        p.Length,
		Data:        p.Data,
	}
}

// FileName picks the Content-Disposition filename if present, otherwise the
// last path segment of the final response URL.
func FileName(p *Payload) string {
	if p.ContentDisposition != "" {
		_, params, err := mime.ParseMediaType(p.ContentDisposition)
		if err == nil && params["filename"] != "" {
			return filepath.Base(params["filename"])
		}
	}
	u, err := url.Parse(p.FinalURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
