package transfer

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/glorpus-work/preload/pkg/auth"
	"github.com/glorpus-work/preload/pkg/errors"
)

// DefaultUserAgent is sent when HTTPOptions.UserAgent is empty.
const DefaultUserAgent = "preload/1.0"

const (
	defaultBufferSize = 32 * 1024
	maxDrainBytes     = 64 * 1024
	// maxPrealloc caps how much of a declared Content-Length is reserved up front.
	maxPrealloc = 8 * 1024 * 1024
)

// HTTPOptions configures an HTTPTransport.
type HTTPOptions struct {
	// Timeout bounds a whole request. Zero means no timeout.
	Timeout time.Duration
	// UserAgent defaults to DefaultUserAgent.
	UserAgent string
	// Headers are sent with every request; per-request headers win.
	Headers map[string]string
	// BufferSize is the read buffer size. Default: 32KiB
	BufferSize int
	// Auth, if set, is applied to every request after the headers.
	Auth auth.Authenticator
}

// DefaultHTTPOptions returns options with sensible defaults.
func DefaultHTTPOptions() HTTPOptions {
	return HTTPOptions{
		UserAgent:  DefaultUserAgent,
		BufferSize: defaultBufferSize,
	}
}

// HTTPTransport fetches resources with net/http.
type HTTPTransport struct {
	client     *http.Client
	userAgent  string
	headers    map[string]string
	bufferSize int
	auth       auth.Authenticator
}

// NewHTTPTransport creates a transport from opts.
func NewHTTPTransport(opts HTTPOptions) *HTTPTransport {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	return &HTTPTransport{
		client:     &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		headers:    opts.Headers,
		bufferSize: opts.BufferSize,
		auth:       opts.Auth,
	}
}

// Transfer issues a GET for req.URL and reads the body, reporting progress
// whenever the server announced a Content-Length.
func (t *HTTPTransport) Transfer(ctx context.Context, req Request, progress ProgressFunc) (*Payload, error) {
	if req.URL == "" {
		return nil, errors.ErrEmptyURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("User-Agent", t.userAgent)
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if t.auth != nil {
		if err := t.auth.Apply(httpReq); err != nil {
			return nil, errors.Wrapf(err, "failed to apply %s auth", t.auth.Type())
		}
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	payload := &Payload{
		StatusCode:         resp.StatusCode,
		ContentType:        resp.Header.Get("Content-Type"),
		ContentDisposition: resp.Header.Get("Content-Disposition"),
		FinalURL:           req.URL,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		payload.FinalURL = resp.Request.URL.String()
	}

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		return payload, nil
	}

	data, n, err := t.readBody(resp, req.ResponseType, progress)
	if err != nil {
		return nil, err
	}
	payload.Data = data
	payload.Length = n
	return payload, nil
}

func (t *HTTPTransport) readBody(resp *http.Response, rt ResponseType, progress ProgressFunc) ([]byte, int64, error) {
	total := resp.ContentLength
	keep := rt != ResponseDiscard

	var out bytes.Buffer
	if keep && total > 0 {
		out.Grow(int(min(total, maxPrealloc)))
	}

	buf := make([]byte, t.bufferSize)
	var loaded int64
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if keep {
				_, _ = out.Write(buf[:n])
			}
			loaded += int64(n)
			if total > 0 && progress != nil {
				progress(loaded, total)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, loaded, errors.Wrap(err, "failed to read response body")
		}
	}

	if !keep {
		return nil, loaded, nil
	}
	return out.Bytes(), loaded, nil
}
