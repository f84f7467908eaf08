// Package testutil holds helpers shared by package and CLI tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/glorpus-work/preload/internal/logger"
)

// Asset describes how the AssetServer answers one path.
type Asset struct {
	Body        []byte
	ContentType string
	// Status overrides the 200 response code.
	Status int
	// Chunked omits Content-Length so clients cannot compute progress.
	Chunked bool
	// Disposition is sent as the Content-Disposition header.
	Disposition string
	// RedirectTo answers with a 302 to another path of the server.
	RedirectTo string
	// Gate, if set, holds the second half of the body until it is closed
	// or the request is cancelled.
	Gate chan struct{}
}

// AssetServer is an httptest server with scriptable assets.
// Unknown paths answer 404.
type AssetServer struct {
	*httptest.Server

	mu      sync.Mutex
	assets  map[string]Asset
	hits    map[string]int
	headers map[string]http.Header
}

// NewAssetServer starts a server that is closed when the test ends.
func NewAssetServer(t *testing.T) *AssetServer {
	t.Helper()
	s := &AssetServer{
		assets:  make(map[string]Asset),
		hits:    make(map[string]int),
		headers: make(map[string]http.Header),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Add registers a at path (leading slash optional).
func (s *AssetServer) Add(path string, a Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[normalize(path)] = a
}

// AssetURL returns the absolute URL of path.
func (s *AssetServer) AssetURL(path string) string {
	return s.URL + normalize(path)
}

// Hits returns how many requests reached path.
func (s *AssetServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[normalize(path)]
}

// LastHeaders returns the request headers of the latest request to path.
func (s *AssetServer) LastHeaders(path string) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[normalize(path)]
}

func (s *AssetServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	a, ok := s.assets[r.URL.Path]
	s.hits[r.URL.Path]++
	s.headers[r.URL.Path] = r.Header.Clone()
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if a.RedirectTo != "" {
		http.Redirect(w, r, normalize(a.RedirectTo), http.StatusFound)
		return
	}
	if a.ContentType != "" {
		w.Header().Set("Content-Type", a.ContentType)
	}
	if a.Disposition != "" {
		w.Header().Set("Content-Disposition", a.Disposition)
	}
	if !a.Chunked {
		w.Header().Set("Content-Length", strconv.Itoa(len(a.Body)))
	}
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	half := len(a.Body) / 2
	_, _ = w.Write(a.Body[:half])
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	if a.Gate != nil {
		select {
		case <-a.Gate:
		case <-r.Context().Done():
			return
		}
	}
	_, _ = w.Write(a.Body[half:])
}

func normalize(path string) string {
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// WriteConfig writes a config file into a temporary directory and returns its path.
func WriteConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	logger.Debugf("Writing test config to: %s", configPath)
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}
