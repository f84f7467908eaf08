// Package manifest reads YAML lists of assets to preload.
package manifest

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"

	"github.com/glorpus-work/preload/pkg/errors"
	"github.com/glorpus-work/preload/pkg/preloader"
	"github.com/glorpus-work/preload/pkg/transfer"
)

// Manifest lists assets and the defaults applied to them.
type Manifest struct {
	// Requires is a version constraint on the preload tool, e.g. ">= 0.1.0".
	Requires     string                `yaml:"requires,omitempty"`
	ResponseType transfer.ResponseType `yaml:"response_type,omitempty"`
	Headers      map[string]string     `yaml:"headers,omitempty"`
	Assets       []Entry               `yaml:"assets"`
}

// Entry is one asset of a manifest. Its fields override the manifest defaults.
type Entry struct {
	URL          string                `yaml:"url"`
	ResponseType transfer.ResponseType `yaml:"response_type,omitempty"`
	Headers      map[string]string     `yaml:"headers,omitempty"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open manifest %s", path)
	}
	defer func() { _ = f.Close() }()

	m, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest %s", path)
	}
	return m, nil
}

// Parse decodes and validates a manifest. Unknown keys are rejected.
func Parse(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if err == io.EOF {
			return nil, errors.ErrManifestEmpty
		}
		return nil, fmt.Errorf("%w: %w", errors.ErrManifestParse, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that the manifest lists at least one well-formed asset.
func (m *Manifest) Validate() error {
	if len(m.Assets) == 0 {
		return errors.ErrManifestEmpty
	}
	if !m.ResponseType.Valid() {
		return errors.ErrInvalidResponseTypeWithDetails(string(m.ResponseType))
	}
	for i, e := range m.Assets {
		if e.URL == "" {
			return fmt.Errorf("asset %d: %w", i, errors.ErrEmptyURL)
		}
		if !e.ResponseType.Valid() {
			return fmt.Errorf("asset %d: %w", i, errors.ErrInvalidResponseTypeWithDetails(string(e.ResponseType)))
		}
	}
	if m.Requires != "" {
		if _, err := version.NewConstraint(m.Requires); err != nil {
			return fmt.Errorf("%w %q: %w", errors.ErrInvalidConstraint, m.Requires, err)
		}
	}
	return nil
}

// CheckVersion fails with ErrIncompatibleVersion when current does not
// satisfy Requires.
func (m *Manifest) CheckVersion(current string) error {
	if m.Requires == "" {
		return nil
	}
	constraint, err := version.NewConstraint(m.Requires)
	if err != nil {
		return fmt.Errorf("%w %q: %w", errors.ErrInvalidConstraint, m.Requires, err)
	}
	v, err := version.NewVersion(current)
	if err != nil {
		return errors.Wrapf(err, "invalid tool version %q", current)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", errors.ErrIncompatibleVersion, v, m.Requires)
	}
	return nil
}

// URLs returns the asset URLs in manifest order.
func (m *Manifest) URLs() []string {
	urls := make([]string, len(m.Assets))
	for i, e := range m.Assets {
		urls[i] = e.URL
	}
	return urls
}

// Uniform reports whether every entry uses the manifest defaults, so the
// whole manifest can be fetched with one set of options.
func (m *Manifest) Uniform() bool {
	for _, e := range m.Assets {
		if e.ResponseType != "" || len(e.Headers) > 0 {
			return false
		}
	}
	return true
}

// Options returns the load options of the manifest defaults.
func (m *Manifest) Options() []preloader.LoadOption {
	return options(m.ResponseType, m.Headers)
}

// EntryOptions returns the load options of entry i, defaults included.
func (m *Manifest) EntryOptions(i int) []preloader.LoadOption {
	e := m.Assets[i]
	opts := m.Options()
	return append(opts, options(e.ResponseType, e.Headers)...)
}

func options(rt transfer.ResponseType, headers map[string]string) []preloader.LoadOption {
	var opts []preloader.LoadOption
	if rt != "" {
		opts = append(opts, preloader.WithResponseType(rt))
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opts = append(opts, preloader.WithHeader(k, headers[k]))
	}
	return opts
}
