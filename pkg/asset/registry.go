package asset

import (
	"fmt"

	"github.com/glorpus-work/preload/pkg/errors"
)

// Token addresses one entry of a Registry. Tokens are stable for the life of
// the registry and are the only reference handed to transfer workers.
type Token int

// Handle lets the registry owner abort the transfer backing an entry.
type Handle interface {
	Abort()
}

type entry struct {
	asset  Asset
	handle Handle
}

// Registry is an append-only, insertion-ordered arena of assets.
// It is not safe for concurrent use; its owner serializes access.
type Registry struct {
	entries []entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Admit appends a pending asset for url. Duplicate URLs get their own entry.
func (r *Registry) Admit(url string) Token {
	r.entries = append(r.entries, entry{asset: New(url)})
	return Token(len(r.entries) - 1)
}

// Get returns a copy of the asset behind t.
func (r *Registry) Get(t Token) (Asset, bool) {
	if !r.valid(t) {
		return Asset{}, false
	}
	return r.entries[t].asset, true
}

// Find returns the first asset admitted for url.
func (r *Registry) Find(url string) (Asset, bool) {
	for _, e := range r.entries {
		if e.asset.URL == url {
			return e.asset, true
		}
	}
	return Asset{}, false
}

// Snapshot copies every asset in admission order.
func (r *Registry) Snapshot() []Asset {
	out := make([]Asset, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.asset
	}
	return out
}

// Tokens lists, in admission order, the entries currently in status s.
func (r *Registry) Tokens(s Status) []Token {
	var out []Token
	for i, e := range r.entries {
		if e.asset.Status() == s {
			out = append(out, Token(i))
		}
	}
	return out
}

// Transition moves the entry to next. Regressions and moves out of a
// terminal state are rejected with ErrInvalidTransition.
func (r *Registry) Transition(t Token, next State) error {
	if !r.valid(t) {
		return fmt.Errorf("%w: %d", errors.ErrUnknownToken, t)
	}
	e := &r.entries[t]
	from := e.asset.Status()
	if !from.CanTransitionTo(next.Status()) {
		return fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, from, next.Status())
	}
	e.asset.State = next
	if s, ok := next.(SucceededState); ok {
		e.asset.DownloadedBytes = s.Result.Size
		if e.asset.TotalBytes == UnknownSize {
			e.asset.TotalBytes = s.Result.Size
		}
	}
	if next.Status().IsTerminal() {
		e.handle = nil
	}
	return nil
}

// UpdateProgress records a byte-level sample for an in-flight entry.
// Samples without a positive total, for entries not in flight, or that
// would move progress backwards are ignored and reported as false.
func (r *Registry) UpdateProgress(t Token, loaded, total int64) bool {
	if !r.valid(t) || total <= 0 {
		return false
	}
	a := &r.entries[t].asset
	if a.Status() != StatusInFlight {
		return false
	}
	p := float64(loaded) / float64(total)
	if p > 1 {
		p = 1
	}
	if p < a.Progress {
		return false
	}
	a.Progress = p
	a.DownloadedBytes = loaded
	a.TotalBytes = total
	return true
}

// SetHandle attaches the abort handle of the entry's transfer.
func (r *Registry) SetHandle(t Token, h Handle) {
	if r.valid(t) {
		r.entries[t].handle = h
	}
}

// Handle returns the abort handle of the entry, if its transfer is live.
func (r *Registry) Handle(t Token) (Handle, bool) {
	if !r.valid(t) || r.entries[t].handle == nil {
		return nil, false
	}
	return r.entries[t].handle, true
}

// Clear drops every entry.
func (r *Registry) Clear() {
	r.entries = nil
}

func (r *Registry) valid(t Token) bool {
	return t >= 0 && int(t) < len(r.entries)
}
