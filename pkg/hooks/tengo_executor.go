package hooks

import (
	"fmt"
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/glorpus-work/preload/pkg/errors"
)

// TengoExecutor runs Tengo scripts keyed by event.
type TengoExecutor struct {
	scripts map[Event]string
	mutex   sync.RWMutex
}

// NewTengoExecutor creates an executor without scripts.
func NewTengoExecutor() *TengoExecutor {
	return &TengoExecutor{
		scripts: make(map[Event]string),
	}
}

// Execute runs the script for event, if any. A script reports failure by
// setting a top-level err variable to an error or a non-empty string.
func (e *TengoExecutor) Execute(event Event, ctx Context) error {
	e.mutex.RLock()
	script, exists := e.scripts[event]
	e.mutex.RUnlock()
	if !exists {
		return nil
	}

	s := tengo.NewScript([]byte(script))
	s.SetImports(stdlib.GetModuleMap("fmt", "os", "text", "times", "math", "json"))

	vars := map[string]interface{}{
		"event":       string(event),
		"url":         ctx.URL,
		"status":      ctx.Status,
		"progress":    ctx.Progress,
		"downloaded":  ctx.Downloaded,
		"total":       ctx.Total,
		"contentType": ctx.ContentType,
		"fileName":    ctx.FileName,
		"count":       ctx.Count,
	}
	for k, v := range ctx.Vars {
		vars[k] = v
	}
	for k, v := range vars {
		if err := s.Add(k, v); err != nil {
			return fmt.Errorf("failed to add variable '%s' to script: %w", k, err)
		}
	}

	compiled, err := s.Run()
	if err != nil {
		return fmt.Errorf("%s: %w: %w", event, errors.ErrHookExecution, err)
	}

	if errVar := compiled.Get("err"); errVar != nil {
		switch v := errVar.Value().(type) {
		case error:
			return fmt.Errorf("%s: %w: %w", event, errors.ErrHookScript, v)
		case string:
			if v != "" {
				return fmt.Errorf("%s: %w: %s", event, errors.ErrHookScript, v)
			}
		}
	}
	return nil
}

// AddScript adds or replaces the script for event.
func (e *TengoExecutor) AddScript(event Event, script string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.scripts[event] = script
}

// RemoveScript drops the script for event.
func (e *TengoExecutor) RemoveScript(event Event) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.scripts, event)
}

// HasScript reports whether event has a script.
func (e *TengoExecutor) HasScript(event Event) bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	_, exists := e.scripts[event]
	return exists
}
