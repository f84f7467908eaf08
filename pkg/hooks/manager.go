package hooks

import (
	"github.com/glorpus-work/preload/internal/logger"
	"github.com/glorpus-work/preload/pkg/asset"
	"github.com/glorpus-work/preload/pkg/errors"
	"github.com/glorpus-work/preload/pkg/preloader"
)

// Source is the subscription surface of a preloader.Controller.
type Source interface {
	OnProgress(fn func(preloader.ProgressEvent)) func()
	OnFetched(fn func(asset.Asset)) func()
	OnError(fn func(asset.Asset)) func()
	OnComplete(fn func([]asset.Asset)) func()
	OnCancel(fn func([]asset.Asset)) func()
}

// Manager validates hooks and runs them on controller events.
type Manager struct {
	executor *TengoExecutor
	vars     map[string]interface{}
}

// NewManager creates a manager. vars are passed to every script.
func NewManager(vars map[string]interface{}) *Manager {
	return &Manager{
		executor: NewTengoExecutor(),
		vars:     vars,
	}
}

// AddHook registers a hook, replacing any previous one for the same event.
func (m *Manager) AddHook(hook Hook) error {
	if _, err := ParseEvent(string(hook.Event)); err != nil {
		return err
	}
	m.executor.AddScript(hook.Event, hook.Content)
	return nil
}

// RemoveHook drops the hook for event.
func (m *Manager) RemoveHook(event Event) {
	m.executor.RemoveScript(event)
}

// HasHook reports whether event has a hook.
func (m *Manager) HasHook(event Event) bool {
	return m.executor.HasScript(event)
}

// Execute runs the hook for event with the manager's vars merged in.
func (m *Manager) Execute(event Event, ctx Context) error {
	if !m.HasHook(event) {
		return nil
	}
	if len(m.vars) > 0 {
		merged := make(map[string]interface{}, len(m.vars)+len(ctx.Vars))
		for k, v := range m.vars {
			merged[k] = v
		}
		for k, v := range ctx.Vars {
			merged[k] = v
		}
		ctx.Vars = merged
	}
	return m.executor.Execute(event, ctx)
}

// Attach subscribes the manager's hooks to src. Hook failures are logged and
// never reach the controller. The returned func detaches every subscription.
func (m *Manager) Attach(src Source) (detach func()) {
	var unsubs []func()

	if m.HasHook(EventProgress) {
		unsubs = append(unsubs, src.OnProgress(func(e preloader.ProgressEvent) {
			ctx := assetContext(e.Asset)
			ctx.Progress = e.Progress
			m.run(EventProgress, ctx)
		}))
	}
	if m.HasHook(EventFetched) {
		unsubs = append(unsubs, src.OnFetched(func(a asset.Asset) {
			m.run(EventFetched, assetContext(a))
		}))
	}
	if m.HasHook(EventError) {
		unsubs = append(unsubs, src.OnError(func(a asset.Asset) {
			m.run(EventError, assetContext(a))
		}))
	}
	if m.HasHook(EventComplete) {
		unsubs = append(unsubs, src.OnComplete(func(as []asset.Asset) {
			m.run(EventComplete, batchContext(as))
		}))
	}
	if m.HasHook(EventCancel) {
		unsubs = append(unsubs, src.OnCancel(func(as []asset.Asset) {
			m.run(EventCancel, batchContext(as))
		}))
	}

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (m *Manager) run(event Event, ctx Context) {
	if err := m.Execute(event, ctx); err != nil {
		logger.Warn("hook failed", logger.Fields{"event": string(event), "url": ctx.URL, "error": err})
	}
}

func assetContext(a asset.Asset) Context {
	ctx := Context{
		URL:        a.URL,
		Status:     a.Status().String(),
		Progress:   a.Progress,
		Downloaded: a.DownloadedBytes,
		Total:      a.TotalBytes,
	}
	if r, ok := a.Result(); ok {
		ctx.ContentType = r.ContentType
		ctx.FileName = r.FileName
	}
	return ctx
}

func batchContext(as []asset.Asset) Context {
	ctx := Context{Count: len(as)}
	for _, a := range as {
		ctx.Downloaded += a.DownloadedBytes
		if a.TotalBytes > 0 {
			ctx.Total += a.TotalBytes
		}
	}
	return ctx
}

// LoadHooks registers one hook per entry of scripts, keyed by event name.
func (m *Manager) LoadHooks(scripts map[string]string) error {
	for name, content := range scripts {
		event, err := ParseEvent(name)
		if err != nil {
			return err
		}
		script, err := resolveScript(content)
		if err != nil {
			return errors.Wrapf(err, "error loading %s hook", name)
		}
		if err := m.AddHook(Hook{Event: event, Content: script}); err != nil {
			return err
		}
	}
	return nil
}
