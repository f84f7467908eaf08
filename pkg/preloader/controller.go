// Package preloader fetches a set of assets concurrently, tracks their
// aggregate progress and publishes lifecycle events.
package preloader

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/glorpus-work/preload/internal/logger"
	"github.com/glorpus-work/preload/pkg/asset"
	"github.com/glorpus-work/preload/pkg/errors"
	"github.com/glorpus-work/preload/pkg/events"
	"github.com/glorpus-work/preload/pkg/progress"
	"github.com/glorpus-work/preload/pkg/transfer"
)

// Controller admits assets, runs one transfer worker per asset and keeps the
// registry, the outstanding count and the event buses consistent.
//
// All state is guarded by mu. Notifications are queued in outbox while mu is
// held and delivered by a single draining goroutine after mu is released, so
// subscribers see events in mutation order and may call back into the
// controller. Subscribers must not wait on futures of the same controller.
type Controller struct {
	id        string
	opts      Options
	transport transfer.Transport
	ctx       context.Context
	stop      context.CancelFunc

	mu          sync.Mutex
	registry    *asset.Registry
	futures     map[asset.Token]*Future[asset.Asset]
	requests    map[asset.Token]transfer.Request
	queue       []asset.Token
	outstanding int
	started     bool
	disposed    bool

	outbox   []func()
	draining bool

	progressBus *events.Bus[ProgressEvent]
	fetchedBus  *events.Bus[asset.Asset]
	completeBus *events.Bus[[]asset.Asset]
	errorBus    *events.Bus[asset.Asset]
	cancelBus   *events.Bus[[]asset.Asset]
}

// New creates a controller. It starts deferred: assets admitted with Load
// wait for Start.
func New(opts Options) *Controller {
	t := opts.Transport
	if t == nil {
		t = transfer.NewHTTPTransport(transfer.DefaultHTTPOptions())
	}
	ctx, stop := context.WithCancel(context.Background())
	c := &Controller{
		id:          uuid.NewString(),
		opts:        opts,
		transport:   t,
		ctx:         ctx,
		stop:        stop,
		registry:    asset.NewRegistry(),
		futures:     make(map[asset.Token]*Future[asset.Asset]),
		requests:    make(map[asset.Token]transfer.Request),
		progressBus: events.NewBus[ProgressEvent]("progress"),
		fetchedBus:  events.NewBus[asset.Asset]("fetched"),
		completeBus: events.NewBus[[]asset.Asset]("complete"),
		errorBus:    events.NewBus[asset.Asset]("error"),
		cancelBus:   events.NewBus[[]asset.Asset]("cancel"),
	}
	logger.Debug("preloader created", c.fields(logger.Fields{"policy": opts.TransportErrorPolicy.String()}))
	return c
}

// ID identifies the controller in logs.
func (c *Controller) ID() string {
	return c.id
}

// Load admits url. Its transfer starts right away once Start has been
// called, otherwise it waits for Start. The future resolves with the
// terminal asset; it is rejected only when the transport itself failed or
// the controller was disposed before the transfer started.
func (c *Controller) Load(url string, opts ...LoadOption) *Future[asset.Asset] {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return resolved(asset.Asset{}, errors.ErrDisposed)
	}
	t, f := c.admitLocked(url, opts)
	if c.started {
		c.spawnLocked(t)
	} else {
		c.queue = append(c.queue, t)
	}
	c.mu.Unlock()
	c.flush()
	return f
}

// Fetch admits every url and starts their transfers immediately, whether or
// not Start was called. The future resolves with the terminal assets in
// argument order and carries the first transport error, if any.
func (c *Controller) Fetch(urls []string, opts ...LoadOption) *Future[[]asset.Asset] {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return resolved[[]asset.Asset](nil, errors.ErrDisposed)
	}
	if len(urls) == 0 {
		c.mu.Unlock()
		return resolved([]asset.Asset{}, nil)
	}
	futures := make([]*Future[asset.Asset], len(urls))
	for i, url := range urls {
		t, f := c.admitLocked(url, opts)
		c.spawnLocked(t)
		futures[i] = f
	}
	c.mu.Unlock()
	c.flush()

	batch := newFuture[[]asset.Asset]()
	go func() {
		out := make([]asset.Asset, len(futures))
		var firstErr error
		for i, f := range futures {
			<-f.Done()
			out[i] = f.val
			if f.err != nil && firstErr == nil {
				firstErr = f.err
			}
		}
		batch.resolve(out, firstErr)
	}()
	return batch
}

// Start spawns every deferred asset in admission order and makes later
// loads start immediately. Calling it again only starts assets admitted
// in between.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.started = true
	queue := c.queue
	c.queue = nil
	for _, t := range queue {
		c.spawnLocked(t)
	}
	c.mu.Unlock()
	c.flush()
}

// Cancel aborts every in-flight transfer that has not read its whole body
// and returns the aborted assets. Pending and terminal assets are left
// alone, and so are transfers at full progress, which settle normally.
// OnCancel fires only when something was aborted.
func (c *Controller) Cancel() []asset.Asset {
	c.mu.Lock()
	aborted := c.cancelLocked(false)
	c.mu.Unlock()
	c.flush()
	return aborted
}

// Dispose cancels in-flight transfers, rejects deferred loads, releases the
// registry and tears down every event bus. The controller cannot be reused.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.cancelLocked(true)
	c.disposed = true

	for _, t := range c.queue {
		a, _ := c.registry.Get(t)
		if f, ok := c.futures[t]; ok {
			c.post(func() { f.resolve(a, errors.ErrDisposed) })
		}
	}
	c.queue = nil
	c.outstanding = 0
	c.futures = make(map[asset.Token]*Future[asset.Asset])
	c.requests = make(map[asset.Token]transfer.Request)
	c.registry.Clear()
	c.stop()

	c.post(func() {
		events.DisposeAll(c.progressBus, c.fetchedBus, c.completeBus, c.errorBus, c.cancelBus)
	})
	subscribers := c.progressBus.Len() + c.fetchedBus.Len() + c.completeBus.Len() + c.errorBus.Len() + c.cancelBus.Len()
	logger.Debug("preloader disposed", c.fields(logger.Fields{"subscribers": subscribers}))
	c.mu.Unlock()
	c.flush()
}

// GetByURL returns the first asset admitted for url.
func (c *Controller) GetByURL(url string) (asset.Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Find(url)
}

// Assets returns every admitted asset in admission order.
func (c *Controller) Assets() []asset.Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Snapshot()
}

// OnProgress subscribes to aggregate progress updates.
func (c *Controller) OnProgress(fn func(ProgressEvent)) (unsubscribe func()) {
	return c.progressBus.Subscribe(fn)
}

// OnFetched subscribes to assets that succeeded or failed.
func (c *Controller) OnFetched(fn func(asset.Asset)) (unsubscribe func()) {
	return c.fetchedBus.Subscribe(fn)
}

// OnComplete subscribes to the moment no admitted asset is outstanding.
// The payload is the whole registry.
func (c *Controller) OnComplete(fn func([]asset.Asset)) (unsubscribe func()) {
	return c.completeBus.Subscribe(fn)
}

// OnError subscribes to failed assets.
func (c *Controller) OnError(fn func(asset.Asset)) (unsubscribe func()) {
	return c.errorBus.Subscribe(fn)
}

// OnCancel subscribes to cancellations. The payload is the whole registry.
// A Cancel that aborts nothing does not dispatch.
func (c *Controller) OnCancel(fn func([]asset.Asset)) (unsubscribe func()) {
	return c.cancelBus.Subscribe(fn)
}

func (c *Controller) admitLocked(url string, opts []LoadOption) (asset.Token, *Future[asset.Asset]) {
	t := c.registry.Admit(url)
	f := newFuture[asset.Asset]()
	c.futures[t] = f
	c.requests[t] = c.request(url, opts)
	c.outstanding++
	logger.Debug("asset admitted", c.fields(logger.Fields{"url": url, "outstanding": c.outstanding}))
	return t, f
}

func (c *Controller) spawnLocked(t asset.Token) {
	if err := c.registry.Transition(t, asset.InFlightState{}); err != nil {
		logger.Warn("asset not spawned", c.fields(logger.Fields{"token": int(t), "error": err}))
		return
	}
	req := c.requests[t]
	w := transfer.Spawn(c.ctx, c.transport, req, transfer.Callbacks{
		OnProgress:  func(loaded, total int64) { c.handleProgress(t, loaded, total) },
		OnComplete:  func(r asset.Result) { c.handleSuccess(t, r) },
		OnError:     func(code int) { c.handleFailure(t, code) },
		OnException: func(err error) { c.handleException(t, err) },
	})
	c.registry.SetHandle(t, w)
	logger.Debug("transfer started", c.fields(logger.Fields{"url": req.URL}))
}

func (c *Controller) handleProgress(t asset.Token, loaded, total int64) {
	c.mu.Lock()
	if c.registry.UpdateProgress(t, loaded, total) {
		a, _ := c.registry.Get(t)
		agg := progress.Aggregate(c.registry.Snapshot())
		if !math.IsNaN(agg) {
			c.post(func() { c.logDispatch(c.progressBus.Dispatch(ProgressEvent{Asset: a, Progress: agg})) })
		}
	}
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) handleSuccess(t asset.Token, r asset.Result) {
	c.mu.Lock()
	a, ok := c.terminateLocked(t, asset.SucceededState{Result: r})
	if ok {
		logger.Debug("asset fetched", c.fields(logger.Fields{"url": a.URL, "size": r.Size, "content_type": r.ContentType}))
		c.post(func() { c.logDispatch(c.fetchedBus.Dispatch(a)) })
		c.settleLocked(t, a, nil)
	}
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) handleFailure(t asset.Token, code int) {
	c.mu.Lock()
	a, ok := c.terminateLocked(t, asset.FailedState{StatusCode: code})
	if ok {
		logger.Debug("asset failed", c.fields(logger.Fields{"url": a.URL, "status": code}))
		c.post(func() { c.logDispatch(c.errorBus.Dispatch(a)) })
		c.post(func() { c.logDispatch(c.fetchedBus.Dispatch(a)) })
		c.settleLocked(t, a, nil)
	}
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) handleException(t asset.Token, err error) {
	c.mu.Lock()
	a, ok := c.terminateLocked(t, asset.FailedState{Err: err})
	if ok {
		logger.Warn("transfer failed", c.fields(logger.Fields{"url": a.URL, "error": err}))
		c.post(func() { c.logDispatch(c.errorBus.Dispatch(a)) })
		c.post(func() { c.logDispatch(c.fetchedBus.Dispatch(a)) })
		c.settleLocked(t, a, errors.ErrTransportWithURL(a.URL, err))
		if c.opts.TransportErrorPolicy == PolicyCancelSiblings {
			c.cancelLocked(false)
		}
	}
	c.mu.Unlock()
	c.flush()
}

// terminateLocked moves an in-flight asset to a terminal state. Late
// callbacks for assets that were aborted or released are ignored.
func (c *Controller) terminateLocked(t asset.Token, next asset.State) (asset.Asset, bool) {
	a, ok := c.registry.Get(t)
	if !ok || a.Status() != asset.StatusInFlight {
		return asset.Asset{}, false
	}
	if err := c.registry.Transition(t, next); err != nil {
		logger.Warn("asset transition rejected", c.fields(logger.Fields{"url": a.URL, "error": err}))
		return asset.Asset{}, false
	}
	a, _ = c.registry.Get(t)
	return a, true
}

// settleLocked resolves the asset's future and releases its outstanding
// slot, announcing completion when none are left.
func (c *Controller) settleLocked(t asset.Token, a asset.Asset, err error) {
	if f, ok := c.futures[t]; ok {
		c.post(func() { f.resolve(a, err) })
		delete(c.futures, t)
	}
	delete(c.requests, t)

	c.outstanding--
	if c.outstanding == 0 {
		snapshot := c.registry.Snapshot()
		logger.Debug("all assets settled", c.fields(logger.Fields{"count": len(snapshot)}))
		c.post(func() { c.logDispatch(c.completeBus.Dispatch(snapshot)) })
	}
}

// cancelLocked aborts in-flight transfers. Unless all is set, transfers
// whose body is fully read are left to finish.
func (c *Controller) cancelLocked(all bool) []asset.Asset {
	var tokens []asset.Token
	for _, t := range c.registry.Tokens(asset.StatusInFlight) {
		if a, ok := c.registry.Get(t); ok && (all || a.Progress < 1) {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return nil
	}

	settled := make([]asset.Token, 0, len(tokens))
	aborted := make([]asset.Asset, 0, len(tokens))
	for _, t := range tokens {
		if h, ok := c.registry.Handle(t); ok {
			h.Abort()
		}
		if a, ok := c.terminateLocked(t, asset.AbortedState{}); ok {
			settled = append(settled, t)
			aborted = append(aborted, a)
		}
	}

	snapshot := c.registry.Snapshot()
	logger.Debug("transfers cancelled", c.fields(logger.Fields{"aborted": len(aborted)}))
	c.post(func() { c.logDispatch(c.cancelBus.Dispatch(snapshot)) })

	for i, t := range settled {
		c.settleLocked(t, aborted[i], nil)
	}
	return aborted
}

// post queues a notification. mu must be held.
func (c *Controller) post(fn func()) {
	c.outbox = append(c.outbox, fn)
}

// flush delivers queued notifications unless another goroutine already is.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.outbox) > 0 {
		fn := c.outbox[0]
		c.outbox[0] = nil
		c.outbox = c.outbox[1:]
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}
	c.outbox = nil
	c.draining = false
	c.mu.Unlock()
}

func (c *Controller) logDispatch(err error) {
	if err != nil {
		logger.Warn("event subscriber failed", c.fields(logger.Fields{"error": err}))
	}
}

func (c *Controller) fields(f logger.Fields) logger.Fields {
	out := logger.Fields{"preloader": c.id}
	for k, v := range f {
		out[k] = v
	}
	return out
}
