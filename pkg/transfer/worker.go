package transfer

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/glorpus-work/preload/pkg/asset"
)

var (
	// ErrNoPayload is reported when a Transport returns neither payload nor error.
	ErrNoPayload = fmt.Errorf("transport returned no payload")
	// ErrTransportPanic is reported when a Transport panics.
	ErrTransportPanic = fmt.Errorf("transport panicked")
)

// Callbacks receive the outcome of one transfer. Exactly one of OnComplete,
// OnError and OnException fires unless the worker is aborted first.
type Callbacks struct {
	// OnProgress fires for samples with a known total.
	OnProgress func(loaded, total int64)
	// OnComplete fires with the materialized result of a successful response.
	OnComplete func(result asset.Result)
	// OnError fires for resource-level failures such as 404.
	OnError func(statusCode int)
	// OnException fires when the transport itself failed.
	OnException func(err error)
}

// Worker runs one Transport call in its own goroutine.
type Worker struct {
	req     Request
	ctx     context.Context
	cancel  context.CancelFunc
	aborted atomic.Bool
	done    chan struct{}
}

// Spawn starts transferring req with t and returns immediately.
func Spawn(parent context.Context, t Transport, req Request, cb Callbacks) *Worker {
	if req.ResponseType == "" {
		req.ResponseType = ResponseBlob
	}
	ctx, cancel := context.WithCancel(parent)
	w := &Worker{
		req:    req,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run(t, cb)
	return w
}

func (w *Worker) run(t Transport, cb Callbacks) {
	defer close(w.done)
	defer w.cancel()

	payload, err := w.transfer(t, func(loaded, total int64) {
		if total <= 0 || w.aborted.Load() || cb.OnProgress == nil {
			return
		}
		cb.OnProgress(loaded, total)
	})
	if w.aborted.Load() {
		return
	}

	switch {
	case err != nil:
		call(cb.OnException, err)
	case payload == nil:
		call(cb.OnException, ErrNoPayload)
	case payload.StatusCode >= http.StatusBadRequest:
		call(cb.OnError, payload.StatusCode)
	default:
		call(cb.OnComplete, NewResult(w.ctx, payload))
	}
}

func (w *Worker) transfer(t Transport, progress ProgressFunc) (payload *Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload, err = nil, fmt.Errorf("%w: %v", ErrTransportPanic, r)
		}
	}()
	return t.Transfer(w.ctx, w.req, progress)
}

func call[T any](fn func(T), v T) {
	if fn != nil {
		fn(v)
	}
}

// Abort cancels the transfer. No callback fires after Abort returns,
// except one that was already running.
func (w *Worker) Abort() {
	if w.aborted.CompareAndSwap(false, true) {
		w.cancel()
	}
}
