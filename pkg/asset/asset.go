// Package asset models the resources managed by a preloader: their lifecycle
// status, the closed set of per-status states and the registry that holds them.
package asset

// Status is the lifecycle position of an asset.
type Status int

const (
	StatusPending Status = iota
	StatusInFlight
	StatusSucceeded
	StatusFailed
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInFlight:
		return "in-flight"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusAborted
}

// CanTransitionTo reports whether s -> next is a legal one-way step:
// Pending -> InFlight -> {Succeeded, Failed, Aborted}.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInFlight
	case StatusInFlight:
		return next.IsTerminal()
	default:
		return false
	}
}

// State is the tagged per-status payload of an asset. The set of
// implementations is closed to this package.
type State interface {
	Status() Status
	sealed()
}

// PendingState marks an admitted asset whose transfer has not been spawned.
type PendingState struct{}

// InFlightState marks an asset whose transfer is running.
type InFlightState struct{}

// SucceededState carries the materialized response of a finished transfer.
type SucceededState struct {
	Result Result
}

// FailedState records why an asset failed. StatusCode is set for
// resource-level failures (e.g. 404); Err is set for transport failures.
type FailedState struct {
	StatusCode int
	Err        error
}

// AbortedState marks an asset cancelled while in flight.
type AbortedState struct{}

func (PendingState) Status() Status   { return StatusPending }
func (InFlightState) Status() Status  { return StatusInFlight }
func (SucceededState) Status() Status { return StatusSucceeded }
func (FailedState) Status() Status    { return StatusFailed }
func (AbortedState) Status() Status   { return StatusAborted }

func (PendingState) sealed()   {}
func (InFlightState) sealed()  {}
func (SucceededState) sealed() {}
func (FailedState) sealed()    {}
func (AbortedState) sealed()   {}

// Result is the metadata and data of a successfully fetched resource.
type Result struct {
	ContentType string
	FileName    string
	Format      string // archive/compression extension if recognised, e.g. ".tar.gz"
	StatusCode  int
	Size        int64
	Data        []byte // nil when the response was discarded
}

// UnknownSize is used for TotalBytes until the transfer reports a length.
const UnknownSize int64 = -1

// Asset is a point-in-time copy of one managed resource.
type Asset struct {
	URL             string
	Progress        float64
	DownloadedBytes int64
	TotalBytes      int64
	State           State
}

// New returns a pending asset for url.
func New(url string) Asset {
	return Asset{URL: url, TotalBytes: UnknownSize, State: PendingState{}}
}

// Status returns the tag of the asset's state.
func (a Asset) Status() Status {
	if a.State == nil {
		return StatusPending
	}
	return a.State.Status()
}

// Error reports whether the asset failed.
func (a Asset) Error() bool {
	return a.Status() == StatusFailed
}

// Result returns the fetch result; ok is false unless the asset succeeded.
func (a Asset) Result() (Result, bool) {
	s, ok := a.State.(SucceededState)
	if !ok {
		return Result{}, false
	}
	return s.Result, true
}

// Failure returns the failure details; ok is false unless the asset failed.
func (a Asset) Failure() (FailedState, bool) {
	f, ok := a.State.(FailedState)
	return f, ok
}
