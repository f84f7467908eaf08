package asset

import (
	"errors"
	"testing"

	pkgerrors "github.com/glorpus-work/preload/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	all := []Status{StatusPending, StatusInFlight, StatusSucceeded, StatusFailed, StatusAborted}
	allowed := map[Status][]Status{
		StatusPending:  {StatusInFlight},
		StatusInFlight: {StatusSucceeded, StatusFailed, StatusAborted},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "in-flight", StatusInFlight.String())
	assert.Equal(t, "succeeded", StatusSucceeded.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "aborted", StatusAborted.String())
	assert.Equal(t, "unknown", Status(42).String())
}

func TestAssetAccessors(t *testing.T) {
	a := New("http://example.com/a.mp4")
	assert.Equal(t, StatusPending, a.Status())
	assert.Equal(t, UnknownSize, a.TotalBytes)
	assert.False(t, a.Error())
	_, ok := a.Result()
	assert.False(t, ok)

	a.State = SucceededState{Result: Result{ContentType: "video/mp4", Size: 3}}
	res, ok := a.Result()
	require.True(t, ok)
	assert.Equal(t, "video/mp4", res.ContentType)

	a.State = FailedState{StatusCode: 404}
	assert.True(t, a.Error())
	f, ok := a.Failure()
	require.True(t, ok)
	assert.Equal(t, 404, f.StatusCode)
	_, ok = a.Result()
	assert.False(t, ok, "result is only present on success")
}

type abortSpy struct{ aborted int }

func (a *abortSpy) Abort() { a.aborted++ }

func TestRegistry_AdmitKeepsOrderAndDuplicates(t *testing.T) {
	r := NewRegistry()
	t0 := r.Admit("a.mp4")
	t1 := r.Admit("b.jpg")
	t2 := r.Admit("a.mp4")

	assert.Len(t, r.Snapshot(), 3)
	assert.NotEqual(t, t0, t2, "duplicate URLs get independent entries")

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"a.mp4", "b.jpg", "a.mp4"}, []string{snap[0].URL, snap[1].URL, snap[2].URL})

	require.NoError(t, r.Transition(t2, InFlightState{}))
	found, ok := r.Find("a.mp4")
	require.True(t, ok)
	assert.Equal(t, StatusPending, found.Status(), "Find returns the first match")

	_, ok = r.Find("missing")
	assert.False(t, ok)

	got, ok := r.Get(t1)
	require.True(t, ok)
	assert.Equal(t, "b.jpg", got.URL)
}

func TestRegistry_TransitionIsOneWay(t *testing.T) {
	r := NewRegistry()
	tok := r.Admit("a.mp4")

	err := r.Transition(tok, SucceededState{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidTransition))

	require.NoError(t, r.Transition(tok, InFlightState{}))
	require.NoError(t, r.Transition(tok, SucceededState{Result: Result{Size: 10}}))

	for _, next := range []State{PendingState{}, InFlightState{}, FailedState{}, AbortedState{}, SucceededState{}} {
		err := r.Transition(tok, next)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransition, "terminal state must stick for %s", next.Status())
	}

	a, _ := r.Get(tok)
	assert.Equal(t, StatusSucceeded, a.Status())
	assert.Equal(t, int64(10), a.DownloadedBytes)
	assert.Equal(t, int64(10), a.TotalBytes)
}

func TestRegistry_TransitionUnknownToken(t *testing.T) {
	r := NewRegistry()
	err := r.Transition(Token(3), InFlightState{})
	assert.ErrorIs(t, err, pkgerrors.ErrUnknownToken)
}

func TestRegistry_UpdateProgress(t *testing.T) {
	r := NewRegistry()
	tok := r.Admit("a.mp4")

	assert.False(t, r.UpdateProgress(tok, 10, 100), "pending entries take no samples")
	require.NoError(t, r.Transition(tok, InFlightState{}))

	assert.False(t, r.UpdateProgress(tok, 10, 0), "no denominator, no sample")
	assert.True(t, r.UpdateProgress(tok, 50, 100))
	assert.False(t, r.UpdateProgress(tok, 40, 100), "progress never moves backwards")
	assert.True(t, r.UpdateProgress(tok, 50, 100))
	assert.True(t, r.UpdateProgress(tok, 150, 100))

	a, _ := r.Get(tok)
	assert.InDelta(t, 1.0, a.Progress, 1e-9)
	assert.Equal(t, int64(100), a.TotalBytes)

	require.NoError(t, r.Transition(tok, AbortedState{}))
	assert.False(t, r.UpdateProgress(tok, 100, 100))
}

func TestRegistry_Handles(t *testing.T) {
	r := NewRegistry()
	tok := r.Admit("a.mp4")
	require.NoError(t, r.Transition(tok, InFlightState{}))

	spy := &abortSpy{}
	r.SetHandle(tok, spy)
	h, ok := r.Handle(tok)
	require.True(t, ok)
	h.Abort()
	assert.Equal(t, 1, spy.aborted)

	require.NoError(t, r.Transition(tok, AbortedState{}))
	_, ok = r.Handle(tok)
	assert.False(t, ok, "terminal entries drop their handle")
}

func TestRegistry_TokensAndClear(t *testing.T) {
	r := NewRegistry()
	a := r.Admit("a")
	r.Admit("b")
	c := r.Admit("c")
	require.NoError(t, r.Transition(a, InFlightState{}))
	require.NoError(t, r.Transition(c, InFlightState{}))

	assert.Equal(t, []Token{a, c}, r.Tokens(StatusInFlight))
	assert.Len(t, r.Tokens(StatusPending), 1)

	r.Clear()
	assert.Empty(t, r.Snapshot())
	_, ok := r.Get(a)
	assert.False(t, ok)
}
