package preloader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture(t *testing.T) {
	f := newFuture[int]()

	_, _, ok := f.Result()
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	f.resolve(42, nil)
	f.resolve(7, errors.New("ignored"))

	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err, ok = f.Result()
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, 42, v)

	select {
	case <-f.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "continue", PolicyContinue.String())
	assert.Equal(t, "cancel-siblings", PolicyCancelSiblings.String())
	assert.Equal(t, "unknown", Policy(9).String())
}
