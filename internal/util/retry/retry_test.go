package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOpts(extra ...Option) []Option {
	base := []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond)}
	return append(base, extra...)
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	}, fastOpts()...)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("throttled")
		}
		return nil
	}, fastOpts()...)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errors.New("still broken")
	}, fastOpts(WithMaxRetries(2))...)

	require.Error(t, err)
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Contains(t, err.Error(), "still broken")
}

func TestDoStopsOnFatal(t *testing.T) {
	calls := 0
	sentinel := errors.New("resource does not exist")
	err := Do(context.Background(), func() error {
		calls++
		return Fatal(sentinel)
	}, fastOpts()...)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "not retrying")
	assert.ErrorIs(t, err, sentinel)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("transient")
	}, WithInitialDelay(time.Minute))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFatal(t *testing.T) {
	assert.Nil(t, Fatal(nil))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))

	wrapped := Fatal(errors.New("gone"))
	assert.True(t, IsFatal(wrapped))
	assert.True(t, IsFatal(errors.Join(errors.New("outer"), wrapped)))
	assert.Equal(t, "gone", wrapped.Error())
}
