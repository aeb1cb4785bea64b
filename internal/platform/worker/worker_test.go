package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait(t *testing.T) {
	require.NoError(t, Wait(context.Background(), 0))
	require.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Wait(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunWithTimeout(t *testing.T) {
	err := RunWithTimeout(context.Background(), time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	sentinel := errors.New("boom")
	err = RunWithTimeout(context.Background(), 0, func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.False(t, hasDeadline)

		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
}

func TestRecoverPanic(t *testing.T) {
	logger := zerolog.Nop()

	assert.NotPanics(t, func() {
		defer RecoverPanic(&logger, "test")
		panic("boom")
	})
}
