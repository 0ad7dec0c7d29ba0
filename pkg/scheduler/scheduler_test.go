package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_RejectsBadSpecAndDuplicates(t *testing.T) {
	s := New(nil)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Register("retrain", "0 30 6 * * 1-5", noop))
	assert.Error(t, s.Register("retrain", "0 30 6 * * 1-5", noop))
	assert.Error(t, s.Register("broken", "not a cron", noop))
	assert.Error(t, s.Register("five-field", "30 6 * * 1-5 extra", noop))
}

func TestScheduler_RunsTasks(t *testing.T) {
	s := New(nil)
	var runs int32
	require.NoError(t, s.Register("tick", "* * * * * *", func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}))
	s.Start()
	assert.False(t, s.Next("tick").IsZero())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestRunNow_ReportsErrorsAndPanics(t *testing.T) {
	s := New(nil, WithTaskTimeout(50*time.Millisecond))

	err := s.RunNow("fail", func(context.Context) error { return errors.New("boom") })
	assert.EqualError(t, err, "boom")

	err = s.RunNow("panic", func(context.Context) error { panic("bad") })
	assert.ErrorContains(t, err, "panic: bad")

	err = s.RunNow("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, s.Next("unknown").IsZero())
}
