package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestGuard_Exec(t *testing.T) {
	ctx := context.Background()
	g := New(cache.NewMemory())

	calls := 0
	run := func(context.Context) error {
		calls++
		return nil
	}

	require.NoError(t, g.Exec(ctx, "callback:r1:authentication", run))

	err := g.Exec(ctx, "callback:r1:authentication", run)
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, StateCompleted, dup.State)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 1, calls)

	require.NoError(t, g.Exec(ctx, "callback:r1:timeout", run))
	assert.Equal(t, 2, calls)
}

func TestGuard_ExecFailureUsesKey(t *testing.T) {
	ctx := context.Background()
	g := New(cache.NewMemory())
	boom := errors.New("boom")

	assert.ErrorIs(t, g.Exec(ctx, "k", func(context.Context) error { return boom }), boom)

	var dup *DuplicateError
	require.ErrorAs(t, g.Exec(ctx, "k", func(context.Context) error { return nil }), &dup)
	assert.Equal(t, StateFailed, dup.State)
}

func TestGuard_ExecConcurrent(t *testing.T) {
	ctx := context.Background()
	g := New(cache.NewMemory())
	var runs atomic.Int32

	var wg sync.WaitGroup
	for range 32 {
		wg.Go(func() {
			_ = g.Exec(ctx, "k", func(context.Context) error {
				runs.Inc()
				return nil
			}, WithLockDuration(time.Minute), WithStateTTL(time.Minute))
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
}

func TestGuard_CorruptState(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	require.NoError(t, store.Set(ctx, keyPrefix+"k", []byte("???"), time.Minute))

	err := New(store).Exec(ctx, "k", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCorruptState)
}
