package fn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestResult(t *testing.T) {
	ok := Ok(42)
	assert.True(t, ok.IsOk())
	assert.False(t, ok.IsErr())
	v, err := ok.Unwrap()
	assert.Equal(t, 42, v)
	assert.NoError(t, err)

	bad := Err[int](errBoom)
	assert.True(t, bad.IsErr())
	_, err = bad.Unwrap()
	assert.ErrorIs(t, err, errBoom)

	assert.True(t, FromPair("x", nil).IsOk())
	assert.True(t, FromPair("x", errBoom).IsErr())
}

func TestCollect(t *testing.T) {
	all, err := Collect([]Result[int]{Ok(1), Ok(2)}).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, all)

	second := errors.New("second")
	_, err = Collect([]Result[int]{Ok(1), Err[int](errBoom), Err[int](second)}).Unwrap()
	assert.ErrorIs(t, err, errBoom)
}

func TestParMapResultKeepsOrder(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}
	var running, peak atomic.Int32
	out := ParMapResult(items, 4, func(i int) Result[int] {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return Ok(i * i)
	})
	require.Len(t, out, 50)
	for i, r := range out {
		v, err := r.Unwrap()
		require.NoError(t, err)
		assert.Equal(t, i*i, v)
	}
	assert.LessOrEqual(t, peak.Load(), int32(4))
}

func TestParMapResultEdgeCases(t *testing.T) {
	assert.Empty(t, ParMapResult(nil, 4, func(int) Result[int] { return Ok(0) }))

	out := ParMapResult([]int{1, 2, 3}, 0, func(i int) Result[int] {
		if i == 2 {
			return Err[int](errBoom)
		}
		return Ok(i)
	})
	assert.True(t, out[0].IsOk())
	assert.True(t, out[1].IsErr())
	assert.True(t, out[2].IsOk())
}

func TestPipeline(t *testing.T) {
	add := func(n int) Stage[int, int] {
		return func(_ context.Context, v int) Result[int] { return Ok(v + n) }
	}
	v, err := Pipeline(add(1), TracedStage("double", func(_ context.Context, v int) Result[int] {
		return Ok(v * 2)
	}), add(3))(context.Background(), 1).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestPipelineStopsAtFirstError(t *testing.T) {
	var calls int
	count := func(_ context.Context, v int) Result[int] {
		calls++
		return Ok(v)
	}
	fail := TracedStage("fail", func(context.Context, int) Result[int] { return Err[int](errBoom) })

	_, err := Pipeline(count, fail, count)(context.Background(), 0).Unwrap()
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestPipelineHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	stage := func(_ context.Context, v int) Result[int] {
		calls++
		cancel()
		return Ok(v)
	}
	_, err := Pipeline(stage, stage)(ctx, 0).Unwrap()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetry(t *testing.T) {
	var calls int
	v, err := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond}, func(context.Context) Result[string] {
		calls++
		if calls < 3 {
			return Err[string](errBoom)
		}
		return Ok("up")
	}).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, "up", v)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Jitter: true},
		func(context.Context) Result[int] {
			calls++
			return Err[int](errBoom)
		}).Unwrap()
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, calls)
}

func TestRetrySkipsPermanentErrors(t *testing.T) {
	permanent := errors.New("auth failed")
	var calls int
	_, err := Retry(context.Background(), RetryOpts{
		MaxAttempts: 5,
		InitialWait: time.Millisecond,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}, func(context.Context) Result[int] {
		calls++
		return Err[int](permanent)
	}).Unwrap()
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, RetryOpts{MaxAttempts: 3, InitialWait: time.Hour}, func(context.Context) Result[int] {
		return Err[int](errBoom)
	}).Unwrap()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"/A", "/B", "/C"}, Unique([]string{"/A", "/B", "/A", "/C", "/B"}))
	assert.Nil(t, Unique[int](nil))
}
