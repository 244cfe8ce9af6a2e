// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coalesce

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testQuiet = 50 * time.Millisecond

type outcome struct {
	val string
	err error
}

func TestThreeRapidCallsExecuteOnce(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var seen []string
	c := New(func(_ context.Context, q string) (string, error) {
		calls.Add(1)
		mu.Lock()
		seen = append(seen, q)
		mu.Unlock()
		return "result:" + q, nil
	}, testQuiet, zerolog.Nop())

	out := make([]outcome, 3)
	var wg sync.WaitGroup
	for i, q := range []string{"dia", "diab", "diabetes"} {
		i, q := i, q // per-iteration copy (Go 1.22 loop semantics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Submit(context.Background(), "alice", q)
			out[i] = outcome{v, err}
		}()
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"diabetes"}, seen)
	assert.ErrorIs(t, out[0].err, ErrSuperseded)
	assert.ErrorIs(t, out[1].err, ErrSuperseded)
	require.NoError(t, out[2].err)
	assert.Equal(t, "result:diabetes", out[2].val)
	assert.Equal(t, Idle, c.State("alice"))
}

func TestRequestWhileExecutingCancelsRun(t *testing.T) {
	started := make(chan string, 2)
	var cancelled atomic.Bool
	c := New(func(ctx context.Context, q string) (string, error) {
		started <- q
		if q == "slow" {
			<-ctx.Done()
			cancelled.Store(true)
			return "", ctx.Err()
		}
		return "ok:" + q, nil
	}, testQuiet, zerolog.Nop())

	first := make(chan outcome, 1)
	go func() {
		v, err := c.Submit(context.Background(), "bob", "slow")
		first <- outcome{v, err}
	}()

	require.Equal(t, "slow", <-started)
	assert.Equal(t, Executing, c.State("bob"))

	second := make(chan outcome, 1)
	go func() {
		v, err := c.Submit(context.Background(), "bob", "fast")
		second <- outcome{v, err}
	}()

	got := <-first
	assert.ErrorIs(t, got.err, ErrSuperseded, "results of a cancelled run are discarded")
	assert.Eventually(t, cancelled.Load, time.Second, 5*time.Millisecond)

	got = <-second
	require.NoError(t, got.err)
	assert.Equal(t, "ok:fast", got.val)
}

func TestIdenticalRequestJoinsRun(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := New(func(_ context.Context, q string) (string, error) {
		calls.Add(1)
		<-release
		return "ok:" + q, nil
	}, testQuiet, zerolog.Nop(), WithIdentity[string, string](strings.ToLower))

	first := make(chan outcome, 1)
	go func() {
		v, err := c.Submit(context.Background(), "bob", "diabetes")
		first <- outcome{v, err}
	}()
	require.Eventually(t, func() bool { return c.State("bob") == Executing }, time.Second, time.Millisecond)

	second := make(chan outcome, 1)
	go func() {
		v, err := c.Submit(context.Background(), "bob", "Diabetes")
		second <- outcome{v, err}
	}()
	time.Sleep(2 * testQuiet)
	assert.Equal(t, Executing, c.State("bob"))
	close(release)

	for _, ch := range []chan outcome{first, second} {
		got := <-ch
		require.NoError(t, got.err)
		assert.Equal(t, "ok:diabetes", got.val)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, Idle, c.State("bob"))
}

func TestJoinedRunOutlivesOriginator(t *testing.T) {
	release := make(chan struct{})
	var cancelled atomic.Bool
	c := New(func(ctx context.Context, q string) (string, error) {
		select {
		case <-release:
			return q, nil
		case <-ctx.Done():
			cancelled.Store(true)
			return "", ctx.Err()
		}
	}, testQuiet, zerolog.Nop(), WithIdentity[string, string](func(q string) string { return q }))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan outcome, 1)
	go func() {
		v, err := c.Submit(ctx, "bob", "copd")
		first <- outcome{v, err}
	}()
	require.Eventually(t, func() bool { return c.State("bob") == Executing }, time.Second, time.Millisecond)

	second := make(chan outcome, 1)
	go func() {
		v, err := c.Submit(context.Background(), "bob", "copd")
		second <- outcome{v, err}
	}()
	time.Sleep(testQuiet)

	cancel()
	got := <-first
	assert.ErrorIs(t, got.err, context.Canceled)
	assert.False(t, cancelled.Load())

	close(release)
	got = <-second
	require.NoError(t, got.err)
	assert.Equal(t, "copd", got.val)
	assert.Equal(t, Idle, c.State("bob"))
}

func TestStateTransitions(t *testing.T) {
	release := make(chan struct{})
	c := New(func(_ context.Context, q string) (string, error) {
		<-release
		return q, nil
	}, testQuiet, zerolog.Nop())

	assert.Equal(t, Idle, c.State("carol"))

	done := make(chan outcome, 1)
	go func() {
		v, err := c.Submit(context.Background(), "carol", "asthma")
		done <- outcome{v, err}
	}()

	assert.Eventually(t, func() bool { return c.State("carol") == Waiting }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return c.State("carol") == Executing }, time.Second, time.Millisecond)
	close(release)

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, "asthma", got.val)
	assert.Equal(t, Idle, c.State("carol"))
}

func TestCallersAreIndependent(t *testing.T) {
	var calls atomic.Int32
	c := New(func(_ context.Context, q string) (string, error) {
		calls.Add(1)
		return q, nil
	}, testQuiet, zerolog.Nop())

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b", "c"} {
		key := key // per-iteration copy (Go 1.22 loop semantics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Submit(context.Background(), key, key)
			assert.NoError(t, err)
			assert.Equal(t, key, v)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(3), calls.Load())
}

func TestCallerCancelWhileWaiting(t *testing.T) {
	var calls atomic.Int32
	c := New(func(_ context.Context, q string) (string, error) {
		calls.Add(1)
		return q, nil
	}, time.Second, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Submit(ctx, "dave", "copd")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, Idle, c.State("dave"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestErrorsPassThrough(t *testing.T) {
	boom := errors.New("boom")
	c := New(func(context.Context, string) (string, error) {
		return "", boom
	}, time.Millisecond, zerolog.Nop())

	_, err := c.Submit(context.Background(), "erin", "x")
	assert.ErrorIs(t, err, boom)
}

func TestDefaultQuietPeriod(t *testing.T) {
	c := New(func(_ context.Context, q string) (string, error) { return q, nil }, 0, zerolog.Nop())
	assert.Equal(t, DefaultQuietPeriod, c.QuietPeriod())
	assert.Equal(t, "waiting", Waiting.String())
}
