package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/readerview/pkg/utils"
)

func TestHostLimiter_CapsPerHost(t *testing.T) {
	l := NewHostLimiter(1, testLogger())

	release, err := l.Acquire(context.Background(), "example.com", 0)
	require.NoError(t, err)

	_, err = l.Acquire(context.Background(), "EXAMPLE.com", 20*time.Millisecond)
	assert.ErrorIs(t, err, utils.ErrSemaphoreTimeout, "host names are case-insensitive")

	other, err := l.Acquire(context.Background(), "other.com", 20*time.Millisecond)
	require.NoError(t, err, "hosts are independent")
	other()

	release()
	release()
	again, err := l.Acquire(context.Background(), "example.com", 20*time.Millisecond)
	require.NoError(t, err)
	again()
	assert.Equal(t, 2, l.Hosts())
}

func TestHostLimiter_CallerCancellation(t *testing.T) {
	l := NewHostLimiter(1, testLogger())
	release, err := l.Acquire(context.Background(), "example.com", 0)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "example.com", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, utils.ErrSemaphoreTimeout))
}

func TestHostLimiter_DefaultLimit(t *testing.T) {
	l := NewHostLimiter(0, testLogger())
	assert.EqualValues(t, defaultPerHost, l.perHost)
}

func TestHostLimiter_Evict(t *testing.T) {
	l := NewHostLimiter(2, testLogger())

	busy, err := l.Acquire(context.Background(), "busy.com", 0)
	require.NoError(t, err)
	defer busy()
	idle, err := l.Acquire(context.Background(), "idle.com", 0)
	require.NoError(t, err)
	idle()

	assert.Equal(t, 0, l.evict(time.Hour), "recently used hosts stay")
	assert.Equal(t, 1, l.evict(0))
	assert.Equal(t, 1, l.Hosts())
}

func TestHostLimiter_RunEvictionStops(t *testing.T) {
	l := NewHostLimiter(1, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.RunEviction(ctx, 5*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEviction did not stop")
	}
}

func TestHostLimiter_Concurrent(t *testing.T) {
	l := NewHostLimiter(3, testLogger())
	var active, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "example.com", 0)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt64(&active, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&active, -1)
			release()
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))
	assert.Equal(t, 1, l.evict(0))
}
