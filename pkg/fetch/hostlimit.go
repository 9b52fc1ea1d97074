package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/readerview/pkg/utils"
)

const defaultPerHost = 2

type hostSlot struct {
	sem       *semaphore.Weighted
	users     int       // holders plus waiters
	idleSince time.Time // set when users drops to zero
}

// HostLimiter caps concurrent direct fetches per host. The page fetch and the
// archive-path metadata fetch share one limiter, so a mirrored article never
// holds more than the configured number of connections to the original site.
type HostLimiter struct {
	perHost int64
	log     *logrus.Entry

	mu    sync.Mutex
	slots map[string]*hostSlot
}

// NewHostLimiter creates a limiter allowing perHost concurrent fetches per host
func NewHostLimiter(perHost int, log *logrus.Entry) *HostLimiter {
	if perHost <= 0 {
		log.Warnf("fetch.max_requests_per_host is %d, using %d", perHost, defaultPerHost)
		perHost = defaultPerHost
	}
	return &HostLimiter{
		perHost: int64(perHost),
		log:     log,
		slots:   make(map[string]*hostSlot),
	}
}

// Acquire blocks until host has a free slot and returns the function that
// gives it back; calling release more than once is harmless. When wait is
// positive and runs out first the error wraps utils.ErrSemaphoreTimeout;
// cancellation of ctx itself is returned unchanged.
func (l *HostLimiter) Acquire(ctx context.Context, host string, wait time.Duration) (release func(), err error) {
	host = strings.ToLower(host)
	slot := l.join(host)

	acquireCtx := ctx
	if wait > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	if err := slot.sem.Acquire(acquireCtx, 1); err != nil {
		l.leave(slot)
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s busy for %s", utils.ErrSemaphoreTimeout, host, wait)
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			slot.sem.Release(1)
			l.leave(slot)
		})
	}, nil
}

func (l *HostLimiter) join(host string) *hostSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[host]
	if !ok {
		slot = &hostSlot{sem: semaphore.NewWeighted(l.perHost)}
		l.slots[host] = slot
	}
	slot.users++
	return slot
}

func (l *HostLimiter) leave(slot *hostSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.users--
	if slot.users == 0 {
		slot.idleSince = time.Now()
	}
}

// RunEviction forgets hosts idle for longer than interval, checking every
// interval until ctx is done.
func (l *HostLimiter) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := l.evict(interval); n > 0 {
				l.log.Debugf("Forgot %d idle hosts", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (l *HostLimiter) evict(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	n := 0
	for host, slot := range l.slots {
		if slot.users == 0 && !slot.idleSince.After(cutoff) {
			delete(l.slots, host)
			n++
		}
	}
	return n
}

// Hosts returns how many hosts are currently tracked
func (l *HostLimiter) Hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
