// Package ratelimit provides the per-minute invocation cap shared by the OCR engine
// and the AI router. A Limiter is constructed once and injected.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/joseph-ayodele/freight-intake/internal/common"
)

const window = time.Minute

// Limiter rejects a call when perMinute calls were already admitted during the
// preceding minute. It never queues.
type Limiter struct {
	name string
	cap  int
	now  func() time.Time

	mu    sync.Mutex
	calls []time.Time // ring of admitted call times, oldest at head
	head  int
	count int
}

type Option func(*Limiter)

// WithClock overrides the time source; tests use it to move through windows.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New builds a limiter allowing perMinute calls per sliding minute. perMinute <= 0 disables limiting.
func New(name string, perMinute int, opts ...Option) *Limiter {
	l := &Limiter{name: name, now: time.Now}
	if perMinute > 0 {
		l.cap = perMinute
		l.calls = make([]time.Time, perMinute)
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Allow records one call or returns an error wrapping common.ErrRateLimited.
func (l *Limiter) Allow() error {
	if l == nil || l.cap == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for l.count > 0 && now.Sub(l.calls[l.head]) >= window {
		l.head = (l.head + 1) % l.cap
		l.count--
	}
	if l.count >= l.cap {
		return fmt.Errorf("%s: %w (%d calls in the last minute)", l.name, common.ErrRateLimited, l.count)
	}
	l.calls[(l.head+l.count)%l.cap] = now
	l.count++
	return nil
}

// Remaining reports how many calls the current window still admits; -1 when unlimited.
func (l *Limiter) Remaining() int {
	if l == nil || l.cap == 0 {
		return -1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for i := 0; i < l.count; i++ {
		if now.Sub(l.calls[(l.head+i)%l.cap]) < window {
			n++
		}
	}
	return l.cap - n
}
