// Package lease provides per-proposal mutual exclusion inside one process.
// Each proposal id maps to a weighted semaphore of size one; entries are
// reference counted and dropped once no caller holds or waits on them.
package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/splitlease/proposals/internal/metrics"
	"github.com/splitlease/proposals/internal/models"
)

// DefaultTimeout bounds how long Acquire waits.
const DefaultTimeout = 5 * time.Second

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

// Manager hands out per-id leases.
type Manager struct {
	mu      sync.Mutex
	slots   map[string]*slot
	timeout time.Duration
}

// New creates a Manager. A non-positive timeout uses DefaultTimeout.
func New(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Manager{slots: make(map[string]*slot), timeout: timeout}
}

// Acquire blocks until the lease for id is free, the timeout passes or ctx
// ends. On timeout it returns ErrConcurrentModification; a cancelled ctx
// returns ctx.Err(). The returned release func is safe to call more than once.
func (m *Manager) Acquire(ctx context.Context, id string) (func(), error) {
	s := m.ref(id)
	start := time.Now()

	waitCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := s.sem.Acquire(waitCtx, 1); err != nil {
		m.unref(id)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("lease %s after %s: %w", id, m.timeout, models.ErrConcurrentModification)
	}

	metrics.LeaseWaitSeconds.Observe(time.Since(start).Seconds())

	var once sync.Once

	return func() {
		once.Do(func() {
			s.sem.Release(1)
			m.unref(id)
		})
	}, nil
}

// Held returns the number of ids currently tracked.
func (m *Manager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.slots)
}

func (m *Manager) ref(id string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		m.slots[id] = s
	}
	s.refs++

	return s
}

func (m *Manager) unref(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok {
		return
	}

	s.refs--
	if s.refs <= 0 {
		delete(m.slots, id)
	}
}
