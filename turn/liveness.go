package turn

import (
	"sync"
	"time"
)

// Monitor is a one-shot timer that calls check when it expires. Scheduling it
// again cancels the outstanding timer first, so at most one is ever pending.
// A timer that was cancelled after it had already fired does not call check.
type Monitor struct {
	period time.Duration
	check  func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

func NewMonitor(period time.Duration, check func()) *Monitor {
	return &Monitor{period: period, check: check}
}

// Schedule (re)arms the timer.
func (m *Monitor) Schedule() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.gen++
	gen := m.gen
	m.timer = time.AfterFunc(m.period, func() { m.fire(gen) })
}

// Stop cancels the outstanding timer, if any.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.gen++
}

// Pending returns the number of outstanding timers, 0 or 1.
func (m *Monitor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		return 1
	}
	return 0
}

func (m *Monitor) stopLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Monitor) fire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()
	m.check()
}
