package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ytkinroman/trans-app/internal/logger"
)

// Target is what the Monitor watches
type Target interface {
	IsAlive() bool
	Reconnect(ctx context.Context, delay time.Duration) error
}

// Monitor periodically checks liveness and reconnects on its own, so the
// connection is back before the user's next hotkey press
type Monitor struct {
	target   Target
	interval time.Duration
	delay    time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	checks     atomic.Int64
	reconnects atomic.Int64
}

// NewMonitor creates a monitor that checks every interval and waits delay
// before each reconnect attempt
func NewMonitor(target Target, interval, delay time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		target:   target,
		interval: interval,
		delay:    delay,
		log:      logger.Global().WithPrefix("monitor"),
	}
}

// SetLogger replaces the monitor's logger
func (m *Monitor) SetLogger(l *logger.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = l
}

// Start launches the monitoring goroutine. Calling Start on a running
// monitor does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(ctx, m.done, m.log)

	m.log.Info("Connection monitor started (interval: %v)", m.interval)
}

// Stop cancels the monitoring goroutine and waits for it to exit
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done, log := m.cancel, m.done, m.log
	m.mu.Unlock()

	cancel()
	<-done
	log.Info("Connection monitor stopped")
}

// Running reports whether the monitor goroutine is active
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Checks returns how many liveness checks ran
func (m *Monitor) Checks() int64 {
	return m.checks.Load()
}

// Reconnects returns how many reconnects the monitor triggered
func (m *Monitor) Reconnects() int64 {
	return m.reconnects.Load()
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}, log *logger.Logger) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.check(ctx, log)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx, log)
		}
	}
}

func (m *Monitor) check(ctx context.Context, log *logger.Logger) {
	m.checks.Add(1)
	if m.target.IsAlive() {
		return
	}

	m.reconnects.Add(1)
	log.Warn("Gateway connection lost, reconnecting")
	if err := m.target.Reconnect(ctx, m.delay); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("Reconnect failed, next check in %v: %v", m.interval, err)
		return
	}
	log.Info("Gateway connection restored")
}
