package hotkey

import (
	"sync"
	"sync/atomic"

	"github.com/ytkinroman/trans-app/internal/logger"
)

// Trigger runs a handler on its own goroutine, one press at a time. A press
// arriving while the handler runs is kept; any further press is dropped.
type Trigger struct {
	fn  func()
	log *logger.Logger

	pending chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once

	fired   atomic.Int64
	dropped atomic.Int64
}

// NewTrigger starts the goroutine that runs fn
func NewTrigger(fn func(), log *logger.Logger) *Trigger {
	if log == nil {
		log = logger.Global().WithPrefix("hotkey")
	}
	t := &Trigger{
		fn:      fn,
		log:     log,
		pending: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go t.run()
	return t
}

// Fire requests one run of the handler without blocking. It reports false
// when the press was dropped.
func (t *Trigger) Fire() bool {
	select {
	case <-t.stop:
		return false
	default:
	}
	select {
	case t.pending <- struct{}{}:
		t.fired.Add(1)
		return true
	default:
		t.dropped.Add(1)
		t.log.Info("Translation already pending, ignoring key press")
		return false
	}
}

// Fired returns how many presses were accepted
func (t *Trigger) Fired() int64 { return t.fired.Load() }

// Dropped returns how many presses were ignored
func (t *Trigger) Dropped() int64 { return t.dropped.Load() }

// Close stops the goroutine after the running handler returns. A pending
// press is discarded.
func (t *Trigger) Close() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}

func (t *Trigger) run() {
	defer close(t.done)
	for {
		select {
		case <-t.stop:
			return
		case <-t.pending:
		}
		// stop wins over a pending press
		select {
		case <-t.stop:
			return
		default:
		}
		t.invoke()
	}
}

func (t *Trigger) invoke() {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("hotkey handler panicked: %v", r)
		}
	}()
	t.fn()
}
