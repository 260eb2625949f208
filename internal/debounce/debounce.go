package debounce

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"satchel/internal/records"
)

// ErrCleared is returned to waiters when Clear drops their pending call.
var ErrCleared = errors.New("debounced call cleared")

// Priority hints how urgently a coalescing group should settle. It scales the
// debounce window: background edits can afford to collect longer, interactive
// ones cannot.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func (p Priority) factor() float64 {
	switch p {
	case PriorityLow:
		return 2
	case PriorityHigh:
		return 0.5
	default:
		return 1
	}
}

// Options tune a single Do call.
type Options struct {
	Priority Priority
}

// Config tunes a Debouncer. Zero values fall back to package defaults.
type Config struct {
	// Window is how long a group waits for further same-key calls. Each new
	// call resets the wait.
	Window time.Duration
	// MaxWait caps how long the oldest call in a group can be deferred by
	// resets before the group fires regardless.
	MaxWait time.Duration
	// MaxBatch fires the group immediately once this many calls coalesced.
	MaxBatch int
}

const (
	defaultWindow   = 300 * time.Millisecond
	defaultMaxWait  = 2 * time.Second
	defaultMaxBatch = 10
)

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = defaultWindow
	}
	if c.MaxWait <= 0 {
		c.MaxWait = defaultMaxWait
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = defaultMaxBatch
	}
	return c
}

// Func executes the settled call for a group. It receives the deep merge of
// every coalesced payload, oldest to newest.
type Func[T any] func(ctx context.Context, payload map[string]any) (T, error)

// Debouncer coalesces per-key call bursts into single executions. Every
// caller in a group blocks until the group fires and receives the identical
// settled value and error. Firing is the only settlement point.
type Debouncer[T any] struct {
	cfg     Config
	entries *xsync.MapOf[string, *entry[T]]
}

type entry[T any] struct {
	mu      sync.Mutex
	payload map[string]any
	fn      Func[T]
	fctx    context.Context
	timer   *time.Timer
	// timerGen identifies the live timer schedule. Stop cannot cancel a
	// callback that is already blocked on mu, so a superseded callback checks
	// the generation and bows out instead of settling early.
	timerGen uint64
	firstAt  time.Time
	calls   int
	fired   bool
	done    chan struct{}
	value   T
	err     error
}

// New creates a Debouncer for result type T.
func New[T any](cfg Config) *Debouncer[T] {
	return &Debouncer[T]{
		cfg:     cfg.withDefaults(),
		entries: xsync.NewMapOf[string, *entry[T]](),
	}
}

// Do joins the coalescing group for key and blocks until the group settles.
// A call landing inside an open window resets the window; the group fires
// early once MaxBatch calls coalesced or the oldest call has waited MaxWait.
// Only the most recent call's fn runs, against the merged payload. A caller
// whose context ends while waiting unblocks with the context error, but the
// group still fires.
func (d *Debouncer[T]) Do(ctx context.Context, key string, payload map[string]any, fn Func[T], opts Options) (T, error) {
	var e *entry[T]
	for {
		candidate, _ := d.entries.LoadOrStore(key, &entry[T]{done: make(chan struct{})})
		candidate.mu.Lock()
		if candidate.fired {
			// Settled between load and lock; start a fresh group.
			candidate.mu.Unlock()
			continue
		}
		e = candidate
		break
	}

	if e.calls == 0 {
		e.firstAt = time.Now()
	}
	e.calls++
	e.payload = records.DeepMerge(e.payload, payload)
	e.fn = fn
	e.fctx = ctx

	window := time.Duration(float64(d.cfg.Window) * opts.Priority.factor())
	delay := window
	if remaining := d.cfg.MaxWait - time.Since(e.firstAt); remaining < delay {
		delay = remaining
	}

	if e.calls >= d.cfg.MaxBatch || delay <= 0 {
		d.settleLocked(key, e)
	} else {
		d.scheduleLocked(key, e, delay)
		e.mu.Unlock()
	}

	select {
	case <-e.done:
		return e.value, e.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// scheduleLocked (re)arms the group timer. The caller must hold e.mu. The
// previous schedule is superseded even when its callback has already fired
// and is waiting on the lock.
func (d *Debouncer[T]) scheduleLocked(key string, e *entry[T], delay time.Duration) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timerGen++
	gen := e.timerGen
	e.timer = time.AfterFunc(delay, func() {
		e.mu.Lock()
		if e.fired || e.timerGen != gen {
			e.mu.Unlock()
			return
		}
		d.settleLocked(key, e)
	})
}

// settleLocked fires a group. The caller must hold e.mu; it is released here.
func (d *Debouncer[T]) settleLocked(key string, e *entry[T]) {
	e.fired = true
	if e.timer != nil {
		e.timer.Stop()
	}
	payload := e.payload
	fn := e.fn
	fctx := e.fctx
	e.mu.Unlock()

	d.entries.Delete(key)

	// The settled write belongs to the whole group, so it must not die with
	// whichever caller's context happened to arrive last.
	value, err := fn(context.WithoutCancel(fctx), payload)
	e.value = value
	e.err = err
	close(e.done)
}

// Flush fires every pending group now and waits for each to settle.
func (d *Debouncer[T]) Flush() {
	d.entries.Range(func(key string, e *entry[T]) bool {
		e.mu.Lock()
		if e.fired {
			e.mu.Unlock()
			return true
		}
		d.settleLocked(key, e)
		return true
	})
}

// Clear drops every pending group without executing. Waiters receive
// ErrCleared.
func (d *Debouncer[T]) Clear() {
	d.entries.Range(func(key string, e *entry[T]) bool {
		e.mu.Lock()
		if e.fired {
			e.mu.Unlock()
			return true
		}
		e.fired = true
		if e.timer != nil {
			e.timer.Stop()
		}
		e.err = ErrCleared
		e.mu.Unlock()

		d.entries.Delete(key)
		close(e.done)
		return true
	})
}

// Len reports how many groups are currently collecting calls.
func (d *Debouncer[T]) Len() int {
	return d.entries.Size()
}
