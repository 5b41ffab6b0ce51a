package dock

import (
	"context"
	"runtime/debug"
	"sync"

	logx "dockbridge/pkg/logx"
)

// DefaultQueueSize is used when NewDispatcher gets a non-positive size.
const DefaultQueueSize = 64

type job struct {
	name string
	fn   func()
}

// Dispatcher runs queued calls one at a time in submission order on a single
// goroutine. Fire-and-forget bridge operations go through it.
type Dispatcher struct {
	log   logx.Logger
	queue chan job

	mu      sync.RWMutex
	stopped bool
}

func NewDispatcher(size int, log logx.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{log: log.With(logx.String("comp", "dispatcher")), queue: make(chan job, size)}
}

// Submit enqueues fn. It never blocks: when the queue is full or the
// dispatcher has stopped the call is dropped and Submit returns false.
func (d *Dispatcher) Submit(name string, fn func()) bool {
	if d == nil || fn == nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return false
	}
	select {
	case d.queue <- job{name: name, fn: fn}:
		return true
	default:
		d.log.Debug("dispatch queue full, dropping call", logx.String("op", name))
		return false
	}
}

// Run executes queued calls until ctx is done. Calls still queued at that
// point are discarded.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-d.queue:
			d.exec(j)
		}
	}
}

func (d *Dispatcher) exec(j job) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("queued call panicked", logx.String("op", j.name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	j.fn()
}
