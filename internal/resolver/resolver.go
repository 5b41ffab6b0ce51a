// Package resolver waits for sibling applets to appear in the applet tree and
// binds them once.
//
// A Resolver starts Pending. It queries the registry immediately, then again
// on every tick and on every registration signal, asking only for the ids
// still missing. When the last one is found it becomes Resolved and stops for
// good. With a max wait configured it becomes Failed instead once the deadline
// passes. Cancelling the Run context stops the loop without a state change.
package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"dockbridge/internal/applet"
	"dockbridge/internal/eventbus"
	logx "dockbridge/pkg/logx"
)

// DefaultInterval is the polling period used when no interval is configured.
const DefaultInterval = time.Second

var (
	ErrTimeout        = errors.New("resolver: required capabilities not found before deadline")
	ErrAlreadyStarted = errors.New("resolver: already started")
)

// Registry is the lookup the resolver polls.
type Registry interface {
	FindFirst(pluginID string) (applet.Node, bool)
}

type State int32

const (
	Pending State = iota
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is the payload of the resolver bus events.
type Event struct {
	Required []string      `json:"required"`
	Missing  []string      `json:"missing,omitempty"`
	Took     time.Duration `json:"took"`
}

type Option func(*Resolver)

// WithInterval sets the polling period. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithMaxWait bounds the time spent Pending. Zero waits forever.
func WithMaxWait(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.maxWait = d
		}
	}
}

// WithEvents adds a registration signal; each receive triggers an attempt.
func WithEvents(ch <-chan struct{}) Option { return func(r *Resolver) { r.events = ch } }

func WithLogger(log logx.Logger) Option { return func(r *Resolver) { r.log = log } }

// WithBus publishes resolver.resolved / resolver.failed.
func WithBus(bus eventbus.Bus) Option { return func(r *Resolver) { r.bus = bus } }

func WithClock(c Clock) Option {
	return func(r *Resolver) {
		if c != nil {
			r.clock = c
		}
	}
}

type Resolver struct {
	reg      Registry
	binding  *Binding
	interval time.Duration
	maxWait  time.Duration
	events   <-chan struct{}
	clock    Clock
	log      logx.Logger
	bus      eventbus.Bus

	started atomic.Bool
	state   atomic.Int32

	doneOnce sync.Once
	done     chan struct{}

	mu  sync.Mutex
	err error
}

func New(reg Registry, required []string, opts ...Option) *Resolver {
	r := &Resolver{
		reg:      reg,
		binding:  newBinding(required),
		interval: DefaultInterval,
		clock:    realClock{},
		log:      logx.Nop(),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.With(logx.String("comp", "resolver"))
	return r
}

func (r *Resolver) State() State { return State(r.state.Load()) }

func (r *Resolver) Binding() *Binding { return r.binding }

// Done is closed once the resolver reaches a terminal state (Resolved or
// Failed). Check State to tell them apart.
func (r *Resolver) Done() <-chan struct{} { return r.done }

// Err returns ErrTimeout after Failed, nil otherwise.
func (r *Resolver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Run drives the resolver until it resolves, fails, or ctx is cancelled. It
// returns ErrTimeout on Failed and nil otherwise.
func (r *Resolver) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	start := time.Now()

	if r.attempt() {
		r.finish(Resolved, nil, start)
		return nil
	}

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if r.maxWait > 0 {
		deadline = r.clock.After(r.maxWait)
	}
	events := r.events

	r.log.Debug("waiting for capabilities", logx.Strings("missing", r.binding.Missing()), logx.Duration("interval", r.interval), logx.Duration("max_wait", r.maxWait))

	for {
		select {
		case <-ctx.Done():
			r.log.Debug("resolver cancelled", logx.Strings("missing", r.binding.Missing()))
			return nil
		case <-deadline:
			missing := r.binding.Missing()
			r.log.Warn("capabilities not found before deadline", logx.Strings("missing", missing), logx.Duration("max_wait", r.maxWait))
			r.finish(Failed, ErrTimeout, start)
			return ErrTimeout
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
		case <-ticker.C():
		}
		if r.attempt() {
			r.finish(Resolved, nil, start)
			return nil
		}
	}
}

// attempt queries every unbound id once and reports whether all are bound.
func (r *Resolver) attempt() bool {
	if r.reg == nil {
		return r.binding.Complete()
	}
	for _, id := range r.binding.Missing() {
		if n, ok := r.reg.FindFirst(id); ok && n != nil {
			r.binding.set(id, n)
			r.log.Debug("capability bound", logx.String("capability", id))
		}
	}
	return r.binding.Complete()
}

func (r *Resolver) finish(s State, err error, start time.Time) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	r.state.Store(int32(s))
	r.doneOnce.Do(func() { close(r.done) })

	ev := Event{Required: r.binding.IDs(), Missing: r.binding.Missing(), Took: time.Since(start)}
	switch s {
	case Resolved:
		r.log.Info("capabilities resolved", logx.Strings("required", ev.Required), logx.Duration("took", ev.Took))
		eventbus.Publish(r.bus, eventbus.ResolverResolved, ev)
	case Failed:
		eventbus.Publish(r.bus, eventbus.ResolverFailed, ev)
	}
}
