package notifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"dockbridge/internal/eventbus"
	"dockbridge/internal/notification"
	rtsup "dockbridge/internal/runtime/supervisor"
	"dockbridge/internal/storage"
	logx "dockbridge/pkg/logx"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

var (
	ErrDisabled      = errors.New("notifier disabled")
	ErrQueueFull     = errors.New("notifier queue full")
	ErrStopped       = errors.New("notifier stopped")
	ErrNotFound      = errors.New("notifier: no such bubble")
	ErrNoStore       = errors.New("notifier: no store configured")
	ErrUnknownAction = errors.New("notifier: action not offered by notification")
)

// SelfAppName is the application name of notifications raised by dockd
// itself (log sink).
const SelfAppName = "dockd"

// bubble is one live notification. storeID is filled in by the persistence
// worker once the store assigned an id.
type bubble struct {
	mu      sync.Mutex
	entity  notification.Entity
	storeID int64
	reason  CloseReason
}

func (b *bubble) snapshot() notification.Entity {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entity.Clone()
	if b.storeID > 0 {
		e.SetID(b.storeID)
	}
	return e
}

type job struct {
	b      *bubble
	entity notification.Entity
}

// Service is the notification center:
// live bubbles + queue + worker pool + rate limit + retry.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan job
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping

	bubbles    *gocache.Cache
	nextBubble atomic.Uint32

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:     log.With(logx.String("comp", "notifier")),
		bus:     bus,
		store:   store,
		bubbles: gocache.New(gocache.NoExpiration, 250*time.Millisecond),
	}
	s.bubbles.OnEvicted(s.onEvicted)
	s.applyLocked(cfg)
	return s
}

// Supervisor returns the worker supervisor (nil if not started).
func (s *Service) Supervisor() *rtsup.Supervisor {
	s.mu.Lock()
	sup := s.sup
	s.mu.Unlock()
	return sup
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	// Defaults
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 50
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 5 * time.Second
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}

	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	// Start is idempotent.
	s.mu.Lock()
	// If stopping, wait for it to finish before restarting.
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	workers := s.cfg.Workers

	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		// persistence failures should not take down the daemon.
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	q := s.queue
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		name := fmt.Sprintf("notifier.worker.%d", i)
		sup.GoRestart(name, func(c context.Context) error {
			s.workerLoop(c, q)
			// Clean exits happen on shutdown (queue close).
			s.mu.Lock()
			stopping := s.stopDone != nil
			s.mu.Unlock()
			if stopping {
				return context.Canceled
			}
			if c.Err() != nil {
				return c.Err()
			}
			return errors.New("notifier worker exited unexpectedly")
		})
	}
}

// Stop stops intake and drains the queue best-effort until ctx deadline.
// Live bubbles are kept.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	q := s.queue
	sup := s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	go func() {
		defer close(done)
		// Wait for in-flight enqueues, then close the queue so workers drain.
		s.sendWG.Wait()
		close(q)
		if sup != nil {
			_ = sup.Wait(context.Background())
		}

		s.mu.Lock()
		s.queue = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Force-stop internal loops.
		if sup != nil {
			sup.Cancel()
		}
	}
}

// Notify shows a notification and queues it for persistence. It returns the
// bubble id. A replacesID naming a live bubble replaces that bubble and
// returns its id.
func (s *Service) Notify(ctx context.Context, appName string, replacesID uint32, appIcon, summary, body string, actions []string, hints map[string]string, expireTimeout int32) (uint32, error) {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return 0, ErrDisabled
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return 0, ErrStopped
	}
	q := s.queue
	defTimeout := s.cfg.DefaultTimeout
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	e := notification.NewFull(appName, replacesID, appIcon, summary, body, actions, hints, expireTimeout)

	var b *bubble
	replaced := false
	if replacesID != 0 {
		if v, ok := s.bubbles.Get(bubbleKey(replacesID)); ok {
			b = v.(*bubble)
			b.mu.Lock()
			e.SetBubbleID(replacesID)
			b.entity = e
			b.mu.Unlock()
			replaced = true
		}
	}
	if b == nil {
		e.SetBubbleID(s.allocBubbleID())
		b = &bubble{entity: e}
	}
	s.bubbles.Set(bubbleKey(e.BubbleID()), b, lifetime(expireTimeout, defTimeout))
	s.appendHistory(e)

	now := time.Now()
	typ := eventbus.NotificationAdded
	if replaced {
		typ = eventbus.NotificationUpdated
	}
	eventbus.Publish(s.bus, typ, Event{BubbleID: e.BubbleID(), AppName: appName, Summary: summary, Replaced: replaced, At: now})
	s.log.Debug("notification shown", logx.Uint32("bubble", e.BubbleID()), logx.String("app", appName), logx.Bool("replaced", replaced))

	if s.store == nil {
		return e.BubbleID(), nil
	}
	select {
	case q <- job{b: b, entity: e}:
	default:
		eventbus.Publish(s.bus, eventbus.NotificationFailed, Event{BubbleID: e.BubbleID(), AppName: appName, Error: ErrQueueFull.Error(), At: now})
		s.log.Debug("persist queue full, record not stored", logx.Uint32("bubble", e.BubbleID()))
	}
	return e.BubbleID(), nil
}

// allocBubbleID returns the next bubble id. Ids are monotonic and skip 0,
// which means "no bubble" on the wire.
func (s *Service) allocBubbleID() uint32 {
	for {
		if id := s.nextBubble.Add(1); id != 0 {
			return id
		}
	}
}

// Close closes a live bubble on request.
func (s *Service) Close(ctx context.Context, bubbleID uint32) error {
	_ = ctx
	v, ok := s.bubbles.Get(bubbleKey(bubbleID))
	if !ok {
		return ErrNotFound
	}
	b := v.(*bubble)
	b.mu.Lock()
	b.reason = CloseByCall
	b.mu.Unlock()
	s.bubbles.Delete(bubbleKey(bubbleID))
	return nil
}

// InvokeAction records that the user picked actionKey on a live bubble: the
// record is marked processed and the bubble dismissed.
func (s *Service) InvokeAction(ctx context.Context, bubbleID uint32, actionKey string) error {
	v, ok := s.bubbles.Get(bubbleKey(bubbleID))
	if !ok {
		return ErrNotFound
	}
	b := v.(*bubble)
	e := b.snapshot()
	if !offersAction(e.Actions(), actionKey) {
		return fmt.Errorf("%w: %q", ErrUnknownAction, actionKey)
	}
	eventbus.Publish(s.bus, eventbus.NotificationAction, Event{BubbleID: bubbleID, ID: e.ID(), AppName: e.AppName(), Action: actionKey, At: time.Now()})

	// The processed state and the store id are read together: if the record
	// is not stored yet the persistence worker writes the processed state.
	b.mu.Lock()
	b.reason = CloseDismissed
	b.entity.SetProcessedType(notification.Processed)
	storeID := b.storeID
	b.mu.Unlock()
	s.bubbles.Delete(bubbleKey(bubbleID))

	if s.store != nil && storeID > 0 {
		if err := s.store.SetProcessed(ctx, storeID, notification.Processed); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	return nil
}

// offersAction reports whether key is one of the action ids (even positions).
func offersAction(actions []string, key string) bool {
	for i := 0; i+1 < len(actions); i += 2 {
		if actions[i] == key {
			return true
		}
	}
	return false
}

// Live returns the record behind a live bubble.
func (s *Service) Live(bubbleID uint32) (notification.Entity, bool) {
	v, ok := s.bubbles.Get(bubbleKey(bubbleID))
	if !ok {
		return notification.New(), false
	}
	return v.(*bubble).snapshot(), true
}

// LiveCount returns the number of bubbles currently shown.
func (s *Service) LiveCount() int { return s.bubbles.ItemCount() }

// SetProcessed updates the stored processed state of record id.
func (s *Service) SetProcessed(ctx context.Context, id int64, t notification.ProcessedType) error {
	if s.store == nil {
		return ErrNoStore
	}
	if !t.Valid() {
		return fmt.Errorf("notifier: invalid processed type %d", t)
	}
	if err := s.store.SetProcessed(ctx, id, t); err != nil {
		return err
	}
	eventbus.Publish(s.bus, eventbus.NotificationUpdated, Event{ID: id, At: time.Now()})
	return nil
}

// Remove marks a stored record as removed. The row stays until pruned.
func (s *Service) Remove(ctx context.Context, id int64) error {
	return s.SetProcessed(ctx, id, notification.Removed)
}

func (s *Service) List(ctx context.Context, f storage.ListFilter) ([]notification.Entity, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.List(ctx, f)
}

// SendLog implements logx.Sink: important log lines become notifications.
func (s *Service) SendLog(ctx context.Context, level, text string) error {
	icon := "dialog-information"
	switch level {
	case "warn":
		icon = "dialog-warning"
	case "error", "fatal", "panic":
		icon = "dialog-error"
	}
	_, err := s.Notify(ctx, SelfAppName, 0, icon, SelfAppName+" "+level, text, nil, map[string]string{"urgency": "2"}, -1)
	return err
}

func (s *Service) onEvicted(key string, v any) {
	b, ok := v.(*bubble)
	if !ok {
		return
	}
	b.mu.Lock()
	reason := b.reason
	if reason == 0 {
		reason = CloseExpired
	}
	b.mu.Unlock()
	id, _ := strconv.ParseUint(key, 10, 32)
	e := b.snapshot()
	eventbus.Publish(s.bus, eventbus.NotificationClosed, Event{BubbleID: uint32(id), ID: e.ID(), AppName: e.AppName(), Reason: reason, At: time.Now()})
}

func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(e notification.Entity) {
	s.mu.Lock()
	limit := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: e.CreatedAt(), BubbleID: e.BubbleID(), AppName: e.AppName(), Summary: e.Summary()})
	if len(s.history) > limit {
		s.history = s.history[len(s.history)-limit:]
	}
	s.hmu.Unlock()
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	if q == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.persistWithRetry(ctx, j)
		}
	}
}

func (s *Service) persistWithRetry(runCtx context.Context, j job) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	st := s.store
	s.mu.Unlock()

	if st == nil {
		return
	}

	// A replacement overwrites the record of the bubble it replaces.
	// The processed state comes from the bubble, it may have moved on since
	// the job was queued.
	e := j.entity.Clone()
	j.b.mu.Lock()
	if j.b.storeID > 0 {
		e.SetID(j.b.storeID)
	}
	e.SetProcessedType(j.b.entity.ProcessedType())
	j.b.mu.Unlock()

	maxAttempts := 1 + cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(runCtx); err != nil {
				return
			}
		}

		callCtx, cancel := context.WithTimeout(runCtx, 5*time.Second)
		id, err := st.Put(callCtx, e)
		cancel()
		if err == nil {
			j.b.mu.Lock()
			j.b.storeID = id
			pt := j.b.entity.ProcessedType()
			j.b.mu.Unlock()
			if pt != e.ProcessedType() {
				s.syncProcessed(runCtx, st, id, pt)
			}
			return
		}
		lastErr = err
		s.log.Debug("notification persist failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-runCtx.Done():
			t.Stop()
			return
		}
	}

	eventbus.Publish(s.bus, eventbus.NotificationFailed, Event{BubbleID: e.BubbleID(), AppName: e.AppName(), Error: lastErr.Error(), At: time.Now()})
	// Self notifications stay quiet so a broken store cannot feed the log sink.
	if e.AppName() != SelfAppName {
		s.log.Warn("notification not stored", logx.Uint32("bubble", e.BubbleID()), logx.Err(lastErr))
	}
}

// syncProcessed writes a processed state that changed while the record was
// being stored.
func (s *Service) syncProcessed(runCtx context.Context, st storage.Store, id int64, pt notification.ProcessedType) {
	ctx, cancel := context.WithTimeout(runCtx, 5*time.Second)
	defer cancel()
	if err := st.SetProcessed(ctx, id, pt); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("notification processed state not stored", logx.Int64("id", id), logx.Err(err))
	}
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1 (first attempt), delay is for the NEXT attempt.
	base := cfg.RetryBase
	maxD := cfg.RetryMaxDelay
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxD {
			d = maxD
			break
		}
	}
	// Jitter 0.7..1.3
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d < 0 {
		return 0
	}
	if d > maxD {
		d = maxD
	}
	return d
}

// lifetime maps an expire timeout in milliseconds to a cache lifetime.
func lifetime(expireMS int32, def time.Duration) time.Duration {
	switch {
	case expireMS < 0:
		return def
	case expireMS == 0:
		return gocache.NoExpiration
	default:
		return time.Duration(expireMS) * time.Millisecond
	}
}

func bubbleKey(id uint32) string { return strconv.FormatUint(uint64(id), 10) }
