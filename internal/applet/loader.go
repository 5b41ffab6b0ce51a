package applet

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"dockbridge/internal/eventbus"
	logx "dockbridge/pkg/logx"
)

// Factory builds one applet instance.
type Factory func() (Node, error)

// Event is the payload of eventbus.AppletRegistered.
type Event struct {
	PluginID string `json:"plugin_id"`
	Parent   string `json:"parent"`
	TookMS   int64  `json:"took_ms,omitempty"`
}

// Status describes one registered applet for diagnostics.
type Status struct {
	PluginID     string    `json:"plugin_id"`
	Parent       string    `json:"parent"`
	Container    bool      `json:"container"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Snapshot is a point-in-time view of the loader.
type Snapshot struct {
	Time      time.Time `json:"time"`
	Factories []string  `json:"factories"`
	Loaded    []Status  `json:"loaded"`
}

var ErrUnknownPlugin = errors.New("applet: no factory registered")

// Loader instantiates applets from registered factories and attaches them to
// a Tree. It is the only writer of the tree in a running daemon.
type Loader struct {
	tree *Tree
	bus  eventbus.Bus
	log  logx.Logger

	mu        sync.Mutex
	factories map[string]Factory
	loaded    []Status
}

func NewLoader(tree *Tree, bus eventbus.Bus, log logx.Logger) *Loader {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Loader{
		tree:      tree,
		bus:       bus,
		log:       log.With(logx.String("comp", "applet")),
		factories: map[string]Factory{},
	}
}

func (l *Loader) Tree() *Tree { return l.tree }

// Register makes pluginID loadable. Registering the same id twice replaces
// the factory.
func (l *Loader) Register(pluginID string, f Factory) {
	if pluginID == "" || f == nil {
		return
	}
	l.mu.Lock()
	l.factories[pluginID] = f
	l.mu.Unlock()
}

// Load builds pluginID from its factory and attaches it under parentID.
// A panicking factory is reported as an error.
func (l *Loader) Load(parentID, pluginID string) (Node, error) {
	l.mu.Lock()
	f, ok := l.factories[pluginID]
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, pluginID)
	}

	start := time.Now()
	n, err := safeBuild(f)
	if err != nil {
		l.log.Warn("applet build failed", logx.String("applet", pluginID), logx.Err(err))
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("%w: factory for %s returned nil", ErrNilNode, pluginID)
	}
	if got := n.PluginID(); got != pluginID {
		l.log.Debug("factory id differs", logx.String("applet", pluginID), logx.String("got", got))
	}
	if err := l.attach(parentID, n, start); err != nil {
		return nil, err
	}
	return n, nil
}

// Attach adds an already built applet under parentID.
func (l *Loader) Attach(parentID string, n Node) error {
	return l.attach(parentID, n, time.Now())
}

func (l *Loader) attach(parentID string, n Node, start time.Time) error {
	parent, err := l.tree.AddTo(parentID, n)
	if err != nil {
		l.log.Warn("applet attach failed", logx.String("applet", pluginIDOf(n)), logx.String("parent", parentID), logx.Err(err))
		return err
	}
	_, isContainer := n.(Container)
	st := Status{
		PluginID:     n.PluginID(),
		Parent:       parent.PluginID(),
		Container:    isContainer,
		RegisteredAt: time.Now(),
	}
	l.mu.Lock()
	l.loaded = append(l.loaded, st)
	l.mu.Unlock()

	took := time.Since(start)
	l.log.Info("applet registered", logx.String("applet", st.PluginID), logx.String("parent", st.Parent), logx.Duration("took", took))
	eventbus.Publish(l.bus, eventbus.AppletRegistered, Event{PluginID: st.PluginID, Parent: st.Parent, TookMS: took.Milliseconds()})
	return nil
}

func (l *Loader) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.factories))
	for name := range l.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return Snapshot{
		Time:      time.Now(),
		Factories: names,
		Loaded:    append([]Status(nil), l.loaded...),
	}
}

func safeBuild(f Factory) (n Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("applet factory panic: %v\n%s", r, debug.Stack())
		}
	}()
	return f()
}

func pluginIDOf(n Node) string {
	if n == nil {
		return ""
	}
	if c, ok := n.(*Containment); ok && c == nil {
		return ""
	}
	return n.PluginID()
}
