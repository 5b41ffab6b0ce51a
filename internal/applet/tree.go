package applet

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// RootID is the plugin id of the tree root when none is given.
const RootID = "org.deepin.ds.root"

var (
	ErrNilNode        = errors.New("applet: nil node")
	ErrCycle          = errors.New("applet: registration would create a cycle")
	ErrParentNotFound = errors.New("applet: parent not found")
	ErrNotContainer   = errors.New("applet: parent is not a container")
	ErrDuplicate      = errors.New("applet: container already registered")
)

// Tree is the applet registry. The root is a Containment; growth happens
// through Add, lookups are breadth-first searches from the root.
type Tree struct {
	root *Containment

	// addMu holds the reachability checks and the append together.
	addMu sync.Mutex

	mu       sync.Mutex
	watchers map[uint64]chan struct{}
	seq      uint64
	count    atomic.Int64
}

// NewTree returns a tree with an empty root containment. An empty rootID
// uses RootID.
func NewTree(rootID string) *Tree {
	if rootID == "" {
		rootID = RootID
	}
	t := &Tree{root: NewContainment(rootID), watchers: map[uint64]chan struct{}{}}
	t.root.setHook(t.onAdd)
	return t
}

func (t *Tree) Root() *Containment { return t.root }

// FindAll searches the whole tree for pluginID.
func (t *Tree) FindAll(pluginID string) []Node { return FindAll(t.root, pluginID) }

// FindFirst returns the first breadth-first match for pluginID.
func (t *Tree) FindFirst(pluginID string) (Node, bool) { return FindFirst(t.root, pluginID) }

// Len returns the number of registered applets (root excluded).
func (t *Tree) Len() int { return int(t.count.Load()) }

// Add appends child under parent. A nil parent means the root.
func (t *Tree) Add(parent *Containment, child Node) error {
	if child == nil {
		return ErrNilNode
	}
	if parent == nil {
		parent = t.root
	}
	t.addMu.Lock()
	defer t.addMu.Unlock()
	if parent != t.root && !contains(t.root, parent) {
		return fmt.Errorf("%w: %s is detached", ErrParentNotFound, parent.PluginID())
	}
	if sub, ok := child.(*Containment); ok {
		if sub == nil {
			return ErrNilNode
		}
		if sub == parent || contains(sub, parent) {
			return fmt.Errorf("%w: %s under %s", ErrCycle, sub.PluginID(), parent.PluginID())
		}
		if sub == t.root {
			return fmt.Errorf("%w: root re-registered", ErrCycle)
		}
		if contains(t.root, sub) {
			return fmt.Errorf("%w: %s", ErrDuplicate, sub.PluginID())
		}
	}
	parent.add(child)
	return nil
}

// AddTo appends child under the first container matching parentID. An empty
// parentID means the root.
func (t *Tree) AddTo(parentID string, child Node) (*Containment, error) {
	if parentID == "" || parentID == t.root.PluginID() {
		return t.root, t.Add(t.root, child)
	}
	n, ok := t.FindFirst(parentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrParentNotFound, parentID)
	}
	parent, ok := n.(*Containment)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotContainer, parentID)
	}
	return parent, t.Add(parent, child)
}

// Watch returns a channel that receives a signal after applets are added.
// Signals coalesce: one pending signal may stand for many registrations.
func (t *Tree) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	t.mu.Lock()
	t.seq++
	id := t.seq
	t.watchers[id] = ch
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.watchers, id)
			t.mu.Unlock()
		})
	}
}

func (t *Tree) onAdd(_ *Containment, child Node) {
	t.count.Add(1)
	if sub, ok := child.(*Containment); ok {
		// Children that came along with the container.
		Walk(sub, func(Node) bool { t.count.Add(1); return true })
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// contains reports whether target is reachable below c.
func contains(c *Containment, target *Containment) bool {
	found := false
	Walk(c, func(n Node) bool {
		if sub, ok := n.(*Containment); ok && sub == target {
			found = true
			return false
		}
		return true
	})
	return found
}
