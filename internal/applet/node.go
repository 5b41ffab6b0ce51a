package applet

import "sync"

// Node is one loaded applet. Capability handles are Nodes that also
// implement a contract from package capability.
type Node interface {
	PluginID() string
}

// Container is a Node that hosts child applets.
//
// Applets must return a snapshot of the children in registration order; the
// caller may iterate it while the container keeps growing.
type Container interface {
	Node
	Applets() []Node
}

// Base is embedded by applet implementations to provide PluginID.
type Base struct {
	ID string
}

func (b Base) PluginID() string { return b.ID }

// Leaf returns a bare applet with no behavior besides its id.
func Leaf(id string) Node { return Base{ID: id} }

// Containment is the stock Container implementation. Children are only ever
// appended.
type Containment struct {
	Base

	mu       sync.RWMutex
	children []Node
	onAdd    func(parent *Containment, child Node)
}

// NewContainment returns an empty containment with the given plugin id.
func NewContainment(id string) *Containment {
	return &Containment{Base: Base{ID: id}}
}

// Applets returns a snapshot of the direct children.
func (c *Containment) Applets() []Node {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Node, len(c.children))
	copy(out, c.children)
	return out
}

// Len returns the number of direct children.
func (c *Containment) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.children)
}

// add appends child and fires the registration hook outside the lock.
func (c *Containment) add(child Node) {
	c.mu.Lock()
	c.children = append(c.children, child)
	hook := c.onAdd
	c.mu.Unlock()

	// Containers inherit the hook so grandchildren are reported too.
	if sub, ok := child.(*Containment); ok {
		sub.setHook(hook)
	}
	if hook != nil {
		hook(c, child)
	}
}

func (c *Containment) setHook(fn func(parent *Containment, child Node)) {
	c.mu.Lock()
	c.onAdd = fn
	kids := append([]Node(nil), c.children...)
	c.mu.Unlock()
	for _, k := range kids {
		if sub, ok := k.(*Containment); ok {
			sub.setHook(fn)
		}
	}
}
