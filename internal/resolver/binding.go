package resolver

import (
	"sync"

	"dockbridge/internal/applet"
)

// Binding maps each required capability id to its resolved handle. Only the
// resolver loop writes to it; after Resolved it never changes.
type Binding struct {
	mu      sync.RWMutex
	ids     []string
	handles map[string]applet.Node
}

func newBinding(ids []string) *Binding {
	seen := make(map[string]bool, len(ids))
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		uniq = append(uniq, id)
	}
	return &Binding{ids: uniq, handles: make(map[string]applet.Node, len(uniq))}
}

// Get returns the handle bound to id, if any.
func (b *Binding) Get(id string) (applet.Node, bool) {
	if b == nil {
		return nil, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.handles[id]
	return n, ok
}

// IDs returns the required ids in declaration order.
func (b *Binding) IDs() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.ids...)
}

// Missing returns the ids that are still unbound.
func (b *Binding) Missing() []string {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []string
	for _, id := range b.ids {
		if _, ok := b.handles[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func (b *Binding) Complete() bool { return len(b.Missing()) == 0 }

func (b *Binding) set(id string, n applet.Node) {
	b.mu.Lock()
	if _, ok := b.handles[id]; !ok {
		b.handles[id] = n
	}
	b.mu.Unlock()
}
