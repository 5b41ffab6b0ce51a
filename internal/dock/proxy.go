package dock

import (
	"sync"

	"dockbridge/internal/applet"
	"dockbridge/internal/capability"
	logx "dockbridge/pkg/logx"
)

// Tree is the applet registry as seen by the proxy.
type Tree interface {
	FindFirst(pluginID string) (applet.Node, bool)
	Root() *applet.Containment
}

// Lookup returns sibling handles bound by the resolver. A nil Lookup means
// nothing is bound.
type Lookup interface {
	Get(pluginID string) (applet.Node, bool)
}

type Deps struct {
	Tree       Tree
	Siblings   Lookup
	Panel      Panel
	Dispatcher *Dispatcher
	Logger     logx.Logger
}

// Proxy is the dock's external surface. Every operation degrades to a
// documented default when the applet that would serve it is missing; callers
// never see an error for an unresolved dependency.
type Proxy struct {
	tree     Tree
	siblings Lookup
	panel    Panel
	disp     *Dispatcher
	log      logx.Logger

	mu      sync.RWMutex
	visible map[string]bool
}

func New(d Deps) *Proxy {
	log := d.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Proxy{
		tree:     d.Tree,
		siblings: d.Siblings,
		panel:    d.Panel,
		disp:     d.Dispatcher,
		log:      log.With(logx.String("comp", "dock")),
		visible:  map[string]bool{},
	}
}

// ---- task manager (looked up on every call) ----

func (p *Proxy) taskManager() (capability.TaskManager, bool) {
	if p.tree == nil {
		return nil, false
	}
	n, ok := p.tree.FindFirst(capability.TaskManagerID)
	if !ok {
		return nil, false
	}
	tm, ok := n.(capability.TaskManager)
	if !ok {
		p.log.Debug("task manager applet lacks capability", logx.String("applet", n.PluginID()))
	}
	return tm, ok
}

func (p *Proxy) withTaskManager(op, desktopFile string, call func(tm capability.TaskManager, appID string) bool) bool {
	id, ok := AppID(desktopFile)
	if !ok {
		p.log.Debug("cannot derive app id", logx.String("op", op), logx.String("desktop_file", desktopFile))
		return false
	}
	tm, ok := p.taskManager()
	if !ok {
		return false
	}
	return call(tm, id)
}

// RequestDock pins the application to the dock. index is accepted for
// interface compatibility and ignored.
func (p *Proxy) RequestDock(desktopFile string, index int) bool {
	_ = index
	return p.withTaskManager("RequestDock", desktopFile, func(tm capability.TaskManager, id string) bool {
		return tm.RequestDock(id)
	})
}

func (p *Proxy) IsDocked(desktopFile string) bool {
	return p.withTaskManager("IsDocked", desktopFile, func(tm capability.TaskManager, id string) bool {
		return tm.IsDocked(id)
	})
}

func (p *Proxy) RequestUndock(desktopFile string) bool {
	return p.withTaskManager("RequestUndock", desktopFile, func(tm capability.TaskManager, id string) bool {
		return tm.RequestUndock(id)
	})
}

// ---- siblings (bound by the resolver) ----

func (p *Proxy) sibling(id string) (applet.Node, bool) {
	if p.siblings == nil {
		return nil, false
	}
	return p.siblings.Get(id)
}

func (p *Proxy) tray() (capability.TrayProvider, bool) {
	n, ok := p.sibling(capability.TrayID)
	if !ok {
		return nil, false
	}
	t, ok := n.(capability.TrayProvider)
	return t, ok
}

func (p *Proxy) item(id string) (capability.DockItemProvider, bool) {
	n, ok := p.sibling(id)
	if !ok {
		return nil, false
	}
	it, ok := n.(capability.DockItemProvider)
	return it, ok
}

// Plugins lists dock items: the tray's plugins followed by the clipboard and
// search items. Without a tray the list is empty.
func (p *Proxy) Plugins() []capability.DockItemInfo {
	t, ok := p.tray()
	if !ok {
		return []capability.DockItemInfo{}
	}
	out := append([]capability.DockItemInfo{}, t.Plugins()...)
	for _, id := range []string{capability.ClipboardItemID, capability.SearchItemID} {
		it, ok := p.item(id)
		if !ok {
			continue
		}
		if info, ok := it.DockItemInfo(); ok {
			out = append(out, info)
		}
	}
	return out
}

// Item keys routed to the standalone applets instead of the tray.
const (
	ItemKeyClipboard = "clipboard"
	ItemKeySearch    = "search"
)

// SetItemOnDock changes an item's dock visibility. The call is queued and this
// method returns before it runs.
func (p *Proxy) SetItemOnDock(settingKey, itemKey string, visible bool) {
	if itemKey == ItemKeyClipboard {
		if it, ok := p.item(capability.ClipboardItemID); ok {
			p.async("clipboard.SetVisible", func() { it.SetVisible(visible) })
			return
		}
	} else if itemKey == ItemKeySearch {
		if it, ok := p.item(capability.SearchItemID); ok {
			p.async("search.SetVisible", func() { it.SetVisible(visible) })
			return
		}
	}
	if t, ok := p.tray(); ok {
		p.async("tray.SetItemOnDock", func() { t.SetItemOnDock(settingKey, itemKey, visible) })
	}
}

// async queues fn on the dispatcher. Without one the call is dropped: a
// notify-only operation never runs on the caller's goroutine.
func (p *Proxy) async(name string, fn func()) {
	if p.disp == nil {
		p.log.Debug("no dispatcher, call dropped", logx.String("op", name))
		return
	}
	p.disp.Submit(name, fn)
}

// ---- registry introspection ----

// GetLoadedPlugins returns the ids of every loaded applet in breadth-first
// order, each id once.
func (p *Proxy) GetLoadedPlugins() []string {
	out := []string{}
	if p.tree == nil {
		return out
	}
	seen := map[string]bool{}
	applet.Walk(p.tree.Root(), func(n applet.Node) bool {
		id := n.PluginID()
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
		return true
	})
	return out
}

// SetPluginVisible records a per-plugin visibility flag. The flag is local to
// the proxy; nothing reads it besides GetPluginVisible.
func (p *Proxy) SetPluginVisible(pluginName string, visible bool) {
	p.mu.Lock()
	p.visible[pluginName] = visible
	p.mu.Unlock()
}

func (p *Proxy) GetPluginVisible(pluginName string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.visible[pluginName]
	if !ok {
		return true
	}
	return v
}

// GetPluginKey has no backing data and always returns "".
func (p *Proxy) GetPluginKey(pluginName string) string {
	_ = pluginName
	return ""
}

// ---- panel forwarding ----

func (p *Proxy) ResizeDock(offset int, dragging bool) {
	if p.panel != nil {
		p.panel.ResizeDock(offset, dragging)
	}
}

func (p *Proxy) Geometry() Rect {
	if p.panel == nil {
		return Rect{}
	}
	return p.panel.Geometry()
}

func (p *Proxy) FrontendWindowRect() Rect {
	if p.panel == nil {
		return Rect{}
	}
	return p.panel.FrontendWindowRect()
}

func (p *Proxy) Position() Position {
	if p.panel == nil {
		return PositionBottom
	}
	return p.panel.Position()
}

func (p *Proxy) SetPosition(pos Position) {
	if p.panel != nil {
		p.panel.SetPosition(pos)
	}
}

func (p *Proxy) HideMode() HideMode {
	if p.panel == nil {
		return KeepShowing
	}
	return p.panel.HideMode()
}

func (p *Proxy) SetHideMode(mode HideMode) {
	if p.panel != nil {
		p.panel.SetHideMode(mode)
	}
}

func (p *Proxy) HideState() HideState {
	if p.panel == nil {
		return HideStateUnknown
	}
	return p.panel.HideState()
}

func (p *Proxy) ReloadPlugins() {
	if p.panel != nil {
		p.panel.ReloadPlugins()
	}
}

func (p *Proxy) CallShow() {
	if p.panel != nil {
		p.panel.CallShow()
	}
}
