package app

import (
	"strings"
	"time"

	"dockbridge/internal/applet"
	"dockbridge/internal/dock"
	"dockbridge/internal/notifier"
	"dockbridge/internal/resolver"
	"dockbridge/internal/schedule"
)

// Status is the /status document of the debug server.
type Status struct {
	Time      time.Time              `json:"time"`
	Resolver  ResolverStatus         `json:"resolver"`
	Dock      DockStatus             `json:"dock"`
	Applets   applet.Snapshot        `json:"applets"`
	Live      int                    `json:"live_notifications"`
	History   []notifier.HistoryItem `json:"notification_history"`
	Scheduler schedule.Snapshot      `json:"scheduler"`
	Storage   bool                   `json:"storage"`
	DBus      bool                   `json:"dbus"`
}

type ResolverStatus struct {
	State    string   `json:"state"`
	Required []string `json:"required"`
	Missing  []string `json:"missing,omitempty"`
}

type DockStatus struct {
	Position  string    `json:"position"`
	HideMode  string    `json:"hide_mode"`
	Geometry  dock.Rect `json:"geometry"`
	Size      int       `json:"size"`
	Plugins   []string  `json:"loaded_plugins"`
	TreeNodes int       `json:"tree_nodes"`
}

func (a *App) Status() Status {
	b := a.res.Binding()
	return Status{
		Time: time.Now(),
		Resolver: ResolverStatus{
			State:    a.res.State().String(),
			Required: b.IDs(),
			Missing:  b.Missing(),
		},
		Dock: DockStatus{
			Position:  a.panel.Position().String(),
			HideMode:  a.panel.HideMode().String(),
			Geometry:  a.panel.Geometry(),
			Size:      a.panel.Size(),
			Plugins:   a.proxy.GetLoadedPlugins(),
			TreeNodes: a.tree.Len(),
		},
		Applets:   a.loader.Snapshot(),
		Live:      a.notif.LiveCount(),
		History:   a.notif.Snapshot(),
		Scheduler: a.sched.Snapshot(),
		Storage:   a.store != nil,
		DBus:      a.dbus != nil,
	}
}

// readiness backs /readyz: ready once the resolver left Pending, with Failed
// reported as not ready.
func (a *App) readiness() (bool, string) {
	switch a.res.State() {
	case resolver.Resolved:
		return true, "resolved"
	case resolver.Failed:
		return false, "degraded: missing " + strings.Join(a.res.Binding().Missing(), ",")
	default:
		return false, "pending"
	}
}
