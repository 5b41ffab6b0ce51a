package builtin

import (
	"sync"

	"dockbridge/internal/applet"
	"dockbridge/internal/capability"
	logx "dockbridge/pkg/logx"

	"github.com/godbus/dbus/v5"
)

// Dock daemon that owns the docked application list.
const (
	DockDaemonName      = "org.deepin.dde.daemon.Dock1"
	DockDaemonPath      = dbus.ObjectPath("/org/deepin/dde/daemon/Dock1")
	DockDaemonInterface = "org.deepin.dde.daemon.Dock1"
)

// TaskManager keeps the docked application ids. Requests go to the dock
// daemon when it answers; the local set mirrors every answer and serves the
// calls while the daemon is away.
type TaskManager struct {
	applet.Base
	dial Dialer
	log  logx.Logger

	mu     sync.Mutex
	docked map[string]bool
	order  []string
}

var _ capability.TaskManager = (*TaskManager)(nil)

func NewTaskManager(dial Dialer, log logx.Logger) *TaskManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &TaskManager{
		Base:   applet.Base{ID: capability.TaskManagerID},
		dial:   dial,
		log:    log.With(logx.String("applet", capability.TaskManagerID)),
		docked: map[string]bool{},
	}
}

func (t *TaskManager) RequestDock(appID string) bool {
	if appID == "" {
		return false
	}
	if ok, err := t.remote("RequestDock", appID, int32(-1)); err == nil {
		if ok {
			t.setDocked(appID, true)
		}
		return ok
	}
	return t.setDocked(appID, true)
}

func (t *TaskManager) IsDocked(appID string) bool {
	if appID == "" {
		return false
	}
	if ok, err := t.remote("IsDocked", appID); err == nil {
		return ok
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.docked[appID]
}

func (t *TaskManager) RequestUndock(appID string) bool {
	if appID == "" {
		return false
	}
	if ok, err := t.remote("RequestUndock", appID); err == nil {
		if ok {
			t.setDocked(appID, false)
		}
		return ok
	}
	return t.setDocked(appID, false)
}

// Docked returns the locally known docked ids in the order they were docked.
func (t *TaskManager) Docked() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.order...)
}

// setDocked reports whether the state changed.
func (t *TaskManager) setDocked(appID string, docked bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.docked[appID] == docked {
		return false
	}
	if docked {
		t.docked[appID] = true
		t.order = append(t.order, appID)
		return true
	}
	delete(t.docked, appID)
	for i, id := range t.order {
		if id == appID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *TaskManager) remote(method string, args ...any) (bool, error) {
	obj, ok := t.dial.dial(DockDaemonName, DockDaemonPath)
	if !ok {
		return false, errNoBus
	}
	var out bool
	if err := obj.Call(DockDaemonInterface+"."+method, 0, args...).Store(&out); err != nil {
		t.log.Debug("dock daemon call failed", logx.String("method", method), logx.Err(err))
		return false, err
	}
	return out, nil
}
