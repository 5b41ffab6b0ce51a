// Package builtin holds the dock applets dockd ships with: the task manager,
// the tray and the standalone clipboard and search items. Each one is backed
// by the desktop service that owns the data when it is on the session bus and
// by local state when it is not.
package builtin

import (
	"errors"
	"fmt"

	"dockbridge/internal/applet"
	"dockbridge/internal/capability"
	logx "dockbridge/pkg/logx"

	"github.com/godbus/dbus/v5"
)

// Object is the part of dbus.BusObject the applets call.
type Object interface {
	Call(method string, flags dbus.Flags, args ...any) *dbus.Call
	GetProperty(p string) (dbus.Variant, error)
}

// Dialer returns the remote object at dest/path, or false when no bus is
// available right now.
type Dialer func(dest string, path dbus.ObjectPath) (Object, bool)

// ConnDialer dials through whatever conn returns at call time. The session
// bus connects after the applets load, so it is looked up per call.
func ConnDialer(conn func() *dbus.Conn) Dialer {
	return func(dest string, path dbus.ObjectPath) (Object, bool) {
		if conn == nil {
			return nil, false
		}
		c := conn()
		if c == nil {
			return nil, false
		}
		return c.Object(dest, path), true
	}
}

func (d Dialer) dial(dest string, path dbus.ObjectPath) (Object, bool) {
	if d == nil {
		return nil, false
	}
	return d(dest, path)
}

// nameHasOwner asks the bus daemon whether name is currently owned.
func (d Dialer) nameHasOwner(name string) (bool, error) {
	obj, ok := d.dial("org.freedesktop.DBus", "/org/freedesktop/DBus")
	if !ok {
		return false, errNoBus
	}
	var owned bool
	if err := obj.Call("org.freedesktop.DBus.NameHasOwner", 0, name).Store(&owned); err != nil {
		return false, err
	}
	return owned, nil
}

var errNoBus = errors.New("builtin: no session bus")

// IDs lists the built-in applets in load order.
func IDs() []string {
	return []string{capability.TaskManagerID, capability.TrayID, capability.ClipboardItemID, capability.SearchItemID}
}

// Register adds a factory for every built-in applet to l.
func Register(l *applet.Loader, dial Dialer, log logx.Logger) {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "builtin"))
	l.Register(capability.TaskManagerID, func() (applet.Node, error) { return NewTaskManager(dial, log), nil })
	l.Register(capability.TrayID, func() (applet.Node, error) { return NewTray(dial, log), nil })
	l.Register(capability.ClipboardItemID, func() (applet.Node, error) { return NewClipboardItem(dial, log), nil })
	l.Register(capability.SearchItemID, func() (applet.Node, error) { return NewSearchItem(dial, log), nil })
}

// Load attaches every built-in under parentID. All of them are tried; the
// failures are joined.
func Load(l *applet.Loader, parentID string) error {
	var errs []error
	for _, id := range IDs() {
		if _, err := l.Load(parentID, id); err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
