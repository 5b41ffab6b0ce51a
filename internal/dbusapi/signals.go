package dbusapi

import (
	"dockbridge/internal/dock"
	"dockbridge/internal/eventbus"
	"dockbridge/internal/notifier"

	"github.com/godbus/dbus/v5"
)

// signal is one D-Bus signal to emit.
type signal struct {
	path   dbus.ObjectPath
	name   string
	values []any
}

// propUpdate is one Dock1 property change.
type propUpdate struct {
	name  string
	value any
}

// translate maps a bus event to the signals and Dock1 property updates it
// causes. Events nobody on the bus cares about map to nothing.
func translate(e eventbus.Event) ([]signal, []propUpdate) {
	switch e.Type {
	case eventbus.NotificationClosed:
		ev, ok := e.Data.(notifier.Event)
		if !ok {
			return nil, nil
		}
		return []signal{{NotificationsPath, NotificationsInterface + ".NotificationClosed", []any{ev.BubbleID, uint32(ev.Reason)}}}, nil
	case eventbus.NotificationAction:
		ev, ok := e.Data.(notifier.Event)
		if !ok {
			return nil, nil
		}
		return []signal{{NotificationsPath, NotificationsInterface + ".ActionInvoked", []any{ev.BubbleID, ev.Action}}}, nil
	case eventbus.DockPositionChanged:
		ev, ok := e.Data.(dock.PanelEvent)
		if !ok {
			return nil, nil
		}
		return []signal{{DockPath, DockInterface + ".PositionChanged", []any{int32(ev.Position)}}},
			[]propUpdate{{"Position", int32(ev.Position)}}
	case eventbus.DockHideModeChanged:
		ev, ok := e.Data.(dock.PanelEvent)
		if !ok {
			return nil, nil
		}
		return []signal{{DockPath, DockInterface + ".HideModeChanged", []any{int32(ev.HideMode)}}},
			[]propUpdate{{"HideMode", int32(ev.HideMode)}, {"HideState", int32(ev.HideState)}}
	case eventbus.DockHideStateChanged:
		// No dedicated signal; PropertiesChanged carries it.
		ev, ok := e.Data.(dock.PanelEvent)
		if !ok {
			return nil, nil
		}
		return nil, []propUpdate{{"HideState", int32(ev.HideState)}}
	case eventbus.DockGeometryChanged:
		ev, ok := e.Data.(dock.PanelEvent)
		if !ok {
			return nil, nil
		}
		r := toRect(ev.Frontend)
		return []signal{{DockPath, DockInterface + ".FrontendWindowRectChanged", []any{r}}},
			[]propUpdate{{"FrontendWindowRect", r}}
	}
	return nil, nil
}
