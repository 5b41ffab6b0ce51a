package dbusapi

import (
	"dockbridge/internal/capability"
	"dockbridge/internal/dock"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

// dockItem is the wire form of capability.DockItemInfo, (sssssb).
type dockItem struct {
	Name        string
	DisplayName string
	ItemKey     string
	SettingKey  string
	DccIcon     string
	Visible     bool
}

func toDockItems(in []capability.DockItemInfo) []dockItem {
	out := make([]dockItem, 0, len(in))
	for _, it := range in {
		out = append(out, dockItem(it))
	}
	return out
}

// rect is the wire form of dock.Rect, (iiii).
type rect struct {
	X, Y, Width, Height int32
}

func toRect(r dock.Rect) rect { return rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height} }

// dockMethods returns the Dock1 method table. Names follow the existing
// Dock1 interface, lower-case ones included.
func dockMethods(d DockBackend) map[string]any {
	return map[string]any{
		"RequestDock": func(desktopFile string, index int32) (bool, *dbus.Error) {
			return d.RequestDock(desktopFile, int(index)), nil
		},
		"IsDocked": func(desktopFile string) (bool, *dbus.Error) {
			return d.IsDocked(desktopFile), nil
		},
		"RequestUndock": func(desktopFile string) (bool, *dbus.Error) {
			return d.RequestUndock(desktopFile), nil
		},
		"GetLoadedPlugins": func() ([]string, *dbus.Error) {
			return d.GetLoadedPlugins(), nil
		},
		"ReloadPlugins": func() *dbus.Error {
			d.ReloadPlugins()
			return nil
		},
		"callShow": func() *dbus.Error {
			d.CallShow()
			return nil
		},
		"plugins": func() ([]dockItem, *dbus.Error) {
			return toDockItems(d.Plugins()), nil
		},
		"setItemOnDock": func(settingKey, itemKey string, visible bool) *dbus.Error {
			d.SetItemOnDock(settingKey, itemKey, visible)
			return nil
		},
		"setPluginVisible": func(pluginName string, visible bool) *dbus.Error {
			d.SetPluginVisible(pluginName, visible)
			return nil
		},
		"getPluginVisible": func(pluginName string) (bool, *dbus.Error) {
			return d.GetPluginVisible(pluginName), nil
		},
		"getPluginKey": func(pluginName string) (string, *dbus.Error) {
			return d.GetPluginKey(pluginName), nil
		},
		"resizeDock": func(offset int32, dragging bool) *dbus.Error {
			d.ResizeDock(int(offset), dragging)
			return nil
		},
	}
}

// dockProps returns the Dock1 properties. Position and HideMode are writable
// and validated before reaching the panel.
func dockProps(d DockBackend) map[string]*prop.Prop {
	return map[string]*prop.Prop{
		"Position": {
			Value:    int32(d.Position()),
			Writable: true,
			Emit:     prop.EmitTrue,
			Callback: func(c *prop.Change) *dbus.Error {
				v, ok := c.Value.(int32)
				if !ok || !dock.Position(v).Valid() {
					return prop.ErrInvalidArg
				}
				d.SetPosition(dock.Position(v))
				return nil
			},
		},
		"HideMode": {
			Value:    int32(d.HideMode()),
			Writable: true,
			Emit:     prop.EmitTrue,
			Callback: func(c *prop.Change) *dbus.Error {
				v, ok := c.Value.(int32)
				if !ok || !dock.HideMode(v).Valid() {
					return prop.ErrInvalidArg
				}
				d.SetHideMode(dock.HideMode(v))
				return nil
			},
		},
		"HideState": {
			Value:    int32(d.HideState()),
			Writable: false,
			Emit:     prop.EmitTrue,
		},
		"FrontendWindowRect": {
			Value:    toRect(d.FrontendWindowRect()),
			Writable: false,
			Emit:     prop.EmitTrue,
		},
	}
}
