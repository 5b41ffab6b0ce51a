package dbusapi

import (
	"context"

	"dockbridge/internal/capability"
	"dockbridge/internal/dock"
	"dockbridge/internal/notification"
	"dockbridge/internal/storage"

	"github.com/godbus/dbus/v5"
)

const (
	DockName      = "org.deepin.dde.Dock1"
	DockPath      = dbus.ObjectPath("/org/deepin/dde/Dock1")
	DockInterface = "org.deepin.dde.Dock1"

	NotificationsName      = "org.freedesktop.Notifications"
	NotificationsPath      = dbus.ObjectPath("/org/freedesktop/Notifications")
	NotificationsInterface = "org.freedesktop.Notifications"
	RecordsInterface       = "org.deepin.dde.Notification1"
)

// Config selects which objects are exported.
type Config struct {
	Enabled       bool
	Dock          bool
	Notifications bool
}

// DockBackend is the part of dock.Proxy the Dock1 object serves.
type DockBackend interface {
	RequestDock(desktopFile string, index int) bool
	IsDocked(desktopFile string) bool
	RequestUndock(desktopFile string) bool
	GetLoadedPlugins() []string
	Plugins() []capability.DockItemInfo
	ReloadPlugins()
	CallShow()
	SetItemOnDock(settingKey, itemKey string, visible bool)
	SetPluginVisible(pluginName string, visible bool)
	GetPluginVisible(pluginName string) bool
	GetPluginKey(pluginName string) string
	ResizeDock(offset int, dragging bool)
	Position() dock.Position
	SetPosition(dock.Position)
	HideMode() dock.HideMode
	SetHideMode(dock.HideMode)
	HideState() dock.HideState
	FrontendWindowRect() dock.Rect
}

// NotifyBackend is the part of notifier.Service the notification objects
// serve.
type NotifyBackend interface {
	Notify(ctx context.Context, appName string, replacesID uint32, appIcon, summary, body string, actions []string, hints map[string]string, expireTimeout int32) (uint32, error)
	Close(ctx context.Context, bubbleID uint32) error
	InvokeAction(ctx context.Context, bubbleID uint32, actionKey string) error
	List(ctx context.Context, f storage.ListFilter) ([]notification.Entity, error)
	Remove(ctx context.Context, id int64) error
}

// ServerInfo is returned by GetServerInformation.
type ServerInfo struct {
	Name            string
	Vendor          string
	Version         string
	ProtocolVersion string
}

var defaultServerInfo = ServerInfo{Name: "dockd", Vendor: "dockbridge", Version: "1.0", ProtocolVersion: "1.2"}

// capabilities advertised by GetCapabilities.
var capabilities = []string{"actions", "body", "body-markup", "persistence"}
