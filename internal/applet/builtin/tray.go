package builtin

import (
	"sort"
	"strings"
	"sync"

	"dockbridge/internal/applet"
	"dockbridge/internal/capability"
	logx "dockbridge/pkg/logx"

	"github.com/godbus/dbus/v5"
)

// StatusNotifier names the tray reads its items from.
const (
	WatcherName   = "org.kde.StatusNotifierWatcher"
	WatcherPath   = dbus.ObjectPath("/StatusNotifierWatcher")
	ItemInterface = "org.kde.StatusNotifierItem"
	itemPath      = "/StatusNotifierItem"

	// TraySettingKey is the setting key tray items report.
	TraySettingKey = "tray"
)

// Tray lists the StatusNotifier items registered with the watcher and keeps
// their dock visibility. Items hidden with SetItemOnDock stay listed with
// Visible false.
type Tray struct {
	applet.Base
	dial Dialer
	log  logx.Logger

	mu     sync.Mutex
	hidden map[string]bool // settingKey/itemKey
}

var _ capability.TrayProvider = (*Tray)(nil)

func NewTray(dial Dialer, log logx.Logger) *Tray {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Tray{
		Base:   applet.Base{ID: capability.TrayID},
		dial:   dial,
		log:    log.With(logx.String("applet", capability.TrayID)),
		hidden: map[string]bool{},
	}
}

func (t *Tray) Plugins() []capability.DockItemInfo {
	names := t.registered()
	out := make([]capability.DockItemInfo, 0, len(names))
	for _, name := range names {
		service, path := splitItemName(name)
		info := capability.DockItemInfo{
			Name:        service,
			DisplayName: t.title(service, path),
			ItemKey:     service,
			SettingKey:  TraySettingKey,
		}
		if info.DisplayName == "" {
			info.DisplayName = service
		}
		out = append(out, info)
	}
	t.mu.Lock()
	for i := range out {
		out[i].Visible = !t.hidden[visibilityKey(out[i].SettingKey, out[i].ItemKey)]
	}
	t.mu.Unlock()
	return out
}

func (t *Tray) SetItemOnDock(settingKey, itemKey string, visible bool) {
	if itemKey == "" {
		return
	}
	t.mu.Lock()
	if visible {
		delete(t.hidden, visibilityKey(settingKey, itemKey))
	} else {
		t.hidden[visibilityKey(settingKey, itemKey)] = true
	}
	t.mu.Unlock()
	t.log.Debug("tray item visibility", logx.String("setting", settingKey), logx.String("item", itemKey), logx.Bool("visible", visible))
}

// registered returns the item names known to the watcher, sorted.
func (t *Tray) registered() []string {
	obj, ok := t.dial.dial(WatcherName, WatcherPath)
	if !ok {
		return nil
	}
	v, err := obj.GetProperty(WatcherName + ".RegisteredStatusNotifierItems")
	if err != nil {
		t.log.Debug("status notifier watcher unavailable", logx.Err(err))
		return nil
	}
	names, ok := v.Value().([]string)
	if !ok {
		return nil
	}
	names = append([]string(nil), names...)
	sort.Strings(names)
	return names
}

func (t *Tray) title(service, path string) string {
	obj, ok := t.dial.dial(service, dbus.ObjectPath(path))
	if !ok {
		return ""
	}
	v, err := obj.GetProperty(ItemInterface + ".Title")
	if err != nil {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

// splitItemName splits "service/object/path"; a bare service uses the
// default item path.
func splitItemName(name string) (string, string) {
	service, path, ok := strings.Cut(name, "/")
	if !ok {
		return service, itemPath
	}
	return service, "/" + path
}

func visibilityKey(settingKey, itemKey string) string { return settingKey + "/" + itemKey }
