// Package capability declares the contracts dock applets expose to the
// bridge, and the plugin ids they are registered under.
package capability

// Plugin ids of the applets the dock bridge talks to.
const (
	TaskManagerID   = "org.deepin.ds.dock.taskmanager"
	TrayID          = "org.deepin.ds.dock.tray"
	ClipboardItemID = "org.deepin.ds.dock.clipboarditem"
	SearchItemID    = "org.deepin.ds.dock.searchitem"
)

// Siblings are the applets the bridge waits for before it is fully usable.
// The task manager is looked up per call and is not part of this set.
var Siblings = []string{TrayID, ClipboardItemID, SearchItemID}

// DockItemInfo describes one item shown on the dock, as reported by the tray
// and the standalone clipboard/search items.
type DockItemInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	ItemKey     string `json:"itemKey"`
	SettingKey  string `json:"settingKey"`
	DccIcon     string `json:"dccIcon"`
	Visible     bool   `json:"visible"`
}

// TaskManager manages docked application entries. Calls are synchronous.
type TaskManager interface {
	RequestDock(appID string) bool
	IsDocked(appID string) bool
	RequestUndock(appID string) bool
}

// TrayProvider is the legacy tray applet.
//
// SetItemOnDock is queued by the bridge and must not be assumed to have run
// when the bridge call returns.
type TrayProvider interface {
	Plugins() []DockItemInfo
	SetItemOnDock(settingKey, itemKey string, visible bool)
}

// DockItemProvider is implemented by single-item applets (clipboard, search).
type DockItemProvider interface {
	DockItemInfo() (DockItemInfo, bool)
	SetVisible(visible bool)
}
