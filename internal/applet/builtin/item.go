package builtin

import (
	"sync"

	"dockbridge/internal/applet"
	"dockbridge/internal/capability"
	logx "dockbridge/pkg/logx"
)

// Services behind the standalone dock items.
const (
	ClipboardService = "org.deepin.dde.Clipboard1"
	SearchService    = "com.deepin.dde.GrandSearch"
)

// Item is a single dock item backed by one desktop service. The item is
// reported while its service owns its bus name; without a bus it is always
// reported.
type Item struct {
	applet.Base
	service string
	dial    Dialer
	log     logx.Logger

	mu   sync.Mutex
	info capability.DockItemInfo
}

var _ capability.DockItemProvider = (*Item)(nil)

func NewClipboardItem(dial Dialer, log logx.Logger) *Item {
	return newItem(capability.ClipboardItemID, ClipboardService, capability.DockItemInfo{
		Name:        "clipboard",
		DisplayName: "Clipboard",
		ItemKey:     "clipboard",
		SettingKey:  "clipboard",
		DccIcon:     "dcc_dock_clipboard",
		Visible:     true,
	}, dial, log)
}

func NewSearchItem(dial Dialer, log logx.Logger) *Item {
	return newItem(capability.SearchItemID, SearchService, capability.DockItemInfo{
		Name:        "search",
		DisplayName: "Search",
		ItemKey:     "search",
		SettingKey:  "search",
		DccIcon:     "dcc_dock_grand_search",
		Visible:     true,
	}, dial, log)
}

func newItem(id, service string, info capability.DockItemInfo, dial Dialer, log logx.Logger) *Item {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Item{
		Base:    applet.Base{ID: id},
		service: service,
		dial:    dial,
		log:     log.With(logx.String("applet", id)),
		info:    info,
	}
}

func (it *Item) DockItemInfo() (capability.DockItemInfo, bool) {
	owned, err := it.dial.nameHasOwner(it.service)
	if err == nil && !owned {
		return capability.DockItemInfo{}, false
	}
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.info, true
}

func (it *Item) SetVisible(visible bool) {
	it.mu.Lock()
	changed := it.info.Visible != visible
	it.info.Visible = visible
	it.mu.Unlock()
	if changed {
		it.log.Debug("dock item visibility", logx.Bool("visible", visible))
	}
}
