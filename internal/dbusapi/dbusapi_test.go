package dbusapi

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"dockbridge/internal/applet"
	"dockbridge/internal/capability"
	"dockbridge/internal/dock"
	"dockbridge/internal/eventbus"
	"dockbridge/internal/notification"
	"dockbridge/internal/notifier"
	"dockbridge/internal/storage"
	logx "dockbridge/pkg/logx"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

type taskManager struct {
	applet.Base
	mu     sync.Mutex
	docked map[string]bool
}

func (t *taskManager) RequestDock(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.docked[id] = true
	return true
}

func (t *taskManager) IsDocked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.docked[id]
}

func (t *taskManager) RequestUndock(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.docked[id]
	delete(t.docked, id)
	return was
}

func newDock(t *testing.T) (*dock.Proxy, *dock.PanelState) {
	t.Helper()
	tree := applet.NewTree("root")
	tm := &taskManager{Base: applet.Base{ID: capability.TaskManagerID}, docked: map[string]bool{}}
	if err := tree.Add(tree.Root(), tm); err != nil {
		t.Fatal(err)
	}
	panel := dock.NewPanelState(nil, logx.Nop())
	return dock.New(dock.Deps{Tree: tree, Panel: panel}), panel
}

func TestDockMethodTable(t *testing.T) {
	t.Parallel()
	p, panel := newDock(t)
	m := dockMethods(p)

	const file = "/usr/share/applications/org.example.Editor.desktop"
	if ok, err := m["RequestDock"].(func(string, int32) (bool, *dbus.Error))(file, 0); !ok || err != nil {
		t.Fatalf("RequestDock = %v,%v", ok, err)
	}
	if ok, _ := m["IsDocked"].(func(string) (bool, *dbus.Error))(file); !ok {
		t.Fatal("IsDocked after RequestDock = false")
	}
	if ok, _ := m["IsDocked"].(func(string) (bool, *dbus.Error))("/opt/editor"); ok {
		t.Fatal("IsDocked without app id = true")
	}
	if ok, _ := m["RequestUndock"].(func(string) (bool, *dbus.Error))(file); !ok {
		t.Fatal("RequestUndock = false")
	}

	ids, _ := m["GetLoadedPlugins"].(func() ([]string, *dbus.Error))()
	if !reflect.DeepEqual(ids, []string{capability.TaskManagerID}) {
		t.Fatalf("GetLoadedPlugins = %v", ids)
	}
	items, _ := m["plugins"].(func() ([]dockItem, *dbus.Error))()
	if items == nil || len(items) != 0 {
		t.Fatalf("plugins without tray = %#v", items)
	}

	_ = m["setPluginVisible"].(func(string, bool) *dbus.Error)("clock", false)
	if v, _ := m["getPluginVisible"].(func(string) (bool, *dbus.Error))("clock"); v {
		t.Fatal("getPluginVisible after hide = true")
	}
	if v, _ := m["getPluginVisible"].(func(string) (bool, *dbus.Error))("other"); !v {
		t.Fatal("getPluginVisible default = false")
	}
	if k, _ := m["getPluginKey"].(func(string) (string, *dbus.Error))("clock"); k != "" {
		t.Fatalf("getPluginKey = %q", k)
	}

	_ = m["ReloadPlugins"].(func() *dbus.Error)()
	if panel.Reloads() != 1 {
		t.Fatalf("reloads = %d", panel.Reloads())
	}
	before := panel.Size()
	_ = m["resizeDock"].(func(int32, bool) *dbus.Error)(10, false)
	if panel.Size() != before+10 {
		t.Fatalf("size = %d, want %d", panel.Size(), before+10)
	}
}

func TestDockPropsValidateWrites(t *testing.T) {
	t.Parallel()
	p, panel := newDock(t)
	props := dockProps(p)

	if got := props["Position"].Value; got != int32(dock.PositionBottom) {
		t.Fatalf("initial Position = %v", got)
	}
	cases := []struct {
		prop  string
		value any
		ok    bool
	}{
		{"Position", int32(dock.PositionLeft), true},
		{"Position", int32(7), false},
		{"Position", "left", false},
		{"HideMode", int32(dock.SmartHide), true},
		{"HideMode", int32(2), false},
	}
	for _, tc := range cases {
		err := props[tc.prop].Callback(&prop.Change{Name: tc.prop, Value: tc.value})
		if (err == nil) != tc.ok {
			t.Fatalf("set %s=%v err = %v", tc.prop, tc.value, err)
		}
	}
	if panel.Position() != dock.PositionLeft || panel.HideMode() != dock.SmartHide {
		t.Fatalf("panel = %s/%s", panel.Position(), panel.HideMode())
	}
	if props["HideState"].Writable || props["FrontendWindowRect"].Writable {
		t.Fatal("read-only property marked writable")
	}
}

type fakeNotifier struct {
	mu       sync.Mutex
	hints    map[string]string
	closed   []uint32
	actions  []string
	removed  []int64
	rows     []notification.Entity
	notifyEr error
}

func (f *fakeNotifier) Notify(_ context.Context, appName string, replacesID uint32, _, _, _ string, _ []string, hints map[string]string, _ int32) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notifyEr != nil {
		return 0, f.notifyEr
	}
	f.hints = hints
	if replacesID != 0 {
		return replacesID, nil
	}
	return 7, nil
}

func (f *fakeNotifier) Close(_ context.Context, id uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == 404 {
		return notifier.ErrNotFound
	}
	f.closed = append(f.closed, id)
	return nil
}

func (f *fakeNotifier) InvokeAction(_ context.Context, id uint32, key string) error {
	if key == "nope" {
		return notifier.ErrUnknownAction
	}
	f.mu.Lock()
	f.actions = append(f.actions, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) List(_ context.Context, lf storage.ListFilter) ([]notification.Entity, error) {
	out := []notification.Entity{}
	for _, r := range f.rows {
		if lf.AppName == "" || r.AppName() == lf.AppName {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeNotifier) Remove(_ context.Context, id int64) error {
	if id <= 0 {
		return storage.ErrNotFound
	}
	f.removed = append(f.removed, id)
	return nil
}

func TestNotificationMethods(t *testing.T) {
	t.Parallel()
	n := &fakeNotifier{}
	m := notificationMethods(n, defaultServerInfo)
	notify := m["Notify"].(func(string, uint32, string, string, string, []string, map[string]dbus.Variant, int32) (uint32, *dbus.Error))

	hints := map[string]dbus.Variant{
		"urgency":    dbus.MakeVariant(byte(2)),
		"resident":   dbus.MakeVariant(true),
		"category":   dbus.MakeVariant("im.received"),
		"image-data": dbus.MakeVariant([]byte{1, 2, 3}),
	}
	id, err := notify("chat", 0, "", "hi", "", []string{"default", "Open"}, hints, -1)
	if err != nil || id != 7 {
		t.Fatalf("Notify = %d,%v", id, err)
	}
	want := map[string]string{"urgency": "2", "resident": "true", "category": "im.received"}
	if !reflect.DeepEqual(n.hints, want) {
		t.Fatalf("hints = %v", n.hints)
	}

	n.notifyEr = notifier.ErrDisabled
	if _, err := notify("chat", 0, "", "hi", "", nil, nil, -1); err == nil {
		t.Fatal("backend error not surfaced")
	}

	closeFn := m["CloseNotification"].(func(uint32) *dbus.Error)
	if err := closeFn(3); err != nil {
		t.Fatal(err)
	}
	if err := closeFn(404); err != nil {
		t.Fatalf("closing unknown bubble = %v", err)
	}

	caps, _ := m["GetCapabilities"].(func() ([]string, *dbus.Error))()
	if len(caps) == 0 || caps[0] != "actions" {
		t.Fatalf("caps = %v", caps)
	}
	name, vendor, _, proto, _ := m["GetServerInformation"].(func() (string, string, string, string, *dbus.Error))()
	if name != "dockd" || vendor == "" || proto != "1.2" {
		t.Fatalf("server info = %s %s %s", name, vendor, proto)
	}
}

func TestRecordMethods(t *testing.T) {
	t.Parallel()
	a := notification.NewWithID(1, "mail")
	a.SetSummary("inbox")
	b := notification.NewWithID(2, "chat")
	n := &fakeNotifier{rows: []notification.Entity{a, b}}
	m := recordMethods(n)

	recs, err := m["GetRecords"].(func(string, int32) ([]string, *dbus.Error))("mail", 0)
	if err != nil || len(recs) != 1 {
		t.Fatalf("GetRecords = %v,%v", recs, err)
	}
	got, derr := notification.Decode(recs[0])
	if derr != nil || got.ID() != 1 || got.Summary() != "inbox" {
		t.Fatalf("decoded = %v,%v", got.ToMap(), derr)
	}

	invoke := m["InvokeAction"].(func(uint32, string) *dbus.Error)
	if err := invoke(1, "default"); err != nil {
		t.Fatal(err)
	}
	if err := invoke(1, "nope"); err == nil {
		t.Fatal("unknown action accepted")
	}
	remove := m["RemoveRecord"].(func(int64) *dbus.Error)
	if err := remove(2); err != nil || len(n.removed) != 1 {
		t.Fatalf("RemoveRecord = %v removed=%v", err, n.removed)
	}
	if err := remove(0); err == nil {
		t.Fatal("RemoveRecord(0) accepted")
	}
}

func TestTranslate(t *testing.T) {
	t.Parallel()
	frontend := dock.Rect{X: 1, Y: 2, Width: 300, Height: 40}
	cases := []struct {
		name    string
		event   eventbus.Event
		signal  string
		values  []any
		updates []propUpdate
	}{
		{
			name:   "closed",
			event:  eventbus.Event{Type: eventbus.NotificationClosed, Data: notifier.Event{BubbleID: 4, Reason: notifier.CloseExpired}},
			signal: NotificationsInterface + ".NotificationClosed",
			values: []any{uint32(4), uint32(1)},
		},
		{
			name:   "action",
			event:  eventbus.Event{Type: eventbus.NotificationAction, Data: notifier.Event{BubbleID: 4, Action: "open"}},
			signal: NotificationsInterface + ".ActionInvoked",
			values: []any{uint32(4), "open"},
		},
		{
			name:    "position",
			event:   eventbus.Event{Type: eventbus.DockPositionChanged, Data: dock.PanelEvent{Position: dock.PositionTop}},
			signal:  DockInterface + ".PositionChanged",
			values:  []any{int32(0)},
			updates: []propUpdate{{"Position", int32(0)}},
		},
		{
			name:    "geometry",
			event:   eventbus.Event{Type: eventbus.DockGeometryChanged, Data: dock.PanelEvent{Frontend: frontend}},
			signal:  DockInterface + ".FrontendWindowRectChanged",
			values:  []any{rect{1, 2, 300, 40}},
			updates: []propUpdate{{"FrontendWindowRect", rect{1, 2, 300, 40}}},
		},
		{
			name:    "hide mode",
			event:   eventbus.Event{Type: eventbus.DockHideModeChanged, Data: dock.PanelEvent{HideMode: dock.KeepHidden, HideState: dock.HideStateHide}},
			signal:  DockInterface + ".HideModeChanged",
			values:  []any{int32(1)},
			updates: []propUpdate{{"HideMode", int32(1)}, {"HideState", int32(2)}},
		},
		{
			name:    "hide state",
			event:   eventbus.Event{Type: eventbus.DockHideStateChanged, Data: dock.PanelEvent{HideState: dock.HideStateShow}},
			updates: []propUpdate{{"HideState", int32(1)}},
		},
		{name: "wrong payload", event: eventbus.Event{Type: eventbus.NotificationClosed, Data: "x"}},
		{name: "unrelated", event: eventbus.Event{Type: eventbus.ConfigReloaded}},
	}
	for _, tc := range cases {
		sigs, updates := translate(tc.event)
		if tc.signal == "" {
			if len(sigs) != 0 || len(updates) != len(tc.updates) || (len(updates) > 0 && !reflect.DeepEqual(updates, tc.updates)) {
				t.Fatalf("%s: got %v %v", tc.name, sigs, updates)
			}
			continue
		}
		if len(sigs) != 1 || sigs[0].name != tc.signal || !reflect.DeepEqual(sigs[0].values, tc.values) {
			t.Fatalf("%s: signals = %+v", tc.name, sigs)
		}
		if !reflect.DeepEqual(updates, tc.updates) {
			t.Fatalf("%s: updates = %+v", tc.name, updates)
		}
	}
}

func TestRunPumpsBusEvents(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	s := New(Config{}, nil, nil, nil, bus, logx.Nop())

	type emitted struct {
		name   string
		values []any
	}
	got := make(chan emitted, 4)
	var props sync.Map
	s.events, s.unsub = bus.Subscribe(8)
	s.emit = func(_ dbus.ObjectPath, name string, values ...any) error {
		got <- emitted{name, values}
		return nil
	}
	s.setProp = func(name string, value any) { props.Store(name, value) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	eventbus.Publish(bus, eventbus.DockHideModeChanged, dock.PanelEvent{HideMode: dock.KeepHidden})
	e := <-got
	if e.name != DockInterface+".HideModeChanged" || e.values[0] != int32(1) {
		t.Fatalf("emitted = %+v", e)
	}
	if v, _ := props.Load("HideMode"); v != int32(1) {
		t.Fatalf("HideMode prop = %v", v)
	}

	// CallShow changes only the state: a property update, no signal.
	eventbus.Publish(bus, eventbus.DockHideStateChanged, dock.PanelEvent{HideMode: dock.KeepHidden, HideState: dock.HideStateShow})
	eventbus.Publish(bus, eventbus.DockPositionChanged, dock.PanelEvent{Position: dock.PositionTop})
	if e := <-got; e.name != DockInterface+".PositionChanged" {
		t.Fatalf("emitted = %+v", e)
	}
	if v, _ := props.Load("HideState"); v != int32(dock.HideStateShow) {
		t.Fatalf("HideState prop = %v", v)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestStartWithoutConnection(t *testing.T) {
	t.Parallel()
	if err := New(Config{}, nil, nil, nil, nil, logx.Nop()).Start(); err != nil {
		t.Fatalf("disabled Start = %v", err)
	}
	err := New(Config{Enabled: true, Dock: true}, nil, nil, nil, nil, logx.Nop()).Start()
	if !errors.Is(err, ErrNoConn) {
		t.Fatalf("Start without conn = %v", err)
	}
}

func TestIntrospectMethods(t *testing.T) {
	t.Parallel()
	p, _ := newDock(t)
	methods := introspectMethods(dockMethods(p))
	byName := map[string][]string{}
	for _, m := range methods {
		var sig []string
		for _, a := range m.Args {
			sig = append(sig, a.Direction+":"+a.Type)
		}
		byName[m.Name] = sig
	}
	if got := byName["RequestDock"]; !reflect.DeepEqual(got, []string{"in:s", "in:i", "out:b"}) {
		t.Fatalf("RequestDock = %v", got)
	}
	if got := byName["plugins"]; !reflect.DeepEqual(got, []string{"out:a(sssssb)"}) {
		t.Fatalf("plugins = %v", got)
	}
	if got := byName["callShow"]; len(got) != 0 {
		t.Fatalf("callShow = %v", got)
	}
}
