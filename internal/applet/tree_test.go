package applet

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dockbridge/internal/eventbus"
	logx "dockbridge/pkg/logx"
)

func ids(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.PluginID())
	}
	return out
}

func TestFindAllBreadthFirst(t *testing.T) {
	t.Parallel()

	// root -> [A(leaf X), B(container [C(leaf X)])]
	root := NewContainment("root")
	a := &tagged{Base{ID: "X"}, "A"}
	b := NewContainment("B")
	c := &tagged{Base{ID: "X"}, "C"}
	root.add(a)
	root.add(b)
	b.add(c)

	got := FindAll(root, "X")
	if len(got) != 2 {
		t.Fatalf("FindAll = %v, want 2 matches", ids(got))
	}
	if got[0] != Node(a) || got[1] != Node(c) {
		t.Fatalf("order = %v, want [A C]", ids(got))
	}

	first, ok := FindFirst(root, "X")
	if !ok || first != Node(a) {
		t.Fatalf("FindFirst = %v,%v", first, ok)
	}
}

type tagged struct {
	Base
	tag string
}

func TestFindOrderShallowBeforeDeep(t *testing.T) {
	t.Parallel()

	// The deep match is registered first but lives one level lower.
	root := NewContainment("root")
	b := NewContainment("B")
	deep := &tagged{Base{ID: "X"}, "deep"}
	shallow := &tagged{Base{ID: "X"}, "shallow"}
	b.add(deep)
	root.add(b)
	root.add(shallow)

	got := FindAll(root, "X")
	if len(got) != 2 {
		t.Fatalf("got %d matches", len(got))
	}
	if got[0].(*tagged).tag != "shallow" || got[1].(*tagged).tag != "deep" {
		t.Fatalf("order = [%s %s], want [shallow deep]", got[0].(*tagged).tag, got[1].(*tagged).tag)
	}
}

func TestFindMissAndNilRoot(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		root Node
	}{
		{"nil", nil},
		{"typed nil", (*Containment)(nil)},
		{"leaf root", Leaf("X")},
		{"empty container", NewContainment("root")},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := FindAll(tc.root, "X"); len(got) != 0 {
				t.Fatalf("FindAll = %v, want empty", ids(got))
			}
			if _, ok := FindFirst(tc.root, "X"); ok {
				t.Fatal("FindFirst reported a match")
			}
		})
	}
}

func TestRootIsNotMatched(t *testing.T) {
	t.Parallel()
	root := NewContainment("X")
	if _, ok := FindFirst(root, "X"); ok {
		t.Fatal("root must not match itself")
	}
}

func TestTreeAddRejects(t *testing.T) {
	t.Parallel()

	tr := NewTree("")
	panel := NewContainment("org.deepin.ds.dock")
	if err := tr.Add(nil, panel); err != nil {
		t.Fatalf("Add panel: %v", err)
	}

	if err := tr.Add(panel, nil); !errors.Is(err, ErrNilNode) {
		t.Fatalf("nil child err = %v", err)
	}
	if err := tr.Add(panel, panel); !errors.Is(err, ErrCycle) {
		t.Fatalf("self err = %v", err)
	}
	if err := tr.Add(panel, tr.Root()); !errors.Is(err, ErrCycle) {
		t.Fatalf("root err = %v", err)
	}
	if err := tr.Add(nil, panel); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate err = %v", err)
	}
	if err := tr.Add(NewContainment("detached"), Leaf("x")); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("detached err = %v", err)
	}
	if _, err := tr.AddTo("missing", Leaf("x")); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("AddTo missing err = %v", err)
	}
	if err := tr.Add(panel, Leaf("tray")); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.AddTo("tray", Leaf("x")); !errors.Is(err, ErrNotContainer) {
		t.Fatalf("AddTo leaf err = %v", err)
	}
	if tr.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tr.Len())
	}
}

func TestTreeCountsPrebuiltSubtree(t *testing.T) {
	t.Parallel()
	tr := NewTree("")
	panel := NewContainment("panel")
	panel.add(Leaf("a"))
	panel.add(Leaf("b"))
	if err := tr.Add(nil, panel); err != nil {
		t.Fatal(err)
	}
	if tr.Len() != 3 {
		t.Fatalf("Len = %d, want 3", tr.Len())
	}
	// Grandchildren added later are counted through the inherited hook.
	if _, err := tr.AddTo("panel", Leaf("c")); err != nil {
		t.Fatal(err)
	}
	if tr.Len() != 4 {
		t.Fatalf("Len = %d, want 4", tr.Len())
	}
}

func TestTreeWatchSignalsAndCoalesces(t *testing.T) {
	t.Parallel()
	tr := NewTree("")
	ch, stop := tr.Watch()
	defer stop()

	for i := 0; i < 5; i++ {
		if err := tr.Add(nil, Leaf("x")); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no signal after Add")
	}
	select {
	case <-ch:
		t.Fatal("signals must coalesce into one pending value")
	default:
	}

	stop()
	stop()
	_ = tr.Add(nil, Leaf("y"))
	select {
	case <-ch:
		t.Fatal("signal after stop")
	default:
	}
}

func TestConcurrentGrowthAndSearch(t *testing.T) {
	t.Parallel()
	tr := NewTree("")
	panel := NewContainment("panel")
	if err := tr.Add(nil, panel); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = tr.Add(panel, Leaf("item"))
		}
		_ = tr.Add(panel, Leaf("target"))
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = tr.FindAll("item")
		}
	}()
	wg.Wait()

	if _, ok := tr.FindFirst("target"); !ok {
		t.Fatal("target missing after growth")
	}
	if got := len(tr.FindAll("item")); got != 200 {
		t.Fatalf("items = %d, want 200", got)
	}
}

func TestConcurrentAddOfSameContainer(t *testing.T) {
	t.Parallel()
	for round := 0; round < 50; round++ {
		tr := NewTree("")
		a := NewContainment("a")
		b := NewContainment("b")
		if err := tr.Add(nil, a); err != nil {
			t.Fatal(err)
		}
		if err := tr.Add(nil, b); err != nil {
			t.Fatal(err)
		}
		sub := NewContainment("sub")

		var wg sync.WaitGroup
		var ok atomic.Int32
		start := make(chan struct{})
		for _, parent := range []*Containment{a, b, a, b} {
			wg.Add(1)
			go func(parent *Containment) {
				defer wg.Done()
				<-start
				if err := tr.Add(parent, sub); err == nil {
					ok.Add(1)
				} else if !errors.Is(err, ErrDuplicate) {
					t.Errorf("Add err = %v", err)
				}
			}(parent)
		}
		close(start)
		wg.Wait()

		if got := ok.Load(); got != 1 {
			t.Fatalf("round %d: %d Adds of one container succeeded", round, got)
		}
		if got := len(tr.FindAll("sub")); got != 1 {
			t.Fatalf("round %d: sub found %d times", round, got)
		}
	}
}

func TestLoaderLoadPublishes(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	l := NewLoader(NewTree(""), bus, logx.Nop())
	l.Register("panel", func() (Node, error) { return NewContainment("panel"), nil })
	l.Register("tray", func() (Node, error) { return Leaf("tray"), nil })
	l.Register("broken", func() (Node, error) { panic("bad applet") })

	if _, err := l.Load("", "panel"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Load("panel", "tray"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Load("", "broken"); err == nil {
		t.Fatal("panicking factory must fail")
	}
	if _, err := l.Load("", "ghost"); !errors.Is(err, ErrUnknownPlugin) {
		t.Fatalf("unknown err = %v", err)
	}

	var got []Event
	for i := 0; i < 2; i++ {
		select {
		case e := <-events:
			if e.Type != eventbus.AppletRegistered {
				t.Fatalf("event type = %q", e.Type)
			}
			got = append(got, e.Data.(Event))
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
	if got[1].PluginID != "tray" || got[1].Parent != "panel" {
		t.Fatalf("event = %+v", got[1])
	}

	snap := l.Snapshot()
	if len(snap.Loaded) != 2 || len(snap.Factories) != 3 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if !snap.Loaded[0].Container || snap.Loaded[1].Container {
		t.Fatalf("container flags = %+v", snap.Loaded)
	}
}
