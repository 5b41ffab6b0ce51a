package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"dockbridge/internal/notification"
	logx "dockbridge/pkg/logx"
)

func openDriver(t *testing.T, driver, path string) Store {
	t.Helper()
	st, err := Open(Config{Driver: driver, Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	if st == nil {
		t.Fatalf("Open(%s) returned nil store", driver)
	}
	return st
}

func record(app string, ctime int64) notification.Entity {
	e := notification.NewFull(app, 0, "icon", "summary "+app, "body", []string{"default", "Open"}, map[string]string{"urgency": "1"}, -1)
	e.SetCTime(ctime)
	return e
}

var drivers = []struct {
	name string
	file string
}{
	{"file", "notify.db"},
	{"sqlite", "notify.sqlite"},
}

func TestStoreCRUD(t *testing.T) {
	t.Parallel()
	for _, d := range drivers {
		d := d
		t.Run(d.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st := openDriver(t, d.name, filepath.Join(t.TempDir(), d.file))
			defer st.Close()

			id1, err := st.Put(ctx, record("mail", 1000))
			if err != nil || id1 <= 0 {
				t.Fatalf("Put = %d,%v", id1, err)
			}
			id2, err := st.Put(ctx, record("chat", 2000))
			if err != nil || id2 <= id1 {
				t.Fatalf("second Put = %d,%v", id2, err)
			}

			got, err := st.Get(ctx, id1)
			if err != nil {
				t.Fatal(err)
			}
			if got.ID() != id1 || got.AppName() != "mail" || got.CTime() != 1000 {
				t.Fatalf("Get = %+v", got.ToMap())
			}
			if v, _ := got.Hint("urgency"); v != "1" {
				t.Fatalf("hints = %v", got.Hints())
			}
			if a := got.Actions(); len(a) != 2 || a[1] != "Open" {
				t.Fatalf("actions = %v", a)
			}
			if got.ProcessedType() != notification.NotProcessed || !got.EnablePreview() {
				t.Fatalf("state = %s preview=%v", got.ProcessedType(), got.EnablePreview())
			}

			// Replacing in place keeps the id.
			got.SetSummary("updated")
			if id, err := st.Put(ctx, got); err != nil || id != id1 {
				t.Fatalf("update Put = %d,%v", id, err)
			}
			if again, _ := st.Get(ctx, id1); again.Summary() != "updated" {
				t.Fatalf("summary = %q", again.Summary())
			}

			if err := st.SetProcessed(ctx, id2, notification.Processed); err != nil {
				t.Fatal(err)
			}
			if e, _ := st.Get(ctx, id2); !e.IsProcessed() {
				t.Fatal("SetProcessed not persisted")
			}

			if err := st.Delete(ctx, id1); err != nil {
				t.Fatal(err)
			}
			if _, err := st.Get(ctx, id1); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get deleted err = %v", err)
			}
			if err := st.Delete(ctx, id1); !errors.Is(err, ErrNotFound) {
				t.Fatalf("double Delete err = %v", err)
			}
			if err := st.SetProcessed(ctx, 9999, notification.Processed); !errors.Is(err, ErrNotFound) {
				t.Fatalf("SetProcessed missing err = %v", err)
			}
		})
	}
}

func TestStoreListAndPrune(t *testing.T) {
	t.Parallel()
	for _, d := range drivers {
		d := d
		t.Run(d.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st := openDriver(t, d.name, filepath.Join(t.TempDir(), d.file))
			defer st.Close()

			var ids []int64
			for i, app := range []string{"mail", "chat", "mail", "mail"} {
				id, err := st.Put(ctx, record(app, int64(1000*(i+1))))
				if err != nil {
					t.Fatal(err)
				}
				ids = append(ids, id)
			}
			if err := st.SetProcessed(ctx, ids[3], notification.Removed); err != nil {
				t.Fatal(err)
			}

			all, err := st.List(ctx, ListFilter{})
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 3 || all[0].ID() != ids[2] {
				t.Fatalf("List = %d rows, first=%d", len(all), all[0].ID())
			}

			mail, _ := st.List(ctx, ListFilter{AppName: "mail", IncludeRemoved: true, Limit: 2})
			if len(mail) != 2 || mail[0].ID() != ids[3] || mail[1].ID() != ids[2] {
				t.Fatalf("mail list = %v", mail)
			}

			recent, _ := st.List(ctx, ListFilter{Since: time.UnixMilli(2000)})
			if len(recent) != 2 {
				t.Fatalf("since list = %d", len(recent))
			}

			n, err := st.Prune(ctx, time.UnixMilli(2500))
			if err != nil || n != 2 {
				t.Fatalf("Prune = %d,%v", n, err)
			}
			left, _ := st.List(ctx, ListFilter{IncludeRemoved: true})
			if len(left) != 2 {
				t.Fatalf("after prune = %d", len(left))
			}
		})
	}
}

func TestFileStoreReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	st := openDriver(t, "file", path)
	id, err := st.Put(ctx, record("mail", 1000))
	if err != nil {
		t.Fatal(err)
	}
	gone, _ := st.Put(ctx, record("chat", 1000))
	_ = st.Delete(ctx, gone)
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st = openDriver(t, "file", path)
	defer st.Close()
	e, err := st.Get(ctx, id)
	if err != nil || e.AppName() != "mail" {
		t.Fatalf("after reopen = %v,%v", e.ToMap(), err)
	}
	if _, err := st.Get(ctx, gone); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted row came back: %v", err)
	}
	next, _ := st.Put(ctx, record("new", 2000))
	if next <= gone {
		t.Fatalf("id reuse: next=%d gone=%d", next, gone)
	}
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	t.Parallel()
	for _, drv := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: drv}, logx.Logger{})
		if st != nil || err != nil {
			t.Fatalf("Open(%q) = %v,%v", drv, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("file driver without path accepted")
	}
}
