package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

const sampleYAML = `
logging:
  level: DEBUG
  console: false
dock:
  required: [org.deepin.ds.dock.tray]
  poll_interval: 500ms
  max_wait: 10s
storage:
  driver: sqlite
  path: /tmp/dockd.sqlite
`

func TestParseYAMLKeepsDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "dockd.yaml")
	writeFile(t, path, sampleYAML)

	cfg, err := NewConfigManager(path).Parse()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "DEBUG" || cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if !reflect.DeepEqual(cfg.Dock.Required, []string{"org.deepin.ds.dock.tray"}) || cfg.Dock.PollInterval != "500ms" {
		t.Fatalf("dock = %+v", cfg.Dock)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.PruneSpec != DefaultPruneSpec {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Notifier == nil || cfg.Notifier.QueueSize != 256 || !cfg.DBus.Enabled {
		t.Fatalf("omitted sections lost defaults: %+v %+v", cfg.Notifier, cfg.DBus)
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cases := []struct {
		name, file, content, want string
	}{
		{"unknown json key", "a.json", `{"dock": {"poll": "1s"}}`, "unknown field"},
		{"unknown yaml key", "b.yaml", "telegram:\n  token: x\n", "unknown field"},
		{"trailing data", "c.json", `{}{}`, "trailing"},
		{"bad yaml", "d.yml", "dock: [", "yaml"},
	}
	for _, tc := range cases {
		path := filepath.Join(dir, tc.file)
		writeFile(t, path, tc.content)
		_, err := NewConfigManager(path).Parse()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: err = %v, want %q", tc.name, err, tc.want)
		}
	}
}

func TestNullStorageDisables(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "dockd.json")
	writeFile(t, path, `{"storage": null}`)
	cfg, err := NewConfigManager(path).Parse()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage != nil {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad poll", func(c *Config) { c.Dock.PollInterval = "soon" }, "dock.poll_interval"},
		{"negative wait", func(c *Config) { c.Dock.MaxWait = "-1s" }, "dock.max_wait"},
		{"empty id", func(c *Config) { c.Dock.Required = []string{"a", " "} }, "dock.required[1]"},
		{"driver", func(c *Config) { c.Storage.Driver = "redis" }, "unknown driver"},
		{"path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"retention", func(c *Config) { c.Storage.Retention = "forever" }, "storage.retention"},
		{"notifier", func(c *Config) { c.Notifier.Workers = -1 }, "notifier"},
		{"debug addr", func(c *Config) { c.Debug = DebugConfig{Enabled: true, Addr: "6061"} }, "debug.addr"},
		{"none driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "none"} }, ""},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		err := Validate(cfg)
		if tc.want == "" {
			if err != nil {
				t.Fatalf("%s: %v", tc.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: err = %v, want %q", tc.name, err, tc.want)
		}
	}
	if err := Validate(nil); err == nil {
		t.Fatal("nil config accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := m.Load(false); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load(false) = %v", err)
	}
	cfg, err := m.Load(true)
	if err != nil || cfg == nil || m.Get() != cfg {
		t.Fatalf("Load(true) = %v,%v", cfg, err)
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "dockd.json")
	writeFile(t, path, `{"logging": {"level": "INFO"}}`)
	m := NewConfigManager(path)
	if _, err := m.Load(false); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)
	ctx := context.Background()

	if m.reload(ctx) {
		t.Fatal("unchanged content published")
	}

	writeFile(t, path, `{"logging": {"level": "DEBUG"}}`)
	if !m.reload(ctx) {
		t.Fatal("change not published")
	}
	if got := <-ch; got.Logging.Level != "DEBUG" {
		t.Fatalf("published level = %q", got.Logging.Level)
	}

	m.SetValidator(func(_ context.Context, c *Config) error {
		if c.Logging.Level == "TRACE" {
			return errors.New("no trace in production")
		}
		return nil
	})
	writeFile(t, path, `{"logging": {"level": "TRACE"}}`)
	if m.reload(ctx) || m.Get().Logging.Level != "DEBUG" {
		t.Fatalf("rejected config committed: %q", m.Get().Logging.Level)
	}

	writeFile(t, path, `{"dock": {"poll_interval": "x"}}`)
	if m.reload(ctx) {
		t.Fatal("invalid config published")
	}
}

func TestWatchPicksUpWrites(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "dockd.yaml")
	writeFile(t, path, "logging: {level: INFO}\n")
	m := NewConfigManager(path)
	if _, err := m.Load(false); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Keep rewriting until the watcher is up and has seen a change. Writes are
	// spaced past the debounce window, each one restarts it.
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(3 * reloadDebounce)
	defer tick.Stop()
	for got := false; !got; {
		select {
		case c := <-ch:
			if c.Logging.Level != "WARN" {
				t.Fatalf("level = %q", c.Logging.Level)
			}
			got = true
		case <-tick.C:
			writeFile(t, path, "logging: {level: WARN}\n")
		case <-deadline:
			t.Fatal("no reload published")
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	a := Default()
	b := Default()
	b.Logging.Level = "DEBUG"
	b.Dock.Required = append(b.Dock.Required, "extra")
	b.Storage.Retention = "24h"
	b.Debug.Enabled = true

	changed, attrs := SummarizeConfigChange(a, b)
	if !reflect.DeepEqual(changed, []string{"debug", "dock", "logging", "storage"}) {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatal("no attrs")
	}
	if got := RequiresRestart(changed); !reflect.DeepEqual(got, []string{"dock", "storage"}) {
		t.Fatalf("restart = %v", got)
	}
	if changed, _ := SummarizeConfigChange(a, Default()); len(changed) != 0 {
		t.Fatalf("identical configs differ: %v", changed)
	}
}
