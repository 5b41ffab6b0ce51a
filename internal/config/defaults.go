package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Defaults used when a field is omitted.
const (
	DefaultPollInterval = time.Second
	DefaultMaxWait      = 2 * time.Minute
	DefaultRetention    = 30 * 24 * time.Hour
	DefaultPruneSpec    = "@every 1h"
)

// DefaultRequired lists the sibling applets the dock waits for.
var DefaultRequired = []string{
	"org.deepin.ds.dock.tray",
	"org.deepin.ds.dock.clipboarditem",
	"org.deepin.ds.dock.searchitem",
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "INFO", Console: true, Notify: LoggingNotify{MinLevel: "ERROR", RatePerSec: 1}},
		Dock: DockConfig{
			Required:      append([]string(nil), DefaultRequired...),
			PollInterval:  DefaultPollInterval.String(),
			MaxWait:       DefaultMaxWait.String(),
			DispatchQueue: 64,
		},
		DBus:      DBusConfig{Enabled: true, Dock: true, Notifications: true},
		Scheduler: SchedulerConfig{Enabled: true},
		Debug:     DebugConfig{Addr: "127.0.0.1:6061"},
		Notifier: &NotifierConfig{
			Enabled:        true,
			Workers:        1,
			QueueSize:      256,
			RatePerSec:     50,
			RetryMax:       3,
			RetryBase:      "200ms",
			RetryMaxDelay:  "5s",
			DefaultTimeout: "5s",
			HistorySize:    100,
		},
		Storage: &StorageConfig{Driver: "file", Path: "./dockd_store", BusyTimeout: "1s", Retention: DefaultRetention.String(), PruneSpec: DefaultPruneSpec},
	}
}

// Validate checks what the decoder cannot: duration strings, known drivers
// and sane sizes. It reports every problem at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	check := func(path, raw string) {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	check("dock.poll_interval", cfg.Dock.PollInterval)
	check("dock.max_wait", cfg.Dock.MaxWait)
	for i, id := range cfg.Dock.Required {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, fmt.Errorf("dock.required[%d]: empty plugin id", i))
		}
	}
	if cfg.Dock.DispatchQueue < 0 {
		errs = append(errs, errors.New("dock.dispatch_queue must be >= 0"))
	}

	if d := cfg.Debug; d.Enabled && strings.TrimSpace(d.Addr) != "" {
		if _, _, err := net.SplitHostPort(d.Addr); err != nil {
			errs = append(errs, fmt.Errorf("debug.addr: %w", err))
		}
	}

	if n := cfg.Notifier; n != nil {
		check("notifier.retry_base", n.RetryBase)
		check("notifier.retry_max_delay", n.RetryMaxDelay)
		check("notifier.default_timeout", n.DefaultTimeout)
		if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 {
			errs = append(errs, errors.New("notifier: counts must be >= 0"))
		}
	}

	if s := cfg.Storage; s != nil {
		check("storage.busy_timeout", s.BusyTimeout)
		check("storage.retention", s.Retention)
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(s.Path) == "" {
				errs = append(errs, fmt.Errorf("storage.path is required for driver %q", s.Driver))
			}
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
	}
	return errors.Join(errs...)
}
