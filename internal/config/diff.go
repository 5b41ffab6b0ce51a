package config

import (
	"reflect"
	"sort"
	"strings"

	logx "dockbridge/pkg/logx"
)

// SummarizeConfigChange returns the sorted list of changed sections and
// structured attrs describing the new values, for logging.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.notify_enabled", newCfg.Logging.Notify.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Dock, newCfg.Dock) {
		changed = append(changed, "dock")
		attrs = append(attrs,
			logx.Int("dock.required_count", len(newCfg.Dock.Required)),
			logx.String("dock.poll_interval", strings.TrimSpace(newCfg.Dock.PollInterval)),
			logx.String("dock.max_wait", strings.TrimSpace(newCfg.Dock.MaxWait)),
		)
	}

	if oldCfg.DBus != newCfg.DBus {
		changed = append(changed, "dbus")
		attrs = append(attrs,
			logx.Bool("dbus.enabled", newCfg.DBus.Enabled),
			logx.Bool("dbus.dock", newCfg.DBus.Dock),
			logx.Bool("dbus.notifications", newCfg.DBus.Notifications),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
		)
	}

	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", strings.TrimSpace(newCfg.Debug.Addr)),
			logx.Bool("debug.token_set", newCfg.Debug.Token != ""),
		)
	}

	oldN, newN := derefNotifier(oldCfg.Notifier), derefNotifier(newCfg.Notifier)
	if oldN != newN {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newN.Enabled),
			logx.Int("notifier.workers", newN.Workers),
			logx.Int("notifier.queue_size", newN.QueueSize),
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.String("notifier.default_timeout", newN.DefaultTimeout),
		)
	}

	oldS, newS := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if oldS != newS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newS.Path) != ""),
			logx.String("storage.retention", strings.TrimSpace(newS.Retention)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RequiresRestart reports the changed sections that only take effect on the
// next start: the store and the bus objects are opened once.
func RequiresRestart(changed []string) []string {
	var out []string
	for _, c := range changed {
		switch c {
		case "storage", "dbus", "dock":
			out = append(out, c)
		}
	}
	return out
}

func derefNotifier(n *NotifierConfig) NotifierConfig {
	if n == nil {
		return NotifierConfig{}
	}
	return *n
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}
