package app

import (
	"strings"
	"time"

	"dockbridge/internal/config"
	"dockbridge/internal/dbusapi"
	"dockbridge/internal/notifier"
	"dockbridge/internal/observability/debug"
	"dockbridge/internal/schedule"
	"dockbridge/internal/storage"
	logx "dockbridge/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Notify: logx.NotifyConfig{
			Enabled:    l.Notify.Enabled,
			MinLevel:   l.Notify.MinLevel,
			RatePerSec: l.Notify.RatePerSec,
		},
	}
}

// mapStorageConfig reports false when persistence is disabled.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path), BusyTimeout: busy}, true, nil
}

// retentionConfig returns the prune cutoff age and cron spec. A zero
// retention disables pruning.
func retentionConfig(cfg *config.Config) (time.Duration, string, error) {
	if cfg == nil || cfg.Storage == nil {
		return 0, "", nil
	}
	keep, err := zeroableDuration("storage.retention", cfg.Storage.Retention, config.DefaultRetention)
	if err != nil {
		return 0, "", err
	}
	spec := strings.TrimSpace(cfg.Storage.PruneSpec)
	if spec == "" {
		spec = config.DefaultPruneSpec
	}
	return keep, spec, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	nc := config.Default().Notifier
	if cfg != nil && cfg.Notifier != nil {
		nc = cfg.Notifier
	}
	base, err := config.ParseDurationOrDefault("notifier.retry_base", nc.RetryBase, 200*time.Millisecond)
	if err != nil {
		return notifier.Config{}, err
	}
	maxDelay, err := config.ParseDurationOrDefault("notifier.retry_max_delay", nc.RetryMaxDelay, 5*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	timeout, err := config.ParseDurationOrDefault("notifier.default_timeout", nc.DefaultTimeout, 5*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:        nc.Enabled,
		Workers:        nc.Workers,
		QueueSize:      nc.QueueSize,
		RatePerSec:     nc.RatePerSec,
		RetryMax:       nc.RetryMax,
		RetryBase:      base,
		RetryMaxDelay:  maxDelay,
		DefaultTimeout: timeout,
		HistorySize:    nc.HistorySize,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) schedule.Config {
	return schedule.Config{
		Enabled:     cfg.Scheduler.Enabled,
		Timezone:    cfg.Scheduler.Timezone,
		HistorySize: cfg.Scheduler.HistorySize,
	}
}

func mapDBusConfig(cfg *config.Config) dbusapi.Config {
	return dbusapi.Config{
		Enabled:       cfg.DBus.Enabled,
		Dock:          cfg.DBus.Dock,
		Notifications: cfg.DBus.Notifications,
	}
}

func mapDebugConfig(cfg *config.Config) debug.Config {
	return debug.Config{Enabled: cfg.Debug.Enabled, Addr: cfg.Debug.Addr, Token: cfg.Debug.Token}
}

// dockTimings returns the resolver poll interval and max wait.
func dockTimings(cfg *config.Config) (time.Duration, time.Duration, error) {
	interval, err := config.ParseDurationOrDefault("dock.poll_interval", cfg.Dock.PollInterval, config.DefaultPollInterval)
	if err != nil {
		return 0, 0, err
	}
	wait, err := zeroableDuration("dock.max_wait", cfg.Dock.MaxWait, config.DefaultMaxWait)
	if err != nil {
		return 0, 0, err
	}
	return interval, wait, nil
}

// zeroableDuration is ParseDurationOrDefault for fields where an explicit
// "0s" means "off" and only an empty value takes the default.
func zeroableDuration(path, raw string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return config.ParseDurationField(path, raw)
}
