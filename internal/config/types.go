package config

// Config is the dockd configuration file. Durations are Go duration strings
// ("500ms", "10s", "2m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Dock      DockConfig      `json:"dock"`
	DBus      DBusConfig      `json:"dbus"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Debug     DebugConfig     `json:"debug"`

	// Omitted sections keep their defaults. An explicit null notifier runs
	// with built-in defaults; a null storage disables persistence.
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LoggingFile   `json:"file"`
	Notify  LoggingNotify `json:"notify"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingNotify turns log lines at or above MinLevel into desktop
// notifications.
type LoggingNotify struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// DockConfig controls sibling resolution and the bridge.
//
// Example:
//
//	"dock": { "required": ["org.deepin.ds.dock.tray"], "poll_interval": "1s", "max_wait": "2m" }
type DockConfig struct {
	Required     []string `json:"required"`
	PollInterval string   `json:"poll_interval"`
	// MaxWait bounds resolution; "0s" waits forever.
	MaxWait       string `json:"max_wait"`
	DispatchQueue int    `json:"dispatch_queue,omitempty"`
}

type DBusConfig struct {
	Enabled       bool `json:"enabled"`
	Dock          bool `json:"dock"`
	Notifications bool `json:"notifications"`
}

// SchedulerConfig controls maintenance jobs.
type SchedulerConfig struct {
	Enabled     bool   `json:"enabled"`
	Timezone    string `json:"timezone,omitempty"`
	HistorySize int    `json:"history_size,omitempty"`
}

// DebugConfig controls the loopback HTTP endpoint serving /healthz, /readyz,
// /status and pprof. A non-loopback addr requires a token.
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
}

type NotifierConfig struct {
	Enabled        bool   `json:"enabled"`
	Workers        int    `json:"workers"`
	QueueSize      int    `json:"queue_size"`
	RatePerSec     int    `json:"rate_per_sec"`
	RetryMax       int    `json:"retry_max"`
	RetryBase      string `json:"retry_base"`
	RetryMaxDelay  string `json:"retry_max_delay"`
	DefaultTimeout string `json:"default_timeout"`
	HistorySize    int    `json:"history_size"`
}

// StorageConfig controls notification persistence.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./dockd_store", "retention": "720h" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
	// Retention is the age after which records are pruned; "0s" keeps them.
	Retention string `json:"retention,omitempty"`
	PruneSpec string `json:"prune_spec,omitempty"`
}
