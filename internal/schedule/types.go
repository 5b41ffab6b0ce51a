package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	logx "dockbridge/pkg/logx"

	"github.com/robfig/cron/v3"
)

// Config controls the scheduler.
type Config struct {
	Enabled     bool
	Timezone    string // IANA TZ, e.g. "Europe/Berlin"; empty means Local
	HistorySize int
}

// Job is the body of a scheduled job.
type Job func(ctx context.Context) error

type scheduleDef struct {
	name    string
	spec    string // cron spec or @every
	timeout time.Duration
	job     Job
	entryID cron.EntryID
	running *atomic.Bool
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	// root is cancelled by Stop so running jobs see it.
	root   context.Context
	cancel context.CancelFunc

	hmu     sync.Mutex
	history []HistoryItem
}

type ScheduleInfo struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Next    time.Time
	Prev    time.Time
	Running bool
}

// HistoryItem records one finished run.
type HistoryItem struct {
	Name    string
	Started time.Time
	Took    time.Duration
	Err     string
	Skipped bool
}

type Snapshot struct {
	Enabled   bool
	Timezone  string
	Schedules []ScheduleInfo
	History   []HistoryItem
}
