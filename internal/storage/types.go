package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"dockbridge/internal/notification"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("storage: notification not found")
)

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the notification persistence API.
type Store interface {
	// Put inserts or replaces e. Records without a valid id get a fresh one;
	// the stored id is returned.
	Put(ctx context.Context, e notification.Entity) (int64, error)
	Get(ctx context.Context, id int64) (notification.Entity, error)
	List(ctx context.Context, f ListFilter) ([]notification.Entity, error)
	SetProcessed(ctx context.Context, id int64, t notification.ProcessedType) error
	Delete(ctx context.Context, id int64) error
	// Prune deletes records created before the cutoff and returns how many
	// were removed.
	Prune(ctx context.Context, before time.Time) (int, error)
	Close() error
}

// ListFilter narrows List. Zero values match everything except removed
// records.
type ListFilter struct {
	AppName        string
	Processed      notification.ProcessedType // ProcessedNone matches any
	Since          time.Time
	IncludeRemoved bool
	Limit          int // <=0 means no limit
}

func (f ListFilter) match(e notification.Entity) bool {
	if f.AppName != "" && e.AppName() != f.AppName {
		return false
	}
	if f.Processed != notification.ProcessedNone && e.ProcessedType() != f.Processed {
		return false
	}
	if !f.IncludeRemoved && e.ProcessedType() == notification.Removed {
		return false
	}
	if !f.Since.IsZero() && e.CTime() < f.Since.UnixMilli() {
		return false
	}
	return true
}

// FieldProcessedType is the row key carrying the processed state, which the
// flat transport map leaves out.
const FieldProcessedType = "processedType"

func toRow(e notification.Entity) map[string]string {
	row := e.ToMap()
	row[FieldProcessedType] = strconv.Itoa(int(e.ProcessedType()))
	return row
}

func fromRow(row map[string]string) notification.Entity {
	e := notification.FromMap(row)
	if v, err := strconv.Atoi(row[FieldProcessedType]); err == nil {
		if t := notification.ProcessedType(v); t.Valid() {
			e.SetProcessedType(t)
		}
	}
	return e
}
