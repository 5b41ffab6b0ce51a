package schedule

import (
	"context"
	"time"

	logx "dockbridge/pkg/logx"
)

// PruneJobName is the name the retention job is registered under.
const PruneJobName = "notifications.prune"

// Pruner deletes stored records older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int, error)
}

// PruneJob returns a job deleting records older than retention. now is
// injectable for tests; nil means time.Now.
func PruneJob(p Pruner, retention time.Duration, now func() time.Time, log logx.Logger) Job {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		cutoff := now().Add(-retention)
		n, err := p.Prune(ctx, cutoff)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("notifications pruned", logx.Int("rows", n), logx.String("before", cutoff.Format(time.RFC3339)))
		}
		return nil
	}
}
