package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "dockbridge/pkg/logx"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in    string
		kind  SpecKind
		every time.Duration
		cron  string
		bad   bool
	}{
		{in: "*/5 * * * *", kind: SpecCron, cron: "*/5 * * * *"},
		{in: "@hourly", kind: SpecCron, cron: "@hourly"},
		{in: "cron:0 3 * * *", kind: SpecCron, cron: "0 3 * * *"},
		{in: "55m", kind: SpecInterval, every: 55 * time.Minute},
		{in: "02:30", kind: SpecInterval, every: 2*time.Hour + 30*time.Minute},
		{in: "every: 10s", kind: SpecInterval, every: 10 * time.Second},
		{in: "interval:00:05", kind: SpecInterval, every: 5 * time.Minute},
		{in: "", bad: true},
		{in: "cron:", bad: true},
		{in: "0s", bad: true},
		{in: "01:75", bad: true},
		{in: "soon", bad: true},
	}
	for _, tc := range cases {
		got, err := ParseSchedule(tc.in)
		if tc.bad {
			if err == nil {
				t.Fatalf("ParseSchedule(%q) accepted: %+v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseSchedule(%q): %v", tc.in, err)
		}
		if got.Kind != tc.kind || got.Every != tc.every || got.Cron != tc.cron {
			t.Fatalf("ParseSchedule(%q) = %+v", tc.in, got)
		}
	}
}

func TestAddScheduleRejectsBadInput(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop())
	job := func(context.Context) error { return nil }
	if err := s.AddSchedule("x", "61 * * * *", 0, job); err == nil {
		t.Fatal("bad cron accepted")
	}
	if err := s.AddSchedule("", "@hourly", 0, job); err == nil {
		t.Fatal("empty name accepted")
	}
	if err := s.AddSchedule("x", "@hourly", 0, nil); err == nil {
		t.Fatal("nil job accepted")
	}
}

func TestRunNowRecordsHistory(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, HistorySize: 2}, logx.Nop())
	boom := errors.New("boom")
	calls := 0
	_ = s.AddSchedule("ok", "@hourly", time.Second, func(ctx context.Context) error {
		calls++
		if _, ok := ctx.Deadline(); !ok {
			t.Error("job ran without deadline")
		}
		return nil
	})
	_ = s.AddSchedule("fail", "1h", 0, func(context.Context) error { return boom })
	_ = s.AddSchedule("panic", "1h", 0, func(context.Context) error { panic("bad job") })

	ctx := context.Background()
	if err := s.RunNow(ctx, "ok"); err != nil || calls != 1 {
		t.Fatalf("RunNow ok = %v calls=%d", err, calls)
	}
	if err := s.RunNow(ctx, "fail"); !errors.Is(err, boom) {
		t.Fatalf("RunNow fail = %v", err)
	}
	if err := s.RunNow(ctx, "panic"); err == nil {
		t.Fatal("panic not reported")
	}
	if err := s.RunNow(ctx, "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("RunNow missing = %v", err)
	}

	h := s.Snapshot().History
	if len(h) != 2 || h[0].Name != "fail" || h[0].Err != "boom" || h[1].Name != "panic" {
		t.Fatalf("history = %+v", h)
	}
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop())
	entered := make(chan struct{})
	release := make(chan struct{})
	_ = s.AddSchedule("slow", "@daily", 0, func(context.Context) error {
		close(entered)
		<-release
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.RunNow(context.Background(), "slow")
	}()
	<-entered
	if err := s.RunNow(context.Background(), "slow"); !errors.Is(err, ErrRunning) {
		t.Fatalf("overlap err = %v", err)
	}
	close(release)
	wg.Wait()

	h := s.Snapshot().History
	if len(h) != 2 || !h[0].Skipped || h[1].Skipped {
		t.Fatalf("history = %+v", h)
	}
}

func TestStartRegistersAndReplaces(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Timezone: "UTC"}, logx.Nop())
	job := func(context.Context) error { return nil }
	_ = s.AddSchedule("a", "@every 1h", 0, job)
	s.Start(context.Background())
	defer s.Stop(context.Background())

	_ = s.AddSchedule("b", "0 3 * * *", 0, job)
	_ = s.AddSchedule("a", "30m", 0, job)

	snap := s.Snapshot()
	if snap.Timezone != "UTC" || len(snap.Schedules) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	for _, it := range snap.Schedules {
		if it.Next.IsZero() {
			t.Fatalf("%s has no next run", it.Name)
		}
	}
	if snap.Schedules[1].Name != "a" || snap.Schedules[1].Spec != "@every 30m0s" {
		t.Fatalf("a not replaced: %+v", snap.Schedules)
	}
	if !s.Remove("b") || s.Remove("b") {
		t.Fatal("Remove")
	}
}

func TestDisabledDoesNotStart(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	_ = s.AddSchedule("a", "@hourly", 0, func(context.Context) error { return nil })
	s.Start(context.Background())
	if snap := s.Snapshot(); !snap.Schedules[0].Next.IsZero() {
		t.Fatalf("disabled scheduler triggered: %+v", snap.Schedules)
	}
	s.Stop(context.Background())
}

type fakePruner struct {
	before time.Time
	n      int
}

func (f *fakePruner) Prune(_ context.Context, before time.Time) (int, error) {
	f.before = before
	return f.n, nil
}

func TestPruneJobCutoff(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &fakePruner{n: 3}
	job := PruneJob(p, 24*time.Hour, func() time.Time { return now }, logx.Nop())
	if err := job(context.Background()); err != nil {
		t.Fatal(err)
	}
	if want := now.Add(-24 * time.Hour); !p.before.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", p.before, want)
	}
}
