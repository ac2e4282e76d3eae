package scheduler

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	if opts.StorePath == "" {
		opts.StorePath = filepath.Join(t.TempDir(), "jobs.json")
	}
	if opts.BotName == "" {
		opts.BotName = "testbot"
	}
	opts.Log = zerolog.Nop()
	s := New(opts)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestCreateOneShotDeletesAfterSuccessfulRun(t *testing.T) {
	var calls atomic.Int32
	s := newTestService(t, Options{
		Executor: func(ctx context.Context, rc RunContext) (bool, error) {
			calls.Add(1)
			return true, nil
		},
	})

	job, err := s.Create(CreateInput{
		Tenant: 1,
		Prompt: "say hi",
		Schedule: Schedule{
			Kind: ScheduleAt,
			AtMs: time.Now().Add(20 * time.Millisecond).UnixMilli(),
		},
		Policy: &Policy{RetryBackoffMs: 1000, DeleteAfterRun: true},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		_, ok := s.Get(job.ID)
		return !ok
	})
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one executor call, got %d", calls.Load())
	}
}

func TestCreateEveryWithAnchorInPast(t *testing.T) {
	s := newTestService(t, Options{
		Executor: func(ctx context.Context, rc RunContext) (bool, error) { return true, nil },
	})

	now := time.Now()
	job, err := s.Create(CreateInput{
		Tenant: 1,
		Prompt: "tick",
		Schedule: Schedule{
			Kind:     ScheduleEvery,
			EveryMs:  60000,
			AnchorMs: now.Add(-90 * time.Second).UnixMilli(),
		},
		Policy: &Policy{RetryBackoffMs: 1000},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	want := job.Schedule.AnchorMs + 2*60000
	if job.State.NextRunAtMs != want {
		t.Fatalf("nextRunAtMs = %d, want %d", job.State.NextRunAtMs, want)
	}
}

func TestQuotaEnforcement(t *testing.T) {
	s := newTestService(t, Options{MaxJobsPerChat: 2})

	mk := func() error {
		_, err := s.Create(CreateInput{
			Tenant: 7,
			Prompt: "job",
			Schedule: Schedule{
				Kind: ScheduleAt,
				AtMs: time.Now().Add(time.Hour).UnixMilli(),
			},
			Policy: &Policy{RetryBackoffMs: 1000},
		})
		return err
	}

	if err := mk(); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := mk(); err != nil {
		t.Fatalf("second create: %v", err)
	}
	if err := mk(); err == nil {
		t.Fatal("third create should have failed quota")
	}

	tenant := int64(7)
	jobs := s.List(&tenant)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestRunNowDispatchesImmediately(t *testing.T) {
	var calls atomic.Int32
	s := newTestService(t, Options{
		Executor: func(ctx context.Context, rc RunContext) (bool, error) {
			calls.Add(1)
			return true, nil
		},
	})

	job, err := s.Create(CreateInput{
		Tenant: 1,
		Prompt: "once a year",
		Schedule: Schedule{
			Kind:     ScheduleCron,
			Expr:     "0 0 1 1 *",
			Timezone: "UTC",
		},
		Policy: &Policy{RetryBackoffMs: 1000},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !s.RunNow(job.ID) {
		t.Fatal("expected RunNow to enqueue")
	}
	waitFor(t, time.Second, func() bool { return calls.Load() == 1 })
}

func TestSetEnabledDisableClearsNextRun(t *testing.T) {
	s := newTestService(t, Options{})

	job, err := s.Create(CreateInput{
		Tenant: 1,
		Prompt: "job",
		Schedule: Schedule{
			Kind: ScheduleAt,
			AtMs: time.Now().Add(time.Hour).UnixMilli(),
		},
		Policy: &Policy{RetryBackoffMs: 1000},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	disabled, ok := s.SetEnabled(job.ID, false)
	if !ok || disabled.Enabled || disabled.State.NextRunAtMs != 0 {
		t.Fatalf("expected disabled job with no nextRunAtMs, got %+v", disabled)
	}

	enabled, ok := s.SetEnabled(job.ID, true)
	if !ok || !enabled.Enabled || enabled.State.NextRunAtMs == 0 {
		t.Fatalf("expected re-enabled job with nextRunAtMs repopulated, got %+v", enabled)
	}
}

func TestRemoveUnknownJobReturnsFalse(t *testing.T) {
	s := newTestService(t, Options{})
	if s.Remove("does-not-exist") {
		t.Fatal("expected Remove to return false for unknown id")
	}
}
