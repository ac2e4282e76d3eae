package scheduler

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"schedulerd/internal/jobstore"
)

func TestStartRecoversDanglingRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")

	now := time.Now()
	seeded := envelope{
		Version:     StoreVersion,
		UpdatedAtMs: nowMs(now),
		Jobs: []Job{
			{
				ID:      "abc1234567",
				Tenant:  1,
				Name:    "seeded",
				Prompt:  "do the thing",
				Enabled: true,
				Schedule: Schedule{
					Kind:     ScheduleEvery,
					EveryMs:  10000,
					AnchorMs: now.Add(-5 * time.Second).UnixMilli(),
				},
				Policy: Policy{RetryBackoffMs: 1000},
				State: State{
					RunningRunID: "stale-run",
					RunningAtMs:  nowMs(now.Add(-time.Minute)),
				},
			},
		},
	}
	if err := jobstore.New(path).Save(seeded); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	var calls atomic.Int32
	s := New(Options{
		BotName:   "testbot",
		StorePath: path,
		Log:       zerolog.Nop(),
		Executor: func(ctx context.Context, rc RunContext) (bool, error) {
			calls.Add(1)
			return true, nil
		},
	})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	job, ok := s.Get("abc1234567")
	if !ok {
		t.Fatal("expected seeded job to survive load")
	}
	if job.State.RunningRunID != "" {
		t.Fatalf("expected runningRunId cleared, got %q", job.State.RunningRunID)
	}
	if job.State.LastStatus != "error" {
		t.Fatalf("expected lastStatus=error from recovery, got %q", job.State.LastStatus)
	}

	waitFor(t, 10*time.Second, func() bool { return calls.Load() >= 1 })
}

func TestAtJobPastLatenessWindowIsDroppedAsMissed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")

	now := time.Now()
	seeded := envelope{
		Version: StoreVersion,
		Jobs: []Job{
			{
				ID:      "missedjob1",
				Tenant:  1,
				Name:    "late",
				Prompt:  "too late",
				Enabled: true,
				Schedule: Schedule{
					Kind: ScheduleAt,
					AtMs: now.Add(-time.Hour).UnixMilli(),
				},
				Policy: Policy{MaxLatenessMs: 1000, RetryBackoffMs: 1000},
			},
		},
	}
	if err := jobstore.New(path).Save(seeded); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	s := New(Options{BotName: "testbot", StorePath: path, Log: zerolog.Nop()})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	job, ok := s.Get("missedjob1")
	if !ok {
		t.Fatal("expected job record to still exist")
	}
	if job.Enabled {
		t.Fatal("expected job to be disabled after missed catch-up")
	}
	if job.State.LastStatus != "missed" {
		t.Fatalf("expected lastStatus=missed, got %q", job.State.LastStatus)
	}
}
