package scheduler

import (
	"testing"
	"time"
)

func TestComputeEveryNonStrictUsesAnchorWhenFuture(t *testing.T) {
	now := int64(1000)
	got := computeEvery(5000, 1000, now, false)
	if got != 5000 {
		t.Fatalf("got %d want 5000", got)
	}
}

func TestComputeEveryMatchesAnchorInPastScenario(t *testing.T) {
	now := int64(1_000_000)
	anchor := now - 90000
	got := computeEvery(anchor, 60000, now, false)
	want := anchor + 2*60000
	if got != want {
		t.Fatalf("got %d want %d", got, want)
	}
}

func TestComputeEveryStrictAdvancesPastNow(t *testing.T) {
	now := int64(1_000_000)
	anchor := now - 120000
	// After firing exactly at anchor+2*every == now, strict mode must move
	// to the next slot rather than returning the instant that just fired.
	got := computeEvery(anchor, 60000, now, true)
	want := anchor + 3*60000
	if got != want {
		t.Fatalf("got %d want %d", got, want)
	}
}

func TestValidateScheduleRejectsSubSecondEvery(t *testing.T) {
	_, err := validateSchedule(Schedule{Kind: ScheduleEvery, EveryMs: 999}, "UTC")
	if err == nil {
		t.Fatal("expected rejection for everyMs < 1000")
	}
}

func TestValidateScheduleAcceptsOneSecondEvery(t *testing.T) {
	s, err := validateSchedule(Schedule{Kind: ScheduleEvery, EveryMs: 1000}, "UTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.AnchorMs <= 0 {
		t.Fatal("expected anchor to default to now")
	}
}

func TestValidateScheduleRejectsBadCronExpr(t *testing.T) {
	_, err := validateSchedule(Schedule{Kind: ScheduleCron, Expr: "not a cron"}, "UTC")
	if err == nil {
		t.Fatal("expected rejection for invalid cron expression")
	}
}

func TestComputeCronNextHonorsMinRefireGap(t *testing.T) {
	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched := Schedule{Kind: ScheduleCron, Expr: "* * * * *", Timezone: "UTC"}
	next, err := computeCronNext(sched, ref, 90*time.Second)
	if err != nil {
		t.Fatalf("computeCronNext: %v", err)
	}
	if next.Before(ref.Add(90 * time.Second)) {
		t.Fatalf("expected next to respect the min refire gap, got %v", next)
	}
}
