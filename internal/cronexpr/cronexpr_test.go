package cronexpr

import (
	"testing"
	"time"
)

func TestNextAfterUTC(t *testing.T) {
	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next, err := NextAfter("30 4 * * *", "UTC", ref)
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	want := time.Date(2026, 1, 1, 4, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v want %v", next, want)
	}
}

func TestParseInvalidExpression(t *testing.T) {
	if _, err := Parse("not a cron expr"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLocationDefaultsToLocal(t *testing.T) {
	loc, err := Location("")
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc != time.Local {
		t.Fatalf("expected time.Local, got %v", loc)
	}
}

func TestLocationUnknownZone(t *testing.T) {
	if _, err := Location("Not/AZone"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}
