package scheduler

import "testing"

func TestNormalizeNameCollapsesWhitespace(t *testing.T) {
	got := normalizeName("  hello\n\tworld  ", "", "abc123")
	if got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeNameFallsBackToPrompt(t *testing.T) {
	got := normalizeName("", "this is the prompt body text that is long", "abc123")
	if got == "" || got == "job-abc123" {
		t.Fatalf("expected prompt-derived name, got %q", got)
	}
}

func TestNormalizeNameFallsBackToID(t *testing.T) {
	got := normalizeName("", "", "abc123")
	if got != "job-abc123" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeNameTruncatesWithEllipsis(t *testing.T) {
	long := "this name is going to be way longer than forty eight glyphs allows for sure"
	got := normalizeName(long, "", "abc123")
	if glyphLen(got) > maxNameGlyphs {
		t.Fatalf("name too long: %d glyphs", glyphLen(got))
	}
	if got[len(got)-3:] != "…" {
		t.Fatalf("expected ellipsis marker")
	}
}

func TestGenerateIDRetriesOnCollision(t *testing.T) {
	seen := map[string]bool{}
	first, err := generateID(func(string) bool { return false })
	if err != nil {
		t.Fatalf("generateID: %v", err)
	}
	seen[first] = true

	id, err := generateID(func(candidate string) bool { return seen[candidate] })
	if err != nil {
		t.Fatalf("generateID: %v", err)
	}
	if id == first {
		t.Fatal("expected a distinct id when the first candidate collides")
	}
}

func TestClampPolicyAppliesDefaultsForOutOfRange(t *testing.T) {
	defaults := Policy{MaxLatenessMs: 5000, RetryMax: 2, RetryBackoffMs: 2000}
	got := clampPolicy(Policy{MaxLatenessMs: -1, RetryMax: -1, RetryBackoffMs: 10}, defaults)
	if got.MaxLatenessMs != defaults.MaxLatenessMs || got.RetryMax != defaults.RetryMax {
		t.Fatalf("expected defaults applied, got %+v", got)
	}
	if got.RetryBackoffMs < 1000 {
		t.Fatalf("expected retryBackoffMs floor of 1000, got %d", got.RetryBackoffMs)
	}
}
