package run_test

import (
	"testing"

	"jobby/recommend-service/internal/run"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	valid := []string{"running", "completed", "failed", "cancelled"}
	for _, s := range valid {
		got, err := run.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	_, err := run.ParseStatus("pending")
	if err == nil {
		t.Error("ParseStatus(\"pending\") expected error, got nil")
	}
}

func TestParseStatus_EmptyString(t *testing.T) {
	_, err := run.ParseStatus("")
	if err == nil {
		t.Error("ParseStatus(\"\") expected error, got nil")
	}
}

// ParseStatus must be case-sensitive — uppercase variants must not be valid.
func TestParseStatus_CaseSensitive(t *testing.T) {
	uppercase := []string{"RUNNING", "Completed", "FAILED", "Cancelled"}
	for _, s := range uppercase {
		_, err := run.ParseStatus(s)
		if err == nil {
			t.Errorf("ParseStatus(%q) should reject mixed-case value, got nil error", s)
		}
	}
}

// ── IsTerminal ─────────────────────────────────────────────────────────────

func TestIsTerminal(t *testing.T) {
	if run.IsTerminal(run.StatusRunning) {
		t.Error("IsTerminal(running) should return false")
	}
	for _, s := range []run.Status{
		run.StatusCompleted,
		run.StatusFailed,
		run.StatusCancelled,
	} {
		if !run.IsTerminal(s) {
			t.Errorf("IsTerminal(%s) should return true", s)
		}
	}
}

// ── IsTransitionAllowed ────────────────────────────────────────────────────

func TestIsTransitionAllowed_FromRunning(t *testing.T) {
	for _, to := range []run.Status{
		run.StatusCompleted,
		run.StatusFailed,
		run.StatusCancelled,
	} {
		if !run.IsTransitionAllowed(run.StatusRunning, to) {
			t.Errorf("IsTransitionAllowed(running → %s) should be true", to)
		}
	}
}

func TestIsTransitionAllowed_RunningToRunning(t *testing.T) {
	if run.IsTransitionAllowed(run.StatusRunning, run.StatusRunning) {
		t.Error("IsTransitionAllowed(running → running) should be false")
	}
}

func TestIsTransitionAllowed_TerminalsHaveNoExits(t *testing.T) {
	terminals := []run.Status{run.StatusCompleted, run.StatusFailed, run.StatusCancelled}
	all := append([]run.Status{run.StatusRunning}, terminals...)
	for _, from := range terminals {
		for _, to := range all {
			if run.IsTransitionAllowed(from, to) {
				t.Errorf("IsTransitionAllowed(%s → %s) should be false", from, to)
			}
		}
	}
}
