package source

import "testing"

func TestStatus_IsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusCancelled, StatusFailed}
	active := []Status{StatusPending, StatusExtracting, StatusReadyForAnalysis, StatusAnalyzing}

	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusExtracting, true},
		{StatusPending, StatusFailed, true},
		{StatusExtracting, StatusReadyForAnalysis, true},
		{StatusReadyForAnalysis, StatusAnalyzing, true},
		{StatusAnalyzing, StatusCompleted, true},
		{StatusAnalyzing, StatusCancelled, true},
		{StatusAnalyzing, StatusFailed, true},

		// No skipping forward.
		{StatusPending, StatusAnalyzing, false},
		{StatusExtracting, StatusCompleted, false},
		{StatusReadyForAnalysis, StatusCancelled, false},

		// Nothing leaves a terminal state.
		{StatusCompleted, StatusAnalyzing, false},
		{StatusCancelled, StatusExtracting, false},
		{StatusFailed, StatusPending, false},

		// No backward edges.
		{StatusAnalyzing, StatusReadyForAnalysis, false},
		{StatusExtracting, StatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusExtracting, StatusReadyForAnalysis,
		StatusAnalyzing, StatusCompleted, StatusCancelled, StatusFailed} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status("paused").Valid() {
		t.Error("unknown status should be invalid")
	}
}
