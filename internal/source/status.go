// Package source defines the persisted lifecycle of a source as it moves
// through extraction and analysis.
package source

// Status is the persisted state of a source.
type Status string

const (
	StatusPending          Status = "pending"
	StatusExtracting       Status = "extracting"
	StatusReadyForAnalysis Status = "ready_for_analysis"
	StatusAnalyzing        Status = "analyzing"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
	StatusFailed           Status = "failed"
)

// transitions enumerates the legal forward edges. Terminal states have no
// outgoing edges; nothing moves a source backward out of one.
var transitions = map[Status][]Status{
	StatusPending:          {StatusExtracting, StatusFailed},
	StatusExtracting:       {StatusReadyForAnalysis, StatusFailed},
	StatusReadyForAnalysis: {StatusAnalyzing, StatusFailed},
	StatusAnalyzing:        {StatusCompleted, StatusCancelled, StatusFailed},
}

// IsTerminal reports whether a status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusExtracting, StatusReadyForAnalysis,
		StatusAnalyzing, StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}
