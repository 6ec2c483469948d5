package sandbox

import "time"

// Status is the session state machine. A session moves
// Pending → Creating → Running and ends in exactly one terminal state.
type Status int

const (
	StatusPending Status = iota
	StatusCreating
	StatusRunning
	StatusCompleted
	StatusTimedOut
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCreating:
		return "creating"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusTimedOut:
		return "timed_out"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session has finished.
func (s Status) Terminal() bool {
	return s >= StatusCompleted
}

// FailureReason narrows a StatusFailed result.
type FailureReason string

const (
	FailureUnsupportedLanguage FailureReason = "unsupported_language"
	FailureInfrastructure      FailureReason = "infrastructure_error"
)

// Request is one validated execution request. It is immutable once built;
// the session owns it from submission to teardown.
type Request struct {
	ID          string
	RequestorID string
	Language    string
	Code        string
	// TimeoutCap optionally lowers the profile timeout for this request.
	TimeoutCap  time.Duration
	SubmittedAt time.Time
}

// Result is the terminal outcome of one session. A non-zero ExitCode with
// StatusCompleted is the submitted code's own doing, not an error here.
type Result struct {
	Status    Status
	Reason    FailureReason
	ExitCode  int64
	Output    string
	Truncated bool
}

// Success reports whether the code ran to completion and exited zero.
func (r Result) Success() bool {
	return r.Status == StatusCompleted && r.ExitCode == 0
}
