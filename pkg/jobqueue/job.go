package jobqueue

import (
	"errors"
	"time"
)

// Status represents the lifecycle state of a queued job.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one unit of work tracked by a Queue. A job is uniquely identified
// by its DedupKey while it is non-terminal: enqueueing the same key twice
// returns the existing job instead of creating a duplicate.
type Job struct {
	ID          string
	Queue       string
	DedupKey    string
	Payload     []byte
	Attempts    int
	MaxAttempts int
	Status      Status
	LastError   string
	CreatedAt   time.Time
	NextRunAt   time.Time
	FinishedAt  time.Time
}

// Options controls enqueue behavior for a single job.
type Options struct {
	DedupKey    string
	MaxAttempts int           // 0 means the queue default
	BackoffBase time.Duration // 0 means the queue default
}

// EventType is a job lifecycle notification kind.
type EventType string

const (
	EventWaiting   EventType = "waiting"
	EventActive    EventType = "active"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventStalled   EventType = "stalled"
)

// Event is emitted on every job lifecycle transition. Consumers (logging,
// the websocket monitor) subscribe through the Manager.
type Event struct {
	Queue    string    `json:"queue"`
	JobID    string    `json:"job_id"`
	DedupKey string    `json:"dedup_key"`
	Type     EventType `json:"type"`
	Attempt  int       `json:"attempt"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// permanentError marks a failure that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the queue skips any remaining retry attempts.
// Used for validation and precondition failures where retrying is pointless.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
