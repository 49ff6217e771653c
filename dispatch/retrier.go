package dispatch

import (
	"errors"
	"time"
)

// Decision is the outcome of evaluating an execution attempt.
type Decision int

const (
	// Processed means the handler completed successfully.
	Processed Decision = iota

	// Retry means the execution should be attempted again later.
	Retry

	// Failed means the execution has permanently failed and should move to
	// the dead letter queue.
	Failed
)

// PermanentError wraps a handler error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable. A handler returns Permanent when the
// event can never succeed, for example a payload the handler rejects
// structurally, so the execution goes straight to the DLQ.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Retrier decides what to do after an execution attempt and when the next
// one should run.
type Retrier struct {
	defaultDelay time.Duration
}

// NewRetrier creates a retrier. defaultDelay applies to executions whose
// definition carries no retry schedule.
func NewRetrier(defaultDelay time.Duration) *Retrier {
	if defaultDelay <= 0 {
		defaultDelay = 60 * time.Second
	}
	return &Retrier{defaultDelay: defaultDelay}
}

// Decide determines what to do with an execution after an attempt.
//
// Decision matrix:
//   - nil error → Processed
//   - permanent error → Failed immediately
//   - attempts exhausted → Failed
//   - otherwise → Retry
func (r *Retrier) Decide(attemptErr error, x *Execution) Decision {
	if attemptErr == nil {
		return Processed
	}
	if IsPermanent(attemptErr) {
		return Failed
	}
	if x.AttemptCount >= x.EffectiveMaxAttempts() {
		return Failed
	}
	return Retry
}

// ComputeNextAttempt returns the time of the next attempt after attempt
// number attemptCount. The schedule indexes by attempt; past its end the
// last entry repeats.
func (r *Retrier) ComputeNextAttempt(attemptCount int, schedule []int) time.Time {
	delay := r.defaultDelay
	if len(schedule) > 0 {
		idx := attemptCount - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(schedule) {
			idx = len(schedule) - 1
		}
		delay = time.Duration(schedule[idx]) * time.Second
	}
	return time.Now().UTC().Add(delay)
}
