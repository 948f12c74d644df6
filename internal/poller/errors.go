package poller

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrJobFailed   = errors.New("job failed")
	ErrJobTimedOut = errors.New("job timed out")
	ErrTransport   = errors.New("status check failed")
)

// JobFailedError is returned when the collaborator reports a terminal failure.
type JobFailedError struct {
	Limiter  string
	Stage    string
	Attempt  int
	Message  string         // error or message field of the response
	Payload  any            // the raw "error" field, verbatim
	Response StatusResponse // the full failing response
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("%s: job failed: %s", where(e.Stage, e.Limiter), e.Message)
}

func (e *JobFailedError) Is(target error) bool { return target == ErrJobFailed }

// JobTimedOutError is returned when every attempt saw a non-terminal state.
type JobTimedOutError struct {
	Limiter    string
	Stage      string
	Attempts   int
	Budget     time.Duration // Attempts x poll interval
	LastStatus Status
}

func (e *JobTimedOutError) Error() string {
	return fmt.Sprintf("%s: job did not complete within %s (%d attempts, last status %q)",
		where(e.Stage, e.Limiter), e.Budget, e.Attempts, e.LastStatus)
}

func (e *JobTimedOutError) Is(target error) bool { return target == ErrJobTimedOut }

// TransportError wraps a failed status check. It is never retried by the
// poller.
type TransportError struct {
	Limiter string
	Stage   string
	Attempt int
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: polling job status (attempt %d): %v", where(e.Stage, e.Limiter), e.Attempt, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func where(stage, limiter string) string {
	if stage == "" {
		stage = "job"
	}
	if limiter == "" {
		return stage
	}
	return stage + " via " + limiter
}

// failureMessage returns the response's error field verbatim, falling back to
// its message field.
func failureMessage(resp StatusResponse) (string, any) {
	if payload, ok := resp["error"]; ok && payload != nil {
		if s, ok := payload.(string); ok {
			return s, payload
		}
		if b, err := json.Marshal(payload); err == nil {
			return string(b), payload
		}
		return fmt.Sprint(payload), payload
	}
	if msg, ok := resp["message"].(string); ok && msg != "" {
		return msg, nil
	}
	return "unknown error", nil
}
