package poller

import (
	"context"
	"strings"
)

// Status is a job state as reported by a collaborator.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusUnknown    Status = "unknown"
)

// InProgress reports whether s is a recognized non-terminal state.
func (s Status) InProgress() bool {
	switch s {
	case StatusPending, StatusRunning, StatusProcessing:
		return true
	}
	return false
}

// StatusResponse is one decoded status-check response. It is read fresh on
// every poll and returned to the caller unchanged on success.
type StatusResponse map[string]any

// StatusCheck fetches the current state of one job. Any returned error is
// treated as a transport failure.
type StatusCheck func(ctx context.Context) (StatusResponse, error)

// Extractor pulls the job status out of a response, reporting false when the
// response carries no status at all.
type Extractor func(StatusResponse) (Status, bool)

// DefaultExtractor looks for the status, in order, at the top level, in the
// first element of "outputs", and under "job".
func DefaultExtractor(resp StatusResponse) (Status, bool) {
	if s, ok := statusField(resp); ok {
		return s, true
	}
	if outputs, ok := resp["outputs"].([]any); ok && len(outputs) > 0 {
		if first, ok := outputs[0].(map[string]any); ok {
			if s, ok := statusField(first); ok {
				return s, true
			}
		}
	}
	if job, ok := resp["job"].(map[string]any); ok {
		if s, ok := statusField(job); ok {
			return s, true
		}
	}
	return "", false
}

func statusField(m map[string]any) (Status, bool) {
	raw, ok := m["status"].(string)
	if !ok {
		return "", false
	}
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}
	return Status(s), true
}

// HasOutputs reports whether resp carries a non-empty "outputs" array.
func HasOutputs(resp StatusResponse) bool {
	outputs, ok := resp["outputs"].([]any)
	return ok && len(outputs) > 0
}
