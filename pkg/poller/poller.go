package poller

import (
	"go.uber.org/zap"

	internalpoller "github.com/SmitUplenchwar2687/jobpacer/internal/poller"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/clock"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/gate"
)

// Poller drives long-running jobs to a terminal state.
type Poller = internalpoller.Poller

// Option configures a Poller.
type Option = internalpoller.Option

// Options configures one PollUntilDone call.
type Options = internalpoller.Options

type (
	Status         = internalpoller.Status
	StatusResponse = internalpoller.StatusResponse
	StatusCheck    = internalpoller.StatusCheck
	Extractor      = internalpoller.Extractor
)

const (
	StatusPending    = internalpoller.StatusPending
	StatusRunning    = internalpoller.StatusRunning
	StatusProcessing = internalpoller.StatusProcessing
	StatusSucceeded  = internalpoller.StatusSucceeded
	StatusFailed     = internalpoller.StatusFailed
	StatusUnknown    = internalpoller.StatusUnknown
)

const (
	DefaultInterval    = internalpoller.DefaultInterval
	DefaultMaxAttempts = internalpoller.DefaultMaxAttempts
)

type (
	JobFailedError   = internalpoller.JobFailedError
	JobTimedOutError = internalpoller.JobTimedOutError
	TransportError   = internalpoller.TransportError
)

var (
	ErrJobFailed   = internalpoller.ErrJobFailed
	ErrJobTimedOut = internalpoller.ErrJobTimedOut
	ErrTransport   = internalpoller.ErrTransport
)

// New creates a poller whose status checks are admitted through g.
func New(g *gate.Gate, c clock.Clock, opts ...Option) *Poller {
	return internalpoller.New(g, c, opts...)
}

func WithLogger(l *zap.Logger) Option {
	return internalpoller.WithLogger(l)
}

// DefaultOptions returns the default poll options.
func DefaultOptions() Options {
	return internalpoller.DefaultOptions()
}

// DefaultExtractor reads the job status from a response.
func DefaultExtractor(resp StatusResponse) (Status, bool) {
	return internalpoller.DefaultExtractor(resp)
}
