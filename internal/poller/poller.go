// Package poller drives a long-running remote job to a terminal state by
// repeated, rate-governed status checks.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
	"github.com/SmitUplenchwar2687/jobpacer/internal/gate"
	jplog "github.com/SmitUplenchwar2687/jobpacer/internal/log"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 120
)

// Options configure one PollUntilDone call. Only the limiter, stage and
// status check vary between call sites.
type Options struct {
	// Limiter gates every status check. Empty or unregistered names are
	// not limited.
	Limiter string
	// Stage names the operation being awaited, for error reports.
	Stage       string
	Interval    time.Duration
	MaxAttempts int
	// Extract defaults to DefaultExtractor.
	Extract Extractor
	// InferSuccessFromOutputs treats a response with no status but a
	// non-empty "outputs" array as succeeded. Some services return partial
	// outputs while still processing; disable it for those.
	InferSuccessFromOutputs bool
}

// DefaultOptions returns a 5s interval, 120 attempts and inferred success.
func DefaultOptions() Options {
	return Options{
		Interval:                DefaultInterval,
		MaxAttempts:             DefaultMaxAttempts,
		Extract:                 DefaultExtractor,
		InferSuccessFromOutputs: true,
	}
}

func (o Options) validate() error {
	if o.Interval < 0 {
		return fmt.Errorf("poll interval must not be negative, got %s", o.Interval)
	}
	if o.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be positive, got %d", o.MaxAttempts)
	}
	return nil
}

// Poller runs status-check loops. Safe for concurrent use.
type Poller struct {
	gate   *gate.Gate
	clock  clock.Clock
	logger *zap.Logger
}

type Option func(*Poller)

func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) { p.logger = jplog.OrNop(l) }
}

// New creates a Poller whose status checks are admitted through g and whose
// inter-poll sleeps run on c.
func New(g *gate.Gate, c clock.Clock, opts ...Option) *Poller {
	p := &Poller{
		gate:   g,
		clock:  c,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PollUntilDone calls check until the job succeeds, fails, or MaxAttempts
// is used up. Each attempt first waits for admission on opts.Limiter.
//
// It returns the succeeding response unchanged, or an error matching one of
// ErrJobFailed, ErrJobTimedOut or ErrTransport. If ctx ends first the
// context error is returned wrapped.
func (p *Poller) PollUntilDone(ctx context.Context, check StatusCheck, opts Options) (StatusResponse, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if check == nil {
		return nil, errors.New("status check is required")
	}
	extract := opts.Extract
	if extract == nil {
		extract = DefaultExtractor
	}

	logger := p.logger.With(
		zap.String(jplog.KeyPollID, uuid.NewString()),
		jplog.Limiter(opts.Limiter),
		jplog.Stage(opts.Stage),
	)
	logger.Info("polling job status",
		zap.Duration("interval", opts.Interval),
		zap.Int("max-attempts", opts.MaxAttempts),
	)

	last := StatusUnknown
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := p.gate.Admit(ctx, opts.Limiter, true, 1); err != nil {
			return nil, fmt.Errorf("%s: admitting status check (attempt %d): %w", where(opts.Stage, opts.Limiter), attempt, err)
		}

		resp, err := check(ctx)
		if err != nil {
			logger.Warn("status check failed", jplog.Attempt(attempt), zap.Error(err))
			return nil, &TransportError{Limiter: opts.Limiter, Stage: opts.Stage, Attempt: attempt, Err: err}
		}

		status, found := extract(resp)
		switch {
		case found && status == StatusSucceeded:
			logger.Info("job completed", jplog.Attempt(attempt))
			return resp, nil

		case found && status == StatusFailed:
			msg, payload := failureMessage(resp)
			logger.Warn("job failed", jplog.Attempt(attempt), zap.String("reason", msg))
			return nil, &JobFailedError{
				Limiter:  opts.Limiter,
				Stage:    opts.Stage,
				Attempt:  attempt,
				Message:  msg,
				Payload:  payload,
				Response: resp,
			}

		case !found && opts.InferSuccessFromOutputs && HasOutputs(resp):
			logger.Info("no status field but outputs present, assuming success", jplog.Attempt(attempt))
			return resp, nil
		}

		if found {
			last = status
		} else {
			last = StatusUnknown
		}
		if !last.InProgress() {
			logger.Debug("unrecognized status, continuing to poll", jplog.Attempt(attempt), zap.String(jplog.KeyStatus, string(last)))
		} else {
			logger.Debug("job still in progress", jplog.Attempt(attempt), zap.String(jplog.KeyStatus, string(last)))
		}

		if attempt == opts.MaxAttempts {
			break
		}
		if err := clock.Sleep(ctx, p.clock, opts.Interval); err != nil {
			return nil, fmt.Errorf("%s: waiting between polls: %w", where(opts.Stage, opts.Limiter), err)
		}
	}

	err := &JobTimedOutError{
		Limiter:    opts.Limiter,
		Stage:      opts.Stage,
		Attempts:   opts.MaxAttempts,
		Budget:     time.Duration(opts.MaxAttempts) * opts.Interval,
		LastStatus: last,
	}
	logger.Warn("job timed out", zap.Error(err))
	return nil, err
}
