// Package gate admits rate-limited work against a limiter registry, either
// blocking until budget is available or failing fast.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
	jplog "github.com/SmitUplenchwar2687/jobpacer/internal/log"
	"github.com/SmitUplenchwar2687/jobpacer/internal/registry"
)

var (
	// ErrRateLimitExceeded is returned by non-waiting admissions that find the
	// budget exhausted. Waiting admissions never return it.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrExceedsCapacity is returned when a single admission costs more than
	// the limiter can ever hold.
	ErrExceedsCapacity = errors.New("cost exceeds limiter capacity")
	ErrInvalidCost     = errors.New("cost must be positive")
)

// RateLimitError reports a failed admission and the limiter it was made on.
type RateLimitError struct {
	Limiter    string
	Cost       int
	RetryAfter time.Duration // estimated wait, set when the budget was exhausted
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("limiter %q: %v (retry after %s)", e.Limiter, e.Err, e.RetryAfter)
	}
	return fmt.Sprintf("limiter %q: %v", e.Limiter, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Event describes one admission decision.
type Event struct {
	ID       string        `json:"id"`
	Limiter  string        `json:"limiter"`
	Cost     int           `json:"cost"`
	Wait     bool          `json:"wait"`
	Admitted bool          `json:"admitted"`
	Waited   time.Duration `json:"waited"`
	At       time.Time     `json:"at"`
	Error    string        `json:"error,omitempty"`
}

// Gate wraps callers' actions with admission against a Registry.
type Gate struct {
	registry *registry.Registry
	clock    clock.Clock
	logger   *zap.Logger
	observer func(Event)
}

type Option func(*Gate)

func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) { g.logger = jplog.OrNop(l) }
}

// WithObserver registers fn to receive every admission decision. fn runs on
// the admitting goroutine and must not block. Repeated options chain.
func WithObserver(fn func(Event)) Option {
	return func(g *Gate) {
		if fn == nil {
			return
		}
		if prev := g.observer; prev != nil {
			g.observer = func(ev Event) {
				prev(ev)
				fn(ev)
			}
			return
		}
		g.observer = fn
	}
}

// New creates a Gate over reg. Waits are measured and suspended on c.
func New(reg *registry.Registry, c clock.Clock, opts ...Option) *Gate {
	g := &Gate{
		registry: reg,
		clock:    c,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Registry returns the registry the gate admits against.
func (g *Gate) Registry() *registry.Registry { return g.registry }

// Admit obtains n units of budget on the named limiter.
//
// With wait set, Admit blocks until the units are granted or ctx is done; the
// suspension holds no lock, so other callers and other limiters progress
// meanwhile. Without wait, Admit makes a single attempt and returns an error
// matching ErrRateLimitExceeded if the budget is exhausted.
func (g *Gate) Admit(ctx context.Context, name string, wait bool, n int) error {
	if n < 1 {
		return &RateLimitError{Limiter: name, Cost: n, Err: ErrInvalidCost}
	}
	if alg, ok := g.registry.Lookup(name); ok && n > alg.Capacity() {
		return &RateLimitError{Limiter: name, Cost: n, Err: fmt.Errorf("%w (%d > %d)", ErrExceedsCapacity, n, alg.Capacity())}
	}

	start := g.clock.Now()
	if !wait {
		if g.registry.TryAcquire(name, n) {
			g.emit(name, n, wait, start, nil)
			return nil
		}
		err := &RateLimitError{
			Limiter:    name,
			Cost:       n,
			RetryAfter: g.registry.TimeUntilAvailable(name, n),
			Err:        ErrRateLimitExceeded,
		}
		g.emit(name, n, wait, start, err)
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return g.abort(name, n, start, err)
		}
		d := g.registry.TimeUntilAvailable(name, n)
		if d == 0 {
			if g.registry.TryAcquire(name, n) {
				g.emit(name, n, wait, start, nil)
				return nil
			}
			// Another caller took the budget between the estimate and the
			// attempt; re-estimate.
			continue
		}

		g.logger.Info("rate limit reached, waiting",
			jplog.Limiter(name),
			zap.Int(jplog.KeyCost, n),
			jplog.Delay(d),
		)
		if err := clock.Sleep(ctx, g.clock, d); err != nil {
			return g.abort(name, n, start, err)
		}
	}
}

// Do admits one unit on the named limiter and then runs fn.
func (g *Gate) Do(ctx context.Context, name string, wait bool, fn func(context.Context) error) error {
	return g.DoN(ctx, name, wait, 1, fn)
}

// DoN admits n units on the named limiter and then runs fn.
// fn is not called if admission fails.
func (g *Gate) DoN(ctx context.Context, name string, wait bool, n int, fn func(context.Context) error) error {
	if err := g.Admit(ctx, name, wait, n); err != nil {
		return err
	}
	return fn(ctx)
}

func (g *Gate) abort(name string, n int, start time.Time, cause error) error {
	err := &RateLimitError{Limiter: name, Cost: n, Err: cause}
	g.emit(name, n, true, start, err)
	return err
}

func (g *Gate) emit(name string, n int, wait bool, start time.Time, err error) {
	now := g.clock.Now()
	ev := Event{
		ID:       uuid.NewString(),
		Limiter:  name,
		Cost:     n,
		Wait:     wait,
		Admitted: err == nil,
		Waited:   now.Sub(start),
		At:       now,
	}
	if err != nil {
		ev.Error = err.Error()
	}

	if ce := g.logger.Check(zap.DebugLevel, "admission"); ce != nil {
		ce.Write(
			zap.String(jplog.KeyEventID, ev.ID),
			jplog.Limiter(name),
			zap.Int(jplog.KeyCost, n),
			zap.Bool(jplog.KeyWait, wait),
			zap.Bool("admitted", ev.Admitted),
			zap.Duration("waited", ev.Waited),
			zap.Error(err),
		)
	}
	if g.observer != nil {
		g.observer(ev)
	}
}
