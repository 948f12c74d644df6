// Package log builds the zap loggers used across jobpacer and defines the
// structured field keys every component logs with.
package log

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys. Kept in one place so log queries stay stable across packages.
const (
	KeyLimiter  = "limiter"
	KeyCost     = "cost"
	KeyWait     = "wait"
	KeyDelay    = "delay"
	KeyStage    = "stage"
	KeyAttempt  = "attempt"
	KeyStatus   = "status"
	KeyPollID   = "poll-id"
	KeyEventID  = "event-id"
	KeyAddr     = "addr"
	KeyEndpoint = "endpoint"
)

// New returns a JSON production logger, or a console development logger when
// development is set, filtered at level (debug, info, warn, error).
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func Limiter(name string) zap.Field { return zap.String(KeyLimiter, name) }

func Stage(stage string) zap.Field { return zap.String(KeyStage, stage) }

func Attempt(n int) zap.Field { return zap.Int(KeyAttempt, n) }

func Delay(d time.Duration) zap.Field { return zap.Duration(KeyDelay, d) }
