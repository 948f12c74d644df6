package server

import (
	"go.uber.org/zap"

	internalserver "github.com/SmitUplenchwar2687/jobpacer/internal/server"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/clock"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/gate"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/recorder"
)

// Server exposes a gate's limiters over HTTP.
type Server = internalserver.Server

// Option configures optional server features.
type Option = internalserver.Option

// Hub manages WebSocket clients and broadcasts admission events.
type Hub = internalserver.Hub

// DashboardHTML is the embedded single-page dashboard.
const DashboardHTML = internalserver.DashboardHTML

const (
	DefaultInboundRPS   = internalserver.DefaultInboundRPS
	DefaultInboundBurst = internalserver.DefaultInboundBurst
)

// New creates a new jobpacer server.
func New(addr string, g *gate.Gate, clk clock.Clock, opts ...Option) *Server {
	return internalserver.New(addr, g, clk, opts...)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	return internalserver.NewHub(logger)
}

func WithLogger(l *zap.Logger) Option { return internalserver.WithLogger(l) }
func WithHub(h *Hub) Option           { return internalserver.WithHub(h) }
func WithWait(wait bool) Option       { return internalserver.WithWait(wait) }

// WithRecorder serves rec's records at /api/admissions.
func WithRecorder(rec *recorder.Recorder) Option {
	return internalserver.WithRecorder(rec)
}

// WithInboundLimit throttles each remote address to rps requests per second.
func WithInboundLimit(rps float64, burst int) Option {
	return internalserver.WithInboundLimit(rps, burst)
}

// WithTrustedProxy keys inbound throttling on X-Forwarded-For instead of the
// connection address.
func WithTrustedProxy(trust bool) Option { return internalserver.WithTrustedProxy(trust) }
