// Package server exposes the admission gate over HTTP: limiter snapshots,
// admissions, a live websocket event stream and a dashboard.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
	"github.com/SmitUplenchwar2687/jobpacer/internal/gate"
	jplog "github.com/SmitUplenchwar2687/jobpacer/internal/log"
	"github.com/SmitUplenchwar2687/jobpacer/internal/recorder"
)

// Server is the jobpacer HTTP server.
type Server struct {
	httpServer *http.Server
	gate       *gate.Gate
	clock      clock.Clock
	hub        *Hub
	recorder   *recorder.Recorder
	wait       bool
	inbound    *inboundLimiter
	trustProxy bool
	logger     *zap.Logger
	mux        *http.ServeMux

	stopHub context.CancelFunc
	hubCtx  context.Context
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = jplog.OrNop(l) }
}

// WithHub sets the websocket hub. The hub only sees admissions if its
// Observer was registered on the gate.
func WithHub(h *Hub) Option {
	return func(s *Server) { s.hub = h }
}

// WithRecorder exposes rec's admissions at /api/admissions.
func WithRecorder(rec *recorder.Recorder) Option {
	return func(s *Server) { s.recorder = rec }
}

// WithWait sets the default wait mode of POST /api/admit.
func WithWait(wait bool) Option {
	return func(s *Server) { s.wait = wait }
}

// WithInboundLimit throttles each remote address to rps with the given burst.
func WithInboundLimit(rps float64, burst int) Option {
	return func(s *Server) { s.inbound = newInboundLimiter(rps, burst) }
}

// WithTrustedProxy keys inbound throttling on the first X-Forwarded-For hop.
// Enable it only when a proxy in front of the server sets that header.
func WithTrustedProxy(trust bool) Option {
	return func(s *Server) { s.trustProxy = trust }
}

// New creates a server admitting through g.
func New(addr string, g *gate.Gate, clk clock.Clock, opts ...Option) *Server {
	s := &Server{
		gate:    g,
		clock:   clk,
		wait:    true,
		inbound: newInboundLimiter(DefaultInboundRPS, DefaultInboundBurst),
		logger:  zap.NewNop(),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewHub(s.logger)
	}
	s.hubCtx, s.stopHub = context.WithCancel(context.Background())

	s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/limiters", s.handleLimiters)
	s.mux.HandleFunc("GET /api/limiters/{name}", s.handleLimiter)
	s.mux.HandleFunc("POST /api/admit/{name}", s.handleAdmit)
	s.mux.HandleFunc("GET /api/admissions", s.handleAdmissions)
	s.mux.HandleFunc("GET /ws", s.hub.HandleWebSocket)
	s.mux.HandleFunc("GET /dashboard/", s.handleDashboard)
	s.mux.Handle("GET /dashboard", http.RedirectHandler("/dashboard/", http.StatusMovedPermanently))
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.throttle(s.mux))
}

// Hub returns the server's websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":    "jobpacer",
		"status":     "running",
		"time":       s.clock.Now().Format(time.RFC3339),
		"limiters":   s.gate.Registry().Len(),
		"ws_clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLimiters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gate.Registry().Snapshot())
}

func (s *Server) handleLimiter(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	alg, ok := s.gate.Registry().Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, "no limiter named "+strconv.Quote(name), nil)
		return
	}
	writeJSON(w, http.StatusOK, alg.Snapshot())
}

type admitResponse struct {
	Limiter  string        `json:"limiter"`
	Cost     int           `json:"cost"`
	Wait     bool          `json:"wait"`
	Admitted bool          `json:"admitted"`
	Waited   time.Duration `json:"waited"`
}

// handleAdmit admits on the limiter named in the path.
// Query: wait=true|false (server default), n=cost (default 1).
func (s *Server) handleAdmit(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	q := r.URL.Query()

	wait := s.wait
	if v := q.Get("wait"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "wait must be a boolean", nil)
			return
		}
		wait = b
	}
	n := 1
	if v := q.Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "n must be an integer", nil)
			return
		}
		n = parsed
	}

	start := s.clock.Now()
	err := s.gate.Admit(r.Context(), name, wait, n)
	if err == nil {
		writeJSON(w, http.StatusOK, admitResponse{
			Limiter:  name,
			Cost:     n,
			Wait:     wait,
			Admitted: true,
			Waited:   s.clock.Since(start),
		})
		return
	}

	var rle *gate.RateLimitError
	errors.As(err, &rle)
	switch {
	case errors.Is(err, gate.ErrRateLimitExceeded):
		retry := time.Duration(0)
		if rle != nil {
			retry = rle.RetryAfter
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retry)))
		writeError(w, http.StatusTooManyRequests, err.Error(), map[string]any{
			"limiter":        name,
			"retry_after_ms": retry.Milliseconds(),
		})
	case errors.Is(err, gate.ErrExceedsCapacity), errors.Is(err, gate.ErrInvalidCost):
		writeError(w, http.StatusBadRequest, err.Error(), map[string]any{"limiter": name})
	default:
		// The client went away or the server is shutting down mid-wait.
		writeError(w, http.StatusServiceUnavailable, err.Error(), map[string]any{"limiter": name})
	}
}

func (s *Server) handleAdmissions(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeError(w, http.StatusNotFound, "recording is not enabled", nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := s.recorder.ExportJSON(w); err != nil {
		s.logger.Warn("exporting admissions", zap.Error(err))
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(DashboardHTML))
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	go s.hub.Run(s.hubCtx)
	s.logger.Info("jobpacer server listening", zap.String(jplog.KeyAddr, ln.Addr().String()))
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the event stream and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopHub()
	return s.httpServer.Shutdown(ctx)
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string, extra map[string]any) {
	body := map[string]any{"error": msg}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, code, body)
}
