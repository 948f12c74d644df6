package recorder

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/jobpacer/internal/gate"
	jplog "github.com/SmitUplenchwar2687/jobpacer/internal/log"
)

// streamBuffer is how many observed records may wait for the stream writer
// before further ones are dropped from the stream (they are still kept in
// memory).
const streamBuffer = 1024

// Recorder captures admission records for later replay.
// Thread-safe for concurrent use. mu guards only the in-memory slice and is
// never held across I/O, so a slow export or stream cannot stall the gate.
type Recorder struct {
	mu      sync.Mutex
	records []AdmissionRecord
	closed  bool

	writeMu sync.Mutex
	writer  io.Writer // optional: stream records as they arrive
	stream  chan AdmissionRecord
	done    chan struct{}
	dropped atomic.Int64

	closeOnce sync.Once
	logger    *zap.Logger
}

type Option func(*Recorder)

func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) { r.logger = jplog.OrNop(l) }
}

// New creates a new Recorder. If w is non-nil, records are also
// written to w as newline-delimited JSON as they arrive.
func New(w io.Writer, opts ...Option) *Recorder {
	r := &Recorder{
		writer: w,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if w != nil {
		r.stream = make(chan AdmissionRecord, streamBuffer)
		r.done = make(chan struct{})
		go r.drain()
	}
	return r
}

// Record captures a single admission record and, with a stream writer,
// writes it before returning. A stream error is returned but the record is
// kept.
func (r *Recorder) Record(rec AdmissionRecord) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	if r.writer == nil {
		return nil
	}
	return r.write(rec)
}

func (r *Recorder) write(rec AdmissionRecord) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := json.NewEncoder(r.writer).Encode(rec); err != nil {
		return fmt.Errorf("streaming admission record: %w", err)
	}
	return nil
}

// Observer returns a gate observer that records every admission. It never
// blocks on the stream writer: records are handed to a background writer,
// and dropped from the stream when its buffer is full. Streaming failures
// are logged, not returned.
func (r *Recorder) Observer() func(gate.Event) {
	return func(ev gate.Event) {
		rec := FromEvent(ev)

		r.mu.Lock()
		defer r.mu.Unlock()
		r.records = append(r.records, rec)
		if r.stream == nil || r.closed {
			return
		}
		select {
		case r.stream <- rec:
		default:
			r.dropped.Add(1)
			r.logger.Warn("dropping admission record from stream",
				zap.String(jplog.KeyEventID, ev.ID),
				jplog.Limiter(ev.Limiter),
				zap.String("reason", "stream buffer full"),
			)
		}
	}
}

func (r *Recorder) drain() {
	defer close(r.done)
	for rec := range r.stream {
		if err := r.write(rec); err != nil {
			r.logger.Warn("dropping admission record from stream",
				zap.String(jplog.KeyEventID, rec.ID),
				jplog.Limiter(rec.Limiter),
				zap.Error(err),
			)
		}
	}
}

// Close flushes records still queued for the stream writer and stops it.
// Records observed afterwards are kept in memory only. Safe to call more
// than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		if r.stream != nil {
			close(r.stream)
		}
		r.mu.Unlock()
		if r.done != nil {
			<-r.done
		}
	})
	return nil
}

// Dropped reports how many observed records never reached the stream
// because its buffer was full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Records returns a copy of all recorded admissions.
func (r *Recorder) Records() []AdmissionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]AdmissionRecord, len(r.records))
	copy(out, r.records)
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// ExportJSON writes all records to w as a JSON array. It encodes a copy, so
// a slow w does not hold up recording.
func (r *Recorder) ExportJSON(w io.Writer) error {
	records := r.Records()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// ExportFile writes all records to path as a JSON array.
func (r *Recorder) ExportFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.ExportJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadJSON reads admission records from a JSON array.
func LoadJSON(r io.Reader) ([]AdmissionRecord, error) {
	var records []AdmissionRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

// LoadFile reads admission records from a JSON array file.
func LoadFile(path string) ([]AdmissionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadJSON(f)
}
