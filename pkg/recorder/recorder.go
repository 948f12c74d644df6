package recorder

import (
	"io"

	"go.uber.org/zap"

	internalrecorder "github.com/SmitUplenchwar2687/jobpacer/internal/recorder"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/gate"
)

// AdmissionRecord represents a single recorded admission.
type AdmissionRecord = internalrecorder.AdmissionRecord

// Recorder captures admission records for later replay.
type Recorder = internalrecorder.Recorder

// Option configures a Recorder.
type Option = internalrecorder.Option

// New creates a new Recorder, streaming records to w when it is non-nil.
func New(w io.Writer, opts ...Option) *Recorder {
	return internalrecorder.New(w, opts...)
}

func WithLogger(l *zap.Logger) Option {
	return internalrecorder.WithLogger(l)
}

// FromEvent converts a gate event to a record.
func FromEvent(ev gate.Event) AdmissionRecord {
	return internalrecorder.FromEvent(ev)
}

// LoadJSON reads admission records from a JSON array.
func LoadJSON(r io.Reader) ([]AdmissionRecord, error) {
	return internalrecorder.LoadJSON(r)
}

// LoadFile reads admission records from a JSON file.
func LoadFile(path string) ([]AdmissionRecord, error) {
	return internalrecorder.LoadFile(path)
}
