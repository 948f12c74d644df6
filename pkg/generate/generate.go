package generate

import (
	internalgenerate "github.com/SmitUplenchwar2687/jobpacer/internal/generate"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/recorder"
)

const (
	// PatternSteady generates evenly distributed admissions.
	PatternSteady = internalgenerate.PatternSteady
	// PatternBurst generates clustered bursts with quiet gaps.
	PatternBurst = internalgenerate.PatternBurst
	// PatternRamp generates admission density that increases over time.
	PatternRamp = internalgenerate.PatternRamp
)

// Options controls how synthetic admissions are generated.
type Options = internalgenerate.Options

// DefaultOptions returns defaults aligned with the jobpacer CLI.
func DefaultOptions() Options {
	return internalgenerate.DefaultOptions()
}

// Admissions creates synthetic admission records based on opts.
func Admissions(opts Options) ([]recorder.AdmissionRecord, error) {
	return internalgenerate.Admissions(opts)
}
