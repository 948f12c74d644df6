package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
	"github.com/SmitUplenchwar2687/jobpacer/internal/limiter"
)

// Limiter names for the external services the pipeline talks to.
const (
	Auth             = "auth"
	ImageGeneration  = "image_generation"
	DocumentEdit     = "document_edit"
	PromptGeneration = "prompt_generation"
	FileTransfer     = "file_transfer"
	URLSigning       = "url_signing"
)

var ErrAlreadyRegistered = errors.New("limiter already registered")

// Registry maps limiter names to configured algorithm instances.
//
// The registry lock only guards the map; each algorithm serializes itself,
// so callers of different names never contend with each other.
// Names that were never registered fail open.
type Registry struct {
	clock clock.Clock

	mu       sync.RWMutex
	limiters map[string]limiter.Algorithm
}

// New creates an empty registry whose limiters read time from c.
func New(c clock.Clock) *Registry {
	return &Registry{
		clock:    c,
		limiters: make(map[string]limiter.Algorithm),
	}
}

// FromConfig creates a registry holding one limiter per table entry.
// Every invalid entry is reported, not just the first.
func FromConfig(table map[string]limiter.Config, c clock.Clock) (*Registry, error) {
	r := New(c)
	var errs error
	for _, name := range sortedKeys(table) {
		errs = multierr.Append(errs, r.Register(name, table[name]))
	}
	if errs != nil {
		return nil, errs
	}
	return r, nil
}

// NewDefault creates a registry from DefaultTable.
func NewDefault(c clock.Clock) *Registry {
	r, err := FromConfig(DefaultTable(), c)
	if err != nil {
		panic(fmt.Sprintf("registry: invalid default table: %v", err))
	}
	return r
}

// Register builds the algorithm described by cfg and stores it under name.
func (r *Registry) Register(name string, cfg limiter.Config) error {
	if name == "" {
		return errors.New("limiter name is required")
	}
	alg, err := limiter.New(cfg, r.clock)
	if err != nil {
		return fmt.Errorf("limiter %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.limiters[name]; ok {
		return fmt.Errorf("limiter %q: %w", name, ErrAlreadyRegistered)
	}
	r.limiters[name] = alg
	return nil
}

// Lookup returns the algorithm registered under name.
func (r *Registry) Lookup(name string) (limiter.Algorithm, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	alg, ok := r.limiters[name]
	return alg, ok
}

// TryAcquire admits n units on the named limiter. Unknown names are admitted.
func (r *Registry) TryAcquire(name string, n int) bool {
	alg, ok := r.Lookup(name)
	if !ok {
		return true
	}
	return alg.TryAcquire(n)
}

// TimeUntilAvailable reports the wait before n units would be admitted on the
// named limiter. Unknown names never wait.
func (r *Registry) TimeUntilAvailable(name string, n int) time.Duration {
	alg, ok := r.Lookup(name)
	if !ok {
		return 0
	}
	return alg.TimeUntilAvailable(n)
}

// Names returns the registered limiter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.limiters)
}

// Len returns the number of registered limiters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}

// Snapshot returns the counters of every registered limiter.
func (r *Registry) Snapshot() map[string]limiter.Snapshot {
	r.mu.RLock()
	algs := make(map[string]limiter.Algorithm, len(r.limiters))
	for name, alg := range r.limiters {
		algs[name] = alg
	}
	r.mu.RUnlock()

	out := make(map[string]limiter.Snapshot, len(algs))
	for name, alg := range algs {
		out[name] = alg.Snapshot()
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
