package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
	"github.com/SmitUplenchwar2687/jobpacer/internal/gate"
	"github.com/SmitUplenchwar2687/jobpacer/internal/limiter"
	"github.com/SmitUplenchwar2687/jobpacer/internal/registry"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// scripted replays a fixed list of responses, repeating the last one.
type scripted struct {
	mu        sync.Mutex
	responses []StatusResponse
	calls     int
}

func (s *scripted) check(context.Context) (StatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return s.responses[i], nil
}

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newPoller(t *testing.T, c clock.Clock, opts ...gate.Option) *Poller {
	t.Helper()
	reg, err := registry.FromConfig(map[string]limiter.Config{
		"polls": {Algorithm: limiter.KindSlidingWindow, MaxRequests: 1000, Window: time.Minute},
	}, c)
	require.NoError(t, err)
	return New(gate.New(reg, c, opts...), c)
}

func testOptions(maxAttempts int) Options {
	opts := DefaultOptions()
	opts.Limiter = "polls"
	opts.Stage = "image generation"
	opts.Interval = 2 * time.Second
	opts.MaxAttempts = maxAttempts
	return opts
}

type result struct {
	resp StatusResponse
	err  error
}

// runPolling starts PollUntilDone and advances the clock through the given
// number of inter-poll sleeps.
func runPolling(t *testing.T, vc *clock.VirtualClock, p *Poller, check StatusCheck, opts Options, sleeps int) result {
	t.Helper()
	done := make(chan result, 1)
	go func() {
		resp, err := p.PollUntilDone(context.Background(), check, opts)
		done <- result{resp, err}
	}()
	for i := 0; i < sleeps; i++ {
		require.True(t, vc.BlockUntil(1, time.Second), "poller should be sleeping before advance %d", i+1)
		vc.Advance(opts.Interval)
	}
	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not finish")
		return result{}
	}
}

func TestPollUntilDone_SucceedsAfterInProgressStates(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	p := newPoller(t, vc)
	final := StatusResponse{"status": "succeeded", "outputs": []any{map[string]any{"href": "https://out/1"}}}
	s := &scripted{responses: []StatusResponse{
		{"status": "running"},
		{"status": "running"},
		final,
	}}

	r := runPolling(t, vc, p, s.check, testOptions(10), 2)
	require.NoError(t, r.err)
	assert.Equal(t, final, r.resp)
	assert.Equal(t, 3, s.Calls())
	assert.Equal(t, 4*time.Second, vc.Since(epoch), "exactly two sleeps at the poll interval")
	assert.Zero(t, vc.Waiters())
}

func TestPollUntilDone_FailedStatusStopsImmediately(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	p := newPoller(t, vc)
	s := &scripted{responses: []StatusResponse{{"status": "failed", "error": "bad input"}}}

	_, err := p.PollUntilDone(context.Background(), s.check, testOptions(10))
	require.ErrorIs(t, err, ErrJobFailed)

	var jf *JobFailedError
	require.ErrorAs(t, err, &jf)
	assert.Equal(t, "bad input", jf.Message)
	assert.Equal(t, "bad input", jf.Payload)
	assert.Equal(t, 1, jf.Attempt)
	assert.Equal(t, 1, s.Calls())
	assert.Contains(t, err.Error(), "image generation")
	assert.Contains(t, err.Error(), "polls")
	assert.Zero(t, vc.Since(epoch))
}

func TestPollUntilDone_FailureMessageFallbacks(t *testing.T) {
	tests := []struct {
		name string
		resp StatusResponse
		want string
	}{
		{"message field", StatusResponse{"status": "failed", "message": "quota exhausted"}, "quota exhausted"},
		{"structured error", StatusResponse{"status": "FAILED", "error": map[string]any{"code": 400}}, `{"code":400}`},
		{"nothing", StatusResponse{"status": "failed"}, "unknown error"},
		{"nested status", StatusResponse{"job": map[string]any{"status": "failed"}, "error": "boom"}, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPoller(t, clock.NewVirtualClock(epoch))
			s := &scripted{responses: []StatusResponse{tt.resp}}

			_, err := p.PollUntilDone(context.Background(), s.check, testOptions(3))
			var jf *JobFailedError
			require.ErrorAs(t, err, &jf)
			assert.Equal(t, tt.want, jf.Message)
		})
	}
}

func TestPollUntilDone_TimesOutAfterMaxAttempts(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	p := newPoller(t, vc)
	s := &scripted{responses: []StatusResponse{{"status": "pending"}}}

	r := runPolling(t, vc, p, s.check, testOptions(3), 2)
	require.ErrorIs(t, r.err, ErrJobTimedOut)

	var to *JobTimedOutError
	require.ErrorAs(t, r.err, &to)
	assert.Equal(t, 3, to.Attempts)
	assert.Equal(t, 6*time.Second, to.Budget)
	assert.Equal(t, StatusPending, to.LastStatus)
	assert.Equal(t, 3, s.Calls())
	assert.Zero(t, vc.Waiters(), "no sleep after the final attempt")
	assert.Equal(t, 4*time.Second, vc.Since(epoch))
}

func TestPollUntilDone_InfersSuccessFromOutputs(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	p := newPoller(t, vc)
	resp := StatusResponse{"outputs": []any{map[string]any{"href": "https://out/1"}}}
	s := &scripted{responses: []StatusResponse{resp}}

	got, err := p.PollUntilDone(context.Background(), s.check, testOptions(5))
	require.NoError(t, err)
	assert.Equal(t, resp, got)
	assert.Equal(t, 1, s.Calls())
}

func TestPollUntilDone_InferenceCanBeDisabled(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	p := newPoller(t, vc)
	s := &scripted{responses: []StatusResponse{
		{"outputs": []any{map[string]any{"href": "partial"}}},
		{"status": "succeeded"},
	}}
	opts := testOptions(5)
	opts.InferSuccessFromOutputs = false

	r := runPolling(t, vc, p, s.check, opts, 1)
	require.NoError(t, r.err)
	assert.Equal(t, StatusResponse{"status": "succeeded"}, r.resp)
	assert.Equal(t, 2, s.Calls())
}

func TestPollUntilDone_UnknownStatusKeepsPolling(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	p := newPoller(t, vc)
	s := &scripted{responses: []StatusResponse{
		{"status": "queued-somewhere"},
		{},
		{"status": "Succeeded"},
	}}

	r := runPolling(t, vc, p, s.check, testOptions(5), 2)
	require.NoError(t, r.err)
	assert.Equal(t, 3, s.Calls())
}

func TestPollUntilDone_TransportErrorIsFatal(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	p := newPoller(t, vc)
	refused := errors.New("connection refused")
	calls := 0
	check := func(context.Context) (StatusResponse, error) {
		calls++
		return nil, refused
	}

	_, err := p.PollUntilDone(context.Background(), check, testOptions(5))
	require.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, refused)
	assert.NotErrorIs(t, err, ErrJobFailed)
	assert.Equal(t, 1, calls)
}

func TestPollUntilDone_CancelDuringSleep(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	p := newPoller(t, vc)
	s := &scripted{responses: []StatusResponse{{"status": "running"}}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.PollUntilDone(ctx, s.check, testOptions(10))
		done <- err
	}()
	require.True(t, vc.BlockUntil(1, time.Second))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrJobTimedOut)
	case <-time.After(time.Second):
		t.Fatal("poller ignored cancellation")
	}
}

func TestPollUntilDone_EveryCheckPassesTheGate(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	var mu sync.Mutex
	admitted := 0
	p := newPoller(t, vc, gate.WithObserver(func(ev gate.Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Limiter == "polls" && ev.Admitted {
			admitted++
		}
	}))
	s := &scripted{responses: []StatusResponse{{"status": "processing"}, {"status": "processing"}, {"status": "succeeded"}}}

	r := runPolling(t, vc, p, s.check, testOptions(5), 2)
	require.NoError(t, r.err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, s.Calls(), admitted)
}

func TestPollUntilDone_GateBudgetDelaysChecks(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	reg, err := registry.FromConfig(map[string]limiter.Config{
		"tight": {Algorithm: limiter.KindFixedWindow, MaxRequests: 1, Window: 10 * time.Second},
	}, vc)
	require.NoError(t, err)
	p := New(gate.New(reg, vc), vc)
	s := &scripted{responses: []StatusResponse{{"status": "running"}, {"status": "succeeded"}}}

	opts := testOptions(5)
	opts.Limiter = "tight"
	opts.Interval = time.Second

	done := make(chan result, 1)
	go func() {
		resp, err := p.PollUntilDone(context.Background(), s.check, opts)
		done <- result{resp, err}
	}()

	// Inter-poll sleep, then the gate wait for the rest of the window.
	require.True(t, vc.BlockUntil(1, time.Second))
	vc.Advance(time.Second)
	require.True(t, vc.BlockUntil(1, time.Second))
	assert.Equal(t, 1, s.Calls())
	vc.Advance(9 * time.Second)

	select {
	case r := <-done:
		require.NoError(t, r.err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not finish")
	}
	assert.Equal(t, 2, s.Calls())
}

func TestPollUntilDone_RejectsBadOptions(t *testing.T) {
	p := newPoller(t, clock.NewVirtualClock(epoch))
	s := &scripted{responses: []StatusResponse{{"status": "succeeded"}}}

	opts := testOptions(0)
	_, err := p.PollUntilDone(context.Background(), s.check, opts)
	assert.Error(t, err)

	opts = testOptions(1)
	opts.Interval = -time.Second
	_, err = p.PollUntilDone(context.Background(), s.check, opts)
	assert.Error(t, err)

	_, err = p.PollUntilDone(context.Background(), nil, testOptions(1))
	assert.Error(t, err)
	assert.Zero(t, s.Calls())
}

func TestPollUntilDone_LogsWithPollID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	vc := clock.NewVirtualClock(epoch)
	reg := registry.New(vc)
	p := New(gate.New(reg, vc), vc, WithLogger(zap.New(core)))
	s := &scripted{responses: []StatusResponse{{"status": "succeeded"}}}

	_, err := p.PollUntilDone(context.Background(), s.check, testOptions(1))
	require.NoError(t, err)

	done := logs.FilterMessage("job completed").All()
	require.Len(t, done, 1)
	fields := done[0].ContextMap()
	assert.NotEmpty(t, fields["poll-id"])
	assert.Equal(t, "image generation", fields["stage"])
	assert.Equal(t, int64(1), fields["attempt"])
}

func TestDefaultExtractor(t *testing.T) {
	tests := []struct {
		name  string
		resp  StatusResponse
		want  Status
		found bool
	}{
		{"top level", StatusResponse{"status": "running"}, StatusRunning, true},
		{"case folded", StatusResponse{"status": " SUCCEEDED "}, StatusSucceeded, true},
		{"first output", StatusResponse{"outputs": []any{map[string]any{"status": "failed"}, map[string]any{"status": "succeeded"}}}, StatusFailed, true},
		{"job object", StatusResponse{"job": map[string]any{"status": "pending"}}, StatusPending, true},
		{"top level wins", StatusResponse{"status": "running", "job": map[string]any{"status": "failed"}}, StatusRunning, true},
		{"null status falls through", StatusResponse{"status": nil, "job": map[string]any{"status": "succeeded"}}, StatusSucceeded, true},
		{"missing", StatusResponse{"outputs": []any{map[string]any{"href": "x"}}}, "", false},
		{"empty", StatusResponse{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := DefaultExtractor(tt.resp)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus_InProgress(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusRunning, StatusProcessing} {
		assert.True(t, s.InProgress(), s)
	}
	for _, s := range []Status{StatusSucceeded, StatusFailed, StatusUnknown, "queued"} {
		assert.False(t, s.InProgress(), s)
	}
}
