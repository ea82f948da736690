package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cuequiz-service/internal/catalog"
	"cuequiz-service/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, f)
	c.delays = append(c.delays, d)
}

func (c *manualClock) fireAll() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

type stubGate struct {
	granted bool
	calls   atomic.Int32
}

func (g *stubGate) RequestVideoCapability(context.Context) (bool, error) {
	g.calls.Add(1)
	return g.granted, nil
}

type stubPlayer struct {
	plays atomic.Int32
}

func (p *stubPlayer) Play(context.Context) error {
	p.plays.Add(1)
	return nil
}

type countingObserver struct {
	NopObserver
	mu        sync.Mutex
	discarded int
	completed int
	denied    int
}

func (o *countingObserver) TimerDiscarded(TimerKind) {
	o.mu.Lock()
	o.discarded++
	o.mu.Unlock()
}

func (o *countingObserver) SessionCompleted(string, domain.Summary) {
	o.mu.Lock()
	o.completed++
	o.mu.Unlock()
}

func (o *countingObserver) PermissionDenied(string) {
	o.mu.Lock()
	o.denied++
	o.mu.Unlock()
}

type harness struct {
	runner   *Runner
	clock    *manualClock
	gate     *stubGate
	player   *stubPlayer
	observer *countingObserver
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, granted bool) *harness {
	t.Helper()
	h := &harness{
		clock:    &manualClock{},
		gate:     &stubGate{granted: granted},
		player:   &stubPlayer{},
		observer: &countingObserver{},
	}
	h.runner = NewRunner(NewSession("s1", catalog.Default(), Options{}), RunnerDeps{
		Gate:     h.gate,
		Player:   h.player,
		Clock:    h.clock,
		Observer: h.observer,
		Logger:   zerolog.Nop(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { _ = h.runner.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.runner.Done()
	})
	return h
}

func waitForSnapshot(t *testing.T, ch <-chan domain.Snapshot, pred func(domain.Snapshot) bool) domain.Snapshot {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			require.True(t, ok, "subscription closed")
			if pred(snap) {
				return snap
			}
		case <-timeout:
			t.Fatalf("timed out waiting for snapshot")
		}
	}
}

// flush waits until every event queued before it has been applied.
func (h *harness) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, h.runner.do(context.Background(), func(context.Context) error { return nil }))
}

func TestRunnerStartGrantedPlays(t *testing.T) {
	h := newHarness(t, true)
	updates, cancel := h.runner.Subscribe()
	defer cancel()

	require.NoError(t, h.runner.Start(context.Background()))
	waitForSnapshot(t, updates, func(s domain.Snapshot) bool { return s.Phase == domain.PhasePlaying })

	assert.Equal(t, int32(1), h.gate.calls.Load())
	assert.Equal(t, int32(1), h.player.plays.Load())
}

func TestRunnerStartDenied(t *testing.T) {
	h := newHarness(t, false)
	updates, cancel := h.runner.Subscribe()
	defer cancel()

	require.NoError(t, h.runner.Start(context.Background()))
	snap := waitForSnapshot(t, updates, func(s domain.Snapshot) bool { return s.Denied })

	assert.Equal(t, domain.PhaseInstructions, snap.Phase)
	assert.Zero(t, h.player.plays.Load())
	h.flush(t)
	h.observer.mu.Lock()
	assert.Equal(t, 1, h.observer.denied)
	h.observer.mu.Unlock()
}

func TestRunnerSubmitAdvanceAndComplete(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	updates, cancel := h.runner.Subscribe()
	defer cancel()

	require.NoError(t, h.runner.Start(ctx))
	waitForSnapshot(t, updates, func(s domain.Snapshot) bool { return s.Phase == domain.PhasePlaying })

	require.NoError(t, h.runner.TimeUpdate(ctx, 2.5, 40))
	require.NoError(t, h.runner.Select(ctx, 1, "Berlin"))
	require.NoError(t, h.runner.Submit(ctx, 1))

	snap := h.runner.Snapshot()
	assert.True(t, snap.Reveal)
	assert.True(t, snap.RevealCorrect)

	h.clock.fireAll()
	h.flush(t)
	snap = h.runner.Snapshot()
	assert.False(t, snap.Reveal)
	assert.Equal(t, domain.NoQuestion, snap.ActiveID)

	require.NoError(t, h.runner.Ended(ctx))
	assert.Equal(t, domain.PhaseLoading, h.runner.Snapshot().Phase)
	assert.True(t, errors.Is(h.runner.Ended(ctx), domain.ErrInvalidPhase))

	h.clock.fireAll()
	h.flush(t)
	snap = h.runner.Snapshot()
	require.Equal(t, domain.PhaseComplete, snap.Phase)
	require.NotNil(t, snap.Summary)
	assert.Equal(t, 1, snap.Summary.Correct)
	assert.Equal(t, 4, snap.Summary.Skipped)
	assert.Equal(t, 20, snap.Summary.Percentage)
	assert.Equal(t, []time.Duration{DefaultRevealDelay, DefaultLoadingDelay}, h.clock.delays)
}

func TestRunnerResetDiscardsStaleAdvance(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	updates, cancel := h.runner.Subscribe()
	defer cancel()

	require.NoError(t, h.runner.Start(ctx))
	waitForSnapshot(t, updates, func(s domain.Snapshot) bool { return s.Phase == domain.PhasePlaying })
	require.NoError(t, h.runner.TimeUpdate(ctx, 3, 40))
	require.NoError(t, h.runner.Select(ctx, 1, "Berlin"))
	require.NoError(t, h.runner.Submit(ctx, 1))
	require.NoError(t, h.runner.Reset(ctx))

	h.clock.fireAll()
	h.flush(t)

	snap := h.runner.Snapshot()
	assert.Equal(t, domain.PhaseInstructions, snap.Phase)
	assert.Empty(t, snap.Submitted)
	h.observer.mu.Lock()
	assert.Equal(t, 1, h.observer.discarded)
	h.observer.mu.Unlock()
}

func TestRunnerEmptySubmitRejected(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	updates, cancel := h.runner.Subscribe()
	defer cancel()

	require.NoError(t, h.runner.Start(ctx))
	waitForSnapshot(t, updates, func(s domain.Snapshot) bool { return s.Phase == domain.PhasePlaying })
	require.NoError(t, h.runner.TimeUpdate(ctx, 3, 40))

	err := h.runner.Submit(ctx, 1)
	assert.True(t, errors.Is(err, domain.ErrEmptyAnswer))
	assert.True(t, domain.IsRejection(err))
	assert.False(t, h.runner.Snapshot().Reveal)
}

func TestRunnerStoppedClosesSubscribers(t *testing.T) {
	h := newHarness(t, true)
	updates, _ := h.runner.Subscribe()
	<-updates // initial snapshot

	h.cancel()
	<-h.runner.Done()

	_, ok := <-updates
	assert.False(t, ok)
	assert.True(t, errors.Is(h.runner.Reset(context.Background()), ErrRunnerStopped))
}
