package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cuequiz-service/internal/domain"
	"github.com/rs/zerolog"
)

// ErrRunnerStopped is returned when a command is sent after the loop exited.
var ErrRunnerStopped = errors.New("session runner stopped")

// PermissionGate performs the one-shot video capability check.
type PermissionGate interface {
	RequestVideoCapability(ctx context.Context) (bool, error)
}

// MediaPlayer receives playback commands from the session.
type MediaPlayer interface {
	Play(ctx context.Context) error
}

// Clock schedules delayed callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func())
}

// SystemClock schedules callbacks on real timers.
type SystemClock struct{}

func (SystemClock) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// Observer receives session lifecycle signals, e.g. for metrics.
type Observer interface {
	SessionStarted(catalogID string)
	PermissionDenied(catalogID string)
	AnswerSubmitted(catalogID string, correct bool)
	TimerDiscarded(kind TimerKind)
	SessionCompleted(catalogID string, summary domain.Summary)
}

// NopObserver ignores every signal.
type NopObserver struct{}

func (NopObserver) SessionStarted(string)                   {}
func (NopObserver) PermissionDenied(string)                 {}
func (NopObserver) AnswerSubmitted(string, bool)            {}
func (NopObserver) TimerDiscarded(TimerKind)                {}
func (NopObserver) SessionCompleted(string, domain.Summary) {}

// RunnerDeps are the collaborators of a Runner.
type RunnerDeps struct {
	Gate     PermissionGate
	Player   MediaPlayer
	Clock    Clock
	Observer Observer
	Logger   zerolog.Logger
}

type command struct {
	apply func(ctx context.Context) error
	reply chan error
}

// Runner is the single logical thread of a quiz session. Every state change,
// including timer expiry and permission results, is applied inside Run.
type Runner struct {
	session  *Session
	gate     PermissionGate
	player   MediaPlayer
	clock    Clock
	observer Observer
	logger   zerolog.Logger

	events chan command
	done   chan struct{}

	// owned by the loop goroutine
	gatePending bool

	mu          sync.Mutex
	latest      domain.Snapshot
	subscribers map[chan domain.Snapshot]struct{}
	stopped     bool
}

// NewRunner wraps a session. Call Run to start processing.
func NewRunner(session *Session, deps RunnerDeps) *Runner {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	return &Runner{
		session:     session,
		gate:        deps.Gate,
		player:      deps.Player,
		clock:       deps.Clock,
		observer:    deps.Observer,
		logger:      deps.Logger.With().Str("session", session.ID()).Logger(),
		events:      make(chan command, 16),
		done:        make(chan struct{}),
		latest:      session.Snapshot(),
		subscribers: make(map[chan domain.Snapshot]struct{}),
	}
}

// ID returns the session identifier.
func (r *Runner) ID() string { return r.session.ID() }

// Run processes commands until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	defer r.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-r.events:
			err := cmd.apply(ctx)
			r.publish()
			if cmd.reply != nil {
				cmd.reply <- err
			}
		}
	}
}

// Done is closed once Run has returned.
func (r *Runner) Done() <-chan struct{} { return r.done }

func (r *Runner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for ch := range r.subscribers {
		delete(r.subscribers, ch)
		close(ch)
	}
	close(r.done)
}

// do sends a command and waits for its result.
func (r *Runner) do(ctx context.Context, fn func(ctx context.Context) error) error {
	reply := make(chan error, 1)
	select {
	case r.events <- command{apply: fn, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrRunnerStopped
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrRunnerStopped
	}
}

// post enqueues a command from a callback without waiting.
func (r *Runner) post(fn func(ctx context.Context) error) {
	select {
	case r.events <- command{apply: fn}:
	case <-r.done:
	}
}

// Start requests the video capability. The session enters the playing phase
// once the gate grants it; a denial leaves it in instructions.
func (r *Runner) Start(ctx context.Context) error {
	return r.do(ctx, func(loopCtx context.Context) error {
		if r.session.Phase() != domain.PhaseInstructions || r.gatePending {
			return fmt.Errorf("start in %s: %w", r.session.Phase(), domain.ErrInvalidPhase)
		}
		r.gatePending = true
		generation := r.session.Generation()
		go func() {
			granted, err := r.gate.RequestVideoCapability(loopCtx)
			if err != nil {
				r.logger.Warn().Err(err).Msg("video capability check failed")
				granted = false
			}
			r.post(func(ctx context.Context) error {
				return r.grant(ctx, generation, granted)
			})
		}()
		return nil
	})
}

func (r *Runner) grant(ctx context.Context, generation uint64, granted bool) error {
	r.gatePending = false
	if generation != r.session.Generation() {
		r.logger.Debug().Msg("discarding capability result from previous generation")
		return nil
	}
	catalogID := r.session.Snapshot().CatalogID
	if err := r.session.Start(granted); err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			r.observer.PermissionDenied(catalogID)
			r.logger.Info().Msg("video capability denied")
		}
		return err
	}
	r.observer.SessionStarted(catalogID)
	r.logger.Info().Str("catalog", catalogID).Msg("quiz playback started")
	if r.player != nil {
		if err := r.player.Play(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("play command failed")
		}
	}
	return nil
}

// TimeUpdate feeds a media progress sample.
func (r *Runner) TimeUpdate(ctx context.Context, currentTime, duration float64) error {
	return r.do(ctx, func(context.Context) error {
		return r.session.Sample(currentTime, duration)
	})
}

// Ended handles the end-of-playback event.
func (r *Runner) Ended(ctx context.Context) error {
	return r.do(ctx, func(context.Context) error {
		t, err := r.session.End()
		if err != nil {
			return err
		}
		r.schedule(t)
		return nil
	})
}

// Select records a pending answer.
func (r *Runner) Select(ctx context.Context, questionID int, value string) error {
	return r.do(ctx, func(context.Context) error {
		return r.session.Select(questionID, value)
	})
}

// Submit freezes the active question's answer.
func (r *Runner) Submit(ctx context.Context, questionID int) error {
	return r.do(ctx, func(context.Context) error {
		t, err := r.session.Submit(questionID)
		if err != nil {
			return err
		}
		correct := r.session.Correct(questionID)
		r.observer.AnswerSubmitted(r.session.catalog.ID, correct)
		r.logger.Debug().Int("question", questionID).Bool("correct", correct).Msg("answer submitted")
		r.schedule(t)
		return nil
	})
}

// ToggleHint flips the hint for the active question.
func (r *Runner) ToggleHint(ctx context.Context) error {
	return r.do(ctx, func(context.Context) error {
		return r.session.ToggleHint()
	})
}

// Reset restarts the attempt; outstanding timers become no-ops.
func (r *Runner) Reset(ctx context.Context) error {
	return r.do(ctx, func(context.Context) error {
		r.session.Reset()
		r.logger.Debug().Uint64("generation", r.session.Generation()).Msg("session reset")
		return nil
	})
}

// Snapshot returns the state after the most recent command.
func (r *Runner) Snapshot() domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

func (r *Runner) schedule(t Timer) {
	r.clock.AfterFunc(t.Delay, func() {
		r.post(func(context.Context) error {
			if !r.session.Fire(t) {
				r.observer.TimerDiscarded(t.Kind)
				r.logger.Debug().Str("timer", string(t.Kind)).Uint64("generation", t.Generation).Msg("timer discarded")
				return nil
			}
			if t.Kind == TimerFinish {
				snap := r.session.Snapshot()
				if snap.Summary != nil {
					r.observer.SessionCompleted(snap.CatalogID, *snap.Summary)
					r.logger.Info().
						Int("correct", snap.Summary.Correct).
						Int("total", snap.Summary.Total).
						Int("percentage", snap.Summary.Percentage).
						Msg("quiz completed")
				}
			}
			return nil
		})
	})
}

// Subscribe returns a channel of snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (r *Runner) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	r.subscribers[ch] = struct{}{}
	ch <- r.latest
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Runner) publish() {
	snap := r.session.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = snap
	for ch := range r.subscribers {
		select {
		case ch <- snap:
		default:
			// slow subscriber: replace the oldest pending snapshot
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
