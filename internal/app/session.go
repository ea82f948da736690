package app

import (
	"fmt"
	"math"
	"sort"
	"time"

	"cuequiz-service/internal/domain"
	"cuequiz-service/internal/schedule"
)

const (
	// DefaultRevealDelay is how long the correctness reveal stays before advancing.
	DefaultRevealDelay = 1500 * time.Millisecond
	// DefaultLoadingDelay is the pause between video end and the results screen.
	DefaultLoadingDelay = 2 * time.Second
)

// TimerKind identifies a delayed transition.
type TimerKind string

const (
	TimerAdvance TimerKind = "advance"
	TimerFinish  TimerKind = "finish"
)

// Timer is a delayed transition requested by the session. The caller schedules
// it and hands it back to Fire once Delay has elapsed.
type Timer struct {
	Kind       TimerKind
	Generation uint64
	Delay      time.Duration
	QuestionID int // just-submitted question for TimerAdvance
}

// Options tune session pacing.
type Options struct {
	RevealDelay  time.Duration
	LoadingDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.RevealDelay <= 0 {
		o.RevealDelay = DefaultRevealDelay
	}
	if o.LoadingDelay <= 0 {
		o.LoadingDelay = DefaultLoadingDelay
	}
	return o
}

// Session is the state of one quiz attempt. It is owned by a single goroutine
// and performs no locking.
type Session struct {
	id      string
	catalog domain.Catalog
	opts    Options

	generation uint64
	phase      domain.Phase
	activeID   int
	countdown  int
	reveal     bool
	hint       bool
	denied     bool
	progress   float64
	lastTime   float64
	records    map[int]*domain.AnswerRecord
	submitted  map[int]bool
	summary    *domain.Summary
}

// NewSession creates a session in the instructions phase.
func NewSession(id string, catalog domain.Catalog, opts Options) *Session {
	s := &Session{
		id:      id,
		catalog: catalog,
		opts:    opts.withDefaults(),
	}
	s.clear()
	s.phase = domain.PhaseInstructions
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Phase returns the current phase.
func (s *Session) Phase() domain.Phase { return s.phase }

// Generation returns the current generation token.
func (s *Session) Generation() uint64 { return s.generation }

func (s *Session) clear() {
	s.activeID = domain.NoQuestion
	s.countdown = 0
	s.reveal = false
	s.hint = false
	s.denied = false
	s.progress = 0
	s.lastTime = 0
	s.records = make(map[int]*domain.AnswerRecord)
	s.submitted = make(map[int]bool)
	s.summary = nil
}

// Start moves to the playing phase once the capability check has been granted.
func (s *Session) Start(granted bool) error {
	if s.phase != domain.PhaseInstructions {
		return fmt.Errorf("start in %s: %w", s.phase, domain.ErrInvalidPhase)
	}
	if !granted {
		s.denied = true
		return domain.ErrPermissionDenied
	}
	s.clear()
	s.phase = domain.PhasePlaying
	return nil
}

// Sample feeds a playback position into the activation engine. Duration values
// that are not positive stand in for missing metadata and are treated as 1.
func (s *Session) Sample(currentTime, duration float64) error {
	if s.phase != domain.PhasePlaying {
		return fmt.Errorf("sample in %s: %w", s.phase, domain.ErrInvalidPhase)
	}
	if math.IsNaN(currentTime) || math.IsInf(currentTime, 0) {
		return nil
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		duration = 1
	}
	s.progress = currentTime / duration * 100
	s.lastTime = currentTime
	s.evaluate()
	return nil
}

func (s *Session) evaluate() {
	res := schedule.Evaluate(s.catalog.Questions, s.lastTime, s.submitted, s.activeID)
	if res.Changed {
		s.activate(res.ActiveID)
		return
	}
	s.countdown = res.Countdown
}

func (s *Session) activate(id int) {
	s.activeID = id
	s.countdown = 0
	s.hint = false
	s.reveal = false
}

// Select records a pending answer. Submitted answers are frozen.
func (s *Session) Select(questionID int, value string) error {
	if s.phase != domain.PhasePlaying {
		return fmt.Errorf("select in %s: %w", s.phase, domain.ErrInvalidPhase)
	}
	if _, ok := s.catalog.Find(questionID); !ok {
		return fmt.Errorf("select %d: %w", questionID, domain.ErrQuestionNotFound)
	}
	rec := s.record(questionID)
	if rec.Submitted {
		return fmt.Errorf("select %d: %w", questionID, domain.ErrAlreadySubmitted)
	}
	rec.Value = value
	return nil
}

func (s *Session) record(questionID int) *domain.AnswerRecord {
	rec, ok := s.records[questionID]
	if !ok {
		rec = &domain.AnswerRecord{QuestionID: questionID}
		s.records[questionID] = rec
	}
	return rec
}

// Submit freezes the pending answer of the active question and turns on the
// reveal. The returned timer must be fired to advance to the next question.
func (s *Session) Submit(questionID int) (Timer, error) {
	if s.phase != domain.PhasePlaying {
		return Timer{}, fmt.Errorf("submit in %s: %w", s.phase, domain.ErrInvalidPhase)
	}
	if _, ok := s.catalog.Find(questionID); !ok {
		return Timer{}, fmt.Errorf("submit %d: %w", questionID, domain.ErrQuestionNotFound)
	}
	if s.submitted[questionID] {
		return Timer{}, fmt.Errorf("submit %d: %w", questionID, domain.ErrAlreadySubmitted)
	}
	if questionID != s.activeID {
		return Timer{}, fmt.Errorf("submit %d: %w", questionID, domain.ErrNotActive)
	}
	rec, ok := s.records[questionID]
	if !ok || rec.Value == "" {
		return Timer{}, fmt.Errorf("submit %d: %w", questionID, domain.ErrEmptyAnswer)
	}

	rec.Submitted = true
	s.submitted[questionID] = true
	s.reveal = true
	return Timer{
		Kind:       TimerAdvance,
		Generation: s.generation,
		Delay:      s.opts.RevealDelay,
		QuestionID: questionID,
	}, nil
}

// Correct reports whether the question was submitted with the right answer.
func (s *Session) Correct(questionID int) bool {
	q, ok := s.catalog.Find(questionID)
	rec := s.records[questionID]
	return ok && rec != nil && rec.Submitted && q.IsCorrect(rec.Value)
}

// ToggleHint flips the hint for the active question.
func (s *Session) ToggleHint() error {
	if s.phase != domain.PhasePlaying || s.activeID == domain.NoQuestion {
		return fmt.Errorf("hint in %s: %w", s.phase, domain.ErrInvalidPhase)
	}
	s.hint = !s.hint
	return nil
}

// End handles the end-of-playback event.
func (s *Session) End() (Timer, error) {
	if s.phase != domain.PhasePlaying {
		return Timer{}, fmt.Errorf("end in %s: %w", s.phase, domain.ErrInvalidPhase)
	}
	s.phase = domain.PhaseLoading
	return Timer{
		Kind:       TimerFinish,
		Generation: s.generation,
		Delay:      s.opts.LoadingDelay,
	}, nil
}

// Fire applies a previously requested timer. It returns false when the timer
// is stale (issued before a reset) or no longer applicable.
func (s *Session) Fire(t Timer) bool {
	if t.Generation != s.generation {
		return false
	}
	switch t.Kind {
	case TimerAdvance:
		if s.phase != domain.PhasePlaying {
			return false
		}
		s.advance(t.QuestionID)
		return true
	case TimerFinish:
		if s.phase != domain.PhaseLoading {
			return false
		}
		summary := Summarize(s.catalog, s.records)
		s.summary = &summary
		s.phase = domain.PhaseComplete
		return true
	default:
		return false
	}
}

func (s *Session) advance(justSubmitted int) {
	s.reveal = false
	next := domain.NoQuestion
	if q, ok := schedule.NextUnanswered(s.catalog.Questions, s.submitted, justSubmitted); ok && q.Trigger <= s.lastTime {
		next = q.ID
	}
	if next != s.activeID {
		s.activate(next)
	}
	s.evaluate()
}

// Reset returns to the initial state and invalidates outstanding timers.
func (s *Session) Reset() {
	s.generation++
	s.clear()
	s.phase = domain.PhaseInstructions
}

// Snapshot returns a copy of the state for rendering.
func (s *Session) Snapshot() domain.Snapshot {
	snap := domain.Snapshot{
		SessionID: s.id,
		CatalogID: s.catalog.ID,
		Phase:     s.phase,
		ActiveID:  s.activeID,
		Countdown: s.countdown,
		Reveal:    s.reveal,
		Hint:      s.hint,
		Denied:    s.denied,
		Answers:   make(map[int]string, len(s.records)),
		Submitted: make([]int, 0, len(s.submitted)),
		Answered:  len(s.submitted),
		Total:     s.catalog.Len(),
		Progress:  s.progress,
	}
	if q, ok := s.catalog.Find(s.activeID); ok {
		snap.Active = &q
		snap.RevealCorrect = s.reveal && s.Correct(q.ID)
	}
	for id, rec := range s.records {
		if rec.Value != "" {
			snap.Answers[id] = rec.Value
		}
	}
	for id := range s.submitted {
		snap.Submitted = append(snap.Submitted, id)
	}
	sort.Ints(snap.Submitted)
	if s.summary != nil {
		summary := *s.summary
		snap.Summary = &summary
	}
	return snap
}
