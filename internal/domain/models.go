package domain

import (
	"fmt"
	"math"
)

// NoQuestion marks an empty active-question slot.
const NoQuestion = 0

// Question is a single timed quiz item. Questions are immutable once loaded.
type Question struct {
	ID            int      `json:"id" yaml:"id"`
	Prompt        string   `json:"prompt" yaml:"prompt"`
	Options       []string `json:"options,omitempty" yaml:"options"` // empty means free text
	CorrectAnswer string   `json:"correctAnswer" yaml:"correctAnswer"`
	Trigger       float64  `json:"trigger" yaml:"trigger"`           // seconds into the video
	AnswerWindow  string   `json:"answerWindow" yaml:"answerWindow"` // display only
}

// Kind reports whether the question is answered by picking an option or by typing.
func (q Question) Kind() string {
	if len(q.Options) > 0 {
		return "multiple-choice"
	}
	return "fill-in"
}

// IsCorrect compares a frozen answer with the expected value. Case-sensitive, no normalization.
func (q Question) IsCorrect(value string) bool {
	return value == q.CorrectAnswer
}

// Catalog is the ordered list of questions attached to one video.
type Catalog struct {
	ID        string     `json:"id" yaml:"id"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Len returns the number of questions.
func (c Catalog) Len() int {
	return len(c.Questions)
}

// Find returns the question with the given id.
func (c Catalog) Find(id int) (Question, bool) {
	for _, q := range c.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Validate checks ids are positive and unique and triggers strictly increase in catalog order.
func (c Catalog) Validate() error {
	if len(c.Questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidCatalog)
	}
	seen := make(map[int]struct{}, len(c.Questions))
	prev := math.Inf(-1)
	for i, q := range c.Questions {
		if q.ID <= NoQuestion {
			return fmt.Errorf("%w: question %d has non-positive id %d", ErrInvalidCatalog, i, q.ID)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %d", ErrInvalidCatalog, q.ID)
		}
		seen[q.ID] = struct{}{}
		if q.Trigger < 0 || math.IsNaN(q.Trigger) {
			return fmt.Errorf("%w: question %d has invalid trigger %v", ErrInvalidCatalog, q.ID, q.Trigger)
		}
		if q.Trigger <= prev {
			return fmt.Errorf("%w: question %d trigger %v does not follow %v", ErrInvalidCatalog, q.ID, q.Trigger, prev)
		}
		prev = q.Trigger
	}
	return nil
}

// Phase is the coarse stage of a quiz attempt.
type Phase string

const (
	PhaseInstructions Phase = "instructions"
	PhasePlaying      Phase = "playing"
	PhaseLoading      Phase = "loading"
	PhaseComplete     Phase = "complete"
)

// AnswerRecord is created on first interaction with a question.
// Once Submitted is true the Value must never change.
type AnswerRecord struct {
	QuestionID int    `json:"questionId"`
	Value      string `json:"value"`
	Submitted  bool   `json:"submitted"`
}

// Outcome classifies a question in the final summary.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeSkipped   Outcome = "skipped"
)

// SummaryItem is the per-question row of the results screen.
type SummaryItem struct {
	QuestionID    int     `json:"questionId"`
	Prompt        string  `json:"prompt"`
	Answer        string  `json:"answer,omitempty"`
	CorrectAnswer string  `json:"correctAnswer"`
	Outcome       Outcome `json:"outcome"`
}

// Summary is the scored result of a completed attempt.
type Summary struct {
	Correct    int           `json:"correct"`
	Incorrect  int           `json:"incorrect"`
	Skipped    int           `json:"skipped"`
	Total      int           `json:"total"`
	Percentage int           `json:"percentage"`
	Items      []SummaryItem `json:"items"`
}

// Snapshot is the read model handed to the presentation layer.
type Snapshot struct {
	SessionID     string         `json:"sessionId"`
	CatalogID     string         `json:"catalogId"`
	Phase         Phase          `json:"phase"`
	ActiveID      int            `json:"activeId"` // NoQuestion when empty
	Active        *Question      `json:"active,omitempty"`
	Countdown     int            `json:"countdown"`
	Reveal        bool           `json:"reveal"`
	RevealCorrect bool           `json:"revealCorrect"`
	Hint          bool           `json:"hint"`
	Denied        bool           `json:"permissionDenied"`
	Answers       map[int]string `json:"answers"`
	Submitted     []int          `json:"submitted"`
	Answered      int            `json:"answered"`
	Total         int            `json:"total"`
	Progress      float64        `json:"progress"`
	Summary       *Summary       `json:"summary,omitempty"`
}
