// Package schedule decides which question is active at a given playback time.
//
// Evaluate is a pure function of (time, answered set, current slot). It keeps
// no history, so seeking in either direction is handled by recomputation.
package schedule

import (
	"math"

	"cuequiz-service/internal/domain"
)

// CountdownWindow is how far ahead, in seconds, an upcoming question is announced.
const CountdownWindow = 3.0

// Result is the outcome of one evaluation.
type Result struct {
	ActiveID  int
	Countdown int
	// Changed is true when ActiveID differs from the slot passed in.
	Changed bool
}

// Evaluate computes the active question and countdown for currentTime.
//
// The most recently triggered unanswered question wins. When nothing is
// eligible the slot is left untouched (it may still hold a just-submitted
// question) and a countdown toward the next future trigger is computed if the
// slot is empty or answered.
func Evaluate(questions []domain.Question, currentTime float64, answered map[int]bool, activeID int) Result {
	if latest, ok := latestEligible(questions, currentTime, answered); ok {
		return Result{ActiveID: latest.ID, Changed: latest.ID != activeID}
	}

	res := Result{ActiveID: activeID}
	if activeID == domain.NoQuestion || answered[activeID] {
		res.Countdown = countdown(questions, currentTime, answered)
	}
	return res
}

// NextUnanswered returns the first unanswered question in catalog order, skipping exclude.
func NextUnanswered(questions []domain.Question, answered map[int]bool, exclude int) (domain.Question, bool) {
	for _, q := range questions {
		if q.ID != exclude && !answered[q.ID] {
			return q, true
		}
	}
	return domain.Question{}, false
}

func latestEligible(questions []domain.Question, currentTime float64, answered map[int]bool) (domain.Question, bool) {
	var (
		best  domain.Question
		found bool
	)
	for _, q := range questions {
		if answered[q.ID] || q.Trigger > currentTime {
			continue
		}
		if !found || q.Trigger > best.Trigger {
			best, found = q, true
		}
	}
	return best, found
}

func countdown(questions []domain.Question, currentTime float64, answered map[int]bool) int {
	next, ok := nextFuture(questions, currentTime, answered)
	if !ok {
		return 0
	}
	diff := next.Trigger - currentTime
	if diff > 0 && diff <= CountdownWindow {
		return int(math.Ceil(diff))
	}
	return 0
}

// nextFuture picks the unanswered question with the smallest trigger still ahead of currentTime.
// Ties keep catalog order.
func nextFuture(questions []domain.Question, currentTime float64, answered map[int]bool) (domain.Question, bool) {
	var (
		best  domain.Question
		found bool
	)
	for _, q := range questions {
		if answered[q.ID] || q.Trigger <= currentTime {
			continue
		}
		if !found || q.Trigger < best.Trigger {
			best, found = q, true
		}
	}
	return best, found
}
