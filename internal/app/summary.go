package app

import (
	"math"

	"cuequiz-service/internal/domain"
)

// Summarize scores an attempt. Unsubmitted questions count as skipped even if a
// pending value exists, and every question counts toward the denominator.
func Summarize(catalog domain.Catalog, records map[int]*domain.AnswerRecord) domain.Summary {
	summary := domain.Summary{
		Total: catalog.Len(),
		Items: make([]domain.SummaryItem, 0, catalog.Len()),
	}
	for _, q := range catalog.Questions {
		item := domain.SummaryItem{
			QuestionID:    q.ID,
			Prompt:        q.Prompt,
			CorrectAnswer: q.CorrectAnswer,
			Outcome:       domain.OutcomeSkipped,
		}
		if rec, ok := records[q.ID]; ok && rec.Submitted {
			item.Answer = rec.Value
			if q.IsCorrect(rec.Value) {
				item.Outcome = domain.OutcomeCorrect
			} else {
				item.Outcome = domain.OutcomeIncorrect
			}
		}
		switch item.Outcome {
		case domain.OutcomeCorrect:
			summary.Correct++
		case domain.OutcomeIncorrect:
			summary.Incorrect++
		default:
			summary.Skipped++
		}
		summary.Items = append(summary.Items, item)
	}
	if summary.Total > 0 && summary.Correct+summary.Incorrect > 0 {
		summary.Percentage = int(math.Round(float64(summary.Correct) / float64(summary.Total) * 100))
	}
	return summary
}
