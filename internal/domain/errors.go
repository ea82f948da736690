package domain

import "errors"

var (
	// ErrPermissionDenied is returned when the video capability check is refused.
	ErrPermissionDenied = errors.New("video capability permission denied")
	// ErrEmptyAnswer is returned when a submit is attempted without a pending value.
	ErrEmptyAnswer = errors.New("answer is empty")
	// ErrAlreadySubmitted indicates the question's answer is frozen.
	ErrAlreadySubmitted = errors.New("answer already submitted")
	// ErrQuestionNotFound indicates a question ID is not part of the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNotActive indicates a submit for a question that is not the active one.
	ErrNotActive = errors.New("question is not active")
	// ErrInvalidPhase indicates the operation is not allowed in the current phase.
	ErrInvalidPhase = errors.New("operation not allowed in current phase")
	// ErrCatalogNotFound indicates the question catalog could not be loaded.
	ErrCatalogNotFound = errors.New("catalog not found")
	// ErrInvalidCatalog indicates the catalog breaks ordering or identity rules.
	ErrInvalidCatalog = errors.New("invalid catalog")
	// ErrSessionNotFound is returned when a quiz session is unknown.
	ErrSessionNotFound = errors.New("quiz session not found")
)

// IsRejection reports whether err is a local no-op rejection that should not be shown to the user.
func IsRejection(err error) bool {
	return errors.Is(err, ErrEmptyAnswer) ||
		errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrNotActive) ||
		errors.Is(err, ErrInvalidPhase)
}
