package conversation

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSurveyNotFound  = errors.New("survey not found")

	// Conditions recovered within a turn by re-prompting.
	ErrUnregisteredPhone     = errors.New("phone not registered")
	ErrAnswerCountMismatch   = errors.New("answer count mismatch")
	ErrAnswerType            = errors.New("answer type error")
	ErrAmbiguousConfirmation = errors.New("ambiguous confirmation")
	ErrSelectionOutOfRange   = errors.New("selection out of range")
)
