package domain

import "errors"

var (
	// ErrBrandNotFound is returned when a slug resolves to no active record.
	ErrBrandNotFound = errors.New("brand not found")
	// ErrBrandInactive is returned when the brand exists but is deactivated.
	ErrBrandInactive = errors.New("brand is inactive")
	// ErrNotAuthorized indicates an admin secret mismatch.
	ErrNotAuthorized = errors.New("admin secret mismatch")
	// ErrParticipantNotFound is returned when a participant ID does not
	// belong to the brand.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrEmailTaken is returned when a registration reuses an email within
	// the same brand (comparison is case-insensitive).
	ErrEmailTaken = errors.New("email already registered for this brand")
	// ErrPredictionsLocked is returned when a prediction write arrives after
	// the brand's lock timestamp.
	ErrPredictionsLocked = errors.New("predictions are locked")
	// ErrQuestionNotFound indicates an unknown question key.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoAnswer is returned by prediction checks when either side of the
	// comparison has not been recorded yet.
	ErrNoAnswer = errors.New("no stored answer to check")
)
