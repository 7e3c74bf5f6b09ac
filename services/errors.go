package services

import "errors"

// Shared errors used across services and the HTTP mapping layer.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business-rule errors.
	ErrValidationFailed   = errors.New("validation failed")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrTournamentFull       = errors.New("tournament registration is full")
	ErrNotEnoughPlayers     = errors.New("not enough checked-in players")
	ErrGroupStageUnfinished = errors.New("group stage has unfinished matches")

	// Conflict errors.
	ErrUserEmailConflict      = errors.New("email address is already in use")
	ErrRegistrationConflict   = errors.New("player is already registered for this tournament")
	ErrTournamentNameConflict = errors.New("tournament name already exists")
	ErrConcurrentUpdate       = errors.New("resource was modified concurrently, retry the request")
	ErrRatingAlreadyApplied   = errors.New("ratings were already applied for this tournament")

	// State-machine errors.
	ErrInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrInvalidMatchTransition  = errors.New("invalid match state transition")
	ErrTournamentCanceled      = errors.New("tournament is canceled")

	// Authentication and authorization.
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")

	// Entity-specific not-found errors.
	ErrUserNotFound       = errors.New("user not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrPlayerNotFound     = errors.New("tournament player not found")
	ErrMatchNotFound      = errors.New("match not found")
)
