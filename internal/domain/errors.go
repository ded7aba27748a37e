package domain

import "errors"

var (
	// Ledger and matching failures. All are local validation errors surfaced
	// synchronously to the caller; nothing is retried inside the core.
	ErrInvalidPrice       = errors.New("price outside [0, $1]")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrSelfDebt           = errors.New("issuer and holder must differ")
	ErrNotHolder          = errors.New("player is not the current holder")
	ErrInsufficientAmount = errors.New("amount exceeds iou balance")
	ErrUnknownCondition   = errors.New("unknown or resolved condition")
	ErrDuplicateCondition = errors.New("identical open condition exists")
	ErrAlreadyResolved    = errors.New("condition already resolved")

	// Player registry failures.
	ErrInvalidPlayerName = errors.New("invalid player name")
	ErrDuplicatePlayer   = errors.New("player name already taken")
	ErrPlayerLocked      = errors.New("player is locked")

	// Infrastructure failures shared by stores and caches.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
)
