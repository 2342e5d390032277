package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. All of these are
// expected, recoverable outcomes returned to callers; only infrastructure
// failures (store unavailable) travel as wrapped foreign errors.

var (
	// Diplomacy errors
	ErrInvalidState     = errors.New("transition not legal from current relation state")
	ErrDuplicateRequest = errors.New("a request is already pending for this guild pair")
	ErrNoPendingRequest = errors.New("no pending request exists for this guild pair")
	ErrStillAllied      = errors.New("alliance must be broken before declaring war")

	// Vault errors
	ErrInvalidAmount     = errors.New("amount must be a positive integer within range")
	ErrInsufficientFunds = errors.New("vault balance is insufficient")

	// Shared errors
	ErrNotFound         = errors.New("record not found")
	ErrPermissionDenied = errors.New("actor lacks permission for this operation")

	// Party errors
	ErrAlreadyInParty = errors.New("guild already belongs to an active party")
	ErrPartyInactive  = errors.New("party is not active")
	ErrNotPartyLeader = errors.New("only the party leader may perform this operation")
	ErrPartyFull      = errors.New("party has reached its guild limit")
)
