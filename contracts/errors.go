package contracts

import "errors"

// Every precondition failure maps to exactly one of these sentinels so that
// callers can tell "retry with different input" from "not authorized" from
// "already finished" with errors.Is. Contract methods wrap them with context.
var (
	ErrInvalidSerialNumber     = errors.New("invalid serial number: must be 1-50 characters")
	ErrInvalidDescription      = errors.New("invalid description: must be 1-200 characters")
	ErrInvalidStageName        = errors.New("invalid stage name: must be 1-50 characters")
	ErrTooManyStages           = errors.New("too many stages: maximum 10 stages allowed")
	ErrNoStages                = errors.New("no stages defined")
	ErrInvalidStageIndex       = errors.New("invalid stage index")
	ErrStageAlreadyCompleted   = errors.New("current stage already completed")
	ErrUnauthorizedAccess      = errors.New("unauthorized access")
	ErrInvalidOwner            = errors.New("invalid owner: must not be empty")
	ErrProductAlreadyDelivered = errors.New("product already delivered")
	ErrCounterOverflow         = errors.New("event counter overflow")
	ErrProductAlreadyExists    = errors.New("product already exists")
	ErrEventAlreadyExists      = errors.New("event already exists")
	ErrProductNotFound         = errors.New("product not found")
	ErrEventNotFound           = errors.New("event not found")
)
