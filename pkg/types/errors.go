package types

import "errors"

// Aggregate and collection errors.
var (
	ErrNotFound          = errors.New("property not found")
	ErrInvalidKey        = errors.New("invalid record key")
	ErrRecordNotFound    = errors.New("record not found")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrWrongVariant      = errors.New("collection not available for authority variant")
	ErrInvalidStatus     = errors.New("invalid logical status")
	ErrMissingPair       = errors.New("bilingual partner record missing")
	ErrUnknownLookup     = errors.New("unknown lookup table")
	ErrHasChildren       = errors.New("property has child properties")
)

// Editing session errors.
var (
	ErrValidationFailed = errors.New("validation failed")
	ErrSaveInProgress   = errors.New("save already in progress")
	ErrNoChanges        = errors.New("no unsaved changes")
	ErrPendingEdit      = errors.New("open record edit not applied")
)

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)
