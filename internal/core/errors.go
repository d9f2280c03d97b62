package core

import "errors"

var (
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrStorageFailure  = errors.New("storage failure")
	ErrNotFound        = errors.New("not found")
	ErrEmptyMonth      = errors.New("empty month")
	ErrEmptyCategory   = errors.New("empty category")
	ErrUnknownCategory = errors.New("unknown category")
)
