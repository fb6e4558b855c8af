package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound        = errors.New("account not found")
	ErrAlreadyExists   = errors.New("account already exists")
	ErrConflict        = errors.New("concurrent update conflict")
	ErrInvalidLimit    = errors.New("invalid limit")
	ErrCounterDecrease = errors.New("account counters may not decrease")
)
