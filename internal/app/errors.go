package service

import (
	"errors"
	"fmt"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/policy"
)

var (
	// ErrInvalidInput marks a request rejected by validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a missing account or an empty listing page.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists marks a user id or email that is already taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrStorage marks a failure of the backing store.
	ErrStorage = errors.New("storage error")
	// ErrNotStarted is returned by every query before Start.
	ErrNotStarted = errors.New("service not started")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// classify maps lower layer errors onto the service sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrStorage), errors.Is(err, ErrNotStarted):
		return err
	case errors.Is(err, model.ErrInvalid), errors.Is(err, policy.ErrUnknownTaskType),
		errors.Is(err, repository.ErrInvalidLimit):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrAlreadyExists):
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
