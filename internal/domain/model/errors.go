package model

import (
	"errors"
	"fmt"
)

// ErrInvalid marks a value rejected by model validation.
var ErrInvalid = errors.New("invalid value")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
