package workitem

import (
	"errors"
	"fmt"
)

// ErrContractViolation marks data from an upstream collaborator that breaks its documented shape.
// These errors are never masked or defaulted.
var ErrContractViolation = errors.New("contract violation")

// Violation builds an error wrapping ErrContractViolation.
func Violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
}
