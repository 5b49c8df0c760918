package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnavailable        = errors.New("order service unavailable")
	ErrEmptyCart          = fmt.Errorf("%w: cart is empty, nothing to checkout", ErrValidation)
	ErrCheckoutInProgress = errors.New("checkout with this idempotency key is already in progress")
	ErrReferenceConflict  = errors.New("order reference already used for different items")
)

// TransitionError names both ends of a rejected status change.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
