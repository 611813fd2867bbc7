package billing

import "errors"

// Error kinds.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientBalance = errors.New("insufficient ticket balance")
	ErrUpstreamProvider    = errors.New("payment provider error")
)

var (
	ErrInvalidAmount       = NewError(ErrValidation, "amount must be greater than zero")
	ErrInvalidBillingCycle = NewError(ErrValidation, "unknown billing cycle")
	ErrInvalidStatus       = NewError(ErrValidation, "unknown subscription status")
	ErrInvalidDelta        = NewError(ErrValidation, "adjustment must not be zero")
	ErrPlanInactive        = NewError(ErrValidation, "subscription plan is not active")
	ErrMissingProviderRef  = NewError(ErrValidation, "provider reference is required")
	ErrMissingPriceRef     = NewError(ErrValidation, "plan has no provider price for billing cycle")

	ErrPlanNotFound          = NewError(ErrNotFound, "subscription plan not found")
	ErrSubscriptionNotFound  = NewError(ErrNotFound, "subscription not found")
	ErrTicketAccountNotFound = NewError(ErrNotFound, "ticket account not found")
	ErrPaymentNotFound       = NewError(ErrNotFound, "payment transaction not found")

	ErrActiveSubscriptionExists = NewError(ErrConflict, "user already has an active subscription")
	ErrInvalidTransition        = NewError(ErrConflict, "subscription status transition not allowed")
	ErrDuplicateTicketAccount   = NewError(ErrConflict, "ticket account already exists")
	ErrDuplicateInvoice         = NewError(ErrConflict, "payment for invoice already recorded")
	ErrDuplicatePlanName        = NewError(ErrConflict, "plan name already taken")
)

// Error is a classified error. Is reports a match against its kind, so
// errors.Is(ErrPlanNotFound, ErrNotFound) holds.
type Error struct {
	kind error
	msg  string
}

// NewError creates a classified error.
func NewError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// Kind returns the taxonomy sentinel of err, or nil if err is unclassified.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrInsufficientBalance, ErrUpstreamProvider} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
