package domain

import (
	"errors"
)

// ErrorKind classifies failures surfaced by the allocation engine
type ErrorKind string

const (
	KindInvalidAmount      ErrorKind = "INVALID_AMOUNT"
	KindInvalidDescription ErrorKind = "INVALID_DESCRIPTION"
	KindNoEligibleBudget   ErrorKind = "NO_ELIGIBLE_BUDGET"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindPermissionDenied   ErrorKind = "PERMISSION_DENIED"
	KindIneligible         ErrorKind = "INELIGIBLE"      // selected budget lost eligibility before commit
	KindOutcomeUnknown     ErrorKind = "OUTCOME_UNKNOWN" // commit may have happened, must not be retried
	KindInternal           ErrorKind = "INTERNAL"
)

// Error is a typed domain error. Kind drives retry decisions and the mapping to
// user facing responses, Message is safe to show to the caller.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	ErrNoEligibleBudget = &Error{Kind: KindNoEligibleBudget, Message: "no active budget with sufficient funds found"}
	ErrIneligible       = &Error{Kind: KindIneligible, Message: "budget is no longer eligible"}
	ErrBudgetNotFound   = &Error{Kind: KindNotFound, Message: "budget not found"}
	ErrTeamNotFound     = &Error{Kind: KindNotFound, Message: "team not found"}
	ErrUserNotFound     = &Error{Kind: KindNotFound, Message: "user not found"}
	ErrOutcomeUnknown   = &Error{Kind: KindOutcomeUnknown, Message: "purchase completed, status unknown"}
	ErrAdminRequired    = &Error{Kind: KindPermissionDenied, Message: "admin role required"}
)

// NewInvalidAmountError creates a validation error for a rejected amount
func NewInvalidAmountError(message string) *Error {
	return &Error{Kind: KindInvalidAmount, Message: message}
}

// NewInvalidDescriptionError creates a validation error for a rejected description
func NewInvalidDescriptionError(message string) *Error {
	return &Error{Kind: KindInvalidDescription, Message: message}
}

// NewOutcomeUnknownError wraps a commit failure whose effect on the store cannot be determined
func NewOutcomeUnknownError(err error) *Error {
	return &Error{Kind: KindOutcomeUnknown, Message: ErrOutcomeUnknown.Message, Err: err}
}

// KindOf returns the kind of the first domain error in err's chain.
// Errors that carry no domain kind are INTERNAL.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindInternal
}

// IsValidationError reports whether err was caused by bad caller input
func IsValidationError(err error) bool {
	kind := KindOf(err)
	return kind == KindInvalidAmount || kind == KindInvalidDescription
}
