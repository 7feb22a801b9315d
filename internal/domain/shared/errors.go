package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so that detailed errors created with
// NewDomainError still satisfy errors.Is against the sentinels below.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a VALIDATION_ERROR with a formatted message
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// Error codes
const (
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeValidation          = "VALIDATION_ERROR"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeInvalidState        = "INVALID_STATE"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeDuplicateProcessing = "DUPLICATE_PROCESSING"
	CodePartialReversal     = "PARTIAL_REVERSAL"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrValidation          = NewDomainError(CodeValidation, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrInsufficientBalance = NewDomainError(CodeInsufficientBalance, "Insufficient balance available")
	ErrDuplicateProcessing = NewDomainError(CodeDuplicateProcessing, "Operation was already processed")
	ErrPartialReversal     = NewDomainError(CodePartialReversal, "Reversal completed only partially")
)

// InsufficientStockError is returned when a consumption exceeds the available weight.
type InsufficientStockError struct {
	Subject   string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %s, requested %s",
		e.Subject, e.Available.String(), e.Requested.String())
}

// Unwrap exposes the INSUFFICIENT_STOCK domain error for code mapping.
func (e *InsufficientStockError) Unwrap() error {
	return NewDomainError(CodeInsufficientStock, e.Error())
}

// NewInsufficientStockError creates an InsufficientStockError
func NewInsufficientStockError(subject string, available, requested decimal.Decimal) *InsufficientStockError {
	return &InsufficientStockError{Subject: subject, Available: available, Requested: requested}
}

// ItemFailure records a single item that could not be reversed.
type ItemFailure struct {
	ItemID string
	Err    error
}

// PartialReversalError aggregates the item failures of a best-effort reversal.
type PartialReversalError struct {
	Operation string
	Succeeded int
	Failures  []ItemFailure
}

func (e *PartialReversalError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.ItemID)
	}
	return fmt.Sprintf("%s partially reversed: %d succeeded, %d failed [%s]",
		e.Operation, e.Succeeded, len(e.Failures), strings.Join(ids, ", "))
}

// Unwrap returns the PARTIAL_REVERSAL code error together with every item cause.
func (e *PartialReversalError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	errs = append(errs, NewDomainError(CodePartialReversal, e.Error()))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Joined returns all item failures as a single errors.Join value.
func (e *PartialReversalError) Joined() error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, fmt.Errorf("item %s: %w", f.ItemID, f.Err))
	}
	return errors.Join(errs...)
}

// ErrorCode extracts the domain error code from err, or "" when err carries none.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
