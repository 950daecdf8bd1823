package model

import "errors"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Detail        string `json:"detail,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeUnauthorised      = "UNAUTHORIZED"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeInsufficientStock = "INSUFFICIENT_STOCK"
	ErrCodeExternalService   = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// DomainError is a business-rule failure carrying a stable code.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so sentinels keep matching after being wrapped with a cause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError attaches a cause to a domain error.
func WrapDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewValidationError is shorthand for a VALIDATION_ERROR.
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}

// AsDomainError extracts a DomainError from an error chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Common domain errors
var (
	ErrOrderNotFound         = NewDomainError(ErrCodeNotFound, "Order not found")
	ErrProductNotFound       = NewDomainError(ErrCodeNotFound, "One or more products not found")
	ErrUserNotFound          = NewDomainError(ErrCodeNotFound, "User not found")
	ErrSupplierNotFound      = NewDomainError(ErrCodeNotFound, "Supplier not found")
	ErrSupplierOrderNotFound = NewDomainError(ErrCodeNotFound, "Supplier order not found")
	ErrCourierNotFound       = NewDomainError(ErrCodeNotFound, "Courier not found")

	ErrUnauthenticated = NewDomainError(ErrCodeUnauthorised, "Valid credentials are required")

	ErrForbidden          = NewDomainError(ErrCodeForbidden, "You are not allowed to perform this action")
	ErrNotAssignedCourier = NewDomainError(ErrCodeForbidden, "Only the assigned courier can mark this order as delivered")
	ErrNotOrderOwner      = NewDomainError(ErrCodeForbidden, "Only the owning supplier can modify this order")
	ErrStaffOnly          = NewDomainError(ErrCodeForbidden, "Only admins and cashiers can change the order state")
	ErrCashierOnly        = NewDomainError(ErrCodeForbidden, "Only cashiers can cash out")

	ErrInvalidOrderState    = NewDomainError(ErrCodeInvalidState, "Invalid order state")
	ErrNotAwaitingReview    = NewDomainError(ErrCodeInvalidState, "Supplier order is not awaiting admin review")
	ErrPaymentNotPending    = NewDomainError(ErrCodeInvalidState, "Supplier order payment is no longer pending")
	ErrInvalidQuantity      = NewDomainError(ErrCodeValidation, "Quantity must be between 1 and 100000")
	ErrStockOverflow        = NewDomainError(ErrCodeValidation, "Stock would exceed the maximum level")
	ErrReviewBeforePayment  = NewDomainError(ErrCodeInvalidState, "Supplier order must be paid before review")
	ErrAddressRequired      = NewDomainError(ErrCodeValidation, "Address is required for home delivery")
	ErrInsufficientStock    = NewDomainError(ErrCodeInsufficientStock, "Not enough stock to fulfil the order")
	ErrPaymentSessionFailed = NewDomainError(ErrCodeExternalService, "Failed to create payment session")
)
