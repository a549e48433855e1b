package shared

import "errors"

// ErrorKind classifies domain errors for propagation decisions at the boundary
type ErrorKind string

const (
	// ErrorKindValidation marks malformed, user-correctable input
	ErrorKindValidation ErrorKind = "VALIDATION"
	// ErrorKindConflict marks state conflicts: drift, invalid transitions, races
	ErrorKindConflict ErrorKind = "CONFLICT"
	// ErrorKindNotFound marks missing entity references
	ErrorKindNotFound ErrorKind = "NOT_FOUND"
	// ErrorKindExternal marks failed or timed-out gateway/carrier calls
	ErrorKindExternal ErrorKind = "EXTERNAL"
	// ErrorKindSecurity marks signature/integrity failures; never echoed verbatim
	ErrorKindSecurity ErrorKind = "SECURITY"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches two domain errors by code, so sentinel instances work with errors.Is
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if !errors.As(target, &de) {
		return false
	}
	return e.Code == de.Code
}

// NewDomainError creates a new validation-kind domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Kind: ErrorKindValidation, Code: code, Message: message}
}

// NewConflictError creates a new conflict-kind domain error
func NewConflictError(code, message string) *DomainError {
	return &DomainError{Kind: ErrorKindConflict, Code: code, Message: message}
}

// NewNotFoundError creates a new not-found-kind domain error
func NewNotFoundError(code, message string) *DomainError {
	return &DomainError{Kind: ErrorKindNotFound, Code: code, Message: message}
}

// NewExternalError creates a new external-kind domain error
func NewExternalError(code, message string) *DomainError {
	return &DomainError{Kind: ErrorKindExternal, Code: code, Message: message}
}

// NewSecurityError creates a new security-kind domain error
func NewSecurityError(code, message string) *DomainError {
	return &DomainError{Kind: ErrorKindSecurity, Code: code, Message: message}
}

// KindOf returns the error kind of err, or empty string for non-domain errors
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Common domain errors
var (
	ErrNotFound            = NewNotFoundError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewConflictError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewConflictError("CONCURRENT_MODIFICATION", "Resource was modified by another process")
	ErrInvalidTransition   = NewConflictError("INVALID_TRANSITION", "Status transition not allowed")
	ErrOutOfStock          = NewConflictError("OUT_OF_STOCK", "Requested quantity exceeds available stock")
	ErrStockConflict       = NewConflictError("STOCK_CONFLICT", "Stock changed since the cart was built")
	ErrPriceChanged        = NewConflictError("PRICE_CHANGED", "Price changed since the cart was built")
	ErrPaymentInProgress   = NewConflictError("PAYMENT_IN_PROGRESS", "Another payment attempt is still open")
	ErrInvalidSignature    = NewSecurityError("INVALID_SIGNATURE", "Callback signature verification failed")
	ErrGatewayUnavailable  = NewExternalError("GATEWAY_UNAVAILABLE", "Payment gateway call failed")
	ErrCarrierUnavailable  = NewExternalError("CARRIER_UNAVAILABLE", "Shipping carrier call failed")
)
