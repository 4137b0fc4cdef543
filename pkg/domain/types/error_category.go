package types

import "net/http"

// ErrorCategory classifies a failed operation for the tool envelope.
// The category drives the wire error code, the HTTP status of the tool
// endpoint, and whether a caller should retry.
type ErrorCategory string

const (
	ErrorCategoryValidation    ErrorCategory = "VALIDATION"
	ErrorCategoryTenant        ErrorCategory = "TENANT"
	ErrorCategoryAuthorization ErrorCategory = "AUTHORIZATION"
	ErrorCategoryNotFound      ErrorCategory = "NOT_FOUND"
	ErrorCategoryTimeout       ErrorCategory = "TIMEOUT"
	ErrorCategoryInternal      ErrorCategory = "INTERNAL"
)

// AllErrorCategories returns all valid error categories
func AllErrorCategories() []ErrorCategory {
	return []ErrorCategory{
		ErrorCategoryValidation,
		ErrorCategoryTenant,
		ErrorCategoryAuthorization,
		ErrorCategoryNotFound,
		ErrorCategoryTimeout,
		ErrorCategoryInternal,
	}
}

// IsValid checks if the error category is valid
func (c ErrorCategory) IsValid() bool {
	switch c {
	case ErrorCategoryValidation,
		ErrorCategoryTenant,
		ErrorCategoryAuthorization,
		ErrorCategoryNotFound,
		ErrorCategoryTimeout,
		ErrorCategoryInternal:
		return true
	default:
		return false
	}
}

// String returns the string representation of the error category
func (c ErrorCategory) String() string {
	return string(c)
}

// Code returns the wire error code for the category
func (c ErrorCategory) Code() string {
	switch c {
	case ErrorCategoryValidation:
		return "ERR_VALIDATION"
	case ErrorCategoryTenant:
		return "ERR_TENANT"
	case ErrorCategoryAuthorization:
		return "ERR_AUTHORIZATION"
	case ErrorCategoryNotFound:
		return "ERR_NOT_FOUND"
	case ErrorCategoryTimeout:
		return "ERR_TIMEOUT"
	default:
		return "ERR_INTERNAL"
	}
}

// Retryable reports whether a caller should retry the failed operation.
// Only timeouts and unclassified internal failures are worth retrying;
// the rest are caller-fixable.
func (c ErrorCategory) Retryable() bool {
	switch c {
	case ErrorCategoryTimeout, ErrorCategoryInternal:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the HTTP status the tool endpoint reports for the category
func (c ErrorCategory) HTTPStatus() int {
	switch c {
	case ErrorCategoryValidation, ErrorCategoryTenant:
		return http.StatusBadRequest
	case ErrorCategoryAuthorization:
		return http.StatusForbidden
	case ErrorCategoryNotFound:
		return http.StatusNotFound
	case ErrorCategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
