package dto

import "net/http"

// Transport error codes. Domain errors keep the code their package assigns.
const (
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	ErrCodeRequestTooLarge   = "REQUEST_TOO_LARGE"
	ErrCodeRequestInProgress = "REQUEST_IN_PROGRESS"
	ErrCodeIdempotencyKey    = "INVALID_IDEMPOTENCY_KEY"
)

// Domain error codes surfaced by the invoicing core
const (
	ErrCodeInvalidInput           = "INVALID_INPUT"
	ErrCodeInvalidAmount          = "INVALID_AMOUNT"
	ErrCodeDiscountOutOfRange     = "DISCOUNT_OUT_OF_RANGE"
	ErrCodeDegenerateInvoice      = "DEGENERATE_INVOICE"
	ErrCodeProductNotFound        = "PRODUCT_NOT_FOUND"
	ErrCodeBranchNotFound         = "BRANCH_NOT_FOUND"
	ErrCodeLeadNotFound           = "LEAD_NOT_FOUND"
	ErrCodeInvoiceNotFound        = "INVOICE_NOT_FOUND"
	ErrCodeOverpayment            = "OVERPAYMENT"
	ErrCodeConcurrentModification = "CONCURRENT_MODIFICATION"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:     http.StatusBadRequest,
	ErrCodeValidation:     http.StatusBadRequest,
	ErrCodeInvalidInput:   http.StatusBadRequest,
	ErrCodeInvalidAmount:  http.StatusBadRequest,
	ErrCodeIdempotencyKey: http.StatusBadRequest,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeDiscountOutOfRange: http.StatusUnprocessableEntity,
	ErrCodeDegenerateInvoice:  http.StatusUnprocessableEntity,

	ErrCodeForbidden: http.StatusForbidden,

	// Resource errors
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeProductNotFound: http.StatusNotFound,
	ErrCodeBranchNotFound:  http.StatusNotFound,
	ErrCodeLeadNotFound:    http.StatusNotFound,
	ErrCodeInvoiceNotFound: http.StatusNotFound,

	// Conflicts -> 409
	ErrCodeOverpayment:            http.StatusConflict,
	ErrCodeConcurrentModification: http.StatusConflict,
	ErrCodeRequestInProgress:      http.StatusConflict,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
