package invoicing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/leadcrm/backend/internal/domain/shared/valueobject"
)

// Error codes surfaced to callers. They are part of the public API and must stay stable.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidAmount      = "INVALID_AMOUNT"
	CodeDiscountOutOfRange = "DISCOUNT_OUT_OF_RANGE"
	CodeDegenerateInvoice  = "DEGENERATE_INVOICE"
	CodeProductNotFound    = "PRODUCT_NOT_FOUND"
	CodeBranchNotFound     = "BRANCH_NOT_FOUND"
	CodeLeadNotFound       = "LEAD_NOT_FOUND"
	CodeInvoiceNotFound    = "INVOICE_NOT_FOUND"
	CodeOverpayment        = "OVERPAYMENT"
)

// Sentinels for errors.Is. Instances returned by this package carry the
// same code with a specific message and details.
var (
	ErrInvalidInput       = shared.NewDomainError(CodeInvalidInput, "invalid input")
	ErrInvalidAmount      = shared.NewDomainError(CodeInvalidAmount, "payment amount must be positive")
	ErrDiscountOutOfRange = shared.NewDomainError(CodeDiscountOutOfRange, "discount out of range")
	ErrDegenerateInvoice  = shared.NewDomainError(CodeDegenerateInvoice, "invoice total must be positive")
	ErrProductNotFound    = shared.NewDomainError(CodeProductNotFound, "product not found")
	ErrBranchNotFound     = shared.NewDomainError(CodeBranchNotFound, "branch not found")
	ErrLeadNotFound       = shared.NewDomainError(CodeLeadNotFound, "lead not found")
	ErrInvoiceNotFound    = shared.NewDomainError(CodeInvoiceNotFound, "invoice not found")
	ErrOverpayment        = shared.NewDomainError(CodeOverpayment, "payment exceeds pending amount")
)

// NewInvalidInputError reports a malformed request
func NewInvalidInputError(message string) *shared.DomainError {
	return shared.NewDomainError(CodeInvalidInput, message)
}

// NewInvalidAmountError reports a payment amount that is zero, negative or too precise
func NewInvalidAmountError(amount valueobject.Money) *shared.DomainError {
	return shared.NewDomainError(CodeInvalidAmount,
		fmt.Sprintf("payment amount %s %s must be positive with at most %d decimal places",
			amount.StringExact(), amount.Currency(), valueobject.MoneyScale)).
		WithDetail("attempted", amount.StringExact())
}

// NewDiscountOutOfRangeError reports a discount outside [0, max]
func NewDiscountOutOfRangeError(discount, maxDiscount valueobject.Money) *shared.DomainError {
	return shared.NewDomainError(CodeDiscountOutOfRange,
		fmt.Sprintf("discount %s must be between 0 and %s", discount, maxDiscount)).
		WithDetail("discount", discount.StringFixed()).
		WithDetail("max_discount", maxDiscount.StringFixed())
}

// NewDegenerateInvoiceError reports an invoice whose computed total is not positive
func NewDegenerateInvoiceError(total valueobject.Money) *shared.DomainError {
	return shared.NewDomainError(CodeDegenerateInvoice,
		fmt.Sprintf("invoice total %s must be greater than zero", total)).
		WithDetail("total", total.StringFixed())
}

// NewProductNotFoundError reports an unknown product id
func NewProductNotFoundError(productID uuid.UUID) *shared.DomainError {
	return shared.NewDomainError(CodeProductNotFound, fmt.Sprintf("product %s not found", productID)).
		WithDetail("product_id", productID.String())
}

// NewBranchNotFoundError reports an unknown branch id
func NewBranchNotFoundError(branchID uuid.UUID) *shared.DomainError {
	return shared.NewDomainError(CodeBranchNotFound, fmt.Sprintf("branch %s not found", branchID)).
		WithDetail("branch_id", branchID.String())
}

// NewLeadNotFoundError reports an unknown lead id
func NewLeadNotFoundError(leadID uuid.UUID) *shared.DomainError {
	return shared.NewDomainError(CodeLeadNotFound, fmt.Sprintf("lead %s not found", leadID)).
		WithDetail("lead_id", leadID.String())
}

// NewInvoiceNotFoundError reports an unknown invoice id
func NewInvoiceNotFoundError(invoiceID uuid.UUID) *shared.DomainError {
	return shared.NewDomainError(CodeInvoiceNotFound, fmt.Sprintf("invoice %s not found", invoiceID)).
		WithDetail("invoice_id", invoiceID.String())
}

// OverpaymentError is returned when a payment is larger than the invoice's
// pending amount. The payment is rejected in full, never clipped.
type OverpaymentError struct {
	InvoiceID uuid.UUID
	Attempted valueobject.Money
	Pending   valueobject.Money
}

// NewOverpaymentError creates an OverpaymentError
func NewOverpaymentError(invoiceID uuid.UUID, attempted, pending valueobject.Money) *OverpaymentError {
	return &OverpaymentError{
		InvoiceID: invoiceID,
		Attempted: attempted,
		Pending:   pending,
	}
}

// Error implements the error interface
func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment %s %s exceeds pending amount %s on invoice %s",
		e.Attempted.StringExact(), e.Attempted.Currency(), e.Pending, e.InvoiceID)
}

// Unwrap exposes the equivalent DomainError so transport layers can map it by code
func (e *OverpaymentError) Unwrap() error {
	return shared.NewDomainError(CodeOverpayment, e.Error()).
		WithDetail("invoice_id", e.InvoiceID.String()).
		WithDetail("attempted", e.Attempted.StringExact()).
		WithDetail("pending", e.Pending.StringFixed())
}
