package invoicing

import (
	"context"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/leadcrm/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ProductCatalog resolves product prices. Read-only.
type ProductCatalog interface {
	// GetPrice returns the current unit price, or a PRODUCT_NOT_FOUND error
	GetPrice(ctx context.Context, productID uuid.UUID) (valueobject.Money, error)
}

// BranchTaxPolicy resolves the flat tax percentage of a branch
type BranchTaxPolicy interface {
	// GetTaxPercent returns the branch tax percentage, or a BRANCH_NOT_FOUND error
	GetTaxPercent(ctx context.Context, branchID uuid.UUID) (decimal.Decimal, error)
}

// LeadDirectory resolves the branch a lead is attached to
type LeadDirectory interface {
	// GetBranchID returns the lead's branch, or a LEAD_NOT_FOUND error
	GetBranchID(ctx context.Context, leadID uuid.UUID) (uuid.UUID, error)
}

// PaymentFunc applies a payment to a freshly loaded invoice
type PaymentFunc func(invoice *Invoice) (*Receipt, error)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	Status *InvoiceStatus
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByID finds an invoice by ID. Returns nil, nil if it does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByLead lists a lead's invoices, newest first, with the total count
	FindByLead(ctx context.Context, leadID uuid.UUID, filter InvoiceFilter) ([]Invoice, int64, error)

	// Create inserts a new invoice with its line items
	Create(ctx context.Context, invoice *Invoice) error

	// ApplyPayment loads the invoice, runs apply and stores the new pending
	// amount together with the returned receipt, all while no other payment
	// for the same invoice can run. Invoices are not locked against each other.
	// Returns an INVOICE_NOT_FOUND error if the invoice does not exist.
	ApplyPayment(ctx context.Context, invoiceID uuid.UUID, apply PaymentFunc) (*Invoice, *Receipt, error)
}

// ReceiptRepository defines read access to receipts.
// Receipts are written only through InvoiceRepository.ApplyPayment.
type ReceiptRepository interface {
	// ListByInvoice returns receipts ordered by created_at then sequence, ascending
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Receipt, error)
}
