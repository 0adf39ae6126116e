package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/invoicing"
	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ==================== Inputs ====================

// CreateInvoiceInput asks for an invoice for a lead.
// A product id may repeat; every occurrence becomes its own line.
type CreateInvoiceInput struct {
	LeadID     uuid.UUID
	ProductIDs []uuid.UUID
	Discount   decimal.Decimal
}

// RecordPaymentInput records a payment against an invoice
type RecordPaymentInput struct {
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
}

// ListInvoicesInput pages through a lead's invoices
type ListInvoicesInput struct {
	LeadID   uuid.UUID
	Status   *invoicing.InvoiceStatus
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// filter converts the input to a repository filter with defaults applied
func (in ListInvoicesInput) filter() invoicing.InvoiceFilter {
	f := shared.DefaultFilter()
	if in.Page > 0 {
		f.Page = in.Page
	}
	if in.PageSize > 0 {
		f.PageSize = min(in.PageSize, MaxPageSize)
	}
	if in.OrderBy != "" {
		f.OrderBy = in.OrderBy
	}
	if in.OrderDir != "" {
		f.OrderDir = in.OrderDir
	}
	return invoicing.InvoiceFilter{Filter: f, Status: in.Status}
}

// MaxPageSize caps ListInvoicesInput.PageSize
const MaxPageSize = 100

// ==================== Responses ====================
// Amounts are rendered as strings with two decimal places.

// LineItemResponse is one priced line of an invoice
type LineItemResponse struct {
	LineNo    int       `json:"line_no"`
	ProductID uuid.UUID `json:"product_id"`
	UnitPrice string    `json:"unit_price"`
}

// InvoiceResponse is the full view of an invoice
type InvoiceResponse struct {
	ID            uuid.UUID          `json:"id"`
	LeadID        uuid.UUID          `json:"lead_id"`
	BranchID      uuid.UUID          `json:"branch_id"`
	Currency      string             `json:"currency"`
	LineItems     []LineItemResponse `json:"line_items"`
	Subtotal      string             `json:"subtotal"`
	Discount      string             `json:"discount"`
	TaxableBase   string             `json:"taxable_base"`
	TaxPercent    string             `json:"tax_percent"`
	TaxAmount     string             `json:"tax_amount"`
	Total         string             `json:"total"`
	PendingAmount string             `json:"pending_amount"`
	Status        string             `json:"status"`
	ReceiptCount  int                `json:"receipt_count"`
	Version       int                `json:"version"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	SettledAt     *time.Time         `json:"settled_at,omitempty"`
}

// ReceiptResponse is the view of one accepted payment
type ReceiptResponse struct {
	ID            uuid.UUID `json:"id"`
	InvoiceID     uuid.UUID `json:"invoice_id"`
	Sequence      int       `json:"sequence"`
	AmountPaid    string    `json:"amount_paid"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
	PendingAmount string    `json:"pending_amount,omitempty"`
	InvoiceStatus string    `json:"invoice_status,omitempty"`
}

// BalanceResponse is the outstanding balance of an invoice
type BalanceResponse struct {
	InvoiceID     uuid.UUID `json:"invoice_id"`
	Currency      string    `json:"currency"`
	Total         string    `json:"total"`
	PaidAmount    string    `json:"paid_amount"`
	PendingAmount string    `json:"pending_amount"`
	Status        string    `json:"status"`
	ReceiptCount  int       `json:"receipt_count"`
}

// ToInvoiceResponse converts a domain Invoice
func ToInvoiceResponse(inv *invoicing.Invoice) InvoiceResponse {
	items := make([]LineItemResponse, len(inv.LineItems))
	for i, item := range inv.LineItems {
		items[i] = LineItemResponse{
			LineNo:    i + 1,
			ProductID: item.ProductID,
			UnitPrice: item.UnitPrice.StringFixed(),
		}
	}

	return InvoiceResponse{
		ID:            inv.ID,
		LeadID:        inv.LeadID,
		BranchID:      inv.BranchID,
		Currency:      string(inv.Currency),
		LineItems:     items,
		Subtotal:      inv.Subtotal.StringFixed(),
		Discount:      inv.DiscountAmount.StringFixed(),
		TaxableBase:   inv.TaxableBase.StringFixed(),
		TaxPercent:    inv.TaxPercent.String(),
		TaxAmount:     inv.TaxAmount.StringFixed(),
		Total:         inv.Total.StringFixed(),
		PendingAmount: inv.PendingAmount.StringFixed(),
		Status:        inv.Status.String(),
		ReceiptCount:  inv.ReceiptCount,
		Version:       inv.Version,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
		SettledAt:     inv.SettledAt,
	}
}

// ToReceiptResponse converts a domain Receipt
func ToReceiptResponse(r invoicing.Receipt) ReceiptResponse {
	return ReceiptResponse{
		ID:         r.ID,
		InvoiceID:  r.InvoiceID,
		Sequence:   r.Sequence,
		AmountPaid: r.AmountPaid.StringFixed(),
		Currency:   string(r.AmountPaid.Currency()),
		CreatedAt:  r.CreatedAt,
	}
}

// ToBalanceResponse converts a domain Invoice to its balance view
func ToBalanceResponse(inv *invoicing.Invoice) BalanceResponse {
	return BalanceResponse{
		InvoiceID:     inv.ID,
		Currency:      string(inv.Currency),
		Total:         inv.Total.StringFixed(),
		PaidAmount:    inv.PaidAmount().StringFixed(),
		PendingAmount: inv.PendingAmount.StringFixed(),
		Status:        inv.Status.String(),
		ReceiptCount:  inv.ReceiptCount,
	}
}
