package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeInvoiceCreated  = "InvoiceCreated"
	EventTypePaymentRecorded = "PaymentRecorded"
	EventTypeInvoiceSettled  = "InvoiceSettled"

	AggregateTypeInvoice = "Invoice"
)

// InvoiceCreatedEvent is raised when a new invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID uuid.UUID       `json:"invoice_id"`
	LeadID    uuid.UUID       `json:"lead_id"`
	BranchID  uuid.UUID       `json:"branch_id"`
	Currency  string          `json:"currency"`
	Total     decimal.Decimal `json:"total"`
	LineCount int             `json:"line_count"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		LeadID:          inv.LeadID,
		BranchID:        inv.BranchID,
		Currency:        string(inv.Currency),
		Total:           inv.Total.Amount(),
		LineCount:       len(inv.LineItems),
	}
}

// PaymentRecordedEvent is raised for every accepted payment
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	ReceiptID     uuid.UUID       `json:"receipt_id"`
	Currency      string          `json:"currency"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	Sequence      int             `json:"sequence"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(inv *Invoice, r *Receipt) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		ReceiptID:       r.ID,
		Currency:        string(inv.Currency),
		AmountPaid:      r.AmountPaid.Amount(),
		PendingAmount:   inv.PendingAmount.Amount(),
		Sequence:        r.Sequence,
	}
}

// InvoiceSettledEvent is raised when the pending amount reaches zero
type InvoiceSettledEvent struct {
	shared.BaseDomainEvent
	InvoiceID    uuid.UUID       `json:"invoice_id"`
	LeadID       uuid.UUID       `json:"lead_id"`
	Total        decimal.Decimal `json:"total"`
	ReceiptCount int             `json:"receipt_count"`
	SettledAt    time.Time       `json:"settled_at"`
}

// NewInvoiceSettledEvent creates a new InvoiceSettledEvent
func NewInvoiceSettledEvent(inv *Invoice) *InvoiceSettledEvent {
	settledAt := time.Now()
	if inv.SettledAt != nil {
		settledAt = *inv.SettledAt
	}
	return &InvoiceSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceSettled, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		LeadID:          inv.LeadID,
		Total:           inv.Total.Amount(),
		ReceiptCount:    inv.ReceiptCount,
		SettledAt:       settledAt,
	}
}
