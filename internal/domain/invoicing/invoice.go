package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/leadcrm/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents where an invoice is in its settlement lifecycle
type InvoiceStatus string

const (
	InvoiceStatusOpen    InvoiceStatus = "OPEN"    // pending_amount > 0
	InvoiceStatusSettled InvoiceStatus = "SETTLED" // pending_amount == 0, terminal
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	return s == InvoiceStatusOpen || s == InvoiceStatusSettled
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further payments can change the invoice
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusSettled
}

// Invoice is the frozen billing computation for one billing event of a lead.
// Everything except PendingAmount (and the bookkeeping fields that follow it)
// is fixed at creation. PendingAmount is only changed by ReceiptLedger.
type Invoice struct {
	shared.BaseAggregateRoot
	LeadID         uuid.UUID
	BranchID       uuid.UUID
	Currency       valueobject.Currency
	LineItems      []ProductSelection
	Discount       valueobject.Money
	TaxPercent     decimal.Decimal
	Subtotal       valueobject.Money
	DiscountAmount valueobject.Money
	TaxableBase    valueobject.Money
	TaxAmount      valueobject.Money
	Total          valueobject.Money
	PendingAmount  valueobject.Money
	Status         InvoiceStatus
	ReceiptCount   int
	LastReceiptAt  *time.Time
	SettledAt      *time.Time
}

// NewInvoice computes the totals for the given line items and returns an
// open invoice whose pending amount equals its total.
func NewInvoice(leadID, branchID uuid.UUID, lineItems []ProductSelection, discount valueobject.Money, taxPercent decimal.Decimal) (*Invoice, error) {
	if leadID == uuid.Nil {
		return nil, NewInvalidInputError("lead id cannot be empty")
	}
	if branchID == uuid.Nil {
		return nil, NewInvalidInputError("branch id cannot be empty")
	}

	totals, err := NewInvoiceCalculator().Compute(lineItems, discount, taxPercent)
	if err != nil {
		return nil, err
	}
	if !totals.Total.IsPositive() {
		return nil, NewDegenerateInvoiceError(totals.Total)
	}

	items := make([]ProductSelection, len(lineItems))
	copy(items, lineItems)

	invoice := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		LeadID:            leadID,
		BranchID:          branchID,
		Currency:          totals.Total.Currency(),
		LineItems:         items,
		Discount:          discount,
		TaxPercent:        taxPercent,
		Subtotal:          totals.Subtotal,
		DiscountAmount:    totals.DiscountAmount,
		TaxableBase:       totals.TaxableBase,
		TaxAmount:         totals.TaxAmount,
		Total:             totals.Total,
		PendingAmount:     totals.Total,
		Status:            InvoiceStatusOpen,
	}

	invoice.AddDomainEvent(NewInvoiceCreatedEvent(invoice))

	return invoice, nil
}

// Totals returns the frozen derived amounts
func (i *Invoice) Totals() Totals {
	return Totals{
		Subtotal:       i.Subtotal,
		DiscountAmount: i.DiscountAmount,
		TaxableBase:    i.TaxableBase,
		TaxAmount:      i.TaxAmount,
		Total:          i.Total,
	}
}

// IsSettled returns true once the pending amount has reached zero
func (i *Invoice) IsSettled() bool {
	return i.PendingAmount.IsZero()
}

// PaidAmount returns the sum of accepted payments, total - pending
func (i *Invoice) PaidAmount() valueobject.Money {
	return i.Total.MustSubtract(i.PendingAmount)
}

// ProductIDs returns the product ids in display order
func (i *Invoice) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(i.LineItems))
	for idx, item := range i.LineItems {
		ids[idx] = item.ProductID
	}
	return ids
}

// nextReceiptTime returns a timestamp strictly after the previous receipt so
// receipts of one invoice are totally ordered by created_at.
func (i *Invoice) nextReceiptTime(now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if i.LastReceiptAt != nil && !now.After(*i.LastReceiptAt) {
		return i.LastReceiptAt.Add(time.Microsecond)
	}
	return now
}

// decreasePending records an accepted payment. Callers must have validated amount.
func (i *Invoice) decreasePending(amount valueobject.Money, at time.Time) {
	i.PendingAmount = i.PendingAmount.MustSubtract(amount)
	i.ReceiptCount++
	i.LastReceiptAt = &at
	i.UpdatedAt = at
	if i.PendingAmount.IsZero() {
		i.Status = InvoiceStatusSettled
		i.SettledAt = &at
	}
	i.IncrementVersion()
}

// ReconstructInvoice rebuilds an invoice from stored state without
// re-running validation or raising events.
func ReconstructInvoice(
	root shared.BaseAggregateRoot,
	leadID, branchID uuid.UUID,
	currency valueobject.Currency,
	lineItems []ProductSelection,
	discount valueobject.Money,
	taxPercent decimal.Decimal,
	totals Totals,
	pending valueobject.Money,
	status InvoiceStatus,
	receiptCount int,
	lastReceiptAt, settledAt *time.Time,
) *Invoice {
	return &Invoice{
		BaseAggregateRoot: root,
		LeadID:            leadID,
		BranchID:          branchID,
		Currency:          currency,
		LineItems:         lineItems,
		Discount:          discount,
		TaxPercent:        taxPercent,
		Subtotal:          totals.Subtotal,
		DiscountAmount:    totals.DiscountAmount,
		TaxableBase:       totals.TaxableBase,
		TaxAmount:         totals.TaxAmount,
		Total:             totals.Total,
		PendingAmount:     pending,
		Status:            status,
		ReceiptCount:      receiptCount,
		LastReceiptAt:     lastReceiptAt,
		SettledAt:         settledAt,
	}
}
