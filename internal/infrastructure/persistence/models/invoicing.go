package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/invoicing"
	"github.com/leadcrm/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	AggregateModel
	LeadID         uuid.UUID               `gorm:"type:uuid;not null;index"`
	BranchID       uuid.UUID               `gorm:"type:uuid;not null;index"`
	Currency       string                  `gorm:"type:varchar(3);not null"`
	Discount       decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	TaxPercent     decimal.Decimal         `gorm:"type:decimal(7,4);not null"`
	Subtotal       decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	TaxableBase    decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	TaxAmount      decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Total          decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	PendingAmount  decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Status         invoicing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'OPEN';index"`
	ReceiptCount   int                     `gorm:"not null;default:0"`
	LastReceiptAt  *time.Time
	SettledAt      *time.Time
	LineItems      []InvoiceLineItemModel `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
// LineItems must be preloaded in line order.
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	currency := valueobject.Currency(m.Currency)
	money := func(d decimal.Decimal) valueobject.Money {
		v, _ := valueobject.NewMoney(d, currency)
		return v
	}

	items := make([]invoicing.ProductSelection, len(m.LineItems))
	for i, item := range m.LineItems {
		items[i] = item.ToDomain(currency)
	}

	return invoicing.ReconstructInvoice(
		m.ToDomainAggregateRoot(),
		m.LeadID,
		m.BranchID,
		currency,
		items,
		money(m.Discount),
		m.TaxPercent,
		invoicing.Totals{
			Subtotal:       money(m.Subtotal),
			DiscountAmount: money(m.Discount),
			TaxableBase:    money(m.TaxableBase),
			TaxAmount:      money(m.TaxAmount),
			Total:          money(m.Total),
		},
		money(m.PendingAmount),
		m.Status,
		m.ReceiptCount,
		utcPtr(m.LastReceiptAt),
		utcPtr(m.SettledAt),
	)
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.LeadID = inv.LeadID
	m.BranchID = inv.BranchID
	m.Currency = string(inv.Currency)
	m.Discount = inv.DiscountAmount.Amount()
	m.TaxPercent = inv.TaxPercent
	m.Subtotal = inv.Subtotal.Amount()
	m.TaxableBase = inv.TaxableBase.Amount()
	m.TaxAmount = inv.TaxAmount.Amount()
	m.Total = inv.Total.Amount()
	m.PendingAmount = inv.PendingAmount.Amount()
	m.Status = inv.Status
	m.ReceiptCount = inv.ReceiptCount
	m.LastReceiptAt = inv.LastReceiptAt
	m.SettledAt = inv.SettledAt

	m.LineItems = make([]InvoiceLineItemModel, len(inv.LineItems))
	for i, item := range inv.LineItems {
		m.LineItems[i] = InvoiceLineItemModel{
			InvoiceID: inv.ID,
			LineNo:    i + 1,
			ProductID: item.ProductID,
			UnitPrice: item.UnitPrice.Amount(),
		}
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceLineItemModel stores one priced product selection of an invoice.
type InvoiceLineItemModel struct {
	InvoiceID uuid.UUID       `gorm:"type:uuid;primaryKey"`
	LineNo    int             `gorm:"primaryKey;autoIncrement:false"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (InvoiceLineItemModel) TableName() string {
	return "invoice_line_items"
}

// ToDomain converts the line item to a ProductSelection in the invoice currency
func (m *InvoiceLineItemModel) ToDomain(currency valueobject.Currency) invoicing.ProductSelection {
	price, _ := valueobject.NewMoney(m.UnitPrice, currency)
	return invoicing.ProductSelection{ProductID: m.ProductID, UnitPrice: price}
}

// ReceiptModel is the persistence model for an immutable payment receipt.
type ReceiptModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_receipts_invoice_sequence,priority:1;index:idx_receipts_invoice_created,priority:1"`
	Sequence   int             `gorm:"not null;uniqueIndex:idx_receipts_invoice_sequence,priority:2"`
	AmountPaid decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Currency   string          `gorm:"type:varchar(3);not null"`
	CreatedAt  time.Time       `gorm:"not null;index:idx_receipts_invoice_created,priority:2"`
}

// TableName returns the table name for GORM
func (ReceiptModel) TableName() string {
	return "receipts"
}

// ToDomain converts the persistence model to a domain Receipt.
func (m *ReceiptModel) ToDomain() invoicing.Receipt {
	amount, _ := valueobject.NewMoney(m.AmountPaid, valueobject.Currency(m.Currency))
	return invoicing.Receipt{
		ID:         m.ID,
		InvoiceID:  m.InvoiceID,
		AmountPaid: amount,
		Sequence:   m.Sequence,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

// ReceiptModelFromDomain creates a new persistence model from a domain Receipt.
func ReceiptModelFromDomain(r *invoicing.Receipt) *ReceiptModel {
	return &ReceiptModel{
		ID:         r.ID,
		InvoiceID:  r.InvoiceID,
		Sequence:   r.Sequence,
		AmountPaid: r.AmountPaid.Amount(),
		Currency:   string(r.AmountPaid.Currency()),
		CreatedAt:  r.CreatedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
