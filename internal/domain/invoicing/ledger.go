package invoicing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/leadcrm/backend/internal/domain/shared/valueobject"
)

// ReceiptLedger appends payments to invoices. It is the only code that
// lowers an invoice's pending amount.
//
// RecordPayment works on an in-memory invoice and is not safe on its own for
// concurrent callers; InvoiceRepository.ApplyPayment runs it while holding
// the invoice's row lock or per-invoice mutex.
type ReceiptLedger struct {
	now func() time.Time
}

// LedgerOption configures a ReceiptLedger
type LedgerOption func(*ReceiptLedger)

// WithClock replaces the time source
func WithClock(now func() time.Time) LedgerOption {
	return func(l *ReceiptLedger) {
		l.now = now
	}
}

// NewReceiptLedger creates a ReceiptLedger
func NewReceiptLedger(opts ...LedgerOption) *ReceiptLedger {
	l := &ReceiptLedger{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordPayment accepts amount against invoice and returns the new receipt.
// A payment larger than the pending amount is rejected in full.
func (l *ReceiptLedger) RecordPayment(invoice *Invoice, amount valueobject.Money) (*Receipt, error) {
	if invoice == nil {
		return nil, NewInvalidInputError("invoice cannot be nil")
	}
	if amount.Currency() != invoice.Currency {
		return nil, NewInvalidInputError(fmt.Sprintf("payment currency %s does not match invoice currency %s", amount.Currency(), invoice.Currency))
	}
	if !amount.IsPositive() || amount.HasSubMinorPrecision() {
		return nil, NewInvalidAmountError(amount)
	}
	if amount.Amount().GreaterThan(invoice.PendingAmount.Amount()) {
		return nil, NewOverpaymentError(invoice.ID, amount, invoice.PendingAmount)
	}

	at := invoice.nextReceiptTime(l.now())
	invoice.decreasePending(amount, at)

	receipt := &Receipt{
		ID:         uuid.New(),
		InvoiceID:  invoice.ID,
		AmountPaid: amount,
		Sequence:   invoice.ReceiptCount,
		CreatedAt:  at,
	}

	invoice.AddDomainEvent(NewPaymentRecordedEvent(invoice, receipt))
	if invoice.IsSettled() {
		invoice.AddDomainEvent(NewInvoiceSettledEvent(invoice))
	}

	return receipt, nil
}

// CheckConservation verifies that the receipts of an invoice plus its pending
// amount add up to its total and that the pending amount is within [0, total].
func CheckConservation(invoice *Invoice, receipts []Receipt) error {
	paid, err := SumReceipts(invoice.Currency, receipts)
	if err != nil {
		return err
	}
	if invoice.PendingAmount.IsNegative() || invoice.PendingAmount.Amount().GreaterThan(invoice.Total.Amount()) {
		return shared.NewDomainError("LEDGER_IMBALANCE",
			fmt.Sprintf("pending amount %s outside [0, %s] on invoice %s", invoice.PendingAmount, invoice.Total, invoice.ID))
	}
	if !paid.MustAdd(invoice.PendingAmount).Equals(invoice.Total) {
		return shared.NewDomainError("LEDGER_IMBALANCE",
			fmt.Sprintf("receipts %s plus pending %s do not equal total %s on invoice %s", paid, invoice.PendingAmount, invoice.Total, invoice.ID))
	}
	return nil
}
