package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/shared/valueobject"
)

// Receipt is an immutable record of one payment applied to an invoice.
// Sequence is the 1-based acceptance order within the invoice.
type Receipt struct {
	ID         uuid.UUID
	InvoiceID  uuid.UUID
	AmountPaid valueobject.Money
	Sequence   int
	CreatedAt  time.Time
}

// SumReceipts adds the amounts of the given receipts
func SumReceipts(currency valueobject.Currency, receipts []Receipt) (valueobject.Money, error) {
	total := valueobject.Zero(currency)
	for _, r := range receipts {
		var err error
		total, err = total.Add(r.AmountPaid)
		if err != nil {
			return valueobject.Money{}, err
		}
	}
	return total, nil
}
