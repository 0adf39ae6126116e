package invoicing

import (
	"errors"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// MaxDiscountRatio caps the discount at 90% of the subtotal
var MaxDiscountRatio = decimal.New(9, -1)

// ProductSelection is a product on an invoice with its price captured at
// invoice creation. Later catalog price changes do not affect it.
type ProductSelection struct {
	ProductID uuid.UUID         `json:"product_id"`
	UnitPrice valueobject.Money `json:"unit_price"`
}

// Totals holds the derived amounts of an invoice
type Totals struct {
	Subtotal       valueobject.Money
	DiscountAmount valueobject.Money
	TaxableBase    valueobject.Money
	TaxAmount      valueobject.Money
	Total          valueobject.Money
}

// InvoiceCalculator computes invoice totals. It holds no state and every
// call with the same inputs returns the same Totals.
type InvoiceCalculator struct{}

// NewInvoiceCalculator creates an InvoiceCalculator
func NewInvoiceCalculator() InvoiceCalculator {
	return InvoiceCalculator{}
}

// Compute derives subtotal, discount, taxable base, tax and total.
//
//	subtotal     = sum of unit prices
//	taxable_base = subtotal - discount            (0 <= discount <= 0.9 * subtotal)
//	tax_amount   = round_half_up(taxable_base * taxPercent / 100)
//	total        = taxable_base + tax_amount
func (InvoiceCalculator) Compute(lineItems []ProductSelection, discount valueobject.Money, taxPercent decimal.Decimal) (Totals, error) {
	if len(lineItems) == 0 {
		return Totals{}, NewInvalidInputError("invoice requires at least one line item")
	}
	if taxPercent.IsNegative() {
		return Totals{}, NewInvalidInputError("tax percent cannot be negative")
	}

	currency := lineItems[0].UnitPrice.Currency()
	subtotal := valueobject.Zero(currency)
	for _, item := range lineItems {
		if item.UnitPrice.IsNegative() {
			return Totals{}, NewInvalidInputError("unit price cannot be negative for product " + item.ProductID.String())
		}
		if item.UnitPrice.HasSubMinorPrecision() {
			return Totals{}, NewInvalidInputError("unit price has more than two decimal places for product " + item.ProductID.String())
		}
		var err error
		subtotal, err = subtotal.Add(item.UnitPrice)
		if err != nil {
			return Totals{}, currencyError(err)
		}
	}

	if discount.Currency() != currency {
		return Totals{}, NewInvalidInputError("discount currency must match line item currency " + string(currency))
	}
	if discount.HasSubMinorPrecision() {
		return Totals{}, NewInvalidInputError("discount has more than two decimal places")
	}
	maxDiscount := subtotal.Multiply(MaxDiscountRatio)
	if discount.IsNegative() || discount.Amount().GreaterThan(maxDiscount.Amount()) {
		return Totals{}, NewDiscountOutOfRangeError(discount, maxDiscount.Floor())
	}

	taxableBase := subtotal.MustSubtract(discount)
	taxAmount := taxableBase.Percentage(taxPercent).Round()
	total := taxableBase.MustAdd(taxAmount)

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxableBase:    taxableBase,
		TaxAmount:      taxAmount,
		Total:          total,
	}, nil
}

func currencyError(err error) error {
	if errors.Is(err, valueobject.ErrCurrencyMismatch) {
		return NewInvalidInputError("all line items must share one currency")
	}
	return err
}
