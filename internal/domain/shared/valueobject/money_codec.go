package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// moneyJSON is the wire form: {"amount":"12.50","currency":"USD"}.
type moneyJSON struct {
	Amount   string   `json:"amount"`
	Currency Currency `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.StringFixed(), Currency: m.currency})
}

// UnmarshalJSON accepts a missing currency as DefaultCurrency.
func (m *Money) UnmarshalJSON(data []byte) error {
	var w moneyJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(w.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	if w.Currency == "" {
		w.Currency = DefaultCurrency
	}
	*m = Money{amount: amount, currency: w.Currency}
	return nil
}

// Value stores only the amount; the currency has its own column.
func (m Money) Value() (driver.Value, error) {
	return m.StringFixed(), nil
}

// Scan reads an amount column, keeping a currency set beforehand or else
// falling back to DefaultCurrency. NULL scans as zero.
func (m *Money) Scan(value any) error {
	amount := decimal.Zero
	if value != nil {
		if err := amount.Scan(value); err != nil {
			return fmt.Errorf("cannot scan %T into Money: %w", value, err)
		}
	}
	m.amount = amount
	if m.currency == "" {
		m.currency = DefaultCurrency
	}
	return nil
}
