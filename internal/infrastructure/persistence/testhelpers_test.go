package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/invoicing"
	"github.com/leadcrm/backend/internal/domain/shared/valueobject"
	"github.com/leadcrm/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// newSQLiteDatabase opens a migrated sqlite database at path (":memory:" for a private one)
func newSQLiteDatabase(t *testing.T, path string) *Database {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate(context.Background()))
	return db
}

func usd(amount string) valueobject.Money {
	return valueobject.MustMoney(amount, valueobject.USD)
}

// newInvoice builds an open invoice for leadID with one line per price
func newInvoice(t *testing.T, leadID uuid.UUID, discount string, taxPercent int64, prices ...string) *invoicing.Invoice {
	t.Helper()
	items := make([]invoicing.ProductSelection, len(prices))
	for i, p := range prices {
		items[i] = invoicing.ProductSelection{ProductID: uuid.New(), UnitPrice: usd(p)}
	}
	inv, err := invoicing.NewInvoice(leadID, uuid.New(), items, usd(discount), decimal.NewFromInt(taxPercent))
	require.NoError(t, err)
	return inv
}

// pay returns a PaymentFunc that records amount through a fresh ledger
func pay(amount string) invoicing.PaymentFunc {
	ledger := invoicing.NewReceiptLedger()
	return func(inv *invoicing.Invoice) (*invoicing.Receipt, error) {
		return ledger.RecordPayment(inv, usd(amount))
	}
}
