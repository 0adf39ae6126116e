package invoicing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvoice(t *testing.T, discount string, prices ...string) *Invoice {
	t.Helper()
	inv, err := NewInvoice(uuid.New(), uuid.New(), selections(prices...), usd(discount), pct("15"))
	require.NoError(t, err)
	return inv
}

func TestInvoiceStatus(t *testing.T) {
	assert.True(t, InvoiceStatusOpen.IsValid())
	assert.True(t, InvoiceStatusSettled.IsValid())
	assert.False(t, InvoiceStatus("PAID").IsValid())
	assert.False(t, InvoiceStatusOpen.IsTerminal())
	assert.True(t, InvoiceStatusSettled.IsTerminal())
	assert.Equal(t, "OPEN", InvoiceStatusOpen.String())
}

func TestNewInvoice(t *testing.T) {
	t.Run("pending amount starts at total", func(t *testing.T) {
		inv := newTestInvoice(t, "0", "50.00", "60.00", "40.00")
		assert.NotEqual(t, uuid.Nil, inv.ID)
		assert.Equal(t, "150.00", inv.Subtotal.StringFixed())
		assert.Equal(t, "22.50", inv.TaxAmount.StringFixed())
		assert.Equal(t, "172.50", inv.Total.StringFixed())
		assert.Equal(t, "172.50", inv.PendingAmount.StringFixed())
		assert.Equal(t, InvoiceStatusOpen, inv.Status)
		assert.Equal(t, 1, inv.GetVersion())
		assert.True(t, inv.PaidAmount().IsZero())
	})

	t.Run("raises InvoiceCreated", func(t *testing.T) {
		inv := newTestInvoice(t, "0", "10.00")
		events := inv.GetDomainEvents()
		require.Len(t, events, 1)
		created, ok := events[0].(*InvoiceCreatedEvent)
		require.True(t, ok)
		assert.Equal(t, EventTypeInvoiceCreated, created.EventType())
		assert.Equal(t, inv.ID, created.AggregateID())
		assert.True(t, created.Total.Equal(inv.Total.Amount()))
	})

	t.Run("line items are a snapshot", func(t *testing.T) {
		items := selections("10.00", "20.00")
		inv, err := NewInvoice(uuid.New(), uuid.New(), items, usd("0"), decimal.Zero)
		require.NoError(t, err)

		items[0].UnitPrice = usd("999.00")
		assert.Equal(t, "10.00", inv.LineItems[0].UnitPrice.StringFixed())
		assert.Equal(t, "30.00", inv.Total.StringFixed())
		assert.Equal(t, []uuid.UUID{items[0].ProductID, items[1].ProductID}, inv.ProductIDs())
	})

	t.Run("zero total is degenerate", func(t *testing.T) {
		_, err := NewInvoice(uuid.New(), uuid.New(), selections("0.00"), usd("0"), pct("15"))
		assertCode(t, err, CodeDegenerateInvoice)
	})

	t.Run("empty line items", func(t *testing.T) {
		_, err := NewInvoice(uuid.New(), uuid.New(), nil, usd("0"), pct("15"))
		assertCode(t, err, CodeInvalidInput)
	})

	t.Run("discount over limit", func(t *testing.T) {
		// 0.95 x 150.00
		_, err := NewInvoice(uuid.New(), uuid.New(), selections("150.00"), usd("142.50"), pct("15"))
		assertCode(t, err, CodeDiscountOutOfRange)
	})

	t.Run("missing lead or branch", func(t *testing.T) {
		_, err := NewInvoice(uuid.Nil, uuid.New(), selections("1.00"), usd("0"), pct("15"))
		assertCode(t, err, CodeInvalidInput)
		_, err = NewInvoice(uuid.New(), uuid.Nil, selections("1.00"), usd("0"), pct("15"))
		assertCode(t, err, CodeInvalidInput)
	})

	t.Run("totals accessor matches fields", func(t *testing.T) {
		inv := newTestInvoice(t, "50.00", "150.00")
		totals := inv.Totals()
		assert.True(t, totals.Total.Equals(inv.Total))
		assert.True(t, totals.TaxableBase.Equals(inv.TaxableBase))
		assert.Equal(t, "115.00", totals.Total.StringFixed())
	})
}

func TestReconstructInvoice(t *testing.T) {
	original := newTestInvoice(t, "50.00", "150.00")
	_, err := NewReceiptLedger().RecordPayment(original, usd("40.00"))
	require.NoError(t, err)

	rebuilt := ReconstructInvoice(
		shared.BaseAggregateRoot{BaseEntity: original.BaseEntity, Version: original.Version},
		original.LeadID, original.BranchID, original.Currency,
		original.LineItems, original.Discount, original.TaxPercent,
		original.Totals(), original.PendingAmount, original.Status,
		original.ReceiptCount, original.LastReceiptAt, original.SettledAt,
	)

	assert.Equal(t, original.ID, rebuilt.ID)
	assert.Equal(t, 2, rebuilt.GetVersion())
	assert.Equal(t, "75.00", rebuilt.PendingAmount.StringFixed())
	assert.Equal(t, 1, rebuilt.ReceiptCount)
	assert.Empty(t, rebuilt.GetDomainEvents())

	r, err := NewReceiptLedger().RecordPayment(rebuilt, usd("75.00"))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Sequence)
	assert.True(t, r.CreatedAt.After(*original.LastReceiptAt))
}
