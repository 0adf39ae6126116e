package invoicing

import (
	"errors"
	"testing"
	"time"

	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/leadcrm/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestReceiptLedger_RecordPayment(t *testing.T) {
	t.Run("partial then full payment settles the invoice", func(t *testing.T) {
		inv := newTestInvoice(t, "50.00", "150.00") // total 115.00
		ledger := NewReceiptLedger()

		r1, err := ledger.RecordPayment(inv, usd("40.00"))
		require.NoError(t, err)
		assert.Equal(t, "40.00", r1.AmountPaid.StringFixed())
		assert.Equal(t, inv.ID, r1.InvoiceID)
		assert.Equal(t, 1, r1.Sequence)
		assert.Equal(t, "75.00", inv.PendingAmount.StringFixed())
		assert.Equal(t, InvoiceStatusOpen, inv.Status)

		r2, err := ledger.RecordPayment(inv, usd("75.00"))
		require.NoError(t, err)
		assert.Equal(t, 2, r2.Sequence)
		assert.Equal(t, "0.00", inv.PendingAmount.StringFixed())
		assert.Equal(t, InvoiceStatusSettled, inv.Status)
		assert.True(t, inv.IsSettled())
		require.NotNil(t, inv.SettledAt)

		require.NoError(t, CheckConservation(inv, []Receipt{*r1, *r2}))
	})

	t.Run("overpayment is rejected in full", func(t *testing.T) {
		inv := newTestInvoice(t, "50.00", "150.00")
		ledger := NewReceiptLedger()
		_, err := ledger.RecordPayment(inv, usd("40.00"))
		require.NoError(t, err)
		version := inv.GetVersion()

		_, err = ledger.RecordPayment(inv, usd("100.00"))
		require.Error(t, err)

		var over *OverpaymentError
		require.True(t, errors.As(err, &over))
		assert.Equal(t, inv.ID, over.InvoiceID)
		assert.Equal(t, "100.00", over.Attempted.StringFixed())
		assert.Equal(t, "75.00", over.Pending.StringFixed())
		assert.True(t, errors.Is(err, ErrOverpayment))
		assertCode(t, err, CodeOverpayment)

		assert.Equal(t, "75.00", inv.PendingAmount.StringFixed())
		assert.Equal(t, version, inv.GetVersion())
		assert.Equal(t, 1, inv.ReceiptCount)
	})

	t.Run("payment on a settled invoice is an overpayment", func(t *testing.T) {
		inv := newTestInvoice(t, "0", "10.00")
		ledger := NewReceiptLedger()
		_, err := ledger.RecordPayment(inv, inv.Total)
		require.NoError(t, err)

		_, err = ledger.RecordPayment(inv, usd("0.01"))
		var over *OverpaymentError
		require.True(t, errors.As(err, &over))
		assert.True(t, over.Pending.IsZero())
	})

	t.Run("non positive amounts", func(t *testing.T) {
		inv := newTestInvoice(t, "0", "10.00")
		ledger := NewReceiptLedger()
		for _, amount := range []string{"0", "-5.00", "0.001"} {
			_, err := ledger.RecordPayment(inv, usd(amount))
			assertCode(t, err, CodeInvalidAmount)
		}
		assert.True(t, inv.PendingAmount.Equals(inv.Total))
	})

	t.Run("sub-cent amount is reported as attempted", func(t *testing.T) {
		inv := newTestInvoice(t, "0", "10.00")
		_, err := NewReceiptLedger().RecordPayment(inv, usd("0.001"))

		domainErr, ok := shared.AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, CodeInvalidAmount, domainErr.Code)
		assert.Equal(t, "0.001", domainErr.Details["attempted"])
		assert.Contains(t, domainErr.Message, "0.001 USD")
	})

	t.Run("currency mismatch", func(t *testing.T) {
		inv := newTestInvoice(t, "0", "10.00")
		_, err := NewReceiptLedger().RecordPayment(inv, valueobject.MustMoney("1.00", valueobject.EUR))
		assertCode(t, err, CodeInvalidInput)
	})

	t.Run("nil invoice", func(t *testing.T) {
		_, err := NewReceiptLedger().RecordPayment(nil, usd("1.00"))
		assertCode(t, err, CodeInvalidInput)
	})

	t.Run("receipt timestamps are strictly increasing under a frozen clock", func(t *testing.T) {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		ledger := NewReceiptLedger(WithClock(fixedClock(at)))
		inv := newTestInvoice(t, "0", "100.00")

		var last time.Time
		for i := range 5 {
			r, err := ledger.RecordPayment(inv, usd("1.00"))
			require.NoError(t, err)
			if i > 0 {
				assert.True(t, r.CreatedAt.After(last))
			}
			last = r.CreatedAt
		}
		assert.Equal(t, at.Add(4*time.Microsecond), last)
	})

	t.Run("events for payment and settlement", func(t *testing.T) {
		inv := newTestInvoice(t, "0", "10.00")
		inv.ClearDomainEvents()

		_, err := NewReceiptLedger().RecordPayment(inv, inv.Total)
		require.NoError(t, err)

		events := inv.GetDomainEvents()
		require.Len(t, events, 2)
		assert.Equal(t, EventTypePaymentRecorded, events[0].EventType())
		assert.Equal(t, EventTypeInvoiceSettled, events[1].EventType())
	})
}

func TestReceiptLedger_MonotonicSettlement(t *testing.T) {
	inv := newTestInvoice(t, "0", "33.33", "66.67") // total 115.00
	ledger := NewReceiptLedger()
	payments := []string{"0.01", "14.99", "50.00", "25.00", "25.00"}

	var receipts []Receipt
	previous := inv.PendingAmount
	for i, p := range payments {
		r, err := ledger.RecordPayment(inv, usd(p))
		require.NoError(t, err)
		receipts = append(receipts, *r)

		le, err := inv.PendingAmount.LessThanOrEqual(previous)
		require.NoError(t, err)
		assert.True(t, le, "pending must not increase")
		previous = inv.PendingAmount

		require.NoError(t, CheckConservation(inv, receipts))
		assert.Equal(t, i == len(payments)-1, inv.IsSettled())
	}
}

func TestCheckConservation(t *testing.T) {
	inv := newTestInvoice(t, "0", "100.00")
	r, err := NewReceiptLedger().RecordPayment(inv, usd("30.00"))
	require.NoError(t, err)

	require.NoError(t, CheckConservation(inv, []Receipt{*r}))
	assert.Error(t, CheckConservation(inv, nil))

	tampered := *inv
	tampered.PendingAmount = usd("-1.00")
	assert.Error(t, CheckConservation(&tampered, []Receipt{*r}))
}
