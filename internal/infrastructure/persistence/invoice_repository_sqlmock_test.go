package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/invoicing"
	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

var invoiceColumns = []string{
	"id", "created_at", "updated_at", "version", "lead_id", "branch_id", "currency",
	"discount", "tax_percent", "subtotal", "taxable_base", "tax_amount", "total",
	"pending_amount", "status", "receipt_count", "last_receipt_at", "settled_at",
}

func invoiceRow(id uuid.UUID, version int, pending string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(invoiceColumns).AddRow(
		id, now, now, version, uuid.New(), uuid.New(), "USD",
		"0.00", "0", "100.00", "100.00", "0.00", "100.00",
		pending, "OPEN", 0, nil, nil,
	)
}

func TestGormInvoiceRepository_ApplyPayment_SQL(t *testing.T) {
	t.Run("locks the row and updates conditionally", func(t *testing.T) {
		gormDB, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()
		repo := NewGormInvoiceRepository(gormDB)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = \$1 ORDER BY .* LIMIT .* FOR UPDATE`).
			WillReturnRows(invoiceRow(id, 1, "100.00"))
		mock.ExpectQuery(`SELECT \* FROM "invoice_line_items" WHERE invoice_id = \$1 ORDER BY line_no ASC`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"invoice_id", "line_no", "product_id", "unit_price"}).
				AddRow(id, 1, uuid.New(), "100.00"))
		mock.ExpectExec(`UPDATE "invoices" SET .* WHERE id = \$\d+ AND version = \$\d+ AND pending_amount >= \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "receipts"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		inv, receipt, err := repo.ApplyPayment(context.Background(), id, pay("60.00"))
		require.NoError(t, err)
		assert.Equal(t, "40.00", inv.PendingAmount.StringFixed())
		assert.Equal(t, 2, inv.Version)
		assert.Equal(t, "60.00", receipt.AmountPaid.StringFixed())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version is reported as a conflict and rolled back", func(t *testing.T) {
		gormDB, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()
		repo := NewGormInvoiceRepository(gormDB)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = \$1 .*FOR UPDATE`).
			WillReturnRows(invoiceRow(id, 4, "100.00"))
		mock.ExpectQuery(`SELECT \* FROM "invoice_line_items"`).
			WillReturnRows(sqlmock.NewRows([]string{"invoice_id", "line_no", "product_id", "unit_price"}))
		mock.ExpectExec(`UPDATE "invoices" SET .* WHERE id = \$\d+ AND version = \$\d+ AND pending_amount >= \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, _, err := repo.ApplyPayment(context.Background(), id, pay("60.00"))
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row maps to invoice not found", func(t *testing.T) {
		gormDB, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()
		repo := NewGormInvoiceRepository(gormDB)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = \$1 .*FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows(invoiceColumns))
		mock.ExpectRollback()

		_, _, err := repo.ApplyPayment(context.Background(), id, pay("1.00"))
		assert.ErrorIs(t, err, invoicing.ErrInvoiceNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormReceiptRepository_ListByInvoice_SQL(t *testing.T) {
	gormDB, mock, mockDB := setupMockDB(t)
	defer mockDB.Close()
	repo := NewGormReceiptRepository(gormDB)
	invoiceID := uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "receipts" WHERE invoice_id = \$1 ORDER BY created_at ASC, sequence ASC`).
		WithArgs(invoiceID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "invoice_id", "sequence", "amount_paid", "currency", "created_at"}).
			AddRow(uuid.New(), invoiceID, 1, "40.00", "USD", at).
			AddRow(uuid.New(), invoiceID, 2, "75.00", "USD", at.Add(time.Microsecond)))

	receipts, err := repo.ListByInvoice(context.Background(), invoiceID)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, 1, receipts[0].Sequence)
	assert.Equal(t, "75.00", receipts[1].AmountPaid.StringFixed())
	assert.NoError(t, mock.ExpectationsWereMet())
}
