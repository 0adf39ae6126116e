package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/invoicing"
	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/leadcrm/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func orderedLineItems(db *gorm.DB) *gorm.DB {
	return db.Order("line_no ASC")
}

// FindByID finds an invoice by ID with its line items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Preload("LineItems", orderedLineItems).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByLead lists a lead's invoices with the total count before pagination
func (r *GormInvoiceRepository) FindByLead(ctx context.Context, leadID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("lead_id = ?", leadID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(newInvoiceOrder(filter.OrderBy, filter.OrderDir).SQL())
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.InvoiceModel
	if err := query.Preload("LineItems", orderedLineItems).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	invoices := make([]invoicing.Invoice, len(rows))
	for i := range rows {
		invoices[i] = *rows[i].ToDomain()
	}
	return invoices, total, nil
}

// Create inserts the invoice and its line items in one transaction
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		if len(model.LineItems) == 0 {
			return nil
		}
		return tx.Create(&model.LineItems).Error
	})
}

// ApplyPayment locks the invoice row, runs apply and persists the new balance
// together with the receipt. The balance update is conditional on the version
// read under the lock and on the pending amount still covering the payment.
func (r *GormInvoiceRepository) ApplyPayment(ctx context.Context, invoiceID uuid.UUID, apply invoicing.PaymentFunc) (*invoicing.Invoice, *invoicing.Receipt, error) {
	var (
		invoice *invoicing.Invoice
		receipt *invoicing.Receipt
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.InvoiceModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", invoiceID).
			First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invoicing.NewInvoiceNotFoundError(invoiceID)
			}
			return err
		}
		if err := tx.Where("invoice_id = ?", invoiceID).Order("line_no ASC").Find(&model.LineItems).Error; err != nil {
			return err
		}

		loaded := model.ToDomain()
		readVersion := loaded.Version

		rec, err := apply(loaded)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("payment on invoice %s produced no receipt", invoiceID)
		}

		result := tx.Model(&models.InvoiceModel{}).
			Where("id = ? AND version = ? AND pending_amount >= ?", invoiceID, readVersion, rec.AmountPaid.Amount()).
			Updates(map[string]any{
				"pending_amount":  loaded.PendingAmount.Amount(),
				"status":          loaded.Status,
				"receipt_count":   loaded.ReceiptCount,
				"last_receipt_at": loaded.LastReceiptAt,
				"settled_at":      loaded.SettledAt,
				"version":         loaded.Version,
				"updated_at":      loaded.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		if err := tx.Create(models.ReceiptModelFromDomain(rec)).Error; err != nil {
			return err
		}

		invoice, receipt = loaded, rec
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return invoice, receipt, nil
}

// GormReceiptRepository implements ReceiptRepository using GORM
type GormReceiptRepository struct {
	db *gorm.DB
}

// NewGormReceiptRepository creates a new GormReceiptRepository
func NewGormReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// ListByInvoice returns an invoice's receipts in the order they were accepted
func (r *GormReceiptRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]invoicing.Receipt, error) {
	var rows []models.ReceiptModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC, sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	receipts := make([]invoicing.Receipt, len(rows))
	for i := range rows {
		receipts[i] = rows[i].ToDomain()
	}
	return receipts, nil
}

// Compile-time interface checks
var (
	_ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
	_ invoicing.ReceiptRepository = (*GormReceiptRepository)(nil)
)
