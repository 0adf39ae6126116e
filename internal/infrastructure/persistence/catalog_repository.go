package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/invoicing"
	"github.com/leadcrm/backend/internal/domain/shared/valueobject"
	"github.com/leadcrm/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormCatalog reads product prices, branch tax rates and lead ownership from
// the CRM master tables. It never writes.
type GormCatalog struct {
	db *gorm.DB
}

// NewGormCatalog creates a new GormCatalog
func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

// GetPrice returns the current price of a product
func (c *GormCatalog) GetPrice(ctx context.Context, productID uuid.UUID) (valueobject.Money, error) {
	var product models.ProductModel
	if err := c.db.WithContext(ctx).
		Select("id", "price", "currency").
		Where("id = ?", productID).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return valueobject.Money{}, invoicing.NewProductNotFoundError(productID)
		}
		return valueobject.Money{}, err
	}
	return valueobject.NewMoney(product.Price, valueobject.Currency(product.Currency))
}

// GetTaxPercent returns the flat tax percentage of a branch
func (c *GormCatalog) GetTaxPercent(ctx context.Context, branchID uuid.UUID) (decimal.Decimal, error) {
	var branch models.BranchModel
	if err := c.db.WithContext(ctx).
		Select("id", "tax_percent").
		Where("id = ?", branchID).
		First(&branch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, invoicing.NewBranchNotFoundError(branchID)
		}
		return decimal.Zero, err
	}
	return branch.TaxPercent, nil
}

// GetBranchID returns the branch a lead belongs to
func (c *GormCatalog) GetBranchID(ctx context.Context, leadID uuid.UUID) (uuid.UUID, error) {
	var lead models.LeadModel
	if err := c.db.WithContext(ctx).
		Select("id", "branch_id").
		Where("id = ?", leadID).
		First(&lead).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, invoicing.NewLeadNotFoundError(leadID)
		}
		return uuid.Nil, err
	}
	return lead.BranchID, nil
}

var (
	_ invoicing.ProductCatalog  = (*GormCatalog)(nil)
	_ invoicing.BranchTaxPolicy = (*GormCatalog)(nil)
	_ invoicing.LeadDirectory   = (*GormCatalog)(nil)
)
