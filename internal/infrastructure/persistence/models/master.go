package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BranchModel is the read-only view of a CRM branch and its flat tax rate.
type BranchModel struct {
	BaseModel
	Name       string          `gorm:"type:varchar(200);not null"`
	TaxPercent decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (BranchModel) TableName() string {
	return "branches"
}

// ProductModel is the read-only view of a catalog product and its current price.
type ProductModel struct {
	BaseModel
	Name     string          `gorm:"type:varchar(200);not null"`
	Price    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Currency string          `gorm:"type:varchar(3);not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// LeadModel is the read-only view of a CRM lead and the branch that owns it.
type LeadModel struct {
	BaseModel
	Name     string    `gorm:"type:varchar(200);not null"`
	BranchID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (LeadModel) TableName() string {
	return "leads"
}

// All lists every model in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&BranchModel{},
		&LeadModel{},
		&ProductModel{},
		&InvoiceModel{},
		&InvoiceLineItemModel{},
		&ReceiptModel{},
	}
}
