package persistence

import (
	"fmt"
	"strings"

	"github.com/leadcrm/backend/internal/domain/invoicing"
)

const defaultInvoiceOrderColumn = "created_at"

// invoiceOrderColumns are the only columns an invoice listing may sort by;
// anything else falls back to creation time.
var invoiceOrderColumns = map[string]func(a, b *invoicing.Invoice) int{
	"created_at":     func(a, b *invoicing.Invoice) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updated_at":     func(a, b *invoicing.Invoice) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	"total":          func(a, b *invoicing.Invoice) int { return a.Total.Amount().Cmp(b.Total.Amount()) },
	"pending_amount": func(a, b *invoicing.Invoice) int { return a.PendingAmount.Amount().Cmp(b.PendingAmount.Amount()) },
	"status":         func(a, b *invoicing.Invoice) int { return strings.Compare(string(a.Status), string(b.Status)) },
}

// invoiceOrder is a sanitised ORDER BY for invoice listings. Ties break on id
// so pages never overlap.
type invoiceOrder struct {
	column    string
	ascending bool
}

// newInvoiceOrder accepts a whitelisted column and "asc" in any case; anything
// else, including injected SQL, yields the newest-first default.
func newInvoiceOrder(orderBy, orderDir string) invoiceOrder {
	column := strings.TrimSpace(orderBy)
	if _, ok := invoiceOrderColumns[column]; !ok {
		column = defaultInvoiceOrderColumn
	}
	return invoiceOrder{
		column:    column,
		ascending: strings.EqualFold(strings.TrimSpace(orderDir), "asc"),
	}
}

func (o invoiceOrder) direction() string {
	if o.ascending {
		return "ASC"
	}
	return "DESC"
}

// SQL renders the clause for gorm's Order.
func (o invoiceOrder) SQL() string {
	return fmt.Sprintf("%s %s, id %s", o.column, o.direction(), o.direction())
}

// compare orders two invoices the way SQL would, for the in-memory store.
func (o invoiceOrder) compare(a, b *invoicing.Invoice) int {
	c := invoiceOrderColumns[o.column](a, b)
	if c == 0 {
		c = strings.Compare(a.ID.String(), b.ID.String())
	}
	if !o.ascending {
		c = -c
	}
	return c
}
