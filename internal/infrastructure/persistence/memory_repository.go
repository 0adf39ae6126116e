package persistence

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/invoicing"
	"github.com/leadcrm/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// MemoryInvoiceStore keeps invoices and receipts in process memory.
// Payments on one invoice are serialised by that invoice's own mutex;
// the map lock is only held while copying entries in or out.
type MemoryInvoiceStore struct {
	mu       sync.RWMutex
	invoices map[uuid.UUID]*invoicing.Invoice
	receipts map[uuid.UUID][]invoicing.Receipt
	locks    sync.Map // uuid.UUID -> *sync.Mutex
}

// NewMemoryInvoiceStore creates an empty store
func NewMemoryInvoiceStore() *MemoryInvoiceStore {
	return &MemoryInvoiceStore{
		invoices: make(map[uuid.UUID]*invoicing.Invoice),
		receipts: make(map[uuid.UUID][]invoicing.Receipt),
	}
}

func cloneInvoice(inv *invoicing.Invoice) *invoicing.Invoice {
	c := *inv
	c.LineItems = slices.Clone(inv.LineItems)
	if inv.LastReceiptAt != nil {
		t := *inv.LastReceiptAt
		c.LastReceiptAt = &t
	}
	if inv.SettledAt != nil {
		t := *inv.SettledAt
		c.SettledAt = &t
	}
	c.ClearDomainEvents()
	return &c
}

func (s *MemoryInvoiceStore) invoiceLock(id uuid.UUID) *sync.Mutex {
	l, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// FindByID returns a copy of the stored invoice, or nil if it does not exist
func (s *MemoryInvoiceStore) FindByID(_ context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, nil
	}
	return cloneInvoice(inv), nil
}

// FindByLead lists a lead's invoices in the filter's order, newest first by default
func (s *MemoryInvoiceStore) FindByLead(_ context.Context, leadID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	s.mu.RLock()
	matched := make([]invoicing.Invoice, 0)
	for _, inv := range s.invoices {
		if inv.LeadID != leadID {
			continue
		}
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}
		matched = append(matched, *cloneInvoice(inv))
	}
	s.mu.RUnlock()

	order := newInvoiceOrder(filter.OrderBy, filter.OrderDir)
	slices.SortFunc(matched, func(a, b invoicing.Invoice) int { return order.compare(&a, &b) })

	total := int64(len(matched))
	if filter.PageSize > 0 {
		start := min(filter.Offset(), len(matched))
		end := min(start+filter.PageSize, len(matched))
		matched = matched[start:end]
	}
	return matched, total, nil
}

// Create stores a copy of the invoice
func (s *MemoryInvoiceStore) Create(_ context.Context, invoice *invoicing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[invoice.ID] = cloneInvoice(invoice)
	return nil
}

// ApplyPayment runs apply on a copy of the invoice while holding its mutex and
// stores the result together with the receipt
func (s *MemoryInvoiceStore) ApplyPayment(ctx context.Context, invoiceID uuid.UUID, apply invoicing.PaymentFunc) (*invoicing.Invoice, *invoicing.Receipt, error) {
	// invoices are never removed, so an id seen here stays valid under the lock
	s.mu.RLock()
	_, exists := s.invoices[invoiceID]
	s.mu.RUnlock()
	if !exists {
		return nil, nil, invoicing.NewInvoiceNotFoundError(invoiceID)
	}

	lock := s.invoiceLock(invoiceID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	current, _ := s.FindByID(ctx, invoiceID)

	receipt, err := apply(current)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	s.invoices[invoiceID] = cloneInvoice(current)
	s.receipts[invoiceID] = append(s.receipts[invoiceID], *receipt)
	s.mu.Unlock()

	return current, receipt, nil
}

// ListByInvoice returns the receipts of an invoice in acceptance order
func (s *MemoryInvoiceStore) ListByInvoice(_ context.Context, invoiceID uuid.UUID) ([]invoicing.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.receipts[invoiceID]), nil
}

// MemoryCatalog is an in-process ProductCatalog, BranchTaxPolicy and LeadDirectory
type MemoryCatalog struct {
	mu       sync.RWMutex
	prices   map[uuid.UUID]valueobject.Money
	taxes    map[uuid.UUID]decimal.Decimal
	branches map[uuid.UUID]uuid.UUID
}

// NewMemoryCatalog creates an empty catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		prices:   make(map[uuid.UUID]valueobject.Money),
		taxes:    make(map[uuid.UUID]decimal.Decimal),
		branches: make(map[uuid.UUID]uuid.UUID),
	}
}

// SetPrice sets a product price
func (c *MemoryCatalog) SetPrice(productID uuid.UUID, price valueobject.Money) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[productID] = price
}

// SetTaxPercent sets a branch tax rate
func (c *MemoryCatalog) SetTaxPercent(branchID uuid.UUID, percent decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taxes[branchID] = percent
}

// SetLeadBranch attaches a lead to a branch
func (c *MemoryCatalog) SetLeadBranch(leadID, branchID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.branches[leadID] = branchID
}

// GetPrice implements invoicing.ProductCatalog
func (c *MemoryCatalog) GetPrice(_ context.Context, productID uuid.UUID) (valueobject.Money, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	price, ok := c.prices[productID]
	if !ok {
		return valueobject.Money{}, invoicing.NewProductNotFoundError(productID)
	}
	return price, nil
}

// GetTaxPercent implements invoicing.BranchTaxPolicy
func (c *MemoryCatalog) GetTaxPercent(_ context.Context, branchID uuid.UUID) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	percent, ok := c.taxes[branchID]
	if !ok {
		return decimal.Zero, invoicing.NewBranchNotFoundError(branchID)
	}
	return percent, nil
}

// GetBranchID implements invoicing.LeadDirectory
func (c *MemoryCatalog) GetBranchID(_ context.Context, leadID uuid.UUID) (uuid.UUID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	branchID, ok := c.branches[leadID]
	if !ok {
		return uuid.Nil, invoicing.NewLeadNotFoundError(leadID)
	}
	return branchID, nil
}

var (
	_ invoicing.InvoiceRepository = (*MemoryInvoiceStore)(nil)
	_ invoicing.ReceiptRepository = (*MemoryInvoiceStore)(nil)
	_ invoicing.ProductCatalog    = (*MemoryCatalog)(nil)
	_ invoicing.BranchTaxPolicy   = (*MemoryCatalog)(nil)
	_ invoicing.LeadDirectory     = (*MemoryCatalog)(nil)
)
