package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadcrm/backend/internal/domain/invoicing"
	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/leadcrm/backend/internal/domain/shared/valueobject"
	"github.com/leadcrm/backend/internal/infrastructure/logger"
	"github.com/leadcrm/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ReconciliationService creates invoices for leads and reconciles payments against them
type ReconciliationService struct {
	invoiceRepo    invoicing.InvoiceRepository
	receiptRepo    invoicing.ReceiptRepository
	catalog        invoicing.ProductCatalog
	taxPolicy      invoicing.BranchTaxPolicy
	leads          invoicing.LeadDirectory
	ledger         *invoicing.ReceiptLedger
	eventPublisher shared.EventPublisher
	metrics        *telemetry.BillingMetrics
	logger         *zap.Logger
	currency       valueobject.Currency
}

// Option configures a ReconciliationService
type Option func(*ReconciliationService)

// WithEventPublisher publishes domain events after each successful write
func WithEventPublisher(p shared.EventPublisher) Option {
	return func(s *ReconciliationService) {
		s.eventPublisher = p
	}
}

// WithMetrics records billing metrics
func WithMetrics(m *telemetry.BillingMetrics) Option {
	return func(s *ReconciliationService) {
		s.metrics = m
	}
}

// WithLogger sets the base logger; request fields are added from the context
func WithLogger(l *zap.Logger) Option {
	return func(s *ReconciliationService) {
		s.logger = l
	}
}

// WithCurrency sets the billing currency. Defaults to valueobject.DefaultCurrency.
func WithCurrency(c valueobject.Currency) Option {
	return func(s *ReconciliationService) {
		s.currency = c
	}
}

// WithLedger replaces the receipt ledger, e.g. to inject a clock
func WithLedger(l *invoicing.ReceiptLedger) Option {
	return func(s *ReconciliationService) {
		s.ledger = l
	}
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	invoiceRepo invoicing.InvoiceRepository,
	receiptRepo invoicing.ReceiptRepository,
	catalog invoicing.ProductCatalog,
	taxPolicy invoicing.BranchTaxPolicy,
	leads invoicing.LeadDirectory,
	opts ...Option,
) *ReconciliationService {
	s := &ReconciliationService{
		invoiceRepo: invoiceRepo,
		receiptRepo: receiptRepo,
		catalog:     catalog,
		taxPolicy:   taxPolicy,
		leads:       leads,
		ledger:      invoicing.NewReceiptLedger(),
		logger:      zap.NewNop(),
		currency:    valueobject.DefaultCurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInvoice prices the selected products for the lead's branch and stores
// a new open invoice. Nothing is persisted when any lookup or rule fails.
func (s *ReconciliationService) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "create_invoice")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrLeadID, input.LeadID.String(),
		telemetry.SpanAttrLineItems, len(input.ProductIDs),
	)

	inv, err := s.buildInvoice(ctx, input)
	if err != nil {
		s.recordSpanError(span, err)
		return nil, err
	}

	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	s.publishEvents(ctx, inv)
	s.metrics.RecordInvoiceCreated(ctx, string(inv.Currency), inv.Total.Amount())

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, inv.ID.String(),
		telemetry.SpanAttrBranchID, inv.BranchID.String(),
		telemetry.SpanAttrAmount, inv.Total.StringFixed(),
	)
	telemetry.SetOK(span)

	logger.WithLogger(ctx, s.logger).Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("lead_id", inv.LeadID.String()),
		zap.String("total", inv.Total.StringFixed()),
		zap.Int("line_items", len(inv.LineItems)),
	)

	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// buildInvoice resolves branch, tax rate and prices, then computes the invoice
func (s *ReconciliationService) buildInvoice(ctx context.Context, input CreateInvoiceInput) (*invoicing.Invoice, error) {
	if input.LeadID == uuid.Nil {
		return nil, invoicing.NewInvalidInputError("lead_id is required")
	}
	if len(input.ProductIDs) == 0 {
		return nil, invoicing.NewInvalidInputError("at least one product id is required")
	}

	branchID, err := s.leads.GetBranchID(ctx, input.LeadID)
	if err != nil {
		return nil, err
	}
	taxPercent, err := s.taxPolicy.GetTaxPercent(ctx, branchID)
	if err != nil {
		return nil, err
	}

	prices := make(map[uuid.UUID]valueobject.Money, len(input.ProductIDs))
	items := make([]invoicing.ProductSelection, 0, len(input.ProductIDs))
	for _, productID := range input.ProductIDs {
		price, ok := prices[productID]
		if !ok {
			price, err = s.catalog.GetPrice(ctx, productID)
			if err != nil {
				return nil, err
			}
			if price.Currency() != s.currency {
				return nil, invoicing.NewInvalidInputError(fmt.Sprintf(
					"product %s is priced in %s, invoices are billed in %s", productID, price.Currency(), s.currency))
			}
			prices[productID] = price
		}
		items = append(items, invoicing.ProductSelection{ProductID: productID, UnitPrice: price})
	}

	discount, err := valueobject.NewMoney(input.Discount, s.currency)
	if err != nil {
		return nil, invoicing.NewInvalidInputError(err.Error())
	}

	return invoicing.NewInvoice(input.LeadID, branchID, items, discount, taxPercent)
}

// RecordPayment applies a payment to an invoice. The balance check and the
// decrement happen atomically per invoice; payments on different invoices
// do not wait for each other.
func (s *ReconciliationService) RecordPayment(ctx context.Context, input RecordPaymentInput) (*ReceiptResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "record_payment")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, input.InvoiceID.String(),
		telemetry.SpanAttrAmount, input.Amount.String(),
	)

	start := time.Now()
	inv, receipt, err := s.applyPayment(ctx, input)
	if err != nil {
		s.metrics.RecordPaymentDuration(ctx, time.Since(start), telemetry.OutcomeRejected)
		s.rejectPayment(ctx, span, input, err)
		return nil, err
	}
	s.metrics.RecordPaymentDuration(ctx, time.Since(start), telemetry.OutcomeAccepted)

	s.publishEvents(ctx, inv)
	s.metrics.RecordPaymentAccepted(ctx, string(inv.Currency), receipt.AmountPaid.Amount(), inv.IsSettled())

	telemetry.SetAttributes(span,
		telemetry.SpanAttrReceiptID, receipt.ID.String(),
		telemetry.SpanAttrPending, inv.PendingAmount.StringFixed(),
		telemetry.SpanAttrInvoiceStatus, inv.Status.String(),
	)
	telemetry.SetOK(span)

	logger.WithLogger(ctx, s.logger).Info("payment accepted",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("amount", receipt.AmountPaid.StringFixed()),
		zap.String("pending_amount", inv.PendingAmount.StringFixed()),
		zap.String("status", inv.Status.String()),
	)

	resp := ToReceiptResponse(*receipt)
	resp.PendingAmount = inv.PendingAmount.StringFixed()
	resp.InvoiceStatus = inv.Status.String()
	return &resp, nil
}

func (s *ReconciliationService) applyPayment(ctx context.Context, input RecordPaymentInput) (*invoicing.Invoice, *invoicing.Receipt, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, nil, invoicing.NewInvalidInputError("invoice_id is required")
	}
	if !input.Amount.IsPositive() {
		amount, _ := valueobject.NewMoney(input.Amount, s.currency)
		return nil, nil, invoicing.NewInvalidAmountError(amount)
	}

	return s.invoiceRepo.ApplyPayment(ctx, input.InvoiceID, func(inv *invoicing.Invoice) (*invoicing.Receipt, error) {
		amount, err := valueobject.NewMoney(input.Amount, inv.Currency)
		if err != nil {
			return nil, invoicing.NewInvalidInputError(err.Error())
		}
		return s.ledger.RecordPayment(inv, amount)
	})
}

func (s *ReconciliationService) rejectPayment(ctx context.Context, span trace.Span, input RecordPaymentInput, err error) {
	code := "INTERNAL_ERROR"
	if de, ok := shared.AsDomainError(err); ok {
		code = de.Code
	}
	s.recordSpanError(span, err)
	s.metrics.RecordPaymentRejected(ctx, code)

	logger.WithLogger(ctx, s.logger).Warn("payment rejected",
		zap.String("invoice_id", input.InvoiceID.String()),
		zap.String("amount", input.Amount.String()),
		zap.String("error_code", code),
		zap.Error(err),
	)
}

// GetOutstandingBalance returns the invoice's pending amount
func (s *ReconciliationService) GetOutstandingBalance(ctx context.Context, invoiceID uuid.UUID) (*BalanceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "get_outstanding_balance")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	inv, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		s.recordSpanError(span, err)
		return nil, err
	}

	resp := ToBalanceResponse(inv)
	return &resp, nil
}

// GetInvoice returns an invoice with its line items
func (s *ReconciliationService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "get_invoice")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	inv, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		s.recordSpanError(span, err)
		return nil, err
	}

	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// ListReceipts returns an invoice's receipts ordered by creation time, then sequence
func (s *ReconciliationService) ListReceipts(ctx context.Context, invoiceID uuid.UUID) ([]ReceiptResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "list_receipts")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	if _, err := s.findInvoice(ctx, invoiceID); err != nil {
		s.recordSpanError(span, err)
		return nil, err
	}

	receipts, err := s.receiptRepo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}

	out := make([]ReceiptResponse, len(receipts))
	for i, r := range receipts {
		out[i] = ToReceiptResponse(r)
	}
	return out, nil
}

// ListInvoicesByLead pages through a lead's invoices, newest first by default
func (s *ReconciliationService) ListInvoicesByLead(ctx context.Context, input ListInvoicesInput) (*shared.Paginated[InvoiceResponse], error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "list_invoices_by_lead")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrLeadID, input.LeadID.String())

	if input.Status != nil && !input.Status.IsValid() {
		err := invoicing.NewInvalidInputError(fmt.Sprintf("unknown invoice status %q", *input.Status))
		s.recordSpanError(span, err)
		return nil, err
	}
	if _, err := s.leads.GetBranchID(ctx, input.LeadID); err != nil {
		s.recordSpanError(span, err)
		return nil, err
	}

	filter := input.filter()
	invoices, total, err := s.invoiceRepo.FindByLead(ctx, input.LeadID, filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	items := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		items[i] = ToInvoiceResponse(&invoices[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

func (s *ReconciliationService) findInvoice(ctx context.Context, invoiceID uuid.UUID) (*invoicing.Invoice, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if inv == nil {
		return nil, invoicing.NewInvoiceNotFoundError(invoiceID)
	}
	return inv, nil
}

// publishEvents hands the aggregate's events to the publisher and clears them.
// A publishing failure is logged; the write it describes is already committed.
func (s *ReconciliationService) publishEvents(ctx context.Context, inv *invoicing.Invoice) {
	events := inv.GetDomainEvents()
	inv.ClearDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, s.logger).Error("failed to publish domain events",
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *ReconciliationService) recordSpanError(span trace.Span, err error) {
	if de, ok := shared.AsDomainError(err); ok {
		telemetry.SetAttribute(span, telemetry.SpanAttrErrorCode, de.Code)
	}
	telemetry.RecordError(span, err)
}
