package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	invoicingapp "github.com/leadcrm/backend/internal/application/invoicing"
	"github.com/leadcrm/backend/internal/domain/invoicing"
	"github.com/leadcrm/backend/internal/interfaces/http/dto"
)

// InvoicingHandler serves invoice creation and payment reconciliation
type InvoicingHandler struct {
	BaseHandler
	service *invoicingapp.ReconciliationService
}

// NewInvoicingHandler creates a new InvoicingHandler
func NewInvoicingHandler(service *invoicingapp.ReconciliationService) *InvoicingHandler {
	return &InvoicingHandler{service: service}
}

// CreateInvoiceRequest is the body of POST /invoicing/invoices.
// Amounts are decimal strings so no precision is lost in JSON.
type CreateInvoiceRequest struct {
	LeadID     string   `json:"lead_id" binding:"required,uuid"`
	ProductIDs []string `json:"product_ids" binding:"required,min=1,dive,uuid"`
	Discount   string   `json:"discount" binding:"omitempty,decimal_amount" example:"10.00"`
}

// RecordPaymentRequest is the body of POST /invoicing/invoices/:id/payments
type RecordPaymentRequest struct {
	Amount string `json:"amount" binding:"required,decimal_amount" example:"75.50"`
}

// ListLeadInvoicesQuery filters and pages a lead's invoices
type ListLeadInvoicesQuery struct {
	dto.ListRequest
	Status string `form:"status" binding:"omitempty,oneof=OPEN SETTLED"`
}

// CreateInvoice godoc
// @Summary      Create an invoice for a lead
// @Description  Prices the selected products at the lead's branch tax rate, applies the discount and opens the invoice
// @Tags         invoicing
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Replay-safe request key"
// @Param        request body CreateInvoiceRequest true "Invoice request"
// @Success      201 {object} dto.Response{data=invoicingapp.InvoiceResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /invoicing/invoices [post]
func (h *InvoicingHandler) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	productIDs := make([]uuid.UUID, len(req.ProductIDs))
	for i, id := range req.ProductIDs {
		productIDs[i] = uuid.MustParse(id)
	}
	discount := decimal.Zero
	if req.Discount != "" {
		discount = decimal.RequireFromString(req.Discount)
	}

	invoice, err := h.service.CreateInvoice(c.Request.Context(), invoicingapp.CreateInvoiceInput{
		LeadID:     uuid.MustParse(req.LeadID),
		ProductIDs: productIDs,
		Discount:   discount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, invoice)
}

// GetInvoice godoc
// @Summary      Get an invoice
// @Tags         invoicing
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Response{data=invoicingapp.InvoiceResponse}
// @Failure      404 {object} dto.Response
// @Router       /invoicing/invoices/{id} [get]
func (h *InvoicingHandler) GetInvoice(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	invoice, err := h.service.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// GetBalance godoc
// @Summary      Get the outstanding balance of an invoice
// @Tags         invoicing
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Response{data=invoicingapp.BalanceResponse}
// @Failure      404 {object} dto.Response
// @Router       /invoicing/invoices/{id}/balance [get]
func (h *InvoicingHandler) GetBalance(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	balance, err := h.service.GetOutstandingBalance(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, balance)
}

// RecordPayment godoc
// @Summary      Record a payment against an invoice
// @Description  Accepts a payment no larger than the pending amount and issues a receipt.
// @Description  Overpayments are rejected with 409 OVERPAYMENT and leave the invoice unchanged.
// @Tags         invoicing
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        Idempotency-Key header string false "Replay-safe request key"
// @Param        request body RecordPaymentRequest true "Payment"
// @Success      201 {object} dto.Response{data=invoicingapp.ReceiptResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Router       /invoicing/invoices/{id}/payments [post]
func (h *InvoicingHandler) RecordPayment(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	receipt, err := h.service.RecordPayment(c.Request.Context(), invoicingapp.RecordPaymentInput{
		InvoiceID: id,
		Amount:    decimal.RequireFromString(req.Amount),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, receipt)
}

// ListReceipts godoc
// @Summary      List the receipts of an invoice in sequence order
// @Tags         invoicing
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]invoicingapp.ReceiptResponse}
// @Failure      404 {object} dto.Response
// @Router       /invoicing/invoices/{id}/receipts [get]
func (h *InvoicingHandler) ListReceipts(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	receipts, err := h.service.ListReceipts(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, receipts)
}

// ListLeadInvoices godoc
// @Summary      List a lead's invoices
// @Tags         invoicing
// @Produce      json
// @Param        lead_id path string true "Lead ID" format(uuid)
// @Param        status query string false "OPEN or SETTLED"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        order_by query string false "created_at, updated_at, total, pending_amount or status"
// @Param        order_dir query string false "asc or desc"
// @Success      200 {object} dto.Response{data=[]invoicingapp.InvoiceResponse}
// @Failure      404 {object} dto.Response
// @Router       /invoicing/leads/{lead_id}/invoices [get]
func (h *InvoicingHandler) ListLeadInvoices(c *gin.Context) {
	leadID, ok := h.ParseUUIDParam(c, "lead_id")
	if !ok {
		return
	}

	var query ListLeadInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	input := invoicingapp.ListInvoicesInput{
		LeadID:   leadID,
		Page:     query.Page,
		PageSize: query.PageSize,
		OrderBy:  query.OrderBy,
		OrderDir: query.OrderDir,
	}
	if query.Status != "" {
		status := invoicing.InvoiceStatus(query.Status)
		input.Status = &status
	}

	result, err := h.service.ListInvoicesByLead(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}
