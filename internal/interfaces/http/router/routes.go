package router

import (
	"github.com/gin-gonic/gin"

	"github.com/leadcrm/backend/internal/interfaces/http/handler"
)

// InvoicingRoutes mounts the invoicing API under /invoicing.
// Extra middleware, such as idempotency, applies to every route in the group.
func InvoicingRoutes(h *handler.InvoicingHandler, mw ...gin.HandlerFunc) *DomainGroup {
	g := NewDomainGroup("invoicing", "/invoicing").Use(mw...)

	g.POST("/invoices", h.CreateInvoice)
	g.GET("/invoices/:id", h.GetInvoice)
	g.GET("/invoices/:id/balance", h.GetBalance)
	g.POST("/invoices/:id/payments", h.RecordPayment)
	g.GET("/invoices/:id/receipts", h.ListReceipts)

	g.Group("leads", "/leads").GET("/:lead_id/invoices", h.ListLeadInvoices)
	return g
}

// SystemRoutes mounts system information under /system
func SystemRoutes(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "/system").
		GET("/info", h.GetSystemInfo).
		GET("/health", h.Health)
}
