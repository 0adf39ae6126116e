package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	invoicingapp "github.com/leadcrm/backend/internal/application/invoicing"
	"github.com/leadcrm/backend/internal/domain/shared/valueobject"
	"github.com/leadcrm/backend/internal/infrastructure/cache"
	"github.com/leadcrm/backend/internal/infrastructure/config"
	"github.com/leadcrm/backend/internal/infrastructure/persistence"
	"github.com/leadcrm/backend/internal/interfaces/http/dto"
	"github.com/leadcrm/backend/internal/interfaces/http/handler"
	"github.com/leadcrm/backend/internal/interfaces/http/middleware"
)

type engineFixture struct {
	engine    *gin.Engine
	leadID    uuid.UUID
	productID uuid.UUID
}

// newEngineFixture serves the whole API over in-memory adapters.
// The lead's branch taxes at 15% and the single product costs 100.00.
func newEngineFixture(t *testing.T, mutate func(*EngineConfig)) *engineFixture {
	t.Helper()
	require.NoError(t, middleware.SetupValidator())

	store := persistence.NewMemoryInvoiceStore()
	catalog := persistence.NewMemoryCatalog()
	f := &engineFixture{leadID: uuid.New(), productID: uuid.New()}
	branchID := uuid.New()
	catalog.SetLeadBranch(f.leadID, branchID)
	catalog.SetTaxPercent(branchID, decimal.NewFromInt(15))
	catalog.SetPrice(f.productID, valueobject.MustMoney("100.00", valueobject.USD))

	idem := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { idem.Close() })

	service := invoicingapp.NewReconciliationService(store, store, catalog, catalog, catalog)
	cfg := EngineConfig{
		HTTP:             config.HTTPConfig{MaxBodySize: 1 << 20},
		ServiceName:      "billing-test",
		IdempotencyStore: idem,
		IdempotencyTTL:   time.Minute,
		Invoicing:        handler.NewInvoicingHandler(service),
		System:           handler.NewSystemHandler("billing-test", "test", nil),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	f.engine = engine
	return f
}

func (f *engineFixture) post(path, body, idempotencyKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(middleware.IdempotencyKeyHeader, idempotencyKey)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *engineFixture) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// createInvoice opens an invoice of 115.00
func (f *engineFixture) createInvoice(t *testing.T) string {
	t.Helper()
	w := f.post("/api/v1/invoicing/invoices",
		`{"lead_id":"`+f.leadID.String()+`","product_ids":["`+f.productID.String()+`"]}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data invoicingapp.InvoiceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "115.00", resp.Data.Total)
	return resp.Data.ID.String()
}

func TestNewEngine_InvoiceLifecycle(t *testing.T) {
	f := newEngineFixture(t, nil)
	id := f.createInvoice(t)
	paymentsPath := "/api/v1/invoicing/invoices/" + id + "/payments"

	w := f.post(paymentsPath, `{"amount":"100.00"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = f.post(paymentsPath, `{"amount":"20.00"}`, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeOverpayment)

	w = f.post(paymentsPath, `{"amount":"15.00"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.get("/api/v1/invoicing/invoices/" + id + "/balance")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pending_amount":"0.00"`)
	assert.Contains(t, w.Body.String(), `"status":"SETTLED"`)

	w = f.get("/api/v1/invoicing/invoices/" + id + "/receipts")
	require.Equal(t, http.StatusOK, w.Code)
	var receipts struct {
		Data []invoicingapp.ReceiptResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipts))
	assert.Len(t, receipts.Data, 2)
}

func TestNewEngine_IdempotentPayment(t *testing.T) {
	f := newEngineFixture(t, nil)
	id := f.createInvoice(t)
	paymentsPath := "/api/v1/invoicing/invoices/" + id + "/payments"

	first := f.post(paymentsPath, `{"amount":"60.00"}`, "pay-1")
	require.Equal(t, http.StatusCreated, first.Code)

	retry := f.post(paymentsPath, `{"amount":"60.00"}`, "pay-1")
	assert.Equal(t, http.StatusCreated, retry.Code)
	assert.Equal(t, "true", retry.Header().Get(middleware.IdempotencyReplayedHeader))
	assert.JSONEq(t, first.Body.String(), retry.Body.String())

	w := f.get("/api/v1/invoicing/invoices/" + id + "/balance")
	assert.Contains(t, w.Body.String(), `"pending_amount":"55.00"`)
	assert.Contains(t, w.Body.String(), `"receipt_count":1`)
}

func TestNewEngine_Errors(t *testing.T) {
	f := newEngineFixture(t, nil)

	t.Run("unknown route uses the envelope", func(t *testing.T) {
		w := f.get("/api/v1/nope")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeNotFound)
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/invoicing/invoices", nil)
		w := httptest.NewRecorder()
		f.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("security headers", func(t *testing.T) {
		w := f.get("/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})
}

func TestNewEngine_Limits(t *testing.T) {
	t.Run("body limit", func(t *testing.T) {
		f := newEngineFixture(t, func(cfg *EngineConfig) { cfg.HTTP.MaxBodySize = 16 })
		w := f.post("/api/v1/invoicing/invoices", `{"lead_id":"`+f.leadID.String()+`"}`, "")
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("rate limit", func(t *testing.T) {
		f := newEngineFixture(t, func(cfg *EngineConfig) {
			cfg.RateLimiter = middleware.NewRateLimiter(2, time.Minute)
		})
		assert.Equal(t, http.StatusOK, f.get("/health").Code)
		assert.Equal(t, http.StatusOK, f.get("/health").Code)
		assert.Equal(t, http.StatusTooManyRequests, f.get("/health").Code)
	})

	t.Run("invalid trusted proxy", func(t *testing.T) {
		_, err := NewEngine(EngineConfig{HTTP: config.HTTPConfig{TrustedProxies: []string{"not-an-ip"}}})
		assert.Error(t, err)
	})
}

func TestNewEngine_Swagger(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		f := newEngineFixture(t, nil)
		assert.Equal(t, http.StatusNotFound, f.get("/swagger/doc.json").Code)
	})

	t.Run("serves the API document", func(t *testing.T) {
		f := newEngineFixture(t, func(cfg *EngineConfig) {
			cfg.Swagger = middleware.SwaggerConfig{Enabled: true}
		})
		w := f.get("/swagger/doc.json")
		require.Equal(t, http.StatusOK, w.Code)

		var doc struct {
			Info     struct{ Title string } `json:"info"`
			BasePath string                 `json:"basePath"`
			Paths    map[string]any         `json:"paths"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
		assert.Equal(t, "Billing Service API", doc.Info.Title)
		assert.Equal(t, "/api/v1", doc.BasePath)
		assert.Contains(t, doc.Paths, "/invoicing/invoices/{id}/payments")
		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "script-src 'self' 'unsafe-inline'")
	})

	t.Run("API routes keep the strict content security policy", func(t *testing.T) {
		f := newEngineFixture(t, func(cfg *EngineConfig) {
			cfg.Swagger = middleware.SwaggerConfig{Enabled: true}
		})
		w := f.get("/health")
		assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", w.Header().Get("Content-Security-Policy"))
	})

	t.Run("whitelist rejects other clients", func(t *testing.T) {
		f := newEngineFixture(t, func(cfg *EngineConfig) {
			cfg.Swagger = middleware.SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.1.1.1"}}
		})
		assert.Equal(t, http.StatusForbidden, f.get("/swagger/doc.json").Code)
	})
}
