package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/leadcrm/backend/internal/interfaces/http/dto"
)

const (
	// IdempotencyReplayedHeader marks a response served from the idempotency store
	IdempotencyReplayedHeader = "X-Idempotency-Replayed"
	// MaxIdempotencyKeyLength bounds the Idempotency-Key header
	MaxIdempotencyKeyLength = 255
	// DefaultIdempotencyTTL is how long keys and stored responses are kept
	DefaultIdempotencyTTL = 24 * time.Hour
)

// IdempotencyConfig holds configuration for the idempotency middleware
type IdempotencyConfig struct {
	Store  shared.IdempotencyStore
	TTL    time.Duration
	Logger *zap.Logger
}

// bodyCaptureWriter tees the response body so it can be stored
type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency honours the Idempotency-Key header on POST requests.
//
// The first request with a key reserves it. A 2xx response is stored and
// replayed verbatim to later requests with the same key, flagged with
// X-Idempotency-Replayed. If the response cannot be stored the key stays
// reserved until its TTL expires. Any non-2xx outcome releases the key so a
// corrected request may reuse it. A duplicate arriving while the first is still running
// gets 409 REQUEST_IN_PROGRESS. Keys are scoped by method and path.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if cfg.Store == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		requestID := getRequestID(c)
		if len(key) > MaxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeIdempotencyKey, "Idempotency-Key must be at most 255 characters", requestID))
			return
		}

		ctx := c.Request.Context()
		scoped := IdempotencyScope(c.Request.Method, c.Request.URL.Path, key)

		reserved, err := cfg.Store.Reserve(ctx, scoped, ttl)
		if err != nil {
			log.Error("idempotency reserve failed", zap.String("key", scoped), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeInternal, "Idempotency store unavailable", requestID))
			return
		}

		if !reserved {
			replayOrReject(c, cfg.Store, scoped, requestID, log)
			return
		}

		capture := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = capture

		// a 2xx outcome keeps the reservation even if storing the response fails
		succeeded := false
		// the request context may already be cancelled once the handler returns
		storeCtx := context.WithoutCancel(ctx)
		defer func() {
			if succeeded {
				return
			}
			if err := cfg.Store.Release(storeCtx, scoped); err != nil {
				log.Warn("idempotency release failed", zap.String("key", scoped), zap.Error(err))
			}
		}()

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		succeeded = true
		if err := cfg.Store.Complete(storeCtx, scoped, status, capture.body.Bytes(), ttl); err != nil {
			// retries see the key in flight until the TTL expires
			log.Error("idempotency complete failed", zap.String("key", scoped), zap.Error(err))
		}
	}
}

// replayOrReject answers a request whose key is already reserved
func replayOrReject(c *gin.Context, store shared.IdempotencyStore, scoped, requestID string, log *zap.Logger) {
	record, err := store.Lookup(c.Request.Context(), scoped)
	if err != nil {
		log.Error("idempotency lookup failed", zap.String("key", scoped), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInternal, "Idempotency store unavailable", requestID))
		return
	}

	if record != nil && record.State == shared.IdempotencyCompleted {
		c.Header(IdempotencyReplayedHeader, "true")
		c.Data(record.StatusCode, "application/json; charset=utf-8", record.Body)
		c.Abort()
		return
	}

	c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeRequestInProgress,
		"A request with this Idempotency-Key is still being processed",
		requestID,
	))
}

// IdempotencyScope builds the store key for a request
func IdempotencyScope(method, path, key string) string {
	return method + " " + path + " " + key
}
