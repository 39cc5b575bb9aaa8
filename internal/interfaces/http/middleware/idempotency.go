package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader is the request header carrying the client key
const IdempotencyKeyHeader = "Idempotency-Key"

// MaxIdempotencyKeyLength bounds the client key
const MaxIdempotencyKeyLength = 255

// Idempotency rejects a replayed mutating request. The key is scoped to the
// caller as "<user>:<key>" and held for ttl. A request that ends in an error
// status releases its key so the client can retry. Requests without the
// header pass through. When the store itself fails the request is refused:
// a financial mutation is never applied without the guard.
func Idempotency(store shared.IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.GetHeader(IdempotencyKeyHeader)
		if clientKey == "" {
			c.Next()
			return
		}
		requestID := c.GetString(RequestIDKey)
		if len(clientKey) > MaxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "Idempotency-Key is too long", requestID))
			return
		}

		ctx := c.Request.Context()
		log := logger.L(ctx)
		key := GetJWTUserID(c) + ":" + clientKey

		fresh, err := store.MarkProcessed(ctx, key, ttl)
		if err != nil {
			log.Error("idempotency store unavailable", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeInternal, "An unexpected error occurred", requestID))
			return
		}
		if !fresh {
			log.Info("duplicate request rejected", zap.String("idempotency_key", clientKey))
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeDuplicateRequest, "A request with this Idempotency-Key was already accepted", requestID))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			// the request context may already be cancelled by now
			if err := store.Release(context.WithoutCancel(ctx), key); err != nil {
				log.Warn("failed to release idempotency key", zap.Error(err))
			}
		}
	}
}
