package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/dto"
)

// NonceHeader carries the one-time action nonce of a mutating request
const NonceHeader = "X-Sync-Nonce"

// NonceConsumer redeems one-time nonces issued to a subject
type NonceConsumer interface {
	Consume(ctx context.Context, subject, nonce string) (bool, error)
}

// RequireNonce consumes the X-Sync-Nonce header for the authenticated
// subject, rejecting replays. When required is false the check is skipped.
func RequireNonce(store NonceConsumer, required bool, zl *zap.Logger) gin.HandlerFunc {
	if !required || store == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if zl == nil {
		zl = zap.NewNop()
	}
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			abortWithError(c, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}
		nonce := c.GetHeader(NonceHeader)
		if nonce == "" {
			abortWithError(c, dto.ErrCodeNonceInvalid, "Missing "+NonceHeader+" header")
			return
		}

		ok, err := store.Consume(c.Request.Context(), claims.Actor(), nonce)
		if err != nil {
			zl.Error("Failed to consume nonce", zap.Error(err), zap.String("request_id", GetRequestID(c)))
			abortWithError(c, dto.ErrCodeInternal, "Nonce store unavailable")
			return
		}
		if !ok {
			abortWithError(c, dto.ErrCodeNonceInvalid, "Nonce is invalid, expired or already used")
			return
		}
		c.Next()
	}
}
