package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/auth"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/logger"
	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/dto"
)

// Auth context keys
const (
	ClaimsKey     = "admin_claims"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// TokenValidator verifies admin bearer tokens
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// AdminAuth requires a valid admin bearer token. The token subject becomes
// the actor on the request context.
func AdminAuth(validator TokenValidator, zl *zap.Logger) gin.HandlerFunc {
	if zl == nil {
		zl = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			abortWithError(c, dto.ErrCodeUnauthorized, "Missing authorization header")
			return
		}
		token, ok := strings.CutPrefix(header, BearerPrefix)
		if !ok || token == "" {
			abortWithError(c, dto.ErrCodeTokenInvalid, "Invalid authorization header format")
			return
		}

		claims, err := validator.Validate(token)
		if err != nil {
			zl.Warn("Admin authentication failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", GetRequestID(c)),
			)
			if errors.Is(err, auth.ErrExpiredToken) {
				abortWithError(c, dto.ErrCodeTokenExpired, "Token has expired")
				return
			}
			abortWithError(c, dto.ErrCodeTokenInvalid, "Invalid token")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Request = c.Request.WithContext(logger.WithActor(c.Request.Context(), claims.Actor()))
		c.Next()
	}
}

// RequireScope rejects requests whose token lacks scope
func RequireScope(scope auth.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			abortWithError(c, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}
		if !claims.HasScope(scope) {
			abortWithError(c, dto.ErrCodeForbidden, "Token lacks scope "+string(scope))
			return
		}
		c.Next()
	}
}

// GetClaims retrieves the admin claims set by AdminAuth
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
