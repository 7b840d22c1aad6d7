package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/dto"
	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/middleware"
)

// NonceIssuer hands out one-time action nonces
type NonceIssuer interface {
	Issue(ctx context.Context, subject string, ttl time.Duration) (string, error)
}

// AuthHandler serves the admin session endpoints
type AuthHandler struct {
	BaseHandler
	nonces   NonceIssuer
	nonceTTL time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(nonces NonceIssuer, nonceTTL time.Duration) *AuthHandler {
	if nonceTTL <= 0 {
		nonceTTL = 5 * time.Minute
	}
	return &AuthHandler{nonces: nonces, nonceTTL: nonceTTL}
}

// NonceResponse carries a freshly issued nonce
type NonceResponse struct {
	Nonce     string    `json:"nonce"`
	Header    string    `json:"header"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueNonce issues a nonce for the next mutating request of the caller
// POST /auth/nonce
func (h *AuthHandler) IssueNonce(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		h.ErrorWithCode(c, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}
	nonce, err := h.nonces.Issue(c.Request.Context(), claims.Actor(), h.nonceTTL)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, NonceResponse{
		Nonce:     nonce,
		Header:    middleware.NonceHeader,
		ExpiresAt: time.Now().Add(h.nonceTTL),
	})
}

// WhoAmIResponse describes the authenticated caller
type WhoAmIResponse struct {
	Subject   string    `json:"subject"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WhoAmI returns the caller's token claims
// GET /auth/me
func (h *AuthHandler) WhoAmI(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		h.ErrorWithCode(c, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}
	scopes := make([]string, len(claims.Scopes))
	for i, s := range claims.Scopes {
		scopes[i] = string(s)
	}
	resp := WhoAmIResponse{Subject: claims.Actor(), Scopes: scopes}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	h.Success(c, resp)
}
