package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/auth"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/logger"
	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/handler"
	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/middleware"
)

// Guards are the access checks applied to admin routes. Read guards
// read-only routes; Write guards mutating routes and ends with the nonce check.
type Guards struct {
	Authenticate []gin.HandlerFunc
	Read         []gin.HandlerFunc
	Write        []gin.HandlerFunc
	// Issue guards nonce issuance: write scope without a nonce
	Issue []gin.HandlerFunc
}

// NewGuards builds the guards from a token validator and a nonce store
func NewGuards(tokens middleware.TokenValidator, nonces middleware.NonceConsumer, requireNonce bool, limiter *middleware.RateLimiter, zl *zap.Logger) Guards {
	authenticate := []gin.HandlerFunc{middleware.AdminAuth(tokens, zl), middleware.SpanAttributes()}
	if limiter != nil {
		authenticate = append(authenticate, middleware.RateLimit(limiter))
	}
	return Guards{
		Authenticate: authenticate,
		Read:         []gin.HandlerFunc{middleware.RequireScope(auth.ScopeSyncRead)},
		Write: []gin.HandlerFunc{
			middleware.RequireScope(auth.ScopeSyncWrite),
			middleware.RequireNonce(nonces, requireNonce, zl),
		},
		Issue: []gin.HandlerFunc{middleware.RequireScope(auth.ScopeSyncWrite)},
	}
}

func with(guards []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(guards)+1)
	return append(append(out, guards...), h)
}

// SyncRoutes registers the admin sync surface under /sync
func SyncRoutes(h *handler.SyncHandler, g Guards) *DomainGroup {
	grp := NewDomainGroup("sync", "/sync").Use(g.Authenticate...)

	grp.GET("/status", with(g.Read, h.Status)...)
	grp.POST("/pull-all", with(g.Write, h.PullAll)...)
	grp.POST("/entities/:id/push", with(g.Write, h.PushEntity)...)

	grp.GET("/jobs", with(g.Read, h.JobHistory)...)
	grp.POST("/jobs", with(g.Write, h.SubmitJob)...)
	grp.GET("/jobs/:id", with(g.Read, h.GetJob)...)

	grp.GET("/retries", with(g.Read, h.ListRetries)...)
	grp.GET("/degradations", with(g.Read, h.ListDegradations)...)

	grp.POST("/:entityType/pull", with(g.Write, h.Pull)...)
	grp.POST("/:entityType/push", with(g.Write, h.Push)...)
	grp.POST("/:entityType/test-connection", with(g.Read, h.TestConnection)...)
	grp.POST("/:entityType/validate-field-types", with(g.Read, h.ValidateFieldTypes)...)
	return grp
}

// EntityRoutes registers the entity save endpoints under /entities
func EntityRoutes(h *handler.EntityHandler, g Guards) *DomainGroup {
	grp := NewDomainGroup("entities", "/entities").Use(g.Authenticate...)
	grp.GET("", with(g.Read, h.List)...)
	grp.GET("/:id", with(g.Read, h.Get)...)
	grp.POST("", with(g.Write, h.Create)...)
	grp.PUT("/:id", with(g.Write, h.Update)...)
	return grp
}

// AuthRoutes registers nonce issuance and the caller lookup under /auth
func AuthRoutes(h *handler.AuthHandler, g Guards) *DomainGroup {
	grp := NewDomainGroup("auth", "/auth").Use(g.Authenticate...)
	grp.POST("/nonce", with(g.Issue, h.IssueNonce)...)
	grp.GET("/me", with(g.Read, h.WhoAmI)...)
	return grp
}

// EngineConfig configures the global middleware of the engine
type EngineConfig struct {
	ServiceName    string
	TracingEnabled bool
	MaxBodySize    int64
	CORS           middleware.CORSConfig
	TrustedProxies []string
	Meter          metric.Meter
	Logger         *zap.Logger
}

// NewEngine creates a gin engine with the global middleware chain. Health and
// system routes are mounted outside the authenticated API.
func NewEngine(cfg EngineConfig, system *handler.SystemHandler) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.Tracing(cfg.ServiceName, cfg.TracingEnabled),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(cfg.Logger),
		middleware.HTTPMetrics(cfg.Meter),
		middleware.Secure(),
		middleware.CORSWithConfig(cfg.CORS),
		middleware.BodyLimit(cfg.MaxBodySize),
	)

	if system != nil {
		engine.GET("/health", system.Health)
		engine.GET("/system/ping", system.Ping)
		engine.GET("/system/info", system.GetSystemInfo)
	}
	return engine, nil
}
