package router

import (
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/auth"
	"github.com/fieldops/backend/internal/infrastructure/config"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"github.com/fieldops/backend/internal/interfaces/http/handler"
	"github.com/fieldops/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// multipart framing and the payment_method field on top of the file itself
const proofEnvelopeBytes = 1 << 20

// Handlers are the HTTP handlers mounted by NewEngine
type Handlers struct {
	Invoice    *handler.InvoiceHandler
	Collection *handler.CollectionHandler
	Vault      *handler.VaultHandler
	Custody    *handler.CustodyHandler
	Report     *handler.ReportHandler
	Health     *handler.HealthHandler
}

// Options are the infrastructure dependencies of the HTTP stack
type Options struct {
	Config *config.Config
	Logger *zap.Logger
	JWT    *auth.JWTService
	// Idempotency is nil when Idempotency-Key handling is disabled
	Idempotency shared.IdempotencyStore
	// Meters is nil when metrics are disabled
	Meters *telemetry.MeterProvider
}

// NewEngine builds the gin engine with the full middleware stack and every
// settlement route under /api/v1.
func NewEngine(h Handlers, opts Options) *gin.Engine {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("failed to set trusted proxies", zap.Error(err))
		}
	}

	// Order matters: the request id must exist before the logger reads it,
	// and the span must be open before anything that annotates it.
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.HTTPMetrics(opts.Meters, log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(corsConfig(cfg.HTTP)))

	engine.GET("/health", h.Health.Check)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(
		middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
			JWTService:          opts.JWT,
			SkipPaths:           []string{"/api/v1/health"},
			AllowHeaderIdentity: cfg.HTTP.AllowHeaderIdentity,
			Logger:              log,
		}),
		middleware.TracingAttributeInjector(),
	)

	idem := idempotency(opts.Idempotency, cfg.Idempotency)
	admin := middleware.RequireAdmin()
	reports := middleware.RequireRole(auth.RoleAdmin, auth.RoleAccountant)
	bodyLimit := middleware.BodyLimit(cfg.HTTP.MaxBodySize)

	invoices := NewDomainGroup("invoices", "/invoices").Use(bodyLimit)
	invoices.POST("", h.Invoice.Create)
	invoices.GET("", h.Invoice.List)
	invoices.GET("/pending-review", h.Invoice.PendingReview)
	invoices.GET("/number/:number", h.Invoice.GetByNumber)
	invoices.GET("/:id", h.Invoice.Get)
	invoices.PUT("/:id", h.Invoice.Update)
	invoices.DELETE("/:id", h.Invoice.Delete)
	invoices.POST("/:id/submit", h.Invoice.Submit)
	invoices.POST("/:id/collect/cash", idem, h.Collection.CollectCash)
	invoices.POST("/:id/collect/admin", admin, idem, h.Collection.CollectAdmin)
	invoices.POST("/:id/reject", admin, idem, h.Collection.Reject)
	invoices.POST("/:id/cancel", idem, h.Collection.Cancel)

	// Proof uploads carry a file and get their own, larger limit.
	proofs := NewDomainGroup("invoice-proofs", "/invoices").
		Use(middleware.BodyLimit(cfg.Settlement.ProofMaxBytes + proofEnvelopeBytes))
	proofs.POST("/:id/payment-proof", idem, h.Collection.SubmitProof)

	vaults := NewDomainGroup("vaults", "/vaults").Use(bodyLimit)
	vaults.GET("", h.Vault.List)
	vaults.POST("", admin, h.Vault.Create)
	vaults.POST("/transfer", admin, idem, h.Vault.Transfer)
	vaults.GET("/:id", h.Vault.Get)
	vaults.PUT("/:id", admin, h.Vault.Update)
	vaults.POST("/:id/adjust", admin, idem, h.Vault.Adjust)
	vaults.GET("/:id/transactions", h.Vault.Transactions)

	custody := NewDomainGroup("custody", "/custody").Use(bodyLimit)
	custody.GET("", h.Custody.List)
	custody.POST("", admin, h.Custody.Create)
	custody.GET("/me", h.Custody.Mine)
	custody.GET("/user/:user_id", h.Custody.GetByUser)
	custody.GET("/:id", h.Custody.Get)
	custody.DELETE("/:id", admin, h.Custody.Delete)
	custody.POST("/:id/activate", admin, h.Custody.Activate)
	custody.POST("/:id/deactivate", admin, h.Custody.Deactivate)
	custody.POST("/:id/add", admin, idem, h.Custody.Add)
	custody.POST("/:id/settle/vault", idem, h.Custody.SettleToVault)
	custody.POST("/:id/settle/custody", idem, h.Custody.SettleToCustody)
	custody.GET("/:id/transactions", h.Custody.Transactions)

	reportRoutes := NewDomainGroup("reports", "/reports").Use(reports)
	reportRoutes.GET("/invoice-stats", h.Report.InvoiceStats)
	reportRoutes.GET("/worker-bonuses", h.Report.WorkerBonuses)
	reportRoutes.GET("/reconciliation", h.Report.Reconciliation)

	system := NewDomainGroup("system", "")
	system.GET("/health", h.Health.Check)

	r.Register(invoices).
		Register(proofs).
		Register(vaults).
		Register(custody).
		Register(reportRoutes).
		Register(system)
	r.Setup()

	return engine
}

func idempotency(store shared.IdempotencyStore, cfg config.IdempotencyConfig) gin.HandlerFunc {
	if store == nil || !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.Idempotency(store, cfg.TTL)
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORSAllowOrigins
	if len(cfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.CORSAllowHeaders
	}
	return cors
}
