package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backend-kasir/internal/analytics"
	"github.com/noah-isme/backend-kasir/internal/audit"
	"github.com/noah-isme/backend-kasir/internal/auth"
	"github.com/noah-isme/backend-kasir/internal/backup"
	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/checkout"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/customer"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/health"
	"github.com/noah-isme/backend-kasir/internal/importer"
	"github.com/noah-isme/backend-kasir/internal/ledger"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/promotion"
	"github.com/noah-isme/backend-kasir/internal/ratelimit"
	"github.com/noah-isme/backend-kasir/internal/sales"
	"github.com/noah-isme/backend-kasir/internal/security"
	"github.com/noah-isme/backend-kasir/internal/supplier"
	"github.com/noah-isme/backend-kasir/internal/user"
)

// Router mounts every HTTP endpoint on a chi router.
func (d *Dependencies) Router() http.Handler {
	cfg := d.Config
	authMW := auth.Middleware{Service: d.Auth}
	adminOnly := auth.RequireRole(model.RoleAdmin)
	auditor := audit.HTTPRecorder{Service: d.Audit, OnError: func(err error) {
		d.Logger.Error().Err(err).Msg("record audit entry")
	}}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.Obs.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Obs.MetricsEnabled {
		buckets := obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets)
		r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, buckets, d.Registry)}.Middleware)
	}
	r.Use(authMW.Authenticate)
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders: []string{"Content-Disposition", "X-RateLimit-Remaining"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.IsProduction()}.Middleware)

	if cfg.Obs.MetricsEnabled {
		var metrics http.Handler = promhttp.Handler()
		if cfg.Obs.TracingEnabled {
			metrics = obs.InstrumentHandler(metrics, "metrics")
		}
		r.Handle("/metrics", metrics)
	}
	healthHandler := health.Handler{Checks: d.healthChecks(), Timeout: 500 * time.Millisecond}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	authHandler := &auth.Handler{Service: d.Auth}
	loginLimit := ratelimit.Handler{
		Limiter: d.LoginLimiter,
		Key:     ratelimit.ClientIPKey,
		OnError: func(err error) { d.Logger.Warn().Err(err).Msg("login rate limiter") },
	}
	catalogHandler := catalog.Handler{Svc: d.Catalog}
	importHandler := importer.Handler{Svc: d.Importer}
	ledgerHandler := ledger.Handler{Svc: d.Ledger}
	promotionHandler := promotion.Handler{Svc: d.Promotions}
	cartHandler := cart.Handler{Svc: d.Carts}
	checkoutHandler := checkout.Handler{Svc: d.Checkout, Carts: d.Carts, Logger: d.Logger}
	salesHandler := sales.Handler{Svc: d.Sales}
	customerHandler := customer.Handler{Svc: d.Customers}
	supplierHandler := supplier.Handler{Svc: d.Suppliers}
	backupHandler := backup.Handler{Svc: d.Backups}
	userHandler := user.Handler{Service: d.Users}
	analyticsHandler := analytics.Handler{Svc: d.Analytics}
	eventsHandler := events.Handler{Store: d.EventLog}
	auditHandler := audit.Handler{Store: d.AuditLog}

	r.Route("/api/v1", func(v chi.Router) {
		v.With(loginLimit.Middleware).Post("/auth/login", authHandler.Login)

		v.Group(func(p chi.Router) {
			p.Use(authMW.RequireAuth)
			p.Use(auditor.Mutations)

			p.Get("/auth/me", authHandler.Me)
			p.Get("/meta", d.meta)

			p.Route("/products", func(pr chi.Router) {
				pr.Get("/", catalogHandler.List)
				pr.Get("/{id}", catalogHandler.Get)
				pr.Group(func(admin chi.Router) {
					admin.Use(adminOnly)
					admin.Post("/", catalogHandler.Create)
					admin.Delete("/", importHandler.Clear)
					admin.With(security.BodyLimit{Max: cfg.ImportMaxBytes}.Middleware).Post("/import", importHandler.Import)
					admin.Put("/{id}", catalogHandler.Update)
					admin.Delete("/{id}", catalogHandler.Delete)
					admin.Post("/{id}/movements", catalogHandler.RecordMovement)
				})
			})
			p.Get("/movements", ledgerHandler.List)

			p.Route("/promotions", func(pr chi.Router) {
				pr.Get("/", promotionHandler.List)
				pr.Get("/{id}", promotionHandler.Get)
				pr.Group(func(admin chi.Router) {
					admin.Use(adminOnly)
					admin.Post("/", promotionHandler.Create)
					admin.Put("/{id}", promotionHandler.Update)
					admin.Patch("/{id}/active", promotionHandler.SetActive)
					admin.Delete("/{id}", promotionHandler.Delete)
				})
			})

			p.Route("/carts", func(c chi.Router) {
				c.Post("/", cartHandler.Create)
				c.Get("/{id}", cartHandler.Get)
				c.Delete("/{id}", cartHandler.Discard)
				c.Post("/{id}/items", cartHandler.AddItem)
				c.Patch("/{id}/items/{productId}", cartHandler.UpdateItem)
				c.Delete("/{id}/items/{productId}", cartHandler.RemoveItem)
				c.Post("/{id}/clear", cartHandler.Clear)
			})

			p.Post("/checkout/quote", checkoutHandler.Quote)
			p.With(d.Idem.Middleware).Post("/checkout", checkoutHandler.Confirm)

			p.Get("/sales", salesHandler.List)
			p.Get("/sales/{id}", salesHandler.Get)

			p.Route("/customers", func(c chi.Router) {
				c.Get("/", customerHandler.List)
				c.Post("/", customerHandler.Create)
				c.Get("/{id}", customerHandler.Get)
				c.Put("/{id}", customerHandler.Update)
				c.With(d.Idem.Middleware).Post("/{id}/payments", customerHandler.Settle)
				c.With(adminOnly).Delete("/{id}", customerHandler.Delete)
			})

			p.Group(func(admin chi.Router) {
				admin.Use(adminOnly)

				admin.Route("/suppliers", func(s chi.Router) {
					s.Get("/", supplierHandler.List)
					s.Post("/", supplierHandler.Create)
					s.Get("/{id}", supplierHandler.Get)
					s.Put("/{id}", supplierHandler.Update)
					s.Delete("/{id}", supplierHandler.Delete)
				})

				admin.Route("/backups", func(b chi.Router) {
					b.Get("/", backupHandler.List)
					b.Post("/", backupHandler.Create)
					b.Get("/{id}", backupHandler.Get)
					b.Get("/{id}/download", backupHandler.Download)
					b.Post("/{id}/restore", backupHandler.Restore)
					b.Delete("/{id}", backupHandler.Delete)
				})

				admin.Route("/analytics", func(an chi.Router) {
					an.Get("/sales", analyticsHandler.Sales)
					an.Get("/top-products", analyticsHandler.TopProducts)
					an.Get("/inventory", analyticsHandler.Inventory)
					an.Get("/low-stock", analyticsHandler.LowStock)
				})

				admin.Route("/admin", func(a chi.Router) {
					a.Get("/users", userHandler.List)
					a.Post("/users", userHandler.Create)
					a.Patch("/users/{id}", userHandler.Update)
					a.Delete("/users/{id}", userHandler.Delete)
					a.Get("/events", eventsHandler.Recent)
					a.Get("/audit", auditHandler.List)
				})
			})
		})
	})
	return r
}

type metaResponse struct {
	Currency       string                `json:"currency"`
	PaymentMethods []model.PaymentMethod `json:"paymentMethods"`
	FiscalTypes    []model.FiscalType    `json:"fiscalTypes"`
	Categories     []model.Category      `json:"categories"`
	PromotionTypes []model.PromotionType `json:"promotionTypes"`
}

// meta handles GET /api/v1/meta with the enumerations a till needs to render its forms.
func (d *Dependencies) meta(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": metaResponse{
		Currency:       d.Config.CurrencyCode,
		PaymentMethods: model.PaymentMethods(),
		FiscalTypes:    []model.FiscalType{model.FiscalTicket, model.FiscalFacturaA, model.FiscalFacturaB, model.FiscalFacturaC},
		Categories: []model.Category{
			model.CategoryGeneral, model.CategoryFood, model.CategoryBeverage,
			model.CategoryCleaning, model.CategoryPersonalCare, model.CategoryOther,
		},
		PromotionTypes: []model.PromotionType{model.PromotionPercentage, model.PromotionBulk, model.PromotionMxN},
	}})
}

func (d *Dependencies) healthChecks() map[string]health.Checker {
	checks := map[string]health.Checker{"store": d.KV}
	if d.Redis != nil {
		checks["redis"] = health.CheckerFunc(func(ctx context.Context) error {
			return d.Redis.Ping(ctx).Err()
		})
	}
	return checks
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
