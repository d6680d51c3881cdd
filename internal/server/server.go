package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/vatdesk/internal/audit"
	auditdomain "github.com/smallbiznis/vatdesk/internal/audit/domain"
	"github.com/smallbiznis/vatdesk/internal/config"
	"github.com/smallbiznis/vatdesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/vatdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/vatdesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/vatdesk/internal/observability/tracing"
	"github.com/smallbiznis/vatdesk/internal/ratelimit"
	"github.com/smallbiznis/vatdesk/internal/transaction"
	txdomain "github.com/smallbiznis/vatdesk/internal/transaction/domain"
	"github.com/smallbiznis/vatdesk/internal/vatreturn"
	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
	"github.com/smallbiznis/vatdesk/internal/vendordir"
	vendordomain "github.com/smallbiznis/vatdesk/internal/vendordir/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	vendordir.Module,
	transaction.Module,
	vatreturn.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	ObsCfg   observability.Config
	Cfg      config.Config
	Metrics  *obsmetrics.Metrics  `optional:"true"`
	Gatherer prometheus.Gatherer `optional:"true"`
}

func NewEngine(obsCfg observability.Config, cfg config.Config, m *obsmetrics.Metrics, gatherer prometheus.Gatherer) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(m))
	r.Use(ErrorHandlingMiddleware())
	r.Use(RequestTimeout(cfg.RequestTimeout))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return r
}

func registerGin(p EngineParams) *gin.Engine {
	return NewEngine(p.ObsCfg, p.Cfg, p.Metrics, p.Gatherer)
}

// RequestTimeout bounds the request context; lock waits and queries observe it.
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	vatReturnSvc   vatdomain.Service
	transactionSvc txdomain.Service
	vendorSvc      vendordomain.Service
	auditSvc       auditdomain.Service
	tax            *config.TaxConfigHolder
	importLimiter  *ratelimit.ImportLimiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	VatReturnSvc   vatdomain.Service
	TransactionSvc txdomain.Service
	VendorSvc      vendordomain.Service
	AuditSvc       auditdomain.Service
	Tax            *config.TaxConfigHolder
	ImportLimiter  *ratelimit.ImportLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            log.Named("http.server"),
		vatReturnSvc:   p.VatReturnSvc,
		transactionSvc: p.TransactionSvc,
		vendorSvc:      p.VendorSvc,
		auditSvc:       p.AuditSvc,
		tax:            p.Tax,
		importLimiter:  p.ImportLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- VAT Returns --------
	api.POST("/vat-returns", s.CreateVatReturn)
	api.GET("/vat-returns", s.ListVatReturns)
	api.GET("/vat-returns/:id", s.GetVatReturn)
	api.PATCH("/vat-returns/:id", s.UpdateVatReturn)
	api.POST("/vat-returns/:id/ready", s.MarkVatReturnReady)
	api.POST("/vat-returns/:id/file", s.FileVatReturn)
	api.POST("/vat-returns/:id/reconcile", s.ReconcileVatReturn)
	api.GET("/vat-returns/:id/export", s.ExportVatReturn)
	api.GET("/vat-returns/:id/versions", s.ListVatReturnVersions)
	api.GET("/vat-returns/:id/activity", s.ListVatReturnActivity)

	// -------- Transactions --------
	api.POST("/transactions/import", s.ImportRateLimit(), s.ImportTransactions)
	api.GET("/transactions", s.ListTransactions)
	api.GET("/transactions/:id", s.GetTransaction)
	api.POST("/transactions/:id/match", s.MatchTransaction)

	// -------- Vendors --------
	api.GET("/vendors", s.ListVendors)
	api.GET("/vendors/:id", s.GetVendor)

	// -------- Settings --------
	api.GET("/settings/vat-rate", s.GetVatRate)
	api.PUT("/settings/vat-rate", s.UpdateVatRate)

	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
