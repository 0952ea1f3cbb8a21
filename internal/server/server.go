package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/repairdesk/internal/audit"
	auditdomain "github.com/smallbiznis/repairdesk/internal/audit/domain"
	"github.com/smallbiznis/repairdesk/internal/config"
	"github.com/smallbiznis/repairdesk/internal/export"
	exportdomain "github.com/smallbiznis/repairdesk/internal/export/domain"
	"github.com/smallbiznis/repairdesk/internal/notification"
	"github.com/smallbiznis/repairdesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/repairdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/repairdesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/repairdesk/internal/observability/tracing"
	"github.com/smallbiznis/repairdesk/internal/providers"
	"github.com/smallbiznis/repairdesk/internal/providers/telegram"
	"github.com/smallbiznis/repairdesk/internal/ratelimit"
	"github.com/smallbiznis/repairdesk/internal/request"
	requestdomain "github.com/smallbiznis/repairdesk/internal/request/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	providers.Module,
	audit.Module,
	notification.Module,
	request.Module,
	export.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// NewEngine builds the gin engine with the shared middleware chain. Only
// peers in trustedProxies may set the client IP through X-Forwarded-For.
func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, trustedProxies []string) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{
		SkipPrefixes: []string{"/healthz", "/metrics", "/static/"},
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r, nil
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) (*gin.Engine, error) {
	return NewEngine(obsCfg, httpMetrics, cfg.TrustedProxies)
}

// run binds the listener in OnStart; a bind error fails application start.
func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	pricing     *config.PricingCatalog
	requestSvc  requestdomain.Service
	requestRepo requestdomain.Repository
	exportSvc   exportdomain.Service
	auditSvc    auditdomain.Service
	telegram    telegram.Provider
	limiter     *ratelimit.IntakeLimiter
	obsMetrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	Pricing     *config.PricingCatalog
	RequestSvc  requestdomain.Service
	RequestRepo requestdomain.Repository
	ExportSvc   exportdomain.Service
	AuditSvc    auditdomain.Service
	Telegram    telegram.Provider
	Limiter     *ratelimit.IntakeLimiter `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) (*Server, error) {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		pricing:     p.Pricing,
		requestSvc:  p.RequestSvc,
		requestRepo: p.RequestRepo,
		exportSvc:   p.ExportSvc,
		auditSvc:    p.AuditSvc,
		telegram:    p.Telegram,
		limiter:     p.Limiter,
		obsMetrics:  p.ObsMetrics,
	}

	if err := svc.registerPageRoutes(); err != nil {
		return nil, err
	}
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerHealthRoutes()
	svc.registerFallback()

	return svc, nil
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/pricing", s.ListPricing)
	api.POST("/request", s.IntakeRateLimit(), s.SubmitRequest)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	// The export checks the token itself so refusals reach the audit trail.
	admin.GET("/export.csv", s.ExportCSV)

	admin.GET("/audit-logs", s.AdminTokenRequired(), s.ListAuditLogs)
	admin.GET("/notifier-info", s.AdminTokenRequired(), s.NotifierInfo)
}

func (s *Server) registerHealthRoutes() {
	s.engine.GET("/healthz", s.Healthz)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
