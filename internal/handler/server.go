// Package handler exposes the storefront workflow over HTTP with gin.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/auth"
	"storefront/internal/observability"
	"storefront/internal/service"
)

// HealthFunc reports the state of a backing store.
type HealthFunc func(ctx context.Context) map[string]string

type Deps struct {
	Identity service.IdentityService
	Orders   service.OrderService
	Webhooks service.WebhookService
	Admin    service.AdminService
	Tokens   *auth.TokenIssuer

	AdminKey    string
	CORSOrigins []string
	Health      HealthFunc

	Logger  *zap.Logger
	Metrics *observability.Metrics
}

type Server struct {
	deps   Deps
	logger *zap.Logger
	router *gin.Engine
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &Server{deps: deps, logger: deps.Logger.Named("http")}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(s.logger), observe(deps.Metrics))
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", s.health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/send-otp", s.sendOTP)
		authGroup.POST("/verify-otp", s.verifyOTP)
		authGroup.GET("/me", bearerAuth(deps.Tokens), s.me)

		orders := api.Group("/orders", bearerAuth(deps.Tokens))
		orders.POST("/create", s.createOrder)
		orders.GET("/my-orders", s.myOrders)

		api.POST("/coupons/apply", s.applyCoupon)
		api.POST("/payment/webhook", s.paymentWebhook)

		admin := api.Group("/admin", adminKey(deps.AdminKey))
		admin.GET("/orders", s.adminOrders)
		admin.PUT("/orders/:id/update-status", s.updateStatus)
		admin.PUT("/orders/:id/add-tracking", s.addTracking)
	}

	s.router = router
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// HTTPServer wraps the router with the timeouts used in production.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", adminKeyHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func (s *Server) health(c *gin.Context) {
	if s.deps.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "up"})
		return
	}
	stats := s.deps.Health(c.Request.Context())
	code := http.StatusOK
	if stats["status"] != "up" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, stats)
}
