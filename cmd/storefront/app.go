package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/infrastructure/notify"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/observability"
	"storefront/internal/repo"
	"storefront/internal/service"
	"storefront/internal/worker"
)

// app holds the process-wide dependencies shared by the subcommands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics

	db    *sql.DB
	mongo *mongo.Client
	redis *redis.Client

	orders   repo.OrderRepo
	gateway  payment.Gateway
	notifier notify.Notifier
	webhooks service.WebhookService
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, nil
}

// newPaymentsApp opens Postgres and builds the payment side: gateway,
// notifier and webhook service. It is enough for reconcile.
func newPaymentsApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		db:      db,
		orders:  repo.NewOrderRepo(db),
	}
	a.gateway = a.buildGateway()
	a.notifier = a.buildNotifier()
	a.webhooks = service.NewWebhookService(a.orders, a.notifier, cfg.WebhookSecret, logger, a.metrics)
	return a, nil
}

func (a *app) buildGateway() payment.Gateway {
	if a.cfg.PaymentGateway == "mock" {
		a.logger.Warn("using in-process mock payment gateway")
		return payment.NewMockGateway("http://localhost" + a.cfg.HTTPAddr + "/mock-pay")
	}
	return payment.NewRazorpayGateway(payment.RazorpayConfig{
		KeyID:     a.cfg.RazorpayKeyID,
		KeySecret: a.cfg.RazorpayKeySecret,
		Timeout:   a.cfg.HTTPClientTimeout,
	})
}

func (a *app) buildNotifier() notify.Notifier {
	if !a.cfg.SMTPEnabled() {
		a.logger.Warn("SMTP not configured, notifications are logged only")
		return notify.NewLogNotifier(a.logger)
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     a.cfg.SMTPHost,
		Port:     a.cfg.SMTPPort,
		Username: a.cfg.SMTPUsername,
		Password: a.cfg.SMTPPassword,
		From:     a.cfg.MailFrom,
		FromName: a.cfg.MailFromName,
		Currency: a.cfg.PaymentCurrency,
		Timeout:  a.cfg.HTTPClientTimeout,
	})
}

func (a *app) reconciler() *worker.ReconciliationWorker {
	return worker.NewReconciliationWorker(a.orders, a.gateway, a.webhooks, worker.Options{
		Grace:      a.cfg.ReconcileGrace,
		LinkMaxAge: a.cfg.PaymentLinkTTL,
		Interval:   a.cfg.ReconcileInterval,
	}, a.logger, a.metrics)
}

// newServerApp adds the coupon store, the OTP throttle and the HTTP surface.
func newServerApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, *handler.Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if cfg.PaymentBypass {
		logger.Warn("PAYMENT_BYPASS is enabled, orders are marked paid without a gateway")
	}

	a, err := newPaymentsApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, a.db); err != nil {
		a.close()
		return nil, nil, err
	}

	a.mongo, err = database.NewMongo(ctx, cfg.MongoURI)
	if err != nil {
		a.close()
		return nil, nil, err
	}

	var throttle repo.CodeThrottle
	a.redis, err = database.NewRedis(ctx, cfg.RedisAddr)
	switch {
	case err != nil:
		// The cooldown is advisory; run without it rather than refuse to start.
		logger.Warn("redis unavailable, OTP resend cooldown disabled", zap.Error(err))
	case a.redis != nil:
		throttle = repo.NewRedisThrottle(a.redis, cfg.OTPResendCooldown)
	}

	users := repo.NewUserRepo(a.db)
	coupons := repo.NewCouponRepo(a.mongo.Database(cfg.MongoDatabase))
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, auth.AccessTokenTTL)

	srv := handler.NewServer(handler.Deps{
		Identity: service.NewIdentityService(users, throttle, tokens, a.notifier, logger),
		Orders: service.NewOrderService(a.orders, users, coupons, a.gateway, a.notifier, service.OrderConfig{
			Currency:      cfg.PaymentCurrency,
			CallbackURL:   cfg.PaymentCallbackURL,
			BypassPayment: cfg.PaymentBypass,
			LinkTTL:       cfg.PaymentLinkTTL,
		}, logger, a.metrics),
		Webhooks:    a.webhooks,
		Admin:       service.NewAdminService(a.orders, a.notifier, logger, a.metrics),
		Tokens:      tokens,
		AdminKey:    cfg.AdminKey,
		CORSOrigins: cfg.CORSOrigins,
		Health:      a.health,
		Logger:      logger,
		Metrics:     a.metrics,
	})
	return a, srv, nil
}

func (a *app) health(ctx context.Context) map[string]string {
	stats := database.Health(ctx, a.db)
	if a.mongo != nil {
		if err := a.mongo.Ping(ctx, readpref.Primary()); err != nil {
			stats["status"] = "down"
			stats["mongo"] = err.Error()
		} else {
			stats["mongo"] = "up"
		}
	}
	return stats
}

func (a *app) close() {
	ctx := context.Background()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.mongo != nil {
		_ = a.mongo.Disconnect(ctx)
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}
