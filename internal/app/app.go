package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storecraft/refund-server/internal/module/order"
	"github.com/storecraft/refund-server/internal/module/refund"
	"github.com/storecraft/refund-server/internal/module/refund/gateway"
	sharedcache "github.com/storecraft/refund-server/internal/shared/cache"
	"github.com/storecraft/refund-server/internal/shared/config"
	"github.com/storecraft/refund-server/internal/shared/database"
	"github.com/storecraft/refund-server/internal/shared/logger"
	"github.com/storecraft/refund-server/internal/shared/metrics"
	"github.com/storecraft/refund-server/internal/shared/middleware"
)

// App represents the application.
type App struct {
	config  *config.Config
	db      *gorm.DB
	redis   redis.UniversalClient
	router  *gin.Engine
	logger  *zap.Logger
	metrics *metrics.Metrics

	orderHandler  *order.Handler
	refundHandler *refund.Handler
	refundService *refund.Service
}

// LoadConfig loads the application configuration.
func LoadConfig() (*config.Config, error) {
	return config.Load()
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &App{
		config:  cfg,
		logger:  log,
		metrics: metrics.New("refundsrv", prometheus.DefaultRegisterer),
	}

	// Database
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrate(
		&order.Order{},
		&order.LineItem{},
		&order.FeeLine{},
		&order.ShippingLine{},
		&refund.Refund{},
		&refund.RefundLine{},
	); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	app.db = db

	// Redis (optional, backs the idempotency middleware)
	if cfg.Redis.Address != "" {
		redisClient, err := sharedcache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Warn("redis connection failed, idempotency disabled", zap.Error(err))
		} else {
			app.redis = redisClient
		}
	}

	if err := app.initModules(); err != nil {
		return nil, fmt.Errorf("init modules: %w", err)
	}
	app.router = app.setupRouter()

	app.refundService.StartSweeper()

	return app, nil
}

// initModules wires the order and refund modules together.
func (a *App) initModules() error {
	refundRepo := refund.NewRepository(a.db)
	orderRepo := order.NewRepository(a.db)
	orderService := order.NewService(orderRepo, refundRepo, a.logger)

	registry := gateway.NewRegistry()
	registry.Register(gateway.NewManualGateway())
	if a.config.Gateway.Stripe.APIKey != "" {
		registry.Register(gateway.NewStripeGateway(&gateway.StripeConfig{
			APIKey: a.config.Gateway.Stripe.APIKey,
		}))
	}
	if a.config.Gateway.Alipay.AppID != "" {
		alipayGW, err := gateway.NewAlipayGateway(&gateway.AlipayConfig{
			AppID:           a.config.Gateway.Alipay.AppID,
			PrivateKey:      a.config.Gateway.Alipay.PrivateKey,
			AlipayPublicKey: a.config.Gateway.Alipay.AlipayPublicKey,
			IsProd:          a.config.Gateway.Alipay.IsProd,
		})
		if err != nil {
			return fmt.Errorf("init alipay gateway: %w", err)
		}
		registry.Register(alipayGW)
	}
	a.logger.Info("payment gateways registered", zap.Strings("gateways", registry.Names()))

	a.refundService = refund.NewService(orderService, refundRepo, registry, a.metrics, a.logger, refund.Config{
		SessionTTL:    a.config.Refund.SessionTTL,
		SweepInterval: a.config.Refund.SweepInterval,
	})

	a.orderHandler = order.NewHandler(orderService)
	a.refundHandler = refund.NewHandler(a.refundService, a.metrics)
	return nil
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	if a.config.Auth.JWTSecret != "" {
		api.Use(middleware.Auth(a.config.Auth.JWTSecret))
	}
	if a.redis != nil {
		api.Use(middleware.Idempotency(a.redis, middleware.DefaultIdempotencyConfig()))
	}

	a.orderHandler.RegisterRoutes(api)
	a.refundHandler.RegisterRoutes(api)

	return r
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop stops background components and closes connections.
func (a *App) Stop() {
	a.refundService.Stop()
	if a.redis != nil {
		if err := sharedcache.Close(a.redis); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
