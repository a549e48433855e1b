package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cartapp "github.com/komono/backend/internal/application/cart"
	orderapp "github.com/komono/backend/internal/application/order"
	paymentapp "github.com/komono/backend/internal/application/payment"
	returnsapp "github.com/komono/backend/internal/application/returns"
	shippingapp "github.com/komono/backend/internal/application/shipping"
	"github.com/komono/backend/internal/domain/order"
	"github.com/komono/backend/internal/domain/payment"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
	"github.com/komono/backend/internal/infrastructure/cache"
	"github.com/komono/backend/internal/infrastructure/config"
	"github.com/komono/backend/internal/infrastructure/event"
	"github.com/komono/backend/internal/infrastructure/logger"
	paymentinfra "github.com/komono/backend/internal/infrastructure/payment"
	"github.com/komono/backend/internal/infrastructure/persistence"
	shippinginfra "github.com/komono/backend/internal/infrastructure/shipping"
	"github.com/komono/backend/internal/infrastructure/telemetry"
	"github.com/komono/backend/internal/interfaces/http/handler"
	"github.com/komono/backend/internal/interfaces/http/middleware"
	"github.com/komono/backend/internal/interfaces/http/router"

	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Komono Commerce Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database with zap-backed GORM logging
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}
	log.Info("Database connected")

	// Repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	inventoryRepo := persistence.NewGormInventoryRepository(db.DB)
	cartRepo := persistence.NewGormCartRepository(db.DB)
	couponRepo := persistence.NewGormCouponRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	shippingRepo := persistence.NewGormShippingRepository(db.DB)
	returnsRepo := persistence.NewGormReturnsRepository(db.DB)
	catalogProvider := persistence.NewDBCatalogProvider(db.DB, inventoryRepo)
	addressResolver := persistence.NewDBAddressResolver(db.DB)
	txManager := persistence.NewGormTransactionManager(db.DB)

	// Event bus
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Webhook idempotency store: Redis when configured, otherwise
	// in-process (single-instance deployments only)
	var idemStore shared.IdempotencyStore
	if cfg.Idempotency.UseRedis {
		redisStore, err := cache.NewRedisIdempotencyStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisStore.Close(); err != nil {
				log.Error("Error closing Redis", zap.Error(err))
			}
		}()
		idemStore = redisStore
		log.Info("Webhook idempotency backed by Redis", zap.String("addr", cfg.Redis.RedisAddr()))
	} else {
		memStore := cache.NewInMemoryIdempotencyStore()
		defer func() {
			_ = memStore.Close()
		}()
		idemStore = memStore
		log.Warn("Webhook idempotency is in-memory; replays are not deduplicated across instances")
	}

	// Payment gateway registry from enabled provider configs
	gatewayRegistry, err := buildGatewayRegistry(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize payment gateways", zap.Error(err))
	}

	// Carrier adapter and the fee quoter backing checkout
	carrier, err := shippinginfra.NewYamatoAdapter(&shippinginfra.YamatoConfig{
		APIKey:        cfg.Carrier.APIKey,
		WebhookSecret: cfg.Carrier.WebhookSecret,
		IsSandbox:     cfg.App.Env != "production",
	})
	if err != nil {
		log.Fatal("Failed to initialize carrier adapter", zap.Error(err))
	}
	feeQuoter := shippinginfra.NewCarrierFeeQuoter(carrier,
		valueobject.NewMoneyJPYFromInt(cfg.Pricing.FreeShippingThreshold))

	senderAddress, err := valueobject.NewAddress(
		cfg.Carrier.SenderPostal,
		cfg.Carrier.SenderPref,
		cfg.Carrier.SenderCity,
		cfg.Carrier.SenderLine1,
		cfg.Carrier.SenderName,
		valueobject.WithPhone(cfg.Carrier.SenderPhone),
	)
	if err != nil {
		log.Fatal("Invalid warehouse sender address", zap.Error(err))
	}

	taxRule := order.TaxRule{
		Rate:      decimal.NewFromFloat(cfg.Pricing.TaxRate),
		Inclusive: cfg.Pricing.TaxInclusive,
	}

	// Application services
	cartService := cartapp.NewService(cartRepo, catalogProvider, couponRepo, cartapp.PreviewConfig{
		TaxRule:               taxRule,
		DefaultShippingFee:    valueobject.NewMoneyJPYFromInt(cfg.Pricing.DefaultShippingFee),
		FreeShippingThreshold: valueobject.NewMoneyJPYFromInt(cfg.Pricing.FreeShippingThreshold),
	}, log)
	orderService := orderapp.NewService(orderRepo, inventoryRepo, couponRepo, cartRepo,
		catalogProvider, addressResolver, feeQuoter, txManager, taxRule, log)
	paymentService := paymentapp.NewService(paymentRepo, orderRepo, gatewayRegistry, txManager,
		paymentapp.Config{Expiry: cfg.Payment.Expiry}, log)
	shippingService := shippingapp.NewService(shippingRepo, orderRepo, carrier, senderAddress, txManager, log)
	returnsService := returnsapp.NewService(returnsRepo, orderRepo, paymentService, txManager, log)
	callbackService := paymentapp.NewCallbackService(paymentapp.CallbackServiceConfig{
		Transactions: paymentRepo,
		Orders:       orderRepo,
		Coupons:      couponRepo,
		Gateways:     gatewayRegistry,
		Idempotency:  idemStore,
		IdemConfig:   shared.IdempotencyConfig{TTL: cfg.Idempotency.TTL, Enabled: true},
		Tx:           txManager,
		Payments:     paymentService,
		Publisher:    eventBus,
		Logger:       log,
	})

	orderService.SetEventPublisher(eventBus)
	orderService.SetRefundTrigger(paymentService)
	paymentService.SetEventPublisher(eventBus)
	shippingService.SetEventPublisher(eventBus)
	returnsService.SetEventPublisher(eventBus)

	// Telemetry: OTLP meter provider, business metrics, and the event
	// handler that turns domain events into counters
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	var businessMetrics *telemetry.BusinessMetrics
	if meterProvider.IsEnabled() {
		businessMetrics, err = telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
			Meter:           meterProvider.Meter("komono.business"),
			Logger:          log,
			PaymentProvider: telemetry.NewGormPaymentMetricsProvider(db.DB),
		})
		if err != nil {
			log.Fatal("Failed to initialize business metrics", zap.Error(err))
		}
		metricsHandler := telemetry.NewMetricsEventHandler(businessMetrics)
		eventBus.Subscribe(metricsHandler, metricsHandler.EventTypes()...)
		businessMetrics.StartPeriodicCollection(context.Background(), 5*time.Minute)
		defer businessMetrics.Stop()
		log.Info("Business metrics enabled",
			zap.String("collector", cfg.Telemetry.CollectorEndpoint))
	}

	// Stale payment sweep: attempts past their deadline move to
	// FAILED, leaving the order payable again. Stock comes back only
	// when the order itself is cancelled.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go runExpirySweep(sweepCtx, paymentService, log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		Enabled:       cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewSystemHandler(db)).
		Register(handler.NewCartHandler(cartService)).
		Register(handler.NewOrderHandler(orderService)).
		Register(handler.NewPaymentHandler(paymentService)).
		Register(handler.NewPaymentCallbackHandler(callbackService, gatewayRegistry, businessMetrics)).
		Register(handler.NewShippingHandler(shippingService)).
		Register(handler.NewReturnsHandler(returnsService))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

// buildGatewayRegistry constructs adapters for every enabled provider.
// At least one gateway must be enabled or checkout cannot take money.
func buildGatewayRegistry(cfg *config.Config, log *zap.Logger) (*paymentinfra.Registry, error) {
	var gateways []payment.Gateway

	if cfg.Payment.GMO.Enabled {
		gw, err := paymentinfra.NewGMOAdapter(&paymentinfra.GMOConfig{
			MerchantID:  cfg.Payment.GMO.MerchantID,
			APIKey:      cfg.Payment.GMO.APIKey,
			APISecret:   cfg.Payment.GMO.APISecret,
			CallbackURL: cfg.Payment.GMO.CallbackURL,
			IsSandbox:   cfg.Payment.GMO.SandboxMode,
		})
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, gw)
	}
	if cfg.Payment.PayPay.Enabled {
		gw, err := paymentinfra.NewPayPayAdapter(&paymentinfra.PayPayConfig{
			MerchantID:  cfg.Payment.PayPay.MerchantID,
			APIKey:      cfg.Payment.PayPay.APIKey,
			APISecret:   cfg.Payment.PayPay.APISecret,
			CallbackURL: cfg.Payment.PayPay.CallbackURL,
			IsSandbox:   cfg.Payment.PayPay.SandboxMode,
		})
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, gw)
	}
	if cfg.Payment.Komoju.Enabled {
		gw, err := paymentinfra.NewKomojuAdapter(&paymentinfra.KomojuConfig{
			MerchantID:  cfg.Payment.Komoju.MerchantID,
			APIKey:      cfg.Payment.Komoju.APIKey,
			APISecret:   cfg.Payment.Komoju.APISecret,
			CallbackURL: cfg.Payment.Komoju.CallbackURL,
			IsSandbox:   cfg.Payment.Komoju.SandboxMode,
		})
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, gw)
	}

	for _, gw := range gateways {
		log.Info("Payment gateway enabled", zap.String("gateway", gw.Name()))
	}
	return paymentinfra.NewRegistry(gateways...), nil
}

// runExpirySweep periodically expires stale payment attempts
func runExpirySweep(ctx context.Context, payments *paymentapp.Service, log *zap.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			expired, err := payments.ExpireStaleTransactions(ctx, now)
			if err != nil {
				log.Error("Stale payment sweep failed", zap.Error(err))
				continue
			}
			if expired > 0 {
				log.Info("Expired stale payment attempts", zap.Int("count", expired))
			}
		}
	}
}
