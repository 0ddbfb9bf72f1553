package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appcatalog "github.com/omkarjtg/ecomm/internal/application/catalog"
	appcheckout "github.com/omkarjtg/ecomm/internal/application/checkout"
	"github.com/omkarjtg/ecomm/internal/application/guard"
	appidentity "github.com/omkarjtg/ecomm/internal/application/identity"
	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/application/order"
	"github.com/omkarjtg/ecomm/internal/application/preference"
	"github.com/omkarjtg/ecomm/internal/infrastructure/apiclient"
	"github.com/omkarjtg/ecomm/internal/infrastructure/config"
	"github.com/omkarjtg/ecomm/internal/infrastructure/event"
	"github.com/omkarjtg/ecomm/internal/infrastructure/journal"
	"github.com/omkarjtg/ecomm/internal/infrastructure/localstore"
	"github.com/omkarjtg/ecomm/internal/infrastructure/logger"
	"github.com/omkarjtg/ecomm/internal/infrastructure/payment"
	"github.com/omkarjtg/ecomm/internal/infrastructure/telemetry"
	"github.com/omkarjtg/ecomm/internal/interfaces/http/handler"
	"github.com/omkarjtg/ecomm/internal/interfaces/http/middleware"
	"github.com/omkarjtg/ecomm/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting storefront",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("api", cfg.API.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	telemetryCfg := telemetry.FromAppConfig(cfg.Telemetry)
	telemetryCfg.ServiceVersion = version
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	exportLevel, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		exportLevel = zapcore.InfoLevel
	}
	log = logsProvider.Bridge(log, exportLevel)
	checkoutMetrics, err := telemetry.NewCheckoutMetrics(meterProvider.Meter(telemetry.TracerName), log)
	if err != nil {
		log.Warn("Checkout metrics unavailable", zap.Error(err))
		checkoutMetrics = telemetry.NopCheckoutMetrics()
	}

	// Local storage shared by the auth store, the cart and the checkout flow
	storage, err := localstore.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open local storage", zap.Error(err))
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.Error("Error closing local storage", zap.Error(err))
		}
	}()

	api, err := apiclient.New(cfg.API.BaseURL, storage,
		apiclient.WithLogger(log.Named("api")),
		apiclient.WithTimeout(cfg.API.Timeout),
		apiclient.WithUserAgent(cfg.API.UserAgent),
	)
	if err != nil {
		log.Fatal("Failed to create API client", zap.Error(err))
	}

	// Checkout journal and event bus
	checkoutJournal, err := journal.Open(cfg.Checkout, journal.Options{
		Logger:  log.Named("journal"),
		Tracing: cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal("Failed to open checkout journal", zap.Error(err))
	}
	defer func() {
		if err := checkoutJournal.Close(); err != nil {
			log.Error("Error closing checkout journal", zap.Error(err))
		}
	}()

	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(journal.NewRecorder(checkoutJournal, log))
	eventBus.Subscribe(telemetry.NewCheckoutEventHandler(checkoutMetrics))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Application services
	notices := notice.NewCenter()

	auth := appidentity.NewAuthStore(storage, api.Auth(), log.Named("auth"))
	api.OnUnauthorized(auth.HandleUnauthorized)
	auth.Init(ctx)
	authWatch := auth.Watch(ctx)

	accounts := appidentity.NewAccountService(api.Auth(), auth, notices, log.Named("account"))

	store := appcatalog.NewStore(ctx, api.Catalog(), storage, notices, log.Named("catalog"))
	storeWatch := store.Watch(ctx)

	placeholder := cfg.Image.PlaceholderURL
	if placeholder == "" {
		placeholder = appcatalog.DefaultPlaceholderURL
	}
	products := appcatalog.NewProductService(api.Catalog(), store, notices, log.Named("catalog"),
		appcatalog.WithPlaceholderURL(placeholder))

	gateway := payment.NewGatewayConfig(cfg.Payment)
	sandbox, err := payment.NewSandbox(gateway)
	if err != nil {
		sandbox = nil
		log.Debug("Payment sandbox disabled", zap.Error(err))
	} else {
		log.Warn("Payment sandbox enabled; callbacks are signed locally")
	}

	flow := appcheckout.NewFlow(appcheckout.Deps{
		Cart:     store,
		Buyer:    auth,
		Payments: api.Payment(),
		Orders:   api.Orders(),
		Stock:    api.Catalog(),
		Storage:  storage,
		Events:   eventBus,
		Widget:   payment.NewWidget(gateway),
		Dates:    api.Payment(),
		Sandbox:  sandbox,
		Notices:  notices,
		Logger:   log.Named("checkout"),
	})
	if err := flow.Restore(ctx); err != nil {
		log.Warn("Failed to restore checkout", zap.Error(err))
	}

	history := order.NewHistoryService(api.Orders(), auth, appcatalog.ImagePath, gateway.Currency, log.Named("orders"))
	theme := preference.NewThemeService(storage, log.Named("theme"))
	routeGuard := guard.New(auth, notices, log.Named("guard"), guard.WithWait(cfg.Guard.PendingTimeout))

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies", zap.Error(err))
	}
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: telemetryCfg.ServiceName,
		Enabled:     tracerProvider.IsEnabled(),
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		Enabled:       meterProvider.IsEnabled(),
		Logger:        log,
	}))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfigFrom(cfg.HTTP)))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	system := handler.NewSystemHandler(cfg.App.Name, version, theme, notices)
	handlers := router.Handlers{
		Catalog:  handler.NewCatalogHandler(products, notices),
		Cart:     handler.NewCartHandler(store, products, notices),
		Checkout: handler.NewCheckoutHandler(flow, notices),
		Account:  handler.NewAccountHandler(accounts, auth, notices),
		Orders:   handler.NewOrderHandler(history, notices),
		System:   system,
	}
	router.NewRouter(engine, router.WithNoRoute(system.NotFound)).
		Register(router.Storefront(handlers, routeGuard)...).
		Setup()

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	<-authWatch
	<-storeWatch
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := logsProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
