package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/config"
	"storefront_back_end/internal/database"
	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/logger"
	"storefront_back_end/internal/metrics"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/repository"
	"storefront_back_end/internal/routes"
	"storefront_back_end/internal/services"
	"storefront_back_end/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Configuration invalide: %v", err)
	}

	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("❌ Impossible d'initialiser le logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := cfg.Validate(); err != nil {
		zl.Fatal("❌ Configuration incomplète", zap.Error(err))
	}

	// les prix sortent en nombres JSON : 12.5 et non "12.5"
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbs, err := database.Connect(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("❌ Connexion aux bases impossible", zap.Error(err))
	}
	defer dbs.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	store := cache.NewStore(dbs.Redis)
	audit := utils.NewAuditRecorder(dbs.Scylla, zl)

	// =============================================
	// REPOSITORIES
	// =============================================
	users := repository.NewUserRepository(dbs.Postgres)
	grants := repository.NewGrantRepository(dbs.Postgres)
	productsRepo := repository.NewProductRepository(dbs.Postgres)
	ordersRepo := repository.NewOrderRepository(dbs.Postgres)

	// =============================================
	// SERVICES
	// =============================================
	resolver := services.NewPermissionResolver(grants)
	identity := services.NewIdentityService(dbs.Postgres, users, grants, store, cfg.JWT.Secret, cfg.JWT.TokenTTL, audit, zl)

	images := services.NewImageStore(dbs.MinIO, cfg.MinIO, zl)
	if err := images.EnsureBucket(ctx); err != nil {
		zl.Fatal("❌ Bucket MinIO indisponible", zap.Error(err))
	}

	catalogDeps := services.CatalogDeps{
		Images:  images,
		Cache:   store,
		Audit:   audit,
		Metrics: m,
		Log:     zl,
	}
	// Index reste une interface nil sans Elasticsearch
	if dbs.Elastic != nil {
		catalogDeps.Index = services.NewProductIndex(dbs.Elastic, cfg.Elastic.Index, zl)
	}
	catalog := services.NewCatalogService(productsRepo, catalogDeps)

	orders := services.NewOrderService(dbs.Postgres, ordersRepo, productsRepo, audit, m, zl)

	payments := services.NewPaymentService(
		services.NewStripeGateway(cfg.Stripe, cfg.IsProduction(), zl),
		ordersRepo,
		cfg.Stripe.Currency,
		cfg.Stripe.PublishableKey,
		services.PaymentDeps{
			Users:     users,
			Publisher: store,
			Notifier:  utils.NewMailer(cfg.SMTP, zl),
			Audit:     audit,
			Metrics:   m,
			Log:       zl,
		},
	)

	roles := services.NewRoleService(users, grants, resolver, audit, zl)

	// =============================================
	// HTTP
	// =============================================
	router := routes.New(routes.Deps{
		Config:      cfg,
		Log:         zl,
		Metrics:     m,
		Tokens:      identity,
		Grants:      resolver,
		RateLimiter: middleware.NewRateLimiter(store, cfg.RateLimit, zl),
		Audit:       audit,
		Identity:    identity,
		Orders:      orders,
		Events:      store,
		Catalog:     catalog,
		Payments:    payments,
		Roles:       roles,
		Health: map[string]handlers.Pinger{
			"postgres": dbs.Postgres,
			"redis":    store,
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("🚀 Serveur lancé", zap.String("port", cfg.App.Port), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("❌ Serveur HTTP arrêté", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("🛑 Arrêt demandé, fermeture des connexions")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("❌ Arrêt du serveur incomplet", zap.Error(err))
	}
}
