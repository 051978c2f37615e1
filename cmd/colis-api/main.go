// README: Entry point; loads config, wires services, starts the HTTP server.
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

	"go.uber.org/zap"

	"colis/internal/config"
	"colis/internal/events"
	httptransport "colis/internal/http"
	"colis/internal/infra"
	"colis/internal/maps"
	"colis/internal/modules/dispatch"
	"colis/internal/modules/geofence"
	"colis/internal/modules/order"
	"colis/internal/modules/pricing"
	"colis/internal/modules/rating"
	"colis/internal/modules/wallet"
	"colis/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		logger.Fatal("COLIS_FIREBASE_PROJECT is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		logger.Fatal("firebase init", zap.Error(err))
	}

	if err := infra.Migrate(cfg.DB.DSN, cfg.DB.MigrationsDir); err != nil {
		logger.Fatal("migrations", zap.Error(err))
	}
	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("postgres init", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer func() { _ = redisClient.Close() }()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafka(cfg.Kafka.Brokers, logger)
		if err != nil {
			logger.Fatal("kafka init", zap.Error(err))
		}
		publisher = kafka
	}
	defer func() { _ = publisher.Close() }()

	var distance order.DistanceEstimator
	if cfg.Maps.APIKey != "" {
		routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			logger.Fatal("maps init", zap.Error(err))
		}
		distance = routeSvc
	}

	geofenceStore := geofence.NewPGStore(dbPool, redisClient)
	geofenceSvc := geofence.NewService(geofenceStore, logger)

	pricingStore := pricing.NewPGStore(dbPool)
	pricingSvc := pricing.NewService(pricingStore, types.MoneyFromString(cfg.Pricing.CommissionRate))

	walletStore := wallet.NewPGStore(dbPool)
	walletSvc := wallet.NewService(walletStore, publisher, logger)

	ratingStore := rating.NewPGStore(dbPool)
	ratingSvc := rating.NewService(ratingStore)

	orderStore := order.NewPGStore(dbPool)
	orderSvc := order.NewService(order.Deps{
		Store:     orderStore,
		Pricing:   pricingSvc,
		Geofence:  geofenceSvc,
		Distance:  distance,
		Rating:    ratingSvc,
		Publisher: publisher,
		Log:       logger,
	})

	dispatchStore := dispatch.NewPGStore(dbPool, redisClient)
	dispatchSvc := dispatch.NewService(dispatchStore, orderSvc, dispatch.SearchConfig{
		RadiusKm:      cfg.Dispatch.RadiusKm,
		MaxCandidates: cfg.Dispatch.MaxCandidates,
	}, logger)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Order:    orderSvc,
		Dispatch: dispatchSvc,
		Pricing:  pricingSvc,
		Wallet:   walletSvc,
		Geofence: geofenceSvc,
		Verifier: verifier,
		Log:      logger,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("server listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
}
