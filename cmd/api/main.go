package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vidforge/server/internal/adapter/repo"
	"vidforge/server/internal/catalog"
	"vidforge/server/internal/credits"
	"vidforge/server/internal/db"
	"vidforge/server/internal/http/handlers"
	"vidforge/server/internal/http/httpapi"
	"vidforge/server/internal/infra"
	"vidforge/server/internal/infra/geoip"
	"vidforge/server/internal/middleware"
	"vidforge/server/internal/orchestrator"
	"vidforge/server/internal/pricing"
	"vidforge/server/internal/providers"
	"vidforge/server/internal/providers/market"
	"vidforge/server/internal/providers/veoapi"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	if err := db.EnsureSchema(ctx, dbpool); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	creditRepo := repo.NewCreditRepository(dbpool)
	jobRepo := repo.NewJobRecordRepository(dbpool)
	policyRepo := repo.NewPolicyRepository(dbpool)

	registry := catalog.NewRegistry()
	creditSvc := credits.NewService(creditRepo)
	pricingSrc := pricing.NewSource(policyRepo, &logger, cfg.PricingCacheTTL)

	providerHTTP := &http.Client{Timeout: cfg.ProviderHTTPTimeout}
	veoClient, err := veoapi.NewClient(veoapi.Options{
		APIKey:     cfg.KieAPIKey,
		BaseURL:    cfg.VeoBaseURL,
		HTTPClient: providerHTTP,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build veo client")
	}
	marketClient, err := market.NewClient(market.Options{
		APIKey:     cfg.KieAPIKey,
		BaseURL:    cfg.MarketBaseURL,
		HTTPClient: providerHTTP,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build marketplace client")
	}

	svc := orchestrator.New(orchestrator.Config{
		Registry: registry,
		Pricing:  pricingSrc,
		Credits:  creditSvc,
		Adapters: map[string]providers.Adapter{
			catalog.ProviderVeoAPI: veoClient,
			catalog.ProviderMarket: marketClient,
		},
		Jobs:           jobRepo,
		Logger:         logger,
		ArtifactClient: orchestrator.NewMaterializer(&http.Client{Timeout: cfg.ArtifactTimeout}),
	})

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		defer func() {
			if closer, ok := resolver.(*geoip.Resolver); ok {
				_ = closer.Close()
			}
		}()
		countryLookup = resolver.CountryCode
	}

	app := &handlers.App{
		Generations: svc,
		Registry:    registry,
		Credits:     creditSvc,
		Jobs:        jobRepo,
		Logger:      logger,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   "en",
		CountryLookup:   countryLookup,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
