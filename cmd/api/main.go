package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/bookmarket-io/bookmarket-backend/api/routes"
	"github.com/bookmarket-io/bookmarket-backend/internal/auth"
	"github.com/bookmarket-io/bookmarket-backend/internal/cart"
	"github.com/bookmarket-io/bookmarket-backend/internal/catalog"
	"github.com/bookmarket-io/bookmarket-backend/internal/listings"
	"github.com/bookmarket-io/bookmarket-backend/internal/loans"
	"github.com/bookmarket-io/bookmarket-backend/internal/orders"
	"github.com/bookmarket-io/bookmarket-backend/internal/suggestions"
	"github.com/bookmarket-io/bookmarket-backend/internal/users"
	"github.com/bookmarket-io/bookmarket-backend/internal/wishlist"
	"github.com/bookmarket-io/bookmarket-backend/pkg/config"
	"github.com/bookmarket-io/bookmarket-backend/pkg/db"
	"github.com/bookmarket-io/bookmarket-backend/pkg/logger"
	"github.com/bookmarket-io/bookmarket-backend/pkg/migrate"
	"github.com/bookmarket-io/bookmarket-backend/pkg/outbox"
	"github.com/bookmarket-io/bookmarket-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	svcs, err := buildServices(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, svcs),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (routes.Services, error) {
	gormDB := dbClient.DB()

	authService, err := auth.NewService(users.NewRepository(gormDB), cfg.JWT)
	if err != nil {
		return routes.Services{}, err
	}

	suggestionsRepo := suggestions.NewRepository(gormDB)
	suggestionsService, err := suggestions.NewService(suggestionsRepo, dbClient)
	if err != nil {
		return routes.Services{}, err
	}

	catalogRepo := catalog.NewRepository(gormDB)
	catalogService, err := catalog.NewService(catalogRepo, suggestionsRepo, dbClient)
	if err != nil {
		return routes.Services{}, err
	}

	listingsRepo := listings.NewRepository(gormDB)
	tracker := listings.NewTracker()
	listingsService, err := listings.NewService(listingsRepo, dbClient, tracker)
	if err != nil {
		return routes.Services{}, err
	}

	cartRepo := cart.NewRepository(gormDB)
	cartService, err := cart.NewService(cartRepo, listingsRepo, dbClient)
	if err != nil {
		return routes.Services{}, err
	}

	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	ordersService, err := orders.NewService(orders.NewRepository(gormDB), cartRepo, dbClient, outboxService, tracker)
	if err != nil {
		return routes.Services{}, err
	}

	loansService, err := loans.NewService(loans.NewRepository(gormDB), listingsRepo, dbClient, outboxService, tracker)
	if err != nil {
		return routes.Services{}, err
	}

	wishlistService, err := wishlist.NewService(wishlist.NewRepository(gormDB), catalogRepo)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:        authService,
		Catalog:     catalogService,
		Listings:    listingsService,
		Cart:        cartService,
		Orders:      ordersService,
		Loans:       loansService,
		Suggestions: suggestionsService,
		Wishlist:    wishlistService,
	}, nil
}
