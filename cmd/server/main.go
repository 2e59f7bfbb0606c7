package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-backend/internal/config"
	"github.com/ignatzorin/marketplace-backend/internal/db"
	"github.com/ignatzorin/marketplace-backend/internal/events"
	httpHandlers "github.com/ignatzorin/marketplace-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/marketplace-backend/internal/http/router"
	"github.com/ignatzorin/marketplace-backend/internal/lock"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
	"github.com/ignatzorin/marketplace-backend/internal/scheduler"
	"github.com/ignatzorin/marketplace-backend/internal/service"
	"github.com/ignatzorin/marketplace-backend/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: failed to load configuration: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: failed to connect to postgres: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: failed to run migrations: %v", err)
	}

	redisClient, err := lock.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("main: failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	locks := lock.NewService(redisClient)

	var publisher events.Publisher = events.LogPublisher{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			log.Fatalf("main: failed to connect to nats: %v", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// Repositories.
	userRepo := repository.NewUserRepository(dbConn)
	itemRepo := repository.NewItemRepository(dbConn)
	auctionRepo := repository.NewAuctionRepository(dbConn)
	bidRepo := repository.NewBidRepository(dbConn)
	orderRepo := repository.NewOrderRepository(dbConn)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	watchlistRepo := repository.NewWatchlistRepository(dbConn)
	fraudReportRepo := repository.NewFraudReportRepository(dbConn)

	// Websocket hub.
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Services.
	notificationService := service.NewNotificationService(notificationRepo, hub)
	authService := service.NewAuthService(userRepo, tokenManager)
	itemService := service.NewItemService(itemRepo, notificationService)
	auctionService := service.NewAuctionService(
		auctionRepo, bidRepo, itemRepo,
		publisher, hub, notificationService,
		cfg.PaymentExpiryWindow,
	)
	bidService := service.NewBidService(
		auctionRepo, bidRepo, itemRepo, locks,
		publisher, hub, notificationService,
		cfg.LockWaitTime, cfg.LockLeaseTime,
	)
	escrowService := service.NewEscrowService(
		escrowRepo, orderRepo,
		publisher, notificationService,
		cfg.PlatformFeeRate,
	)
	orderService := service.NewOrderService(
		orderRepo, itemRepo, escrowService,
		publisher, notificationService,
		cfg.PaymentExpiryWindow, cfg.EscrowReleaseWindow,
	)
	watchlistService := service.NewWatchlistService(watchlistRepo, itemRepo)
	reportService := service.NewReportService(fraudReportRepo)

	// Background sweeps.
	sched := scheduler.New(auctionService, escrowService, orderService, locks, scheduler.Config{
		AuctionCloseInterval: cfg.AuctionCloseInterval,
		EscrowSweepInterval:  cfg.EscrowSweepInterval,
		PaymentSweepInterval: cfg.PaymentSweepInterval,
		LockLeaseTime:        cfg.LockLeaseTime,
	})
	sched.Start(ctx)

	// HTTP layer.
	engine := httpRouter.Setup(cfg, tokenManager, httpRouter.Handlers{
		Auth:          httpHandlers.NewAuthHandler(authService),
		Items:         httpHandlers.NewItemHandler(itemService),
		Auctions:      httpHandlers.NewAuctionHandler(auctionService, bidService),
		Bids:          httpHandlers.NewBidHandler(bidService),
		Orders:        httpHandlers.NewOrderHandler(orderService),
		Payments:      httpHandlers.NewPaymentHandler(escrowService),
		Notifications: httpHandlers.NewNotificationHandler(notificationService),
		Watchlist:     httpHandlers.NewWatchlistHandler(watchlistService),
		Reports:       httpHandlers.NewReportHandler(reportService),
		WS:            httpHandlers.NewWSHandler(hub, tokenManager),
		Health:        httpHandlers.NewHealthHandler(dbConn, redisClient),
	})

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: http server shutdown failed: %v", err)
		}
	}()

	logger.Log.WithField("port", cfg.HTTPPort).Info("server starting")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: http server failed: %v", err)
	}
	logger.Log.Info("server stopped")
}

func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		log.Printf("main: failed to close database connection: %v", err)
	}
}
