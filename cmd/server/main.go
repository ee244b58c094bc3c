package main // Entry point package

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/lastcrumb/surplusbag/internal/config"
	"github.com/lastcrumb/surplusbag/internal/database"
	"github.com/lastcrumb/surplusbag/internal/handler"
	"github.com/lastcrumb/surplusbag/internal/middleware"
	"github.com/lastcrumb/surplusbag/internal/payment"
	"github.com/lastcrumb/surplusbag/internal/queue"
	"github.com/lastcrumb/surplusbag/internal/repository"
	"github.com/lastcrumb/surplusbag/internal/router"
	"github.com/lastcrumb/surplusbag/internal/service"
	"github.com/lastcrumb/surplusbag/internal/settlement"
)

func main() {
	// Load .env if present; real deployments set variables directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs rate limiting and the public response cache.  A nil
	// client disables both rather than blocking startup.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting and caching disabled")
	}

	// Repositories.
	cfgRepo := repository.NewBagConfigRepo(db)
	ovrRepo := repository.NewOverrideRepo(db)
	invRepo := repository.NewInventoryRepo(db, cfgRepo, ovrRepo)
	resRepo := repository.NewReservationRepo(db)
	payoutRepo := repository.NewPayoutRepo(db)
	settingsRepo := repository.NewSettingsRepo(db)

	// Payment gateway and settlement.
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey)
	settle := settlement.NewService(payoutRepo, cfgRepo, resRepo, settingsRepo, gateway, cfg.Currency)

	// Reservation lifecycle service.
	svc := service.NewReservationService(
		db, cfgRepo, ovrRepo, invRepo,
		resRepo, cfgRepo, settingsRepo, settle, gateway, queue.NewPublisher(),
		service.CheckoutOptions{
			Currency:   cfg.Currency,
			SuccessURL: cfg.CheckoutSuccessURL,
			CancelURL:  cfg.CheckoutCancelURL,
		},
		time.Duration(cfg.ConfirmWindowMin)*time.Minute,
	)

	// Consume reservation events in the background; the consumer reconnects
	// on broker failures and never takes the API down with it.
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("queue consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	if rdb != nil {
		e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	}

	router.RegisterRoutes(e, handler.NewSweepHandler(svc, cfg.SweepSecret))
	router.RegisterPublic(e, handler.NewPublicHandler(cfgRepo, ovrRepo, invRepo), rdb)
	router.RegisterConsumer(e,
		handler.NewCheckoutHandler(svc),
		handler.NewConsumerHandler(resRepo, svc),
		cfg.JWTSecret,
	)
	router.RegisterMerchant(e,
		handler.NewMerchantConfigHandler(cfgRepo, ovrRepo),
		handler.NewMerchantReservationHandler(resRepo, cfgRepo, svc, settle),
		cfg.JWTSecret,
	)
	router.RegisterAdmin(e, handler.NewAdminSettingsHandler(settingsRepo), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
