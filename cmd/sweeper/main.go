package main // One-shot expiry sweeper, run from cron or a scheduler pod.

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/lastcrumb/surplusbag/internal/config"
	"github.com/lastcrumb/surplusbag/internal/database"
	"github.com/lastcrumb/surplusbag/internal/payment"
	"github.com/lastcrumb/surplusbag/internal/queue"
	"github.com/lastcrumb/surplusbag/internal/repository"
	"github.com/lastcrumb/surplusbag/internal/service"
	"github.com/lastcrumb/surplusbag/internal/settlement"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	cfgRepo := repository.NewBagConfigRepo(db)
	ovrRepo := repository.NewOverrideRepo(db)
	invRepo := repository.NewInventoryRepo(db, cfgRepo, ovrRepo)
	resRepo := repository.NewReservationRepo(db)
	payoutRepo := repository.NewPayoutRepo(db)
	settingsRepo := repository.NewSettingsRepo(db)

	gateway := payment.NewStripeGateway(cfg.StripeSecretKey)
	settle := settlement.NewService(payoutRepo, cfgRepo, resRepo, settingsRepo, gateway, cfg.Currency)

	svc := service.NewReservationService(
		db, cfgRepo, ovrRepo, invRepo,
		resRepo, cfgRepo, settingsRepo, settle, gateway, queue.NewPublisher(),
		service.CheckoutOptions{Currency: cfg.Currency},
		time.Duration(cfg.ConfirmWindowMin)*time.Minute,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	expired, err := svc.SweepExpirations(ctx)
	if err != nil {
		log.Fatalf("sweep finished with errors after expiring %d reservations: %v", expired, err)
	}
	log.Printf("sweep complete, expired %d reservations", expired)
}
