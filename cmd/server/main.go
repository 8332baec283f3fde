package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/moimlab/moim-server/internal/config"
	"github.com/moimlab/moim-server/internal/database"
	"github.com/moimlab/moim-server/internal/handler"
	"github.com/moimlab/moim-server/internal/hub"
	"github.com/moimlab/moim-server/internal/middleware"
	"github.com/moimlab/moim-server/internal/notify"
	"github.com/moimlab/moim-server/internal/payment"
	"github.com/moimlab/moim-server/internal/queue"
	"github.com/moimlab/moim-server/internal/router"
	"github.com/moimlab/moim-server/internal/service"
	"github.com/moimlab/moim-server/internal/storage/mysql"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mysql.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("ensure schema: %v", err)
	}
	cancel()

	store := mysql.New(db)
	users := mysql.NewUserRepo(db)
	tokens := mysql.NewTokenRepo(db)

	h := hub.New()
	notifier := notify.New(cfg.AmqpURL)
	gateway := payment.NewClient(cfg.PaymentAPIURL, cfg.PaymentSecret)

	reservations := service.NewReservationService(store, h, notifier)
	venues := service.NewVenueService(store, h)
	settlements := service.NewSettlementService(store, h, notifier, gateway)
	chat := service.NewChatService(store, h)

	// Background consumer that turns queued events into notification
	// log lines; the real push worker replaces it in production.
	go func() {
		if err := queue.StartNotificationConsumer(cfg.AmqpURL); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), config.NewRedisClient())

	router.Register(e, router.Handlers{
		Auth:        handler.NewAuthHandler(cfg, users, tokens),
		Reservation: handler.NewReservationHandler(reservations, venues),
		Settlement:  handler.NewSettlementHandler(settlements),
		Chat:        handler.NewChatHandler(chat),
		Store:       handler.NewStoreHandler(venues),
		WS:          handler.NewWSHandler(h, chat),
	}, cfg.JWTSecret, limiter)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
