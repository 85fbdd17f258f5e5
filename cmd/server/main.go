package main // Entry point package

import (
	"context"
	"log" // Logging library
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/applauz/theatre-ticketing/internal/config"
	"github.com/applauz/theatre-ticketing/internal/database"
	"github.com/applauz/theatre-ticketing/internal/handler"
	"github.com/applauz/theatre-ticketing/internal/middleware"
	"github.com/applauz/theatre-ticketing/internal/payment"
	"github.com/applauz/theatre-ticketing/internal/queue"
	"github.com/applauz/theatre-ticketing/internal/repository"
	"github.com/applauz/theatre-ticketing/internal/router"
	"github.com/applauz/theatre-ticketing/internal/service"
	"github.com/applauz/theatre-ticketing/internal/ticketing"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs rate limiting and webhook de-duplication; both degrade
	// gracefully when it is absent, so a nil client is not fatal.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting and event de-duplication disabled")
	}

	store := repository.NewStore(db)
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripePublishableKey, cfg.StripeWebhookSecret, cfg.StripeCurrency, 10*time.Second)
	events := service.NewEventPublisher()
	engine := ticketing.New(store, gateway, events)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background expiration sweep: the system-of-record pass that expires
	// tickets nobody ever presented at the door.
	sweeper := ticketing.NewSweeper(store, events, time.Duration(cfg.SweepIntervalMin)*time.Minute)
	go sweeper.Run(ctx)

	// Notification consumer drains the broker queues into the local log.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	perfs := repository.NewPerformanceRepo(db)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	orderH := handler.NewOrderHandler(engine, store)
	paymentH := handler.NewPaymentHandler(engine, gateway, service.NewEventDeduper(rdb, 24*time.Hour))
	ticketH := handler.NewTicketHandler(engine)
	perfH := handler.NewPerformanceHandler(engine, perfs, store)

	router.RegisterRoutes(e, perfH)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterTicketing(e, cfg.JWTSecret, orderH, paymentH, ticketH, perfH)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	if err := e.Start(addr); err != nil {
		log.Println(err)
	}
}
