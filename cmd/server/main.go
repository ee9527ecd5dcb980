package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/checkin"
	"github.com/iliyamo/event-checkin/internal/config"
	"github.com/iliyamo/event-checkin/internal/database"
	"github.com/iliyamo/event-checkin/internal/handler"
	"github.com/iliyamo/event-checkin/internal/lifecycle"
	"github.com/iliyamo/event-checkin/internal/middleware"
	"github.com/iliyamo/event-checkin/internal/queue"
	"github.com/iliyamo/event-checkin/internal/report"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/router"
	"github.com/iliyamo/event-checkin/internal/seating"
	"github.com/iliyamo/event-checkin/internal/ticket"
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

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(migrateCtx, db); err != nil {
		log.Fatalf("database: %v", err)
	}

	// Repositories.
	guests := repository.NewGuestRepo(db)
	regs := repository.NewRegistrationRepo(db)
	events := repository.NewEventRepo(db)
	tables := repository.NewTableRepo(db)
	checkins := repository.NewCheckinRepo(db)
	reports := repository.NewReportRepo(db)
	staff := repository.NewStaffRepo(db)
	tokens := repository.NewTokenRepo(db)

	// Services.
	tickets := ticket.NewService(cfg.TicketSecret, time.Duration(cfg.TicketTTLHours)*time.Hour)
	verifier := ticket.NewVerifier(tickets, regs)
	lifecycleSvc := lifecycle.NewService(
		repository.NewLifecycleStore(db, guests, regs, events),
		tickets,
		queue.PublishLifecycleEvent,
		cfg.CancelDeadlineDays,
		time.Duration(cfg.InviteTTLHours)*time.Hour,
	)
	processor := checkin.NewProcessor(verifier, checkins, queue.PublishLifecycleEvent)
	allocator := seating.NewAllocator(repository.NewSeatingStore(db, guests, regs, tables))
	aggregator := report.NewAggregator(reports, cfg.RecentWindowDays)

	// Background consumer feeding the notification log.  The loop
	// reconnects on its own; a broker outage never blocks startup.
	go func() {
		if err := queue.StartLifecycleConsumer(); err != nil {
			log.Printf("rabbitmq: consumer stopped: %v", err)
		}
	}()

	// Redis-backed limiter in front of the check-in route; nil client
	// disables it.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis: unavailable, check-in rate limiting disabled")
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	router.Register(e, router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, staff, tokens),
		Registration: handler.NewRegistrationHandler(lifecycleSvc, regs),
		Payment:      handler.NewPaymentHandler(lifecycleSvc),
		Checkin:      handler.NewCheckinHandler(processor, checkins),
		Admin:        handler.NewAdminHandler(lifecycleSvc, guests),
		Seating:      handler.NewSeatingHandler(allocator, tables),
		Stats:        handler.NewStatsHandler(aggregator),
		Events:       handler.NewEventHandler(events),
	}, cfg.JWTSecret, limiter)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
