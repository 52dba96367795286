package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/seatsync/internal/broadcast"
	"github.com/iliyamo/seatsync/internal/config"
	"github.com/iliyamo/seatsync/internal/database"
	"github.com/iliyamo/seatsync/internal/handler"
	"github.com/iliyamo/seatsync/internal/ledger"
	"github.com/iliyamo/seatsync/internal/middleware"
	"github.com/iliyamo/seatsync/internal/pricing"
	"github.com/iliyamo/seatsync/internal/queue"
	"github.com/iliyamo/seatsync/internal/repository"
	"github.com/iliyamo/seatsync/internal/reservation"
	"github.com/iliyamo/seatsync/internal/router"
	"github.com/iliyamo/seatsync/internal/service"
	"github.com/iliyamo/seatsync/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := ledger.New()
	workers := newWorkerGroup(log)
	spawn := workers.Go

	// Persistence: restore the ledger, then mirror every change back.
	var store service.ShowingStore
	if cfg.PersistenceEnabled() {
		db, err := database.Open(ctx, database.Settings{
			User:     cfg.DBUser,
			Password: cfg.DBPass,
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			Name:     cfg.DBName,
		})
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := repository.EnsureSchema(ctx, db); err != nil {
			log.Error("schema setup failed", "error", err)
			os.Exit(1)
		}
		repo := repository.NewShowingRepo(db)
		showings, err := repo.LoadAll(ctx)
		if err != nil {
			log.Error("restoring showings failed", "error", err)
			os.Exit(1)
		}
		for _, s := range showings {
			if err := l.Provision(s); err != nil {
				log.WithShowing(s.ID).WithError(err).Warn("skipping stored showing")
			}
		}
		log.Info("ledger restored", "showings", len(showings))

		journal := repository.NewJournal(repo, log)
		l.Watch(journal)
		spawn("journal", journal.Run)
		store = repo
	}

	bc := broadcast.New(l, cfg.SubscriberBuffer, log)
	l.Watch(bc)

	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL, nil, log)
		l.Watch(pub)
		spawn("publisher", pub.Run)
		if cfg.AuditConsumer {
			spawn("audit-consumer", func(ctx context.Context) error {
				return queue.StartAuditConsumer(ctx, cfg.RabbitURL, cfg.AuditLogDir, log)
			})
		}
	}

	leases := reservation.NewManager(l, log, reservation.Options{
		LeaseTTL:      cfg.LeaseTTL,
		SweepInterval: cfg.SweepInterval,
	})
	// Holds that lapsed while the process was down go back right away.
	leases.Sweep(ctx)
	spawn("sweeper", leases.Run)

	adjuster := pricing.NewAdjuster(l, pricing.Params{
		SurgePerOccupancy: cfg.PricingSurge,
		MaxMultiplier:     cfg.PricingMaxMultiplier,
		StepCents:         cfg.PricingStepCents,
	}, log)
	svc := service.NewBookingService(l, leases, adjuster, store, log)

	if cfg.SeedDemo && len(l.ShowingIDs()) == 0 {
		if _, err := svc.Provision(ctx, service.DemoShowing(time.Now())); err != nil {
			log.WithError(err).Warn("demo showing not provisioned")
		}
	}

	var rateLimit echo.MiddlewareFunc
	pctx, pcancel := context.WithTimeout(ctx, 2*time.Second)
	rdb, err := config.LoadRedisSettings().Connect(pctx)
	pcancel()
	switch {
	case err == nil:
		defer rdb.Close()
		limit := config.LoadSeatLimit()
		rateLimit = middleware.SeatLimit(limit, middleware.NewRedisBuckets(rdb, limit), log)
	case errors.Is(err, config.ErrRedisDisabled):
		log.Info("redis not configured, seat limit disabled")
	default:
		log.WithError(err).Warn("redis unavailable, seat limit disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(log.Middleware())
	router.RegisterRoutes(e, router.Deps{
		Booking:   handler.NewBookingHandler(svc),
		Live:      handler.NewLiveHandler(bc, log),
		Health:    handler.Health(l),
		JWTSecret: cfg.JWTSecret,
		RateLimit: rateLimit,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env, "lease_ttl", cfg.LeaseTTL.String())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	// Close live streams first so hijacked websocket handlers return.
	bc.Close()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	// Only now that no request can mutate the ledger do the workers stop;
	// the journal and publisher flush what the drained requests queued.
	workers.Stop()
}
