package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/comanda-pos/api/internal/config"
	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/dispatch"
	"github.com/comanda-pos/api/internal/logging"
	"github.com/comanda-pos/api/internal/notify"
	"github.com/comanda-pos/api/internal/router"
	"github.com/comanda-pos/api/internal/service"
	"github.com/comanda-pos/api/internal/ws"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	queries := database.New(pool)

	// Change feed: Redis when configured so every instance serves the same
	// poll-since history, process memory otherwise.
	var feed notify.Feed = notify.NewMemoryFeed(cfg.ChangeFeedRetention)
	if cfg.RedisURL != "" {
		rdb, err := notify.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		feed = notify.NewRedisFeed(rdb, cfg.ChangeFeedRetention)
	}

	// Background loops get their own context so the HTTP server can drain
	// first and they can flush what it produced.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var stream notify.Stream
	var kafkaStream *notify.KafkaStream
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kafkaStream = notify.NewKafkaStream(brokers, cfg.KafkaTopic, 1024)
		kafkaStream.Start(bgCtx)
		stream = kafkaStream
	}

	var signaler dispatch.Signaler
	if cfg.RabbitMQURL != "" {
		broker, err := dispatch.NewBroker(cfg.RabbitMQURL)
		if err != nil {
			return err
		}
		defer broker.Close()
		signaler = broker
	}

	hub := ws.NewHub()
	notifier := notify.NewNotifier(feed, hub, stream, 1024)

	dispatcher := dispatch.NewRouter(queries, dispatch.Options{
		Workers:   cfg.DispatchWorkers,
		QueueSize: cfg.DispatchQueueSize,
		Signaler:  signaler,
		OnFailure: func(f dispatch.Failure) {
			log.Warn().Err(f.Err).
				Int64("sale_id", f.SaleID).
				Int64("sector_id", f.SectorID).
				Int64("job_id", f.JobID).
				Str("mode", f.Mode).
				Msg("dispatch failed")
		},
	})

	sales := service.NewSaleService(pool, func(db database.DBTX) service.SaleStore {
		return database.New(db)
	}, dispatcher, notifier)
	tables := service.NewTableService(pool, func(db database.DBTX) service.TableStore {
		return database.New(db)
	})

	r := router.New(cfg, router.Services{
		Sales:   sales,
		Tables:  tables,
		Cash:    service.NewCashService(queries),
		Changes: notifier,
	}, hub)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	dispatcher.Start(bgCtx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(bgCtx)
		return nil
	})
	g.Go(func() error {
		notifier.Run(bgCtx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// Requests are done: stop the workers and let them flush.
		stopBackground()
		dispatcher.Wait()
		if kafkaStream != nil {
			kafkaStream.WaitClosed()
		}
		return err
	})

	return g.Wait()
}
