package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"archivist/internal/archival/handler"
	archivalmetrics "archivist/internal/archival/metrics"
	"archivist/internal/archival/service"
	accountstore "archivist/internal/archival/store/account"
	measurementstore "archivist/internal/archival/store/measurement"
	"archivist/internal/archival/sweeper"
	"archivist/internal/notify"
	"archivist/internal/platform/config"
	"archivist/internal/platform/httpserver"
	"archivist/internal/platform/logger"
	platformmetrics "archivist/internal/platform/metrics"
	platformredis "archivist/internal/platform/redis"
	"archivist/internal/session"
	httptransport "archivist/internal/transport/http"
	"archivist/pkg/platform/audit"
	auditmemory "archivist/pkg/platform/audit/store/memory"
	auditpg "archivist/pkg/platform/audit/store/postgres"
	"archivist/pkg/platform/audit/stream"
	auditworker "archivist/pkg/platform/audit/worker"
	"archivist/pkg/platform/middleware/ratelimit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]httptransport.HealthCheck{}

	var (
		accounts     service.AccountStore
		sweepSource  sweeper.AccountSource
		measurements service.MeasurementStore
		auditStore   audit.Store
	)
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := prepareDatabase(ctx, db); err != nil {
			log.Error("postgres setup failed", "error", err)
			os.Exit(1)
		}
		pg := accountstore.NewPostgres(db)
		accounts = pg
		sweepSource = pg
		measurements = measurementstore.NewPostgres(db)
		auditStore = auditpg.New(db)
		health["postgres"] = db.PingContext
	} else {
		log.Warn("postgres not configured, using in-memory stores")
		mem := accountstore.NewInMemory()
		accounts = mem
		sweepSource = mem
		measurements = measurementstore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
	}

	var sessions service.SessionStore
	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		sessions = session.NewRedisStore(rdb.Client)
		health["redis"] = rdb.Health
	} else {
		log.Warn("redis not configured, using in-memory session store")
		sessions = session.NewInMemory()
	}

	recorder := audit.NewRecorder(auditStore, log, cfg.AuditQueueSize)

	if len(cfg.KafkaBrokers) > 0 {
		forwarder, err := stream.NewKafkaForwarder(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		defer forwarder.Close()
		go func() {
			if err := auditworker.NewWorker(forwarder, recorder.Outbox(), log).Run(ctx); err != nil {
				log.Error("audit forwarder stopped", "error", err)
			}
		}()
	}

	m := archivalmetrics.New()
	notifier := notify.NewLog(log)

	svc := service.New(accounts, measurements, recorder,
		service.WithSessions(sessions),
		service.WithNotifier(notifier),
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithBulkConcurrency(cfg.BulkConcurrency),
	)

	sw := sweeper.New(sweepSource, notifier, m, cfg.SweepSchedule, log)
	if err := sw.Start(ctx); err != nil {
		log.Error("sweeper start failed", "error", err)
		os.Exit(1)
	}

	var limitAdmin func(http.Handler) http.Handler
	if cfg.AdminRateLimit > 0 {
		limitAdmin = ratelimit.Middleware(ratelimit.NewInMemory(), cfg.AdminRateLimit, time.Minute, log)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Handler:      handler.New(svc, recorder, log),
		AdminToken:   cfg.AdminToken,
		Logger:       log,
		HTTPMetrics:  platformmetrics.NewHTTP(),
		HealthChecks: health,
		RateLimit:    limitAdmin,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting archivist", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	sw.Stop()
	log.Info("archivist stopped")
}

// prepareDatabase applies the store schemas. They are idempotent, so a
// restart against an initialized database is a no-op.
func prepareDatabase(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	for _, schema := range []string{
		accountstore.Schema,
		measurementstore.Schema,
		auditpg.Schema,
	} {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}
