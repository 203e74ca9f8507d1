package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	clubhandler "fedoffice/internal/club/handler"
	clubservice "fedoffice/internal/club/service"
	clubstore "fedoffice/internal/club/store"
	"fedoffice/internal/export/queue"
	"fedoffice/internal/export/tms"
	"fedoffice/internal/export/worker"
	"fedoffice/internal/platform/config"
	"fedoffice/internal/platform/httpserver"
	"fedoffice/internal/platform/logger"
	"fedoffice/internal/platform/metrics"
	"fedoffice/internal/platform/middleware"
	platformredis "fedoffice/internal/platform/redis"
	"fedoffice/internal/platform/sessions"
	playerhandler "fedoffice/internal/player/handler"
	playerservice "fedoffice/internal/player/service"
	playerstore "fedoffice/internal/player/store"
	"fedoffice/internal/registration"
	registrationstore "fedoffice/internal/registration/store"
	transferhandler "fedoffice/internal/transfer/handler"
	transfermodels "fedoffice/internal/transfer/models"
	transferservice "fedoffice/internal/transfer/service"
	transferstore "fedoffice/internal/transfer/store"
	webhookhandler "fedoffice/internal/webhook/handler"
	webhookservice "fedoffice/internal/webhook/service"
	id "fedoffice/pkg/domain"
)

// transferPersistence is the union of what the transfer service and the
// webhook reconciler need from the transfer store.
type transferPersistence interface {
	transferservice.Store
	FindByExternalID(ctx context.Context, externalID string) (*transfermodels.Transfer, error)
}

// enqueuer is satisfied by both the Redis and the memory queue.
type enqueuer interface {
	Enabled() bool
	Enqueue(ctx context.Context, transferID id.TransferID) (bool, error)
	ForceEnqueue(ctx context.Context, transferID id.TransferID) error
}

// main wires configuration, stores, services and transport, then runs the
// HTTP server and the export worker until shutdown.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	m := metrics.New()

	// Stores: postgres when a DSN is configured, in-memory otherwise.
	var (
		clubStore     clubservice.Store
		playerStore   playerservice.Store
		counterStore  registration.Store
		transferStore transferPersistence
		playerOpts    = []playerservice.Option{playerservice.WithLogger(log)}
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			log.Error("postgres unreachable", slog.String("error", err.Error()))
			os.Exit(1)
		}
		clubStore = clubstore.NewPostgres(db)
		playerStore = playerstore.NewPostgres(db)
		counterStore = registrationstore.NewPostgres(db)
		transferStore = transferstore.NewPostgres(db)
		playerOpts = append(playerOpts, playerservice.WithTxRunner(newRegistryPostgresTx(db)))
		log.Info("using postgres stores")
	} else {
		clubStore = clubstore.NewInMemory()
		playerStore = playerstore.NewInMemory()
		counterStore = registrationstore.NewInMemory()
		transferStore = transferstore.NewInMemory()
		log.Warn("no postgres dsn configured, using in-memory stores")
	}

	// Export queue: Redis when provisioned, otherwise the pipeline runs
	// disabled and approvals flag their exports accordingly.
	var exportQueue enqueuer = queue.NewNull()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		exportQueue = queue.NewRedis(redisClient.Client)
		log.Info("export queue backed by redis")
	} else {
		log.Warn("no redis url configured, export pipeline disabled")
	}

	counters := registration.New(counterStore, cfg.FederationCode)
	clubSvc := clubservice.New(clubStore, clubservice.WithLogger(log))
	playerSvc := playerservice.New(playerStore, clubStore, counters, playerOpts...)
	transferSvc := transferservice.New(transferStore, clubStore, playerSvc, exportQueue,
		transferservice.WithLogger(log),
		transferservice.WithMetrics(m),
	)
	webhookSvc := webhookservice.New(transferStore, playerSvc,
		webhookservice.WithLogger(log),
		webhookservice.WithMetrics(m),
	)

	// The worker only runs with a real queue and a configured endpoint.
	var exportWorker *worker.Worker
	if realQueue, ok := exportQueue.(*queue.Redis); ok && cfg.Export.Endpoint != "" {
		client := tms.NewClient(cfg.Export.Endpoint, cfg.Export.Token, cfg.Export.Timeout)
		exportWorker = worker.New(
			worker.Config{
				Concurrency: cfg.Export.Concurrency,
				MaxAttempts: cfg.Export.MaxAttempts,
				RetryBase:   cfg.Export.RetryBase,
				CallTimeout: cfg.Export.Timeout,
			},
			realQueue, transferStore, playerStore, clubStore, client,
			worker.WithLogger(log),
			worker.WithMetrics(m),
		)
	} else if exportQueue.Enabled() {
		log.Warn("no export endpoint configured, jobs will wait on the queue")
	}

	validator := sessions.NewValidator(cfg.JWTSigningKey)
	authorized := middleware.RequireAuth(validator, log)
	adminOnly := middleware.RequireAdmin(log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(m))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		clubhandler.New(clubSvc, log, authorized, adminOnly).Register(r)
		playerhandler.New(playerSvc, log, authorized, adminOnly).Register(r)
		transferhandler.New(transferSvc, authorized, adminOnly).Register(r)
		webhookhandler.New(webhookSvc, cfg.Export.WebhookSecret).Register(r)
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if exportWorker != nil {
		exportWorker.Start(workerCtx)
		log.Info("export worker started", slog.Int("concurrency", cfg.Export.Concurrency))
	}

	srv := httpserver.New(cfg.Addr, r)
	go func() {
		log.Info("server listening", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	if err := httpserver.Shutdown(srv); err != nil {
		log.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
	if exportWorker != nil {
		stopWorker()
		exportWorker.Stop()
	}
}
