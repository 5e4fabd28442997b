// Package server assembles the application's dependencies and runs them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/api"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/clock/system"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/config"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/dedup"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/dispatcher"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/hash/sha256"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/id/uuid"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/logging"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/merge"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/progress"
	progresssinks "github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/progress/sinks"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/provider/browser"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/provider/places"
	memorypublisher "github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/publisher/memory"
	gcppublisher "github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/publisher/pubsub"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/queue"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/ratelimit"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/scheduler"
	gcsstorage "github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/storage/gcs"
	localstorage "github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/storage/local"
	memorystorage "github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/storage/memory"
	pgstorage "github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/storage/postgres"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/telemetry"
)

// App holds the assembled long-lived services.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	apiServer *api.Server
	workQueue *queue.WorkQueue
	sched     *scheduler.Scheduler
	hub       *progress.Hub

	pool            *pgxpool.Pool
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
	storageClient   *storage.Client

	tracerShutdown func(context.Context) error
	metricShutdown func(context.Context) error
}

type stores struct {
	jobs       leads.JobStore
	schedules  leads.ScheduleStore
	businesses leads.BusinessStore
	raws       leads.RawRecordStore
	settings   leads.SettingsStore
	events     progresssinks.JobEventRepository
}

// Build assembles every service from configuration. Nothing starts running
// until Run is called.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app := &App{cfg: cfg, logger: logger}

	tp, mp, err := telemetry.InitTelemetry(ctx, telemetry.Options{
		ServiceName: "leads-backend",
		ProjectID:   traceProject(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}
	if tp != nil {
		app.tracerShutdown = tp.Shutdown
	}
	if mp != nil {
		app.metricShutdown = mp.Shutdown
	}

	st, err := app.setupStores(ctx)
	if err != nil {
		return nil, err
	}
	blobs, err := app.setupBlobStore(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		return nil, err
	}
	app.hub, err = app.setupProgress(ctx, st.events)
	if err != nil {
		return nil, err
	}

	ids := uuid.NewUUIDGenerator()
	clock := system.New()
	hasher := sha256.New()

	engine := merge.NewEngine(logger.Named("merge"), st.businesses, st.raws, ids, clock, hasher)

	placesProvider := places.NewProvider(
		logger.Named("places"),
		places.NewClient(cfg.Places.BaseURL, ratelimit.New(ratelimit.Config{
			RPS:   cfg.Places.RPS,
			Burst: cfg.Places.Burst,
		})),
		st.settings,
		blobs,
		clock,
		app.hub,
		artifactDir(),
	)
	browserProvider := browser.NewProvider(logger.Named("browser"), browser.Config{
		Binary:      cfg.Browser.Binary,
		UseDocker:   cfg.Browser.UseDocker,
		DockerImage: cfg.Browser.DockerImage,
		CPUs:        cfg.Browser.CPUs,
		Memory:      cfg.Browser.Memory,
		ShmSize:     cfg.Browser.ShmSize,
		Concurrency: cfg.Browser.Concurrency,
		Debug:       cfg.Browser.Debug,
		Timeout:     cfg.BrowserTimeout(),
		WorkDir:     cfg.Browser.WorkDir,
	}, blobs)

	dispatch := dispatcher.New(
		logger.Named("dispatcher"),
		st.settings,
		engine,
		app.hub,
		clock,
		placesProvider,
		browserProvider,
	)

	queueOpts := []queue.Option{queue.WithCooldown(cfg.Cooldown())}
	if cfg.PubSub.Enabled {
		queueOpts = append(queueOpts, queue.WithPublisher(publisher, cfg.PubSub.TopicName))
	}
	app.workQueue = queue.New(
		logger.Named("queue"),
		st.jobs,
		st.settings,
		dispatch,
		app.hub,
		ids,
		clock,
		queueOpts...,
	)

	validator := dedup.NewValidator(logger.Named("dedup"), st.jobs, st.schedules)
	app.sched = scheduler.New(
		logger.Named("scheduler"),
		st.schedules,
		st.settings,
		app.workQueue,
		validator,
		clock,
	)

	app.apiServer = api.NewServer(
		logger.Named("api"),
		st.jobs,
		st.schedules,
		st.businesses,
		st.settings,
		app.workQueue,
		app.sched,
		validator,
		ids,
		clock,
		cfg,
	)

	return app, nil
}

// Run starts the queue, scheduler, and HTTP server, then blocks until the
// context is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.workQueue.Start(ctx); err != nil {
		return fmt.Errorf("work queue start failed: %w", err)
	}
	if err := a.sched.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	return a.Close(shutdownCtx)
}

// Close shuts services down in dependency order: stop admitting work, stop
// timers, drain the queue, flush progress, then release infrastructure.
func (a *App) Close(ctx context.Context) error {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.workQueue != nil {
		if err := a.workQueue.Stop(ctx); err != nil {
			a.logger.Warn("work queue stop incomplete", zap.Error(err))
		}
	}
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	a.closeInfrastructure()
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	_ = a.logger.Sync()
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if a.metricShutdown != nil {
		if err := a.metricShutdown(ctx); err != nil {
			a.logger.Warn("metric shutdown failed", zap.Error(err))
		}
	}
}

func (a *App) setupStores(ctx context.Context) (stores, error) {
	switch a.cfg.DB.Backend {
	case "postgres":
		a.logger.Info("using postgres storage backend")
		pool, err := pgstorage.Connect(ctx, pgstorage.Config{
			DSN:             a.cfg.DB.DSN,
			MaxConns:        int32(a.cfg.DB.MaxConns),
			MinConns:        int32(a.cfg.DB.MinConns),
			MaxConnLifetime: time.Duration(a.cfg.DB.ConnLifeMins) * time.Minute,
		})
		if err != nil {
			return stores{}, fmt.Errorf("postgres connect failed: %w", err)
		}
		a.pool = pool
		return stores{
			jobs:       pgstorage.NewJobStore(pool),
			schedules:  pgstorage.NewScheduleStore(pool),
			businesses: pgstorage.NewBusinessStore(pool),
			raws:       pgstorage.NewRawRecordStore(pool),
			settings:   pgstorage.NewSettingsStore(pool),
			events:     pgstorage.NewJobEventStore(pool),
		}, nil
	default:
		a.logger.Info("using in-memory storage backend")
		return stores{
			jobs:       memorystorage.NewJobStore(),
			schedules:  memorystorage.NewScheduleStore(),
			businesses: memorystorage.NewBusinessStore(),
			raws:       memorystorage.NewRawRecordStore(),
			settings:   memorystorage.NewSettingsStore(defaultSettings()),
		}, nil
	}
}

func (a *App) setupBlobStore(ctx context.Context) (leads.BlobStore, error) {
	switch a.cfg.Blob.Backend {
	case "gcs":
		a.logger.Info("using GCS blob backend", zap.String("bucket", a.cfg.Blob.GCSBucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storageClient = client
		return gcsstorage.New(client, gcsstorage.Config{
			Bucket: a.cfg.Blob.GCSBucket,
			Prefix: a.cfg.Blob.GCSPrefix,
		})
	case "local":
		a.logger.Info("using local blob backend", zap.String("base_dir", a.cfg.Blob.BaseDir))
		return localstorage.New(localstorage.Config{BaseDir: a.cfg.Blob.BaseDir})
	default:
		a.logger.Info("using in-memory blob backend")
		return memorystorage.NewBlobStore(), nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (leads.Publisher, error) {
	if !a.cfg.PubSub.Enabled {
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.pubsubPublisher = client.Publisher(a.cfg.PubSub.TopicName)
	a.logger.Info("pubsub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName))
	return gcppublisher.New(a.pubsubPublisher), nil
}

func (a *App) setupProgress(ctx context.Context, events progresssinks.JobEventRepository) (*progress.Hub, error) {
	promSink, err := progresssinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink init failed: %w", err)
	}
	sinkList := []progress.Sink{
		progresssinks.NewLogSink(a.logger.Named("progress")),
		promSink,
	}
	if events != nil {
		sinkList = append(sinkList, progresssinks.NewStoreSink(events, a.logger.Named("progress_store")))
	}
	return progress.NewHub(progress.Config{
		BaseContext: ctx,
		Logger:      a.logger.Named("progress_hub"),
	}, sinkList...), nil
}

func traceProject(cfg config.Config) string {
	if !cfg.Telemetry.TracingEnabled {
		return ""
	}
	return cfg.Telemetry.ProjectID
}

func defaultSettings() leads.Settings {
	return leads.Settings{
		DefaultProvider:    leads.ProviderBrowser,
		ConcurrencyLimit:   2,
		DefaultMaxResults:  20,
		DefaultMaxPages:    1,
		DefaultFieldsLevel: leads.FieldsBasic,
		PlacesDailyLimit:   50,
	}
}

func artifactDir() string {
	return os.TempDir()
}
