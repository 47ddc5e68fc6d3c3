// Package app builds and holds the long-lived services of the catalog: the
// stores, the worker pool and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/normattiva-catalog/internal/api"
	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/config"
	"github.com/JakeFAU/normattiva-catalog/internal/dispatcher"
	"github.com/JakeFAU/normattiva-catalog/internal/enrich"
	"github.com/JakeFAU/normattiva-catalog/internal/extract"
	collyfetcher "github.com/JakeFAU/normattiva-catalog/internal/fetcher/colly"
	"github.com/JakeFAU/normattiva-catalog/internal/fetcher/fallback"
	headlessfetcher "github.com/JakeFAU/normattiva-catalog/internal/fetcher/headless"
	"github.com/JakeFAU/normattiva-catalog/internal/fetcher/throttle"
	"github.com/JakeFAU/normattiva-catalog/internal/id/uuid"
	"github.com/JakeFAU/normattiva-catalog/internal/logging"
	"github.com/JakeFAU/normattiva-catalog/internal/metrics"
	"github.com/JakeFAU/normattiva-catalog/internal/pipeline"
	memorypublisher "github.com/JakeFAU/normattiva-catalog/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/normattiva-catalog/internal/publisher/pubsub"
	queuememory "github.com/JakeFAU/normattiva-catalog/internal/queue/memory"
	"github.com/JakeFAU/normattiva-catalog/internal/snapshot"
	gcsstorage "github.com/JakeFAU/normattiva-catalog/internal/storage/gcs"
	localstorage "github.com/JakeFAU/normattiva-catalog/internal/storage/local"
	memorystorage "github.com/JakeFAU/normattiva-catalog/internal/storage/memory"
	pgstore "github.com/JakeFAU/normattiva-catalog/internal/storage/postgres"
	"github.com/JakeFAU/normattiva-catalog/internal/telemetry"
	"github.com/JakeFAU/normattiva-catalog/internal/worker"
)

// App contains the application's dependencies.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	repo     catalog.Repository
	jobStore catalog.JobStore
	pg       *pgstore.Store
	queue    *queuememory.Queue
	dispatch *dispatcher.Dispatcher
	idGen    catalog.IDGenerator

	archiver pipeline.Archiver
	enricher catalog.Enricher
	headless *headlessfetcher.Fetcher
	gcs      *gcsstorage.BlobStore
	pubsub   *gcppublisher.Publisher
	limiter  *throttle.Limiter
	tracer   *sdktrace.TracerProvider
}

// Build creates the application's dependencies from cfg.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger creates the application's dependencies using logger.
func BuildWithLogger(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{
		cfg:    cfg,
		logger: logger,
		idGen:  uuid.New(),
	}
	a.logger.Info("building application dependencies")

	steps := []func(context.Context) error{
		a.setupTracing,
		a.setupDatabase,
		a.setupSnapshot,
		a.setupPublisher,
		a.setupHeadless,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.setupWorkers()
	return a, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Repository returns the article store.
func (a *App) Repository() catalog.Repository {
	return a.repo
}

// JobStore returns the job store.
func (a *App) JobStore() catalog.JobStore {
	return a.jobStore
}

func (a *App) setupDatabase(ctx context.Context) error {
	switch a.cfg.DB.Provider {
	case config.ProviderPostgres:
		store, err := pgstore.New(ctx, pgstore.Config{
			DSN:      a.cfg.DB.DSN,
			MaxConns: a.cfg.DB.MaxConns,
			MinConns: a.cfg.DB.MinConns,
		})
		if err != nil {
			return fmt.Errorf("postgres store init failed: %w", err)
		}
		a.pg = store
		a.repo = store
		a.jobStore = store
		a.logger.Info("using postgres store", zap.Int32("max_conns", a.cfg.DB.MaxConns))
	default:
		a.repo = memorystorage.NewRepository()
		a.jobStore = memorystorage.NewJobStore()
		a.logger.Info("using in-memory store")
	}
	return nil
}

func (a *App) setupSnapshot(ctx context.Context) error {
	var blobs catalog.BlobStore
	switch a.cfg.Snapshot.Provider {
	case config.ProviderGCS:
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: a.cfg.Snapshot.GCSBucket})
		if err != nil {
			return fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.gcs = store
		blobs = store
		a.logger.Info("using GCS snapshots", zap.String("bucket", a.cfg.Snapshot.GCSBucket))
	case config.ProviderLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Snapshot.BaseDir})
		if err != nil {
			return fmt.Errorf("local blob store init failed: %w", err)
		}
		blobs = store
		a.logger.Info("using local snapshots", zap.String("path", a.cfg.Snapshot.BaseDir))
	case config.ProviderMemory:
		blobs = memorystorage.NewBlobStore()
		a.logger.Info("using in-memory snapshots")
	default:
		a.logger.Info("snapshots disabled")
		return nil
	}
	a.archiver = snapshot.New(blobs, a.cfg.Snapshot.Prefix)
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	var publisher catalog.Publisher
	switch a.cfg.PubSub.Provider {
	case config.ProviderPubSub:
		p, err := gcppublisher.Open(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
		if err != nil {
			return fmt.Errorf("pubsub publisher init failed: %w", err)
		}
		a.pubsub = p
		publisher = p
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", a.cfg.PubSub.ProjectID),
			zap.String("topic", a.cfg.PubSub.TopicName),
		)
	case config.ProviderMemory:
		publisher = memorypublisher.New()
		a.logger.Info("using in-memory publisher")
	default:
		a.enricher = enrich.Noop{}
		a.logger.Info("article notifications disabled")
		return nil
	}
	a.enricher = enrich.NewNotifier(publisher, a.cfg.PubSub.TopicName, a.logger)
	return nil
}

func (a *App) setupTracing(ctx context.Context) error {
	if !a.cfg.Tracing.Enabled {
		return nil
	}
	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName: a.cfg.Tracing.ServiceName,
		SampleRatio: a.cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	a.tracer = tp
	a.logger.Info("tracing enabled", zap.Float64("sample_ratio", a.cfg.Tracing.SampleRatio))
	return nil
}

func (a *App) setupHeadless(context.Context) error {
	if !a.cfg.Headless.Enabled {
		return nil
	}
	f, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       a.cfg.Headless.MaxParallel,
		UserAgent:         a.cfg.Source.UserAgent,
		NavigationTimeout: a.cfg.NavTimeout(),
		WaitSelector:      a.cfg.Headless.WaitSelector,
	})
	if err != nil {
		return fmt.Errorf("headless fetcher init failed: %w", err)
	}
	a.headless = f
	a.logger.Info("headless fetcher ready",
		zap.Int("max_parallel", a.cfg.Headless.MaxParallel),
		zap.Bool("always", a.cfg.Headless.Always),
	)
	return nil
}

// setupWorkers builds one pipeline per worker so that every worker owns its
// fetch session.
func (a *App) setupWorkers() {
	a.queue = queuememory.NewQueue(a.cfg.Crawler.QueueDepth)
	pipeCfg := pipeline.Config{
		BaseURL:          a.cfg.Source.BaseURL,
		VersionTimeout:   a.cfg.VersionTimeout(),
		GroupParallelism: a.cfg.Crawler.GroupParallelism,
		SkipExisting:     a.cfg.Crawler.SkipExisting,
		DocumentTextCap:  a.cfg.Source.DocumentTextCap,
	}
	var opts []pipeline.Option
	if a.archiver != nil {
		opts = append(opts, pipeline.WithArchiver(a.archiver))
	}
	if a.enricher != nil {
		opts = append(opts, pipeline.WithEnricher(a.enricher))
	}

	if a.cfg.Source.RequestsPerSecond > 0 {
		a.limiter = throttle.New(throttle.Config{RPS: a.cfg.Source.RequestsPerSecond, Burst: a.cfg.Source.Burst})
	}

	workers := make([]dispatcher.Runner, 0, a.cfg.Crawler.Concurrency)
	for i := range a.cfg.Crawler.Concurrency {
		session := throttle.Wrap(collyfetcher.New(collyfetcher.Config{
			UserAgent: a.cfg.Source.UserAgent,
			Timeout:   a.cfg.FetchTimeout(),
		}), a.limiter)
		root := a.rootFetcher(session)
		extractor := extract.New(session, extract.Config{MaxAttachments: a.cfg.Source.MaxAttachments}, a.logger.Named("extract"))
		p := pipeline.New(pipeCfg, root, extractor, a.repo, a.logger, opts...)
		workers = append(workers, worker.New(i, a.queue, a.jobStore, p, a.logger))
	}
	a.dispatch = dispatcher.New(a.queue, workers)
	a.logger.Info("worker pool ready",
		zap.Int("workers", a.cfg.Crawler.Concurrency),
		zap.Int("group_parallelism", pipeCfg.GroupParallelism),
		zap.Duration("version_timeout", pipeCfg.VersionTimeout),
		zap.Bool("skip_existing", pipeCfg.SkipExisting),
		zap.Float64("requests_per_second", a.cfg.Source.RequestsPerSecond),
	)
}

// rootFetcher picks how document pages are loaded: the plain session, the
// headless renderer, or the session promoted to the renderer on shells.
func (a *App) rootFetcher(session catalog.Fetcher) catalog.Fetcher {
	if a.headless == nil {
		return session
	}
	renderer := throttle.Wrap(a.headless, a.limiter)
	if a.cfg.Headless.Always {
		return renderer
	}
	return fallback.New(session, renderer, fallback.NewHeuristic(a.cfg.Headless.BodyLengthThreshold), a.logger.Named("fallback"))
}

// Migrate applies the database schema. The in-memory store needs none.
func (a *App) Migrate(ctx context.Context) error {
	if a.pg == nil {
		a.logger.Info("in-memory store, no migration needed")
		return nil
	}
	if err := a.pg.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.logger.Info("schema migrated")
	return nil
}

// Submit records and enqueues one job per target.
func (a *App) Submit(ctx context.Context, targets []catalog.DocumentTarget) ([]string, error) {
	ids := make([]string, 0, len(targets))
	for _, target := range targets {
		id, err := a.idGen.NewID()
		if err != nil {
			return ids, fmt.Errorf("generate job id: %w", err)
		}
		job := catalog.Job{
			ID:        id,
			Target:    target,
			Status:    catalog.JobStatusQueued,
			Submitted: time.Now().UTC(),
		}
		if err := a.jobStore.CreateJob(ctx, job); err != nil {
			return ids, fmt.Errorf("create job: %w", err)
		}
		if err := a.dispatch.Enqueue(ctx, job); err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Crawl processes targets with the worker pool and returns the finished jobs
// in submission order. The queue is closed afterwards, so Crawl runs once per
// App.
func (a *App) Crawl(ctx context.Context, targets []catalog.DocumentTarget) ([]catalog.Job, error) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.dispatch.Run(ctx)
	}()

	ids, err := a.Submit(ctx, targets)
	a.dispatch.Close()
	<-done
	if err != nil {
		return nil, err
	}

	jobs := make([]catalog.Job, 0, len(ids))
	for _, id := range ids {
		job, err := a.jobStore.GetJob(context.WithoutCancel(ctx), id)
		if err != nil {
			return jobs, fmt.Errorf("get job %s: %w", id, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, ctx.Err()
}

// Serve runs the worker pool and the HTTP API until ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	apiServer := api.NewServer(a.jobStore, a.repo, a.dispatch, a.idGen, a.cfg, a.logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.logger.Info("dispatcher started")
		a.dispatch.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.dispatch.Close()
	<-done

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve http: %w", err)
	default:
		return nil
	}
}

// Close releases every resource the app opened.
func (a *App) Close() {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.headless != nil {
		a.headless.Close()
	}
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.repo != nil {
		a.repo.Close()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		cancel()
	}
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
}
