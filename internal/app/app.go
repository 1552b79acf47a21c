// Package app initializes and holds the services of a single archive run,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-archiver/internal/api"
	"github.com/JakeFAU/sitemap-archiver/internal/archive"
	"github.com/JakeFAU/sitemap-archiver/internal/auth"
	"github.com/JakeFAU/sitemap-archiver/internal/clock/system"
	"github.com/JakeFAU/sitemap-archiver/internal/config"
	"github.com/JakeFAU/sitemap-archiver/internal/crawler"
	"github.com/JakeFAU/sitemap-archiver/internal/extract"
	collyfetcher "github.com/JakeFAU/sitemap-archiver/internal/fetcher/colly"
	"github.com/JakeFAU/sitemap-archiver/internal/hash/sha256"
	"github.com/JakeFAU/sitemap-archiver/internal/id/uuid"
	"github.com/JakeFAU/sitemap-archiver/internal/logging"
	"github.com/JakeFAU/sitemap-archiver/internal/policy/ratelimit"
	"github.com/JakeFAU/sitemap-archiver/internal/progress"
	"github.com/JakeFAU/sitemap-archiver/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/sitemap-archiver/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/sitemap-archiver/internal/publisher/pubsub"
	queuememory "github.com/JakeFAU/sitemap-archiver/internal/queue/memory"
	"github.com/JakeFAU/sitemap-archiver/internal/sitemap"
	drivestore "github.com/JakeFAU/sitemap-archiver/internal/storage/drive"
	gcsstore "github.com/JakeFAU/sitemap-archiver/internal/storage/gcs"
	localstore "github.com/JakeFAU/sitemap-archiver/internal/storage/local"
	memorystore "github.com/JakeFAU/sitemap-archiver/internal/storage/memory"
	"github.com/JakeFAU/sitemap-archiver/internal/storage/postgres"
)

// Options carries the inputs of one run. Seeds and RunID override the
// configuration when set; Store replaces the configured backend.
type Options struct {
	Config config.Config
	Logger *zap.Logger
	Seeds  []string
	RunID  string
	Store  archive.Store
}

// App holds the long-lived services of one run.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	runID  string
	seeds  []string
	clock  crawler.Clock

	store     archive.Store
	upserter  *archive.Upserter
	engine    *crawler.Engine
	records   *memorypublisher.Publisher
	ledger    *postgres.Ledger
	publisher *pubsubpublisher.Publisher
	server    *api.Server
	hub       *progress.Hub

	pubsubClient *pubsub.Client
	gcsClient    *gcstorage.Client
	closeOnce    sync.Once
}

// New builds every service a run needs and fails fast on misconfiguration.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var ids crawler.IDGenerator = uuid.New()
	if opts.RunID != "" {
		ids = uuid.Static(opts.RunID)
	}
	runID, err := ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	seeds := opts.Seeds
	if len(seeds) == 0 {
		seeds = cfg.Site.Seeds
	}

	a := &App{
		cfg:     cfg,
		logger:  logging.ForRun(logger, runID),
		runID:   runID,
		seeds:   seeds,
		clock:   system.New(),
		records: memorypublisher.New(),
	}

	if err := a.initStore(ctx, opts.Store); err != nil {
		a.Close()
		return nil, err
	}
	a.upserter = archive.NewUpserter(a.store, archive.Config{
		RootFolderID:   cfg.Archive.RootFolderID,
		RootFolderName: cfg.Archive.RootFolderName,
		UploadedBy:     cfg.Archive.UploadedBy,
	}, a.logger.Named("archive"))

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		a.Close()
		return nil, err
	}
	hubSinks := []progress.Sink{promSink, sinks.NewLogSink(a.logger.Named("records"))}
	if cfg.Ledger.DSN != "" {
		ledger, err := postgres.NewLedger(ctx, postgres.LedgerConfig{
			DSN:          cfg.Ledger.DSN,
			RecordsTable: cfg.Ledger.RecordsTable,
			RunsTable:    cfg.Ledger.RunsTable,
			MaxConns:     cfg.Ledger.MaxConns,
		}, uuid.New())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init ledger: %w", err)
		}
		a.ledger = ledger
		if err := ledger.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("init ledger schema: %w", err)
		}
		hubSinks = append(hubSinks, progress.Each("ledger", ledger))
	}
	if cfg.PubSub.Enabled() {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		a.pubsubClient = client
		a.publisher = pubsubpublisher.New(client.Topic(cfg.PubSub.Topic))
		hubSinks = append(hubSinks, progress.Each("pubsub", a.publisher))
		a.logger.Info("publishing records", zap.String("topic", cfg.PubSub.Topic))
	}

	a.hub = progress.NewHub(progress.Config{Logger: a.logger.Named("progress")}, hubSinks...)

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: cfg.Crawler.RespectRobots,
		Timeout:       cfg.Crawler.RequestTimeout,
		MaxBodyBytes:  cfg.Crawler.MaxBodyBytes,
	}, a.logger.Named("fetcher"))
	limiter := ratelimit.New(ratelimit.Config{
		Delay:        cfg.Crawler.Delay,
		Jitter:       cfg.Crawler.Jitter,
		PerDomainMax: cfg.Crawler.PerDomainMax,
	})
	extractor := extract.New(extract.Config{
		ContainerSelector: cfg.Extract.ContainerSelector,
		NoiseSelectors:    cfg.Extract.NoiseSelectors,
	}, a.clock)

	engine, err := crawler.NewEngine(
		crawler.Config{
			RunID:          runID,
			SiteHost:       cfg.Site.Host,
			Referer:        cfg.Site.Referer,
			Concurrency:    cfg.Crawler.Concurrency,
			RequestTimeout: cfg.Crawler.RequestTimeout,
		},
		queuememory.NewQueue(),
		fetcher,
		sitemap.NewResolver(),
		extractor,
		a.upserter,
		limiter,
		crawler.NewExponentialRetryPolicy(cfg.Crawler.MaxAttempts),
		sha256.New(),
		a.clock,
		[]crawler.RecordSink{a.records, a.hub},
		logger.Named("engine"),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init engine: %w", err)
	}
	a.engine = engine

	if cfg.Server.Port > 0 {
		a.server = api.NewServer(engine, a.upserter, api.RunInfo{
			RunID:     runID,
			Seeds:     seeds,
			StartedAt: a.clock.Now(),
		}, a.logger.Named("api"))
	}
	return a, nil
}

func (a *App) initStore(ctx context.Context, override archive.Store) error {
	if override != nil {
		a.store = override
		return nil
	}
	cfg := a.cfg
	switch cfg.Archive.Backend {
	case config.BackendDrive:
		store, err := drivestore.Open(ctx, drivestore.Config{
			Auth: auth.Config{
				CredentialsFile: cfg.Drive.CredentialsFile,
				TokenFile:       cfg.Drive.TokenFile,
			},
			QuotaProject: cfg.Drive.QuotaProject,
		}, a.logger.Named("drive"))
		if err != nil {
			return fmt.Errorf("init drive store: %w", err)
		}
		a.store = store
	case config.BackendGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.gcsClient = client
		store, err := gcsstore.New(client, gcsstore.Config{Bucket: cfg.GCS.Bucket, Prefix: cfg.GCS.Prefix}, a.logger.Named("gcs"))
		if err != nil {
			return fmt.Errorf("init gcs store: %w", err)
		}
		if err := store.Check(ctx); err != nil {
			return err
		}
		a.store = store
	case config.BackendLocal:
		store, err := localstore.New(localstore.Config{BaseDir: cfg.Local.BaseDir})
		if err != nil {
			return fmt.Errorf("init local store: %w", err)
		}
		a.store = store
	case config.BackendMemory:
		a.store = memorystore.NewStore()
	default:
		return fmt.Errorf("unknown archive backend: %s", cfg.Archive.Backend)
	}
	a.logger.Info("archive backend ready", zap.String("backend", cfg.Archive.Backend))
	return nil
}

// RunID returns the identifier of this run.
func (a *App) RunID() string {
	return a.runID
}

// Store returns the archive backend.
func (a *App) Store() archive.Store {
	return a.store
}

// Records returns every record the run produced so far.
func (a *App) Records() []crawler.ArchiveRecord {
	return a.records.Records()
}

// Run crawls the seeds once and returns the final statistics. The ops server,
// when enabled, lives for the duration of the crawl. An App runs only once;
// its record sinks are flushed and closed before Run returns.
func (a *App) Run(ctx context.Context) (crawler.UploadStats, error) {
	if a.cfg.Crawler.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Crawler.RunTimeout)
		defer cancel()
	}

	if _, err := a.upserter.EnsureRoot(ctx); err != nil {
		return crawler.UploadStats{}, err
	}
	startedAt := a.clock.Now()
	if a.ledger != nil {
		if err := a.ledger.StartRun(ctx, a.runID, a.seeds, startedAt); err != nil {
			return crawler.UploadStats{}, fmt.Errorf("record run start: %w", err)
		}
	}

	serverCtx, stopServer := context.WithCancel(ctx)
	var serverWG sync.WaitGroup
	if a.server != nil {
		serverWG.Add(1)
		go func() {
			defer serverWG.Done()
			if err := a.server.Serve(serverCtx, a.cfg.Server.Port); err != nil {
				a.logger.Error("ops server failed", zap.Error(err))
			}
		}()
	}

	stats, runErr := a.engine.Run(ctx, a.seeds)
	if a.server != nil {
		a.server.MarkFinished()
	}
	stopServer()
	serverWG.Wait()

	flushCtx, cancelFlush := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	if err := a.hub.Close(flushCtx); err != nil {
		a.logger.Warn("flush record sinks failed", zap.Error(err))
	}
	cancelFlush()
	if dropped := a.hub.Dropped(); dropped > 0 {
		a.logger.Warn("records not delivered to sinks", zap.Int64("dropped", dropped))
	}

	if a.ledger != nil {
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := a.ledger.FinishRun(finishCtx, a.runID, stats, a.clock.Now(), runErr); err != nil {
			a.logger.Warn("record run finish failed", zap.Error(err))
		}
		cancel()
	}

	for _, record := range a.records.Failed() {
		a.logger.Warn("page not fully archived",
			zap.String("url", record.URL),
			zap.String("status", string(record.Status)),
			zap.String("error", record.UploadError),
		)
	}
	a.logger.Info("category folders",
		zap.Int64("count", stats.FoldersCached),
		zap.Strings("folders", a.upserter.FolderNames()),
	)
	return stats, runErr
}

// Close releases clients and connections. It is safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.hub != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := a.hub.Close(closeCtx); err != nil {
				a.logger.Warn("close progress hub", zap.Error(err))
			}
			cancel()
		}
		if a.publisher != nil {
			a.publisher.Close()
		}
		if a.pubsubClient != nil {
			if err := a.pubsubClient.Close(); err != nil {
				a.logger.Warn("close pubsub client", zap.Error(err))
			}
		}
		if a.ledger != nil {
			a.ledger.Close()
		}
		if a.gcsClient != nil {
			if err := a.gcsClient.Close(); err != nil {
				a.logger.Warn("close gcs client", zap.Error(err))
			}
		}
	})
}
