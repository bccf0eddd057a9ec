// Package app wires configuration, storage, metadata sync and the home
// coordinator into one runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ifmain/pinny/internal/config"
	"github.com/ifmain/pinny/internal/culler"
	"github.com/ifmain/pinny/internal/exporter"
	"github.com/ifmain/pinny/internal/home"
	"github.com/ifmain/pinny/internal/importer"
	"github.com/ifmain/pinny/internal/logger"
	"github.com/ifmain/pinny/internal/metadata"
	"github.com/ifmain/pinny/internal/model"
	"github.com/ifmain/pinny/internal/storage"
	"github.com/ifmain/pinny/internal/thumbnail"
	"github.com/ifmain/pinny/internal/usecase"
	"github.com/ifmain/pinny/internal/worker"
)

// Options controls how New builds an App.
type Options struct {
	ConfigPath string // default ~/.config/pinny/config.yaml
	Memory     bool   // keep bookmarks in memory instead of SQLite

	// LogToStderr sends logs to stderr instead of the configured log file.
	// The TUI owns the terminal, so only headless commands set it.
	LogToStderr bool

	Logger       logger.Logger      // optional, built from config if nil
	MetadataSync worker.MetadataSync // optional, overrides queue.backend
	Clock        model.Clock         // optional, RealClock if nil
	IDs          model.IDGenerator   // optional, UUIDGenerator if nil
}

// App holds the wired components.
type App struct {
	Config    *config.Config
	Log       logger.Logger
	Repo      storage.Repository
	Bookmarks *usecase.Bookmarks

	// Sync is where metadata jobs go: the local Pool or RabbitMQ.
	Sync worker.MetadataSync
	// Pool runs metadata jobs in this process. It serves Sync for the local
	// backend and the AMQP consumer for `pinny worker`.
	Pool *worker.Pool

	clock   model.Clock
	ids     model.IDGenerator
	closers []func() error
}

// New loads configuration and builds every component. Call Close when done.
func New(ctx context.Context, opts Options) (*App, error) {
	path := opts.ConfigPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		clock:  opts.Clock,
		ids:    opts.IDs,
	}
	if a.clock == nil {
		a.clock = model.RealClock{}
	}
	if a.ids == nil {
		a.ids = model.UUIDGenerator{}
	}

	a.Log = opts.Logger
	if a.Log == nil {
		logOpts := logger.Options{Level: cfg.LogLevel, Pretty: true, Path: cfg.LogFile}
		if opts.LogToStderr {
			logOpts.Path = ""
		}
		if a.Log, err = logger.New(logOpts); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			_ = a.Log.Sync()
			return nil
		})
	}

	if err := a.openRepository(opts.Memory); err != nil {
		a.Close()
		return nil, err
	}

	a.Bookmarks = usecase.New(usecase.Params{Repo: a.Repo, Clock: a.clock, IDs: a.ids})

	syncer := worker.NewSyncer(worker.SyncerParams{
		Fetcher: a.newFetcher(ctx),
		Thumbnails: thumbnail.NewStore(thumbnail.StoreParams{
			Dir:       cfg.ThumbnailDir,
			UserAgent: cfg.Metadata.UserAgent,
		}),
		Store:  a.Repo,
		Logger: a.Log.With(logger.String("component", "syncer")),
	})
	a.Pool = worker.NewPool(worker.PoolParams{
		Handler:      syncer,
		Workers:      cfg.Metadata.Workers,
		QueueSize:    cfg.Metadata.QueueSize,
		MaxAttempts:  cfg.Metadata.MaxAttempts,
		RetryBackoff: cfg.Metadata.RetryBackoff,
		Logger:       a.Log.With(logger.String("component", "pool")),
	})
	a.closers = append(a.closers, func() error {
		a.Pool.Stop()
		return nil
	})

	switch {
	case opts.MetadataSync != nil:
		a.Sync = opts.MetadataSync
	case cfg.Queue.Backend == config.BackendAMQP:
		queue, err := worker.NewAMQPQueue(a.AMQPConfig(), a.Log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, queue.Close)
		a.Sync = queue
	default:
		a.Sync = a.Pool
	}

	return a, nil
}

func (a *App) openRepository(memory bool) error {
	if memory {
		a.Repo = storage.NewMemoryRepository(a.clock)
		a.Log.Debug("using in-memory repository")
		return nil
	}

	repo, err := storage.NewSQLiteRepository(storage.SQLiteParams{
		Path:  a.Config.DatabasePath,
		Clock: a.clock,
	})
	if err != nil {
		return err
	}
	a.Log.Debug("opened database", logger.String("path", repo.Path()))
	a.Repo = repo
	a.closers = append(a.closers, repo.Close)
	return nil
}

// newFetcher builds the page fetcher, cached in Redis when one is configured
// and reachable.
func (a *App) newFetcher(ctx context.Context) metadata.Fetcher {
	cfg := a.Config
	var fetcher metadata.Fetcher = metadata.NewHTTPFetcher(metadata.HTTPFetcherParams{
		Timeout:   cfg.Metadata.Timeout,
		UserAgent: cfg.Metadata.UserAgent,
	})
	if cfg.Redis.Addr == "" {
		return fetcher
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		a.Log.Warn("redis unavailable, metadata cache disabled",
			logger.String("addr", cfg.Redis.Addr),
			logger.Error(err))
		client.Close()
		return fetcher
	}

	a.closers = append(a.closers, client.Close)
	return metadata.NewCachedFetcher(fetcher, metadata.NewRedisCache(client, cfg.Metadata.CacheTTL), a.Log)
}

// AMQPConfig returns the RabbitMQ settings from the queue config.
func (a *App) AMQPConfig() worker.AMQPConfig {
	q := a.Config.Queue
	return worker.AMQPConfig{
		URL:        q.AMQPURL,
		Exchange:   q.Exchange,
		RoutingKey: q.RoutingKey,
		QueueName:  q.QueueName,
	}
}

// UsesLocalPool reports whether scheduled jobs run in this process.
func (a *App) UsesLocalPool() bool {
	return a.Sync == worker.MetadataSync(a.Pool)
}

// Start launches the local worker pool.
func (a *App) Start(ctx context.Context) {
	a.Pool.Start(ctx)
}

// NewCoordinator builds the home screen coordinator. The caller runs it.
func (a *App) NewCoordinator() *home.Coordinator {
	return home.New(home.Params{
		Bookmarks:       a.Bookmarks,
		MetadataSync:    a.Sync,
		Clock:           a.clock,
		Logger:          a.Log.With(logger.String("component", "home")),
		Debounce:        a.Config.Home.Debounce,
		StaleWindow:     a.Config.Home.StaleWindow,
		MaxMetadataJobs: a.Config.Home.MaxMetadataJobs,
	})
}

// Add saves a bookmark and schedules its metadata sync.
func (a *App) Add(ctx context.Context, url string, note, category *string, tags []string) (model.Bookmark, error) {
	b, err := a.Bookmarks.AddBookmark(ctx, url, note, category, tags)
	if err != nil {
		return model.Bookmark{}, err
	}
	a.Sync.Schedule(b.ID, b.URL)
	return b, nil
}

// List returns all bookmarks, newest first. Archived ones are included
// only when archived is true.
func (a *App) List(ctx context.Context, archived bool) ([]model.Bookmark, error) {
	all, err := storage.First(ctx, a.Bookmarks.GetAllBookmarks)
	if err != nil {
		return nil, err
	}
	if archived {
		return all, nil
	}
	out := all[:0:0]
	for _, b := range all {
		if !b.Archived {
			out = append(out, b)
		}
	}
	return out, nil
}

// Search returns bookmarks matching keyword, archived ones included.
func (a *App) Search(ctx context.Context, keyword string) ([]model.Bookmark, error) {
	return storage.First(ctx, func(ctx context.Context) <-chan storage.Snapshot {
		return a.Bookmarks.SearchBookmarks(ctx, strings.TrimSpace(keyword))
	})
}

// SyncStale schedules metadata sync for stale bookmarks, like the home
// screen's refresh, and returns how many were scheduled.
func (a *App) SyncStale(ctx context.Context) (int, error) {
	all, err := storage.First(ctx, a.Bookmarks.GetAllBookmarks)
	if err != nil {
		return 0, err
	}
	cutoff := a.clock.Now().Add(-a.Config.Home.StaleWindow)
	stale := home.StaleCandidates(all, cutoff, a.Config.Home.MaxMetadataJobs)
	for _, b := range stale {
		a.Sync.Schedule(b.ID, b.URL)
	}
	a.Log.Info("scheduled stale bookmarks", logger.Int("count", len(stale)))
	return len(stale), nil
}

// ImportResult summarises an import.
type ImportResult struct {
	Added   int
	Skipped int // URLs that were already saved or repeated in the file
}

// Import reads a Netscape bookmark file, saves bookmarks whose URL isn't
// saved yet and schedules their metadata sync.
func (a *App) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	parsed, err := importer.ParseHTMLBookmarks(r, importer.Params{Clock: a.clock, IDs: a.ids})
	if err != nil {
		return ImportResult{}, fmt.Errorf("parse bookmarks: %w", err)
	}

	existing, err := storage.First(ctx, a.Bookmarks.GetAllBookmarks)
	if err != nil {
		return ImportResult{}, err
	}
	seen := make(map[string]bool, len(existing))
	for _, b := range existing {
		seen[b.URL] = true
	}

	var result ImportResult
	for _, b := range parsed {
		if seen[b.URL] {
			result.Skipped++
			continue
		}
		seen[b.URL] = true

		if err := a.Repo.Upsert(ctx, b); err != nil {
			return result, fmt.Errorf("save %s: %w", b.URL, err)
		}
		a.Sync.Schedule(b.ID, b.URL)
		result.Added++
	}

	a.Log.Info("imported bookmarks",
		logger.Int("added", result.Added),
		logger.Int("skipped", result.Skipped))
	return result, nil
}

// Export renders every bookmark as a Netscape bookmark file.
func (a *App) Export(ctx context.Context) (string, int, error) {
	all, err := storage.First(ctx, a.Bookmarks.GetAllBookmarks)
	if err != nil {
		return "", 0, err
	}
	return exporter.ExportHTML(all), len(all), nil
}

// CheckParams configures Check.
type CheckParams struct {
	ArchiveDead bool
	OnProgress  culler.ProgressFunc
}

// Check tests every unarchived bookmark's link and optionally archives the
// dead ones.
func (a *App) Check(ctx context.Context, params CheckParams) ([]culler.Result, error) {
	bookmarks, err := a.List(ctx, false)
	if err != nil {
		return nil, err
	}

	results := culler.CheckURLs(ctx, bookmarks, culler.Params{
		Concurrency:    a.Config.Check.Concurrency,
		Timeout:        a.Config.Check.Timeout,
		ExcludeDomains: a.Config.Check.ExcludeDomains,
		OnProgress:     params.OnProgress,
		Logger:         a.Log,
	})

	if params.ArchiveDead {
		var errs []error
		for _, r := range culler.DeadLinks(results) {
			if err := a.Bookmarks.ArchiveBookmark(ctx, r.Bookmark.ID, true); err != nil {
				errs = append(errs, fmt.Errorf("archive %s: %w", r.Bookmark.URL, err))
			}
		}
		if err := errors.Join(errs...); err != nil {
			return results, err
		}
	}
	return results, nil
}

// Close stops the pool and releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
