package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-archiver/internal/extract"
	"github.com/JakeFAU/sitemap-archiver/internal/metrics"
	"github.com/JakeFAU/sitemap-archiver/internal/sitemap"
)

const previewBytes = 200

// Engine walks a sitemap tree and archives every page it discovers. An Engine
// serves a single run.
type Engine struct {
	cfg       Config
	queue     Queue
	fetcher   Fetcher
	resolver  SitemapResolver
	extractor Extractor
	archiver  Archiver
	limiter   Limiter
	retry     RetryPolicy
	hasher    Hasher
	clock     Clock
	sinks     []RecordSink
	logger    *zap.Logger
	pauser    pauseController

	visited  visitTracker
	sitemaps visitTracker
	stats    runStats
	pending  atomic.Int64
	started  atomic.Bool
}

// NewEngine wires an Engine. A nil limiter disables politeness gating, a nil
// retry policy disables retries, and a nil hasher leaves ContentHash empty.
func NewEngine(
	cfg Config,
	queue Queue,
	fetcher Fetcher,
	resolver SitemapResolver,
	extractor Extractor,
	archiver Archiver,
	limiter Limiter,
	retry RetryPolicy,
	hasher Hasher,
	clock Clock,
	sinks []RecordSink,
	logger *zap.Logger,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if queue == nil || fetcher == nil || resolver == nil || extractor == nil || archiver == nil || clock == nil {
		return nil, errors.New("queue, fetcher, resolver, extractor, archiver, and clock are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = unlimited{}
	}
	return &Engine{
		cfg:       cfg,
		queue:     queue,
		fetcher:   fetcher,
		resolver:  resolver,
		extractor: extractor,
		archiver:  archiver,
		limiter:   limiter,
		retry:     retry,
		hasher:    hasher,
		clock:     clock,
		sinks:     sinks,
		logger:    logger.With(zap.String("run_id", cfg.RunID)),
		pauser:    &timerPauseController{},
		visited:   newConcurrentVisitTracker(),
		sitemaps:  newConcurrentVisitTracker(),
	}, nil
}

// Run crawls from the seed sitemaps until every discovered task is handled or
// ctx ends, and returns the final statistics.
func (e *Engine) Run(ctx context.Context, seeds []string) (UploadStats, error) {
	if len(seeds) == 0 {
		return UploadStats{}, errors.New("at least one seed sitemap is required")
	}
	if !e.started.CompareAndSwap(false, true) {
		return UploadStats{}, errors.New("engine already ran")
	}

	e.logger.Info("crawl started", zap.Int("seeds", len(seeds)), zap.Int("workers", e.cfg.Concurrency))
	start := time.Now()

	for _, seed := range seeds {
		if e.sitemaps.MarkIfNew(seed) {
			e.schedule(ctx, Task{Kind: TaskSitemap, URL: seed})
		}
	}
	if e.pending.Load() == 0 {
		e.queue.Close()
	}

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			e.work(ctx, e.logger.With(zap.Int("worker", id)))
		}(i)
	}
	wg.Wait()

	stats := e.Stats()
	e.logger.Info("crawl finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int64("total_items", stats.TotalItems),
		zap.Int64("successful_uploads", stats.SuccessfulUploads),
		zap.Int64("failed_uploads", stats.FailedUploads),
		zap.Int64("raw_files", stats.RawFilesUploaded),
		zap.Int64("text_files", stats.TextFilesUploaded),
		zap.Int64("pages_skipped", stats.PagesSkipped),
		zap.Int64("folders_cached", stats.FoldersCached),
	)
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("crawl interrupted: %w", err)
	}
	return stats, nil
}

// Stats returns a snapshot of the run counters. Safe to call while running.
func (e *Engine) Stats() UploadStats {
	stats := e.stats.snapshot()
	if counter, ok := e.archiver.(FolderCounter); ok {
		stats.FoldersCached = int64(len(counter.FolderNames()))
	}
	return stats
}

func (e *Engine) schedule(ctx context.Context, task Task) {
	e.pending.Add(1)
	if err := e.queue.Enqueue(ctx, task); err != nil {
		e.logger.Warn("enqueue failed", zap.String("url", task.URL), zap.String("kind", string(task.Kind)), zap.Error(err))
		e.done()
	}
}

func (e *Engine) done() {
	if e.pending.Add(-1) == 0 {
		e.queue.Close()
	}
}

func (e *Engine) work(ctx context.Context, logger *zap.Logger) {
	for {
		task, err := e.queue.Dequeue(ctx)
		if err != nil {
			logger.Debug("worker exiting", zap.Error(err))
			return
		}
		metrics.IncActiveWorkers()
		e.handle(ctx, task, logger)
		metrics.DecActiveWorkers()
		e.done()
	}
}

func (e *Engine) handle(ctx context.Context, task Task, logger *zap.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("task panicked", zap.String("url", task.URL), zap.Any("panic", rec))
			if task.Kind == TaskPage {
				e.stats.failedUploads.Add(1)
			}
		}
	}()
	switch task.Kind {
	case TaskSitemap:
		e.processSitemap(ctx, task, logger)
	case TaskPage:
		e.processPage(ctx, task, logger)
	default:
		logger.Warn("unknown task kind", zap.String("kind", string(task.Kind)), zap.String("url", task.URL))
	}
}

func (e *Engine) processSitemap(ctx context.Context, task Task, logger *zap.Logger) {
	logger = logger.With(zap.String("sitemap", task.URL))
	resp, err := e.fetch(ctx, task.URL)
	if err != nil {
		logger.Error("sitemap fetch failed", zap.Error(err))
		metrics.ObserveSitemap("failed")
		return
	}
	e.stats.sitemapsFetched.Add(1)

	node, err := e.resolver.Resolve(resp.Body)
	if err != nil {
		var parseErr *sitemap.ParseError
		if errors.As(err, &parseErr) {
			logger.Warn("unknown sitemap format",
				zap.Strings("keys", parseErr.Keys),
				zap.String("preview", preview(resp.Body)),
				zap.Error(err),
			)
		} else {
			logger.Error("resolve sitemap", zap.Error(err))
		}
		metrics.ObserveSitemap("unknown")
		return
	}
	metrics.ObserveSitemap(string(node.Kind))

	switch node.Kind {
	case sitemap.KindIndex:
		scheduled := 0
		for _, loc := range node.Locs {
			if !e.sitemaps.MarkIfNew(loc) {
				logger.Debug("sitemap already scheduled", zap.String("child", loc))
				continue
			}
			e.schedule(ctx, Task{Kind: TaskSitemap, URL: loc, Parent: task.URL})
			scheduled++
		}
		logger.Info("sitemap index resolved", zap.Int("children", len(node.Locs)), zap.Int("scheduled", scheduled))
	case sitemap.KindURLSet:
		fresh := 0
		for _, loc := range node.Locs {
			if !e.visited.MarkIfNew(loc) {
				continue
			}
			fresh++
			e.stats.pagesDiscovered.Add(1)
			e.schedule(ctx, Task{Kind: TaskPage, URL: loc, Parent: task.URL})
		}
		logger.Info("url set resolved", zap.Int("urls", len(node.Locs)), zap.Int("unique", fresh))
	}
}

func (e *Engine) processPage(ctx context.Context, task Task, logger *zap.Logger) {
	logger = logger.With(zap.String("url", task.URL))
	record, ok := e.crawlPage(ctx, task.URL, logger)
	if !ok {
		e.stats.pagesSkipped.Add(1)
		metrics.ObservePage(task.URL, "skipped", 0)
		return
	}
	record = e.archive(ctx, record, logger)
	status := "archived"
	if record.UploadError != "" {
		status = "failed"
	}
	metrics.ObservePage(task.URL, status, len(record.RawContent))
	e.emit(ctx, record, logger)
}

// crawlPage fetches and extracts one page. It reports false when the page
// should be skipped without archiving.
func (e *Engine) crawlPage(ctx context.Context, rawURL string, logger *zap.Logger) (ArchiveRecord, bool) {
	resp, err := e.fetch(ctx, rawURL)
	if err != nil {
		logger.Warn("page fetch failed", zap.Error(err))
		return ArchiveRecord{}, false
	}

	record := ArchiveRecord{
		RunID:       e.cfg.RunID,
		URL:         rawURL,
		RawContent:  resp.Body,
		RawMimeType: resp.ContentType(),
		CrawledAt:   e.clock.Now().UTC(),
		Status:      StatusSuccess,
	}
	if e.hasher != nil && len(resp.Body) > 0 {
		if sum, err := e.hasher.Hash(resp.Body); err == nil {
			record.ContentHash = sum
		} else {
			logger.Warn("hash page body", zap.Error(err))
		}
	}

	text, err := e.extractor.ExtractHTML(resp.Body, rawURL)
	switch {
	case errors.Is(err, extract.ErrMissingContainer):
		logger.Warn("article container not found; skipping")
		return ArchiveRecord{}, false
	case err != nil:
		logger.Warn("extraction failed; archiving raw body only", zap.Error(err))
		record.Status = StatusFailed
		record.StatusReason = err.Error()
	default:
		record.ExtractedText = text
	}
	return record, true
}

// archive uploads the raw and text artifacts of record independently and
// annotates it with the outcome.
func (e *Engine) archive(ctx context.Context, record ArchiveRecord, logger *zap.Logger) ArchiveRecord {
	e.stats.totalItems.Add(1)
	if !record.HasRaw() && !record.HasText() {
		return e.fail(record, ErrMissingContent, logger)
	}

	category := Category(e.cfg.SiteHost, record.URL)
	slug := Slug(record.URL)
	files := &UploadedFiles{Category: category, Slug: slug}
	var errs []error

	if record.HasRaw() {
		name, mime := rawArtifact(slug, record.RawMimeType)
		id, err := e.archiver.Upload(ctx, ArchiveItem{
			Content:   record.RawContent,
			Filename:  name,
			Category:  category,
			SourceURL: record.URL,
			MimeType:  mime,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("raw artifact %s/%s: %w", category, name, err))
			metrics.ObserveUpload("raw", "error")
		} else {
			files.RawFileID = id
			e.stats.rawFilesUploaded.Add(1)
			metrics.ObserveUpload("raw", "success")
		}
	}

	if record.HasText() {
		folder := TextCategory(category)
		name := slug + "_texts.txt"
		id, err := e.archiver.Upload(ctx, ArchiveItem{
			Content:   []byte(record.ExtractedText),
			Filename:  name,
			Category:  folder,
			SourceURL: record.URL,
			MimeType:  "text/plain",
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("text artifact %s/%s: %w", folder, name, err))
			metrics.ObserveUpload("text", "error")
		} else {
			files.TextFileID = id
			e.stats.textFilesUploaded.Add(1)
			metrics.ObserveUpload("text", "success")
		}
	}

	record.UploadedFiles = files
	if len(errs) > 0 {
		return e.fail(record, errors.Join(errs...), logger)
	}
	e.stats.successfulUploads.Add(1)
	logger.Info("page archived",
		zap.String("category", category),
		zap.String("slug", slug),
		zap.Bool("raw", files.RawFileID != ""),
		zap.Bool("text", files.TextFileID != ""),
		zap.Int("text_chars", len([]rune(record.ExtractedText))),
	)
	return record
}

func (e *Engine) fail(record ArchiveRecord, err error, logger *zap.Logger) ArchiveRecord {
	record.UploadError = err.Error()
	e.stats.failedUploads.Add(1)
	logger.Error("archive failed", zap.Error(err))
	return record
}

func (e *Engine) emit(ctx context.Context, record ArchiveRecord, logger *zap.Logger) {
	for _, sink := range e.sinks {
		if err := sink.Record(ctx, record); err != nil {
			logger.Warn("record sink failed", zap.Error(err))
		}
	}
}

func (e *Engine) fetch(ctx context.Context, rawURL string) (FetchResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := e.fetchOnce(ctx, rawURL)
		if err == nil {
			return resp, nil
		}
		if e.retry == nil || !e.retry.ShouldRetry(err, attempt+1) {
			return FetchResponse{}, err
		}
		delay := e.retry.Backoff(attempt)
		e.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		e.pauser.Pause(ctx, delay)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return FetchResponse{}, fmt.Errorf("fetch %s: %w", rawURL, ctxErr)
		}
	}
}

func (e *Engine) fetchOnce(ctx context.Context, rawURL string) (FetchResponse, error) {
	release, err := e.limiter.Acquire(ctx, rawURL)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("limit %s: %w", hostOf(rawURL), err)
	}
	defer release()

	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}
	resp, err := e.fetcher.Fetch(ctx, FetchRequest{URL: rawURL, Headers: e.headers()})
	if err != nil {
		return FetchResponse{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return resp, nil
}

func (e *Engine) headers() http.Header {
	h := http.Header{}
	if e.cfg.Referer != "" {
		h.Set("Referer", e.cfg.Referer)
	}
	return h
}

func preview(body []byte) string {
	if len(body) > previewBytes {
		body = body[:previewBytes]
	}
	return string(body)
}

type unlimited struct{}

func (unlimited) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
