package crawler

import (
	"context"
	"time"

	"github.com/JakeFAU/sitemap-archiver/internal/sitemap"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// SitemapResolver classifies a sitemap document and lists its entries.
type SitemapResolver interface {
	Resolve(body []byte) (sitemap.Node, error)
}

// Extractor renders the article body of an HTML page as plain text.
type Extractor interface {
	ExtractHTML(body []byte, url string) (string, error)
}

// Archiver uploads one artifact and returns its remote id.
type Archiver interface {
	Upload(ctx context.Context, item ArchiveItem) (string, error)
}

// FolderCounter is implemented by archivers that cache remote folders.
type FolderCounter interface {
	FolderNames() []string
}

// RecordSink receives every finished ArchiveRecord.
type RecordSink interface {
	Record(ctx context.Context, record ArchiveRecord) error
}

// Queue provides enqueue/dequeue semantics for crawl tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context) (Task, error)
	Close()
}

// Limiter gates requests per destination domain. The returned release func
// must be called once the request finishes.
type Limiter interface {
	Acquire(ctx context.Context, url string) (func(), error)
}

// RetryPolicy decides whether a failed fetch is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
