package crawler

import (
	"net/http"
	"time"
)

// RecordStatus reports whether a page was fetched and extracted cleanly.
type RecordStatus string

// Record status values.
const (
	StatusSuccess RecordStatus = "success"
	StatusFailed  RecordStatus = "error"
)

// TaskKind distinguishes the units of work flowing through the queue.
type TaskKind string

// Task kinds.
const (
	TaskSitemap TaskKind = "sitemap"
	TaskPage    TaskKind = "page"
)

// Task is a single unit of work: fetch a sitemap document or archive a page.
type Task struct {
	Kind   TaskKind
	URL    string
	Parent string
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the Content-Type response header.
func (r FetchResponse) ContentType() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Content-Type")
}

// ArchiveRecord is produced once per page URL and consumed once by the archiver.
// A nil RawContent or empty ExtractedText means that artifact is absent.
type ArchiveRecord struct {
	RunID         string         `json:"run_id"`
	URL           string         `json:"url"`
	RawContent    []byte         `json:"-"`
	RawMimeType   string         `json:"raw_mime_type,omitempty"`
	ExtractedText string         `json:"-"`
	ContentHash   string         `json:"content_hash,omitempty"`
	CrawledAt     time.Time      `json:"crawled_at"`
	Status        RecordStatus   `json:"status"`
	StatusReason  string         `json:"status_reason,omitempty"`
	UploadedFiles *UploadedFiles `json:"uploaded_files,omitempty"`
	UploadError   string         `json:"upload_error,omitempty"`
}

// HasRaw reports whether the record carries a raw page body.
func (r ArchiveRecord) HasRaw() bool {
	return len(r.RawContent) > 0
}

// HasText reports whether the record carries extracted text.
func (r ArchiveRecord) HasText() bool {
	return r.ExtractedText != ""
}

// UploadedFiles annotates a record with the remote ids of its artifacts.
type UploadedFiles struct {
	RawFileID  string `json:"raw_file_id,omitempty"`
	TextFileID string `json:"text_file_id,omitempty"`
	Category   string `json:"category"`
	Slug       string `json:"slug"`
}

// ArchiveItem is one artifact handed to the Archiver.
type ArchiveItem struct {
	Content   []byte
	Filename  string
	Category  string
	SourceURL string
	MimeType  string
}

// UploadStats is a read-only snapshot of run counters.
type UploadStats struct {
	TotalItems        int64 `json:"total_items"`
	SuccessfulUploads int64 `json:"successful_uploads"`
	FailedUploads     int64 `json:"failed_uploads"`
	RawFilesUploaded  int64 `json:"raw_files_uploaded"`
	TextFilesUploaded int64 `json:"text_files_uploaded"`
	SitemapsFetched   int64 `json:"sitemaps_fetched"`
	PagesDiscovered   int64 `json:"pages_discovered"`
	PagesSkipped      int64 `json:"pages_skipped"`
	FoldersCached     int64 `json:"folders_cached"`
}
