package crawler

import "sync/atomic"

// runStats holds the live counters of a run. Every field is updated atomically.
type runStats struct {
	totalItems        atomic.Int64
	successfulUploads atomic.Int64
	failedUploads     atomic.Int64
	rawFilesUploaded  atomic.Int64
	textFilesUploaded atomic.Int64
	sitemapsFetched   atomic.Int64
	pagesDiscovered   atomic.Int64
	pagesSkipped      atomic.Int64
}

func (s *runStats) snapshot() UploadStats {
	return UploadStats{
		TotalItems:        s.totalItems.Load(),
		SuccessfulUploads: s.successfulUploads.Load(),
		FailedUploads:     s.failedUploads.Load(),
		RawFilesUploaded:  s.rawFilesUploaded.Load(),
		TextFilesUploaded: s.textFilesUploaded.Load(),
		SitemapsFetched:   s.sitemapsFetched.Load(),
		PagesDiscovered:   s.pagesDiscovered.Load(),
		PagesSkipped:      s.pagesSkipped.Load(),
	}
}
