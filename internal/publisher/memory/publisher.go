// Package memory contains an in-memory record sink for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/sitemap-archiver/internal/crawler"
)

// Publisher keeps every finished record for inspection.
type Publisher struct {
	mu      sync.RWMutex
	records []crawler.ArchiveRecord
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Record implements crawler.RecordSink.
func (p *Publisher) Record(_ context.Context, record crawler.ArchiveRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record)
	return nil
}

// Records returns a copy of the recorded records.
func (p *Publisher) Records() []crawler.ArchiveRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]crawler.ArchiveRecord, len(p.records))
	copy(out, p.records)
	return out
}

// Failed returns the records that carry an upload error.
func (p *Publisher) Failed() []crawler.ArchiveRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []crawler.ArchiveRecord
	for _, record := range p.records {
		if record.UploadError != "" {
			out = append(out, record)
		}
	}
	return out
}
