package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/sitemap-archiver/internal/crawler"
)

// Sink consumes batches of archive records. Implementations must honor ctx
// deadlines; the Hub calls them from a single goroutine.
type Sink interface {
	Consume(ctx context.Context, batch []crawler.ArchiveRecord) error
	Close(ctx context.Context) error
}

// Each adapts a per-record sink into a batch Sink. Close is a no-op; the
// caller keeps ownership of the wrapped sink.
func Each(name string, sink crawler.RecordSink) Sink {
	return &eachSink{name: name, sink: sink}
}

type eachSink struct {
	name string
	sink crawler.RecordSink
}

func (s *eachSink) Consume(ctx context.Context, batch []crawler.ArchiveRecord) error {
	var errs []error
	for _, record := range batch {
		if err := s.sink.Record(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", s.name, record.URL, err))
		}
	}
	return errors.Join(errs...)
}

func (*eachSink) Close(context.Context) error {
	return nil
}
