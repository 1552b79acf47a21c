package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/sitemap-archiver/internal/crawler"
)

// ExampleHub_Record demonstrates queueing a record and flushing via Close.
func ExampleHub_Record() {
	var total int
	hub := NewHub(Config{
		BufferSize:   4,
		MaxBatch:     1,
		MaxBatchWait: time.Second,
	}, sinkFunc(func(_ context.Context, batch []crawler.ArchiveRecord) error {
		total += len(batch)
		return nil
	}))

	if err := hub.Record(context.Background(), crawler.ArchiveRecord{
		URL:    "https://tamanhhospital.vn/benh/cum/",
		Status: crawler.StatusSuccess,
	}); err != nil {
		panic(err)
	}
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("records forwarded: %d\n", total)
	// Output:
	// records forwarded: 1
}

type sinkFunc func(context.Context, []crawler.ArchiveRecord) error

func (f sinkFunc) Consume(ctx context.Context, batch []crawler.ArchiveRecord) error {
	return f(ctx, batch)
}

func (sinkFunc) Close(context.Context) error {
	return nil
}
