package sinks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/sitemap-archiver/internal/crawler"
)

// PrometheusSink exports per-record archive metrics: records by category and
// outcome, artifact bytes, and the lag between crawl and delivery.
type PrometheusSink struct {
	records     *prometheus.CounterVec
	bytes       *prometheus.CounterVec
	deliveryLag prometheus.Histogram
	now         func() time.Time
}

// NewPrometheusSink registers the collectors against reg. Collectors already
// registered by an earlier sink are reused.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	records, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archiver_records_total",
		Help: "Archive records delivered, partitioned by category and outcome.",
	}, []string{"category", "outcome"}))
	if err != nil {
		return nil, err
	}
	bytes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archiver_record_bytes_total",
		Help: "Bytes carried by delivered records, partitioned by artifact.",
	}, []string{"artifact"}))
	if err != nil {
		return nil, err
	}
	lag, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "archiver_record_delivery_lag_seconds",
		Help:    "Time between crawling a page and delivering its record to sinks.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
	}))
	if err != nil {
		return nil, err
	}
	return &PrometheusSink{records: records, bytes: bytes, deliveryLag: lag, now: time.Now}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return collector, fmt.Errorf("register record collector: %w", err)
	}
	return collector, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []crawler.ArchiveRecord) error {
	now := s.now()
	for _, record := range batch {
		category := "none"
		if record.UploadedFiles != nil {
			category = record.UploadedFiles.Category
		}
		s.records.WithLabelValues(category, outcome(record)).Inc()
		if record.HasRaw() {
			s.bytes.WithLabelValues("raw").Add(float64(len(record.RawContent)))
		}
		if record.HasText() {
			s.bytes.WithLabelValues("text").Add(float64(len(record.ExtractedText)))
		}
		if !record.CrawledAt.IsZero() {
			if lag := now.Sub(record.CrawledAt); lag >= 0 {
				s.deliveryLag.Observe(lag.Seconds())
			}
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

func outcome(record crawler.ArchiveRecord) string {
	switch {
	case record.UploadError != "":
		return "upload_failed"
	case record.Status == crawler.StatusFailed:
		return "crawl_error"
	default:
		return "archived"
	}
}
