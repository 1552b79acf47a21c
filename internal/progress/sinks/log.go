package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-archiver/internal/crawler"
)

// LogSink writes one debug line per delivered record.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each record in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []crawler.ArchiveRecord) error {
	for _, record := range batch {
		fields := []zap.Field{
			zap.String("url", record.URL),
			zap.String("status", string(record.Status)),
			zap.Bool("raw", record.HasRaw()),
			zap.Bool("text", record.HasText()),
		}
		if record.UploadedFiles != nil {
			fields = append(fields,
				zap.String("category", record.UploadedFiles.Category),
				zap.String("slug", record.UploadedFiles.Slug),
			)
		}
		if record.UploadError != "" {
			fields = append(fields, zap.String("upload_error", record.UploadError))
		}
		s.logger.Debug("archive record", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
