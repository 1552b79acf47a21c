// Package pubsub announces archived pages on a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/sitemap-archiver/internal/crawler"
)

// Publisher wraps a Pub/Sub topic.
type Publisher struct {
	topic *pubsub.Topic
}

// New creates a Publisher for the provided topic.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// Record implements crawler.RecordSink by publishing the record as JSON.
func (p *Publisher) Record(ctx context.Context, record crawler.ArchiveRecord) error {
	attrs := map[string]string{
		"run_id": record.RunID,
		"status": string(record.Status),
		"result": "archived",
	}
	if record.UploadError != "" {
		attrs["result"] = "failed"
	}
	if record.UploadedFiles != nil {
		attrs["category"] = record.UploadedFiles.Category
	}
	if _, err := p.Publish(ctx, record, attrs); err != nil {
		return fmt.Errorf("publish record %s: %w", record.URL, err)
	}
	return nil
}

// Publish marshals the payload to JSON and publishes it to the topic.
func (p *Publisher) Publish(ctx context.Context, payload any, attrs map[string]string) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub topic is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close flushes pending messages and stops the topic's background goroutines.
func (p *Publisher) Close() {
	if p == nil || p.topic == nil {
		return
	}
	p.topic.Stop()
}
