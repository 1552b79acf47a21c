package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-archiver/internal/crawler"
)

// ErrClosed is returned by Record once Close has been called.
var ErrClosed = errors.New("progress hub closed")

// Config controls buffering and batching for the Hub.
//   - BufferSize: size of the internal channel (default 1024).
//   - MaxBatch: flush once this many records queue (default 100).
//   - MaxBatchWait: flush after this duration even if the batch is small (default 500ms).
//   - SinkTimeout: per-sink timeout while flushing (default 30s).
//   - Logger: optional structured logger used for warnings.
type Config struct {
	BufferSize   int
	MaxBatch     int
	MaxBatchWait time.Duration
	SinkTimeout  time.Duration
	Logger       *zap.Logger
}

const (
	defaultBufferSize   = 1024
	defaultMaxBatch     = 100
	defaultMaxBatchWait = 500 * time.Millisecond
	defaultSinkTimeout  = 30 * time.Second
	dropLogInterval     = 5 * time.Second
)

// Hub buffers ArchiveRecords and fans them out to registered sinks in
// batches. It satisfies crawler.RecordSink and is safe for concurrent use.
type Hub struct {
	cfg         Config
	sinks       []Sink
	records     chan crawler.ArchiveRecord
	stopCh      chan struct{}
	doneCh      chan struct{}
	logger      *zap.Logger
	dropLimiter rateLimiter
	dropped     atomic.Int64
	delivered   atomic.Int64
	closed      atomic.Bool

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub starts the background batching goroutine for sinks.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaultMaxBatch
	}
	if cfg.MaxBatchWait <= 0 {
		cfg.MaxBatchWait = defaultMaxBatchWait
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:         cfg,
		sinks:       append([]Sink(nil), sinks...),
		records:     make(chan crawler.ArchiveRecord, cfg.BufferSize),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		logger:      logger,
		dropLimiter: rateLimiter{interval: dropLogInterval},
	}
	go h.run()
	return h
}

// Record enqueues a record for batching. It blocks only while the buffer is
// full; a record still waiting when ctx ends is dropped.
func (h *Hub) Record(ctx context.Context, record crawler.ArchiveRecord) error {
	if h == nil {
		return nil
	}
	if h.closed.Load() {
		return ErrClosed
	}
	select {
	case h.records <- record:
		return nil
	default:
	}
	select {
	case h.records <- record:
		return nil
	case <-h.stopCh:
		return ErrClosed
	case <-ctx.Done():
		h.dropped.Add(1)
		if h.dropLimiter.Allow(time.Now()) {
			h.logger.Warn("archive records dropped due to backpressure", zap.Int64("dropped", h.dropped.Load()))
		}
		return fmt.Errorf("enqueue record: %w", ctx.Err())
	}
}

// Dropped reports how many records never reached the buffer.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Delivered reports how many records have been handed to the sinks.
func (h *Hub) Delivered() int64 {
	return h.delivered.Load()
}

// Close drains buffered records, flushes and closes the sinks, and waits for
// the background goroutine. Repeated calls wait on the same shutdown.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closeCtx = ctx
		h.closed.Store(true)
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	batch := make([]crawler.ArchiveRecord, 0, h.cfg.MaxBatch)
	timer := time.NewTimer(h.cfg.MaxBatchWait)
	timer.Stop()
	timerActive := false
	for {
		select {
		case record := <-h.records:
			batch = append(batch, record)
			if len(batch) >= h.cfg.MaxBatch {
				batch = h.flush(batch)
				h.stopTimer(timer, &timerActive)
			} else {
				h.resetTimer(timer, &timerActive)
			}
		case <-timer.C:
			timerActive = false
			batch = h.flush(batch)
		case <-h.stopCh:
			h.stopTimer(timer, &timerActive)
			h.drain(batch)
			return
		}
	}
}

func (h *Hub) drain(batch []crawler.ArchiveRecord) {
	for {
		select {
		case record := <-h.records:
			batch = append(batch, record)
			if len(batch) >= h.cfg.MaxBatch {
				batch = h.flush(batch)
			}
		default:
			h.flush(batch)
			h.closeSinks()
			return
		}
	}
}

func (h *Hub) resetTimer(timer *time.Timer, timerActive *bool) {
	if *timerActive {
		return
	}
	timer.Reset(h.cfg.MaxBatchWait)
	*timerActive = true
}

func (h *Hub) stopTimer(timer *time.Timer, timerActive *bool) {
	if !*timerActive {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	*timerActive = false
}

// flush hands batch to every sink and returns it emptied for reuse.
func (h *Hub) flush(batch []crawler.ArchiveRecord) []crawler.ArchiveRecord {
	if len(batch) == 0 {
		return batch
	}
	copyBatch := append([]crawler.ArchiveRecord(nil), batch...)
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, copyBatch); err != nil {
			h.logger.Warn("record sink consume failed", zap.Int("batch", len(copyBatch)), zap.Error(err))
		}
		cancel()
	}
	h.delivered.Add(int64(len(copyBatch)))
	return batch[:0]
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("record sink close failed", zap.Error(err))
		}
	}
}

type rateLimiter struct {
	interval time.Duration
	last     atomic.Int64
}

func (r *rateLimiter) Allow(now time.Time) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := r.last.Load()
	if nano-last < r.interval.Nanoseconds() {
		return false
	}
	return r.last.CompareAndSwap(last, nano)
}
