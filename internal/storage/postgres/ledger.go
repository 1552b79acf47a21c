// Package postgres records archive runs and per-page outcomes in Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/sitemap-archiver/internal/crawler"
)

const (
	defaultRecordsTable = "archive_records"
	defaultRunsTable    = "archive_runs"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// LedgerConfig controls the Postgres connection pool used for ledger rows.
type LedgerConfig struct {
	DSN             string
	RecordsTable    string
	RunsTable       string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Ledger writes one row per archived page and one row per run.
type Ledger struct {
	pool         execCloser
	ids          crawler.IDGenerator
	recordsTable string
	runsTable    string
}

// NewLedger creates a Postgres-backed Ledger using the provided config.
func NewLedger(ctx context.Context, cfg LedgerConfig, ids crawler.IDGenerator) (*Ledger, error) {
	if cfg.DSN == "" {
		return nil, errors.New("ledger.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	ledger, err := NewLedgerWithPool(pool, cfg.RecordsTable, cfg.RunsTable, ids)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return ledger, nil
}

// NewLedgerWithPool constructs a ledger from an existing pool (primarily for testing).
func NewLedgerWithPool(pool execCloser, recordsTable, runsTable string, ids crawler.IDGenerator) (*Ledger, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	if recordsTable == "" {
		recordsTable = defaultRecordsTable
	}
	if runsTable == "" {
		runsTable = defaultRunsTable
	}
	for _, table := range []string{recordsTable, runsTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &Ledger{pool: pool, ids: ids, recordsTable: recordsTable, runsTable: runsTable}, nil
}

// Close releases the underlying pool resources.
func (l *Ledger) Close() {
	if l == nil || l.pool == nil {
		return
	}
	l.pool.Close()
}

// EnsureSchema creates the ledger tables when they do not exist.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id      TEXT PRIMARY KEY,
	seeds       JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status      TEXT NOT NULL,
	stats       JSONB,
	error       TEXT
);
CREATE TABLE IF NOT EXISTS %s (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	url           TEXT NOT NULL,
	category      TEXT,
	slug          TEXT,
	status        TEXT NOT NULL,
	status_reason TEXT,
	content_hash  TEXT,
	raw_mime_type TEXT,
	raw_file_id   TEXT,
	text_file_id  TEXT,
	upload_error  TEXT,
	crawled_at    TIMESTAMPTZ NOT NULL
)`, l.runsTable, l.recordsTable)
	if _, err := l.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

// Record implements crawler.RecordSink.
func (l *Ledger) Record(ctx context.Context, record crawler.ArchiveRecord) error {
	if record.URL == "" {
		return errors.New("record url is required")
	}
	id, err := l.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate record id: %w", err)
	}
	var category, slug, rawID, textID string
	if files := record.UploadedFiles; files != nil {
		category, slug, rawID, textID = files.Category, files.Slug, files.RawFileID, files.TextFileID
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	run_id,
	url,
	category,
	slug,
	status,
	status_reason,
	content_hash,
	raw_mime_type,
	raw_file_id,
	text_file_id,
	upload_error,
	crawled_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)`, l.recordsTable)

	args := []any{
		id,
		record.RunID,
		record.URL,
		nullable(category),
		nullable(slug),
		string(record.Status),
		nullable(record.StatusReason),
		nullable(record.ContentHash),
		nullable(record.RawMimeType),
		nullable(rawID),
		nullable(textID),
		nullable(record.UploadError),
		record.CrawledAt,
	}
	if _, err := l.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert archive record: %w", err)
	}
	return nil
}

// StartRun inserts the run row.
func (l *Ledger) StartRun(ctx context.Context, runID string, seeds []string, startedAt time.Time) error {
	seedsJSON, err := json.Marshal(seeds)
	if err != nil {
		return fmt.Errorf("marshal seeds: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (run_id, seeds, started_at, status)
VALUES ($1, $2, $3, $4)
ON CONFLICT (run_id) DO NOTHING`, l.runsTable)
	if _, err := l.pool.Exec(ctx, query, runID, seedsJSON, startedAt, "running"); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final statistics and outcome of a run.
func (l *Ledger) FinishRun(
	ctx context.Context,
	runID string,
	stats crawler.UploadStats,
	finishedAt time.Time,
	runErr error,
) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	status := "completed"
	var errMsg *string
	if runErr != nil {
		status = "failed"
		msg := runErr.Error()
		errMsg = &msg
	}
	query := fmt.Sprintf(`
UPDATE %s
SET finished_at = $1, status = $2, stats = $3, error = $4
WHERE run_id = $5`, l.runsTable)
	tag, err := l.pool.Exec(ctx, query, finishedAt, status, statsJSON, errMsg, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish run: run %q not found", runID)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
