package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitemap-archiver/internal/crawler"
)

type staticIDs struct {
	id string
}

func (s staticIDs) NewID() (string, error) {
	return s.id, nil
}

func strPtr(s string) *string {
	return &s
}

func TestLedgerRecordInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger, err := NewLedgerWithPool(mock, "", "", staticIDs{id: "rec-1"})
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rec := crawler.ArchiveRecord{
		RunID:       "run-1",
		URL:         "https://site.example/benh/a/",
		RawMimeType: "text/html",
		ContentHash: "abc123",
		CrawledAt:   now,
		Status:      crawler.StatusSuccess,
		UploadedFiles: &crawler.UploadedFiles{
			RawFileID:  "raw-1",
			TextFileID: "text-1",
			Category:   "benh",
			Slug:       "a",
		},
	}

	mock.ExpectExec("INSERT INTO archive_records").
		WithArgs(
			"rec-1",
			"run-1",
			rec.URL,
			strPtr("benh"),
			strPtr("a"),
			"success",
			(*string)(nil),
			strPtr("abc123"),
			strPtr("text/html"),
			strPtr("raw-1"),
			strPtr("text-1"),
			(*string)(nil),
			now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, ledger.Record(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRecordWithoutUploads(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger, err := NewLedgerWithPool(mock, "records", "runs", staticIDs{id: "rec-2"})
	require.NoError(t, err)

	rec := crawler.ArchiveRecord{
		RunID:       "run-1",
		URL:         "https://site.example/benh/b/",
		Status:      crawler.StatusSuccess,
		UploadError: crawler.ErrMissingContent.Error(),
	}
	mock.ExpectExec("INSERT INTO records").
		WithArgs(
			"rec-2", "run-1", rec.URL,
			(*string)(nil), (*string)(nil),
			"success",
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
			strPtr(crawler.ErrMissingContent.Error()),
			time.Time{},
		).
		WillReturnError(errors.New("connection refused"))

	err = ledger.Record(context.Background(), rec)
	require.ErrorContains(t, err, "insert archive record")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRunLifecycle(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger, err := NewLedgerWithPool(mock, "", "", staticIDs{id: "x"})
	require.NoError(t, err)

	start := time.Unix(1700000000, 0).UTC()
	end := start.Add(time.Minute)

	mock.ExpectExec("INSERT INTO archive_runs").
		WithArgs("run-1", []byte(`["https://site.example/sitemap.xml"]`), start, "running").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE archive_runs").
		WithArgs(end, "completed", pgxmock.AnyArg(), (*string)(nil), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE archive_runs").
		WithArgs(end, "failed", pgxmock.AnyArg(), strPtr("crawl interrupted"), "run-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ctx := context.Background()
	require.NoError(t, ledger.StartRun(ctx, "run-1", []string{"https://site.example/sitemap.xml"}, start))
	require.NoError(t, ledger.FinishRun(ctx, "run-1", crawler.UploadStats{TotalItems: 2}, end, nil))
	err = ledger.FinishRun(ctx, "run-2", crawler.UploadStats{}, end, errors.New("crawl interrupted"))
	require.ErrorContains(t, err, "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger, err := NewLedgerWithPool(mock, "", "", staticIDs{id: "x"})
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS archive_runs").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, ledger.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewLedgerWithPoolValidates(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewLedgerWithPool(nil, "", "", staticIDs{})
	require.Error(t, err)
	_, err = NewLedgerWithPool(mock, "", "", nil)
	require.Error(t, err)
	_, err = NewLedgerWithPool(mock, "bad-name;", "", staticIDs{})
	require.Error(t, err)
}
