package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitemap-archiver/internal/app"
	"github.com/JakeFAU/sitemap-archiver/internal/crawler"
)

type fakeRunner struct {
	stats  crawler.UploadStats
	err    error
	closed bool
}

func (f *fakeRunner) RunID() string { return "run-1" }

func (f *fakeRunner) Run(context.Context) (crawler.UploadStats, error) { return f.stats, f.err }

func (f *fakeRunner) Close() { f.closed = true }

func withFakeRunner(t *testing.T, fake *fakeRunner) *app.Options {
	t.Helper()
	captured := &app.Options{}
	previous := newRunner
	newRunner = func(_ context.Context, opts app.Options) (runner, error) {
		*captured = opts
		return fake, nil
	}
	t.Cleanup(func() {
		newRunner = previous
		cfgFile = ""
	})
	return captured
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archiver.yaml")
	body := "archive:\n  backend: memory\nlogging:\n  development: false\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestCrawlCommandPrintsStats(t *testing.T) {
	fake := &fakeRunner{stats: crawler.UploadStats{TotalItems: 2, SuccessfulUploads: 2}}
	opts := withFakeRunner(t, fake)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", writeConfig(t), "crawl", "--seed", "https://site.example/a.xml", "--seed", "https://site.example/b.xml"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	require.True(t, fake.closed)
	require.Equal(t, []string{"https://site.example/a.xml", "https://site.example/b.xml"}, opts.Seeds)
	require.Equal(t, "memory", opts.Config.Archive.Backend)

	var printed struct {
		RunID string              `json:"run_id"`
		Stats crawler.UploadStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	require.Equal(t, "run-1", printed.RunID)
	require.Equal(t, int64(2), printed.Stats.SuccessfulUploads)
}

func TestCrawlCommandPropagatesRunError(t *testing.T) {
	withFakeRunner(t, &fakeRunner{err: errors.New("boom")})

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", writeConfig(t), "crawl"})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "boom")
}

func TestCrawlCommandToleratesCancel(t *testing.T) {
	withFakeRunner(t, &fakeRunner{err: context.Canceled})

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", writeConfig(t), "crawl"})
	require.NoError(t, root.ExecuteContext(context.Background()))
}

func TestCrawlCommandRejectsMissingConfig(t *testing.T) {
	withFakeRunner(t, &fakeRunner{})

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "crawl"})
	require.Error(t, root.ExecuteContext(context.Background()))
}
