package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-archiver/internal/app"
	"github.com/JakeFAU/sitemap-archiver/internal/config"
	"github.com/JakeFAU/sitemap-archiver/internal/crawler"
	"github.com/JakeFAU/sitemap-archiver/internal/logging"
)

// runner is the part of app.App the crawl command drives. It is an interface
// so tests can inject a fake.
type runner interface {
	RunID() string
	Run(ctx context.Context) (crawler.UploadStats, error)
	Close()
}

var newRunner = func(ctx context.Context, opts app.Options) (runner, error) {
	return app.New(ctx, opts)
}

type crawlFlags struct {
	seeds []string
	runID string
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	flags := &crawlFlags{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one archive crawl",
		Long: `Fetches the configured sitemap seeds (or the --seed overrides), archives
every page they list, and prints the final upload statistics as JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, flags)
		},
	}
	cmd.Flags().StringSliceVar(&flags.seeds, "seed", nil, "sitemap URL to crawl instead of site.seeds (repeatable)")
	cmd.Flags().StringVar(&flags.runID, "run-id", "", "UUID to use as the run id")
	return cmd
}

func runCrawl(cmd *cobra.Command, flags *crawlFlags) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Config{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx := cmd.Context()
	a, err := newRunner(ctx, app.Options{
		Config: cfg,
		Logger: logger,
		Seeds:  flags.seeds,
		RunID:  flags.runID,
	})
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer a.Close()

	stats, runErr := a.Run(ctx)

	out := json.NewEncoder(cmd.OutOrStdout())
	out.SetIndent("", "  ")
	if err := out.Encode(map[string]any{"run_id": a.RunID(), "stats": stats}); err != nil {
		logger.Warn("write stats", zap.Error(err))
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Warn("crawl canceled", zap.Error(runErr))
			return nil
		}
		return fmt.Errorf("run crawl: %w", runErr)
	}
	return nil
}
