package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/openshelf/catkey/internal/bestseller"
	"github.com/openshelf/catkey/internal/browser"
	"github.com/openshelf/catkey/internal/config"
	"github.com/openshelf/catkey/internal/database"
	"github.com/openshelf/catkey/internal/log"
	"github.com/openshelf/catkey/internal/model"
	"github.com/openshelf/catkey/internal/notify"
	"github.com/openshelf/catkey/internal/pipeline"
	"github.com/openshelf/catkey/internal/report"
	"github.com/openshelf/catkey/internal/resolver"
	"github.com/openshelf/catkey/internal/retry"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch bestseller lists and resolve them against the catalog",
		Long: `Run fetches every configured bestseller list, searches each ISBN in the
library catalog through a headless browser, and writes the results:

- a text report of found record keys, grouped by list
- a CSV of books that could not be matched
- optionally a Markdown summary

Unless --no-email is set, the reports are emailed to the configured
recipients when the run completes.

Configuration layers, later wins: built-in defaults, config file
(.catkey.yaml), environment variables, command-line flags.

Examples:
  # Run with configuration from environment / config file
  catkey run

  # Resolve one list without sending email
  catkey run --lists hardcover-fiction --no-email

  # Answer repeat ISBNs from past runs instead of searching again
  catkey run --cache`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	cmd.Flags().String("api-key", "", "Bestseller list API key")
	cmd.Flags().StringSlice("lists", nil, "Bestseller list names to process (comma-separated)")
	cmd.Flags().String("catalog-url", "", "Catalog base URL")
	cmd.Flags().StringP("output", "o", "", "Directory for report artifacts")
	cmd.Flags().StringP("config", "c", "", "Configuration file path (default: .catkey.yaml in current or home directory)")

	cmd.Flags().Int("max-retries", config.DefaultMaxRetries, "Attempts per list fetch")
	cmd.Flags().Duration("request-timeout", config.DefaultRequestTimeout, "Timeout per list fetch request")
	cmd.Flags().Duration("page-timeout", config.DefaultPageTimeout, "Timeout per catalog page load")
	cmd.Flags().Duration("delay", config.DefaultResolveDelay, "Pause between catalog searches")

	cmd.Flags().Bool("no-email", false, "Skip the email notification")
	cmd.Flags().Bool("markdown", false, "Also write a Markdown summary artifact")
	cmd.Flags().Bool("cache", false, "Answer previously resolved ISBNs from the run history database")
	cmd.Flags().Bool("no-headless", false, "Run the browser with a visible window (debugging)")
	cmd.Flags().String("browser-bin", "", "Chrome/Chromium binary to launch (default: auto-detect)")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, getVerboseFlag(cmd))
	slog.SetDefault(logger)

	// Handle interrupt signals for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return executeRun(ctx, cmd, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig layers defaults, config file, environment, and flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.New()

	configPathFlag, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = configPathFlag

	// An explicitly named config file must exist; a missing default
	// file is not an error.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		cf, err := config.LoadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(cf)
	} else if configPathFlag != "" {
		return nil, fmt.Errorf("configuration file not found: %s", configPathFlag)
	}

	cfg.ApplyEnv(nil)

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides config values with flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("api-key") {
		if cfg.APIKey, err = flags.GetString("api-key"); err != nil {
			return err
		}
	}
	if flags.Changed("lists") {
		if cfg.Lists, err = flags.GetStringSlice("lists"); err != nil {
			return err
		}
	}
	if flags.Changed("catalog-url") {
		raw, err := flags.GetString("catalog-url")
		if err != nil {
			return err
		}
		cfg.CatalogBaseURL = strings.TrimRight(raw, "/")
	}
	if flags.Changed("output") {
		if cfg.OutputDir, err = flags.GetString("output"); err != nil {
			return err
		}
	}
	if flags.Changed("max-retries") {
		if cfg.MaxRetries, err = flags.GetInt("max-retries"); err != nil {
			return err
		}
	}
	if flags.Changed("request-timeout") {
		if cfg.RequestTimeout, err = flags.GetDuration("request-timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("page-timeout") {
		if cfg.PageTimeout, err = flags.GetDuration("page-timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("delay") {
		if cfg.ResolveDelay, err = flags.GetDuration("delay"); err != nil {
			return err
		}
	}
	if flags.Changed("no-email") {
		if cfg.NoEmail, err = flags.GetBool("no-email"); err != nil {
			return err
		}
	}
	if flags.Changed("markdown") {
		if cfg.MarkdownSummary, err = flags.GetBool("markdown"); err != nil {
			return err
		}
	}
	if flags.Changed("cache") {
		if cfg.UseCache, err = flags.GetBool("cache"); err != nil {
			return err
		}
	}
	if flags.Changed("no-headless") {
		noHeadless, err := flags.GetBool("no-headless")
		if err != nil {
			return err
		}
		cfg.Headless = !noHeadless
	}
	if flags.Changed("browser-bin") {
		if cfg.BrowserBin, err = flags.GetString("browser-bin"); err != nil {
			return err
		}
	}

	return nil
}

// runComponents carries the wired dependencies of one run's pipeline.
// Fields are the step interfaces rather than concrete types so step
// assembly can be exercised without a browser or an SMTP endpoint.
type runComponents struct {
	source   pipeline.CandidateSource
	resolver pipeline.KeyResolver
	cache    pipeline.KeyCache
	exporter pipeline.ArtifactExporter
	notifier pipeline.Notifier
	store    pipeline.RunStore
}

// assembleSteps builds the step sequence for cfg. The notify step is
// omitted entirely when email is off, so a suppressed notifier can
// never be invoked; the persist step is omitted when no store is
// available.
func assembleSteps(cfg *config.Config, c runComponents, logger *slog.Logger) []pipeline.Step {
	resolveOpts := []pipeline.ResolveStepOption{
		pipeline.WithResolveDelay(cfg.ResolveDelay),
		pipeline.WithResolveLogger(logger),
	}
	if cfg.UseCache && c.cache != nil {
		resolveOpts = append(resolveOpts, pipeline.WithKeyCache(c.cache))
	}

	steps := []pipeline.Step{
		pipeline.NewResolveStep(c.source, c.resolver, resolveOpts...),
		pipeline.NewExportStep(c.exporter),
	}
	if !cfg.NoEmail && c.notifier != nil {
		steps = append(steps, pipeline.NewNotifyStep(c.notifier, pipeline.WithNotifyLogger(logger)))
	}
	if c.store != nil {
		steps = append(steps, pipeline.NewPersistStep(c.store))
	}
	return steps
}

// exitError decides whether a pipeline error ends the process non-zero.
// Only cancellation does: export, notify, and persist failures are
// recovered (the run's artifacts and summary stand), and the resolve
// loop itself only errors on cancellation.
func exitError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// executeRun wires the components and drives the pipeline.
func executeRun(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	run := model.NewRun(uuid.NewString(), cfg.Lists)

	logger.Info("starting run",
		"run", run.ID,
		"lists", cfg.Lists,
		"catalog", cfg.CatalogBaseURL,
		"email", !cfg.NoEmail,
	)

	var db *database.HistoryDB
	if cfg.DBDir != "" {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			// Persistence is best-effort; the run can still produce
			// artifacts and email them.
			logger.Error("failed to open history database", "dir", cfg.DBDir, "error", err)
		} else {
			defer func() { _ = db.Close() }()
			logger.Info("history database opened", "dir", cfg.DBDir)
		}
	}

	source := bestseller.New(cfg.APIKey, cfg.RequestTimeout,
		bestseller.WithRetryPolicy(retry.Policy{
			MaxAttempts: cfg.MaxRetries,
			Backoff:     retry.Exponential(time.Second),
		}),
		bestseller.WithLogger(logger),
	)

	manager := browser.NewManager(cfg.PageTimeout,
		browser.WithHeadless(cfg.Headless),
		browser.WithBrowserBin(cfg.BrowserBin),
		browser.WithLogger(logger),
	)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer manager.Shutdown()

	comps := runComponents{
		source: source,
		resolver: resolver.New(manager.Session(), cfg.CatalogBaseURL, cfg.RecordMarker, cfg.PageTimeout,
			resolver.WithLogger(logger),
		),
		exporter: report.NewExporter(cfg.OutputDir,
			report.WithMarkdownSummary(cfg.MarkdownSummary),
			report.WithExportLogger(logger),
		),
	}
	if db != nil {
		comps.cache = db
		comps.store = db
	}
	if !cfg.NoEmail {
		comps.notifier = notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort,
			cfg.Sender, cfg.SenderPassword, cfg.Recipients,
			notify.WithMailLogger(logger),
		)
	}

	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(true),
	)
	p.AddSteps(assembleSteps(cfg, comps, logger)...)

	runErr := p.Execute(ctx, run)

	// Print whatever the run accumulated, even after a partial failure.
	fmt.Fprint(cmd.OutOrStdout(), report.Summary(run))
	logger.Info("run finished",
		"run", run.ID,
		"duration", report.Duration(run).Round(time.Second),
		"found", run.Results.TotalResolved(),
		"notFound", run.Results.TotalUnresolved(),
	)

	if runErr != nil {
		if err := exitError(runErr); err != nil {
			return err
		}
		logger.Error("run completed with recovered failures", "error", runErr)
	}
	return nil
}
