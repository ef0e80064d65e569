package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/msmarc75/thumbsv2/internal"
	"github.com/msmarc75/thumbsv2/internal/ai"
	"github.com/msmarc75/thumbsv2/internal/ai/mock"
	"github.com/msmarc75/thumbsv2/internal/ai/openai"
	"github.com/msmarc75/thumbsv2/internal/batch"
	"github.com/msmarc75/thumbsv2/internal/metadata"
	"github.com/msmarc75/thumbsv2/internal/metrics"
	"github.com/msmarc75/thumbsv2/internal/storage"
	"github.com/msmarc75/thumbsv2/internal/thumbnail"
)

// errAuthStopped is returned when the batch ended on a rejected credential.
var errAuthStopped = errors.New("batch stopped: API key was rejected")

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger; stdout is reserved for results
	logger := internal.NewLogger(stderr, cfg.Env, cfg.LogLevel)

	opts, err := parseFlags(args, cfg, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	generator, err := newGenerator(cfg, logger)
	if err != nil {
		return fmt.Errorf("generator initialization failed: %w", err)
	}

	titles, err := gatherTitles(ctx, opts, cfg, stdin, logger)
	if err != nil {
		return err
	}
	if len(titles) == 0 {
		logger.Warn("no titles to process")
		return nil
	}
	if !opts.All {
		if capped := capTitles(titles, cfg.MaxTitles); len(capped) < len(titles) {
			logger.Info("limiting batch", "titles", len(titles), "limit", cfg.MaxTitles)
			titles = capped
		}
	}

	runner := batch.NewRunner(generator, newOpener(cfg, logger), thumbnail.Config{
		QualityFloor: cfg.QualityFloor,
	}, logger)

	outcome, runErr := runner.Process(ctx, titles, batch.Options{
		OutputDir: opts.OutputDir,
		Naming:    opts.Naming,
		MaxSizeMB: opts.MaxSizeMB,
	})

	if err := printOutcome(stdout, outcome, opts.JSON); err != nil {
		return fmt.Errorf("print results: %w", err)
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("failed to write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if outcome.State == batch.StateStoppedAuth {
		return errAuthStopped
	}
	return nil
}

func newGenerator(cfg *internal.Config, logger *slog.Logger) (ai.Generator, error) {
	switch cfg.AIProvider {
	case "mock":
		logger.Info("using mock image generator")
		return mock.New(logger), nil
	default:
		return openai.New(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			Model:          cfg.OpenAIImageModel,
			Size:           cfg.OpenAIImageSize,
			Quality:        cfg.OpenAIImageQuality,
			RequestTimeout: cfg.AIRequestTimeout,
		}, logger)
	}
}

func newOpener(cfg *internal.Config, logger *slog.Logger) storage.Opener {
	if cfg.StorageProvider == storage.ProviderR2 {
		return storage.R2Opener(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	}
	return storage.LocalOpener(logger)
}

// gatherTitles reads titles from the one source selected on the command
// line: arguments, -titles-file, -channel, or stdin when none is given.
func gatherTitles(ctx context.Context, opts *options, cfg *internal.Config, stdin io.Reader, logger *slog.Logger) ([]string, error) {
	switch {
	case len(opts.Titles) > 0:
		return opts.Titles, nil
	case opts.TitlesFile != "":
		return readTitlesFile(opts.TitlesFile)
	case opts.Channel != "":
		videos := metadata.NewFetcher(cfg.YtDlpPath, logger).Fetch(ctx, opts.Channel)
		return metadata.Titles(videos), nil
	default:
		return readTitles(stdin)
	}
}

func printOutcome(w io.Writer, outcome batch.Outcome, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tTHUMBNAIL")
	for _, r := range outcome.Records {
		location := "-"
		if r.HasThumbnail() {
			location = *r.Thumbnail
		}
		fmt.Fprintf(tw, "%s\t%s\n", r.Title, location)
	}
	return tw.Flush()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		stop()
		log.Fatal(err)
	}
}
