// Package batch runs thumbnail generation over an ordered list of titles.
//
// Titles are processed strictly one after another. Each generator failure is
// classified: a transient failure records a result without a thumbnail and
// moves on, an authentication failure stops the batch on the spot. A failed
// write is treated like a transient failure unless the output as a whole is
// unusable (it cannot be opened, or access to it is denied); then the batch
// stops and the error is returned to the caller.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/msmarc75/thumbsv2/internal/ai"
	"github.com/msmarc75/thumbsv2/internal/metrics"
	"github.com/msmarc75/thumbsv2/internal/naming"
	"github.com/msmarc75/thumbsv2/internal/storage"
	"github.com/msmarc75/thumbsv2/internal/thumbnail"
)

// State is the runner's state for a batch.
type State string

const (
	StateRunning         State = "running"
	StateStoppedOK       State = "stopped_ok"       // every title attempted
	StateStoppedAuth     State = "stopped_auth"     // generator rejected the credential
	StateStoppedIO       State = "stopped_io"       // output unusable
	StateStoppedCanceled State = "stopped_canceled" // context canceled
)

// Record is the result for one title. A nil Thumbnail means no thumbnail was
// produced for the title.
type Record struct {
	Title     string  `json:"title"`
	Thumbnail *string `json:"thumbnail"`
}

// HasThumbnail reports whether a file was produced for the title.
func (r Record) HasThumbnail() bool {
	return r.Thumbnail != nil
}

// Outcome is the ordered list of records of a batch and the state it ended
// in. It holds fewer records than titles only when the batch stopped early.
type Outcome struct {
	Records []Record `json:"results"`
	State   State    `json:"state"`
}

// Generated returns how many records carry a thumbnail.
func (o Outcome) Generated() int {
	n := 0
	for _, r := range o.Records {
		if r.HasThumbnail() {
			n++
		}
	}
	return n
}

// Options are the per-batch parameters.
type Options struct {
	OutputDir string
	Naming    naming.Mode
	MaxSizeMB float64 // Defaults to thumbnail.DefaultMaxSizeMB
}

// Runner drives generation and processing for a batch of titles.
type Runner struct {
	generator ai.Generator
	open      storage.Opener
	thumbs    thumbnail.Config
	logger    *slog.Logger
}

// NewRunner creates a runner. open is called once per batch, before the first
// title, to obtain the output storage.
func NewRunner(generator ai.Generator, open storage.Opener, thumbs thumbnail.Config, logger *slog.Logger) *Runner {
	return &Runner{
		generator: generator,
		open:      open,
		thumbs:    thumbs,
		logger:    logger,
	}
}

// Process generates a thumbnail for every title, in order. The returned
// error is non-nil only when the output could not be opened, access to it
// was denied, or ctx was canceled; the outcome then holds the records
// collected so far.
// An authentication failure is not an error: it ends the batch with
// StateStoppedAuth.
func (r *Runner) Process(ctx context.Context, titles []string, opts Options) (Outcome, error) {
	start := time.Now()
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = thumbnail.DefaultMaxSizeMB
	}
	if opts.Naming == "" {
		opts.Naming = naming.ModeRandom
	}

	outcome := Outcome{
		Records: make([]Record, 0, len(titles)),
		State:   StateRunning,
	}
	defer func() {
		metrics.BatchFinished(string(outcome.State), time.Since(start))
	}()

	store, err := r.open(opts.OutputDir)
	if err != nil {
		outcome.State = StateStoppedIO
		return outcome, fmt.Errorf("open output %q: %w", opts.OutputDir, err)
	}
	processor := thumbnail.NewProcessor(store, r.thumbs, r.logger)

	r.logger.Info("processing batch",
		"titles", len(titles),
		"output_dir", opts.OutputDir,
		"naming", opts.Naming,
		"max_size_mb", opts.MaxSizeMB,
	)

	for i, title := range titles {
		if err := ctx.Err(); err != nil {
			outcome.State = StateStoppedCanceled
			return outcome, err
		}

		log := r.logger.With("title", title, "index", i+1, "total", len(titles))
		log.Info("generating thumbnail")

		img, err := r.generator.Generate(ctx, ai.GenerateParams{
			Title:  title,
			Prompt: ai.BuildThumbnailPrompt(title),
		})
		if err != nil {
			if ctx.Err() != nil {
				outcome.State = StateStoppedCanceled
				return outcome, ctx.Err()
			}

			kind := ai.Classify(err)
			metrics.GenerationFailed(kind.String())

			if kind == ai.FailureAuth {
				log.Error("authentication failed, stopping batch", "error", err)
				outcome.State = StateStoppedAuth
				r.logSummary(outcome, len(titles), start)
				return outcome, nil
			}

			log.Warn("thumbnail generation failed, skipping title", "error", err)
			metrics.TitleDone("skipped")
			outcome.Records = append(outcome.Records, Record{Title: title})
			continue
		}
		metrics.GenerationSucceeded(img.Duration)

		key := naming.OutputKey(title, opts.Naming)
		if opts.Naming == naming.ModeSanitized {
			if exists, err := store.Exists(ctx, key); err == nil && exists {
				log.Info("overwriting existing thumbnail", "key", key)
			}
		}

		res, err := processor.Process(ctx, img.Data, key, opts.MaxSizeMB)
		if err != nil {
			if ctx.Err() != nil {
				outcome.State = StateStoppedCanceled
				return outcome, ctx.Err()
			}
			if storage.IsAccessDenied(err) {
				log.Error("output is not writable, stopping batch", "key", key, "error", err)
				outcome.State = StateStoppedIO
				return outcome, fmt.Errorf("write thumbnail for %q: %w", title, err)
			}

			log.Warn("failed to write thumbnail, skipping title",
				"key", key,
				"invalid_key", storage.IsInvalidKey(err),
				"error", err,
			)
			metrics.TitleDone("write_failed")
			outcome.Records = append(outcome.Records, Record{Title: title})
			continue
		}

		metrics.TitleDone("generated")
		location := res.Location
		outcome.Records = append(outcome.Records, Record{Title: title, Thumbnail: &location})
	}

	outcome.State = StateStoppedOK
	r.logSummary(outcome, len(titles), start)
	return outcome, nil
}

func (r *Runner) logSummary(outcome Outcome, total int, start time.Time) {
	r.logger.Info("batch finished",
		"state", outcome.State,
		"titles", total,
		"attempted", len(outcome.Records),
		"generated", outcome.Generated(),
		"skipped", len(outcome.Records)-outcome.Generated(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
}
