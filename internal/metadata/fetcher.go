// Package metadata lists the videos of a channel or playlist so their
// titles can be fed to a batch. It shells out to yt-dlp in flat-extraction
// mode, which reads metadata only and never downloads media.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// DefaultBinary is the yt-dlp executable looked up on PATH.
const DefaultBinary = "yt-dlp"

const watchURL = "https://www.youtube.com/watch?v="

// Video is one listed video.
type Video struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Runner executes the extractor and returns its stdout.
type Runner func(ctx context.Context, binary string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).Output()
}

// Fetcher lists videos with yt-dlp.
type Fetcher struct {
	binary string
	run    Runner
	logger *slog.Logger
}

// NewFetcher creates a Fetcher using binary, or DefaultBinary when empty.
func NewFetcher(binary string, logger *slog.Logger) *Fetcher {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Fetcher{binary: binary, run: execRunner, logger: logger}
}

// WithRunner replaces the process runner. Used in tests.
func (f *Fetcher) WithRunner(run Runner) *Fetcher {
	f.run = run
	return f
}

// Fetch lists the videos at source. Errors are logged and an empty list is
// returned; callers treat "nothing found" and "lookup failed" alike.
func (f *Fetcher) Fetch(ctx context.Context, source string) []Video {
	out, err := f.run(ctx, f.binary,
		"--flat-playlist",
		"--ignore-errors",
		"--quiet",
		"-J",
		source,
	)
	if err != nil {
		f.logger.Error("failed to fetch channel", "source", source, "error", err)
		return []Video{}
	}

	videos, err := ParseJSON(out)
	if err != nil {
		f.logger.Error("failed to parse channel listing", "source", source, "error", err)
		return []Video{}
	}

	f.logger.Info("fetched channel", "source", source, "videos", len(videos))
	return videos
}

// ParseJSON converts yt-dlp -J output into a list of videos. Entries missing
// a title or url are dropped. A bare video ID in url becomes a watch URL.
// Exported for testing without a real yt-dlp binary.
func ParseJSON(data []byte) ([]Video, error) {
	var raw ytdlpInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yt-dlp JSON: %w", err)
	}

	videos := []Video{}

	if raw.Entries == nil {
		url := raw.WebpageURL
		if url == "" {
			url = raw.URL
		}
		if raw.Title != "" && url != "" {
			videos = append(videos, Video{Title: raw.Title, URL: url})
		}
		return videos, nil
	}

	for _, e := range raw.Entries {
		if e == nil || e.Title == "" || e.URL == "" {
			continue
		}
		url := e.URL
		if !strings.HasPrefix(url, "http") {
			url = watchURL + url
		}
		videos = append(videos, Video{Title: e.Title, URL: url})
	}
	return videos, nil
}

// Titles returns the titles of videos, in order.
func Titles(videos []Video) []string {
	titles := make([]string, len(videos))
	for i, v := range videos {
		titles[i] = v.Title
	}
	return titles
}

// --- yt-dlp JSON wire types ---

type ytdlpInfo struct {
	Title      string        `json:"title"`
	URL        string        `json:"url"`
	WebpageURL string        `json:"webpage_url"`
	Entries    []*ytdlpEntry `json:"entries"`
}

type ytdlpEntry struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
