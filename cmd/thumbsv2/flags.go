package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/msmarc75/thumbsv2/internal"
	"github.com/msmarc75/thumbsv2/internal/naming"
)

// options are the command-line settings for one invocation. Defaults come
// from the loaded config.
type options struct {
	OutputDir  string
	Naming     naming.Mode
	MaxSizeMB  float64
	TitlesFile string
	Channel    string
	All        bool // lift the per-batch title cap
	JSON       bool
	Titles     []string
}

// parseFlags parses args (without the program name) on top of cfg.
func parseFlags(args []string, cfg *internal.Config, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("thumbsv2", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: thumbsv2 [flags] [title ...]\n\n")
		fmt.Fprintf(stderr, "Generates a 16:9 JPEG thumbnail for each video title. Titles are read\n")
		fmt.Fprintf(stderr, "from the arguments, -titles-file, -channel, or stdin (one per line).\n\n")
		fs.PrintDefaults()
	}

	opts := &options{}
	var namingMode string
	fs.StringVar(&opts.OutputDir, "out", cfg.OutputDir, "Output directory")
	fs.StringVar(&namingMode, "naming", cfg.NamingMode, "File naming: random | sanitized")
	fs.Float64Var(&opts.MaxSizeMB, "max-size-mb", cfg.MaxSizeMB, "Size ceiling per thumbnail, in MB")
	fs.StringVar(&opts.TitlesFile, "titles-file", "", "Read titles from file, one per line")
	fs.StringVar(&opts.Channel, "channel", "", "Fetch titles from a channel or playlist URL with yt-dlp")
	fs.BoolVar(&opts.All, "all", false, fmt.Sprintf("Process every title (default cap: %d)", cfg.MaxTitles))
	fs.BoolVar(&opts.JSON, "json", false, "Print results as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	mode, err := naming.ParseMode(namingMode)
	if err != nil {
		return nil, err
	}
	opts.Naming = mode

	if opts.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("-max-size-mb must be positive, got %g", opts.MaxSizeMB)
	}
	if opts.TitlesFile != "" && opts.Channel != "" {
		return nil, fmt.Errorf("-titles-file and -channel are mutually exclusive")
	}

	opts.Titles = fs.Args()
	if len(opts.Titles) > 0 && (opts.TitlesFile != "" || opts.Channel != "") {
		return nil, fmt.Errorf("title arguments cannot be combined with -titles-file or -channel")
	}
	return opts, nil
}

// readTitles reads one title per line, skipping blank lines. Surrounding
// whitespace is trimmed.
func readTitles(r io.Reader) ([]string, error) {
	var titles []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		titles = append(titles, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read titles: %w", err)
	}
	return titles, nil
}

func readTitlesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open titles file: %w", err)
	}
	defer f.Close()
	return readTitles(f)
}

// capTitles keeps at most limit titles. A limit of 0 keeps all of them.
func capTitles(titles []string, limit int) []string {
	if limit > 0 && len(titles) > limit {
		return titles[:limit]
	}
	return titles
}
