package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"

	// Decoders for formats the generator may return.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/msmarc75/thumbsv2/internal/metrics"
	"github.com/msmarc75/thumbsv2/internal/storage"
)

// DefaultMaxSizeMB is the size ceiling used when the caller gives none.
const DefaultMaxSizeMB = 2.0

// Mode tells which branch produced the stored file.
type Mode string

const (
	// ModeNormalized means the image was decoded, cropped and compressed.
	ModeNormalized Mode = "normalized"

	// ModeRawFallback means processing failed and the generator's bytes were
	// stored verbatim.
	ModeRawFallback Mode = "raw_fallback"
)

// Result describes one stored thumbnail.
type Result struct {
	Key      string // Storage key written
	Location string // Where the file ended up (filesystem path or object URL)
	Mode     Mode
	Size     int   // Bytes written
	Quality  int   // JPEG quality used; 0 on the fallback branch
	Attempts int   // Encode attempts; 0 on the fallback branch
	Width    int   // Output dimensions; 0 on the fallback branch
	Height   int
	Cause    error // Processing error that forced the fallback, if any
}

// Config tunes a Processor.
type Config struct {
	TargetRatio  float64 // Defaults to TargetRatio
	QualityFloor int     // Defaults to DefaultQualityFloor
}

// Processor turns raw generator output into a stored thumbnail.
type Processor struct {
	store  storage.Storage
	config Config
	logger *slog.Logger
}

// NewProcessor creates a processor that writes into store.
func NewProcessor(store storage.Storage, config Config, logger *slog.Logger) *Processor {
	if config.TargetRatio <= 0 {
		config.TargetRatio = TargetRatio
	}
	if config.QualityFloor <= 0 {
		config.QualityFloor = DefaultQualityFloor
	}
	return &Processor{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Normalize decodes raw, drops alpha, crops to the target ratio and encodes
// under maxBytes. Any error it returns is a processing error.
func (p *Processor) Normalize(raw []byte, maxBytes int64) (Encoded, image.Rectangle, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return Encoded{}, image.Rectangle{}, fmt.Errorf("decode image: %w", err)
	}

	cropped, err := Crop(Flatten(img), p.config.TargetRatio)
	if err != nil {
		return Encoded{}, image.Rectangle{}, fmt.Errorf("crop %dx%d: %w", img.Bounds().Dx(), img.Bounds().Dy(), err)
	}

	enc, err := EncodeBounded(cropped, maxBytes, p.config.QualityFloor)
	if err != nil {
		return Encoded{}, image.Rectangle{}, err
	}
	return enc, cropped.Bounds(), nil
}

// Process normalizes raw and stores the result at key, replacing any
// existing object. When normalization fails the raw bytes are stored
// instead; the returned error is therefore always a storage error.
func (p *Processor) Process(ctx context.Context, raw []byte, key string, maxSizeMB float64) (Result, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	maxBytes := int64(maxSizeMB * 1024 * 1024)

	result := Result{Key: key}
	data := raw

	enc, bounds, err := p.Normalize(raw, maxBytes)
	if err != nil {
		result.Mode = ModeRawFallback
		result.Cause = err
		p.logger.Warn("thumbnail processing failed, storing original bytes",
			"key", key,
			"error", err,
		)
	} else {
		result.Mode = ModeNormalized
		result.Quality = enc.Quality
		result.Attempts = enc.Attempts
		result.Width = bounds.Dx()
		result.Height = bounds.Dy()
		data = enc.Data
		if int64(enc.Size()) >= maxBytes {
			p.logger.Warn("thumbnail still over size ceiling at quality floor",
				"key", key,
				"size_bytes", enc.Size(),
				"max_bytes", maxBytes,
			)
		}
	}
	result.Size = len(data)

	if err := p.store.Put(ctx, key, bytes.NewReader(data), "image/jpeg"); err != nil {
		return result, err
	}

	location, err := p.store.Location(key)
	if err != nil {
		return result, err
	}
	result.Location = location

	metrics.ThumbnailStored(string(result.Mode), result.Quality, result.Attempts, result.Size)

	p.logger.Info("thumbnail saved",
		"key", key,
		"mode", result.Mode,
		"size_mb", fmt.Sprintf("%.2f", float64(result.Size)/(1024*1024)),
		"quality", result.Quality,
	)

	return result, nil
}
