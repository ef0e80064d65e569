package mock

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"time"

	"github.com/msmarc75/thumbsv2/internal/ai"
)

const (
	defaultWidth  = 1536
	defaultHeight = 1024
)

// Provider is a mock generator for testing and development
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	Response []byte           // Returned for every title unless an error applies
	Errors   map[string]error // Per-title errors, keyed by title

	// Call tracking for testing
	Calls  int
	Titles []string
}

// New creates a new mock generator
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
		Errors: make(map[string]error),
	}
}

// Generate returns a canned image, or the error configured for the title.
func (p *Provider) Generate(ctx context.Context, params ai.GenerateParams) (*ai.GeneratedImage, error) {
	p.Calls++
	p.Titles = append(p.Titles, params.Title)

	if err, ok := p.Errors[params.Title]; ok && err != nil {
		return nil, err
	}

	data := p.Response
	if data == nil {
		var err error
		data, err = SolidPNG(defaultWidth, defaultHeight, color.NRGBA{R: 240, G: 90, B: 30, A: 255})
		if err != nil {
			return nil, ai.Transient(err)
		}
	}

	p.logger.Debug("mock image generated", "title", params.Title, "size_bytes", len(data))

	return &ai.GeneratedImage{
		Data:     data,
		Model:    "mock-image-v1",
		Source:   "b64_json",
		Duration: 10 * time.Millisecond,
	}, nil
}

// SolidPNG encodes a w×h PNG filled with c.
func SolidPNG(w, h int, c color.Color) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
