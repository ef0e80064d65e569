package thumbnail

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/msmarc75/thumbsv2/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noisyImage returns an image that compresses poorly.
func noisyImage(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(1))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// =============================================================================
// CropBox
// =============================================================================

func TestCropBox(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want image.Rectangle
	}{
		{"exact 16:9 untouched", 1920, 1080, image.Rect(0, 0, 1920, 1080)},
		{"within tolerance untouched", 1600, 902, image.Rect(0, 0, 1600, 902)},
		{"3:2 landscape trims height", 1536, 1024, image.Rect(0, 80, 1536, 944)},
		{"portrait trims height", 1024, 1536, image.Rect(0, 480, 1024, 1056)},
		{"too wide trims width", 2000, 900, image.Rect(200, 0, 1800, 900)},
		{"square", 1000, 1000, image.Rect(0, 219, 1000, 781)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CropBox(tt.w, tt.h, TargetRatio)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.InDelta(t, TargetRatio, float64(got.Dx())/float64(got.Dy()), RatioTolerance)
		})
	}
}

func TestCropBox_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"one pixel wide", 1, 5000},
		{"one pixel tall", 5000, 0},
		{"zero width", 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CropBox(tt.w, tt.h, TargetRatio)
			assert.ErrorIs(t, err, ErrDegenerateCrop)
		})
	}
}

func TestCrop_RespectsBoundsOrigin(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 10+1536, 10+1024))
	got, err := Crop(src, TargetRatio)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1536, 864), got.Bounds())
}

// =============================================================================
// EncodeBounded
// =============================================================================

func TestMaxAttempts(t *testing.T) {
	assert.Equal(t, 18, MaxAttempts(10))
	assert.Equal(t, 18, MaxAttempts(0))
	assert.Equal(t, 1, MaxAttempts(95))
}

func TestEncodeBounded_AcceptsFirstUnderCeiling(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 160, 90))

	enc, err := EncodeBounded(img, 1024*1024, DefaultQualityFloor)
	require.NoError(t, err)
	assert.Equal(t, StartQuality, enc.Quality)
	assert.Equal(t, 1, enc.Attempts)
	assert.Less(t, enc.Size(), 1024*1024)
}

func TestEncodeBounded_FloorOverridesCeiling(t *testing.T) {
	img := noisyImage(160, 90)

	enc, err := EncodeBounded(img, 1, DefaultQualityFloor)
	require.NoError(t, err)
	assert.Equal(t, DefaultQualityFloor, enc.Quality)
	assert.Equal(t, MaxAttempts(DefaultQualityFloor), enc.Attempts)
	assert.Greater(t, enc.Size(), 1)
}

func TestEncodeBounded_LowersQualityUntilItFits(t *testing.T) {
	img := noisyImage(320, 180)

	first, err := EncodeBounded(img, 1<<30, DefaultQualityFloor)
	require.NoError(t, err)

	enc, err := EncodeBounded(img, int64(first.Size()), DefaultQualityFloor)
	require.NoError(t, err)
	assert.Less(t, enc.Quality, StartQuality)
	assert.Less(t, enc.Size(), first.Size())
	assert.LessOrEqual(t, enc.Attempts, MaxAttempts(DefaultQualityFloor))
}

func TestFlatten_DropsAlphaWithoutCompositing(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 0})
	src.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 128})

	got := Flatten(src)
	assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, got.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, got.NRGBAAt(1, 0))
	assert.True(t, got.Opaque())
}

// =============================================================================
// Processor
// =============================================================================

func newTestProcessor(t *testing.T) (*Processor, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: dir}, discardLogger())
	require.NoError(t, err)
	return NewProcessor(store, Config{}, discardLogger()), dir
}

func TestProcess_Normalized(t *testing.T) {
	p, dir := newTestProcessor(t)

	src := image.NewPaletted(image.Rect(0, 0, 1536, 1024), color.Palette{color.Black, color.White})
	raw := encodePNG(t, src)

	res, err := p.Process(context.Background(), raw, "video.jpg", 2.0)
	require.NoError(t, err)

	assert.Equal(t, ModeNormalized, res.Mode)
	assert.NoError(t, res.Cause)
	assert.Equal(t, filepath.Join(dir, "video.jpg"), res.Location)
	assert.Equal(t, 1536, res.Width)
	assert.Equal(t, 864, res.Height)

	f, err := os.Open(res.Location)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1536, cfg.Width)
	assert.Equal(t, 864, cfg.Height)
}

func TestProcess_AlphaSourceBecomesJPEG(t *testing.T) {
	p, dir := newTestProcessor(t)

	src := image.NewNRGBA(image.Rect(0, 0, 320, 180))
	for i := range src.Pix {
		src.Pix[i] = 0x40
	}
	raw := encodePNG(t, src)

	res, err := p.Process(context.Background(), raw, "alpha.jpg", 2.0)
	require.NoError(t, err)
	assert.Equal(t, ModeNormalized, res.Mode)

	img, err := imaging.Open(filepath.Join(dir, "alpha.jpg"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 320, 180), img.Bounds())
}

func TestProcess_FallbackStoresRawBytes(t *testing.T) {
	p, dir := newTestProcessor(t)
	raw := []byte("definitely not an image")

	res, err := p.Process(context.Background(), raw, "broken.jpg", 2.0)
	require.NoError(t, err)

	assert.Equal(t, ModeRawFallback, res.Mode)
	assert.Error(t, res.Cause)
	assert.Equal(t, filepath.Join(dir, "broken.jpg"), res.Location)

	data, err := os.ReadFile(res.Location)
	require.NoError(t, err)
	assert.Equal(t, raw, data)
}

func TestProcess_DegenerateCropFallsBack(t *testing.T) {
	p, _ := newTestProcessor(t)
	raw := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 1, 400)))

	res, err := p.Process(context.Background(), raw, "thin.jpg", 2.0)
	require.NoError(t, err)
	assert.Equal(t, ModeRawFallback, res.Mode)
	assert.ErrorIs(t, res.Cause, ErrDegenerateCrop)
}

func TestProcess_OverwritesExistingFile(t *testing.T) {
	p, dir := newTestProcessor(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "same.jpg"), []byte("old"), 0644))

	_, err := p.Process(context.Background(), []byte("new"), "same.jpg", 2.0)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "same.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestProcess_StorageErrorPropagates(t *testing.T) {
	p, _ := newTestProcessor(t)

	_, err := p.Process(context.Background(), []byte("x"), "../outside.jpg", 2.0)
	assert.True(t, storage.IsInvalidKey(err))
}
