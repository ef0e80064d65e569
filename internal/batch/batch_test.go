package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/msmarc75/thumbsv2/internal/ai"
	"github.com/msmarc75/thumbsv2/internal/ai/mock"
	"github.com/msmarc75/thumbsv2/internal/naming"
	"github.com/msmarc75/thumbsv2/internal/storage"
	"github.com/msmarc75/thumbsv2/internal/thumbnail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(gen ai.Generator) *Runner {
	logger := discardLogger()
	return NewRunner(gen, storage.LocalOpener(logger), thumbnail.Config{}, logger)
}

func TestProcess_AllSucceed(t *testing.T) {
	gen := mock.New(discardLogger())
	dir := filepath.Join(t.TempDir(), "thumbs")

	out, err := newTestRunner(gen).Process(context.Background(), []string{"A", "B"}, Options{
		OutputDir: dir,
		Naming:    naming.ModeSanitized,
	})
	require.NoError(t, err)

	assert.Equal(t, StateStoppedOK, out.State)
	require.Len(t, out.Records, 2)
	assert.Equal(t, "A", out.Records[0].Title)
	assert.Equal(t, filepath.Join(dir, "A.jpg"), *out.Records[0].Thumbnail)
	assert.Equal(t, filepath.Join(dir, "B.jpg"), *out.Records[1].Thumbnail)
	assert.FileExists(t, filepath.Join(dir, "A.jpg"))
	assert.Equal(t, 2, out.Generated())
}

func TestProcess_TransientFailureIsSkipped(t *testing.T) {
	gen := mock.New(discardLogger())
	gen.Errors["B"] = ai.Transient(ai.EAIRateLimit)

	out, err := newTestRunner(gen).Process(context.Background(), []string{"A", "B", "C"}, Options{
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)

	assert.Equal(t, StateStoppedOK, out.State)
	require.Len(t, out.Records, 3)
	assert.True(t, out.Records[0].HasThumbnail())
	assert.Equal(t, "B", out.Records[1].Title)
	assert.Nil(t, out.Records[1].Thumbnail)
	assert.True(t, out.Records[2].HasThumbnail())
	assert.Equal(t, 3, gen.Calls)
}

func TestProcess_UnclassifiedErrorIsSkipped(t *testing.T) {
	gen := mock.New(discardLogger())
	gen.Errors["A"] = errors.New("socket closed")

	out, err := newTestRunner(gen).Process(context.Background(), []string{"A", "B"}, Options{
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)
	require.Len(t, out.Records, 2)
	assert.False(t, out.Records[0].HasThumbnail())
	assert.True(t, out.Records[1].HasThumbnail())
}

func TestProcess_AuthFailureStopsImmediately(t *testing.T) {
	gen := mock.New(discardLogger())
	gen.Errors["A"] = ai.Auth(ai.EAIUnauthorized)

	out, err := newTestRunner(gen).Process(context.Background(), []string{"A", "B"}, Options{
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)

	assert.Equal(t, StateStoppedAuth, out.State)
	assert.Empty(t, out.Records)
	assert.Equal(t, 1, gen.Calls)
}

func TestProcess_AuthFailureKeepsEarlierRecords(t *testing.T) {
	gen := mock.New(discardLogger())
	gen.Errors["B"] = ai.Transient(ai.EAIUnavailable)
	gen.Errors["C"] = ai.Auth(ai.EAIUnauthorized)

	out, err := newTestRunner(gen).Process(context.Background(), []string{"A", "B", "C", "D"}, Options{
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)

	assert.Equal(t, StateStoppedAuth, out.State)
	require.Len(t, out.Records, 2)
	assert.Equal(t, "A", out.Records[0].Title)
	assert.Equal(t, "B", out.Records[1].Title)
	assert.Nil(t, out.Records[1].Thumbnail)
	assert.Equal(t, []string{"A", "B", "C"}, gen.Titles)
}

func TestProcess_NamingIdempotence(t *testing.T) {
	dir := t.TempDir()
	runner := newTestRunner(mock.New(discardLogger()))
	ctx := context.Background()

	first, err := runner.Process(ctx, []string{"Same: Title"}, Options{OutputDir: dir, Naming: naming.ModeSanitized})
	require.NoError(t, err)
	second, err := runner.Process(ctx, []string{"Same: Title"}, Options{OutputDir: dir, Naming: naming.ModeSanitized})
	require.NoError(t, err)
	assert.Equal(t, *first.Records[0].Thumbnail, *second.Records[0].Thumbnail)
	assert.Equal(t, filepath.Join(dir, "Same Title.jpg"), *first.Records[0].Thumbnail)

	r1, err := runner.Process(ctx, []string{"Same: Title"}, Options{OutputDir: dir, Naming: naming.ModeRandom})
	require.NoError(t, err)
	r2, err := runner.Process(ctx, []string{"Same: Title"}, Options{OutputDir: dir, Naming: naming.ModeRandom})
	require.NoError(t, err)
	assert.NotEqual(t, *r1.Records[0].Thumbnail, *r2.Records[0].Thumbnail)
	assert.NotContains(t, *r1.Records[0].Thumbnail, "Same")
}

func TestProcess_UndecodableBytesStillProduceFile(t *testing.T) {
	gen := mock.New(discardLogger())
	gen.Response = []byte("raw bytes from provider")
	dir := t.TempDir()

	out, err := newTestRunner(gen).Process(context.Background(), []string{"X"}, Options{
		OutputDir: dir,
		Naming:    naming.ModeSanitized,
	})
	require.NoError(t, err)
	require.Len(t, out.Records, 1)

	data, err := os.ReadFile(*out.Records[0].Thumbnail)
	require.NoError(t, err)
	assert.Equal(t, gen.Response, data)
}

func TestProcess_CreatesOutputDirOnce(t *testing.T) {
	opens := 0
	logger := discardLogger()
	local := storage.LocalOpener(logger)
	open := func(dir string) (storage.Storage, error) {
		opens++
		return local(dir)
	}
	dir := filepath.Join(t.TempDir(), "nested", "out")

	runner := NewRunner(mock.New(logger), open, thumbnail.Config{}, logger)
	_, err := runner.Process(context.Background(), []string{"A", "B", "C"}, Options{OutputDir: dir})
	require.NoError(t, err)

	assert.Equal(t, 1, opens)
	assert.DirExists(t, dir)
}

func TestProcess_OpenFailure(t *testing.T) {
	gen := mock.New(discardLogger())
	open := func(string) (storage.Storage, error) { return nil, errors.New("read-only filesystem") }

	out, err := NewRunner(gen, open, thumbnail.Config{}, discardLogger()).
		Process(context.Background(), []string{"A"}, Options{OutputDir: "x"})
	require.Error(t, err)
	assert.Equal(t, StateStoppedIO, out.State)
	assert.Empty(t, out.Records)
	assert.Equal(t, 0, gen.Calls)
}

// failingStore accepts the first n writes and fails the rest with err.
type failingStore struct {
	storage.Storage
	allowed int
	err     error
}

func (s *failingStore) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	if s.allowed == 0 {
		return &storage.StorageError{Op: "Put", Key: key, Err: s.err}
	}
	s.allowed--
	return s.Storage.Put(ctx, key, data, contentType)
}

func failingOpener(logger *slog.Logger, allowed int, err error) storage.Opener {
	return func(dir string) (storage.Storage, error) {
		local, openErr := storage.NewLocalStorage(storage.LocalConfig{BasePath: dir}, logger)
		if openErr != nil {
			return nil, openErr
		}
		return &failingStore{Storage: local, allowed: allowed, err: err}, nil
	}
}

func TestProcess_WriteFailureSkipsTitle(t *testing.T) {
	logger := discardLogger()
	gen := mock.New(logger)
	open := failingOpener(logger, 1, errors.New("disk full"))

	out, err := NewRunner(gen, open, thumbnail.Config{}, logger).
		Process(context.Background(), []string{"A", "B", "C"}, Options{OutputDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, StateStoppedOK, out.State)
	require.Len(t, out.Records, 3)
	assert.True(t, out.Records[0].HasThumbnail())
	assert.Nil(t, out.Records[1].Thumbnail)
	assert.Nil(t, out.Records[2].Thumbnail)
	assert.Equal(t, 3, gen.Calls)
}

func TestProcess_OverlongSanitizedNameSkipsTitle(t *testing.T) {
	gen := mock.New(discardLogger())
	dir := t.TempDir()
	long := strings.Repeat("é", 150)

	out, err := newTestRunner(gen).Process(context.Background(), []string{"A", long, "C"}, Options{
		OutputDir: dir,
		Naming:    naming.ModeSanitized,
	})
	require.NoError(t, err)

	assert.Equal(t, StateStoppedOK, out.State)
	require.Len(t, out.Records, 3)
	assert.Equal(t, long, out.Records[1].Title)
	assert.Nil(t, out.Records[1].Thumbnail)
	assert.Equal(t, filepath.Join(dir, "C.jpg"), *out.Records[2].Thumbnail)
	assert.FileExists(t, filepath.Join(dir, "C.jpg"))
	assert.Equal(t, 3, gen.Calls)
}

func TestProcess_AccessDeniedStopsBatch(t *testing.T) {
	logger := discardLogger()
	gen := mock.New(logger)
	open := failingOpener(logger, 1, storage.ErrAccessDenied)

	out, err := NewRunner(gen, open, thumbnail.Config{}, logger).
		Process(context.Background(), []string{"A", "B", "C"}, Options{OutputDir: t.TempDir()})
	require.Error(t, err)
	assert.True(t, storage.IsAccessDenied(err))
	assert.Equal(t, StateStoppedIO, out.State)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "A", out.Records[0].Title)
	assert.Equal(t, 2, gen.Calls)
}

func TestProcess_CanceledContext(t *testing.T) {
	gen := mock.New(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := newTestRunner(gen).Process(ctx, []string{"A", "B"}, Options{OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateStoppedCanceled, out.State)
	assert.Empty(t, out.Records)
	assert.Equal(t, 0, gen.Calls)
}
