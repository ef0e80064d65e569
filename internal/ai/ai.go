package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Generator produces a thumbnail image for a video title.
type Generator interface {
	// Generate returns the raw encoded image bytes for the given prompt.
	// Failures are reported as *GenerationError.
	Generate(ctx context.Context, params GenerateParams) (*GeneratedImage, error)
}

// GenerateParams contains parameters for a single image generation
type GenerateParams struct {
	Title  string // Video title the thumbnail is for
	Prompt string // Full prompt sent to the model
}

// GeneratedImage is the raw output of a generation call
type GeneratedImage struct {
	Data     []byte        // Encoded image bytes as returned by the provider
	Model    string        // Model that produced the image
	Source   string        // "b64_json" or "url"
	Duration time.Duration // Request duration
}

// FailureKind classifies a generation failure. There are exactly two kinds.
type FailureKind int

const (
	// FailureTransient covers every failure that only affects the current title.
	FailureTransient FailureKind = iota + 1

	// FailureAuth means the provider rejected the credential. It is fatal for
	// the whole batch.
	FailureAuth
)

func (k FailureKind) String() string {
	switch k {
	case FailureAuth:
		return "auth"
	case FailureTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// GenerationError is the error type returned by Generator implementations.
type GenerationError struct {
	Kind FailureKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Error codes for generator operations
var (
	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")

	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIContentPolicy indicates the prompt was rejected by the safety system
	EAIContentPolicy = errors.New("prompt violates content policy")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIEmptyResponse indicates the provider returned neither a URL nor image data
	EAIEmptyResponse = errors.New("ai provider returned no image data")
)

// Transient wraps err as a per-title failure.
func Transient(err error) *GenerationError {
	return &GenerationError{Kind: FailureTransient, Err: err}
}

// Auth wraps err as a fatal credential failure.
func Auth(err error) *GenerationError {
	return &GenerationError{Kind: FailureAuth, Err: err}
}

// Classify returns the failure kind of err. Errors that are not a
// *GenerationError are treated as auth failures only when they wrap
// EAIUnauthorized; everything else is transient.
func Classify(err error) FailureKind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	if errors.Is(err, EAIUnauthorized) {
		return FailureAuth
	}
	return FailureTransient
}
