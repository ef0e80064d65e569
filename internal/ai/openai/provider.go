package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/msmarc75/thumbsv2/internal/ai"
)

const (
	// DefaultBaseURL is the root of the OpenAI REST API
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the image model used when none is configured
	DefaultModel = "gpt-image-1.5"

	// DefaultSize is a wide landscape resolution; the result is cropped to 16:9 afterwards
	DefaultSize = "1536x1024"

	// DefaultQuality is the rendering quality requested from the model
	DefaultQuality = "high"

	// MaxImageSize caps how much of a downloaded image is read (50MB)
	MaxImageSize = 50 * 1024 * 1024
)

// Config contains configuration for the OpenAI image provider
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Size           string
	Quality        string
	RequestTimeout time.Duration
}

// Provider implements ai.Generator using the OpenAI Images API
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new OpenAI image provider. The credential is injected here
// rather than read from the environment.
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Size == "" {
		config.Size = DefaultSize
	}
	if config.Quality == "" {
		config.Quality = DefaultQuality
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 120 * time.Second
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// Generate requests one image for the prompt. There is exactly one attempt;
// failures are classified and returned as *ai.GenerationError.
func (p *Provider) Generate(ctx context.Context, params ai.GenerateParams) (*ai.GeneratedImage, error) {
	startTime := time.Now()

	req, err := p.buildRequest(ctx, params)
	if err != nil {
		return nil, ai.Transient(fmt.Errorf("build request: %w", err))
	}

	resp, err := p.executeRequest(req)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, ai.Transient(ai.EAIEmptyResponse)
	}

	item := resp.Data[0]
	var data []byte
	var source string
	switch {
	case item.URL != "":
		source = "url"
		data, err = p.download(ctx, item.URL)
		if err != nil {
			return nil, ai.Transient(fmt.Errorf("download image: %w", err))
		}
	case item.B64JSON != "":
		source = "b64_json"
		data, err = base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, ai.Transient(fmt.Errorf("decode b64_json: %w", err))
		}
	default:
		return nil, ai.Transient(ai.EAIEmptyResponse)
	}

	duration := time.Since(startTime)
	p.logger.Debug("image generated",
		"title", params.Title,
		"model", p.config.Model,
		"source", source,
		"size_bytes", len(data),
		"duration", duration,
	)

	return &ai.GeneratedImage{
		Data:     data,
		Model:    p.config.Model,
		Source:   source,
		Duration: duration,
	}, nil
}

// buildRequest builds the HTTP request for image generation
func (p *Provider) buildRequest(ctx context.Context, params ai.GenerateParams) (*http.Request, error) {
	reqBody := apiRequest{
		Model:   p.config.Model,
		Prompt:  params.Prompt,
		Size:    p.config.Size,
		Quality: p.config.Quality,
		N:       1,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/images/generations", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	return req, nil
}

// executeRequest executes a single HTTP request
func (p *Provider) executeRequest(req *http.Request) (*apiResponse, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, ai.Transient(fmt.Errorf("%w: %v", ai.EAIUnavailable, err))
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ai.Transient(fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, ai.Transient(fmt.Errorf("unmarshal response: %w", err))
	}

	return &apiResp, nil
}

// download fetches an image the API returned by URL
func (p *Provider) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageSize {
		return nil, errors.New("image exceeds maximum download size")
	}
	return data, nil
}

// mapHTTPError maps HTTP status codes to classified generation errors
func mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized:
		return ai.Auth(fmt.Errorf("%w: %s", ai.EAIUnauthorized, errResp.Error.Message))
	case http.StatusTooManyRequests:
		return ai.Transient(ai.EAIRateLimit)
	case http.StatusBadRequest:
		if errResp.Error.Code == "content_policy_violation" || errResp.Error.Code == "moderation_blocked" {
			return ai.Transient(ai.EAIContentPolicy)
		}
		return ai.Transient(fmt.Errorf("bad request: %s", errResp.Error.Message))
	case http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ai.Transient(ai.EAIUnavailable)
	default:
		return ai.Transient(fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message))
	}
}

// API request/response types

type apiRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	N       int    `json:"n"`
}

type apiResponse struct {
	Created int64          `json:"created"`
	Data    []apiImageData `json:"data"`
}

type apiImageData struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
