// Package elevenlabs provides the text-to-speech client used to produce
// the audio track for a talking-head run.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Static errors for ElevenLabs client operations.
var (
	// ErrAPIKeyRequired is returned when no API key is provided.
	ErrAPIKeyRequired = errors.New("elevenlabs: API key is required")
	// ErrVoiceIDRequired is returned when the voice ID is not provided.
	ErrVoiceIDRequired = errors.New("elevenlabs: voice ID is required")
	// ErrTextRequired is returned when Synthesize is called with empty text.
	ErrTextRequired = errors.New("elevenlabs: text is required")
	// ErrSynthesisFailed is returned when the provider rejects the request.
	ErrSynthesisFailed = errors.New("elevenlabs: synthesis failed")
)

// Client defines the interface for text-to-speech synthesis.
type Client interface {
	// Synthesize converts text to speech and returns the raw audio bytes.
	// The encoding is whatever the provider produces (MP3 by default);
	// callers treat it as opaque.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// HTTPClient is the HTTP implementation of the ElevenLabs Client interface.
type HTTPClient struct {
	apiKey     string
	voiceID    string
	modelID    string
	baseURL    string
	settings   VoiceSettings
	httpClient *http.Client
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the ElevenLabs API.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = u
	}
}

// WithVoiceSettings overrides the default voice-shaping parameters.
func WithVoiceSettings(s VoiceSettings) ClientOption {
	return func(hc *HTTPClient) {
		hc.settings = s
	}
}

// NewClient creates a new ElevenLabs HTTP client.
// The API key and voice ID are required; the model ID falls back to
// DefaultModelID when empty.
func NewClient(apiKey, voiceID, modelID string, opts ...ClientOption) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	if voiceID == "" {
		return nil, ErrVoiceIDRequired
	}
	if modelID == "" {
		modelID = DefaultModelID
	}

	c := &HTTPClient{
		apiKey:     apiKey,
		voiceID:    voiceID,
		modelID:    modelID,
		baseURL:    "https://api.elevenlabs.io",
		settings:   DefaultVoiceSettings(),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Synthesize converts text to speech with the configured voice and model.
// It is a single one-shot call; retrying is the caller's decision.
func (c *HTTPClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, ErrTextRequired
	}

	reqBody := synthesisRequest{
		Text:          text,
		ModelID:       c.modelID,
		VoiceSettings: c.settings,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, url.PathEscape(c.voiceID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}

	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrSynthesisFailed, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
