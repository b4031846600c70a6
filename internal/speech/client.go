// Package speech provides spoken-language detection and chunked transcription
// backed by an external speech recognition endpoint.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Static errors for speech client operations.
var (
	// ErrEndpointRequired is returned when the endpoint URL is not provided.
	ErrEndpointRequired = errors.New("speech: endpoint URL is required")
	// ErrNoSpeech is returned when the endpoint recognized no speech in the audio.
	ErrNoSpeech = errors.New("speech: no speech recognized")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("speech: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("speech: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("speech: request failed")
)

// Recognizer converts one audio file into text for a given language.
type Recognizer interface {
	// Recognize transcribes the WAV file at audioPath assuming langCode.
	// Returns ErrNoSpeech when the audio contains no recognizable speech.
	Recognize(ctx context.Context, audioPath, langCode string) (string, error)
}

// HTTPRecognizer is the HTTP implementation of Recognizer.
type HTTPRecognizer struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// RecognizerOption is a function that configures an HTTPRecognizer.
type RecognizerOption func(*HTTPRecognizer)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) RecognizerOption {
	return func(r *HTTPRecognizer) {
		r.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) RecognizerOption {
	return func(r *HTTPRecognizer) {
		r.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) RecognizerOption {
	return func(r *HTTPRecognizer) {
		r.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) RecognizerOption {
	return func(r *HTTPRecognizer) {
		r.baseBackoff = d
	}
}

// NewHTTPRecognizer creates a recognizer talking to a speech-to-text HTTP
// endpoint.
func NewHTTPRecognizer(baseURL string, opts ...RecognizerOption) (*HTTPRecognizer, error) {
	if baseURL == "" {
		return nil, ErrEndpointRequired
	}

	r := &HTTPRecognizer{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// recognizeRequest is the request body for the /recognize endpoint.
type recognizeRequest struct {
	AudioBase64 string `json:"audio_base64"`
	Language    string `json:"language"`
}

// recognizeResponse is the response body from the /recognize endpoint.
type recognizeResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Recognize sends the audio to the endpoint and returns the transcribed text.
func (r *HTTPRecognizer) Recognize(ctx context.Context, audioPath, langCode string) (string, error) {
	audio, err := os.ReadFile(audioPath) // #nosec G304 - path is produced by the pipeline
	if err != nil {
		return "", fmt.Errorf("speech: read audio: %w", err)
	}

	body, err := json.Marshal(recognizeRequest{
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
		Language:    langCode,
	})
	if err != nil {
		return "", fmt.Errorf("speech: marshal request: %w", err)
	}

	var resp recognizeResponse
	if err := r.doRequestWithRetry(ctx, r.baseURL+"/recognize", body, &resp); err != nil {
		return "", err
	}

	if resp.Text == "" {
		if resp.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrNoSpeech, resp.Error)
		}
		return "", ErrNoSpeech
	}
	return resp.Text, nil
}

// doRequestWithRetry performs a POST with exponential backoff on rate limits
// and server errors.
func (r *HTTPRecognizer) doRequestWithRetry(ctx context.Context, url string, body []byte, out any) error {
	var lastErr error
	backoff := r.baseBackoff

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("speech: request cancelled: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = r.doRequest(ctx, url, body, out)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrServerError) && !errors.Is(lastErr, ErrRateLimited) {
			return lastErr
		}
	}
	return lastErr
}

func (r *HTTPRecognizer) doRequest(ctx context.Context, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("speech: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("speech: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("speech: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("speech: decode response: %w", err)
	}
	return nil
}
