package vision

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

// Static errors for vision client operations.
var (
	// ErrEndpointRequired is returned when the endpoint URL is not provided.
	ErrEndpointRequired = errors.New("vision: endpoint URL is required")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("vision: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("vision: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("vision: request failed")
)

// Detection is a single recognized object in a frame.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Detector recognizes objects in a single image.
type Detector interface {
	DetectObjects(ctx context.Context, imagePath string) ([]Detection, error)
}

// HTTPDetector is the HTTP implementation of Detector.
type HTTPDetector struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// DetectorOption is a function that configures an HTTPDetector.
type DetectorOption func(*HTTPDetector)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) DetectorOption {
	return func(d *HTTPDetector) {
		d.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) DetectorOption {
	return func(d *HTTPDetector) {
		d.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) DetectorOption {
	return func(d *HTTPDetector) {
		d.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) DetectorOption {
	return func(det *HTTPDetector) {
		det.baseBackoff = d
	}
}

// NewHTTPDetector creates a detector talking to an object-detection inference
// endpoint.
func NewHTTPDetector(baseURL string, opts ...DetectorOption) (*HTTPDetector, error) {
	if baseURL == "" {
		return nil, ErrEndpointRequired
	}

	d := &HTTPDetector{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// detectRequest is the request body for the /detect endpoint.
type detectRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// detectResponse is the response body from the /detect endpoint.
type detectResponse struct {
	Detections []Detection `json:"detections"`
	Error      string      `json:"error,omitempty"`
}

// DetectObjects sends the image to the endpoint and returns its detections.
func (d *HTTPDetector) DetectObjects(ctx context.Context, imagePath string) ([]Detection, error) {
	image, err := os.ReadFile(imagePath) // #nosec G304 - path is produced by the pipeline
	if err != nil {
		return nil, fmt.Errorf("vision: read image: %w", err)
	}

	body, err := json.Marshal(detectRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, fmt.Errorf("vision: marshal request: %w", err)
	}

	var resp detectResponse
	if err := d.doRequestWithRetry(ctx, d.baseURL+"/detect", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, resp.Error)
	}
	return resp.Detections, nil
}

// doRequestWithRetry performs a POST with exponential backoff on rate limits
// and server errors.
func (d *HTTPDetector) doRequestWithRetry(ctx context.Context, url string, body []byte, out any) error {
	var lastErr error
	backoff := d.baseBackoff

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("vision: request cancelled: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = d.doRequest(ctx, url, body, out)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrServerError) && !errors.Is(lastErr, ErrRateLimited) {
			return lastErr
		}
	}
	return lastErr
}

func (d *HTTPDetector) doRequest(ctx context.Context, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("vision: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vision: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("vision: read response: %w", err)
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
		return fmt.Errorf("vision: decode response: %w", err)
	}
	return nil
}
