package crisismap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public Crisis Map deployment.
const DefaultBaseURL = "https://googlecrisismap.appspot.com"

// maxBodyLog bounds how much of a response body is kept.
const maxBodyLog = 4096

// Client is a minimal HTTP client for the Crisis Map reports API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	debug      bool
}

// NewClient constructs a Client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		debug:      os.Getenv("ENV") == "development",
	}
}

// PostReports sends a JSON array of reports. payload must already be the
// encoded array. Non-2xx responses are returned in Result, not as errors.
func (c *Client) PostReports(ctx context.Context, apiKey string, payload json.RawMessage) (*Result, error) {
	endpoint := c.baseURL + "/.api/reports?key=" + url.QueryEscape(apiKey)

	if c.debug {
		log.Debug().
			Str("endpoint", c.baseURL+"/.api/reports").
			RawJSON("request", payload).
			Msg("[CRISISMAP] Outgoing request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyLog))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		log.Debug().
			Int("status_code", resp.StatusCode).
			Str("response", string(body)).
			Msg("[CRISISMAP] Incoming response")
	}

	return &Result{StatusCode: resp.StatusCode, Body: string(body)}, nil
}

// EncodeReports encodes reports as the array body PostReports expects.
func EncodeReports(reports ...Report) (json.RawMessage, error) {
	b, err := json.Marshal(reports)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reports: %w", err)
	}
	return b, nil
}
