package langid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cognicore/qualify/pkg/qualify/internalerr"
)

// Client calls a remote language identification endpoint.
//
// Request:  POST {"text": "..."}
// Response: {"language": "de", "confidence": 0.97}
//
// An empty or "unknown" language is an undetermined result; transport and
// server failures are returned as ErrClassificationUnavailable.
type Client struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	HTTPClient *http.Client
}

type identifyRequest struct {
	Text string `json:"text"`
}

type identifyResponse struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Identify sends text to the service.
func (c *Client) Identify(ctx context.Context, text string) (Result, error) {
	if c.BaseURL == "" {
		return Result{}, fmt.Errorf("%w: base URL required", internalerr.ErrClassificationUnavailable)
	}
	clean := Prepare(text)
	if clean == "" {
		return Undetected(), nil
	}

	payload, err := c.send(ctx, clean)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", internalerr.ErrClassificationUnavailable, err)
	}

	code := strings.ToLower(strings.TrimSpace(payload.Language))
	if code == "" || code == Unknown {
		return Undetected(), nil
	}
	return Result{Code: code, Outcome: Detected, Confidence: payload.Confidence}, nil
}

func (c *Client) send(ctx context.Context, text string) (*identifyResponse, error) {
	reqBody, err := json.Marshal(identifyRequest{Text: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload identifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("service error: %s", payload.Error.Message)
	}
	return &payload, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
