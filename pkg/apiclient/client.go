// Package apiclient provides a REST API client for bardctl, talking to
// the command surface bardd exposes over pkg/api.
package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client is the bardd API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client pointed at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// envelope mirrors api.Response: every bardd response, success or
// error, is wrapped in this shape.
type envelope struct {
	Status    string          `json:"status"`
	Service   string          `json:"service,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// do performs an HTTP request and decodes the enveloped response. A
// request-id header stamps client-side correlation so a request can be
// grepped end-to-end through the daemon's logs.
func (c *Client) do(method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &env); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	if resp.StatusCode >= 400 || env.Error != "" {
		msg := env.Error
		if msg == "" {
			msg = string(respBody)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}

func (c *Client) get(path string, result any) error {
	return c.do(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body, result any) error {
	return c.do(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string, result any) error {
	return c.do(http.MethodDelete, path, nil, result)
}
