package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthorized is returned when the reward service answers 401.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is any other non-2xx answer from the reward service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Client is a Go SDK for the PyLearn activity completion API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithAPIKey sets a service key sent as X-Api-Key on every request
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// NewClient creates a new completion API client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Credentials identify the player on whose behalf a call is made. Either
// field may be empty; both empty means an anonymous call.
type Credentials struct {
	BearerToken string
	Cookie      string
}

// CompleteRequest is the completion payload
type CompleteRequest struct {
	Slug      string `json:"slug"`
	Score     int    `json:"score"`
	TimeSpent *int   `json:"timeSpent,omitempty"`
}

// Rewards is the currency granted for a completion
type Rewards struct {
	Diamonds   int `json:"diamonds"`
	Experience int `json:"experience"`
}

// User is the player's updated totals, when the service returns them
type User struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	Diamonds   int    `json:"diamonds"`
	Experience int    `json:"experience"`
	Level      int    `json:"level,omitempty"`
}

// CompleteResponse is the success body of the completion endpoint
type CompleteResponse struct {
	Success          bool    `json:"success"`
	Rewards          Rewards `json:"rewards"`
	AlreadyCompleted bool    `json:"alreadyCompleted"`
	User             *User   `json:"user,omitempty"`
	Message          string  `json:"message,omitempty"`
}

// CompleteActivity reports a finished activity
func (c *Client) CompleteActivity(ctx context.Context, creds Credentials, req CompleteRequest) (*CompleteResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/activities/complete", creds, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var result CompleteResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}

// Health checks if the service is reachable
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/api/health", Credentials{}, nil)
	return err
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, creds Credentials, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	if creds.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+creds.BearerToken)
	}
	if creds.Cookie != "" {
		req.Header.Set("Cookie", creds.Cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
