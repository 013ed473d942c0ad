// Package client is a typed Go SDK for the proposal lifecycle REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Actor headers understood by the server.
const (
	headerActorRole     = "X-Actor-Role"
	headerActorID       = "X-Actor-ID"
	headerActorOverride = "X-Actor-Override"
	headerRequestID     = "X-Request-ID"
)

const (
	defaultTimeout = 30 * time.Second
	retryBase      = 100 * time.Millisecond
)

// Client talks to one proposal service on behalf of one acting party.
type Client struct {
	baseURL    string
	apiKey     string
	role       string
	actorID    string
	override   bool
	retries    int
	httpClient *http.Client

	Proposals *ProposalService
	Meetings  *MeetingService
	Admin     *AdminService
}

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithActor sets the acting party sent with every request.
func WithActor(role, id string) Option {
	return func(c *Client) { c.role, c.actorID = role, id }
}

// WithOverride asks the server to apply platform calls to finalized proposals.
func WithOverride() Option {
	return func(c *Client) { c.override = true }
}

// WithRetries re-sends a call up to n more times while it keeps losing the
// race for the proposal (see IsRetryable). The engine re-checks its guards
// on every attempt, so a retried mutation never applies twice.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = max(n, 0) }
}

// New creates a client for baseURL, e.g. "http://localhost:3040".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	c.bind()

	return c
}

func (c *Client) bind() {
	c.Proposals = &ProposalService{c: c}
	c.Meetings = &MeetingService{c: c}
	c.Admin = &AdminService{c: c}
}

// As returns a copy acting as another party. The copy never carries the
// override flag.
func (c *Client) As(role, id string) *Client {
	cp := *c
	cp.role, cp.actorID, cp.override = role, id, false
	cp.bind()

	return &cp
}

// Health returns the liveness report.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/api/v1/health", nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Ready returns the readiness report. A server that is not ready answers
// with an *APIError carrying status 503.
func (c *Client) Ready(ctx context.Context) (*ReadyResponse, error) {
	var resp ReadyResponse
	if err := c.get(ctx, "/api/v1/ready", nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// do sends one call, retrying while the server reports a lease conflict.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = data
	}

	for attempt := 0; ; attempt++ {
		err := c.roundTrip(ctx, method, path, payload, result)
		if err == nil || attempt >= c.retries || !IsRetryable(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(retryBase << attempt):
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, result any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.decorate(req, payload != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := parseAPIError(resp.StatusCode, data)
		if apiErr.RequestID == "" {
			apiErr.RequestID = resp.Header.Get(headerRequestID)
		}

		return apiErr
	}

	if result == nil || len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (c *Client) decorate(req *http.Request, hasBody bool) {
	h := req.Header
	if hasBody {
		h.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		h.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.role != "" {
		h.Set(headerActorRole, c.role)
		h.Set(headerActorID, c.actorID)
	}
	if c.override {
		h.Set(headerActorOverride, "true")
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) put(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPut, path, body, result)
}

func (c *Client) del(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodDelete, path, nil, result)
}
