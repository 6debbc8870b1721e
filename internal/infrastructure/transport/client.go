package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/erp/client/internal/domain/shared"
	"github.com/erp/client/internal/infrastructure/session"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Client is the single HTTP boundary to the ERP backend. Every request
// and response passes through it: bearer-token attachment, 401
// refresh-and-replay, and error classification all live here so the
// stores above never see a raw *http.Response.
type Client struct {
	baseURL     string
	refreshPath string
	httpClient  *http.Client
	sessions    *session.Holder
	bus         shared.EventPublisher
	logger      *zap.Logger

	// refreshGroup guarantees at most one in-flight refresh process-wide;
	// concurrent 401 handlers share the same outcome.
	refreshGroup singleflight.Group
}

// Options configures a Client
type Options struct {
	BaseURL     string
	RefreshPath string
	Timeout     time.Duration
}

// NewClient creates a new API client
func NewClient(opts Options, sessions *session.Holder, bus shared.EventPublisher, logger *zap.Logger) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	refreshPath := opts.RefreshPath
	if refreshPath == "" {
		refreshPath = "/auth/refresh"
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		refreshPath: refreshPath,
		httpClient:  &http.Client{Timeout: timeout},
		sessions:    sessions,
		bus:         bus,
		logger:      logger,
	}
}

// Do performs a JSON request against the backend and decodes the response
// into out (which may be nil). On 401 it refreshes the session once and
// replays the original request once; all other failures are classified
// into the shared error taxonomy and returned.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	options := buildOptions(opts)
	return c.do(ctx, method, path, body, out, options, false)
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post performs a POST request
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

// Put performs a PUT request
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

// Patch performs a PATCH request
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPatch, path, body, out, opts...)
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, options requestOptions, retried bool) error {
	req, err := c.newRequest(ctx, method, path, body, options)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.notifyError("網絡連接錯誤")
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", shared.ErrNetworkUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// The refresh endpoint itself must never trigger another refresh,
		// a request is replayed at most once, and a 401 on an
		// unauthenticated request (login) is a plain credential failure.
		if path == c.refreshPath || retried || !c.sessions.Authenticated() {
			return c.apiError(resp)
		}
		if _, err := c.refresh(ctx); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrAuthExpired, err)
		}
		return c.do(ctx, method, path, body, out, options, true)

	case resp.StatusCode == http.StatusForbidden:
		c.notifyError("權限不足")
		return c.apiError(resp)

	case resp.StatusCode >= http.StatusInternalServerError:
		c.notifyError("服務器錯誤，請稍後重試")
		return c.apiError(resp)

	case resp.StatusCode >= http.StatusBadRequest:
		return c.apiError(resp)
	}

	return c.decode(resp, out, options)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any, options requestOptions) (*http.Request, error) {
	// Collection endpoints are trailing-slash sensitive; the path is used
	// verbatim rather than cleaned.
	full := c.baseURL + path
	if len(options.query) > 0 {
		full += "?" + options.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if token := c.sessions.AccessToken(); usableToken(token) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if options.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", options.idempotencyKey)
	}
	for k, vs := range options.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

func (c *Client) decode(resp *http.Response, out any, options requestOptions) error {
	if options.raw != nil {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}
		*options.raw = data
		return nil
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// apiError decodes the backend's structured error envelope, falling back
// to the HTTP status text when the body carries none.
func (c *Client) apiError(resp *http.Response) error {
	apiErr := &shared.APIError{StatusCode: resp.StatusCode}

	var envelope struct {
		Error *shared.APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Details = envelope.Error.Details
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func (c *Client) notifyError(message string) {
	_ = c.bus.Publish(context.Background(), shared.NewErrorNotification(message))
}

// usableToken filters out empty and placeholder tokens that must never be
// sent as a bearer header.
func usableToken(token string) bool {
	trimmed := strings.TrimSpace(token)
	return trimmed != "" && trimmed != "null" && trimmed != "undefined"
}

// BaseURL returns the configured API base URL
func (c *Client) BaseURL() string { return c.baseURL }
