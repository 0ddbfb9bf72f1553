// Package apiclient is the single HTTP client wrapper the storefront uses to
// reach the store REST API. It attaches the stored bearer token, turns
// non-2xx responses into APIError and forces a logout on 401/403.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/omkarjtg/ecomm/internal/infrastructure/localstore"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	// HeaderIdempotencyKey is sent on order creation
	HeaderIdempotencyKey = "Idempotency-Key"

	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "storefront/1.0"
)

// UnauthorizedFunc is called after a 401/403 removed the stored token
type UnauthorizedFunc func(ctx context.Context, status int)

// Client is the store API client
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	store      localstore.Store
	logger     *zap.Logger
	headers    map[string]string

	mu             sync.RWMutex
	onUnauthorized []UnauthorizedFunc
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.headers["User-Agent"] = ua
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a client for the API at baseURL. Tokens are read from store at
// request time, so a login in another tab is picked up without a restart.
func New(baseURL string, store localstore.Store, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("apiclient: base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("apiclient: invalid base URL: %w", err)
	}
	if store == nil {
		return nil, errors.New("apiclient: token store is required")
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultTimeout,
		},
		baseURL: u,
		store:   store,
		logger:  zap.NewNop(),
		headers: map[string]string{
			"Accept":     "application/json, text/plain, */*",
			"User-Agent": defaultUserAgent,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OnUnauthorized registers fn to run after a forced logout. The auth store
// uses it to clear the session and the view layer to redirect to login.
func (c *Client) OnUnauthorized(fn UnauthorizedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = append(c.onUnauthorized, fn)
}

// BaseURL returns the API base URL
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.baseURL.String(), "/")
}

// Part is one part of a multipart/form-data body
type Part struct {
	Name        string
	Filename    string
	ContentType string
	Data        []byte
}

// Request describes one API call
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
	// Body is JSON encoded unless Parts is set
	Body  any
	Parts []Part
	// KeepToken skips the forced logout on 401/403. Login uses it because the
	// server answers bad credentials with 401.
	KeepToken bool
}

// Response is a successful (2xx) response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}

// Text returns the body as a string, unquoting a JSON string body
func (r *Response) Text() string {
	trimmed := bytes.TrimSpace(r.Body)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

// Do executes req once. There are no automatic retries.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	u, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: create request: %w", err)
	}
	c.setHeaders(ctx, httpReq, contentType, req.Headers)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("API request failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("apiclient: %s %s: %w", req.Method, req.Path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: read response: %w", err)
	}

	c.logger.Debug("API request",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		apiErr := newAPIError(httpResp.StatusCode, data)
		if IsAuthStatus(httpResp.StatusCode) && !req.KeepToken {
			c.forceLogout(ctx, httpResp.StatusCode)
			apiErr.LoggedOut = true
		}
		return nil, apiErr
	}

	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, query map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a JSON POST request
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a JSON PUT request
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

func (c *Client) forceLogout(ctx context.Context, status int) {
	// The request context may already be cancelled by the caller.
	rmCtx := context.WithoutCancel(ctx)
	if err := c.store.Remove(rmCtx, localstore.KeyToken); err != nil {
		c.logger.Error("Failed to remove token after auth failure", zap.Error(err))
	}
	c.logger.Info("Forced logout", zap.Int("status", status))

	c.mu.RLock()
	hooks := append([]UnauthorizedFunc(nil), c.onUnauthorized...)
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn(rmCtx, status)
	}
}

func (c *Client) buildURL(path string, query map[string]string) (*url.URL, error) {
	u, err := c.baseURL.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: resolve path %q: %w", path, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request, contentType string, custom map[string]string) {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	token, ok, err := c.store.Get(ctx, localstore.KeyToken)
	if err != nil {
		c.logger.Warn("Failed to read stored token", zap.Error(err))
	}
	if ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	for k, v := range custom {
		req.Header.Set(k, v)
	}
}

func encodeBody(req Request) (io.Reader, string, error) {
	if len(req.Parts) > 0 {
		return encodeMultipart(req.Parts)
	}
	if req.Body == nil {
		return nil, "", nil
	}
	data, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("apiclient: encode request body: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

func encodeMultipart(parts []Part) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		disposition := fmt.Sprintf(`form-data; name=%q`, p.Name)
		if p.Filename != "" {
			disposition += fmt.Sprintf(`; filename=%q`, p.Filename)
		}
		h.Set("Content-Disposition", disposition)
		ct := p.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("apiclient: multipart part %s: %w", p.Name, err)
		}
		if _, err := pw.Write(p.Data); err != nil {
			return nil, "", fmt.Errorf("apiclient: multipart part %s: %w", p.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("apiclient: multipart close: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
