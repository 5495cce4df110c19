// Package client provides a JSON-over-HTTP client for the Usecase Explorer server
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/ucexplorer/ucexplorer/internal/core/observability/log"
	"github.com/ucexplorer/ucexplorer/pkg/api"
)

const (
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Client talks to one Usecase Explorer server
type Client struct {
	base *url.URL
	http *http.Client

	closed atomic.Bool

	config Config
	logger log.Log
}

// Config holds configuration for the client
type Config struct {
	// BaseURL is the server root, e.g. http://localhost:5000
	BaseURL string
	// Timeout bounds each request; zero means no client-side timeout.
	Timeout time.Duration
	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes int64
	UserAgent        string

	// Navigation list endpoints
	AreasPath        string
	ProcessStepsPath string
	UseCasesPath     string
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		BaseURL:          "http://localhost:5000",
		Timeout:          0,
		MaxResponseBytes: 8 << 20, // 8MB
		UserAgent:        "explorerctl",
		AreasPath:        "/api/areas",
		ProcessStepsPath: "/api/process-steps",
		UseCasesPath:     "/api/usecases",
	}
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client; its Timeout wins over Config.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger log.Log) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new client for config.BaseURL
func NewClient(config Config, opts ...Option) (*Client, error) {
	defaults := DefaultClientConfig()
	if config.MaxResponseBytes <= 0 {
		config.MaxResponseBytes = defaults.MaxResponseBytes
	}
	if config.AreasPath == "" {
		config.AreasPath = defaults.AreasPath
	}
	if config.ProcessStepsPath == "" {
		config.ProcessStepsPath = defaults.ProcessStepsPath
	}
	if config.UseCasesPath == "" {
		config.UseCasesPath = defaults.UseCasesPath
	}

	base, err := url.Parse(strings.TrimSpace(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", ErrInvalidConfig, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q must be absolute http(s)", ErrInvalidConfig, config.BaseURL)
	}

	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: config.Timeout},
		config: config,
		logger: log.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(log.Component("client"), log.String("base_url", base.String()))
	c.logger.Debug("Client created")
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.config }

// Close releases idle connections; later requests fail with ErrClientClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.http.CloseIdleConnections()
	c.logger.Debug("Client closed")
	return nil
}

// CommitBatch posts one encoded ledger batch to endpoint. The request carries
// an Idempotency-Key derived from the body so a retried identical batch can be
// recognized by the server.
func (c *Client) CommitBatch(ctx context.Context, endpoint string, body any) (*api.BatchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	header := http.Header{}
	header.Set(HeaderIdempotencyKey, IdempotencyKey(endpoint, payload))

	data, err := c.do(ctx, http.MethodPost, endpoint, payload, header)
	if err != nil {
		return nil, err
	}
	var resp api.BatchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrMalformedResponse, err)
	}
	if resp.Success == nil {
		return nil, fmt.Errorf("%w: missing success flag", api.ErrMalformedResponse)
	}
	return &resp, nil
}

// UpdateField sends {field: value} to path with PUT. A response with
// success:false is returned together with ErrUpdateFailed.
func (c *Client) UpdateField(ctx context.Context, path, field string, value any) (*api.FieldUpdateResponse, error) {
	payload, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, fmt.Errorf("encode update: %w", err)
	}
	data, err := c.do(ctx, http.MethodPut, path, payload, nil)
	if err != nil {
		return nil, err
	}
	var resp api.FieldUpdateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrMalformedResponse, err)
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = field
		}
		return &resp, fmt.Errorf("%w: %s", ErrUpdateFailed, msg)
	}
	return &resp, nil
}

// GetJSON fetches path and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", api.ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) Areas(ctx context.Context) ([]api.Area, error) {
	return getList[api.Area](ctx, c, c.config.AreasPath, "areas")
}

func (c *Client) ProcessSteps(ctx context.Context) ([]api.ProcessStep, error) {
	return getList[api.ProcessStep](ctx, c, c.config.ProcessStepsPath, "process_steps")
}

func (c *Client) UseCases(ctx context.Context) ([]api.UseCase, error) {
	return getList[api.UseCase](ctx, c, c.config.UseCasesPath, "usecases")
}

func getList[T any](ctx context.Context, c *Client, path, key string) ([]T, error) {
	data, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	items, err := api.DecodeList[T](data, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", api.ErrMalformedResponse, path, err)
	}
	return items, nil
}

// IdempotencyKey fingerprints a request body for the given endpoint.
func IdempotencyKey(endpoint string, payload []byte) string {
	h := xxhash.New()
	_, _ = h.WriteString(endpoint)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(payload)
	return fmt.Sprintf("%016x", h.Sum64())
}

func (c *Client) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	return c.base.ResolveReference(ref).String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, header http.Header) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	requestID, ok := log.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
		ctx = log.ContextWithRequestID(ctx, requestID)
	}
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	logger := c.logger.WithContext(ctx)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("Request failed",
			log.String("method", method),
			log.String("url", target),
			log.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %v", api.ErrTransport, method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", api.ErrTransport, err)
	}

	logger.Debug("Request completed",
		log.String("method", method),
		log.String("url", target),
		log.Int("status", resp.StatusCode),
		log.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{
			Method: method,
			URL:    target,
			Code:   resp.StatusCode,
			Body:   snippet,
			err:    api.ErrTransport,
		}
	}
	return data, nil
}
