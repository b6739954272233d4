// Package simvue is a small client for the Simvue REST API.
//
// It covers what the command line needs: server metadata, run lifecycle,
// folders, metrics and events. Retries, backoff and client-side rate
// limiting live here so that callers can treat each method as a single
// blocking call that either succeeds or returns an error.
package simvue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/simvue-io/simvue-cli/internal/logger"
)

const (
	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultRetries is the number of extra attempts after a retriable failure.
	DefaultRetries = 3
	// DefaultRetryDelay is the first backoff delay; it doubles per attempt.
	DefaultRetryDelay = 500 * time.Millisecond
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the server.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Config holds connection settings for a Client.
type Config struct {
	URL   string
	Token string

	// Timeout applies per attempt. Zero selects DefaultTimeout.
	Timeout time.Duration
	// MaxRequestRate caps requests per second. Zero disables the limiter.
	MaxRequestRate float64
	// Retries is the number of extra attempts after a retriable failure.
	Retries int
	// RetryDelay is the initial backoff. Zero selects DefaultRetryDelay.
	RetryDelay time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client talks to one Simvue server.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	retryDelay time.Duration
	log        logger.Logger
}

// New validates cfg and builds a client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("server URL is empty")
	}
	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server URL must use http or https, got %q", cfg.URL)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = DefaultRetryDelay
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewEnvLogger("[client]")
	}

	c := &Client{
		baseURL:    u,
		token:      cfg.Token,
		httpClient: hc,
		retries:    retries,
		retryDelay: retryDelay,
		log:        log,
	}
	if cfg.MaxRequestRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRequestRate), 1)
	}
	return c, nil
}

// URL returns the server base URL.
func (c *Client) URL() string {
	return c.baseURL.String()
}

// Host returns the server host name without port.
func (c *Client) Host() string {
	return c.baseURL.Hostname()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/api/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one logical request, retrying transient failures.
// in is JSON-encoded when non-nil; out is decoded when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
	}

	target := c.endpoint(path, query)
	requestID := uuid.NewString()
	delay := c.retryDelay

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.log.Debug("retrying %s %s (attempt %d) after %v: %v", method, path, attempt+1, delay, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		lastErr = c.attempt(ctx, method, path, target, requestID, payload, out)
		if lastErr == nil || ctx.Err() != nil || !isRetriable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, path, target, requestID string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func isRetriable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
