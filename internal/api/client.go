// Package api is a thin client for the platform's HTTP API. It attaches the
// viewer's bearer token, serializes query parameters, and turns non-2xx
// responses into *Error values.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// ErrMalformedResponse means a 2xx response body did not have the expected shape.
var ErrMalformedResponse = errors.New("malformed api response")

// ErrUnavailable is returned without contacting the server while the circuit
// breaker is open.
var ErrUnavailable = errors.New("api temporarily unavailable")

// ErrEmptyUpload is returned by UploadDocument when no file is given.
var ErrEmptyUpload = errors.New("upload needs a file name and content")

const (
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 30 * time.Second
)

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource interface {
	GetToken(ctx context.Context) (string, bool)
}

// Error is a non-2xx response.
type Error struct {
	Status  int
	Message string
	Payload []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger

	breakerThreshold uint32
	breakerCooldown  time.Duration
	breaker          *gobreaker.CircuitBreaker[*http.Response]
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithCircuitBreaker opens the breaker after threshold consecutive server
// failures (transport errors, timeouts, 5xx) and keeps it open for cooldown.
// A threshold of zero disables the breaker.
func WithCircuitBreaker(threshold uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		c.breakerThreshold = threshold
		c.breakerCooldown = cooldown
	}
}

// NewClient creates a client for baseURL (for example "http://host/api").
// timeout bounds every request, including reading the body.
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens:           tokens,
		logger:           zap.NewNop(),
		breakerThreshold: DefaultBreakerThreshold,
		breakerCooldown:  DefaultBreakerCooldown,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breakerThreshold > 0 {
		c.breaker = c.newBreaker()
	}
	return c
}

func (c *Client) newBreaker() *gobreaker.CircuitBreaker[*http.Response] {
	threshold := c.breakerThreshold
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "savoir-api",
		MaxRequests: 1,
		Timeout:     c.breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			var apiErr *Error
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("api circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := c.newRequest(ctx, method, path, query, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	return decodeBody(resp.Body, method, path, out)
}

func decodeBody(body io.Reader, method, path string, out any) error {
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.tokens != nil {
		if token, ok := c.tokens.GetToken(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// send performs req and converts non-2xx responses to *Error. The caller owns
// the returned body.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.roundTrip(req)
	}
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.roundTrip(req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, req.Method, req.URL.Path, err)
	}
	return resp, err
}

func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &Error{
		Status:  resp.StatusCode,
		Message: errorMessage(resp.StatusCode, resp.Header.Get("Content-Type"), payload),
		Payload: payload,
	}
	c.logger.Debug("api request failed",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", req.Header.Get("X-Request-ID")))
	return nil, apiErr
}

// errorMessage picks a human readable message: the JSON "error" field, then
// "message", then a plain text body, then a generic status line.
func errorMessage(status int, contentType string, payload []byte) string {
	if strings.Contains(contentType, "application/json") {
		var body struct {
			Error   any `json:"error"`
			Message any `json:"message"`
		}
		if err := json.Unmarshal(payload, &body); err == nil {
			if s, ok := body.Error.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
			if s, ok := body.Message.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	} else if text := strings.TrimSpace(string(payload)); text != "" {
		return text
	}
	return fmt.Sprintf("API error (%d)", status)
}
