// Package training submits compiled graphs to the training/simulation service.
//
// The client is a thin forwarder: the response body is returned untouched and its
// meaning is the service's business. Transport errors and 5xx answers are retried a
// bounded number of times; every attempt carries the same Idempotency-Key, derived
// from the payload fingerprint, so the service can drop duplicates. An optional circuit
// breaker stops calling a service that keeps failing.
package training

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/modelgraph/internal/logging"
	"github.com/aretw0/modelgraph/internal/retry"
	"github.com/aretw0/modelgraph/pkg/compiler"
	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/sony/gobreaker"
)

const (
	// DefaultTimeout bounds one attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultRetries is the number of attempts per call.
	DefaultRetries = 3
	// DefaultBackoff is the delay before the second attempt; it doubles afterwards.
	DefaultBackoff = 200 * time.Millisecond

	// IdempotencyHeader carries the payload fingerprint.
	IdempotencyHeader = "Idempotency-Key"

	maxResponseBytes = 16 << 20
)

// Client talks to the training service rooted at a base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	breaker    *gobreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.httpClient.Timeout = d
	}
}

// WithRetries sets the number of attempts per call. Values below 1 mean one attempt.
func WithRetries(n int) Option {
	return func(cl *Client) {
		cl.retries = n
	}
}

// WithBackoff sets the initial delay between attempts.
func WithBackoff(d time.Duration) Option {
	return func(cl *Client) {
		cl.backoff = d
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// WithLifecycleHooks registers hooks; only OnSubmitted is used.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(cl *Client) {
		cl.hooks = hooks
	}
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// Failures is the number of consecutive failed calls that opens the circuit.
	Failures uint32
	// Cooldown is how long the circuit stays open before a probe call is let through.
	Cooldown time.Duration
}

// WithCircuitBreaker trips after cfg.Failures consecutive failed calls. While open,
// calls fail fast with an error matching gobreaker.ErrOpenState. Rejections (4xx) and
// cancellations do not count as failures.
func WithCircuitBreaker(cfg BreakerConfig) Option {
	return func(cl *Client) {
		if cfg.Failures == 0 {
			return
		}
		cl.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "training",
			MaxRequests: 1,
			Timeout:     cfg.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.Failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				cl.logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
			IsSuccessful: serviceHealthy,
		})
	}
}

// callerDone carries the error of a call whose caller went away. It is not held
// against the service.
type callerDone struct {
	err error
}

func (e *callerDone) Error() string { return e.err.Error() }
func (e *callerDone) Unwrap() error { return e.err }

// serviceHealthy reports whether err says nothing about the service being down.
func serviceHealthy(err error) bool {
	var done *callerDone
	if err == nil || errors.As(err, &done) {
		return true
	}
	var se *domain.SubmissionError
	if errors.As(err, &se) {
		return se.StatusCode >= 400 && se.StatusCode < 500
	}
	return false
}

// New creates a client for the service at baseURL (e.g. "http://localhost:5000").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		retries:    DefaultRetries,
		backoff:    DefaultBackoff,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit POSTs the request to /ai/train and returns the response body unmodified.
// Failures match domain.ErrSubmissionFailed; a non-2xx answer is a *domain.SubmissionError
// carrying the status and body. Context cancellation is returned as is.
func (c *Client) Submit(ctx context.Context, req domain.TrainingRequest) ([]byte, error) {
	payload, err := compiler.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode training request: %w", err)
	}
	key, err := compiler.Fingerprint(req)
	if err != nil {
		return nil, fmt.Errorf("fingerprint training request: %w", err)
	}

	start := time.Now()
	body, err := c.do(ctx, http.MethodPost, "/ai/train", payload, key)
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Training submission failed", "model_id", req.ModelID, "duration", duration, "err", err)
	} else {
		c.logger.Info("Training submitted", "model_id", req.ModelID, "idempotency_key", key, "duration", duration)
	}
	if c.hooks.OnSubmitted != nil {
		c.hooks.OnSubmitted(ctx, &domain.SubmitEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventSubmitted},
			ModelID:   req.ModelID,
			Duration:  duration,
			Err:       err,
		})
	}
	return body, err
}

// Logs fetches the training log of a model (GET /ai/{id}/logs).
func (c *Client) Logs(ctx context.Context, modelID string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/ai/"+url.PathEscape(modelID)+"/logs", nil, "")
}

// ListModels fetches the models known to the service (GET /ai/list).
func (c *Client) ListModels(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/ai/list", nil, "")
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, key string) ([]byte, error) {
	if c.breaker == nil {
		return c.call(ctx, method, path, payload, key)
	}
	out, err := c.breaker.Execute(func() (any, error) {
		body, err := c.call(ctx, method, path, payload, key)
		if err != nil && ctx.Err() != nil {
			return nil, &callerDone{err: err}
		}
		return body, err
	})
	var done *callerDone
	if errors.As(err, &done) {
		return nil, done.err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &domain.SubmissionError{Err: err}
	}
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (c *Client) call(ctx context.Context, method, path string, payload []byte, key string) ([]byte, error) {
	target := c.baseURL + path
	attempt := 0

	return retry.WithContext(ctx, c.retries, c.backoff, func(ctx context.Context) ([]byte, error) {
		attempt++
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, retry.Permanent(&domain.SubmissionError{Err: err})
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if key != "" {
			req.Header.Set(IdempotencyHeader, key)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("Training service unreachable", "method", method, "url", target, "attempt", attempt, "err", err)
			return nil, &domain.SubmissionError{Err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &domain.SubmissionError{StatusCode: resp.StatusCode, Err: err}
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode <= 299:
			return data, nil
		case resp.StatusCode >= 500:
			c.logger.Warn("Training service error", "method", method, "url", target, "attempt", attempt, "status", resp.StatusCode)
			return nil, &domain.SubmissionError{StatusCode: resp.StatusCode, Body: data}
		default:
			return nil, retry.Permanent(&domain.SubmissionError{StatusCode: resp.StatusCode, Body: data})
		}
	})
}
