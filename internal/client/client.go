package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"trips/internal/resilience"
)

// Config holds the connection settings for one downstream service.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retries int
}

// Point is a coordinate pair on the wire.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// caller is the shared HTTP transport for downstream services: explicit
// timeout per call and a fixed retry count. The circuit breaker sits above
// this and supersedes retries by failing fast once tripped.
type caller struct {
	http    *http.Client
	baseURL string
	retries int
}

func newCaller(cfg Config) caller {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return caller{
		http:    &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		retries: retries,
	}
}

func (c *caller) postJSON(ctx context.Context, path string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, payload, respBody)
}

func (c *caller) getJSON(ctx context.Context, path string, respBody any) error {
	return c.do(ctx, http.MethodGet, path, nil, respBody)
}

func (c *caller) do(ctx context.Context, method, path string, payload []byte, respBody any) error {
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
			continue
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, data)
		}

		if respBody == nil {
			return nil
		}
		if err := json.Unmarshal(data, respBody); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
		return nil
	}

	return lastErr
}

// guard routes a downstream call through the per-dependency token bucket and
// circuit breaker, in that order.
type guard struct {
	limiter *resilience.RateLimiter
	breaker *resilience.CircuitBreaker
	key     string
}

func (g *guard) call(ctx context.Context, fn func(context.Context) error) error {
	if err := g.limiter.Acquire(ctx, g.key, 1); err != nil {
		return err
	}
	return g.breaker.Execute(ctx, fn)
}
