package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"docqa/internal/config"
	"docqa/pkg/circuitbreaker"
)

// ErrServerStatus marks a response the breaker counted as a failure.
var ErrServerStatus = errors.New("upstream server error")

// Client wraps http.Client and guards outbound calls with a circuit breaker.
type Client struct {
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
}

// NewClient creates a Client. When the breaker is disabled calls go straight through.
func NewClient(cfg config.CircuitBreakerConfig, timeout time.Duration) (*Client, error) {
	hc := &http.Client{Timeout: timeout}
	if !cfg.Enabled {
		return &Client{httpClient: hc}, nil
	}

	cooldown, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker timeout duration: %w", err)
	}
	return &Client{
		httpClient: hc,
		breaker: circuitbreaker.New(circuitbreaker.Settings{
			FailureThreshold: cfg.FailureThreshold,
			SuccessThreshold: cfg.SuccessThreshold,
			Timeout:          cooldown,
		}),
	}, nil
}

// Do executes req. Status codes >= 500 count as breaker failures; the body of such a
// response is drained and closed and an error wrapping ErrServerStatus is returned.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	var resp *http.Response
	err := c.breaker.Execute(func() error {
		var err error
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("%w: status %d: %s", ErrServerStatus, resp.StatusCode, string(body))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// State reports the breaker state; Closed when the breaker is disabled.
func (c *Client) State() circuitbreaker.State {
	if c.breaker == nil {
		return circuitbreaker.Closed
	}
	return c.breaker.State()
}
