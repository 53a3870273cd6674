// Package httpapi implements the authenticated REST client (C2) shared by
// both brokerage and market-data provider adapters. Every outbound call
// consults the connectivity supervisor before attempting the network and
// reports the outcome back to it afterward.
package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/kpeterman/alpacatrader/internal/connectivity"
	"github.com/kpeterman/alpacatrader/internal/domain"
)

// Request carries everything needed for one HTTP attempt sequence.
type Request struct {
	Method      string
	URL         string
	Headers     map[string]string
	Body        []byte
	RetryCount  int
	TimeoutSecs int
	RateLimitMs int
}

// Client is an authenticated REST client gated by a connectivity.Supervisor
// and paced by a token-bucket limiter, mirroring the sign-send-checkStatus
// shape used by the platform's exchange clients.
type Client struct {
	httpClient *http.Client
	supervisor *connectivity.Supervisor
	limiter    *rate.Limiter
}

// New builds a Client. ratePerSec <= 0 disables pacing (limiter allows
// bursts unbounded).
func New(supervisor *connectivity.Supervisor, ratePerSec float64) *Client {
	var lim *rate.Limiter
	if ratePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return &Client{
		httpClient: &http.Client{},
		supervisor: supervisor,
		limiter:    lim,
	}
}

// Get performs an authenticated GET.
func (c *Client) Get(ctx context.Context, req Request) ([]byte, error) {
	req.Method = http.MethodGet
	return c.do(ctx, req)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, req Request) ([]byte, error) {
	req.Method = http.MethodPost
	return c.do(ctx, req)
}

// Delete performs an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, req Request) ([]byte, error) {
	req.Method = http.MethodDelete
	return c.do(ctx, req)
}

// do consults the supervisor, paces via the limiter, attempts the request up
// to RetryCount times with a rate-limit-delay-then-1s backoff between
// attempts, and reports the final outcome back to the supervisor.
func (c *Client) do(ctx context.Context, req Request) ([]byte, error) {
	if !c.supervisor.ShouldAttemptConnection() {
		return nil, domain.Gated(c.supervisor.SecondsUntilRetry())
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, domain.Wrap(domain.HttpTransport, "rate limiter wait", err)
		}
	}

	var lastErr error
	attempts := req.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := c.attempt(ctx, req)
		if err == nil {
			c.supervisor.ReportSuccess()
			if len(body) == 0 {
				return nil, domain.NewError(domain.EmptyResponse, "empty response body")
			}
			return body, nil
		}
		lastErr = err

		if attempt < attempts {
			delay := time.Duration(req.RateLimitMs)*time.Millisecond + time.Second
			select {
			case <-ctx.Done():
				c.supervisor.ReportFailure(ctx.Err().Error())
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	c.supervisor.ReportFailure(lastErr.Error())
	return nil, domain.Wrap(domain.HttpTransport, "http request failed after retries", lastErr)
}

func (c *Client) attempt(ctx context.Context, req Request) ([]byte, error) {
	timeout := time.Duration(req.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("httpapi: build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("httpapi: transport: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpapi: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("httpapi: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
