// Package backend talks to the QKart REST backend.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"qkart-storefront/internal/domain"
	"qkart-storefront/pkg/logger"
)

// StatusError is a non-2xx answer from the backend. Message is the backend's
// own {success:false, message} text when it sent one.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend status %d", e.Status)
	}
	return fmt.Sprintf("backend status %d: %s", e.Status, e.Message)
}

// Request describes one backend call. Only Idempotent requests are retried.
type Request struct {
	Method     string
	Path       string
	Query      url.Values
	Body       interface{}
	Token      string
	Idempotent bool
}

type Options struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	RateLimit    float64 // requests per second; zero disables throttling
	Burst        int
}

// Client handles JSON round trips to the backend with throttling and retries.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	maxRetries   int
	retryBackoff time.Duration
}

func NewClient(opts Options) *Client {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter:      rate.NewLimiter(limit, burst),
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
	}
}

// Do sends req and decodes a 2xx body into out (which may be nil).
// Transport failures and undecodable bodies are domain.ErrNetwork; other
// non-2xx answers are *StatusError.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	attempts := 1
	if req.Idempotent {
		attempts += c.maxRetries
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		if i > 1 {
			if err := sleep(ctx, c.retryBackoff*time.Duration(i-1)); err != nil {
				return domain.WrapError(domain.ErrNetwork, domain.MsgBackendUnreachable, err)
			}
		}

		retry, err := c.attempt(ctx, req, payload, out, i)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, req Request, payload []byte, out interface{}, attempt int) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, domain.WrapError(domain.ErrNetwork, domain.MsgBackendUnreachable, err)
	}

	httpReq, err := c.newRequest(ctx, req, payload)
	if err != nil {
		return false, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.BackendCall(ctx, req.Method, req.Path, 0, attempt, time.Since(start), err)
		// A cancelled caller is not worth another attempt.
		return ctx.Err() == nil, domain.WrapError(domain.ErrNetwork, domain.MsgBackendUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.BackendCall(ctx, req.Method, req.Path, resp.StatusCode, attempt, time.Since(start), err)
		return ctx.Err() == nil, domain.WrapError(domain.ErrNetwork, domain.MsgBackendUnreachable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		logger.BackendCall(ctx, req.Method, req.Path, resp.StatusCode, attempt, time.Since(start), nil)
		if out == nil || len(body) == 0 {
			return false, nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return false, domain.WrapError(domain.ErrNetwork, domain.MsgBackendUnreachable, fmt.Errorf("decode %s: %w", req.Path, err))
		}
		return false, nil
	}

	statusErr := &StatusError{Status: resp.StatusCode, Message: errorMessage(body)}
	logger.BackendCall(ctx, req.Method, req.Path, resp.StatusCode, attempt, time.Since(start), statusErr)

	// 4xx other than 429 is a permanent answer
	retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
	return retry, statusErr
}

func (c *Client) newRequest(ctx context.Context, req Request, payload []byte) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	return httpReq, nil
}

func errorMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Message
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
