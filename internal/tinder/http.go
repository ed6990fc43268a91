package tinder

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
	"github.com/swipedeck/swipedeck/internal/ratelimit"
)

const (
	defaultRequestTimeout = 30 * time.Second
	getRetryAttempts      = 2
	getRetryBackoff       = 500 * time.Millisecond
)

// transport builds an HTTP client honoring the per-scheme proxy assignment.
func newHTTPClient(httpProxy, httpsProxy string) (*http.Client, error) {
	var httpProxyURL, httpsProxyURL *url.URL
	if strings.TrimSpace(httpProxy) != "" {
		parsed, errParse := url.Parse(httpProxy)
		if errParse != nil {
			return nil, fmt.Errorf("tinder: parse http proxy: %w", errParse)
		}
		httpProxyURL = parsed
	}
	if strings.TrimSpace(httpsProxy) != "" {
		parsed, errParse := url.Parse(httpsProxy)
		if errParse != nil {
			return nil, fmt.Errorf("tinder: parse https proxy: %w", errParse)
		}
		httpsProxyURL = parsed
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if httpProxyURL != nil || httpsProxyURL != nil {
		transport.Proxy = func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && httpsProxyURL != nil {
				return httpsProxyURL, nil
			}
			if req.URL.Scheme == "http" && httpProxyURL != nil {
				return httpProxyURL, nil
			}
			return nil, nil
		}
	}
	return &http.Client{Transport: transport, Timeout: defaultRequestTimeout}, nil
}

// makeRequest issues one rate-limited request against the upstream API and
// decodes the JSON response into out when out is non-nil. Idempotent GETs
// are retried with backoff on transient failure; writes never are.
func (c *Client) makeRequest(ctx context.Context, method, route string, body any, out any) error {
	var payload []byte
	if body != nil {
		encoded, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			return fmt.Errorf("tinder: marshal body: %w", errMarshal)
		}
		payload = encoded
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = 1 + getRetryAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(getRetryBackoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		errDo := c.doRequest(ctx, method, route, payload, out)
		if errDo == nil {
			return nil
		}
		lastErr = errDo
		if !isRetryable(errDo) {
			return errDo
		}
	}
	return lastErr
}

func (c *Client) doRequest(ctx context.Context, method, route string, payload []byte, out any) error {
	if errWait := c.limiter.Wait(ctx, ratelimit.KeyForToken(c.token), c.requestLimit()); errWait != nil {
		return fmt.Errorf("tinder: rate limit wait: %w", errWait)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, errNew := http.NewRequestWithContext(ctx, method, c.baseURL+route, reader)
	if errNew != nil {
		return fmt.Errorf("tinder: build request: %w", errNew)
	}
	req.Header.Set("X-Auth-Token", c.token)
	req.Header.Set("Install-Id", c.installID)
	req.Header.Set("X-Request-Id", uuid.NewString())
	req.Header.Set("User-Agent", "Tinder/13.0.0 (iPhone; iOS 16.0; Scale/2.00)")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, errDo := c.http.Do(req)
	if errDo != nil {
		return fmt.Errorf("tinder: %s %s: %w", method, route, errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, route, ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &RequestError{Method: method, Route: route, StatusCode: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if errDecode := json.NewDecoder(resp.Body).Decode(out); errDecode != nil {
		return fmt.Errorf("tinder: decode %s %s: %w", method, route, errDecode)
	}
	return nil
}

// requestLimit resolves the per-second request budget for this session.
func (c *Client) requestLimit() int {
	if c.rateLimit > 0 {
		return c.rateLimit
	}
	return ratelimit.DefaultSettingsLimit()
}

// isRetryable reports whether a failed request may be retried. Auth
// rejections are terminal and 4xx responses will not improve on retry.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode >= 500
	}
	if errors.Is(err, ErrUnauthorized) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
