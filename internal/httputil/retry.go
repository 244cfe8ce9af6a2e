// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP execution policy shared by the
// provider adapters: client-side rate limiting and retry with backoff.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// retryable responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

const defaultMaxRetries = 2

// Policy describes how requests to one provider are executed.
type Policy struct {
	// Limiter throttles outgoing requests. Nil means unlimited.
	Limiter *rate.Limiter

	// MaxRetries bounds retries on retryable statuses. Zero uses the
	// default (2); a negative value disables retries.
	MaxRetries int
}

// NewLimiter builds a token bucket for perSecond requests. A non-positive
// rate yields nil (no limiting).
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Retryable reports whether a status code is worth retrying: 429 and
// the transient 5xx family.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Do executes req under policy p. Each attempt first waits on the limiter.
// Retryable responses are drained, closed, and retried with exponential
// backoff starting at RetryBaseDelay. If the context ends while waiting the
// function returns ctx.Err(). After exhausting retries the last response is
// returned so the caller can inspect its status.
func Do(ctx context.Context, client *http.Client, req *http.Request, p Policy) (*http.Response, error) {
	maxRetries := p.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}

		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
