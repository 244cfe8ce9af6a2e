// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/pdiddy/trialscout/pkg/types"
)

// ErrBreakerOpen is recorded for a source whose circuit breaker is
// rejecting calls.
var ErrBreakerOpen = errors.New("circuit breaker open")

const (
	defaultBreakerFailures = 5
	defaultBreakerOpen     = 30 * time.Second
)

// breaker wraps a gobreaker.CircuitBreaker for one source.
type breaker struct {
	cb *gobreaker.CircuitBreaker
}

func newBreaker(kind types.SourceKind, cfg types.BreakerConfig, logger zerolog.Logger) *breaker {
	failures := cfg.MaxFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	open := cfg.OpenTimeout
	if open <= 0 {
		open = defaultBreakerOpen
	}

	settings := gobreaker.Settings{
		Name:        string(kind),
		MaxRequests: 1,
		Timeout:     open,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A caller giving up is not the provider's fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("source", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}
	return &breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// execute runs fn through the breaker.
func (b *breaker) execute(fn func() ([]types.Record, error)) ([]types.Record, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrBreakerOpen, err)
	}
	if err != nil {
		return nil, err
	}
	records, _ := out.([]types.Record)
	return records, nil
}

// state reports the breaker state name, for tests and diagnostics.
func (b *breaker) state() string {
	return b.cb.State().String()
}
