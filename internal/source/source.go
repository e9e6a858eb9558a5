// Package source adapts external data providers into enrichment facts. Each
// adapter owns its own circuit breaker and retry policy; a per-call timeout
// bounds every upstream attempt. Retry wraps the breaker, so every attempt
// (including retries) passes through the breaker as a distinct call and an
// open breaker ends the retry loop immediately.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/leadscore/internal/resilience"
	"github.com/sells-group/leadscore/pkg/companydata"
	"github.com/sells-group/leadscore/pkg/places"
)

// Source names, used for breaker registration, audit fields, and logs.
const (
	Places      = "places"
	CompanyData = "company_data"
	WebTech     = "web_tech"
)

// DefaultTimeout bounds a single upstream attempt.
const DefaultTimeout = 30 * time.Second

// fetch runs op with the adapter's full resilience stack: a per-attempt
// timeout innermost, the circuit breaker around that, and retry outermost.
func fetch[T any](ctx context.Context, cb *resilience.CircuitBreaker, rc resilience.RetryConfig, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return resilience.DoVal(ctx, rc, func(ctx context.Context) (T, error) {
		return resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (T, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			v, err := op(attemptCtx)
			return v, classify(err)
		})
	})
}

// classify wraps retryable upstream HTTP failures as transient so the retry
// policy picks them up. Everything else passes through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var placesErr *places.APIError
	if errors.As(err, &placesErr) {
		if resilience.IsTransientHTTPStatus(placesErr.StatusCode) {
			return resilience.NewTransientError(err, placesErr.StatusCode)
		}
		return err
	}

	var companyErr *companydata.APIError
	if errors.As(err, &companyErr) {
		if resilience.IsTransientHTTPStatus(companyErr.StatusCode) {
			return resilience.NewTransientError(err, companyErr.StatusCode)
		}
		return err
	}

	return err
}
