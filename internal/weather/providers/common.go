package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff is used by every upstream client unless overridden.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
	// Limiter paces outbound calls to one upstream. Nil means unpaced.
	Limiter *rate.Limiter
}

// NewLimiter allows rps requests per second with a burst of one.
// A non-positive rps disables pacing.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// statusError carries the code of a non-retryable 4xx response.
type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("%v: %d", errUnexpected, e.code) }

func (e *statusError) Unwrap() error { return errUnexpected }

// newCircuitBreaker builds the breaker shared by all upstream clients.
// Client errors mean the upstream answered, so they do not count as failures.
func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errUnexpected)
		},
	})
}

// doRequestWithResilience executes the HTTP request with pacing, retries,
// exponential backoff and a circuit breaker. 429 and 5xx responses are
// retried; other non-2xx responses and an open breaker fail immediately.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.Backoff.InitialInterval
	if cfg.Backoff.MaxInterval > 0 {
		bo.MaxInterval = cfg.Backoff.MaxInterval
	}
	// Bounded by MaxRetries instead.
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(cfg.Backoff.MaxRetries)), ctx)

	var resp *http.Response
	operation := func() error {
		if cfg.Limiter != nil {
			if err := cfg.Limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		req, err := buildRequest()
		if err != nil {
			return backoff.Permanent(err)
		}
		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			r, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if r.StatusCode >= 200 && r.StatusCode < 300 {
				return r, nil
			}
			drainAndClose(r)

			switch {
			case r.StatusCode == http.StatusTooManyRequests:
				return nil, errRateLimited
			case r.StatusCode >= 500:
				return nil, errServerError
			default:
				return nil, &statusError{code: r.StatusCode}
			}
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%w: %v", errCircuitOpen, err))
			}
			if errors.Is(err, errUnexpected) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		r, ok := result.(*http.Response)
		if !ok {
			return backoff.Permanent(fmt.Errorf("unexpected result type from circuit breaker"))
		}
		resp = r
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

// isClientError reports whether err came from a 4xx (other than 429) response.
func isClientError(err error) bool {
	return errors.Is(err, errUnexpected)
}

func drainAndClose(r *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, 64<<10))
	_ = r.Body.Close()
}

// observationDate picks the day to actually observe. Days after today have
// no observation yet, so the same calendar day a year earlier stands in.
// Feb 29 with no prior-year counterpart falls back to Feb 28.
func observationDate(clock clockwork.Clock, date time.Time) (time.Time, weather.Provenance) {
	day := weather.Day(date)
	if !day.After(weather.Day(clock.Now())) {
		return day, weather.ProvenanceObserved
	}
	if past, ok := weather.ShiftYears(day, -1); ok {
		return past, weather.ProvenanceProxiedPriorYear
	}
	past, _ := weather.ShiftYears(day.AddDate(0, 0, -1), -1)
	return past, weather.ProvenanceProxiedPriorYear
}

const proxySuffix = " (Historical Proxy)"

func datasetFor(dataset string, p weather.Provenance) string {
	if p == weather.ProvenanceProxiedPriorYear {
		return dataset + proxySuffix
	}
	return dataset
}
