package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const userAgent = "feedrank/1.0"

// guard rate limits calls to one provider and trips a breaker after three
// consecutive failures.
type guard struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// GuardConfig tunes request pacing and breaker recovery for a provider.
type GuardConfig struct {
	RequestsPerSecond float64
	Burst             int
	OpenTimeout       time.Duration
	HTTPTimeout       time.Duration
}

func newGuard(name string, cfg GuardConfig) *guard {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	return &guard{
		name:    name,
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// getJSON performs a GET through the limiter and breaker and decodes the
// body into out.
func (g *guard) getJSON(ctx context.Context, url string, header http.Header, out any) error {
	return g.get(ctx, url, header, func(body io.Reader) error {
		if err := json.NewDecoder(body).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", g.name, err)
		}
		return nil
	})
}

// get performs a GET through the limiter and breaker and hands a 200 body to
// read.
func (g *guard) get(ctx context.Context, url string, header http.Header, read func(io.Reader) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit: %w", g.name, err)
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create %s request: %w", g.name, err)
		}
		req.Header.Set("User-Agent", userAgent)
		for k, vals := range header {
			for _, v := range vals {
				req.Header.Add(k, v)
			}
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", g.name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s status %d", g.name, resp.StatusCode)
		}
		return nil, read(resp.Body)
	})
	return err
}
