package llm

import (
	"context"
	"math"
	"time"

	"github.com/riskforge/agentcore/pkg/clock"
)

// MaxRetryAttempts bounds retries on transient failures (HTTP 429 / 5xx).
const MaxRetryAttempts = 3

// RetryableError is returned by a Provider to signal the Client should
// retry with backoff (HTTP 429 or >= 500). Any other error breaks
// retrying immediately.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Client is the LLM Client: Complete wraps a Provider with cache lookup,
// retry-with-backoff, and cost attribution; CompleteWithJSONRetry layers a
// single JSON-repair attempt on top.
type Client struct {
	provider Provider
	cache    *Cache
	cost     *Tracker
	clock    clock.Clock
	enabled  bool

	repairStats RepairStats
}

// RepairStats tracks how often JSON repair is attempted and succeeds.
type RepairStats struct {
	Attempts  int
	Successes int
}

// NewClient builds an LLM Client. provider may be nil, meaning LLM features
// are disabled: Complete always returns (nil, nil) and callers must
// take their fallback path.
func NewClient(provider Provider, cache *Cache, cost *Tracker, clk clock.Clock) *Client {
	return &Client{
		provider: provider,
		cache:    cache,
		cost:     cost,
		clock:    clk,
		enabled:  provider != nil,
	}
}

// Enabled reports whether a provider is configured.
func (c *Client) Enabled() bool { return c.enabled }

// Complete performs one completion, consulting the cache first (unless
// SkipCache) and retrying transient provider errors with exponential
// backoff (1s * 2^attempt, up to MaxRetryAttempts). Returns a nil Response
// and nil error when the client is disabled; callers must have a fallback.
func (c *Client) Complete(ctx context.Context, system, user string, opts Options) (*Response, error) {
	if !c.enabled {
		return nil, nil
	}

	key := Key(opts.Model, opts.Temperature, system, user)
	if !opts.SkipCache && c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			return &cached, nil
		}
	}

	resp, err := c.completeWithRetry(ctx, system, user, opts)
	if err != nil {
		return nil, err
	}

	if !opts.SkipCache && c.cache != nil {
		c.cache.Set(key, *resp, opts.Temperature)
	}
	if c.cost != nil {
		c.cost.RecordCost(opts.AgentID, opts.Model, resp.Usage)
	}
	return resp, nil
}

func (c *Client) completeWithRetry(ctx context.Context, system, user string, opts Options) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < MaxRetryAttempts; attempt++ {
		start := c.clock.Now()
		resp, err := c.provider.Complete(ctx, system, user, opts)
		resp.LatencyMs = c.clock.Now() - start

		if err == nil {
			return &resp, nil
		}

		var retryable *RetryableError
		if !asRetryable(err, &retryable) {
			return nil, err
		}
		lastErr = err

		backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
		c.clock.Sleep(backoff)
	}
	return nil, lastErr
}

func asRetryable(err error, target **RetryableError) bool {
	re, ok := err.(*RetryableError)
	if ok {
		*target = re
	}
	return ok
}

// RepairStats returns a snapshot of JSON-repair counters.
func (c *Client) RepairStats() RepairStats { return c.repairStats }
