package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned without contacting the upstream while its
	// breaker is open or its half-open probe slots are taken.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMaxRetriesExceeded wraps the last error once every retry failed.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// Client defaults.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultInitialInterval = 100 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Name identifies the upstream in the breaker and the registry.
	Name string

	// Timeout bounds each attempt.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a transient failure.
	// Zero means a single attempt.
	MaxRetries uint64

	InitialInterval time.Duration

	// MaxInterval caps both the exponential backoff and any Retry-After the
	// upstream asks for.
	MaxInterval time.Duration

	// Breaker defaults to DefaultBreakerConfig(Name).
	Breaker *BreakerConfig

	Transport http.RoundTripper

	// Registry, when set, learns about the client and every call outcome.
	Registry *Registry
}

// DefaultClientConfig returns a single-attempt configuration.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         DefaultTimeout,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		Breaker:         &breaker,
	}
}

// Client is an http.Client guarded by a circuit breaker.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	cfg        ClientConfig
	now        func() time.Time
}

// NewClient creates a Client and registers it with cfg.Registry.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}

	breaker := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breaker = *cfg.Breaker
		if breaker.Name == "" {
			breaker.Name = cfg.Name
		}
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		breaker:    newBreaker(breaker),
		cfg:        cfg,
		now:        time.Now,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(c)
	}
	return c
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the breaker counters for the current generation.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

// Do sends req under the breaker. Transient statuses (see Transient) count as
// failures and are retried when MaxRetries > 0, waiting at least as long as
// the upstream's Retry-After. The last transient response is returned as a
// response, not an error, so callers can still read its body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	resp, err := c.do(ctx, req)
	if c.cfg.Registry != nil && ctx.Err() == nil {
		c.cfg.Registry.Report(c.cfg.Name, c.outcome(resp, err))
	}
	return resp, err
}

func (c *Client) outcome(resp *http.Response, err error) error {
	if err != nil {
		return err
	}
	if Transient(resp.StatusCode) {
		return statusError(resp, c.now())
	}
	return nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.cfg.MaxRetries > 0 && req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return nil, fmt.Errorf("%s: retrying a request requires a replayable body", c.cfg.Name)
	}

	policy := newRetryPolicy(c.cfg)
	var (
		last     *http.Response
		attempts uint64
	)

	err := backoff.Retry(func() error {
		attempts++
		if last != nil {
			discard(last)
			last = nil
		}

		clone, err := rewind(ctx, req, attempts)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, err := c.httpClient.Do(clone)
			if err != nil {
				return nil, err
			}
			if Transient(r.StatusCode) {
				return r, statusError(r, c.now())
			}
			return r, nil
		})
		last = resp

		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		}

		var se *StatusError
		if errors.As(err, &se) {
			policy.atLeast(se.RetryAfter)
		}
		return err
	}, backoff.WithContext(policy, ctx))

	if err == nil {
		return last, nil
	}

	var se *StatusError
	if last != nil && errors.As(err, &se) {
		return last, nil
	}
	if last != nil {
		discard(last)
	}
	if c.cfg.MaxRetries > 0 && attempts > c.cfg.MaxRetries && ctx.Err() == nil && !errors.Is(err, ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
	}
	return nil, err
}

// rewind clones req for the given attempt, reopening the body after the first.
func rewind(ctx context.Context, req *http.Request, attempt uint64) (*http.Request, error) {
	out := req.Clone(ctx)
	if attempt > 1 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		out.Body = body
	}
	return out, nil
}

// discard drains a little of the body so the connection can be reused.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
}

// retryPolicy is capped exponential backoff that honours Retry-After.
type retryPolicy struct {
	backoff.BackOff
	ceiling time.Duration
	hint    time.Duration
}

func newRetryPolicy(cfg ClientConfig) *retryPolicy {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.InitialInterval
	exp.MaxInterval = cfg.MaxInterval
	exp.MaxElapsedTime = 0
	return &retryPolicy{
		BackOff: backoff.WithMaxRetries(exp, cfg.MaxRetries),
		ceiling: cfg.MaxInterval,
	}
}

func (p *retryPolicy) atLeast(d time.Duration) {
	p.hint = d
}

func (p *retryPolicy) NextBackOff() time.Duration {
	next := p.BackOff.NextBackOff()
	hint := p.hint
	p.hint = 0
	if next == backoff.Stop {
		return next
	}
	if hint > next {
		next = min(hint, p.ceiling)
	}
	return next
}
