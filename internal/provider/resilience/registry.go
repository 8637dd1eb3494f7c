package resilience

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is a point-in-time view of one upstream.
type ProviderHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string

	// LastStatus is the HTTP status of the last failure, zero when the
	// request never got a response.
	LastStatus int
}

// IsHealthy reports a closed breaker.
func (h ProviderHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded reports a half-open breaker, probing after a cooldown.
func (h ProviderHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy reports an open breaker.
func (h ProviderHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry records the clients of one process and the outcome of their calls.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*tracked
	now     func() time.Time
}

type tracked struct {
	client     *Client
	success    time.Time
	failure    time.Time
	lastErr    string
	lastStatus int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*tracked),
		now:     time.Now,
	}
}

// Register adds c, replacing any client registered under the same name.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Name()] = &tracked{client: c}
}

// Report records a call outcome; a nil err is a success. Unknown names are
// ignored.
func (r *Registry) Report(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.clients[name]
	if !ok {
		return
	}
	if err == nil {
		t.success = r.now()
		return
	}
	t.failure = r.now()
	t.lastErr = err.Error()
	t.lastStatus = 0
	var se *StatusError
	if errors.As(err, &se) {
		t.lastStatus = se.StatusCode
	}
}

// Health returns the view of one upstream.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.clients[name]
	if !ok {
		return ProviderHealth{}, false
	}
	return t.view(name), true
}

// Snapshot returns every upstream ordered by name.
func (r *Registry) Snapshot() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(r.clients))
	for name, t := range r.clients {
		out = append(out, t.view(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Degraded lists the upstreams whose breaker is not closed.
func (r *Registry) Degraded() []string {
	var names []string
	for _, h := range r.Snapshot() {
		if !h.IsHealthy() {
			names = append(names, h.Name)
		}
	}
	return names
}

func (t *tracked) view(name string) ProviderHealth {
	return ProviderHealth{
		Name:          name,
		CircuitState:  t.client.State(),
		Counts:        t.client.Counts(),
		LastSuccessAt: timePtr(t.success),
		LastFailureAt: timePtr(t.failure),
		LastError:     t.lastErr,
		LastStatus:    t.lastStatus,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
