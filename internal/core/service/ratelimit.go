package service

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/pkg/clock"
	"github.com/mtaadao/mtaa-realtime/pkg/cmap"
)

// KeyBy selects what a policy counts requests against.
type KeyBy string

const (
	KeyByIP   KeyBy = "ip"
	KeyByUser KeyBy = "user"
)

// Policy names.
const (
	PolicyGeneral  = "general"
	PolicyAuth     = "auth"
	PolicyPayment  = "payment"
	PolicyProposal = "proposal"
	PolicyVault    = "vault"
)

// Policy allows Max requests per fixed Window for each key. A key's
// window opens with its first request and resets Window later.
type Policy struct {
	Name   string        `json:"name"`
	Window time.Duration `json:"window"`
	Max    int           `json:"max"`
	KeyBy  KeyBy         `json:"key_by"`
}

// Validate checks the policy parameters.
func (p Policy) Validate() error {
	if p.Window <= 0 {
		return fmt.Errorf("policy %s: window must be positive", p.Name)
	}
	if p.Max <= 0 {
		return fmt.Errorf("policy %s: max must be positive", p.Name)
	}
	if p.KeyBy != KeyByIP && p.KeyBy != KeyByUser {
		return fmt.Errorf("policy %s: key_by must be ip or user", p.Name)
	}
	return nil
}

// DefaultPolicies returns the built-in policy set.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		PolicyGeneral:  {Name: PolicyGeneral, Window: 15 * time.Minute, Max: 100, KeyBy: KeyByIP},
		PolicyAuth:     {Name: PolicyAuth, Window: 15 * time.Minute, Max: 5, KeyBy: KeyByIP},
		PolicyPayment:  {Name: PolicyPayment, Window: time.Minute, Max: 10, KeyBy: KeyByUser},
		PolicyProposal: {Name: PolicyProposal, Window: time.Hour, Max: 10, KeyBy: KeyByUser},
		PolicyVault:    {Name: PolicyVault, Window: time.Minute, Max: 20, KeyBy: KeyByUser},
	}
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is when the current window ends.
	Reset time.Time
	// RetryAfter is the time left until Reset; zero when allowed.
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (d Decision) RetryAfterSeconds() int {
	return int(math.Ceil(d.RetryAfter.Seconds()))
}

// window counts requests for one (policy, key).
type window struct {
	mu     sync.Mutex
	start  time.Time
	length time.Duration
	count  int
}

// expiredAt reports whether the window has closed at now.
func (w *window) expiredAt(now time.Time) bool {
	return !now.Before(w.start.Add(w.length)) || now.Before(w.start)
}

func (w *window) idleAt(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expiredAt(now)
}

// RateLimiter keeps one fixed window per (policy, key).
type RateLimiter struct {
	policies map[string]Policy
	windows  *cmap.Map[string, *window]

	clock   clock.Clock
	logger  *slog.Logger
	metrics Metrics

	// warn throttles the rate limit exceeded log under a flood.
	warn rate.Sometimes
}

// NewRateLimiter creates a limiter over policies.
func NewRateLimiter(policies map[string]Policy, opts ...Option) *RateLimiter {
	o := buildOptions(opts)
	copied := make(map[string]Policy, len(policies))
	for name, p := range policies {
		p.Name = name
		copied[name] = p
	}
	return &RateLimiter{
		policies: copied,
		windows:  cmap.New[string, *window](),
		clock:    o.clock,
		logger:   o.logger.With("component", "ratelimit"),
		metrics:  o.metrics,
		warn:     rate.Sometimes{First: 10, Interval: 10 * time.Second},
	}
}

// Policy returns a policy by name.
func (r *RateLimiter) Policy(name string) (Policy, bool) {
	p, ok := r.policies[name]
	return p, ok
}

// Policies returns all policies sorted by name.
func (r *RateLimiter) Policies() []Policy {
	out := make([]Policy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Allow counts one request for key under the named policy. Denied
// requests are not counted.
func (r *RateLimiter) Allow(policy, key string) (Decision, error) {
	p, ok := r.policies[policy]
	if !ok {
		return Decision{}, domain.ErrInvalidArgument.WithDetails("unknown rate limit policy: " + policy)
	}

	now := r.clock.Now()
	w, _ := r.windows.LoadOrCompute(p.Name+"|"+key, func() *window {
		return &window{start: now, length: p.Window}
	})

	w.mu.Lock()
	if w.expiredAt(now) {
		w.start = now
		w.count = 0
	}
	reset := w.start.Add(p.Window)
	allowed := w.count < p.Max
	if allowed {
		w.count++
	}
	remaining := p.Max - w.count
	w.mu.Unlock()

	d := Decision{Allowed: allowed, Limit: p.Max, Remaining: remaining, Reset: reset}
	if !allowed {
		d.RetryAfter = reset.Sub(now)
		r.metrics.IncRateLimited(p.Name)
		r.warn.Do(func() {
			r.logger.Warn("rate limit exceeded", "policy", p.Name, "client", key, "retry_after", d.RetryAfter)
		})
	}
	return d, nil
}

// SweepIdle drops windows that have closed; a fresh window would be
// identical. It returns the number dropped.
func (r *RateLimiter) SweepIdle() int {
	now := r.clock.Now()
	return r.windows.DeleteIf(func(_ string, w *window) bool {
		return w.idleAt(now)
	})
}

// Len returns the number of live windows.
func (r *RateLimiter) Len() int {
	return r.windows.Count()
}
