package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/pkg/clock"
)

func TestDefaultPolicies(t *testing.T) {
	want := map[string]struct {
		window time.Duration
		max    int
		key    KeyBy
	}{
		PolicyGeneral:  {15 * time.Minute, 100, KeyByIP},
		PolicyAuth:     {15 * time.Minute, 5, KeyByIP},
		PolicyPayment:  {time.Minute, 10, KeyByUser},
		PolicyProposal: {time.Hour, 10, KeyByUser},
		PolicyVault:    {time.Minute, 20, KeyByUser},
	}

	got := DefaultPolicies()
	if len(got) != len(want) {
		t.Fatalf("policies = %d, want %d", len(got), len(want))
	}
	for name, w := range want {
		p := got[name]
		if p.Window != w.window || p.Max != w.max || p.KeyBy != w.key {
			t.Errorf("%s = %+v", name, p)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("%s invalid: %v", name, err)
		}
	}
}

func TestPolicy_Validate(t *testing.T) {
	bad := []Policy{
		{Name: "a", Window: 0, Max: 1, KeyBy: KeyByIP},
		{Name: "b", Window: time.Second, Max: 0, KeyBy: KeyByIP},
		{Name: "c", Window: time.Second, Max: 1, KeyBy: "cookie"},
	}
	for _, p := range bad {
		if p.Validate() == nil {
			t.Errorf("%s should be invalid", p.Name)
		}
	}
}

func TestRateLimiter_AuthPolicy(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	m := newRecordingMetrics()
	rl := NewRateLimiter(DefaultPolicies(), WithClock(clk), WithMetrics(m))

	for i := 0; i < 5; i++ {
		d, err := rl.Allow(PolicyAuth, "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d denied", i+1)
		}
		if d.Remaining != 4-i {
			t.Errorf("request %d remaining = %d, want %d", i+1, d.Remaining, 4-i)
		}
	}

	d, _ := rl.Allow(PolicyAuth, "10.0.0.1")
	if d.Allowed {
		t.Fatal("6th request should be denied")
	}
	if d.RetryAfter != 15*time.Minute {
		t.Errorf("RetryAfter = %v, want 15m", d.RetryAfter)
	}
	if d.RetryAfterSeconds() != 900 {
		t.Errorf("RetryAfterSeconds = %d", d.RetryAfterSeconds())
	}
	if m.limited[PolicyAuth] != 1 {
		t.Errorf("limited metric = %v", m.limited)
	}

	// The window does not refill before it resets.
	clk.Advance(14 * time.Minute)
	d, _ = rl.Allow(PolicyAuth, "10.0.0.1")
	if d.Allowed {
		t.Fatal("request inside the window should be denied")
	}
	if d.RetryAfter != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m to the window reset", d.RetryAfter)
	}

	clk.Advance(time.Minute)
	d, _ = rl.Allow(PolicyAuth, "10.0.0.1")
	if !d.Allowed || d.Remaining != 4 {
		t.Fatalf("first request of the next window = %+v", d)
	}

	// Other keys have their own window.
	if d, _ := rl.Allow(PolicyAuth, "10.0.0.2"); !d.Allowed {
		t.Fatal("other IP should pass")
	}
}

func TestRateLimiter_FixedWindowCeiling(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	rl := NewRateLimiter(DefaultPolicies(), WithClock(clk))

	// One attempt a minute never exceeds Max inside a single window.
	allowed := 0
	for i := 0; i < 15; i++ {
		d, _ := rl.Allow(PolicyAuth, "10.0.0.1")
		if d.Allowed {
			allowed++
		} else {
			want := start.Add(15 * time.Minute).Sub(clk.Now())
			if d.RetryAfter != want {
				t.Errorf("attempt %d RetryAfter = %v, want %v", i+1, d.RetryAfter, want)
			}
			if !d.Reset.Equal(start.Add(15 * time.Minute)) {
				t.Errorf("attempt %d Reset = %v", i+1, d.Reset)
			}
		}
		clk.Advance(time.Minute)
	}
	if allowed != 5 {
		t.Errorf("allowed %d auth attempts inside one window, want 5", allowed)
	}
}

func TestRateLimiter_UnknownPolicy(t *testing.T) {
	rl := NewRateLimiter(DefaultPolicies())
	if _, err := rl.Allow("bogus", "k"); !domain.IsDomainError(err, "MT-ARG-1001") {
		t.Fatalf("err = %v, want MT-ARG-1001", err)
	}
}

func TestRateLimiter_SweepIdle(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(DefaultPolicies(), WithClock(clk))

	rl.Allow(PolicyPayment, "u1")
	rl.Allow(PolicyProposal, "u1")
	if rl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", rl.Len())
	}

	clk.Advance(2 * time.Minute)
	if n := rl.SweepIdle(); n != 1 {
		t.Fatalf("SweepIdle = %d, want 1 (payment window elapsed)", n)
	}
	if _, ok := rl.Policy(PolicyProposal); !ok {
		t.Fatal("proposal policy missing")
	}
	if rl.Len() != 1 {
		t.Fatalf("Len = %d, want 1", rl.Len())
	}

	names := []string{}
	for _, p := range rl.Policies() {
		names = append(names, p.Name)
	}
	if names[0] != PolicyAuth || len(names) != 5 {
		t.Errorf("Policies = %v", names)
	}
}

func TestRateLimiter_ConcurrentSameKey(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(DefaultPolicies(), WithClock(clk))

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, _ := rl.Allow(PolicyAuth, "10.0.0.9"); d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 5 {
		t.Errorf("allowed %d concurrent logins, want 5", got)
	}
	if rl.Len() != 1 {
		t.Errorf("Len = %d, want 1", rl.Len())
	}
}
