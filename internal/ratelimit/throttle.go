package ratelimit

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// DomainThrottle is the per-MX-domain outbound courtesy limiter from
// SPEC_FULL §3/§5.4's domain-stack wiring: distinct from the caller-facing
// sliding window above, it keeps the SMTP verifier from hammering any one
// mail provider's MX, adapted from the teacher's RateLimiterManager (a
// fixed gmail/outlook/yahoo table) into a config-driven default-plus-
// overrides map.
type DomainThrottle struct {
	mu       sync.RWMutex
	global   *rate.Limiter
	perHost  map[string]*rate.Limiter
	defaultRPS float64
}

// NewDomainThrottle builds a throttle with a global rate (across every
// domain) and a default per-domain rate; overrides can be set with SetRate.
func NewDomainThrottle(globalRPS, defaultPerDomainRPS float64) *DomainThrottle {
	return &DomainThrottle{
		global:     rate.NewLimiter(rate.Limit(globalRPS), max1(int(globalRPS))),
		perHost:    make(map[string]*rate.Limiter),
		defaultRPS: defaultPerDomainRPS,
	}
}

// SetRate overrides the per-domain rate for a specific mail domain, e.g. the
// teacher's stricter limits for gmail.com/outlook.com/yahoo.com.
func (t *DomainThrottle) SetRate(domain string, rps float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.perHost[strings.ToLower(domain)] = rate.NewLimiter(rate.Limit(rps), max1(int(rps)))
}

// Wait blocks until both the global and the per-domain limiter admit the
// caller, or ctx is cancelled.
func (t *DomainThrottle) Wait(ctx context.Context, domain string) error {
	if err := t.global.Wait(ctx); err != nil {
		return err
	}
	return t.hostLimiter(domain).Wait(ctx)
}

func (t *DomainThrottle) hostLimiter(domain string) *rate.Limiter {
	domain = strings.ToLower(domain)

	t.mu.RLock()
	l, ok := t.perHost[domain]
	t.mu.RUnlock()
	if ok {
		return l
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok = t.perHost[domain]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Limit(t.defaultRPS), max1(int(t.defaultRPS)))
	t.perHost[domain] = l
	return l
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// DefaultDomainThrottle mirrors the teacher's hardcoded provider table:
// global 10/s, 2/s for Gmail, 1/s for Outlook/Hotmail/Live/Yahoo, 5/s
// default for everything else.
func DefaultDomainThrottle() *DomainThrottle {
	t := NewDomainThrottle(10, 5)
	t.SetRate("gmail.com", 2)
	t.SetRate("googlemail.com", 2)
	t.SetRate("outlook.com", 1)
	t.SetRate("hotmail.com", 1)
	t.SetRate("live.com", 1)
	t.SetRate("yahoo.com", 1)
	return t
}
