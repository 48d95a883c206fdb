package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestDomainThrottleDefaultRateAppliesToUnknownDomain(t *testing.T) {
	th := NewDomainThrottle(100, 5)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := th.Wait(ctx, "unknown-provider.example"); err != nil {
		t.Fatalf("first wait should not block: %v", err)
	}
	if float64(th.hostLimiter("unknown-provider.example").Limit()) != 5 {
		t.Errorf("unknown domain rate = %v, want the 5/s default", th.hostLimiter("unknown-provider.example").Limit())
	}
}

func TestDomainThrottleSetRateOverride(t *testing.T) {
	th := NewDomainThrottle(100, 5)
	th.SetRate("slow.example", 1)

	l := th.hostLimiter("slow.example")
	if float64(l.Limit()) != 1 {
		t.Errorf("override rate = %v, want 1", l.Limit())
	}
}

func TestDefaultDomainThrottleKnownProviders(t *testing.T) {
	th := DefaultDomainThrottle()
	if float64(th.hostLimiter("gmail.com").Limit()) != 2 {
		t.Error("gmail.com should be throttled to 2/s")
	}
	if float64(th.hostLimiter("outlook.com").Limit()) != 1 {
		t.Error("outlook.com should be throttled to 1/s")
	}
	if float64(th.hostLimiter("some-other-domain.com").Limit()) != 5 {
		t.Error("unlisted domains should fall back to the 5/s default")
	}
}

func TestDomainThrottleCaseInsensitive(t *testing.T) {
	th := DefaultDomainThrottle()
	lower := th.hostLimiter("gmail.com")
	upper := th.hostLimiter("GMAIL.COM")
	if lower.Limit() != upper.Limit() {
		t.Error("domain lookups should be case-insensitive")
	}
}
