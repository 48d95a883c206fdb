package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"emailguard/internal/config"
	"emailguard/internal/dnsresolve"
	"emailguard/internal/metrics"
	"emailguard/internal/ratelimit"
	"emailguard/internal/smtp"
	"emailguard/internal/verify"
)

// buildVerifier assembles a Verifier from cfg around the given limiter and
// throttle, dialing MX hosts directly or through the configured SOCKS5 proxy.
func buildVerifier(cfg *config.Config, limiter ratelimit.Limiter, throttle *ratelimit.DomainThrottle) (*verify.Verifier, error) {
	dialer := smtp.NewDirectDialer()
	if cfg.Socks5Addr != "" {
		d, err := smtp.NewSOCKS5Dialer(cfg.Socks5Addr, cfg.ProxyUser, cfg.ProxyPass)
		if err != nil {
			return nil, fmt.Errorf("configuring SOCKS5 dialer: %w", err)
		}
		dialer = d
	}

	return &verify.Verifier{
		Resolver:     dnsresolve.New(),
		Limiter:      limiter,
		Throttle:     throttle,
		Metrics:      metrics.New(),
		SMTPDeadline: cfg.SMTPDeadline,
		HELODomain:   cfg.HELODomain,
		MailFrom:     cfg.MailFrom,
		Dialer:       dialer,
	}, nil
}

// newRedisClient connects to cfg's Redis instance.
func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// buildLimiter returns a Redis-backed sliding-window limiter when rdb is
// non-nil, otherwise an in-memory one. It is used by "serve"; the standalone
// "check" and "bulk" commands build an in-memory limiter directly.
func buildLimiter(cfg *config.Config, rdb *redis.Client) ratelimit.Limiter {
	window := cfg.RateLimit.Window()
	if rdb != nil {
		return ratelimit.NewRedis(rdb, cfg.RateLimit.RequestsPerHour, window)
	}
	return ratelimit.NewMemory(cfg.RateLimit.RequestsPerHour, window)
}
