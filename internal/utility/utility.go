package utility

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RateLimiter is a sliding-window limiter keyed by client IP.
type RateLimiter struct {
	window      time.Duration
	maxAttempts int
	attempts    sync.Map // ip -> []time.Time
	mu          sync.Mutex
	lastSweep   time.Time
}

// NewRateLimiter allows maxAttempts per key within window.
func NewRateLimiter(maxAttempts int, window time.Duration) *RateLimiter {
	return &RateLimiter{window: window, maxAttempts: maxAttempts}
}

// GetRealIP is a helper function to get the user's real IP address
// It checks proxy headers first.
func GetRealIP(c echo.Context) string {
	// X-Forwarded-For can be a list: "client, proxy1, proxy2"
	xForwardedFor := c.Request().Header.Get("X-Forwarded-For")
	if xForwardedFor != "" {
		ips := strings.Split(xForwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}

	xRealIP := c.Request().Header.Get("X-Real-IP")
	if xRealIP != "" {
		return strings.TrimSpace(xRealIP)
	}

	if host, _, err := net.SplitHostPort(c.Request().RemoteAddr); err == nil {
		return host
	}
	return c.RealIP()
}

// CheckIPRateLimit records an attempt for ip and fails once the window is full.
func (l *RateLimiter) CheckIPRateLimit(ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(now)
	}

	var attempts []time.Time
	if val, ok := l.attempts.Load(ip); ok {
		attempts = val.([]time.Time)
	}
	recent := l.recent(attempts, now)

	if len(recent) >= l.maxAttempts {
		l.attempts.Store(ip, recent)
		return fmt.Errorf("too many attempts, please try again later")
	}

	recent = append(recent, now)
	l.attempts.Store(ip, recent)
	return nil
}

// sweep drops every IP with no attempt inside the window.
func (l *RateLimiter) sweep(now time.Time) {
	l.attempts.Range(func(key, val any) bool {
		if len(l.recent(val.([]time.Time), now)) == 0 {
			l.attempts.Delete(key)
		}
		return true
	})
	l.lastSweep = now
}

// Remove old attempts
func (l *RateLimiter) recent(attempts []time.Time, now time.Time) []time.Time {
	var recent []time.Time
	for _, t := range attempts {
		if now.Sub(t) < l.window {
			recent = append(recent, t)
		}
	}
	return recent
}

// GetLogger returns the request-scoped logger set by LoggerMiddleware, or the
// global logger.
func GetLogger(c echo.Context) *zerolog.Logger {
	if logger, ok := c.Get("logger").(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	l := log.Logger
	return &l
}
