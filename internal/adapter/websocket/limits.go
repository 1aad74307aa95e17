package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/livetranslate/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	rateLimiterCleanupEvery = 5 * time.Minute
	rateLimiterIdleAfter    = 10 * time.Minute
)

// LimitReason describes why a subscriber was rejected.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// globalLimiter caps concurrent sockets per instance with lock-free counting.
type globalLimiter struct {
	current atomic.Int64
	max     int64
}

func (l *globalLimiter) acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *globalLimiter) release() {
	l.current.Add(-1)
}

// ipLimiter caps concurrent sockets per client address.
type ipLimiter struct {
	mu     sync.Mutex
	ips    map[string]int
	maxPer int
}

func (l *ipLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ips[ip] >= l.maxPer {
		return false
	}
	l.ips[ip]++
	return true
}

func (l *ipLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count := l.ips[ip]; count > 1 {
		l.ips[ip] = count - 1
	} else {
		delete(l.ips, ip)
	}
}

// rateLimiter limits how fast one address may open new sockets (token bucket).
type rateLimiter struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	limiters  map[string]*rateEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (l *rateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		cutoff := now.Add(-rateLimiterIdleAfter)
		for addr, entry := range l.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(l.limiters, addr)
			}
		}
		l.cleanupAt = now.Add(rateLimiterCleanupEvery)
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &rateEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Limits combines the global, per-IP and rate limits applied before a
// subscriber socket is upgraded.
type Limits struct {
	global *globalLimiter
	perIP  *ipLimiter
	rate   *rateLimiter
}

func NewLimits(globalMax int64, perIPMax int, connectionsPerSecond float64, burst int, clock clockwork.Clock) *Limits {
	metrics.WebSocketConnectionCapacity.Set(float64(globalMax))
	return &Limits{
		global: &globalLimiter{max: globalMax},
		perIP:  &ipLimiter{ips: make(map[string]int), maxPer: perIPMax},
		rate: &rateLimiter{
			clock:     clock,
			limiters:  make(map[string]*rateEntry),
			rate:      rate.Limit(connectionsPerSecond),
			burst:     burst,
			cleanupAt: clock.Now().Add(rateLimiterCleanupEvery),
		},
	}
}

// Acquire reserves a slot for ip. On rejection it returns the reason and
// records it; nothing needs to be released.
func (l *Limits) Acquire(ip string) (bool, LimitReason) {
	reason := l.acquire(ip)
	if reason != "" {
		metrics.WebSocketConnectionsRejected.WithLabelValues(string(reason)).Inc()
		return false, reason
	}
	return true, ""
}

func (l *Limits) acquire(ip string) LimitReason {
	if !l.rate.allow(ip) {
		return LimitReasonRate
	}
	if !l.global.acquire() {
		return LimitReasonGlobal
	}
	if !l.perIP.acquire(ip) {
		l.global.release()
		return LimitReasonPerIP
	}
	return ""
}

// Release frees the slot taken by a successful Acquire.
func (l *Limits) Release(ip string) {
	l.perIP.release(ip)
	l.global.release()
}

// Current returns the number of held slots.
func (l *Limits) Current() int64 {
	return l.global.current.Load()
}
