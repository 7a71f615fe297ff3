// Package ratelimit implements a fixed-window request counter per client IP,
// held in the remote key-value backend when available and in process memory
// otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

const (
	DefaultWindow = 300 * time.Second
	DefaultLimit  = 10

	keyPrefix = "uootd:rl:quote:v1:"
	// UnknownIP is the shared bucket for requests without proxy headers.
	UnknownIP = "unknown"
)

// Config controls window length and ceiling.
type Config struct {
	Window time.Duration
	Limit  int
}

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed           bool   `json:"allowed"`
	Limit             int    `json:"limit"`
	WindowSeconds     int    `json:"window_seconds"`
	Remaining         int    `json:"remaining"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	Key               string `json:"-"`
	IP                string `json:"-"`
	Backend           string `json:"-"`
}

type memoryWindow struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per IP in fixed windows.
type Limiter struct {
	rdb    *redis.Client
	cfg    Config
	logger *logging.Logger
	now    func() time.Time

	mu        sync.Mutex
	memory    map[string]*memoryWindow
	lastSweep time.Time
}

// New creates a limiter. rdb may be nil for memory-only counting.
func New(rdb *redis.Client, cfg Config, logger *logging.Logger) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Limiter{
		rdb:    rdb,
		cfg:    cfg,
		logger: logger.Component("ratelimit"),
		now:    time.Now,
		memory: make(map[string]*memoryWindow),
	}
}

// Check counts one request from ip and decides whether it may proceed.
func (l *Limiter) Check(ctx context.Context, ip string) Decision {
	if strings.TrimSpace(ip) == "" {
		ip = UnknownIP
	}
	key := keyPrefix + safeKeyPart(ip)

	if l.rdb != nil {
		decision, err := l.checkRemote(ctx, key)
		if err == nil {
			decision.IP = ip
			return decision
		}
		l.logger.Warn("kv rate limit failed, falling back to memory", "error", err)
	}

	decision := l.checkMemory(key)
	decision.IP = ip
	return decision
}

// CheckRequest is Check keyed by the request's client IP.
func (l *Limiter) CheckRequest(r *http.Request) Decision {
	return l.Check(r.Context(), ClientIP(r))
}

func (l *Limiter) base(key, backend string) Decision {
	return Decision{
		Limit:         l.cfg.Limit,
		WindowSeconds: int(l.cfg.Window / time.Second),
		Key:           key,
		Backend:       backend,
	}
}

func (l *Limiter) checkRemote(ctx context.Context, key string) (Decision, error) {
	// INCR and EXPIRE NX run in one transaction, so a key never outlives its
	// window; a key left without a TTL gets one on the next hit.
	var incr *redis.IntCmd
	if _, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.cfg.Window)
		return nil
	}); err != nil {
		return Decision{}, fmt.Errorf("ratelimit: incr: %w", err)
	}
	count := incr.Val()

	d := l.base(key, "kv")
	if count > int64(l.cfg.Limit) {
		d.RetryAfterSeconds = d.WindowSeconds
		if ttl, err := l.rdb.TTL(ctx, key).Result(); err == nil && ttl > 0 {
			d.RetryAfterSeconds = int(math.Ceil(ttl.Seconds()))
		}
		return d, nil
	}
	d.Allowed = true
	d.Remaining = l.cfg.Limit - int(count)
	return d, nil
}

func (l *Limiter) checkMemory(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	d := l.base(key, "memory")
	w, ok := l.memory[key]
	if !ok || !w.resetAt.After(now) {
		l.memory[key] = &memoryWindow{count: 1, resetAt: now.Add(l.cfg.Window)}
		d.Allowed = true
		d.Remaining = max(0, l.cfg.Limit-1)
		return d
	}

	w.count++
	if w.count > l.cfg.Limit {
		d.RetryAfterSeconds = max(1, int(math.Ceil(w.resetAt.Sub(now).Seconds())))
		return d
	}
	d.Allowed = true
	d.Remaining = l.cfg.Limit - w.count
	return d
}

// sweepLocked drops expired windows at most once per window length.
func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.cfg.Window {
		return
	}
	l.lastSweep = now
	for key, w := range l.memory {
		if !w.resetAt.After(now) {
			delete(l.memory, key)
		}
	}
}

// Reset empties the in-process counters.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.memory = make(map[string]*memoryWindow)
	l.mu.Unlock()
}

// ClientIP derives the caller's address from proxy headers. Requests without
// them all share the "unknown" bucket.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first == "" {
			return UnknownIP
		}
		return first
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-Ip")); realIP != "" {
		return realIP
	}
	return UnknownIP
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._:-]`)

func safeKeyPart(value string) string {
	cleaned := unsafeKeyChars.ReplaceAllString(value, "_")
	if len(cleaned) > 120 {
		cleaned = cleaned[:120]
	}
	return cleaned
}
