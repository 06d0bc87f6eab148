package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/ragpdf-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained requests per second per client on
	// the event, function and document routes.
	defaultRateLimit = 10
	// defaultRateBurst lets a sender post a short run of ingest events, e.g.
	// one per PDF in a directory, without waiting.
	defaultRateBurst = 20

	// limiterIdleTTL is how long a client may stay quiet before its bucket
	// is dropped.
	limiterIdleTTL = 5 * time.Minute
	evictInterval  = time.Minute
)

// clientBucket is one client's token bucket and when it was last used.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps a token bucket per client IP. It is safe for concurrent
// use.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	rps     rate.Limit
	burst   int
	// retryAfter is the Retry-After value in seconds: the time to earn one
	// token back, at least 1.
	retryAfter string
	log        *slog.Logger
	now        func() time.Time
	// onReject, when set, is called with the handler name of every 429.
	onReject func(handler string)
}

// newRateLimiter starts a limiter allowing rps requests per second with the
// given burst per client. The returned function stops the eviction loop.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	wait := 1.0
	if rps > 0 {
		wait = math.Max(1, math.Ceil(1/rps))
	}
	rl := &rateLimiter{
		buckets:    make(map[string]*clientBucket),
		rps:        rate.Limit(rps),
		burst:      burst,
		retryAfter: strconv.FormatFloat(wait, 'f', 0, 64),
		log:        log,
		now:        time.Now,
	}

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(evictInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				rl.evict()
			}
		}
	}()

	var once sync.Once
	return rl, func() { once.Do(func() { close(stop) }) }
}

// allow takes a token from ip's bucket, creating the bucket on first use.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// evict drops buckets idle for longer than limiterIdleTTL.
func (rl *rateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-limiterIdleTTL)
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

// middleware rejects requests over the client's budget with 429 and a
// Retry-After header. handler names the route in logs and metrics.
func (rl *rateLimiter) middleware(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if rl.allow(ip) {
			next.ServeHTTP(w, r)
			return
		}

		logging.FromContext(r.Context()).Warn("ratelimit: limit exceeded",
			slog.String("ip", ip),
			slog.String("handler", handler),
		)
		if rl.onReject != nil {
			rl.onReject(handler)
		}
		w.Header().Set("Retry-After", rl.retryAfter)
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	})
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is not
// trusted; run behind a proxy that rewrites RemoteAddr if per-client limits
// matter.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
