package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xasusq-eng/Kovers/internal/metrics"
)

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter is a per-IP token bucket. Idle entries are garbage
// collected so the map does not grow unbounded.
type RateLimiter struct {
	mu    sync.Mutex
	m     map[string]*visitor
	r     rate.Limit
	burst int
	ttl   time.Duration
	stop  chan struct{}
}

// NewRateLimiter creates a limiter allowing rps requests per second with
// the given burst per client IP, and starts its GC loop.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		m:     make(map[string]*visitor),
		r:     rate.Limit(rps),
		burst: burst,
		ttl:   2 * time.Minute,
		stop:  make(chan struct{}),
	}
	go rl.gc()
	return rl
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	v, ok := rl.m[ip]
	if ok {
		v.seen = time.Now()
		return v.lim
	}
	lim := rate.NewLimiter(rl.r, rl.burst)
	rl.m[ip] = &visitor{lim: lim, seen: time.Now()}
	return lim
}

func (rl *RateLimiter) gc() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for ip, v := range rl.m {
				if now.Sub(v.seen) > rl.ttl {
					delete(rl.m, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop terminates the GC goroutine.
func (rl *RateLimiter) Stop() {
	select {
	case <-rl.stop:
	default:
		close(rl.stop)
	}
}

// Middleware rejects requests over the per-IP budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.get(clientIP(r.RemoteAddr)).Allow() {
			metrics.RateLimitHits.Inc()
			jsonError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
