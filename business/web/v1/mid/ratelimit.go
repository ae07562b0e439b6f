package mid

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ardanlabs/cryptoverse/business/web/errs"
	"github.com/ardanlabs/cryptoverse/foundation/web"
	"golang.org/x/time/rate"
)

// staleAfter is how long a client's limiter is kept after its last request.
const staleAfter = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit enforces a per client token bucket on the routes it wraps. rps
// is the steady state requests per second and burst the maximum burst.
func RateLimit(rps float64, burst int) web.Middleware {
	var mu sync.Mutex
	limiters := make(map[string]*clientLimiter)
	swept := time.Now()

	allow := func(ip string) bool {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()

		if now.Sub(swept) > staleAfter {
			for k, cl := range limiters {
				if now.Sub(cl.lastSeen) > staleAfter {
					delete(limiters, k)
				}
			}
			swept = now
		}

		cl, exists := limiters[ip]
		if !exists {
			cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			limiters[ip] = cl
		}
		cl.lastSeen = now

		return cl.limiter.Allow()
	}

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !allow(ip) {
				w.Header().Set("Retry-After", "1")
				return errs.NewTrusted(errors.New("rate limit exceeded"), http.StatusTooManyRequests)
			}

			// Call the next handler.
			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
