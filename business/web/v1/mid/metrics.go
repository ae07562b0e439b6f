package mid

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/cryptoverse/foundation/web"
	"github.com/dimfeld/httptreemux/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptoverse",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	duration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cryptoverse",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	panics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cryptoverse",
		Name:      "http_panics_total",
		Help:      "Handlers that panicked.",
	})
)

// Metrics updates program counters.
func Metrics() web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// Call the next handler.
			err := handler(ctx, w, r)

			route := httptreemux.ContextRoute(ctx)
			if route == "" {
				route = r.URL.Path
			}

			status := http.StatusInternalServerError
			if v, verr := web.GetValues(ctx); verr == nil && v.StatusCode != 0 {
				status = v.StatusCode
				duration.WithLabelValues(r.Method, route).Observe(time.Since(v.Now).Seconds())
			}

			requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return m
}
