package internal

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-kit/kit/endpoint"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/ctxhelper"
	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/metrics"
	"github.com/gamemixer/gamemixer-api/internal/models"
)

// EnsureAdmin is a middleware that checks if the current call has been made with a valid access token
func EnsureAdmin(next endpoint.Endpoint) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		if err := ctxhelper.AuthError(ctx); err != nil {
			return nil, err
		}
		if ctxhelper.User(ctx) == nil {
			// Nobody logged in
			return nil, ErrNotLoggedIn
		}
		return next(ctx, request)
	}
}

// -- HTTP middleware --------------------------------------------------------------------------------------------------

// withCORS allows browsers on any origin to call the API
func withCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	})(next)
}

// makeRateLimiter limits the number of requests per client IP. Requests over the limit are answered with a 429
// error envelope
func makeRateLimiter(cfg models.RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			encodeError(r.Context(), MakeError(
				http.StatusTooManyRequests,
				ErrCodeTooManyRequests,
				"Too many requests - please try again later",
			), w)
		}),
	)
}

// statusRecorder remembers the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withMetrics counts the requests and measures their duration per route
func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

// withRecovery turns panics inside handlers into a 500 error envelope
func withRecovery(logger *logrus.Entry) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithField(log.FldPath, r.URL.Path).Errorf("Recovered from panic: %v", rec)
					encodeError(r.Context(), MakeError(
						http.StatusInternalServerError,
						ErrCodeUnknown,
						"Internal server error",
					).WithCause(fmt.Errorf("%v", rec)), w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
