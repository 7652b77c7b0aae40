package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"keepit/internal/apperr"
	"keepit/internal/auth"
	"keepit/internal/quota"

	"github.com/rs/zerolog"
)

// RateLimit counts requests per caller in the limiter's window. Callers are
// keyed by user when authenticated and by remote address otherwise. A
// failing limiter lets the request through.
func RateLimit(l quota.Limiter, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), clientKey(r))
			if err != nil {
				log.Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			reset := strconv.Itoa(int(math.Ceil(res.Reset.Seconds())))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", reset)
			if !res.Allowed {
				w.Header().Set("Retry-After", reset)
				writeError(w, apperr.ErrRateLimited.WithMessage("rate limit exceeded, try again in %s seconds", reset))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if id, ok := auth.FromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(id.UserID, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
