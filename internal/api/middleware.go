package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-Id"

// withRequestID assigns a request id when the caller did not send one
// and echoes it back so log lines can be correlated.
func (s *HTTPServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
			r.Header.Set(requestIDHeader, reqID)
		}
		w.Header().Set(requestIDHeader, reqID)
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", r.Header.Get(requestIDHeader)).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

// agentLimiter throttles activity ticks per agent. Collectors are
// expected to tick a few times a minute; anything faster is a
// misbehaving client and gets a 429.
type agentLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newAgentLimiter(ticksPerMinute int) *agentLimiter {
	if ticksPerMinute <= 0 {
		ticksPerMinute = 12
	}
	return &agentLimiter{
		limiters: make(map[int64]*rate.Limiter),
		limit:    rate.Limit(float64(ticksPerMinute) / 60.0),
		burst:    ticksPerMinute,
	}
}

func (l *agentLimiter) Allow(agentID int64) bool {
	l.mu.Lock()
	lim, ok := l.limiters[agentID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[agentID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
