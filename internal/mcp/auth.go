package mcp

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultMaxBodyBytes int64 = 1 << 20
	defaultCallsPerMin        = 60
)

// HTTPHandlerConfig guards the streamable HTTP transport. Every request needs
// the bearer token; calls are counted per client host in one-minute windows.
type HTTPHandlerConfig struct {
	AuthToken       string
	RateLimitPerMin int
	MaxBodyBytes    int64
}

type gate struct {
	next    http.Handler
	token   []byte
	maxBody int64
	limiter *windowLimiter
}

func wrapHTTPHandler(next http.Handler, cfg HTTPHandlerConfig) http.Handler {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &gate{
		next:    next,
		token:   []byte(strings.TrimSpace(cfg.AuthToken)),
		maxBody: maxBody,
		limiter: newWindowLimiter(cfg.RateLimitPerMin, time.Now),
	}
}

func (g *gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	provided, ok := bearerToken(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if len(g.token) == 0 || subtle.ConstantTimeCompare([]byte(provided), g.token) != 1 {
		writeJSONError(w, http.StatusForbidden, "invalid bearer token")
		return
	}

	if wait, ok := g.limiter.take(clientHost(r)); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		writeJSONError(w, http.StatusTooManyRequests, "too many MCP calls, slow down")
		return
	}

	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, g.maxBody)
	}
	g.next.ServeHTTP(w, r)
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func clientHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if addr == "" {
		return "unknown"
	}
	return addr
}

// windowLimiter allows limit calls per host per clock minute.
type windowLimiter struct {
	limit int
	now   func() time.Time

	mu     sync.Mutex
	window time.Time
	counts map[string]int
}

func newWindowLimiter(perMin int, now func() time.Time) *windowLimiter {
	if perMin <= 0 {
		perMin = defaultCallsPerMin
	}
	return &windowLimiter{limit: perMin, now: now, counts: make(map[string]int)}
}

// take records one call for host. When the window is used up it reports how
// long until the next one opens.
func (l *windowLimiter) take(host string) (time.Duration, bool) {
	now := l.now()
	window := now.Truncate(time.Minute)

	l.mu.Lock()
	defer l.mu.Unlock()

	if !window.Equal(l.window) {
		l.window = window
		clear(l.counts)
	}
	if l.counts[host] >= l.limit {
		return window.Add(time.Minute).Sub(now), false
	}
	l.counts[host]++
	return 0, true
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
