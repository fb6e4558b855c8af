package api

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/tally/pkg/metrics"
)

const (
	defaultLimiterIdle  = 10 * time.Minute
	limiterSweepEvery   = 1024
	defaultRateLimitRPS = 50
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	idle     time.Duration
	calls    int
	now      func() time.Time
	trusted  []*net.IPNet
}

// LimiterOption configures a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithTrustedProxies makes the limiter key requests arriving from one of nets
// on X-Real-IP or X-Forwarded-For. Requests from other peers are keyed on
// their socket address whatever headers they carry.
func WithTrustedProxies(nets ...*net.IPNet) LimiterOption {
	return func(l *RateLimiter) {
		l.trusted = append(l.trusted, nets...)
	}
}

// ParseTrustedProxies parses CIDR blocks or single addresses.
func ParseTrustedProxies(entries []string) ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(e); err == nil {
			out = append(out, n)
			continue
		}
		ip := net.ParseIP(e)
		if ip == nil {
			return nil, fmt.Errorf("invalid trusted proxy %q", e)
		}
		bits := 8 * net.IPv6len
		if v4 := ip.To4(); v4 != nil {
			ip, bits = v4, 8*net.IPv4len
		}
		out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return out, nil
}

// NewRateLimiter allows rps requests per second with the given burst to every
// client.
func NewRateLimiter(rps float64, burst int, opts ...LimiterOption) *RateLimiter {
	if rps <= 0 {
		rps = defaultRateLimitRPS
	}
	if burst < 1 {
		burst = 1
	}
	l := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		idle:     defaultLimiterIdle,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether the client may proceed and consumes a token if so.
func (l *RateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.calls++
	if l.calls%limiterSweepEvery == 0 {
		for id, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.visitors, id)
			}
		}
	}

	v, ok := l.visitors[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[client] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Limit answers 429 once a client exhausts its bucket.
func (l *RateLimiter) Limit(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.rate_limit"
		if !l.Allow(l.clientID(r)) {
			metrics.RecordRateLimited(endpoint)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited", NewKind(op, ErrRateLimited))
			return
		}
		next(w, r)
	}
}

// clientID keys a request on its socket address. Proxy headers are read
// only when that address belongs to a trusted proxy, and only a parseable IP
// is accepted from them.
func (l *RateLimiter) clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil || !l.trustedPeer(peer) {
		return host
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	return peer.String()
}

func (l *RateLimiter) trustedPeer(ip net.IP) bool {
	for _, n := range l.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
