package rate

import (
	"net/http"
	"time"

	"github.com/massmux/phoenixd-lnurl/internal/api"
	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultBurst = 20
	// limiters of clients that went quiet are dropped after this
	idleExpiration = 10 * time.Minute
)

// Limiter hands out one token bucket per key.
type Limiter struct {
	keys *gocache.Cache
	r    rate.Limit
	b    int
}

// NewLimiter allows r requests per second per key with burst b.
func NewLimiter(r float64, b int) *Limiter {
	if b <= 0 {
		b = DefaultBurst
	}
	return &Limiter{
		keys: gocache.New(idleExpiration, 2*idleExpiration),
		r:    rate.Limit(r),
		b:    b,
	}
}

// GetLimiter returns the rate limiter for the provided key if it exists.
// Otherwise a new one is added for key.
func (i *Limiter) GetLimiter(key string) *rate.Limiter {
	if l, ok := i.keys.Get(key); ok {
		// touch, so active clients keep their bucket
		i.keys.SetDefault(key, l)
		return l.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(i.r, i.b)
	if err := i.keys.Add(key, limiter, gocache.DefaultExpiration); err != nil {
		// lost the race against a concurrent request
		if l, ok := i.keys.Get(key); ok {
			return l.(*rate.Limiter)
		}
	}
	return limiter
}

func (i *Limiter) Allow(key string) bool {
	return i.GetLimiter(key).Allow()
}

// Middleware rejects requests with 429 once the client address ran out of
// tokens.
func (i *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := api.ClientIP(r)
		if !i.Allow(ip) {
			log.Warnf("[rate] %s exceeded the request limit on %s", ip, r.URL.Path)
			api.WriteError(w, zerrors.Newf(zerrors.RateLimitedError, "Too many requests"), false)
			return
		}
		next.ServeHTTP(w, r)
	})
}
