package server

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodtape/internal/metrics"
	"github.com/desertthunder/moodtape/internal/shared"
	"golang.org/x/time/rate"
)

// Rate limit buckets.
const (
	BucketStream = "stream"
	BucketSearch = "search"
)

const defaultIdleTTL = 10 * time.Minute

type bucketLimit struct {
	rate    rate.Limit
	burst   int
	message string
}

type limiterKey struct {
	session string
	bucket  string
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter gates requests per (session, bucket) pair.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]bucketLimit
	limiters map[limiterKey]*limiterEntry
	idleTTL  time.Duration
	logger   *log.Logger
	now      func() time.Time
}

// NewRateLimiter creates a limiter with the stream and search budgets from cfg.
func NewRateLimiter(cfg shared.RateLimitConfig, logger *log.Logger) *RateLimiter {
	return &RateLimiter{
		buckets: map[string]bucketLimit{
			BucketStream: {perMinute(cfg.StreamPerMinute), max(cfg.StreamBurst, 1), msgStreamLimited},
			BucketSearch: {perMinute(cfg.SearchPerMinute), max(cfg.SearchBurst, 1), msgSearchLimited},
		},
		limiters: make(map[limiterKey]*limiterEntry),
		idleTTL:  defaultIdleTTL,
		logger:   logger,
		now:      time.Now,
	}
}

func perMinute(n int) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(n) / 60)
}

// Allow takes one token from the session's bucket. When denied it reports how long until a token is
// available.
func (rl *RateLimiter) Allow(session, bucket string) (bool, time.Duration) {
	limit, ok := rl.buckets[bucket]
	if !ok {
		return true, 0
	}

	now := rl.now()
	rl.mu.Lock()
	key := limiterKey{session: session, bucket: bucket}
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(limit.rate, limit.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	rl.mu.Unlock()

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Minute
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// EnforceStreamLimit rejects stream requests over the session's budget.
func (rl *RateLimiter) EnforceStreamLimit(next http.Handler) http.Handler {
	return rl.enforce(BucketStream, next)
}

// EnforceSearchLimit rejects search requests over the session's budget.
func (rl *RateLimiter) EnforceSearchLimit(next http.Handler) http.Handler {
	return rl.enforce(BucketSearch, next)
}

func (rl *RateLimiter) enforce(bucket string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := limiterSubject(r)
		ok, wait := rl.Allow(key, bucket)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		seconds := int(math.Ceil(wait.Seconds()))
		if seconds < 1 {
			seconds = 1
		}

		metrics.RecordRateLimited(bucket)
		rl.logger.Warn("rate limit exceeded", "bucket", bucket, "path", r.URL.Path, "retry_after", seconds)

		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		msg := printerFor(r).Sprintf(rl.buckets[bucket].message, seconds)
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: msg})
	})
}

// limiterSubject keys limits on a stored session, falling back to the client address. Sessions started
// on this request don't count, otherwise a client that drops the cookie would get a fresh budget each time.
func limiterSubject(r *http.Request) string {
	if sess, ok := SessionFrom(r.Context()); ok && sess.ID != "" && !sess.New {
		return "session:" + sess.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

// Evict drops limiters that have been idle longer than the idle TTL and returns how many were removed.
func (rl *RateLimiter) Evict() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	n := 0
	cutoff := rl.now().Add(-rl.idleTTL)
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			n++
		}
	}
	return n
}

// Len returns the number of live limiters.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// StartEviction evicts idle limiters every interval until ctx is done.
func (rl *RateLimiter) StartEviction(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := rl.Evict(); n > 0 {
					rl.logger.Debug("evicted idle rate limiters", "count", n)
				}
			}
		}
	}()
}
