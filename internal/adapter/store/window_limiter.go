package store

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"chatbot-gateway/internal/domain/entity"
)

const (
	burstWindow  = 10 * time.Second
	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

// WindowLimiter is an in-process sliding-window rate limiter tracking
// three nested windows (burst/minute/hour) per key. Records are guarded
// by a per-key lock so unrelated keys never contend; the registry lock
// is only held long enough to look a record up.
type WindowLimiter struct {
	mu      sync.Mutex
	records map[string]*rateLimitRecord

	burstLimit  int
	minuteLimit int
	hourLimit   int
	staleAfter  time.Duration

	logger *slog.Logger
	now    func() time.Time
	stop   chan struct{}
}

type rateLimitRecord struct {
	mu         sync.Mutex
	timestamps []time.Time
}

type WindowLimiterConfig struct {
	BurstLimit        int
	RequestsPerMinute int
	RequestsPerHour   int
	SweepInterval     time.Duration
	StaleAfter        time.Duration
}

func NewWindowLimiter(cfg WindowLimiterConfig, logger *slog.Logger) *WindowLimiter {
	l := &WindowLimiter{
		records:     make(map[string]*rateLimitRecord),
		burstLimit:  cfg.BurstLimit,
		minuteLimit: cfg.RequestsPerMinute,
		hourLimit:   cfg.RequestsPerHour,
		staleAfter:  cfg.StaleAfter,
		logger:      logger,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	if cfg.SweepInterval > 0 {
		go l.sweepLoop(cfg.SweepInterval)
	}
	return l
}

// Allow checks all three windows and records the request on acceptance.
// The whole check-then-append sequence runs under the record's lock so
// concurrent calls for the same key cannot interleave.
func (l *WindowLimiter) Allow(key string) bool {
	if strings.TrimSpace(key) == "" {
		l.logger.Warn("rate limit check with blank key")
		return false
	}

	rec := l.record(key, true)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := l.now()
	rec.prune(now)

	if burst := rec.countSince(now.Add(-burstWindow)); burst >= l.burstLimit {
		l.logger.Warn("burst limit exceeded", "key", key, "requests", burst)
		return false
	}
	if minute := rec.countSince(now.Add(-minuteWindow)); minute >= l.minuteLimit {
		l.logger.Warn("per-minute limit exceeded", "key", key, "requests", minute)
		return false
	}
	if hour := rec.countSince(now.Add(-hourWindow)); hour >= l.hourLimit {
		l.logger.Warn("per-hour limit exceeded", "key", key, "requests", hour)
		return false
	}

	rec.timestamps = append(rec.timestamps, now)
	return true
}

// Status reports window usage without recording a request.
func (l *WindowLimiter) Status(key string) entity.RateLimitStatus {
	status := entity.RateLimitStatus{
		MaxMinuteRequests: l.minuteLimit,
		MaxHourRequests:   l.hourLimit,
		MaxBurstRequests:  l.burstLimit,
	}
	if strings.TrimSpace(key) == "" {
		return status
	}
	rec := l.record(key, false)
	if rec == nil {
		return status
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	now := l.now()
	rec.prune(now)
	status.BurstRequests = rec.countSince(now.Add(-burstWindow))
	status.MinuteRequests = rec.countSince(now.Add(-minuteWindow))
	status.HourRequests = rec.countSince(now.Add(-hourWindow))
	return status
}

// Reset drops a key's record unconditionally.
func (l *WindowLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.records, key)
	l.mu.Unlock()
	l.logger.Info("rate limits reset", "key", key)
}

func (l *WindowLimiter) Close() {
	close(l.stop)
}

func (l *WindowLimiter) record(key string, create bool) *rateLimitRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[key]
	if !ok && create {
		rec = &rateLimitRecord{}
		l.records[key] = rec
	}
	return rec
}

func (l *WindowLimiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// sweep removes records that are empty or whose last activity is older
// than the staleness bound, keeping memory proportional to active keys.
func (l *WindowLimiter) sweep() {
	cutoff := l.now().Add(-l.staleAfter)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, rec := range l.records {
		rec.mu.Lock()
		rec.prune(l.now())
		stale := len(rec.timestamps) == 0 ||
			rec.timestamps[len(rec.timestamps)-1].Before(cutoff)
		rec.mu.Unlock()
		if stale {
			delete(l.records, key)
		}
	}
	l.logger.Debug("swept rate limit records", "active_keys", len(l.records))
}

// prune drops timestamps outside the longest window. A timestamp exactly
// one window old counts as expired.
func (r *rateLimitRecord) prune(now time.Time) {
	cutoff := now.Add(-hourWindow)
	i := 0
	for i < len(r.timestamps) && !r.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.timestamps = append(r.timestamps[:0], r.timestamps[i:]...)
	}
}

func (r *rateLimitRecord) countSince(cutoff time.Time) int {
	n := 0
	for _, ts := range r.timestamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
