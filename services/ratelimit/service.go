// Package ratelimit enforces per-client inbound request limits
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Preset names the route class a limit applies to
type Preset string

const (
	PresetGenerate Preset = "generate"
	PresetOptimize Preset = "optimize"
	PresetRead     Preset = "read"
)

// Limit is a token bucket: RPS sustained requests per second, Burst peak
type Limit struct {
	RPS   float64
	Burst int
}

// RateLimitResult represents the result of a rate limit check
type RateLimitResult struct {
	Allowed         bool
	Limit           int
	RetryAfter      time.Duration
	ViolationReason string
}

// idleTTL is how long an unused client bucket is kept
const idleTTL = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitService keeps one token bucket per (preset, client) pair in memory
type RateLimitService struct {
	limits map[Preset]Limit
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewRateLimitService creates a new RateLimitService instance
func NewRateLimitService(limits map[Preset]Limit, logger *zap.Logger) *RateLimitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimitService{
		limits:   limits,
		now:      time.Now,
		logger:   logger,
		visitors: make(map[string]*visitor),
	}
}

// CheckLimit consumes one request for client under preset.
// Presets without a configured limit always allow.
func (s *RateLimitService) CheckLimit(preset Preset, client string) RateLimitResult {
	limit, ok := s.limits[preset]
	if !ok || limit.RPS <= 0 {
		return RateLimitResult{Allowed: true}
	}

	now := s.now()
	key := string(preset) + ":" + client

	s.mu.Lock()
	v, exists := s.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(limit.RPS), limit.Burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	s.mu.Unlock()

	reservation := v.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return s.denied(preset, limit, time.Duration(math.Ceil(1/limit.RPS))*time.Second)
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return s.denied(preset, limit, delay)
	}
	return RateLimitResult{Allowed: true, Limit: limit.Burst}
}

func (s *RateLimitService) denied(preset Preset, limit Limit, retryAfter time.Duration) RateLimitResult {
	return RateLimitResult{
		Allowed:         false,
		Limit:           limit.Burst,
		RetryAfter:      retryAfter,
		ViolationReason: fmt.Sprintf("exceeded %s rate limit of %g requests per second", preset, limit.RPS),
	}
}

// CleanupIdle drops buckets not used for olderThan and returns how many were removed
func (s *RateLimitService) CleanupIdle(olderThan time.Duration) int {
	cutoff := s.now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, v := range s.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(s.visitors, key)
			removed++
		}
	}
	return removed
}

// Run cleans idle buckets every interval until ctx is done
func (s *RateLimitService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.CleanupIdle(idleTTL); n > 0 {
				s.logger.Debug("rate limit buckets cleaned", zap.Int("removed", n))
			}
		}
	}
}
