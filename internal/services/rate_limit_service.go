package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/easexpo/marketplace-backend/internal/config"
	"golang.org/x/time/rate"
)

// RateLimitService throttles payment requests per client identifier
type RateLimitService struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// NewRateLimitService creates a token bucket per identifier refilled at cfg.PaymentRPS
func NewRateLimitService(cfg config.RateLimitConfig) *RateLimitService {
	limit := rate.Limit(cfg.PaymentRPS)
	if cfg.PaymentRPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.PaymentBurst
	if burst < 1 {
		burst = 1
	}
	return &RateLimitService{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

// Check consumes one token for identifier or returns a *RateLimitError
func (s *RateLimitService) Check(identifier string) error {
	s.mu.Lock()
	now := s.now()
	v, ok := s.visitors[identifier]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[identifier] = v
	}
	v.lastSeen = now
	s.mu.Unlock()

	reservation := v.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return &RateLimitError{Message: "Too many payment requests"}
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return &RateLimitError{
			Message:    fmt.Sprintf("Too many payment requests. Please retry in %s", delay.Round(time.Second)),
			RetryAfter: delay,
		}
	}
	return nil
}

// CleanupIdle forgets identifiers not seen within idle and returns how many were removed
func (s *RateLimitService) CleanupIdle(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	removed := 0
	for id, v := range s.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(s.visitors, id)
			removed++
		}
	}
	return removed
}

// Tracked returns the number of identifiers currently holding a bucket
func (s *RateLimitService) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}
