package bandwidth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Limiter provides bandwidth limiting functionality using a token bucket algorithm
type Limiter struct {
	rateLimiter *rate.Limiter
	limit       string // Original limit string for display purposes
}

// NewLimiter creates a new bandwidth limiter from a limit string
// Examples: "1M", "100K", "500KB", "2MB"
func NewLimiter(limitStr string) (*Limiter, error) {
	if limitStr == "" {
		return nil, nil // No limiting if empty
	}

	bytesPerSecond, err := parseByteRate(limitStr)
	if err != nil {
		return nil, fmt.Errorf("invalid bandwidth limit '%s': %w", limitStr, err)
	}

	if bytesPerSecond <= 0 {
		return nil, fmt.Errorf("bandwidth limit must be positive, got %d bytes/second", bytesPerSecond)
	}

	// Create rate limiter with burst capacity equal to 1 second of data
	// This allows for smooth transfer while maintaining the overall rate
	burst := int(bytesPerSecond)
	if burst < 1024 {
		burst = 1024 // Minimum burst of 1KB for small limits
	}

	limiter := rate.NewLimiter(rate.Limit(bytesPerSecond), burst)

	return &Limiter{
		rateLimiter: limiter,
		limit:       limitStr,
	}, nil
}

// parseByteRate parses a bandwidth figure like "5", "5K", "5M", "5MB",
// "5KB" into a bytes/second count. A bare number is treated as megabytes,
// matching the config field's documented "5" == 5MB/s shorthand.
func parseByteRate(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, fmt.Errorf("empty rate")
	}
	s = strings.TrimSuffix(s, "B")
	var mult int64 = 1024 * 1024
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		mult = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %s", s)
	}
	return int64(n * float64(mult)), nil
}

// WaitN waits for n bytes to be available according to the rate limit. n may
// exceed the limiter's burst (a file chunk routinely does); rate.Limiter
// rejects a single WaitN larger than its burst outright, so this splits the
// request into burst-sized waits instead.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	if l == nil || l.rateLimiter == nil {
		return nil // No limiting if limiter is nil
	}

	burst := l.rateLimiter.Burst()
	for n > 0 {
		take := n
		if take > burst {
			take = burst
		}
		if err := l.rateLimiter.WaitN(ctx, take); err != nil {
			return err
		}
		n -= take
	}
	return nil
}

// AllowN checks if n bytes can be transferred immediately without waiting
func (l *Limiter) AllowN(n int) bool {
	if l == nil || l.rateLimiter == nil {
		return true // No limiting if limiter is nil
	}

	return l.rateLimiter.AllowN(time.Now(), n)
}

// Limit returns the original limit string
func (l *Limiter) Limit() string {
	if l == nil {
		return ""
	}
	return l.limit
}

// Rate returns the current rate limit in bytes per second
func (l *Limiter) Rate() float64 {
	if l == nil || l.rateLimiter == nil {
		return 0
	}
	return float64(l.rateLimiter.Limit())
}

// Burst returns the current burst capacity
func (l *Limiter) Burst() int {
	if l == nil || l.rateLimiter == nil {
		return 0
	}
	return l.rateLimiter.Burst()
}
