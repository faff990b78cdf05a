package resilience

import (
	"context"
	"math"
	"strings"
	"time"
)

// RetryConfig holds the tunables named in §4.2.
type RetryConfig struct {
	MaxRetries       int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	BackoffFactor    float64
	RetryableClasses []string
}

// RetryManager retries an operation with exponential backoff, per §4.2:
// delay after attempt k is min(baseDelay * backoffFactor^k, maxDelay).
type RetryManager struct {
	cfg   RetryConfig
	clock Clock
}

// NewRetryManager constructs a RetryManager.
func NewRetryManager(cfg RetryConfig, clock Clock) *RetryManager {
	if clock == nil {
		clock = RealClock
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 2
	}
	return &RetryManager{cfg: cfg, clock: clock}
}

// RetryableError is implemented by errors that carry a stable retryable
// code recognized by IsRetryable, in addition to the message-substring
// fallback.
type RetryableError interface {
	RetryCode() string
}

var retryableSubstrings = []string{"timeout", "connection", "network", "temporarily"}

// IsRetryable reports whether err carries one of cfg.RetryableClasses or
// its message matches one of the fixed substrings named in §4.2.
func (m *RetryManager) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if re, ok := err.(RetryableError); ok {
		code := re.RetryCode()
		for _, c := range m.cfg.RetryableClasses {
			if c == code {
				return true
			}
		}
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Do runs fn, retrying up to cfg.MaxRetries additional times while the
// error is retryable, sleeping the backoff delay between attempts. On
// final failure the last error is returned unchanged (§4.2).
func (m *RetryManager) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == m.cfg.MaxRetries || !m.IsRetryable(lastErr) {
			return lastErr
		}
		delay := m.delayFor(attempt)
		select {
		case <-ctx.Done():
			return lastErr
		default:
		}
		m.clock.Sleep(delay)
	}
	return lastErr
}

func (m *RetryManager) delayFor(attempt int) time.Duration {
	d := float64(m.cfg.BaseDelay) * math.Pow(m.cfg.BackoffFactor, float64(attempt))
	max := float64(m.cfg.MaxDelay)
	if max > 0 && d > max {
		d = max
	}
	return time.Duration(d)
}
