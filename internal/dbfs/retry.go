package dbfs

import (
	"errors"
	"os"
	"syscall"
	"time"
)

// RetryConfig configures retry behavior for content file reads when the
// content directory lives on NFS.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// WithRetry overrides the retry configuration for content reads.
func WithRetry(cfg RetryConfig) Option {
	return func(s *Store) {
		s.retry = cfg
	}
}

// isStaleError checks if an error is an NFS stale file handle error
func isStaleError(err error) bool {
	if err == nil {
		return false
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}
	return false
}

// readFileWithRetry performs os.ReadFile, retrying with exponential backoff
// on stale file handle errors only.
func (s *Store) readFileWithRetry(path string) ([]byte, error) {
	var lastErr error
	backoff := s.retry.InitialBackoff

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		data, err := os.ReadFile(path)
		if err == nil {
			if attempt > 0 {
				log.Info("stale read succeeded on retry %d for %s", attempt, path)
				s.observer.ObserveStaleRetry("read", true)
			}
			return data, nil
		}

		lastErr = err
		if !isStaleError(err) {
			return nil, err
		}

		// Don't sleep after the last attempt
		if attempt < s.retry.MaxRetries {
			log.Debug("stale file handle for %s, retrying in %v (attempt %d/%d)",
				path, backoff, attempt+1, s.retry.MaxRetries)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > s.retry.MaxBackoff {
				backoff = s.retry.MaxBackoff
			}
		}
	}

	log.Warn("read failed after %d retries for %s: %v", s.retry.MaxRetries, path, lastErr)
	s.observer.ObserveStaleRetry("read", false)
	return nil, lastErr
}
