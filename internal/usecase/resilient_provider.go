package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"procurement-core/internal/domain/entity"
	"procurement-core/internal/domain/repository"
	"strings"
	"time"
)

type ResilientProvider struct {
	primary    repository.AIProvider
	fallback   repository.AIProvider // optional, tried once after the primary is exhausted
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration // cap per generation, retries included
}

type ResilientOption func(*ResilientProvider)

func WithRetries(n int, baseDelay time.Duration) ResilientOption {
	return func(r *ResilientProvider) {
		if n >= 0 {
			r.maxRetries = n
		}
		if baseDelay > 0 {
			r.baseDelay = baseDelay
		}
	}
}

func WithGenerationTimeout(d time.Duration) ResilientOption {
	return func(r *ResilientProvider) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewResilientProvider(primary, fallback repository.AIProvider, opts ...ResilientOption) *ResilientProvider {
	r := &ResilientProvider{
		primary:    primary,
		fallback:   fallback,
		maxRetries: 2, // 3 attempts on the primary
		baseDelay:  500 * time.Millisecond,
		timeout:    60 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ResilientProvider) Generate(ctx context.Context, prompt string) (*entity.Generation, error) {
	resCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, attempts, err := r.executeWithRetry(resCtx, r.primary, prompt)
	if err == nil {
		setMeta(resp, "retry_count", attempts-1)
		return resp, nil
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("primary provider failed after %d attempt(s): %w", attempts, err)
	}

	log.Printf("[RELIABILITY] Primary exhausted after %d attempt(s). Switching to FALLBACK. Error: %v", attempts, err)

	resp, ferr := r.fallback.Generate(resCtx, prompt)
	if ferr != nil {
		return nil, fmt.Errorf("both primary and fallback failed: %w", errors.Join(err, ferr))
	}
	setMeta(resp, "fallback_used", true)
	setMeta(resp, "retry_count", 0)
	return resp, nil
}

func (r *ResilientProvider) executeWithRetry(ctx context.Context, p repository.AIProvider, prompt string) (*entity.Generation, int, error) {
	var lastErr error
	attempt := 0
	for ; attempt <= r.maxRetries; attempt++ {
		resp, err := p.Generate(ctx, prompt)
		if err == nil {
			return resp, attempt + 1, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == r.maxRetries {
			break
		}

		wait := r.calculateBackoff(attempt)
		log.Printf("[RELIABILITY] attempt %d failed, retrying in %s: %v", attempt+1, wait.Round(time.Millisecond), err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, attempt + 1, ctx.Err()
		}
	}
	return nil, attempt + 1, lastErr
}

// isRetryable matches rate limits, 5xx and timeouts. SDK errors differ per provider,
// so the check is on the message.
func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "500", "502", "503", "504", "overloaded", "unavailable", "rate limit", "deadline", "timeout"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (r *ResilientProvider) calculateBackoff(attempt int) time.Duration {
	backoff := float64(r.baseDelay) * float64(int(1)<<attempt)
	jitter := (rand.Float64() * 0.2) * backoff // 20% jitter
	return time.Duration(backoff + jitter)
}

func setMeta(resp *entity.Generation, key string, value any) {
	if resp.Metadata == nil {
		resp.Metadata = make(map[string]any)
	}
	resp.Metadata[key] = value
}
