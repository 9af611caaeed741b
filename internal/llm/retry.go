package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// RetryConfig configures retry behavior for LLM calls.
type RetryConfig struct {
	MaxAttempts    int           // Total attempts including the first (default 5)
	HintBuffer     time.Duration // Added on top of a parsed rate-limit hint
	RateLimitDelay time.Duration // Delay when a 429 carries no parseable hint
	FailureDelay   time.Duration // Delay after a transient non-429 failure
	MaxHint        time.Duration // Upper clamp for parsed hints
	Timeout        time.Duration // Per-attempt timeout
}

// DefaultRetryConfig returns the retry policy used in production.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:    5,
		HintBuffer:     100 * time.Millisecond,
		RateLimitDelay: 1500 * time.Millisecond,
		FailureDelay:   2 * time.Second,
		MaxHint:        30 * time.Second,
		Timeout:        45 * time.Second,
	}
}

// RetryProvider wraps a Provider with timeout and retry logic.
//
// Rate-limit responses (429) are retried after the wait the provider asked
// for, when one can be parsed out of the error message, plus a small buffer.
// An unparseable 429 waits a fixed delay. Transient transport failures wait a
// longer fixed delay. Terminal errors (any other HTTP status, or a success
// response with no choices) are returned immediately.
type RetryProvider struct {
	inner  Provider
	config *RetryConfig

	// sleep is swapped out in tests to observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryProvider wraps an existing provider with retry logic.
func NewRetryProvider(inner Provider, config *RetryConfig) *RetryProvider {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &RetryProvider{
		inner:  inner,
		config: config,
		sleep:  sleepCtx,
	}
}

// Name returns the underlying provider name.
func (r *RetryProvider) Name() string {
	return r.inner.Name()
}

// Complete sends a prompt, retrying per the configured policy.
func (r *RetryProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	var resp *Response
	err := r.do(ctx, func(attemptCtx context.Context) error {
		var callErr error
		resp, callErr = r.inner.Complete(attemptCtx, prompt, opts)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Embed sends an embedding request, retrying per the configured policy.
func (r *RetryProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := r.do(ctx, func(attemptCtx context.Context) error {
		var callErr error
		vectors, callErr = r.inner.Embed(attemptCtx, texts)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (r *RetryProvider) do(ctx context.Context, call func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.config.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		}
		err := call(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if IsTerminal(err) {
			return err
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return err
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		if sleepErr := r.sleep(ctx, r.delayFor(err)); sleepErr != nil {
			return sleepErr
		}
	}

	return fmt.Errorf("llm: %d attempts exhausted: %w", r.config.MaxAttempts, lastErr)
}

// delayFor picks the wait before the next attempt.
func (r *RetryProvider) delayFor(err error) time.Duration {
	if IsRateLimit(err) {
		var apiErr *APIError
		errors.As(err, &apiErr)
		if hint, ok := parseRetryHint(apiErr.Message); ok {
			if hint > r.config.MaxHint {
				hint = r.config.MaxHint
			}
			return hint + r.config.HintBuffer
		}
		return r.config.RateLimitDelay
	}
	return r.config.FailureDelay
}

// retryHintRe matches the advisory wait in provider rate-limit messages,
// e.g. "Please try again in 250ms." or "try again in 1.5s".
var retryHintRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(ms|s)\b`)

// parseRetryHint extracts the suggested wait from a rate-limit error message.
// The value is a hint, not a promise; callers clamp it.
func parseRetryHint(msg string) (time.Duration, bool) {
	m := retryHintRe.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v < 0 {
		return 0, false
	}
	unit := time.Second
	if m[2] == "ms" {
		unit = time.Millisecond
	}
	return time.Duration(v * float64(unit)), true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WrapWithRetry wraps a provider using retry settings from config.
func WrapWithRetry(provider Provider, cfg ProviderConfig) Provider {
	if provider == nil {
		return nil
	}
	config := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		config.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.Timeout > 0 {
		config.Timeout = cfg.Timeout
	}
	return NewRetryProvider(provider, config)
}
