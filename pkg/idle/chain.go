package idle

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrNoProvider is matched by the error a Chain returns when none of its providers could answer.
var ErrNoProvider = errors.New("no idle time provider available")

// ExhaustedError is returned by Chain.IdleTime when every provider failed.
// errors.Is(err, ErrNoProvider) reports true for it. The per-provider reasons are kept for
// diagnostics but are not part of the error chain.
type ExhaustedError struct {
	// Reasons holds one error per provider that was tried, in order.
	Reasons []error

	// OptIn is the name of a provider that is not in the chain but could add coverage.
	OptIn string
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	b.WriteString(ErrNoProvider.Error())
	if e.OptIn != "" {
		fmt.Fprintf(&b, ", consider enabling the %q provider", e.OptIn)
	}
	if len(e.Reasons) > 0 {
		b.WriteString(" (")
		b.WriteString(multierr.Combine(e.Reasons...).Error())
		b.WriteString(")")
	}

	return b.String()
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrNoProvider
}

// Result is the outcome of asking a single provider, as returned by Chain.Probe.
type Result struct {
	Provider string
	Idle     time.Duration
	Err      error
}

// Chain asks providers in order and returns the first successful answer.
// It is safe for concurrent use if its providers are.
type Chain struct {
	logger    *zap.Logger
	optIn     string
	providers []Provider
}

// NewChain creates a Chain that tries providers in the given order.
// logger may be nil.
func NewChain(logger *zap.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Chain{
		logger:    logger,
		providers: providers,
	}
}

// SuggestOptIn names a provider that is absent from the chain. It is mentioned in the
// ExhaustedError so the caller knows how to add coverage.
func (c *Chain) SuggestOptIn(name string) {
	for _, p := range c.providers {
		if p.Name() == name {
			return
		}
	}
	c.optIn = name
}

// Providers returns the names of the providers in the order they are tried.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}

	return names
}

// IdleTime returns the idle time reported by the first provider that succeeds.
// Providers after it are not called. If all providers fail, an *ExhaustedError is returned.
func (c *Chain) IdleTime() (time.Duration, error) {
	var reasons []error
	for _, p := range c.providers {
		d, err := p.IdleTime()
		if err == nil {
			return Clamp(d), nil
		}

		c.logger.Debug("idle time provider unavailable",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
		reasons = append(reasons, fmt.Errorf("%s: %w", p.Name(), err))
	}

	return 0, &ExhaustedError{
		Reasons: reasons,
		OptIn:   c.optIn,
	}
}

// Probe asks every provider, regardless of earlier successes, and returns the outcomes in order.
func (c *Chain) Probe() []Result {
	results := make([]Result, len(c.providers))
	for i, p := range c.providers {
		d, err := p.IdleTime()
		results[i] = Result{
			Provider: p.Name(),
			Err:      err,
		}
		if err == nil {
			results[i].Idle = Clamp(d)
		}
	}

	return results
}

// Close closes every provider that implements io.Closer.
func (c *Chain) Close() error {
	var err error
	for _, p := range c.providers {
		if closer, ok := p.(io.Closer); ok {
			if closeErr := closer.Close(); closeErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to close %s: %w", p.Name(), closeErr))
			}
		}
	}

	return err
}

// Bounded runs fn and waits at most timeout for it to return.
// When the deadline passes, an error wrapping ErrUnavailable is returned and fn is left to finish
// in the background; its result is discarded.
func Bounded(timeout time.Duration, fn func() (time.Duration, error)) (time.Duration, error) {
	if timeout <= 0 {
		return fn()
	}

	type result struct {
		d   time.Duration
		err error
	}
	// Buffered so an abandoned fn does not block forever.
	done := make(chan result, 1)
	go func() {
		d, err := fn()
		done <- result{d: d, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.d, r.err
	case <-timer.C:
		return 0, Unavailablef("no answer within %s", timeout)
	}
}
