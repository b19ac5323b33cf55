// Package report acquires and decodes the IAM credential report.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"
)

// ErrReportUnavailable is returned when the credential report did not become
// ready within the retry limit
var ErrReportUnavailable = errors.New("credential report unavailable")

// DefaultBackoff is the wait between two retrieval attempts
const DefaultBackoff = time.Second

// Provider generates and serves credential reports
type Provider interface {
	// GenerateCredentialReport asks the provider to start building a report.
	GenerateCredentialReport(ctx context.Context) error
	// GetCredentialReport returns the report content, or an error while it is not ready.
	GetCredentialReport(ctx context.Context) ([]byte, error)
}

// Fetcher polls a Provider until the credential report is ready
type Fetcher struct {
	provider   Provider
	retryLimit int
	backoff    time.Duration
	clock      quartz.Clock
	logger     *zap.Logger

	// OnAttempt, when set, is called before each retrieval attempt.
	OnAttempt func(attempt, limit int)
}

// NewFetcher creates a Fetcher allowing up to retryLimit retrieval attempts
func NewFetcher(provider Provider, retryLimit int, clock quartz.Clock, logger *zap.Logger) *Fetcher {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		provider:   provider,
		retryLimit: retryLimit,
		backoff:    DefaultBackoff,
		clock:      clock,
		logger:     logger,
	}
}

// SetBackoff sets the wait between retrieval attempts
func (f *Fetcher) SetBackoff(d time.Duration) {
	f.backoff = d
}

// Fetch requests a new credential report and returns its content together
// with the number of retrieval attempts it took
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, int, error) {
	if f.retryLimit < 1 {
		return nil, 0, fmt.Errorf("invalid retry limit %d: must be at least 1", f.retryLimit)
	}

	if err := f.provider.GenerateCredentialReport(ctx); err != nil {
		return nil, 0, fmt.Errorf("error requesting credential report generation: %w", err)
	}

	for attempt := 1; ; attempt++ {
		if f.OnAttempt != nil {
			f.OnAttempt(attempt, f.retryLimit)
		}

		content, err := f.provider.GetCredentialReport(ctx)
		if err == nil {
			f.logger.Info("got credential report",
				zap.Int("attempts", attempt),
				zap.Int("bytes", len(content)),
			)
			return content, attempt, nil
		}

		f.logger.Info("credential report not ready",
			zap.Int("attempt", attempt),
			zap.Int("retry_limit", f.retryLimit),
			zap.Error(err),
		)

		if attempt >= f.retryLimit {
			return nil, attempt, fmt.Errorf("%w: unable to get credential report after %d attempts: %v",
				ErrReportUnavailable, attempt, err)
		}

		if err := f.wait(ctx); err != nil {
			return nil, attempt, err
		}
	}
}

func (f *Fetcher) wait(ctx context.Context) error {
	timer := f.clock.NewTimer(f.backoff, "report", "backoff")
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
