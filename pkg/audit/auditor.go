// Package audit runs a dormancy audit over all IAM users of an account.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/younsl/iamdormant/internal/models"
	"github.com/younsl/iamdormant/pkg/metrics"
	"github.com/younsl/iamdormant/pkg/policy"
	"github.com/younsl/iamdormant/pkg/report"
	"github.com/younsl/iamdormant/pkg/utils"
)

// ReportFetcher returns the raw credential report and the attempts it took
type ReportFetcher interface {
	Fetch(ctx context.Context) ([]byte, int, error)
}

// UserDeactivator revokes access of a single user
type UserDeactivator interface {
	Deactivate(ctx context.Context, userName string) error
}

// Options configures an Auditor
type Options struct {
	Thresholds  models.Thresholds
	Exclude     *utils.NameFilter
	Concurrency int // Concurrent deactivations, 1 keeps report order
	Clock       quartz.Clock
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// Auditor wires report retrieval, classification and deactivation together
type Auditor struct {
	fetcher     ReportFetcher
	deactivator UserDeactivator
	opts        Options
}

// NewAuditor creates an Auditor
func NewAuditor(fetcher ReportFetcher, deactivator UserDeactivator, opts Options) *Auditor {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Auditor{fetcher: fetcher, deactivator: deactivator, opts: opts}
}

// Run performs one audit pass. Only failing to fetch or parse the credential
// report fails the run; deactivation errors are recorded per user.
func (a *Auditor) Run(ctx context.Context, mode models.RunMode) (*models.AuditSummary, error) {
	logger := a.opts.Logger.With(zap.Stringer("mode", mode))
	now := a.opts.Clock.Now("audit", "run")

	content, attempts, err := a.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("error fetching credential report: %w", err)
	}
	a.opts.Metrics.ReportFetchAttempts.Set(float64(attempts))

	credentialReport, err := report.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("error parsing credential report: %w", err)
	}

	users := credentialReport.Users
	logger.Info("found user accounts", zap.Int("users", len(users)))

	summary := &models.AuditSummary{
		Mode:          mode.String(),
		StartedAt:     now,
		FetchAttempts: attempts,
		TotalUsers:    len(users),
		Results:       make([]models.UserAuditResult, len(users)),
	}

	var dormant []int
	for i, user := range users {
		result := a.classify(user, now)
		summary.Results[i] = result

		if result.Excluded {
			summary.ExcludedUsers++
		} else if result.Dormant {
			summary.DormantUsers++
			dormant = append(dormant, i)
		}

		logger.Info("user processed",
			zap.String("user", user.UserName),
			zap.String("password_last_used", result.LastLogin),
			zap.Bool("excluded", result.Excluded),
			zap.Bool("dormant", result.Dormant),
			zap.String("reason", result.Reason),
		)
	}

	logger.Info("found inactive user accounts", zap.Int("dormant_users", summary.DormantUsers))

	if mode == models.Enforce {
		a.deactivateAll(ctx, logger, summary, dormant)
	}

	a.record(summary, now)
	return summary, nil
}

func (a *Auditor) classify(user models.CredentialReportUser, now time.Time) models.UserAuditResult {
	result := models.UserAuditResult{
		User:      user,
		UserName:  user.UserName,
		LastLogin: user.PasswordLastUsed.String(),
	}

	if a.opts.Exclude.Match(user.UserName) {
		result.Excluded = true
		result.Reason = "excluded"
		return result
	}

	decision := policy.Evaluate(user, a.opts.Thresholds, now)
	result.Dormant = decision.Dormant
	result.Reason = string(decision.Reason)
	return result
}

func (a *Auditor) deactivateAll(ctx context.Context, logger *zap.Logger, summary *models.AuditSummary, dormant []int) {
	exec := utils.NewParallelExecutor(a.opts.Concurrency)

	for _, idx := range dormant {
		result := &summary.Results[idx]
		exec.Execute(func() {
			if err := a.deactivator.Deactivate(ctx, result.UserName); err != nil {
				result.Error = err.Error()
				logger.Error("failed to disable user",
					zap.String("user", result.UserName),
					zap.String("password_last_used", result.LastLogin),
					zap.Error(err),
				)
				return
			}
			result.Deactivated = true
			logger.Info("user has been disabled",
				zap.String("user", result.UserName),
				zap.String("password_last_used", result.LastLogin),
			)
		})
	}
	exec.Wait()

	for _, idx := range dormant {
		if summary.Results[idx].Deactivated {
			summary.DeactivatedUsers++
		} else {
			summary.FailedUsers++
		}
	}
}

func (a *Auditor) record(summary *models.AuditSummary, now time.Time) {
	m := a.opts.Metrics
	m.UsersTotal.Set(float64(summary.TotalUsers))
	m.DormantUsers.Set(float64(summary.DormantUsers))
	m.ExcludedUsers.Set(float64(summary.ExcludedUsers))
	for _, r := range summary.Results {
		m.Decisions.WithLabelValues(r.Reason).Inc()
	}
	if summary.DeactivatedUsers > 0 {
		m.Deactivations.WithLabelValues("success").Add(float64(summary.DeactivatedUsers))
	}
	if summary.FailedUsers > 0 {
		m.Deactivations.WithLabelValues("failure").Add(float64(summary.FailedUsers))
	}
	m.LastRunTimestamp.Set(float64(now.Unix()))
}
