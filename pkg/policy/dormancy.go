// Package policy decides whether an IAM user is dormant.
//
// The decision only looks at console (password) access:
//
//  1. Users without console access are never dormant.
//  2. Users who never logged in are dormant once their password is older
//     than the grace period.
//  3. Other users are dormant when both their last login is older than the
//     inactivity threshold and their password is older than the grace period.
//
// All comparisons use whole days and are strictly greater-than.
package policy

import (
	"time"

	"github.com/younsl/iamdormant/internal/models"
	"github.com/younsl/iamdormant/pkg/utils"
)

// Reason explains a Decision
type Reason string

const (
	ReasonNoConsoleAccess    Reason = "no_console_access"
	ReasonNeverLoggedInGrace Reason = "never_logged_in_within_grace"
	ReasonNeverLoggedIn      Reason = "never_logged_in_grace_expired"
	ReasonActive             Reason = "active"
	ReasonRecentlyReset      Reason = "recently_reset"
	ReasonInactive           Reason = "inactive"
)

// Decision is the outcome of evaluating a user
type Decision struct {
	Dormant bool
	Reason  Reason
}

// Classify reports whether user is dormant at now
func Classify(user models.CredentialReportUser, thresholds models.Thresholds, now time.Time) bool {
	return Evaluate(user, thresholds, now).Dormant
}

// Evaluate classifies user at now and returns the reason for the decision
func Evaluate(user models.CredentialReportUser, thresholds models.Thresholds, now time.Time) Decision {
	// Covers disabled passwords and the root account ("not_supported").
	if !user.HasConsoleAccess() {
		return Decision{Reason: ReasonNoConsoleAccess}
	}

	graceExpired := exceeds(user.PasswordLastChanged, thresholds.GracePeriodDays, now)

	if user.HasNeverLoggedIn() {
		if graceExpired {
			return Decision{Dormant: true, Reason: ReasonNeverLoggedIn}
		}
		return Decision{Reason: ReasonNeverLoggedInGrace}
	}

	if !exceeds(user.PasswordLastUsed, thresholds.InactivityDays, now) {
		return Decision{Reason: ReasonActive}
	}
	if !graceExpired {
		return Decision{Reason: ReasonRecentlyReset}
	}
	return Decision{Dormant: true, Reason: ReasonInactive}
}

// DaysSince returns the whole days elapsed since f, and false when f holds no timestamp
func DaysSince(f models.TimeField, now time.Time) (int, bool) {
	if !f.IsSet() {
		return 0, false
	}
	return utils.CalculateElapsedDays(f.Time, now), true
}

func exceeds(f models.TimeField, thresholdDays int, now time.Time) bool {
	days, ok := DaysSince(f, now)
	return ok && days > thresholdDays
}
