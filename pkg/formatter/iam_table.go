package formatter

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/younsl/iamdormant/internal/models"
	"github.com/younsl/iamdormant/pkg/utils"
)

// FormatAuditTable writes the per-user audit results in a table format
func FormatAuditTable(writer io.Writer, summary *models.AuditSummary) {
	if len(summary.Results) == 0 {
		fmt.Fprintln(writer, "No IAM users found.")
		return
	}

	// Sort a copy: dormant users first, report order otherwise
	results := make([]models.UserAuditResult, len(summary.Results))
	copy(results, summary.Results)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Dormant && !results[j].Dormant
	})

	// Create tabwriter for aligned output
	w := tabwriter.NewWriter(writer, 0, 0, 3, ' ', tabwriter.TabIndent)

	fmt.Fprintln(w, "USER NAME\tCONSOLE\tLAST LOGIN\tPASSWORD CHANGED\tMFA\tACTIVE KEYS\tDORMANT\tREASON\tACTION")

	for _, r := range results {
		user := r.User

		activeKeys := 0
		for _, key := range user.AccessKeys {
			if key.Active {
				activeKeys++
			}
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.UserName,
			user.PasswordEnabled,
			formatTimeField(user.PasswordLastUsed, summary.StartedAt),
			formatTimeField(user.PasswordLastChanged, summary.StartedAt),
			yesNo(user.MFAActive),
			activeKeys,
			yesNo(r.Dormant),
			r.Reason,
			action(r, summary.Mode),
		)
	}

	w.Flush()

	fmt.Fprintf(writer, "\nSummary: %d dormant IAM users out of %d total users (%d excluded, %d disabled, %d failed) [%s]\n",
		summary.DormantUsers, summary.TotalUsers, summary.ExcludedUsers,
		summary.DeactivatedUsers, summary.FailedUsers, summary.Mode)
}

// FormatAuditJSON writes the audit summary as indented JSON
func FormatAuditJSON(writer io.Writer, summary *models.AuditSummary) error {
	out, err := utils.FormatJSON(summary)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(writer, out)
	return err
}

func formatTimeField(f models.TimeField, now time.Time) string {
	switch f.Kind {
	case models.TimeValue:
		return utils.FormatRelativeDate(f.Time, now)
	case models.TimeNoInformation:
		return "Never"
	default:
		return "-"
	}
}

func action(r models.UserAuditResult, mode string) string {
	switch {
	case r.Deactivated:
		return "disabled"
	case r.Error != "":
		return "failed"
	case r.Dormant && mode == models.Enforce.String():
		return "pending"
	case r.Dormant:
		return "report only"
	default:
		return "-"
	}
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
