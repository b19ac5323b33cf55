package models

import "time"

// TimeKind identifies which variant a TimeField holds
type TimeKind int

const (
	// TimeNotApplicable is the "N/A" marker, e.g. last login of a user without a password
	TimeNotApplicable TimeKind = iota
	// TimeValue holds an absolute timestamp
	TimeValue
	// TimeNoInformation is the "no_information" marker, used when a password was never used
	TimeNoInformation
	// TimeNotSupported is the "not_supported" marker reported for the root account
	TimeNotSupported
)

// Credential report sentinel values
const (
	NotApplicable = "N/A"
	NoInformation = "no_information"
	NotSupported  = "not_supported"
)

// TimeField is a credential report date column. The sentinel kinds are kept
// apart from each other and from a zero time.
type TimeField struct {
	Kind TimeKind
	Time time.Time // only set when Kind is TimeValue
}

// At returns a TimeField holding t
func At(t time.Time) TimeField {
	return TimeField{Kind: TimeValue, Time: t}
}

// NotApplicableTime returns the "N/A" variant
func NotApplicableTime() TimeField {
	return TimeField{Kind: TimeNotApplicable}
}

// NeverUsed returns the "no_information" variant
func NeverUsed() TimeField {
	return TimeField{Kind: TimeNoInformation}
}

// NotSupportedTime returns the "not_supported" variant
func NotSupportedTime() TimeField {
	return TimeField{Kind: TimeNotSupported}
}

// IsSet reports whether the field holds a timestamp
func (f TimeField) IsSet() bool {
	return f.Kind == TimeValue
}

// String renders the field the way the credential report does
func (f TimeField) String() string {
	switch f.Kind {
	case TimeValue:
		return f.Time.UTC().Format(time.RFC3339)
	case TimeNoInformation:
		return NoInformation
	case TimeNotSupported:
		return NotSupported
	default:
		return NotApplicable
	}
}

// PasswordState is the password_enabled column
type PasswordState int

const (
	PasswordDisabled PasswordState = iota
	PasswordEnabled
	// PasswordNotSupported is reported for identities that cannot hold a password (root)
	PasswordNotSupported
)

// String renders the state the way the credential report does
func (s PasswordState) String() string {
	switch s {
	case PasswordEnabled:
		return "true"
	case PasswordNotSupported:
		return NotSupported
	default:
		return "false"
	}
}

// AccessKey holds the access_key_N_* columns of a credential report row
type AccessKey struct {
	Active          bool      // access_key_N_active
	LastRotated     TimeField // access_key_N_last_rotated
	LastUsedDate    TimeField // access_key_N_last_used_date
	LastUsedRegion  string    // access_key_N_last_used_region, "N/A" kept verbatim
	LastUsedService string    // access_key_N_last_used_service, "N/A" kept verbatim
}

// SigningCert holds the cert_N_* columns of a credential report row
type SigningCert struct {
	Active      bool      // cert_N_active
	LastRotated TimeField // cert_N_last_rotated
}

// CredentialReportUser represents one row of the IAM credential report
type CredentialReportUser struct {
	UserName             string         // IAM user name, "<root_account>" for root
	ARN                  string         // Full ARN of the user
	CreationTime         time.Time      // When the user was created
	PasswordEnabled      PasswordState  // Whether console login is possible
	PasswordLastUsed     TimeField      // Last console login
	PasswordLastChanged  TimeField      // Last password set or reset
	PasswordNextRotation TimeField      // Next required rotation
	MFAActive            bool           // Whether an MFA device is active
	AccessKeys           [2]AccessKey   // Up to two programmatic access keys
	Certs                [2]SigningCert // Up to two signing certificates
}

// HasConsoleAccess reports whether the user can log in with a password
func (u CredentialReportUser) HasConsoleAccess() bool {
	return u.PasswordEnabled == PasswordEnabled
}

// HasNeverLoggedIn reports whether the password was never used to log in
func (u CredentialReportUser) HasNeverLoggedIn() bool {
	return u.PasswordLastUsed.Kind == TimeNoInformation
}

// CredentialReport is the parsed credential report, rows in report order
type CredentialReport struct {
	Users []CredentialReportUser
}

// Thresholds holds the dormancy policy thresholds for a run
type Thresholds struct {
	InactivityDays  int // Days without login before a user who logged in is dormant
	GracePeriodDays int // Days after a password change before a user is dormant
}

// RunMode selects whether dormant users are only reported or also deactivated
type RunMode int

const (
	ReportOnly RunMode = iota
	Enforce
)

// String returns the mode name used in logs and output
func (m RunMode) String() string {
	if m == Enforce {
		return "enforce"
	}
	return "report-only"
}

// UserAuditResult is the outcome of auditing a single user
type UserAuditResult struct {
	User        CredentialReportUser `json:"-"`
	UserName    string               `json:"userName"`
	LastLogin   string               `json:"passwordLastUsed"`
	Excluded    bool                 `json:"excluded"`
	Dormant     bool                 `json:"dormant"`
	Reason      string               `json:"reason"`
	Deactivated bool                 `json:"deactivated"`
	Error       string               `json:"error,omitempty"`
}

// AuditSummary summarizes an audit run
type AuditSummary struct {
	Mode             string            `json:"mode"`
	StartedAt        time.Time         `json:"startedAt"`
	FetchAttempts    int               `json:"fetchAttempts"`
	TotalUsers       int               `json:"totalUsers"`
	DormantUsers     int               `json:"dormantUsers"`
	ExcludedUsers    int               `json:"excludedUsers"`
	DeactivatedUsers int               `json:"deactivatedUsers"`
	FailedUsers      int               `json:"failedUsers"`
	Results          []UserAuditResult `json:"results"`
}
