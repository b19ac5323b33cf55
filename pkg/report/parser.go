package report

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/younsl/iamdormant/internal/models"
)

// ErrMalformedReport is returned when a credential report payload does not
// match the expected format
var ErrMalformedReport = errors.New("malformed credential report")

// Columns lists the credential report columns in report order
var Columns = []string{
	"user",
	"arn",
	"user_creation_time",
	"password_enabled",
	"password_last_used",
	"password_last_changed",
	"password_next_rotation",
	"mfa_active",
	"access_key_1_active",
	"access_key_1_last_rotated",
	"access_key_1_last_used_date",
	"access_key_1_last_used_region",
	"access_key_1_last_used_service",
	"access_key_2_active",
	"access_key_2_last_rotated",
	"access_key_2_last_used_date",
	"access_key_2_last_used_region",
	"access_key_2_last_used_service",
	"cert_1_active",
	"cert_1_last_rotated",
	"cert_2_active",
	"cert_2_last_rotated",
}

// Sentinels accepted by a date column besides a timestamp
var (
	lastUsedSentinels = []models.TimeKind{models.TimeNotApplicable, models.TimeNoInformation, models.TimeNotSupported}
	passwordSentinels = []models.TimeKind{models.TimeNotApplicable, models.TimeNotSupported}
	keySentinels      = []models.TimeKind{models.TimeNotApplicable}
)

// Parse decodes a raw credential report. The first line is a header and is
// skipped; every other line must carry exactly len(Columns) comma separated fields.
func Parse(payload []byte) (*models.CredentialReport, error) {
	if !utf8.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid UTF-8", ErrMalformedReport)
	}

	content := strings.TrimSpace(string(payload))
	if content == "" {
		return nil, fmt.Errorf("%w: missing header line", ErrMalformedReport)
	}

	lines := strings.Split(content, "\n")
	users := make([]models.CredentialReportUser, 0, len(lines)-1)

	for i, line := range lines[1:] {
		row := i + 1
		fields := strings.Split(strings.TrimSuffix(line, "\r"), ",")
		if len(fields) != len(Columns) {
			return nil, fmt.Errorf("%w: row %d has %d fields, expected %d",
				ErrMalformedReport, row, len(fields), len(Columns))
		}

		user, err := parseRow(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedReport, row, err)
		}
		users = append(users, user)
	}

	return &models.CredentialReport{Users: users}, nil
}

// rowReader walks the fields of a row in column order, keeping the first error
type rowReader struct {
	fields []string
	pos    int
	err    error
}

func (r *rowReader) next() (string, string) {
	col := Columns[r.pos]
	value := r.fields[r.pos]
	r.pos++
	return col, value
}

func (r *rowReader) text() string {
	_, value := r.next()
	return value
}

func (r *rowReader) timestamp() time.Time {
	col, value := r.next()
	if r.err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		r.err = fmt.Errorf("column %s: invalid timestamp %q", col, value)
	}
	return t
}

func (r *rowReader) boolean() bool {
	col, value := r.next()
	if r.err != nil {
		return false
	}
	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	r.err = fmt.Errorf("column %s: invalid boolean %q", col, value)
	return false
}

func (r *rowReader) passwordState() models.PasswordState {
	col, value := r.next()
	if r.err != nil {
		return models.PasswordDisabled
	}
	switch value {
	case "true":
		return models.PasswordEnabled
	case "false":
		return models.PasswordDisabled
	case models.NotSupported:
		return models.PasswordNotSupported
	}
	r.err = fmt.Errorf("column %s: invalid password state %q", col, value)
	return models.PasswordDisabled
}

func (r *rowReader) timeField(allowed []models.TimeKind) models.TimeField {
	col, value := r.next()
	if r.err != nil {
		return models.TimeField{}
	}

	var field models.TimeField
	switch value {
	case models.NotApplicable:
		field = models.NotApplicableTime()
	case models.NoInformation:
		field = models.NeverUsed()
	case models.NotSupported:
		field = models.NotSupportedTime()
	default:
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			r.err = fmt.Errorf("column %s: invalid value %q", col, value)
			return field
		}
		return models.At(t)
	}

	for _, kind := range allowed {
		if field.Kind == kind {
			return field
		}
	}
	r.err = fmt.Errorf("column %s: %q is not allowed here", col, value)
	return field
}

func (r *rowReader) accessKey() models.AccessKey {
	return models.AccessKey{
		Active:          r.boolean(),
		LastRotated:     r.timeField(keySentinels),
		LastUsedDate:    r.timeField(keySentinels),
		LastUsedRegion:  r.text(),
		LastUsedService: r.text(),
	}
}

func (r *rowReader) cert() models.SigningCert {
	return models.SigningCert{
		Active:      r.boolean(),
		LastRotated: r.timeField(keySentinels),
	}
}

func parseRow(fields []string) (models.CredentialReportUser, error) {
	r := &rowReader{fields: fields}

	// Struct literal fields are evaluated in order, matching Columns.
	user := models.CredentialReportUser{
		UserName:             r.text(),
		ARN:                  r.text(),
		CreationTime:         r.timestamp(),
		PasswordEnabled:      r.passwordState(),
		PasswordLastUsed:     r.timeField(lastUsedSentinels),
		PasswordLastChanged:  r.timeField(passwordSentinels),
		PasswordNextRotation: r.timeField(passwordSentinels),
		MFAActive:            r.boolean(),
	}
	user.AccessKeys[0] = r.accessKey()
	user.AccessKeys[1] = r.accessKey()
	user.Certs[0] = r.cert()
	user.Certs[1] = r.cert()

	if r.err != nil {
		return models.CredentialReportUser{}, r.err
	}
	return user, nil
}

// Format renders a report in credential report format, header included
func Format(report *models.CredentialReport) []byte {
	var b strings.Builder
	b.WriteString(strings.Join(Columns, ","))
	for _, u := range report.Users {
		fields := []string{
			u.UserName,
			u.ARN,
			u.CreationTime.UTC().Format(time.RFC3339),
			u.PasswordEnabled.String(),
			u.PasswordLastUsed.String(),
			u.PasswordLastChanged.String(),
			u.PasswordNextRotation.String(),
			formatBool(u.MFAActive),
		}
		for _, k := range u.AccessKeys {
			fields = append(fields, formatBool(k.Active), k.LastRotated.String(), k.LastUsedDate.String(), k.LastUsedRegion, k.LastUsedService)
		}
		for _, c := range u.Certs {
			fields = append(fields, formatBool(c.Active), c.LastRotated.String())
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(fields, ","))
	}
	return []byte(b.String())
}

func formatBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
