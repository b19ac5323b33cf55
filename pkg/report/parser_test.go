package report_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younsl/iamdormant/internal/models"
	"github.com/younsl/iamdormant/pkg/report"
)

const header = "user,arn,user_creation_time,password_enabled,password_last_used,password_last_changed," +
	"password_next_rotation,mfa_active,access_key_1_active,access_key_1_last_rotated,access_key_1_last_used_date," +
	"access_key_1_last_used_region,access_key_1_last_used_service,access_key_2_active,access_key_2_last_rotated," +
	"access_key_2_last_used_date,access_key_2_last_used_region,access_key_2_last_used_service,cert_1_active," +
	"cert_1_last_rotated,cert_2_active,cert_2_last_rotated"

const (
	rootRow = "<root_account>,arn:aws:iam::123456789012:root,2019-03-01T10:00:00+00:00,not_supported," +
		"2023-07-30T08:15:00+00:00,not_supported,not_supported,true,false,N/A,N/A,N/A,N/A,false,N/A,N/A,N/A,N/A,false,N/A,false,N/A"
	aliceRow = "alice,arn:aws:iam::123456789012:user/alice,2023-01-01T09:00:00+00:00,true,no_information," +
		"2023-01-01T09:00:00+00:00,N/A,false,true,2023-01-02T09:00:00+00:00,2023-07-31T12:00:00+00:00,eu-west-2,iam," +
		"false,N/A,N/A,N/A,N/A,false,N/A,false,N/A"
	botRow = "ci-bot,arn:aws:iam::123456789012:user/ci-bot,2022-05-10T00:00:00+00:00,false,N/A,N/A,N/A,false," +
		"true,2022-05-10T00:00:00+00:00,N/A,N/A,N/A,true,2022-06-10T00:00:00+00:00,2023-06-01T00:00:00+00:00,us-east-1,s3," +
		"true,2022-05-10T00:00:00+00:00,false,N/A"
)

func payload(rows ...string) []byte {
	return []byte(strings.Join(append([]string{header}, rows...), "\n"))
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func TestParse(t *testing.T) {
	t.Parallel()

	rep, err := report.Parse(payload(rootRow, aliceRow, botRow))
	require.NoError(t, err)
	require.Len(t, rep.Users, 3)

	root := rep.Users[0]
	assert.Equal(t, "<root_account>", root.UserName)
	assert.Equal(t, models.PasswordNotSupported, root.PasswordEnabled)
	assert.False(t, root.HasConsoleAccess())
	assert.True(t, root.PasswordLastUsed.Time.Equal(utc(2023, 7, 30, 8, 15)))
	assert.Equal(t, models.TimeNotSupported, root.PasswordLastChanged.Kind)
	assert.True(t, root.MFAActive)

	alice := rep.Users[1]
	assert.Equal(t, "arn:aws:iam::123456789012:user/alice", alice.ARN)
	assert.True(t, alice.HasConsoleAccess())
	assert.True(t, alice.HasNeverLoggedIn())
	assert.True(t, alice.CreationTime.Equal(utc(2023, 1, 1, 9, 0)))
	assert.Equal(t, models.TimeNotApplicable, alice.PasswordNextRotation.Kind)
	assert.True(t, alice.AccessKeys[0].Active)
	assert.Equal(t, "eu-west-2", alice.AccessKeys[0].LastUsedRegion)
	assert.Equal(t, "iam", alice.AccessKeys[0].LastUsedService)
	assert.False(t, alice.AccessKeys[1].Active)
	assert.Equal(t, models.NotApplicable, alice.AccessKeys[1].LastUsedRegion)

	bot := rep.Users[2]
	assert.Equal(t, models.PasswordDisabled, bot.PasswordEnabled)
	assert.Equal(t, models.TimeNotApplicable, bot.PasswordLastUsed.Kind)
	assert.Equal(t, models.TimeNotApplicable, bot.AccessKeys[0].LastUsedDate.Kind)
	assert.True(t, bot.AccessKeys[1].LastUsedDate.Time.Equal(utc(2023, 6, 1, 0, 0)))
	assert.True(t, bot.Certs[0].Active)
	assert.False(t, bot.Certs[1].Active)
}

func TestParseKeepsReportOrder(t *testing.T) {
	t.Parallel()

	rep, err := report.Parse(payload(botRow, aliceRow, rootRow))
	require.NoError(t, err)

	names := make([]string, 0, len(rep.Users))
	for _, u := range rep.Users {
		names = append(names, u.UserName)
	}
	require.Equal(t, []string{"ci-bot", "alice", "<root_account>"}, names)
}

func TestParseHeaderOnly(t *testing.T) {
	t.Parallel()

	rep, err := report.Parse([]byte(header + "\n"))
	require.NoError(t, err)
	require.Empty(t, rep.Users)
}

func TestParseCRLF(t *testing.T) {
	t.Parallel()

	rep, err := report.Parse([]byte(header + "\r\n" + aliceRow + "\r\n" + botRow + "\r\n"))
	require.NoError(t, err)
	require.Len(t, rep.Users, 2)
	require.False(t, rep.Users[1].Certs[1].Active)
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	replaceField := func(row string, idx int, value string) string {
		fields := strings.Split(row, ",")
		fields[idx] = value
		return strings.Join(fields, ",")
	}

	tests := []struct {
		name    string
		payload []byte
	}{
		{"Empty", []byte{}},
		{"Blank", []byte(" \n\n")},
		{"InvalidUTF8", []byte(header + "\n\xff\xfe")},
		{"TooFewFields", payload("alice,arn:aws:iam::123456789012:user/alice,2023-01-01T09:00:00+00:00")},
		{"TooManyFields", payload(aliceRow + ",extra")},
		{"InvalidCreationTime", payload(replaceField(aliceRow, 2, "yesterday"))},
		{"InvalidPasswordEnabled", payload(replaceField(aliceRow, 3, "maybe"))},
		{"InvalidPasswordLastUsed", payload(replaceField(aliceRow, 4, "2023-13-45"))},
		{"NoInformationNotAllowedForPasswordChange", payload(replaceField(aliceRow, 5, "no_information"))},
		{"InvalidMFA", payload(replaceField(aliceRow, 7, "TRUE"))},
		{"NotSupportedNotAllowedForKeyRotation", payload(replaceField(aliceRow, 9, "not_supported"))},
		{"InvalidCertActive", payload(replaceField(aliceRow, 18, "1"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := report.Parse(tt.payload)
			require.ErrorIs(t, err, report.ErrMalformedReport)
		})
	}
}

func TestParseMalformedReportsRow(t *testing.T) {
	t.Parallel()

	_, err := report.Parse(payload(aliceRow, aliceRow+",extra"))
	require.ErrorIs(t, err, report.ErrMalformedReport)
	require.ErrorContains(t, err, "row 2 has 23 fields, expected 22")
}

func TestFormatRoundTrip(t *testing.T) {
	t.Parallel()

	want := &models.CredentialReport{Users: []models.CredentialReportUser{
		{
			UserName:             "<root_account>",
			ARN:                  "arn:aws:iam::123456789012:root",
			CreationTime:         utc(2019, 3, 1, 10, 0),
			PasswordEnabled:      models.PasswordNotSupported,
			PasswordLastUsed:     models.NotSupportedTime(),
			PasswordLastChanged:  models.NotSupportedTime(),
			PasswordNextRotation: models.NotSupportedTime(),
			MFAActive:            true,
			AccessKeys: [2]models.AccessKey{
				{LastRotated: models.NotApplicableTime(), LastUsedDate: models.NotApplicableTime(), LastUsedRegion: "N/A", LastUsedService: "N/A"},
				{LastRotated: models.NotApplicableTime(), LastUsedDate: models.NotApplicableTime(), LastUsedRegion: "N/A", LastUsedService: "N/A"},
			},
			Certs: [2]models.SigningCert{
				{LastRotated: models.NotApplicableTime()},
				{LastRotated: models.NotApplicableTime()},
			},
		},
		{
			UserName:             "dave",
			ARN:                  "arn:aws:iam::123456789012:user/team/dave",
			CreationTime:         utc(2022, 11, 20, 14, 30),
			PasswordEnabled:      models.PasswordEnabled,
			PasswordLastUsed:     models.At(utc(2023, 6, 2, 7, 45)),
			PasswordLastChanged:  models.At(utc(2023, 6, 1, 0, 0)),
			PasswordNextRotation: models.At(utc(2023, 9, 1, 0, 0)),
			AccessKeys: [2]models.AccessKey{
				{
					Active:          true,
					LastRotated:     models.At(utc(2022, 11, 20, 14, 31)),
					LastUsedDate:    models.At(utc(2023, 7, 30, 22, 0)),
					LastUsedRegion:  "eu-west-1",
					LastUsedService: "sts",
				},
				{LastRotated: models.NotApplicableTime(), LastUsedDate: models.NotApplicableTime(), LastUsedRegion: "N/A", LastUsedService: "N/A"},
			},
			Certs: [2]models.SigningCert{
				{Active: true, LastRotated: models.At(utc(2022, 12, 1, 0, 0))},
				{LastRotated: models.NotApplicableTime()},
			},
		},
		{
			UserName:             "erin",
			ARN:                  "arn:aws:iam::123456789012:user/erin",
			CreationTime:         utc(2023, 7, 28, 0, 0),
			PasswordEnabled:      models.PasswordEnabled,
			PasswordLastUsed:     models.NeverUsed(),
			PasswordLastChanged:  models.At(utc(2023, 7, 28, 0, 0)),
			PasswordNextRotation: models.NotApplicableTime(),
			AccessKeys: [2]models.AccessKey{
				{LastRotated: models.NotApplicableTime(), LastUsedDate: models.NotApplicableTime(), LastUsedRegion: "N/A", LastUsedService: "N/A"},
				{LastRotated: models.NotApplicableTime(), LastUsedDate: models.NotApplicableTime(), LastUsedRegion: "N/A", LastUsedService: "N/A"},
			},
			Certs: [2]models.SigningCert{
				{LastRotated: models.NotApplicableTime()},
				{LastRotated: models.NotApplicableTime()},
			},
		},
	}}

	got, err := report.Parse(report.Format(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}
