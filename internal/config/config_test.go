package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younsl/iamdormant/internal/config"
)

func lookupFrom(env map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadWithLookup(lookupFrom(map[string]string{config.KeyReportOnly: "true"}), nil)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.InactivityThresholdDays)
	assert.Equal(t, 7, cfg.GracePeriodThresholdDays)
	assert.Equal(t, 5, cfg.ReportRetryLimit)
	assert.True(t, cfg.ReportOnly)
	assert.Equal(t, "eu-west-2", cfg.Region)
	assert.Empty(t, cfg.ExcludeUsers)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvironment(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadWithLookup(lookupFrom(map[string]string{
		config.KeyInactivityThresholdDays:  "90",
		config.KeyGracePeriodThresholdDays: "14",
		config.KeyReportRetryLimit:         "10",
		config.KeyReportOnly:               "false",
		config.KeyRegion:                   "us-east-1",
		config.KeyExcludeUsers:             "break-glass, svc-*,,",
		config.KeyLogLevel:                 "debug",
	}), nil)
	require.NoError(t, err)

	assert.Equal(t, 90, cfg.InactivityThresholdDays)
	assert.Equal(t, 14, cfg.GracePeriodThresholdDays)
	assert.Equal(t, 10, cfg.ReportRetryLimit)
	assert.False(t, cfg.ReportOnly)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, []string{"break-glass", "svc-*"}, cfg.ExcludeUsers)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadOverridesTakePrecedence(t *testing.T) {
	t.Parallel()

	env := lookupFrom(map[string]string{
		config.KeyInactivityThresholdDays: "90",
		config.KeyReportOnly:              "false",
	})
	cfg, err := config.LoadWithLookup(env, map[string]string{
		config.KeyInactivityThresholdDays: "45",
		config.KeyReportOnly:              "true",
	})
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.InactivityThresholdDays)
	assert.True(t, cfg.ReportOnly)
	assert.Equal(t, 7, cfg.GracePeriodThresholdDays)
}

func TestLoadReportOnly(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"false": false,
		"true":  true,
		"False": true,
		"0":     true,
		"no":    true,
	}

	for value, want := range tests {
		cfg, err := config.LoadWithLookup(lookupFrom(nil), map[string]string{config.KeyReportOnly: value})
		require.NoError(t, err, value)
		require.Equal(t, want, cfg.ReportOnly, "REPORT_ONLY=%q", value)
	}
}

func TestLoadMissingReportOnly(t *testing.T) {
	t.Parallel()

	_, err := config.LoadWithLookup(lookupFrom(nil), nil)
	require.ErrorIs(t, err, config.ErrMissingValue)
	require.ErrorContains(t, err, "[REPORT_ONLY]")
}

func TestLoadInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"NotANumber", config.KeyInactivityThresholdDays, "thirty"},
		{"NegativeGrace", config.KeyGracePeriodThresholdDays, "-1"},
		{"ZeroRetryLimit", config.KeyReportRetryLimit, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadWithLookup(lookupFrom(nil), map[string]string{
				config.KeyReportOnly: "true",
				tt.key:               tt.val,
			})
			require.ErrorContains(t, err, tt.key)
		})
	}
}

func TestLoadJoinsErrors(t *testing.T) {
	t.Parallel()

	_, err := config.LoadWithLookup(lookupFrom(map[string]string{
		config.KeyInactivityThresholdDays: "x",
		config.KeyReportRetryLimit:        "0",
	}), nil)
	require.ErrorIs(t, err, config.ErrMissingValue)
	require.ErrorContains(t, err, config.KeyInactivityThresholdDays)
	require.ErrorContains(t, err, config.KeyReportRetryLimit)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv(config.KeyReportOnly, "false")
	t.Setenv(config.KeyRegion, "")
	t.Setenv("AWS_REGION", "ap-northeast-2")
	t.Setenv(config.KeyInactivityThresholdDays, "60")

	cfg, err := config.Load(map[string]string{config.KeyInactivityThresholdDays: "61"})
	require.NoError(t, err)
	assert.False(t, cfg.ReportOnly)
	assert.Equal(t, "ap-northeast-2", cfg.Region)
	assert.Equal(t, 61, cfg.InactivityThresholdDays)
}
