package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/younsl/iamdormant/pkg/utils"
)

// ErrMissingValue is returned when a required setting has neither a default nor an override
var ErrMissingValue = errors.New("missing configuration value")

// Configuration keys, also used as environment variable names
const (
	KeyInactivityThresholdDays  = "INACTIVITY_THRESHOLD_DAYS"
	KeyGracePeriodThresholdDays = "GRACE_PERIOD_THRESHOLD_DAYS"
	KeyReportRetryLimit         = "GET_CREDENTIAL_REPORT_RETRY_LIMIT"
	KeyReportOnly               = "REPORT_ONLY"
	KeyRegion                   = "DEFAULT_REGION"
	KeyExcludeUsers             = "EXCLUDE_USERS"
	KeyLogLevel                 = "LOG_LEVEL"
)

// defaults has no entry for KeyReportOnly: the run mode must always be chosen explicitly.
var defaults = map[string]string{
	KeyInactivityThresholdDays:  "30",
	KeyGracePeriodThresholdDays: "7",
	KeyReportRetryLimit:         "5",
	KeyRegion:                   utils.GetDefaultRegion(),
	KeyExcludeUsers:             "",
	KeyLogLevel:                 "info",
}

// Config holds all settings of an audit run
type Config struct {
	InactivityThresholdDays  int      `json:"inactivityThresholdDays"`
	GracePeriodThresholdDays int      `json:"gracePeriodThresholdDays"`
	ReportRetryLimit         int      `json:"reportRetryLimit"`
	ReportOnly               bool     `json:"reportOnly"`
	Region                   string   `json:"region"`
	ExcludeUsers             []string `json:"excludeUsers"`
	LogLevel                 string   `json:"logLevel"`
}

// LookupFunc returns the value of a key and whether it is set, like os.LookupEnv
type LookupFunc func(key string) (string, bool)

// Load reads configuration from defaults and the environment. Values in
// overrides, e.g. from command line flags, take precedence over both.
func Load(overrides map[string]string) (*Config, error) {
	return LoadWithLookup(envLookup, overrides)
}

// LoadWithLookup is Load with a custom environment lookup
func LoadWithLookup(lookup LookupFunc, overrides map[string]string) (*Config, error) {
	get := func(key string) (string, error) {
		if v, ok := overrides[key]; ok {
			return v, nil
		}
		if v, ok := lookup(key); ok {
			return v, nil
		}
		if v, ok := defaults[key]; ok {
			return v, nil
		}
		return "", fmt.Errorf("%w: could not retrieve configuration value for [%s]", ErrMissingValue, key)
	}

	var (
		cfg  Config
		errs []error
	)

	readInt := func(key string, minValue int) int {
		raw, err := get(key)
		if err != nil {
			errs = append(errs, err)
			return 0
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid value %q for %s: %w", raw, key, err))
			return 0
		}
		if v < minValue {
			errs = append(errs, fmt.Errorf("invalid value %d for %s: must be at least %d", v, key, minValue))
		}
		return v
	}

	readString := func(key string) string {
		v, err := get(key)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg.InactivityThresholdDays = readInt(KeyInactivityThresholdDays, 0)
	cfg.GracePeriodThresholdDays = readInt(KeyGracePeriodThresholdDays, 0)
	cfg.ReportRetryLimit = readInt(KeyReportRetryLimit, 1)

	if reportOnly, err := get(KeyReportOnly); err != nil {
		errs = append(errs, err)
	} else {
		// Anything but an explicit "false" keeps the run read-only.
		cfg.ReportOnly = reportOnly != "false"
	}

	cfg.Region = readString(KeyRegion)
	cfg.ExcludeUsers = utils.SplitList(readString(KeyExcludeUsers))
	cfg.LogLevel = readString(KeyLogLevel)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &cfg, nil
}

// envLookup resolves keys from the environment. The region also honours AWS_REGION.
func envLookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	if key == KeyRegion {
		if v, ok := os.LookupEnv("AWS_REGION"); ok && v != "" {
			return v, true
		}
	}
	return "", false
}
