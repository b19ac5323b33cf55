package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/coder/quartz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/younsl/iamdormant/internal/config"
	"github.com/younsl/iamdormant/internal/models"
	"github.com/younsl/iamdormant/internal/version"
	"github.com/younsl/iamdormant/pkg/audit"
	"github.com/younsl/iamdormant/pkg/aws"
	"github.com/younsl/iamdormant/pkg/deactivate"
	"github.com/younsl/iamdormant/pkg/formatter"
	"github.com/younsl/iamdormant/pkg/metrics"
	"github.com/younsl/iamdormant/pkg/report"
	"github.com/younsl/iamdormant/pkg/utils"
)

var (
	showVersion    bool
	region         string
	inactivityDays int
	gracePeriod    int
	retryLimit     int
	reportOnly     bool
	enforce        bool
	excludeUsers   []string
	outputFormat   string
	metricsFile    string
	concurrency    int
	logLevel       string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "iamdormant",
		Short: "CLI tool to find and disable dormant IAM users",
		Long: `iamdormant reads the IAM credential report, finds users whose console
access has not been used for too long and, in enforce mode, removes their
login profile and deactivates their access keys.

Settings are read from defaults, then environment variables
(INACTIVITY_THRESHOLD_DAYS, GRACE_PERIOD_THRESHOLD_DAYS,
GET_CREDENTIAL_REPORT_RETRY_LIMIT, REPORT_ONLY, DEFAULT_REGION, EXCLUDE_USERS,
LOG_LEVEL), then flags. The run mode has no default: set REPORT_ONLY or pass
--report-only / --enforce.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println(version.Get())
				return nil
			}
			return run(cmd)
		},
	}

	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")
	rootCmd.Flags().StringVarP(&region, "region", "r", "",
		fmt.Sprintf("AWS region used to sign IAM requests (default: %s)", utils.GetDefaultRegion()))
	rootCmd.Flags().IntVar(&inactivityDays, "inactivity-days", 30, "Days without console login before a user is dormant")
	rootCmd.Flags().IntVar(&gracePeriod, "grace-days", 7, "Days after a password change before a user can be dormant")
	rootCmd.Flags().IntVar(&retryLimit, "retry-limit", 5, "Attempts to retrieve the credential report")
	rootCmd.Flags().BoolVar(&reportOnly, "report-only", false, "Only report dormant users")
	rootCmd.Flags().BoolVar(&enforce, "enforce", false, "Disable dormant users")
	rootCmd.Flags().StringSliceVarP(&excludeUsers, "exclude", "x", nil, "User names or glob patterns to skip (comma separated)")
	rootCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table or json")
	rootCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 1, "Users disabled in parallel in enforce mode")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.MarkFlagsMutuallyExclusive("report-only", "enforce")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagOverrides returns the configuration values explicitly set on the command line
func flagOverrides(cmd *cobra.Command) map[string]string {
	overrides := make(map[string]string)
	flags := cmd.Flags()

	if flags.Changed("inactivity-days") {
		overrides[config.KeyInactivityThresholdDays] = strconv.Itoa(inactivityDays)
	}
	if flags.Changed("grace-days") {
		overrides[config.KeyGracePeriodThresholdDays] = strconv.Itoa(gracePeriod)
	}
	if flags.Changed("retry-limit") {
		overrides[config.KeyReportRetryLimit] = strconv.Itoa(retryLimit)
	}
	if flags.Changed("report-only") && reportOnly {
		overrides[config.KeyReportOnly] = "true"
	}
	if flags.Changed("enforce") && enforce {
		overrides[config.KeyReportOnly] = "false"
	}
	if flags.Changed("region") {
		overrides[config.KeyRegion] = region
	}
	if flags.Changed("exclude") {
		overrides[config.KeyExcludeUsers] = strings.Join(excludeUsers, ",")
	}
	if flags.Changed("log-level") {
		overrides[config.KeyLogLevel] = logLevel
	}

	return overrides
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logCfg := zap.NewProductionConfig()
	logCfg.Level = zap.NewAtomicLevelAt(lvl)
	logCfg.EncoderConfig.TimeKey = "timestamp"
	logCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logCfg.EncoderConfig.StacktraceKey = "stacktrace"
	logCfg.InitialFields = map[string]interface{}{"service": "iamdormant"}

	return logCfg.Build()
}

func run(cmd *cobra.Command) error {
	if outputFormat != "table" && outputFormat != "json" {
		return fmt.Errorf("unsupported output format %q", outputFormat)
	}

	cfg, err := config.Load(flagOverrides(cmd))
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if !utils.IsValidRegion(cfg.Region) {
		logger.Warn("region is not in the list of known regions", zap.String("region", cfg.Region))
	}

	mode := models.Enforce
	if cfg.ReportOnly {
		mode = models.ReportOnly
	}

	logger.Info("configuration loaded",
		zap.Stringer("mode", mode),
		zap.Int("inactivity_threshold_days", cfg.InactivityThresholdDays),
		zap.Int("grace_period_threshold_days", cfg.GracePeriodThresholdDays),
		zap.Int("report_retry_limit", cfg.ReportRetryLimit),
		zap.String("region", cfg.Region),
		zap.Strings("exclude_users", cfg.ExcludeUsers),
	)

	exclude, err := utils.NewNameFilter(cfg.ExcludeUsers)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := aws.NewIAMClient(ctx, cfg.Region)
	if err != nil {
		return fmt.Errorf("error initializing IAM client: %w", err)
	}

	clock := quartz.NewReal()
	m := metrics.New()

	fetcher := report.NewFetcher(client, cfg.ReportRetryLimit, clock, logger)

	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Prefix = "Retrieving IAM credential report "
	fetcher.OnAttempt = func(attempt, limit int) {
		s.Lock()
		s.Suffix = fmt.Sprintf(" (attempt %d/%d)", attempt, limit)
		s.Unlock()
	}

	auditor := audit.NewAuditor(
		&spinnerFetcher{fetcher: fetcher, spinner: s},
		deactivate.NewDeactivator(client, logger),
		audit.Options{
			Thresholds: models.Thresholds{
				InactivityDays:  cfg.InactivityThresholdDays,
				GracePeriodDays: cfg.GracePeriodThresholdDays,
			},
			Exclude:     exclude,
			Concurrency: concurrency,
			Clock:       clock,
			Logger:      logger,
			Metrics:     m,
		},
	)

	startTime := time.Now()
	summary, err := auditor.Run(ctx, mode)
	if err != nil {
		logger.Error("audit aborted", zap.Error(err))
		return err
	}

	switch outputFormat {
	case "json":
		if err := formatter.FormatAuditJSON(os.Stdout, summary); err != nil {
			return err
		}
	default:
		fmt.Println("\nIAM Users:")
		formatter.FormatAuditTable(os.Stdout, summary)
		fmt.Println()
		formatter.PrintTimestamp(os.Stdout, startTime, time.Since(startTime))
	}

	if metricsFile != "" {
		if err := m.WriteTextfile(metricsFile); err != nil {
			logger.Warn("failed to write metrics file", zap.String("path", metricsFile), zap.Error(err))
		}
	}

	return nil
}

// spinnerFetcher shows a spinner while the credential report is retrieved
type spinnerFetcher struct {
	fetcher *report.Fetcher
	spinner *spinner.Spinner
}

func (f *spinnerFetcher) Fetch(ctx context.Context) ([]byte, int, error) {
	f.spinner.Start()
	content, attempts, err := f.fetcher.Fetch(ctx)
	if err != nil {
		f.spinner.FinalMSG = fmt.Sprintf("✗ Credential report unavailable after %d attempts\n", attempts)
	} else {
		f.spinner.FinalMSG = fmt.Sprintf("✓ Got credential report after %d attempts\n", attempts)
	}
	f.spinner.Stop()
	return content, attempts, err
}
