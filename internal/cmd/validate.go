package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/tsvalidate/internal/config"
	"github.com/harrison/tsvalidate/internal/executor"
	"github.com/harrison/tsvalidate/internal/history"
	"github.com/harrison/tsvalidate/internal/logger"
	"github.com/harrison/tsvalidate/internal/models"
	"github.com/harrison/tsvalidate/internal/packages"
	"github.com/harrison/tsvalidate/internal/report"
)

// ErrConflictingSelection is returned when --all is combined with package names.
var ErrConflictingSelection = errors.New("can't combine --all with listed package names")

// NewValidateCommand creates the 'tsvalidate validate' command
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [package]...",
		Short: "Install and type-check packages in isolated sandboxes",
		Long: `Validate installs each package from the registry into its own sandbox and
type-checks it, running up to --max-concurrency packages at once.

Packages are selected in one of three ways:
  tsvalidate validate --all          every package under the types path
  tsvalidate validate a b @c/d       the listed packages
  tsvalidate validate                packages changed in the git work tree

A run that completes exits 0 even when packages fail; the failures are in the
report. Use --fail-on-error to exit non-zero instead.

Configuration is loaded from .tsvalidate/config.yaml if present.
CLI flags override configuration file settings.`,
		RunE: runValidate,
	}

	cmd.Flags().Bool("all", false, "Validate every package under the types path")
	cmd.Flags().Int("max-concurrency", 0, "Maximum number of packages validated at once")
	cmd.Flags().String("timeout", "", "Limit for each install or type-check command (e.g. 5m, 0 = none)")
	cmd.Flags().String("log-dir", "", "Directory for run logs and reports")
	cmd.Flags().String("output-path", "", "Sandbox root, cleared at the start of every run")
	cmd.Flags().String("types-path", "", "Directory holding one sub-directory per package")
	cmd.Flags().Bool("verbose", false, "Show per-package durations and progress")
	cmd.Flags().Bool("fail-on-error", false, "Exit non-zero when any package fails")

	return cmd
}

// runValidate implements the validate command logic
func runValidate(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if all && len(args) > 0 {
		return ErrConflictingSelection
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	overrides, err := validateFlagOverrides(cmd)
	if err != nil {
		return err
	}
	cfg.MergeWithFlags(overrides)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logLevel := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logLevel = "debug"
	}
	out := cmd.OutOrStdout()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := packages.NewDirectorySource(cfg.TypesPath, cfg.Scope)
	names, err := selectPackages(ctx, source, all, args)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(out, "No packages to validate.")
		return nil
	}

	consoleLog := logger.NewConsoleLogger(out, logLevel)
	fileLog, err := logger.NewFileLogger(cfg.LogDir, logLevel)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer fileLog.Close()

	multiLog := &multiLogger{
		loggers: []executor.Logger{consoleLog, fileLog},
	}

	svcCfg, err := serviceConfig(cfg)
	if err != nil {
		return err
	}
	runner := executor.NewProcessRunner(cfg.Timeout, cfg.AllowStderr)
	svc, err := executor.NewService(svcCfg, source, runner, fileLog, multiLog)
	if err != nil {
		return fmt.Errorf("failed to create validation service: %w", err)
	}

	if cfg.HistoryDB != "" {
		store, err := history.NewStore(cfg.HistoryDB)
		if err != nil {
			multiLog.LogWarn(fmt.Sprintf("run history disabled: %v", err))
		} else {
			defer store.Close()
			svc.SetRecorder(store)
		}
	}

	run, err := svc.Run(ctx, names)
	if err != nil {
		return fmt.Errorf("validation run failed: %w", err)
	}

	fmt.Fprintf(out, "\nReport written to: %s\n", fileLog.StreamPath(report.InfoStream))
	if run.Summary.Failed() > 0 {
		fmt.Fprintf(out, "Errors written to: %s\n", fileLog.StreamPath(report.ErrorStream))
	}
	fmt.Fprintf(out, "Run ID: %s\n", run.RunID)

	if failOnError, _ := cmd.Flags().GetBool("fail-on-error"); failOnError && run.Summary.Failed() > 0 {
		return fmt.Errorf("%d of %d package(s) failed", run.Summary.Failed(), run.Summary.Total())
	}
	return nil
}

// validateFlagOverrides collects the flags that were set on the command line.
func validateFlagOverrides(cmd *cobra.Command) (config.FlagOverrides, error) {
	var o config.FlagOverrides
	flags := cmd.Flags()

	if flags.Changed("max-concurrency") {
		v, _ := flags.GetInt("max-concurrency")
		o.MaxConcurrency = &v
	}
	if flags.Changed("timeout") {
		s, _ := flags.GetString("timeout")
		d, err := time.ParseDuration(s)
		if err != nil {
			return o, fmt.Errorf("invalid timeout format %q: %w", s, err)
		}
		o.Timeout = &d
	}
	if flags.Changed("log-dir") {
		v, _ := flags.GetString("log-dir")
		o.LogDir = &v
	}
	if flags.Changed("output-path") {
		v, _ := flags.GetString("output-path")
		o.OutputPath = &v
	}
	if flags.Changed("types-path") {
		v, _ := flags.GetString("types-path")
		o.TypesPath = &v
	}
	return o, nil
}

// selectPackages applies the selection mode: --all, listed names, or the
// packages changed in the git work tree.
func selectPackages(ctx context.Context, source *packages.DirectorySource, all bool, args []string) ([]models.PackageName, error) {
	switch {
	case all:
		names, err := source.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list packages: %w", err)
		}
		return names, nil
	case len(args) > 0:
		names := models.ToPackageNames(args)
		if err := models.CheckNames(names); err != nil {
			return nil, err
		}
		return names, nil
	default:
		names, err := packages.NewGitChangedSource(".", source).List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to find changed packages: %w", err)
		}
		return names, nil
	}
}

func serviceConfig(cfg *config.Config) (executor.ServiceConfig, error) {
	install, err := executor.ParseCommand("", cfg.InstallCommand)
	if err != nil {
		return executor.ServiceConfig{}, fmt.Errorf("invalid install_command: %w", err)
	}
	typeCheck, err := executor.ParseCommand("tsc", cfg.TypeCheckCommand)
	if err != nil {
		return executor.ServiceConfig{}, fmt.Errorf("invalid typecheck_command: %w", err)
	}
	return executor.ServiceConfig{
		OutputPath:     cfg.OutputPath,
		MaxConcurrency: cfg.MaxConcurrency,
		Validator: executor.ValidatorConfig{
			Install:   install,
			TypeCheck: typeCheck,
		},
	}, nil
}

// multiLogger implements executor.Logger by delegating to multiple loggers
type multiLogger struct {
	loggers []executor.Logger
}

// LogRunStart forwards to all loggers
func (ml *multiLogger) LogRunStart(total, concurrency int, outputPath string) {
	for _, l := range ml.loggers {
		l.LogRunStart(total, concurrency, outputPath)
	}
}

// LogPackageResult forwards to all loggers
func (ml *multiLogger) LogPackageResult(result models.ValidationResult) error {
	var lastErr error
	for _, l := range ml.loggers {
		if err := l.LogPackageResult(result); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// LogProgress forwards to all loggers
func (ml *multiLogger) LogProgress(completed, total int) {
	for _, l := range ml.loggers {
		l.LogProgress(completed, total)
	}
}

// LogSummary forwards to all loggers
func (ml *multiLogger) LogSummary(run models.RunReport) {
	for _, l := range ml.loggers {
		l.LogSummary(run)
	}
}

// LogWarn forwards to all loggers
func (ml *multiLogger) LogWarn(message string) {
	for _, l := range ml.loggers {
		l.LogWarn(message)
	}
}
