package executor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/harrison/tsvalidate/internal/logger"
	"github.com/harrison/tsvalidate/internal/models"
)

// PackageResolver turns a package name into the metadata a sandbox needs.
type PackageResolver interface {
	Lookup(name models.PackageName) (models.Package, error)
}

// ValidatorConfig holds the two commands every sandbox runs.
type ValidatorConfig struct {
	Install   Command
	TypeCheck Command
}

// Validator drives one package through the validation states:
// Start -> SandboxReady -> Installed -> Checked (Passed), with any step
// failing straight to Failed. Each call to Validate uses its own log buffer,
// so a Validator may be shared by concurrent workers.
type Validator struct {
	resolver PackageResolver
	sandbox  *SandboxBuilder
	runner   CommandRunner
	cfg      ValidatorConfig
}

// NewValidator constructs a Validator.
func NewValidator(resolver PackageResolver, sandbox *SandboxBuilder, runner CommandRunner, cfg ValidatorConfig) *Validator {
	return &Validator{
		resolver: resolver,
		sandbox:  sandbox,
		runner:   runner,
		cfg:      cfg,
	}
}

// Validate builds the package's sandbox, installs the published package,
// and type-checks the reference to it. A validation failure is reported in
// the result; the returned error is non-nil only for infrastructure failures
// or cancellation, which abort the whole run.
func (v *Validator) Validate(ctx context.Context, name models.PackageName) (models.ValidationResult, error) {
	start := time.Now()
	log := logger.NewBuffer()

	result := models.ValidationResult{Package: name}
	finish := func() models.ValidationResult {
		result.Log = log.Records()
		result.Duration = time.Since(start)
		return result
	}
	fail := func(step, detail string) models.ValidationResult {
		log.Errorf("Error: %s", detail)
		log.Info("Failed!")
		result.FailedStep = step
		return finish()
	}

	log.Info("")
	log.Infof("Processing `%s`...", name)

	pkg, err := v.resolver.Lookup(name)
	if err != nil {
		return fail(models.StepSandbox, err.Error()), nil
	}

	dir, err := v.sandbox.Build(pkg)
	if err != nil {
		if dir != "" && exists(dir) {
			result.Sandbox = dir
		}
		return fail(models.StepSandbox, err.Error()), nil
	}
	result.Sandbox = dir

	steps := []struct {
		name string
		cmd  Command
	}{
		{models.StepInstall, v.cfg.Install},
		{models.StepTypeCheck, v.cfg.TypeCheck},
	}
	for _, step := range steps {
		ok, detail, err := v.runStep(ctx, log, step.cmd, dir)
		if err != nil {
			return finish(), err
		}
		if !ok {
			// The sandbox stays on disk for inspection.
			return fail(step.name, detail), nil
		}
	}

	if err := v.sandbox.Remove(name, dir); err != nil {
		log.Errorf("Could not remove sandbox: %v", err)
	} else {
		result.Sandbox = ""
	}

	log.Info("Passed.")
	result.Passed = true
	return finish(), nil
}

// runStep runs one command and records its output. It reports whether the
// command succeeded, and otherwise a one-line description of the failure for
// the caller to log.
func (v *Validator) runStep(ctx context.Context, log *logger.Buffer, cmd Command, dir string) (bool, string, error) {
	if err := ctx.Err(); err != nil {
		return false, "", err
	}

	log.Infof("Run %s", cmd)
	res, err := v.runner.Run(ctx, cmd, dir)
	if err != nil {
		return false, "", err
	}

	if res.Succeeded {
		for _, line := range splitLines(res.Stdout) {
			log.Info(line)
		}
		return true, "", nil
	}

	for _, line := range splitLines(res.Stderr) {
		log.Error(line)
	}
	for _, line := range splitLines(res.Stdout) {
		log.Info(line)
	}
	log.Infof("%s failed, refer to error log", cmd.Description)
	return false, fmt.Sprintf("%s failed: %s", cmd.Description, res.FailureReason()), nil
}

// splitLines breaks captured output into log lines, dropping trailing blank lines.
func splitLines(s string) []string {
	s = strings.TrimRight(strings.ReplaceAll(s, "\r\n", "\n"), "\n \t")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
