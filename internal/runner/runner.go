// Package runner wires one automation run together: bind the script, drive
// the browser, then write the project artifacts.
package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/browser"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/capture"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/config"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/executor"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/inputs"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/progress"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/project"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/script"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/trace"
)

// Launcher opens a browser session.
type Launcher func(ctx context.Context, opts browser.Options, logger *zap.Logger) (browser.Driver, error)

// LaunchChrome is the production Launcher.
func LaunchChrome(ctx context.Context, opts browser.Options, logger *zap.Logger) (browser.Driver, error) {
	return browser.Launch(ctx, opts, logger)
}

// Outcome is what a run produced. Fields are filled in as far as the run got.
type Outcome struct {
	Result    executor.Result
	Captures  int // values read from the site
	Project   project.Data
	Artifacts project.Artifacts
	TracePath string
	Frames    int
	// FailurePath is the page snapshot taken when a step failed.
	FailurePath string
}

// Runner executes runs with a fixed configuration.
type Runner struct {
	cfg      *config.Config
	launch   Launcher
	reporter progress.Reporter
	gate     *progress.Gate
	logger   *zap.Logger
	now      func() time.Time
}

// New returns a Runner using LaunchChrome. reporter and gate may be nil.
func New(cfg *config.Config, reporter progress.Reporter, gate *progress.Gate, logger *zap.Logger) *Runner {
	if reporter == nil {
		reporter = progress.Nop{}
	}
	return &Runner{
		cfg:      cfg,
		launch:   LaunchChrome,
		reporter: reporter,
		gate:     gate,
		logger:   logger.Named("runner"),
		now:      time.Now,
	}
}

// WithLauncher replaces the browser launcher.
func (r *Runner) WithLauncher(l Launcher) *Runner {
	r.launch = l
	return r
}

// Template loads the configured step template.
func (r *Runner) Template() (script.Table, error) {
	if r.cfg.Binding.Template != "" {
		return script.LoadFile(r.cfg.Binding.Template)
	}
	return script.Default()
}

// Derivations builds the derived-field rules from configuration.
func (r *Runner) Derivations() script.Derivations {
	d := script.DefaultDerivations()
	b := r.cfg.Binding
	d.MilestonePrefix = b.MilestonePrefix
	if b.SentinelField != "" {
		d.SentinelField = b.SentinelField
		d.SentinelValue = b.SentinelValue
	}
	if b.QuantityDefault != "" {
		d.QuantityDefault = b.QuantityDefault
	}
	return d
}

// RequiredFields lists the input labels the configured template needs.
func (r *Runner) RequiredFields() ([]string, error) {
	tmpl, err := r.Template()
	if err != nil {
		return nil, err
	}
	return r.Derivations().Required(tmpl.Fields()), nil
}

// Prepare validates form and binds it into the template. Nothing touches the
// browser.
func (r *Runner) Prepare(form *inputs.Form) (script.Table, inputs.Credentials, error) {
	tmpl, err := r.Template()
	if err != nil {
		return nil, inputs.Credentials{}, err
	}
	derive := r.Derivations()
	if err := form.Validate(derive.Required(tmpl.Fields())); err != nil {
		return nil, inputs.Credentials{}, err
	}
	creds, details := form.Credentials()
	table, err := script.Bind(tmpl, details, script.BindOptions{
		Derivations: derive,
		Terminator:  script.Terminator(r.cfg.Binding.Terminator),
	})
	if err != nil {
		return nil, inputs.Credentials{}, err
	}
	return table, creds, nil
}

// Run performs a complete run. The browser is closed before Run returns,
// whatever happens.
func (r *Runner) Run(ctx context.Context, form *inputs.Form, withTrace bool) (out *Outcome, err error) {
	out = &Outcome{}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Recovered from panic during run.", zap.Any("panic", p), zap.Stack("stack"))
			err = fmt.Errorf("%w: %v", executor.ErrUnexpected, p)
		}
	}()

	r.reporter.Update("Preparing browser session", 5)
	table, creds, err := r.Prepare(form)
	if err != nil {
		return out, err
	}
	r.reporter.Update("Script bound", 5)

	store := capture.NewStore()
	err = r.execute(ctx, table, creds, store, withTrace, out)
	out.Captures = store.Len()
	if err != nil {
		r.logger.Error("Run failed.", zap.Error(err), zap.Int("advanced", out.Result.Advanced), zap.Int("captures", out.Captures))
		return out, err
	}

	out.Project = project.Build(form, store)
	r.logger.Info("Proposal saved.",
		zap.String("id", out.Project.ID),
		zap.String("name", out.Project.Name),
		zap.String("url", out.Project.URL),
	)

	now := r.now()
	r.reporter.Update("Creating project files and directories", 40)
	out.Artifacts, err = project.MakeDirs(out.Project, r.cfg.Project.JobDirs, now)
	if err != nil {
		return out, fmt.Errorf("failed to create project files: %w", err)
	}

	r.reporter.Update("Updating the quote log", 20)
	if out.Project.QuoteLog {
		if err := project.AppendQuoteLog(r.cfg.Project.QuoteLog, out.Project, now); err != nil {
			return out, err
		}
	}

	r.reporter.Update("Finishing", 20)
	return out, nil
}

func (r *Runner) execute(ctx context.Context, table script.Table, creds inputs.Credentials, store *capture.Store, withTrace bool, out *Outcome) error {
	r.reporter.Update("Executing script", 10)

	var rec *trace.Recorder
	if withTrace || r.cfg.Trace.Enabled {
		dir := filepath.Join(r.cfg.Trace.Dir, r.now().Format("20060102-150405"))
		var err error
		rec, err = trace.NewRecorder(dir, trace.Options{FPS: r.cfg.Trace.FPS, MaxWidth: uint(r.cfg.Trace.MaxWidth)}, r.logger)
		if err != nil {
			return err
		}
	}

	width, height := r.cfg.Browser.ViewportSize()
	driver, err := r.launch(ctx, browser.Options{
		Bin:          r.cfg.Browser.Bin,
		Headless:     r.cfg.Browser.Headless,
		ProfileDir:   r.cfg.Browser.ProfileDir,
		Flags:        r.cfg.Browser.Flags,
		URLs:         r.cfg.Browser.URLs,
		Width:        width,
		Height:       height,
		PollInterval: r.cfg.Engine.PollInterval,
	}, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start browser session: %w", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			r.logger.Warn("Failed to close browser session.", zap.Error(err))
		}
	}()

	opts := executor.Options{
		Timeouts: executor.Timeouts{
			Locate: executor.Required(r.cfg.Engine.LocateTimeout),
			Window: executor.Required(r.cfg.Engine.WindowTimeout),
			Probe:  executor.BestEffort(r.cfg.Engine.ProbeTimeout),
			Bypass: executor.BestEffort(r.cfg.Engine.BypassTimeout),
		},
		StepDelay: r.cfg.Engine.StepDelay,
		Gate:      r.gate,
	}
	if rec != nil {
		opts.Observer = rec
	}

	ctrl := executor.New(driver, executor.Env{Credentials: creds, Store: store}, opts, r.logger)
	res, runErr := ctrl.Run(ctx, table)
	out.Result = res

	if rec != nil {
		out.FailurePath = rec.FailurePath()
		out.Frames = rec.Frames()
		path, err := rec.Finish()
		if err != nil {
			r.logger.Warn("Failed to write run trace.", zap.Error(err))
		}
		out.TracePath = path
	}
	return runErr
}
