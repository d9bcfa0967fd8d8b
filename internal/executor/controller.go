// Package executor runs a bound step table against a browser, one step at a
// time, dispatching hook steps and carrying their directives forward.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/browser"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/capture"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/inputs"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/progress"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/script"
)

// Env is the state hooks may read or write during a run.
type Env struct {
	Credentials inputs.Credentials
	Store       *capture.Store
}

// Event describes a finished step. Err is set when the step failed.
type Event struct {
	Index   int
	Step    script.Step
	Window  browser.Window
	Element browser.Element // nil for steps that touch no element
	Err     error
}

// Observer is told about every executed step. Skipped steps are not reported.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// Options configures a Controller.
type Options struct {
	Timeouts Timeouts
	// StepDelay is waited before each executed step.
	StepDelay time.Duration
	Gate      *progress.Gate
	Observer  Observer
}

// Directive is what a hook asks of the step that follows it.
type Directive struct {
	Skip   bool
	Inject *string // replaces the next step's keys
}

// Result counts what happened to the table's steps.
type Result struct {
	Advanced int
	Skipped  int
}

// Controller executes step tables.
type Controller struct {
	driver browser.Driver
	env    Env
	opts   Options
	logger *zap.Logger
}

func New(driver browser.Driver, env Env, opts Options, logger *zap.Logger) *Controller {
	if env.Store == nil {
		env.Store = capture.NewStore()
	}
	if opts.Timeouts == (Timeouts{}) {
		opts.Timeouts = DefaultTimeouts()
	}
	return &Controller{
		driver: driver,
		env:    env,
		opts:   opts,
		logger: logger.Named("executor"),
	}
}

// Store returns the capture store hooks and retrieve steps write to.
func (c *Controller) Store() *capture.Store { return c.env.Store }

// Run executes table in order. It stops at the first failing step. The
// table is never modified.
func (c *Controller) Run(ctx context.Context, table script.Table) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recovered from panic during step execution.", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("%w: %v", ErrUnexpected, r)
		}
	}()

	var (
		pending Directive
		current browser.Window
	)
	for i, st := range table {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if c.opts.Gate != nil {
			if c.opts.Gate.Paused() {
				c.logger.Info("Paused before step.", zap.Int("step", i))
			}
			if err := c.opts.Gate.Wait(ctx); err != nil {
				return res, err
			}
		}

		d := pending
		pending = Directive{}
		base := st.Common()
		if d.Skip {
			c.logger.Info("Skipping step.", zap.Int("step", i), zap.String("name", base.Name))
			res.Skipped++
			continue
		}

		if err := sleep(ctx, c.opts.StepDelay); err != nil {
			return res, err
		}

		if current == nil || current.Index() != base.Window {
			w, err := c.switchWindow(ctx, i, base)
			if err != nil {
				c.observe(ctx, Event{Index: i, Step: st, Window: current, Err: err})
				return res, err
			}
			current = w
		}

		c.logger.Debug("Executing step.",
			zap.Int("step", i),
			zap.String("name", base.Name),
			zap.Int("window", base.Window),
			zap.String("kind", stepKind(st)),
		)

		next, el, err := c.execute(ctx, i, st, current, d)
		c.observe(ctx, Event{Index: i, Step: st, Window: current, Element: el, Err: err})
		if err != nil {
			return res, err
		}
		pending = next
		res.Advanced++
	}

	if pending.Skip || pending.Inject != nil {
		c.logger.Warn("Last step left a directive with no step to apply it to.")
	}
	return res, nil
}

func (c *Controller) switchWindow(ctx context.Context, i int, base script.Base) (browser.Window, error) {
	wait := c.opts.Timeouts.Window
	w, err := c.driver.Window(ctx, base.Window, time.Duration(wait))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &LocateError{
			Step:   i,
			Name:   base.Name,
			Target: fmt.Sprintf("window %d", base.Window),
			Wait:   time.Duration(wait),
			Err:    err,
		}
	}
	if err := w.Focus(ctx); err != nil {
		return nil, fmt.Errorf("step %d (%s): failed to focus window %d: %w", i, base.Name, base.Window, err)
	}
	c.logger.Debug("Switched window.", zap.Int("window", base.Window))
	return w, nil
}

func (c *Controller) execute(ctx context.Context, i int, st script.Step, win browser.Window, d Directive) (Directive, browser.Element, error) {
	if d.Inject != nil {
		if _, ok := st.(*script.ActStep); !ok {
			return Directive{}, nil, fmt.Errorf("step %d (%s): injected keys need an act step, got %s", i, st.Common().Name, stepKind(st))
		}
	}

	switch s := st.(type) {
	case *script.ActStep:
		el, err := c.act(ctx, i, s, win, d.Inject)
		return Directive{}, el, err
	case *script.HookStep:
		return c.runHook(ctx, i, s, win)
	case *script.RetrieveStep:
		el, err := c.retrieve(ctx, i, s, win)
		return Directive{}, el, err
	default:
		return Directive{}, nil, fmt.Errorf("step %d: unsupported step type %T", i, st)
	}
}

func (c *Controller) act(ctx context.Context, i int, s *script.ActStep, win browser.Window, inject *string) (browser.Element, error) {
	keys := s.Keys
	switch {
	case inject != nil:
		keys = *inject
	case s.Injected:
		return nil, fmt.Errorf("step %d (%s): expects keys from the preceding hook but none were given", i, s.Name)
	case s.NeedsKeys() && !s.Bound():
		return nil, fmt.Errorf("step %d (%s): field %q is not bound", i, s.Name, s.Field)
	}

	el, err := c.locate(ctx, i, s.Name, win, s.Locator, c.required(s.Base))
	if err != nil {
		return nil, err
	}
	return el, c.perform(ctx, i, s.Name, el, s.Actions, keys)
}

// perform runs actions in declared order.
func (c *Controller) perform(ctx context.Context, i int, name string, el browser.Element, actions []script.Action, keys string) error {
	for _, a := range actions {
		var err error
		switch a {
		case script.ActionSendKeys:
			err = el.SendKeys(ctx, keys)
		case script.ActionClick:
			err = el.Click(ctx)
		case script.ActionHover:
			err = el.Hover(ctx)
		case script.ActionSelect:
			text, _ := script.SplitKeys(keys)
			err = el.Select(ctx, text)
		default:
			err = fmt.Errorf("unknown action")
		}
		if err != nil {
			return &ActionError{Step: i, Name: name, Action: string(a), Err: err}
		}
	}
	return nil
}

func (c *Controller) retrieve(ctx context.Context, i int, s *script.RetrieveStep, win browser.Window) (browser.Element, error) {
	if s.Kind == capture.URL {
		u, err := win.URL(ctx)
		if err != nil {
			return nil, &ActionError{Step: i, Name: s.Name, Action: "read url", Err: err}
		}
		c.env.Store.Add(capture.Record{Kind: capture.URL, Value: u, Step: i})
		return nil, nil
	}

	el, err := c.locate(ctx, i, s.Name, win, s.Locator, c.required(s.Base))
	if err != nil {
		return nil, err
	}

	var v string
	switch {
	case s.Kind == capture.Text:
		v, err = el.Text(ctx)
	case s.Attribute == "value":
		v, err = el.Value(ctx)
	default:
		v, err = el.Attribute(ctx, s.Attribute)
	}
	if err != nil {
		return el, &ActionError{Step: i, Name: s.Name, Action: "read " + string(s.Kind), Err: err}
	}
	c.env.Store.Add(capture.Record{Kind: s.Kind, Value: v, Step: i})
	c.logger.Debug("Captured value.", zap.Int("step", i), zap.String("kind", string(s.Kind)), zap.String("value", v))
	return el, nil
}

func (c *Controller) observe(ctx context.Context, ev Event) {
	if c.opts.Observer != nil {
		c.opts.Observer.Observe(ctx, ev)
	}
}

func stepKind(st script.Step) string {
	switch s := st.(type) {
	case *script.ActStep:
		return "act"
	case *script.HookStep:
		return "hook:" + string(s.Hook)
	case *script.RetrieveStep:
		return "retrieve:" + string(s.Kind)
	}
	return fmt.Sprintf("%T", st)
}
