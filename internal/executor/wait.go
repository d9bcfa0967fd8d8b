package executor

import (
	"context"
	"errors"
	"time"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/browser"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/script"
)

// Required is a wait whose expiry fails the run.
type Required time.Duration

// BestEffort is a wait whose expiry means the element is absent.
type BestEffort time.Duration

// Timeouts holds the engine defaults. A step's Wait overrides Locate for its
// required lookups and Probe for the pop-up hook.
type Timeouts struct {
	Locate Required
	Window Required
	Probe BestEffort
	// Bypass is how long each look for the security question, or the page
	// that replaces it, lasts before trying the other.
	Bypass BestEffort
}

// DefaultTimeouts suits the target site on a normal connection.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Locate: Required(20 * time.Second),
		Window: Required(20 * time.Second),
		Probe:  BestEffort(2 * time.Second),
		Bypass: BestEffort(3 * time.Second),
	}
}

func (c *Controller) required(b script.Base) Required {
	if b.Wait > 0 {
		return Required(b.Wait)
	}
	return c.opts.Timeouts.Locate
}

func bestEffort(b script.Base, def BestEffort) BestEffort {
	if b.Wait > 0 {
		return BestEffort(b.Wait)
	}
	return def
}

// locate finds an element that must exist.
func (c *Controller) locate(ctx context.Context, step int, name string, win browser.Window, loc script.Locator, wait Required) (browser.Element, error) {
	el, err := win.Find(ctx, loc, time.Duration(wait))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &LocateError{Step: step, Name: name, Target: loc.String(), Wait: time.Duration(wait), Err: err}
	}
	return el, nil
}

// probe looks for an element that may legitimately be missing. found is
// false, with a nil error, when the wait ran out.
func probe(ctx context.Context, win browser.Window, loc script.Locator, wait BestEffort) (el browser.Element, found bool, err error) {
	el, err = win.Find(ctx, loc, time.Duration(wait))
	switch {
	case err == nil:
		return el, true, nil
	case errors.Is(err, browser.ErrNotFound) && ctx.Err() == nil:
		return nil, false, nil
	}
	return nil, false, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
