package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/browser"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/capture"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/script"
)

func (c *Controller) runHook(ctx context.Context, i int, s *script.HookStep, win browser.Window) (Directive, browser.Element, error) {
	switch s.Hook {
	case script.HookAutofill:
		el, err := c.autofill(ctx, i, s, win)
		return Directive{}, el, err
	case script.HookSecurityQuestion:
		return c.securityQuestion(ctx, i, s, win)
	case script.HookPopup:
		el, err := c.popup(ctx, i, s, win)
		return Directive{}, el, err
	case script.HookCurrentURL:
		return Directive{}, nil, c.currentURL(ctx, i, s, win)
	}
	return Directive{}, nil, fmt.Errorf("step %d (%s): unknown hook %q", i, s.Name, s.Hook)
}

// autofill types a credential unless the browser already filled the field.
// The password field is submitted with Enter either way.
func (c *Controller) autofill(ctx context.Context, i int, s *script.HookStep, win browser.Window) (browser.Element, error) {
	el, err := c.locate(ctx, i, s.Name, win, s.Locator, c.required(s.Base))
	if err != nil {
		return nil, err
	}
	if err := el.Click(ctx); err != nil {
		return el, &ActionError{Step: i, Name: s.Name, Action: "click", Err: err}
	}
	current, err := el.Value(ctx)
	if err != nil {
		return el, &ActionError{Step: i, Name: s.Name, Action: "read value", Err: err}
	}

	submit := s.Credential == script.CredentialPassword
	var keys string
	if strings.TrimSpace(current) != "" {
		c.logger.Debug("Field already filled.", zap.Int("step", i), zap.String("credential", string(s.Credential)))
	} else {
		secret := c.env.Credentials.Username
		if s.Credential == script.CredentialPassword {
			secret = c.env.Credentials.Password
		}
		if secret == "" {
			return el, fmt.Errorf("step %d (%s): no %s in the credential bundle", i, s.Name, s.Credential)
		}
		keys = secret
	}
	if submit {
		keys += script.KeyEnter
	}
	if keys == "" {
		return el, nil
	}
	if err := el.SendKeys(ctx, keys); err != nil {
		return el, &ActionError{Step: i, Name: s.Name, Action: "send-keys", Err: err}
	}
	return el, nil
}

// securityQuestion answers the site's security question through the step
// that follows it. When the site lets the login through it shows the
// indicator instead, and the answer step is skipped. The two are looked for
// in turn, one Bypass wait each, until the step's required wait runs out, so
// a slow page cannot be mistaken for a question.
func (c *Controller) securityQuestion(ctx context.Context, i int, s *script.HookStep, win browser.Window) (Directive, browser.Element, error) {
	wait := c.required(s.Base)
	if s.Indicator == nil {
		el, err := c.locate(ctx, i, s.Name, win, s.Locator, wait)
		if err != nil {
			return Directive{}, nil, err
		}
		return c.answer(ctx, i, s, el)
	}

	slice := c.opts.Timeouts.Bypass
	if slice <= 0 {
		slice = DefaultTimeouts().Bypass
	}
	deadline := time.Now().Add(time.Duration(wait))
	for {
		_, found, err := probe(ctx, win, *s.Indicator, slice)
		if err != nil {
			return Directive{}, nil, err
		}
		if found {
			c.logger.Info("Security question bypassed.", zap.Int("step", i))
			return Directive{Skip: true}, nil, nil
		}

		el, found, err := probe(ctx, win, s.Locator, slice)
		if err != nil {
			return Directive{}, nil, err
		}
		if found {
			return c.answer(ctx, i, s, el)
		}

		if !time.Now().Before(deadline) {
			return Directive{}, nil, &LocateError{
				Step:   i,
				Name:   s.Name,
				Target: fmt.Sprintf("%s or %s", s.Locator, *s.Indicator),
				Wait:   time.Duration(wait),
				Err:    browser.ErrNotFound,
			}
		}
	}
}

func (c *Controller) answer(ctx context.Context, i int, s *script.HookStep, el browser.Element) (Directive, browser.Element, error) {
	text, err := el.Text(ctx)
	if err != nil {
		return Directive{}, el, &ActionError{Step: i, Name: s.Name, Action: "read question", Err: err}
	}
	question := strings.TrimSpace(text)
	answer, ok := c.env.Credentials.Answer(question)
	if !ok {
		return Directive{}, el, &QuestionError{Step: i, Question: question}
	}
	c.logger.Info("Answering security question.", zap.Int("step", i), zap.String("question", question))
	keys := answer + script.KeyEnter
	return Directive{Inject: &keys}, el, nil
}

// popup acts on an option that only some inputs make the site show.
func (c *Controller) popup(ctx context.Context, i int, s *script.HookStep, win browser.Window) (browser.Element, error) {
	el, found, err := probe(ctx, win, s.Locator, bestEffort(s.Base, c.opts.Timeouts.Probe))
	if err != nil {
		return nil, err
	}
	if !found {
		c.logger.Debug("No pop-up shown.", zap.Int("step", i), zap.String("name", s.Name))
		return nil, nil
	}
	return el, c.perform(ctx, i, s.Name, el, s.Actions, "")
}

func (c *Controller) currentURL(ctx context.Context, i int, s *script.HookStep, win browser.Window) error {
	u, err := win.URL(ctx)
	if err != nil {
		return &ActionError{Step: i, Name: s.Name, Action: "read url", Err: err}
	}
	c.env.Store.Add(capture.Record{Kind: capture.URL, Value: u, Step: i})
	c.logger.Info("Captured current address.", zap.Int("step", i), zap.String("url", u))
	return nil
}
