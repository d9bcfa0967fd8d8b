package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/browser"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/capture"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/inputs"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/progress"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/script"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testTimeouts = Timeouts{
	Locate: Required(50 * time.Millisecond),
	Window: Required(300 * time.Millisecond),
	Probe:  BestEffort(10 * time.Millisecond),
	Bypass: BestEffort(20 * time.Millisecond),
}

func testCredentials() inputs.Credentials {
	return inputs.NewCredentials("ops@example.com", "hunter2", map[string]string{
		"First pet?": "Rex",
	})
}

func newTestController(d browser.Driver, opts Options) *Controller {
	if opts.Timeouts == (Timeouts{}) {
		opts.Timeouts = testTimeouts
	}
	return New(d, Env{Credentials: testCredentials(), Store: capture.NewStore()}, opts, zap.NewNop())
}

func bind(t *testing.T, tmpl script.Table, fields map[string]string) script.Table {
	t.Helper()
	table, err := script.Bind(tmpl, fields, script.BindOptions{})
	require.NoError(t, err)
	return table
}

func securityTable() script.Table {
	ind := name("custrecord_appfcust_display")
	return script.Table{
		&script.HookStep{Base: script.Base{Name: "question"}, Hook: script.HookSecurityQuestion, Locator: css("td.question"), Indicator: &ind},
		&script.ActStep{Base: script.Base{Name: "answer"}, Locator: name("answer"), Actions: []script.Action{script.ActionSendKeys}, Injected: true},
		&script.ActStep{Base: script.Base{Name: "memo"}, Locator: name("memo"), Actions: []script.Action{script.ActionSendKeys}, Field: "Memo"},
	}
}

func TestSecurityQuestionInjectsAnswerIntoNextStepOnly(t *testing.T) {
	d := newStubDriver("https://site/login")
	w := d.window(0)
	w.add(css("td.question"), &stubElement{text: "  First pet? \n"})
	w.add(name("answer"), &stubElement{})
	w.add(name("memo"), &stubElement{})

	table := bind(t, securityTable(), map[string]string{"Memo": "note"})
	res, err := newTestController(d, Options{}).Run(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, Result{Advanced: 3}, res)
	assert.Equal(t, []string{
		"w0 focus",
		`w0 keys name="answer" "Rex\n"`,
		`w0 keys name="memo" "note\t"`,
	}, d.actions())

	answer := table[1].(*script.ActStep)
	assert.Empty(t, answer.Keys, "injection must not be written back into the table")
}

func TestSecurityQuestionIndicatorSkipsAnswerStep(t *testing.T) {
	d := newStubDriver("https://site/login")
	w := d.window(0)
	w.add(name("custrecord_appfcust_display"), &stubElement{})
	w.add(name("memo"), &stubElement{})

	table := bind(t, securityTable(), map[string]string{"Memo": "note"})
	res, err := newTestController(d, Options{}).Run(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, Result{Advanced: 2, Skipped: 1}, res)
	assert.Equal(t, []string{"w0 focus", `w0 keys name="memo" "note\t"`}, d.actions())
	require.NotEmpty(t, d.waits)
	assert.Equal(t, time.Duration(testTimeouts.Bypass), d.waits[0])
}

func TestSecurityQuestionIndicatorOnSlowPage(t *testing.T) {
	d := newStubDriver("https://site/login")
	w := d.window(0)
	w.add(name("custrecord_appfcust_display"), &stubElement{hiddenFor: 2})
	w.add(name("memo"), &stubElement{})

	table := bind(t, securityTable(), map[string]string{"Memo": "note"})
	res, err := newTestController(d, Options{}).Run(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, Result{Advanced: 2, Skipped: 1}, res)
	assert.Equal(t, []string{"w0 focus", `w0 keys name="memo" "note\t"`}, d.actions())
}

func TestSecurityQuestionOnSlowPage(t *testing.T) {
	d := newStubDriver("https://site/login")
	w := d.window(0)
	w.add(css("td.question"), &stubElement{text: "First pet?", hiddenFor: 3})
	w.add(name("answer"), &stubElement{})
	w.add(name("memo"), &stubElement{})

	table := bind(t, securityTable(), map[string]string{"Memo": "note"})
	res, err := newTestController(d, Options{}).Run(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, Result{Advanced: 3}, res)
	assert.Contains(t, d.actions(), `w0 keys name="answer" "Rex\n"`)
}

func TestSecurityQuestionNeitherShownIsLocateFailure(t *testing.T) {
	d := newStubDriver("https://site/login")

	start := time.Now()
	_, err := newTestController(d, Options{}).Run(context.Background(), bind(t, securityTable(), map[string]string{"Memo": "note"}))

	var lerr *LocateError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 0, lerr.Step)
	assert.Contains(t, lerr.Target, `css="td.question"`)
	assert.Contains(t, lerr.Target, `name="custrecord_appfcust_display"`)
	assert.ErrorIs(t, err, browser.ErrNotFound)
	assert.GreaterOrEqual(t, time.Since(start), time.Duration(testTimeouts.Locate))
}

func TestSecurityQuestionWithoutAnswerFails(t *testing.T) {
	d := newStubDriver("https://site/login")
	w := d.window(0)
	w.add(css("td.question"), &stubElement{text: "Mother's maiden name?"})
	w.add(name("answer"), &stubElement{})

	table := bind(t, securityTable(), map[string]string{"Memo": "note"})
	res, err := newTestController(d, Options{}).Run(context.Background(), table)

	var qerr *QuestionError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "Mother's maiden name?", qerr.Question)
	assert.Equal(t, 0, qerr.Step)
	assert.Zero(t, res.Advanced)
}

func TestInjectionIntoHookStepFails(t *testing.T) {
	d := newStubDriver("https://site/login")
	d.window(0).add(css("td.question"), &stubElement{text: "First pet?"})

	ind := name("never-there")
	table := script.Table{
		&script.HookStep{Base: script.Base{Name: "question"}, Hook: script.HookSecurityQuestion, Locator: css("td.question"), Indicator: &ind},
		&script.HookStep{Base: script.Base{Name: "address"}, Hook: script.HookCurrentURL},
	}
	_, err := newTestController(d, Options{}).Run(context.Background(), table)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "injected keys need an act step")
}

func TestInjectedStepWithoutHookFails(t *testing.T) {
	d := newStubDriver("https://site/login")
	d.window(0).add(name("answer"), &stubElement{})

	table := script.Table{
		&script.ActStep{Base: script.Base{Name: "answer"}, Locator: name("answer"), Actions: []script.Action{script.ActionSendKeys}, Injected: true},
	}
	_, err := newTestController(d, Options{}).Run(context.Background(), table)
	require.Error(t, err)
	assert.Empty(t, d.actions()[1:])
}

func TestPopupAbsentIsNoop(t *testing.T) {
	d := newStubDriver("https://site/proposal")
	d.window(0).add(id("next"), &stubElement{})

	table := script.Table{
		&script.HookStep{Base: script.Base{Name: "pop-up"}, Hook: script.HookPopup, Locator: css(".popup td"), Actions: []script.Action{script.ActionClick}},
		&script.HookStep{Base: script.Base{Name: "slow pop-up", Wait: 15 * time.Millisecond}, Hook: script.HookPopup, Locator: css(".popup td"), Actions: []script.Action{script.ActionClick}},
		&script.ActStep{Base: script.Base{Name: "next"}, Locator: id("next"), Actions: []script.Action{script.ActionClick}},
	}
	res, err := newTestController(d, Options{}).Run(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, Result{Advanced: 3}, res)
	assert.Equal(t, []string{"w0 focus", `w0 click id="next"`}, d.actions())
	assert.Equal(t, []time.Duration{
		time.Duration(testTimeouts.Probe),
		15 * time.Millisecond,
		time.Duration(testTimeouts.Locate),
	}, d.waits)
}

func TestPopupPresentRunsActions(t *testing.T) {
	d := newStubDriver("https://site/proposal")
	d.window(0).add(css(".popup td"), &stubElement{})

	table := script.Table{
		&script.HookStep{Base: script.Base{Name: "pop-up"}, Hook: script.HookPopup, Locator: css(".popup td"), Actions: []script.Action{script.ActionHover, script.ActionClick}},
	}
	_, err := newTestController(d, Options{}).Run(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, []string{"w0 focus", `w0 hover css=".popup td"`, `w0 click css=".popup td"`}, d.actions())
}

func TestFiveStepRun(t *testing.T) {
	d := newStubDriver("https://site/app/proposal.nl?id=42")
	w := d.window(0)
	w.add(id("email"), &stubElement{})
	w.add(id("password"), &stubElement{})
	w.add(name("customer"), &stubElement{})
	w.add(css("#title + span"), &stubElement{text: "P1234 ACME Widget"})

	tmpl := script.Table{
		&script.HookStep{Base: script.Base{Name: "username"}, Hook: script.HookAutofill, Credential: script.CredentialUsername, Locator: id("email")},
		&script.HookStep{Base: script.Base{Name: "password"}, Hook: script.HookAutofill, Credential: script.CredentialPassword, Locator: id("password")},
		&script.ActStep{Base: script.Base{Name: "customer"}, Locator: name("customer"), Actions: []script.Action{script.ActionSendKeys}, Field: "Customer"},
		&script.RetrieveStep{Base: script.Base{Name: "title"}, Locator: css("#title + span"), Kind: capture.Text},
		&script.HookStep{Base: script.Base{Name: "address"}, Hook: script.HookCurrentURL, Retrieve: capture.URL},
	}
	c := newTestController(d, Options{})
	res, err := c.Run(context.Background(), bind(t, tmpl, map[string]string{"Customer": "ACME"}))
	require.NoError(t, err)

	assert.Equal(t, 5, res.Advanced)
	assert.Equal(t, []string{
		"w0 focus",
		`w0 click id="email"`,
		`w0 keys id="email" "ops@example.com"`,
		`w0 click id="password"`,
		`w0 keys id="password" "hunter2\n"`,
		`w0 keys name="customer" "ACME\t"`,
	}, d.actions())

	urls := 0
	for _, r := range c.Store().All() {
		if r.Kind == capture.URL {
			urls++
		}
	}
	assert.Equal(t, 1, urls)
	u, ok := c.Store().First(capture.URL)
	require.True(t, ok)
	assert.Equal(t, "https://site/app/proposal.nl?id=42", u.Value)
	title, ok := c.Store().First(capture.Text)
	require.True(t, ok)
	assert.Equal(t, "P1234 ACME Widget", title.Value)
	assert.Equal(t, 3, title.Step)
}

func TestAutofillRespectsPrefilledFields(t *testing.T) {
	d := newStubDriver("https://site/login")
	w := d.window(0)
	w.add(id("email"), &stubElement{value: "saved@example.com"})
	w.add(id("password"), &stubElement{value: "********"})

	table := script.Table{
		&script.HookStep{Base: script.Base{Name: "username"}, Hook: script.HookAutofill, Credential: script.CredentialUsername, Locator: id("email")},
		&script.HookStep{Base: script.Base{Name: "password"}, Hook: script.HookAutofill, Credential: script.CredentialPassword, Locator: id("password")},
	}
	_, err := newTestController(d, Options{}).Run(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"w0 focus",
		`w0 click id="email"`,
		`w0 click id="password"`,
		`w0 keys id="password" "\n"`,
	}, d.actions())
}

func TestRetrieveAttributeValue(t *testing.T) {
	d := newStubDriver("https://site/project")
	w := d.window(0)
	w.add(name("subfacility"), &stubElement{value: "Plant 2"})
	w.add(name("code"), &stubElement{attrs: map[string]string{"data-code": "X9"}})

	table := script.Table{
		&script.RetrieveStep{Base: script.Base{Name: "sub-facility"}, Locator: name("subfacility"), Kind: capture.AttributeValue, Attribute: "value"},
		&script.RetrieveStep{Base: script.Base{Name: "code"}, Locator: name("code"), Kind: capture.AttributeValue, Attribute: "data-code"},
	}
	c := newTestController(d, Options{})
	_, err := c.Run(context.Background(), table)
	require.NoError(t, err)

	all := c.Store().All()
	require.Len(t, all, 2)
	assert.Equal(t, "Plant 2", all[0].Value)
	assert.Equal(t, "X9", all[1].Value)
}

func TestWindowIsNotActedOnBeforeItExists(t *testing.T) {
	d := newStubDriver("https://site/proposal")
	var wg sync.WaitGroup
	defer wg.Wait()

	d.window(0).add(id("new_project"), &stubElement{onClick: func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(30 * time.Millisecond)
			d.openWith("https://site/project", func(w *stubWindow) {
				w.add(name("parent_display"), &stubElement{})
			})
		}()
	}})
	d.window(0).add(id("save"), &stubElement{})

	tmpl := script.Table{
		&script.ActStep{Base: script.Base{Name: "new project"}, Locator: id("new_project"), Actions: []script.Action{script.ActionClick}},
		&script.ActStep{Base: script.Base{Name: "project customer", Window: 1}, Locator: name("parent_display"), Actions: []script.Action{script.ActionSendKeys}, Field: "Customer"},
		&script.ActStep{Base: script.Base{Name: "save"}, Locator: id("save"), Actions: []script.Action{script.ActionClick}},
	}
	res, err := newTestController(d, Options{}).Run(context.Background(), bind(t, tmpl, map[string]string{"Customer": "ACME"}))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Advanced)
	assert.Equal(t, []string{
		"w0 focus",
		`w0 click id="new_project"`,
		"w1 focus",
		`w1 keys name="parent_display" "ACME\t"`,
		"w0 focus",
		`w0 click id="save"`,
	}, d.actions())
}

func TestWindowThatNeverOpensIsLocateFailure(t *testing.T) {
	d := newStubDriver("https://site/proposal")
	tmpl := script.Table{
		&script.ActStep{Base: script.Base{Name: "project customer", Window: 1}, Locator: name("parent_display"), Actions: []script.Action{script.ActionClick}},
	}
	opts := Options{Timeouts: testTimeouts}
	opts.Timeouts.Window = Required(20 * time.Millisecond)

	_, err := newTestController(d, opts).Run(context.Background(), tmpl)
	var lerr *LocateError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "window 1", lerr.Target)
	assert.ErrorIs(t, err, browser.ErrNoWindow)
	assert.Empty(t, d.actions())
}

func TestMissingElementAbortsRun(t *testing.T) {
	d := newStubDriver("https://site/proposal")
	d.window(0).add(id("first"), &stubElement{})

	tmpl := script.Table{
		&script.ActStep{Base: script.Base{Name: "first"}, Locator: id("first"), Actions: []script.Action{script.ActionClick}},
		&script.ActStep{Base: script.Base{Name: "missing"}, Locator: id("missing"), Actions: []script.Action{script.ActionClick}},
		&script.ActStep{Base: script.Base{Name: "never"}, Locator: id("first"), Actions: []script.Action{script.ActionHover}},
	}
	res, err := newTestController(d, Options{}).Run(context.Background(), tmpl)

	var lerr *LocateError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 1, lerr.Step)
	assert.Equal(t, "missing", lerr.Name)
	assert.ErrorIs(t, err, browser.ErrNotFound)
	assert.Equal(t, 1, res.Advanced)
	assert.NotContains(t, d.actions(), `w0 hover id="first"`)
}

func TestActionFailureIsReported(t *testing.T) {
	d := newStubDriver("https://site/proposal")
	d.window(0).add(id("btn"), &stubElement{failOn: "click"})

	tmpl := script.Table{
		&script.ActStep{Base: script.Base{Name: "save"}, Locator: id("btn"), Actions: []script.Action{script.ActionClick}},
	}
	_, err := newTestController(d, Options{}).Run(context.Background(), tmpl)
	var aerr *ActionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "click", aerr.Action)
}

func TestUnboundStepFails(t *testing.T) {
	d := newStubDriver("https://site/proposal")
	d.window(0).add(name("memo"), &stubElement{})

	tmpl := script.Table{
		&script.ActStep{Base: script.Base{Name: "memo"}, Locator: name("memo"), Actions: []script.Action{script.ActionSendKeys}, Field: "Memo"},
	}
	_, err := newTestController(d, Options{}).Run(context.Background(), tmpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not bound")
}

func TestPausedRunStopsOnCancel(t *testing.T) {
	d := newStubDriver("https://site/proposal")
	d.window(0).add(id("btn"), &stubElement{})

	gate := &progress.Gate{}
	gate.Pause()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	tmpl := script.Table{
		&script.ActStep{Base: script.Base{Name: "save"}, Locator: id("btn"), Actions: []script.Action{script.ActionClick}},
	}
	res, err := newTestController(d, Options{Gate: gate}).Run(ctx, tmpl)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, res.Advanced)
	assert.Empty(t, d.actions())
}

func TestPausedRunContinuesOnResume(t *testing.T) {
	d := newStubDriver("https://site/proposal")
	d.window(0).add(id("btn"), &stubElement{})

	gate := &progress.Gate{}
	gate.Pause()
	timer := time.AfterFunc(20*time.Millisecond, gate.Resume)
	defer timer.Stop()

	tmpl := script.Table{
		&script.ActStep{Base: script.Base{Name: "save"}, Locator: id("btn"), Actions: []script.Action{script.ActionClick}},
	}
	res, err := newTestController(d, Options{Gate: gate}).Run(context.Background(), tmpl)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Advanced)
}

func TestPanicInStepIsRecovered(t *testing.T) {
	d := newStubDriver("https://site/proposal")
	d.window(0).add(id("btn"), &stubElement{onClick: func() { panic("boom") }})

	tmpl := script.Table{
		&script.ActStep{Base: script.Base{Name: "save"}, Locator: id("btn"), Actions: []script.Action{script.ActionClick}},
	}
	_, err := newTestController(d, Options{}).Run(context.Background(), tmpl)
	assert.True(t, errors.Is(err, ErrUnexpected))
	assert.Contains(t, err.Error(), "boom")
}

type recordingObserver struct {
	events []Event
}

func (o *recordingObserver) Observe(_ context.Context, ev Event) {
	o.events = append(o.events, ev)
}

func TestObserverSeesExecutedSteps(t *testing.T) {
	d := newStubDriver("https://site/login")
	d.window(0).add(name("custrecord_appfcust_display"), &stubElement{})
	d.window(0).add(name("memo"), &stubElement{})

	obs := &recordingObserver{}
	table := bind(t, securityTable(), map[string]string{"Memo": "note"})
	_, err := newTestController(d, Options{Observer: obs}).Run(context.Background(), table)
	require.NoError(t, err)

	require.Len(t, obs.events, 2)
	assert.Equal(t, 0, obs.events[0].Index)
	assert.Nil(t, obs.events[0].Element)
	assert.Equal(t, 2, obs.events[1].Index)
	assert.NotNil(t, obs.events[1].Element)
	assert.NoError(t, obs.events[1].Err)
}

func TestStepDelayHonoursContext(t *testing.T) {
	d := newStubDriver("https://site/proposal")
	d.window(0).add(id("btn"), &stubElement{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tmpl := script.Table{
		&script.ActStep{Base: script.Base{Name: "save"}, Locator: id("btn"), Actions: []script.Action{script.ActionClick}},
	}
	_, err := newTestController(d, Options{StepDelay: time.Hour}).Run(ctx, tmpl)
	assert.ErrorIs(t, err, context.Canceled)
}
