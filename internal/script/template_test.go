package script

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/capture"
)

func TestDefaultTemplateShape(t *testing.T) {
	tmpl, err := Default()
	require.NoError(t, err)

	hooks := map[HookKind]int{}
	windows := map[int]int{}
	for _, st := range tmpl {
		windows[st.Common().Window]++
		if h, ok := st.(*HookStep); ok {
			hooks[h.Hook]++
		}
	}
	assert.Equal(t, 2, hooks[HookAutofill])
	assert.Equal(t, 1, hooks[HookSecurityQuestion])
	assert.Equal(t, 4, hooks[HookPopup])
	assert.Equal(t, 1, hooks[HookCurrentURL])
	assert.NotZero(t, windows[1])

	last, ok := tmpl[len(tmpl)-1].(*HookStep)
	require.True(t, ok)
	assert.Equal(t, capture.URL, last.Retrieve)

	sq, ok := tmpl[2].(*HookStep)
	require.True(t, ok)
	require.NotNil(t, sq.Indicator)
	answer, ok := tmpl[3].(*ActStep)
	require.True(t, ok)
	assert.True(t, answer.Injected)
}

func TestDefaultReturnsFreshTable(t *testing.T) {
	a, err := Default()
	require.NoError(t, err)
	b, err := Default()
	require.NoError(t, err)

	a[4].(*ActStep).Field = "changed"
	assert.Equal(t, "Customer", b[4].(*ActStep).Field)
}

func TestParseVariants(t *testing.T) {
	src := `
steps:
  - name: hover then click
    locate: {by: id, value: menu}
    actions: [hover, click]
    wait: 250ms
  - name: focused
    locate: {by: active}
    actions: [send-keys]
    field: Note
    terminator: enter
  - name: sub-facility
    window: 1
    locate: {by: name, value: subfac}
    retrieve: attr
  - name: pop-up
    hook: popup
    locate: {by: css, value: ".popup td"}
    actions: [click]
    wait: 100ms
`
	tmpl, err := Parse([]byte(src))
	require.NoError(t, err)
	require.Len(t, tmpl, 4)

	act := tmpl[0].(*ActStep)
	assert.Equal(t, []Action{ActionHover, ActionClick}, act.Actions)
	assert.Equal(t, 250*time.Millisecond, act.Wait)

	focused := tmpl[1].(*ActStep)
	assert.Equal(t, ByActive, focused.Locator.By)
	assert.Equal(t, TerminatorEnter, focused.Terminator)

	ret := tmpl[2].(*RetrieveStep)
	assert.Equal(t, capture.AttributeValue, ret.Kind)
	assert.Equal(t, "value", ret.Attribute)
	assert.Equal(t, 1, ret.Window)

	hook := tmpl[3].(*HookStep)
	assert.Equal(t, HookPopup, hook.Hook)
	assert.Equal(t, []Action{ActionClick}, hook.Actions)

	assert.Equal(t, []string{"Note"}, tmpl.Fields())
}

func TestParseRejectsInvalidSteps(t *testing.T) {
	tests := map[string]string{
		"empty":               `steps: []`,
		"unknown action":      "steps:\n  - locate: {by: id, value: a}\n    actions: [drag]\n",
		"no actions":          "steps:\n  - locate: {by: id, value: a}\n",
		"send-keys no field":  "steps:\n  - locate: {by: id, value: a}\n    actions: [send-keys]\n",
		"missing locator":     "steps:\n  - locate: {by: css}\n    actions: [click]\n",
		"bad strategy":        "steps:\n  - locate: {by: xpath, value: //a}\n    actions: [click]\n",
		"unknown hook":        "steps:\n  - hook: teleport\n",
		"autofill credential": "steps:\n  - hook: autofill\n    locate: {by: id, value: email}\n",
		"retrieve actions":    "steps:\n  - locate: {by: id, value: a}\n    retrieve: text\n    actions: [click]\n",
		"unknown key":         "steps:\n  - locate: {by: id, value: a}\n    actions: [click]\n    colour: red\n",
		"negative window":     "steps:\n  - locate: {by: id, value: a}\n    actions: [click]\n    window: -1\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLocatorString(t *testing.T) {
	assert.Equal(t, `id="email"`, Locator{By: ByID, Value: "email"}.String())
	assert.Equal(t, "active element", Locator{By: ByActive}.String())
}
