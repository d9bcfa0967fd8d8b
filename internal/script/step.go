package script

import (
	"fmt"
	"time"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/capture"
)

// Strategy selects how a step's target element is found.
type Strategy string

const (
	ByID     Strategy = "id"
	ByCSS    Strategy = "css"
	ByName   Strategy = "name"
	ByActive Strategy = "active" // whichever element currently has focus
)

// Locator identifies a DOM element.
type Locator struct {
	By    Strategy `yaml:"by"`
	Value string   `yaml:"value,omitempty"`
}

func (l Locator) String() string {
	if l.By == ByActive {
		return "active element"
	}
	return fmt.Sprintf("%s=%q", l.By, l.Value)
}

func (l Locator) validate() error {
	switch l.By {
	case ByActive:
		return nil
	case ByID, ByCSS, ByName:
		if l.Value == "" {
			return fmt.Errorf("locator %s needs a value", l.By)
		}
		return nil
	}
	return fmt.Errorf("unknown locator strategy %q", l.By)
}

// Action is a primitive UI interaction.
type Action string

const (
	ActionSendKeys Action = "send-keys"
	ActionClick    Action = "click"
	ActionHover    Action = "hover"
	ActionSelect   Action = "select"
)

func parseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionSendKeys, ActionClick, ActionHover, ActionSelect:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// HookKind names a conditional behavior that replaces locate-and-act.
type HookKind string

const (
	HookAutofill         HookKind = "autofill"
	HookSecurityQuestion HookKind = "security-question"
	HookPopup            HookKind = "popup"
	HookCurrentURL       HookKind = "current-url"
)

// Credential is the secret an autofill step types.
type Credential string

const (
	CredentialUsername Credential = "username"
	CredentialPassword Credential = "password"
)

// Special keys understood by the browser layer. They are plain control
// characters so that bound keys stay comparable strings.
const (
	KeyTab   = "\t"
	KeyEnter = "\n"
)

// Terminator is appended to a bound value.
type Terminator string

const (
	TerminatorDefault Terminator = ""
	TerminatorTab     Terminator = "tab"
	TerminatorEnter   Terminator = "enter"
	TerminatorNone    Terminator = "none"
)

// Keys returns the key sequence for the terminator.
func (t Terminator) Keys() string {
	switch t {
	case TerminatorTab:
		return KeyTab
	case TerminatorEnter:
		return KeyEnter
	}
	return ""
}

func parseTerminator(s string) (Terminator, error) {
	switch Terminator(s) {
	case TerminatorDefault, TerminatorTab, TerminatorEnter, TerminatorNone:
		return Terminator(s), nil
	}
	return "", fmt.Errorf("unknown terminator %q", s)
}

// Base carries the fields every step has.
type Base struct {
	Name string
	// Window is the index of the browser window the step runs in. 0 is the
	// window the session was opened with.
	Window int
	// Wait overrides the engine's default wait for this step when non-zero.
	Wait time.Duration
}

func (b Base) Common() Base { return b }

// Step is one entry of a script. The set of implementations is closed:
// *ActStep, *HookStep and *RetrieveStep.
type Step interface {
	Common() Base
	isStep()
}

// ActStep locates an element and performs actions on it.
type ActStep struct {
	Base
	Locator    Locator
	Actions    []Action
	Field      string
	Terminator Terminator
	// Injected marks a step whose keys come from the preceding hook rather
	// than from the input mapping.
	Injected bool

	Keys  string
	bound bool
}

// Bound reports whether Keys has been resolved by Bind.
func (s *ActStep) Bound() bool { return s.bound }

// NeedsKeys reports whether any action consumes Keys.
func (s *ActStep) NeedsKeys() bool {
	for _, a := range s.Actions {
		if a == ActionSendKeys || a == ActionSelect {
			return true
		}
	}
	return false
}

// HookStep hands the step over to a named hook.
type HookStep struct {
	Base
	Hook    HookKind
	Locator Locator
	// Actions are performed by the popup hook on the option it finds.
	Actions    []Action
	Credential Credential
	// Indicator is an element whose presence means the security question was
	// skipped by the site.
	Indicator *Locator
	Retrieve  capture.Kind
}

// RetrieveStep reads a value from the page into the capture store.
type RetrieveStep struct {
	Base
	Locator   Locator
	Kind      capture.Kind
	Attribute string
}

func (*ActStep) isStep()      {}
func (*HookStep) isStep()     {}
func (*RetrieveStep) isStep() {}

// Table is an ordered script.
type Table []Step

// Fields lists the input labels referenced by the table, in first-use order.
func (t Table) Fields() []string {
	var out []string
	seen := make(map[string]bool)
	for _, st := range t {
		s, ok := st.(*ActStep)
		if !ok || s.Field == "" || seen[s.Field] {
			continue
		}
		seen[s.Field] = true
		out = append(out, s.Field)
	}
	return out
}

// Validate checks that every step can be resolved by the executor.
func (t Table) Validate() error {
	for i, st := range t {
		if err := validateStep(st); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, st.Common().Name, err)
		}
	}
	return nil
}

func validateStep(st Step) error {
	if st.Common().Window < 0 {
		return fmt.Errorf("negative window index")
	}
	switch s := st.(type) {
	case *ActStep:
		if len(s.Actions) == 0 {
			return fmt.Errorf("act step without actions")
		}
		if err := s.Locator.validate(); err != nil {
			return err
		}
		if s.NeedsKeys() && s.Field == "" && !s.Injected {
			return fmt.Errorf("send-keys step without a field")
		}
		if s.Field != "" && s.Injected {
			return fmt.Errorf("step cannot be both bound and injected")
		}
	case *HookStep:
		switch s.Hook {
		case HookAutofill:
			if s.Credential != CredentialUsername && s.Credential != CredentialPassword {
				return fmt.Errorf("autofill hook needs credential username or password")
			}
			return s.Locator.validate()
		case HookSecurityQuestion:
			if s.Indicator != nil {
				if err := s.Indicator.validate(); err != nil {
					return fmt.Errorf("indicator: %w", err)
				}
			}
			return s.Locator.validate()
		case HookPopup:
			return s.Locator.validate()
		case HookCurrentURL:
			return nil
		default:
			return fmt.Errorf("unknown hook %q", s.Hook)
		}
	case *RetrieveStep:
		if s.Kind == capture.URL {
			return nil
		}
		if s.Kind != capture.Text && s.Kind != capture.AttributeValue {
			return fmt.Errorf("unknown retrieve kind %q", s.Kind)
		}
		return s.Locator.validate()
	default:
		return fmt.Errorf("unsupported step type %T", st)
	}
	return nil
}
