package script

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/capture"
)

//go:embed templates/proposal.yaml
var defaultTemplate []byte

// rawStep is the YAML shape of a step. Which variant it becomes depends on
// whether hook or retrieve is set.
type rawStep struct {
	Name       string        `yaml:"name"`
	Window     int           `yaml:"window"`
	Wait       time.Duration `yaml:"wait"`
	Locate     *Locator      `yaml:"locate"`
	Actions    []string      `yaml:"actions"`
	Field      string        `yaml:"field"`
	Terminator string        `yaml:"terminator"`
	Injected   bool          `yaml:"injected"`
	Hook       string        `yaml:"hook"`
	Credential string        `yaml:"credential"`
	Indicator  *Locator      `yaml:"indicator"`
	Retrieve   string        `yaml:"retrieve"`
	Attribute  string        `yaml:"attribute"`
}

type rawTemplate struct {
	Steps []rawStep `yaml:"steps"`
}

// Default returns a fresh copy of the built-in proposal/project script.
func Default() (Table, error) {
	return Parse(defaultTemplate)
}

// LoadFile reads a template from disk.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML template.
func Parse(data []byte) (Table, error) {
	var raw rawTemplate
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	if len(raw.Steps) == 0 {
		return nil, fmt.Errorf("template has no steps")
	}

	table := make(Table, 0, len(raw.Steps))
	for i, rs := range raw.Steps {
		st, err := rs.toStep()
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, rs.Name, err)
		}
		table = append(table, st)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func (rs rawStep) toStep() (Step, error) {
	base := Base{Name: rs.Name, Window: rs.Window, Wait: rs.Wait}
	actions, err := parseActions(rs.Actions)
	if err != nil {
		return nil, err
	}
	var loc Locator
	if rs.Locate != nil {
		loc = *rs.Locate
	}

	switch {
	case rs.Hook != "":
		s := &HookStep{
			Base:       base,
			Hook:       HookKind(rs.Hook),
			Locator:    loc,
			Actions:    actions,
			Credential: Credential(rs.Credential),
			Indicator:  rs.Indicator,
		}
		if rs.Retrieve != "" {
			k, err := capture.ParseKind(rs.Retrieve)
			if err != nil {
				return nil, err
			}
			s.Retrieve = k
		}
		return s, nil

	case rs.Retrieve != "":
		k, err := capture.ParseKind(rs.Retrieve)
		if err != nil {
			return nil, err
		}
		if len(actions) > 0 {
			return nil, fmt.Errorf("retrieve step cannot declare actions")
		}
		attr := rs.Attribute
		if k == capture.AttributeValue && attr == "" {
			attr = "value"
		}
		return &RetrieveStep{Base: base, Locator: loc, Kind: k, Attribute: attr}, nil
	}

	term, err := parseTerminator(rs.Terminator)
	if err != nil {
		return nil, err
	}
	return &ActStep{
		Base:       base,
		Locator:    loc,
		Actions:    actions,
		Field:      rs.Field,
		Terminator: term,
		Injected:   rs.Injected,
	}, nil
}

func parseActions(in []string) ([]Action, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]Action, 0, len(in))
	for _, s := range in {
		a, err := parseAction(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
