package script

import (
	"fmt"
	"strings"
)

// BindError reports a template field that the input mapping does not supply.
// It means the template and the input form disagree, so it is raised before
// any browser work starts.
type BindError struct {
	Step  int
	Name  string
	Field string
}

func (e *BindError) Error() string {
	return fmt.Sprintf("binding step %d (%s): field %q missing from input", e.Step, e.Name, e.Field)
}

// Derivations describes the values computed from other inputs before binding.
type Derivations struct {
	// MilestoneField is set from MilestoneSource with MilestonePrefix removed.
	MilestoneField  string `mapstructure:"milestone_field"`
	MilestoneSource string `mapstructure:"milestone_source"`
	MilestonePrefix string `mapstructure:"milestone_prefix"`

	// SentinelField always receives SentinelValue.
	SentinelField string `mapstructure:"sentinel_field"`
	SentinelValue string `mapstructure:"sentinel_value"`

	QuantityField   string `mapstructure:"quantity_field"`
	QuantityDefault string `mapstructure:"quantity_default"`

	// SiteAddressField is joined from SiteAddressParts with "_" when the
	// input does not carry it directly.
	SiteAddressField string   `mapstructure:"site_address_field"`
	SiteAddressParts []string `mapstructure:"site_address_parts"`
}

// DefaultDerivations matches the built-in template.
func DefaultDerivations() Derivations {
	return Derivations{
		MilestoneField:   "Milestone",
		MilestoneSource:  "Item",
		MilestonePrefix:  "SALES - ",
		SentinelField:    "Choose",
		SentinelValue:    "DONE",
		QuantityField:    "Quantity",
		QuantityDefault:  "1",
		SiteAddressField: "Site Address",
		SiteAddressParts: []string{"City", "Address", "Facility"},
	}
}

// StripPrefix removes prefix from the start of value. A value that does
// not start with prefix is returned unchanged.
func StripPrefix(value, prefix string) string {
	return strings.TrimPrefix(value, prefix)
}

// Apply returns a copy of fields with derived values added. The input map is
// not modified.
func (d Derivations) Apply(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields)+4)
	for k, v := range fields {
		out[k] = v
	}

	if d.MilestoneField != "" {
		if src, ok := out[d.MilestoneSource]; ok {
			out[d.MilestoneField] = StripPrefix(src, d.MilestonePrefix)
		}
	}
	if d.SentinelField != "" {
		out[d.SentinelField] = d.SentinelValue
	}
	if d.QuantityField != "" && out[d.QuantityField] == "" {
		out[d.QuantityField] = d.QuantityDefault
	}
	if d.SiteAddressField != "" && out[d.SiteAddressField] == "" && len(d.SiteAddressParts) > 0 {
		parts := make([]string, 0, len(d.SiteAddressParts))
		for _, p := range d.SiteAddressParts {
			v, ok := out[p]
			if !ok {
				parts = nil
				break
			}
			parts = append(parts, v)
		}
		if parts != nil {
			out[d.SiteAddressField] = strings.Join(parts, "_")
		}
	}
	return out
}

// Required maps the fields a table references to the input labels an operator
// must supply: derived fields are replaced by their sources.
func (d Derivations) Required(fields []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(f string) {
		if f != "" && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range fields {
		switch f {
		case d.MilestoneField:
			add(d.MilestoneSource)
		case d.SentinelField, d.QuantityField:
		case d.SiteAddressField:
			for _, p := range d.SiteAddressParts {
				add(p)
			}
		default:
			add(f)
		}
	}
	return out
}

// BindOptions controls Bind.
type BindOptions struct {
	Derivations Derivations
	// Terminator is used by steps that do not declare their own.
	Terminator Terminator
}

// Bind resolves input values into a copy of the template. Steps that type
// text get their field's value followed by the step terminator. The template
// is left untouched, so binding the same inputs twice gives equal tables.
func Bind(tmpl Table, fields map[string]string, opts BindOptions) (Table, error) {
	values := opts.Derivations.Apply(fields)
	def := opts.Terminator
	if def == TerminatorDefault {
		def = TerminatorTab
	}

	out := make(Table, len(tmpl))
	for i, st := range tmpl {
		s, ok := st.(*ActStep)
		if !ok || !s.NeedsKeys() || s.Injected {
			out[i] = st
			continue
		}
		v, ok := values[s.Field]
		if !ok {
			return nil, &BindError{Step: i, Name: s.Name, Field: s.Field}
		}
		term := s.Terminator
		if term == TerminatorDefault {
			term = def
		}
		bound := *s
		bound.Actions = append([]Action(nil), s.Actions...)
		bound.Keys = v + term.Keys()
		bound.bound = true
		out[i] = &bound
	}
	return out, nil
}

// SplitKeys separates trailing special keys from the text part of a bound
// value.
func SplitKeys(keys string) (text, special string) {
	i := len(keys)
	for i > 0 && (keys[i-1] == KeyTab[0] || keys[i-1] == KeyEnter[0]) {
		i--
	}
	return keys[:i], keys[i:]
}
