// Package inputs holds the operator-supplied values for a run: the field
// mapping, the run flags and the login bundle extracted from them.
package inputs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Form is what the operator fills in before a run.
type Form struct {
	Fields       map[string]string `yaml:"fields"`
	ProjectPath  string            `yaml:"project_path,omitempty"`
	Configurator bool              `yaml:"configurator,omitempty"`
	QuoteLog     bool              `yaml:"quote_log,omitempty"`
}

// ValidationError lists the labels that are missing or empty.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing input fields: %s", strings.Join(e.Missing, ", "))
}

// Load reads a form from a YAML file.
func Load(path string) (*Form, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read form: %w", err)
	}
	var f Form
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse form %s: %w", path, err)
	}
	if f.Fields == nil {
		f.Fields = make(map[string]string)
	}
	return &f, nil
}

// Save writes the form to path. The file holds the login bundle, so it is
// only readable by its owner.
func Save(path string, f *Form) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode form: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create form directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write form: %w", err)
	}
	return nil
}

// LoginLabels are the labels that make up the credential bundle.
func LoginLabels() []string {
	out := []string{LabelUsername, LabelPassword}
	for i := range QuestionLabels {
		out = append(out, QuestionLabels[i], AnswerLabels[i])
	}
	return out
}

// Validate checks that every required label and every login label is present
// and non-empty.
func (f *Form) Validate(required []string) error {
	var missing []string
	seen := make(map[string]bool)
	check := func(label string) {
		if seen[label] {
			return
		}
		seen[label] = true
		if strings.TrimSpace(f.Fields[label]) == "" {
			missing = append(missing, label)
		}
	}
	for _, l := range LoginLabels() {
		check(l)
	}
	for _, l := range required {
		check(l)
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Credentials extracts the login bundle. The returned map holds the remaining
// detail fields and is a copy.
func (f *Form) Credentials() (Credentials, map[string]string) {
	answers := make(map[string]string, len(QuestionLabels))
	for i, ql := range QuestionLabels {
		if q := f.Fields[ql]; q != "" {
			answers[q] = f.Fields[AnswerLabels[i]]
		}
	}
	creds := NewCredentials(f.Fields[LabelUsername], f.Fields[LabelPassword], answers)

	_, details := f.Split()
	return creds, details.Fields
}

// Split separates the login bundle from the proposal details so they can be
// saved to different files.
func (f *Form) Split() (login, details *Form) {
	isLogin := make(map[string]bool)
	for _, l := range LoginLabels() {
		isLogin[l] = true
	}
	login = &Form{Fields: make(map[string]string)}
	details = &Form{
		Fields:       make(map[string]string),
		ProjectPath:  f.ProjectPath,
		Configurator: f.Configurator,
		QuoteLog:     f.QuoteLog,
	}
	for k, v := range f.Fields {
		if isLogin[k] {
			login.Fields[k] = v
		} else {
			details.Fields[k] = v
		}
	}
	return login, details
}

// Merge overlays the fields and flags of other onto a copy of f. Values in
// other win.
func (f *Form) Merge(other *Form) *Form {
	out := &Form{
		Fields:       make(map[string]string, len(f.Fields)+len(other.Fields)),
		ProjectPath:  f.ProjectPath,
		Configurator: f.Configurator || other.Configurator,
		QuoteLog:     f.QuoteLog || other.QuoteLog,
	}
	for k, v := range f.Fields {
		out.Fields[k] = v
	}
	for k, v := range other.Fields {
		out.Fields[k] = v
	}
	if other.ProjectPath != "" {
		out.ProjectPath = other.ProjectPath
	}
	return out
}

// Skeleton returns a form with every label present and empty, for the
// operator to fill in.
func Skeleton(required []string) *Form {
	f := &Form{Fields: make(map[string]string)}
	for _, l := range LoginLabels() {
		f.Fields[l] = ""
	}
	for _, l := range required {
		f.Fields[l] = ""
	}
	return f
}

// Masked returns a copy of the fields with login values replaced, for
// printing.
func (f *Form) Masked() map[string]string {
	secret := make(map[string]bool)
	for _, l := range []string{LabelPassword, AnswerLabels[0], AnswerLabels[1], AnswerLabels[2]} {
		secret[l] = true
	}
	out := make(map[string]string, len(f.Fields))
	for k, v := range f.Fields {
		if secret[k] && v != "" {
			v = "****"
		}
		out[k] = v
	}
	return out
}

// SortedLabels returns the field labels in lexical order.
func (f *Form) SortedLabels() []string {
	out := make([]string, 0, len(f.Fields))
	for k := range f.Fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
