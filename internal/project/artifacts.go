package project

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoID is returned when the run did not capture a project number.
var ErrNoID = errors.New("project number was not captured")

// Artifacts lists what MakeDirs wrote.
type Artifacts struct {
	JobDir    string
	Takeoff   string
	Checklist string
	Config    string // empty unless the configurator sheet was requested
}

type takeoffSheet struct {
	Number string `yaml:"number"`
	Date   string `yaml:"date"`
	Client string `yaml:"client"`
	Name   string `yaml:"project_name"`
	Type   string `yaml:"project_type"`
	URL    string `yaml:"proposal_url"`
}

type checklistSheet struct {
	Number string `yaml:"project_number"`
}

type configSheet struct {
	Number string `yaml:"project_number"`
	Name   string `yaml:"project_name"`
}

// MakeDirs creates <path>/<name>/<id>_<item>/ with one subdirectory per entry
// of jobDirs, and writes the takeoff, checklist and (optionally)
// configurator sheets into it. Existing directories are reused.
func MakeDirs(d Data, jobDirs []string, now time.Time) (Artifacts, error) {
	if d.ID == "" {
		return Artifacts{}, ErrNoID
	}
	if d.Path == "" {
		return Artifacts{}, fmt.Errorf("project path is empty")
	}

	jobDir := filepath.Join(d.Path, safeName(d.Name), safeName(d.ID+"_"+d.Item))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("failed to create job directory: %w", err)
	}
	for _, sub := range jobDirs {
		if err := os.MkdirAll(filepath.Join(jobDir, sub), 0o755); err != nil {
			return Artifacts{}, fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	a := Artifacts{JobDir: jobDir}
	a.Takeoff = filepath.Join(jobDir, safeName(fmt.Sprintf("%s_%s_takeoff_1.0.0.yaml", d.ID, d.Item)))
	if err := writeYAML(a.Takeoff, takeoffSheet{
		Number: d.ID,
		Date:   now.Format("02-01-2006"),
		Client: d.Client,
		Name:   d.Name,
		Type:   d.Type,
		URL:    d.URL,
	}); err != nil {
		return a, err
	}

	checklistDir := jobDir
	if len(jobDirs) > 1 {
		checklistDir = filepath.Join(jobDir, jobDirs[1])
	}
	a.Checklist = filepath.Join(checklistDir, d.ID+"_Job Opening Checklist_1.0.0.yaml")
	if err := writeYAML(a.Checklist, checklistSheet{Number: d.ID}); err != nil {
		return a, err
	}

	if d.Configurator {
		a.Config = filepath.Join(jobDir, d.ID+"_CONFIGURATOR_1.0.0.yaml")
		if err := writeYAML(a.Config, configSheet{Number: d.ID, Name: d.Name}); err != nil {
			return a, err
		}
	}
	return a, nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// safeName keeps a single path element from escaping its parent.
func safeName(s string) string {
	return strings.NewReplacer("/", "-", `\`, "-").Replace(s)
}

// AppendQuoteLog adds one row for the project to the CSV quote log at path,
// creating the file when needed. The row is: date, client, path, item,
// project number, "TBD", sales rep.
func AppendQuoteLog(path string, d Data, now time.Time) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create quote log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open quote log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		now.Format("02-Jan-06"),
		d.Client,
		d.Path,
		d.Item,
		d.ID,
		"TBD",
		d.Rep,
	}); err != nil {
		return fmt.Errorf("failed to write quote log row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write quote log row: %w", err)
	}
	return f.Close()
}
