// Package project turns a finished run into the operator's project
// artifacts: the project record, the local job directory and the quote log.
package project

import (
	"regexp"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/capture"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/inputs"
)

// Input labels the record is assembled from.
const (
	LabelItem     = "Item"
	LabelCustomer = "Customer"
	LabelType     = "Project Type"
	LabelScope    = "Project Scope"
	LabelRep      = "Proposal Sales Rep"
)

var idPattern = regexp.MustCompile(`^\S\d+`)

// Data describes the project created by a run.
type Data struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Scope        string `yaml:"scope"`
	Type         string `yaml:"type"`
	Item         string `yaml:"item"`
	Rep          string `yaml:"rep"`
	Client       string `yaml:"client"`
	Subfacility  string `yaml:"subfacility"`
	URL          string `yaml:"url"`
	Path         string `yaml:"path"`
	Configurator bool   `yaml:"configurator"`
	QuoteLog     bool   `yaml:"quote_log"`
}

// Build assembles the project record from the form and the values scraped
// during the run. Missing captures leave the matching fields empty.
func Build(form *inputs.Form, store capture.Reader) Data {
	f := form.Fields
	d := Data{
		Scope:        f[LabelScope],
		Type:         f[LabelType],
		Item:         f[LabelItem],
		Rep:          f[LabelRep],
		Client:       f[LabelCustomer],
		Path:         form.ProjectPath,
		Configurator: form.Configurator,
		QuoteLog:     form.QuoteLog,
	}
	d.Name = d.Client + "_" + d.Scope

	if r, ok := store.First(capture.Text); ok {
		d.ID = ParseID(r.Value)
	}
	if r, ok := store.First(capture.AttributeValue); ok {
		d.Subfacility = r.Value
	}
	if r, ok := store.First(capture.URL); ok {
		d.URL = r.Value
	}
	return d
}

// ParseID extracts the project number from the start of a project title,
// e.g. "P1234" from "P1234 ACME Widget".
func ParseID(title string) string {
	return idPattern.FindString(title)
}
