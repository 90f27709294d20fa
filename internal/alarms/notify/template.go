package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Alarm {{.EventLabel}}] #{{.AlarmID}}
Measurement: {{.Measurement}}{{ if .Equipment }} ({{.Equipment}}){{ end }}
Type: {{.AlarmType}}
Value: {{.Value}}{{ if .Unit }} {{.Unit}}{{ end }}
Reference: {{.Reference}}
Priority: {{.Priority}}
Detected: {{.DetectedAt}}
Status: {{.Status}}
{{ if .Operator }}Operator: {{.Operator}} at {{.ResolvedAt}}
{{ end }}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	AlarmID     int64
	Measurement string
	Equipment   string
	AlarmType   string
	Value       string
	Unit        string
	Reference   string
	Priority    int
	Duration    int
	DetectedAt  string
	Status      string
	Operator    string
	ResolvedAt  string
	Event       string
	EventLabel  string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("alarm-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alarm template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
