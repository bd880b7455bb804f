package models

import "time"

// TemplateSource says where a template's content lives.
type TemplateSource string

const (
	TemplateSourceGit       TemplateSource = "git"
	TemplateSourceFile      TemplateSource = "file"
	TemplateSourceWebEditor TemplateSource = "webeditor"
)

// TemplateType is the content format of a template.
type TemplateType string

const (
	TemplateTypeJinja2  TemplateType = "jinja2"
	TemplateTypeText    TemplateType = "text"
	TemplateTypeYAML    TemplateType = "yaml"
	TemplateTypeJSON    TemplateType = "json"
	TemplateTypeTextFSM TemplateType = "textfsm"
)

// Template is a stored template row. Content for file-backed templates
// is read from disk under data_root/templates/<category>/<name>.
type Template struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Source    TemplateSource `json:"source"`
	Type      TemplateType   `json:"type"`
	Category  string         `json:"category"`
	Content   string         `json:"content,omitempty"`
	Variables string         `json:"variables,omitempty"`
	Tags      string         `json:"tags,omitempty"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
