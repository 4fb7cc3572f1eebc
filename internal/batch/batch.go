package batch

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"seoforge/internal/article"
	"seoforge/internal/services"
)

// GenerationStatus is a content-plan page's generation state.
type GenerationStatus string

const (
	StatusPending    GenerationStatus = "pending"
	StatusGenerating GenerationStatus = "generating"
	StatusCompleted  GenerationStatus = "completed"
	StatusFailed     GenerationStatus = "failed"
	StatusSkipped    GenerationStatus = "skipped"
)

// Valid reports whether s is a known status.
func (s GenerationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusGenerating, StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Eligible reports whether a page in status s may enter generation.
func (s GenerationStatus) Eligible() bool {
	return s == StatusPending || s == StatusFailed || s == ""
}

// Settings are the article options layered from project, batch, and page.
type Settings struct {
	Tone       string `json:"tone,omitempty" yaml:"tone,omitempty"`
	Size       string `json:"size,omitempty" yaml:"size,omitempty"`
	TemplateID string `json:"template_id,omitempty" yaml:"template_id,omitempty"`
	Geo        string `json:"geo,omitempty" yaml:"geo,omitempty"`
	Language   string `json:"language,omitempty" yaml:"language,omitempty"`
}

// Merge returns s with every non-empty field of over applied on top.
func (s Settings) Merge(over Settings) Settings {
	if v := strings.TrimSpace(over.Tone); v != "" {
		s.Tone = v
	}
	if v := strings.TrimSpace(over.Size); v != "" {
		s.Size = v
	}
	if v := strings.TrimSpace(over.TemplateID); v != "" {
		s.TemplateID = v
	}
	if v := strings.TrimSpace(over.Geo); v != "" {
		s.Geo = strings.ToLower(v)
	}
	if v := strings.TrimSpace(over.Language); v != "" {
		s.Language = v
	}
	return s
}

// Layer resolves the effective settings: page beats batch beats project.
func Layer(project, batch, page Settings) Settings {
	return project.Merge(batch).Merge(page)
}

// Validate rejects settings no generator can honour.
func (s Settings) Validate() error {
	if s.Size != "" && !article.ValidSize(s.Size) {
		return services.Validation("batch", "unknown size "+strconv.Quote(s.Size))
	}
	if s.Language != "" {
		if _, err := language.Parse(s.Language); err != nil {
			return services.Validation("batch", "invalid language "+strconv.Quote(s.Language))
		}
	}
	if s.Geo != "" && len(s.Geo) != 2 {
		return services.Validation("batch", "geo must be a two-letter region code, got "+strconv.Quote(s.Geo))
	}
	return nil
}

// Project groups content-plan pages and carries their default settings.
type Project struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Defaults  Settings  `json:"defaults" yaml:"defaults"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Page is one planned article.
type Page struct {
	ID         string           `json:"id" yaml:"id"`
	ProjectID  string           `json:"project_id" yaml:"-"`
	Keyword    string           `json:"keyword" yaml:"keyword"`
	Title      string           `json:"title,omitempty" yaml:"title,omitempty"`
	Position   int              `json:"position" yaml:"-"`
	Status     GenerationStatus `json:"status" yaml:"status,omitempty"`
	Overrides  Settings         `json:"overrides" yaml:"overrides,omitempty"`
	WorkflowID string           `json:"workflow_id,omitempty" yaml:"-"`
	ArticleID  string           `json:"article_id,omitempty" yaml:"-"`
	Article    *article.Article `json:"article,omitempty" yaml:"-"`
	Error      string           `json:"error,omitempty" yaml:"-"`
	UpdatedAt  time.Time        `json:"updated_at" yaml:"-"`
}

// Subject is the text a generator writes about.
func (p Page) Subject() string {
	if k := strings.TrimSpace(p.Keyword); k != "" {
		return k
	}
	return strings.TrimSpace(p.Title)
}

// Stats counts the pages of one batch by status.
type Stats struct {
	Pending    int `json:"pending"`
	Generating int `json:"generating"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Total is the number of pages counted.
func (s Stats) Total() int {
	return s.Pending + s.Generating + s.Completed + s.Failed + s.Skipped
}

// CountStats tallies pages by status.
func CountStats(pages []Page) Stats {
	var s Stats
	for _, p := range pages {
		switch p.Status {
		case StatusGenerating:
			s.Generating++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		default:
			s.Pending++
		}
	}
	return s
}

// Status is the live view of a project's batch.
type Status struct {
	ProjectID       string    `json:"project_id"`
	Running         bool      `json:"running"`
	CurrentIndex    int       `json:"current_index"`
	Total           int       `json:"total"`
	Stats           Stats     `json:"stats"`
	CurrentPageID   string    `json:"current_page_id,omitempty"`
	CancelRequested bool      `json:"cancel_requested"`
	Cancelled       bool      `json:"cancelled"`
	StartedAt       time.Time `json:"started_at,omitzero"`
	FinishedAt      time.Time `json:"finished_at,omitzero"`
}
