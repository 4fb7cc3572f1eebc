package workflow

import (
	"time"

	"seoforge/internal/article"
)

// Options tune one workflow run. Zero values take the engine defaults.
type Options struct {
	Language     string `json:"language,omitempty"`
	Tone         string `json:"tone,omitempty"`
	Size         string `json:"size,omitempty"`
	TemplateID   string `json:"template_id,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	NumResults   int    `json:"num_results,omitempty"`
	// Provider names the LLM provider; empty uses the registry default.
	Provider string `json:"provider,omitempty"`
	// Fused sources pages from the scrape provider's combined search.
	Fused    bool `json:"fused,omitempty"`
	SkipEdit bool `json:"skip_edit,omitempty"`
}

// Request starts a workflow.
type Request struct {
	Keyword string  `json:"keyword"`
	Geo     string  `json:"geo,omitempty"`
	Options Options `json:"options"`
	// ProjectID and PageID link a run to a content-plan page.
	ProjectID string `json:"project_id,omitempty"`
	PageID    string `json:"page_id,omitempty"`
}

// State is the persisted snapshot of one workflow. Only the engine mutates it.
type State struct {
	ID          string           `json:"id"`
	Status      Status           `json:"status"`
	Keyword     string           `json:"keyword"`
	Geo         string           `json:"geo"`
	Options     Options          `json:"options"`
	ProjectID   string           `json:"project_id,omitempty"`
	PageID      string           `json:"page_id,omitempty"`
	ResearchID  string           `json:"research_id,omitempty"`
	Outline     *article.Outline `json:"outline,omitempty"`
	Article     *article.Article `json:"article,omitempty"`
	Error       string           `json:"error,omitempty"`
	ErrorKind   string           `json:"error_kind,omitempty"`
	Progress    int              `json:"progress"`
	Stage       string           `json:"stage"`
	StartedAt   time.Time        `json:"started_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// Brief derives the writer brief from the state.
func (s *State) Brief() article.Brief {
	return article.Brief{
		Keyword:      s.Keyword,
		Geo:          s.Geo,
		Language:     s.Options.Language,
		Tone:         s.Options.Tone,
		Size:         s.Options.Size,
		TemplateID:   s.Options.TemplateID,
		Instructions: s.Options.Instructions,
	}
}

// Clone returns a deep copy safe to hand to stores and publishers.
func (s *State) Clone() State {
	out := *s
	if s.Outline != nil {
		outline := *s.Outline
		outline.Sections = cloneSections(s.Outline.Sections)
		out.Outline = &outline
	}
	if s.Article != nil {
		a := *s.Article
		a.Sections = append([]article.DraftSection(nil), s.Article.Sections...)
		out.Article = &a
	}
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		out.CompletedAt = &at
	}
	return out
}

func cloneSections(in []article.Section) []article.Section {
	if in == nil {
		return nil
	}
	out := make([]article.Section, len(in))
	for i, s := range in {
		out[i] = s
		out[i].KeyPoints = append([]string(nil), s.KeyPoints...)
		out[i].Subsections = cloneSections(s.Subsections)
	}
	return out
}

// Duration is the elapsed time, up to completion for terminal states.
func (s *State) Duration(now time.Time) time.Duration {
	end := now
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	if s.StartedAt.IsZero() || end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}
