package workflow

import (
	"context"
	"strings"

	"seoforge/internal/article"
	"seoforge/internal/research"
	"seoforge/internal/services"
	"seoforge/internal/stage"
)

// Researcher runs and loads research for the research and writing stages.
type Researcher interface {
	Conduct(ctx context.Context, req research.Request) (research.Result, error)
	Get(ctx context.Context, id string) (research.Result, error)
}

// Writer produces the outline, draft, and edited article.
type Writer interface {
	Outline(ctx context.Context, brief article.Brief, res research.Result) (article.Outline, error)
	Draft(ctx context.Context, brief article.Brief, outline article.Outline, res research.Result) (article.Article, error)
	Edit(ctx context.Context, brief article.Brief, draft article.Article) (article.Article, error)
}

// WriterSource resolves the writer bound to a named LLM provider. An empty
// name selects the default provider.
type WriterSource func(ctx context.Context, provider string) (Writer, error)

// StageSet holds the handler for each processing status. A nil Edit handler
// skips editing for every workflow.
type StageSet struct {
	Research stage.Handler[*State]
	Outline  stage.Handler[*State]
	Write    stage.Handler[*State]
	Edit     stage.Handler[*State]
}

// NewStages builds the standard research, outline, write, and edit stages.
func NewStages(researcher Researcher, writers WriterSource) StageSet {
	return StageSet{
		Research: &researchStage{researcher: researcher},
		Outline:  &outlineStage{researcher: researcher, writers: writers},
		Write:    &writeStage{researcher: researcher, writers: writers},
		Edit:     &editStage{writers: writers},
	}
}

type researchStage struct {
	researcher Researcher
}

func (s *researchStage) Execute(ctx context.Context, st *State) error {
	res, err := s.researcher.Conduct(ctx, research.Request{
		Keyword:    st.Keyword,
		Geo:        st.Geo,
		NumResults: st.Options.NumResults,
		Fused:      st.Options.Fused,
	})
	if err != nil {
		return err
	}
	st.ResearchID = res.ID
	if res.Geo != "" {
		st.Geo = res.Geo
	}
	return nil
}

func (s *researchStage) HealthCheck(context.Context) stage.Health {
	if s.researcher == nil {
		return stage.Unhealthy("research", "researcher not configured")
	}
	return stage.Healthy("research")
}

type outlineStage struct {
	researcher Researcher
	writers    WriterSource
}

func (s *outlineStage) Execute(ctx context.Context, st *State) error {
	res, err := loadResearch(ctx, s.researcher, st)
	if err != nil {
		return err
	}
	writer, err := s.writers(ctx, st.Options.Provider)
	if err != nil {
		return err
	}
	outline, err := writer.Outline(ctx, st.Brief(), res)
	if err != nil {
		return err
	}
	st.Outline = &outline
	return nil
}

func (s *outlineStage) HealthCheck(ctx context.Context) stage.Health {
	return writerHealth(ctx, "outline", s.writers)
}

type writeStage struct {
	researcher Researcher
	writers    WriterSource
}

func (s *writeStage) Execute(ctx context.Context, st *State) error {
	if st.Outline == nil {
		return services.Validation("workflow", "write stage requires an outline")
	}
	res, err := loadResearch(ctx, s.researcher, st)
	if err != nil {
		return err
	}
	writer, err := s.writers(ctx, st.Options.Provider)
	if err != nil {
		return err
	}
	draft, err := writer.Draft(ctx, st.Brief(), *st.Outline, res)
	if err != nil {
		return err
	}
	st.Article = &draft
	return nil
}

func (s *writeStage) HealthCheck(ctx context.Context) stage.Health {
	return writerHealth(ctx, "write", s.writers)
}

type editStage struct {
	writers WriterSource
}

func (s *editStage) Execute(ctx context.Context, st *State) error {
	if st.Article == nil {
		return services.Validation("workflow", "edit stage requires a draft")
	}
	writer, err := s.writers(ctx, st.Options.Provider)
	if err != nil {
		return err
	}
	edited, err := writer.Edit(ctx, st.Brief(), *st.Article)
	if err != nil {
		return err
	}
	st.Article = &edited
	return nil
}

func (s *editStage) HealthCheck(ctx context.Context) stage.Health {
	return writerHealth(ctx, "edit", s.writers)
}

func loadResearch(ctx context.Context, researcher Researcher, st *State) (research.Result, error) {
	if strings.TrimSpace(st.ResearchID) == "" {
		return research.Result{}, services.Validation("workflow", "stage requires completed research")
	}
	return researcher.Get(ctx, st.ResearchID)
}

func writerHealth(ctx context.Context, name string, writers WriterSource) stage.Health {
	if writers == nil {
		return stage.Unhealthy(name, "writer not configured")
	}
	if _, err := writers(ctx, ""); err != nil {
		return stage.Unhealthy(name, services.Details(err).Message)
	}
	return stage.Healthy(name)
}
