package batch

import (
	"context"

	"github.com/google/uuid"

	"seoforge/internal/article"
	"seoforge/internal/research"
	"seoforge/internal/services"
	"seoforge/internal/workflow"
)

// Outcome is what a successful generation produced.
type Outcome struct {
	WorkflowID string
	ArticleID  string
	Article    *article.Article
}

// Generator produces the article for one page using the resolved settings.
type Generator interface {
	Generate(ctx context.Context, page Page, settings Settings) (Outcome, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, page Page, settings Settings) (Outcome, error)

func (f GeneratorFunc) Generate(ctx context.Context, page Page, settings Settings) (Outcome, error) {
	return f(ctx, page, settings)
}

// WorkflowRunner runs a full workflow synchronously.
type WorkflowRunner interface {
	Run(ctx context.Context, req workflow.Request) (workflow.State, error)
}

// WorkflowGenerator runs each page through the full workflow engine.
type WorkflowGenerator struct {
	Engine WorkflowRunner
	// Base carries options not covered by Settings, such as the provider.
	Base workflow.Options
}

func (g WorkflowGenerator) Generate(ctx context.Context, page Page, settings Settings) (Outcome, error) {
	opts := g.Base
	opts.Tone = settings.Tone
	opts.Size = settings.Size
	opts.TemplateID = settings.TemplateID
	opts.Language = settings.Language
	st, err := g.Engine.Run(ctx, workflow.Request{
		Keyword:   page.Subject(),
		Geo:       settings.Geo,
		Options:   opts,
		ProjectID: page.ProjectID,
		PageID:    page.ID,
	})
	out := Outcome{WorkflowID: st.ID}
	if err != nil {
		return out, err
	}
	out.ArticleID = st.ID
	out.Article = st.Article
	return out, nil
}

// QuickWriter writes an article in one pass.
type QuickWriter interface {
	WriteQuick(ctx context.Context, brief article.Brief, res research.Result) (article.Article, error)
}

// Conductor runs research.
type Conductor interface {
	Conduct(ctx context.Context, req research.Request) (research.Result, error)
}

// QuickGenerator researches the page keyword and writes the article with a
// single completion, skipping the outline and edit stages.
type QuickGenerator struct {
	Research   Conductor
	Writers    func(ctx context.Context, provider string) (QuickWriter, error)
	Provider   string
	NumResults int
}

func (g QuickGenerator) Generate(ctx context.Context, page Page, settings Settings) (Outcome, error) {
	if g.Research == nil || g.Writers == nil {
		return Outcome{}, services.Wrap(services.ErrConfiguration, "batch", "quick", "research and writer are required", nil)
	}
	res, err := g.Research.Conduct(ctx, research.Request{Keyword: page.Subject(), Geo: settings.Geo, NumResults: g.NumResults})
	if err != nil {
		return Outcome{}, err
	}
	writer, err := g.Writers(ctx, g.Provider)
	if err != nil {
		return Outcome{}, err
	}
	a, err := writer.WriteQuick(ctx, article.Brief{
		Keyword:    page.Subject(),
		Geo:        res.Geo,
		Language:   settings.Language,
		Tone:       settings.Tone,
		Size:       settings.Size,
		TemplateID: settings.TemplateID,
	}, res)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{ArticleID: uuid.NewString(), Article: &a}, nil
}
