package article

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"seoforge/internal/logging"
	"seoforge/internal/research"
	"seoforge/internal/services"
	"seoforge/internal/services/llm"
	"seoforge/internal/textutil"
)

const (
	outlineTemperature = 0.4
	draftTemperature   = 0.7
	editTemperature    = 0.3
	maxMetaDescription = 160
)

// Writer produces outlines and drafts through an LLM provider.
type Writer struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewWriter returns a writer using provider.
func NewWriter(provider llm.Provider, logger *slog.Logger) *Writer {
	return &Writer{provider: provider, logger: logging.NewComponentLogger(logger, "article")}
}

// Outline plans the article. Headings are title-cased for English briefs and
// word targets are spread over the sections when the model leaves them out.
func (w *Writer) Outline(ctx context.Context, brief Brief, res research.Result) (Outline, error) {
	tag, err := brief.Validate()
	if err != nil {
		return Outline{}, err
	}
	preset := PresetFor(brief.Size)
	outline, err := llm.CompleteJSON[Outline](ctx, w.provider, outlineMessages(brief, preset, res),
		llm.Options{Temperature: llm.Float(outlineTemperature)})
	if err != nil {
		return Outline{}, err
	}
	if len(outline.Sections) == 0 {
		outline = fallbackOutline(brief, res)
		logging.WarnWithContext(logging.WithContext(ctx, w.logger), "model returned an empty outline", "outline_fallback",
			logging.String(logging.FieldProvider, w.provider.Name()),
			logging.String(logging.FieldImpact, "outline built from research questions"))
	}
	return normalizeOutline(outline, brief, preset, tag), nil
}

// Draft writes every top-level section. Sections are generated concurrently
// (bounded by the LLM limiter) and assembled in outline order.
func (w *Writer) Draft(ctx context.Context, brief Brief, outline Outline, res research.Result) (Article, error) {
	if len(outline.Sections) == 0 {
		return Article{}, services.Validation("article", "outline has no sections")
	}
	drafts := make([]DraftSection, len(outline.Sections))
	group, gctx := errgroup.WithContext(ctx)
	for i, section := range outline.Sections {
		group.Go(func() error {
			draft, err := w.WriteSection(gctx, brief, outline, section, res)
			if err != nil {
				return err
			}
			drafts[i] = draft
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Article{}, err
	}
	return assemble(outline.Title, outline.MetaDescription, drafts), nil
}

// WriteSection drafts one section body.
func (w *Writer) WriteSection(ctx context.Context, brief Brief, outline Outline, section Section, res research.Result) (DraftSection, error) {
	out, err := w.provider.Complete(ctx, sectionMessages(brief, outline, section, res),
		llm.Options{Temperature: llm.Float(draftTemperature)})
	if err != nil {
		return DraftSection{}, err
	}
	body := stripLeadingHeading(llm.StripFences(out.Content), section.Heading)
	if body == "" {
		return DraftSection{}, services.LLM(out.Provider, "empty section "+section.Heading, nil)
	}
	level := section.Level
	if level == 0 {
		level = 2
	}
	return DraftSection{Heading: section.Heading, Level: level, Markdown: body, WordCount: textutil.WordCount(body)}, nil
}

// Edit runs a whole-article editing pass. A reply that loses most of the
// draft is rejected so an edit can never silently truncate the article.
func (w *Writer) Edit(ctx context.Context, brief Brief, draft Article) (Article, error) {
	out, err := w.provider.Complete(ctx, editMessages(brief, draft), llm.Options{Temperature: llm.Float(editTemperature)})
	if err != nil {
		return Article{}, err
	}
	edited := llm.StripFences(out.Content)
	words := textutil.WordCount(edited)
	if words < draft.WordCount/2 {
		return Article{}, services.LLM(out.Provider, "edited article is less than half the draft length", nil)
	}
	if !strings.HasPrefix(edited, "# ") {
		edited = "# " + draft.Title + "\n\n" + edited
	}
	result := draft
	result.Markdown = strings.TrimSpace(edited) + "\n"
	result.WordCount = textutil.WordCount(result.Markdown)
	result.Edited = true
	return result, nil
}

// WriteQuick produces an article in one completion without an outline or
// editing pass.
func (w *Writer) WriteQuick(ctx context.Context, brief Brief, res research.Result) (Article, error) {
	if _, err := brief.Validate(); err != nil {
		return Article{}, err
	}
	out, err := w.provider.Complete(ctx, quickMessages(brief, PresetFor(brief.Size), res),
		llm.Options{Temperature: llm.Float(draftTemperature)})
	if err != nil {
		return Article{}, err
	}
	markdown := strings.TrimSpace(llm.StripFences(out.Content))
	if markdown == "" {
		return Article{}, services.LLM(out.Provider, "empty article", nil)
	}
	title := brief.Keyword
	if first, _, _ := strings.Cut(markdown, "\n"); strings.HasPrefix(first, "# ") {
		title = strings.TrimSpace(strings.TrimPrefix(first, "# "))
	} else {
		markdown = "# " + title + "\n\n" + markdown
	}
	markdown += "\n"
	return Article{
		Title:     title,
		Slug:      textutil.Slugify(title),
		Markdown:  markdown,
		WordCount: textutil.WordCount(markdown),
	}, nil
}

func normalizeOutline(o Outline, brief Brief, preset Preset, tag language.Tag) Outline {
	titler := func(s string) string { return strings.TrimSpace(s) }
	if base, _ := tag.Base(); base.String() == "en" {
		caser := cases.Title(language.English, cases.NoLower)
		titler = func(s string) string { return caser.String(strings.TrimSpace(s)) }
	}
	o.Title = titler(o.Title)
	if o.Title == "" {
		o.Title = titler(brief.Keyword)
	}
	o.MetaDescription = textutil.Truncate(textutil.CollapseWhitespace(o.MetaDescription), maxMetaDescription)

	sections := o.Sections[:0]
	for _, s := range o.Sections {
		if strings.TrimSpace(s.Heading) == "" {
			continue
		}
		sections = append(sections, s)
	}
	o.Sections = sections
	share := 0
	if len(o.Sections) > 0 {
		share = preset.TargetWords / len(o.Sections)
	}
	for i := range o.Sections {
		s := &o.Sections[i]
		s.Heading = titler(s.Heading)
		s.Level = 2
		if s.TargetWords <= 0 {
			s.TargetWords = share
		}
		for j := range s.Subsections {
			s.Subsections[j].Heading = titler(s.Subsections[j].Heading)
			s.Subsections[j].Level = 3
		}
	}
	return o
}

// fallbackOutline builds a plan from the research when the model gives none.
func fallbackOutline(brief Brief, res research.Result) Outline {
	o := Outline{Title: brief.Keyword, MetaDescription: "A practical guide to " + brief.Keyword + "."}
	o.Sections = append(o.Sections, Section{Heading: "What to know about " + brief.Keyword})
	for _, q := range res.PeopleAlsoAsk {
		o.Sections = append(o.Sections, Section{Heading: strings.TrimSuffix(q.Question, "?")})
	}
	o.Sections = append(o.Sections, Section{Heading: "Conclusion"})
	return o
}

func stripLeadingHeading(body, heading string) string {
	body = strings.TrimSpace(body)
	first, rest, _ := strings.Cut(body, "\n")
	if strings.HasPrefix(first, "#") && strings.EqualFold(strings.TrimSpace(strings.TrimLeft(first, "#")), strings.TrimSpace(heading)) {
		return strings.TrimSpace(rest)
	}
	return body
}
