package article

import (
	"fmt"
	"strings"

	"seoforge/internal/research"
	"seoforge/internal/services/llm"
	"seoforge/internal/textutil"
)

const (
	sourceExcerptChars = 1500
	maxSources         = 5
)

const systemPrompt = "You are an experienced SEO content writer. You write accurate, well-structured articles that answer search intent directly."

func styleLines(b Brief) string {
	var lines []string
	lines = append(lines, "Primary keyword: "+b.Keyword)
	if b.Geo != "" {
		lines = append(lines, "Target market: "+strings.ToUpper(b.Geo))
	}
	if b.Language != "" {
		lines = append(lines, "Language: "+b.Language)
	}
	if b.Tone != "" {
		lines = append(lines, "Tone: "+b.Tone)
	}
	if b.TemplateID != "" {
		lines = append(lines, "Template: "+b.TemplateID)
	}
	if s := strings.TrimSpace(b.Instructions); s != "" {
		lines = append(lines, "Additional instructions: "+s)
	}
	return strings.Join(lines, "\n")
}

func researchDigest(r research.Result) string {
	var sb strings.Builder
	if len(r.SERPResults) > 0 {
		sb.WriteString("Top ranking pages:\n")
		for _, res := range r.SERPResults {
			fmt.Fprintf(&sb, "%d. %s\n", res.Position, res.Title)
		}
	}
	if len(r.PeopleAlsoAsk) > 0 {
		sb.WriteString("\nQuestions searchers ask:\n")
		for _, q := range r.PeopleAlsoAsk {
			fmt.Fprintf(&sb, "- %s\n", q.Question)
		}
	}
	for i, page := range r.ScrapedContent {
		if i == maxSources {
			break
		}
		fmt.Fprintf(&sb, "\nSource %d (%s):\n%s\n", i+1, page.Title, textutil.Truncate(page.Content, sourceExcerptChars))
	}
	return strings.TrimSpace(sb.String())
}

func outlineMessages(b Brief, p Preset, r research.Result) []llm.Message {
	user := fmt.Sprintf(`Create an outline for an article of about %d words with %d main sections.

%s

Research:
%s

Return a JSON object with this shape:
{"title": string, "meta_description": string (max 160 characters), "sections": [{"heading": string, "key_points": [string], "subsections": [{"heading": string, "key_points": [string]}]}]}`,
		p.TargetWords, p.Sections, styleLines(b), researchDigest(r))
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: user},
	}
}

func sectionMessages(b Brief, o Outline, s Section, r research.Result) []llm.Message {
	var plan strings.Builder
	for _, other := range o.Sections {
		fmt.Fprintf(&plan, "- %s\n", other.Heading)
	}
	var points strings.Builder
	for _, kp := range s.KeyPoints {
		fmt.Fprintf(&points, "- %s\n", kp)
	}
	for _, sub := range s.Subsections {
		fmt.Fprintf(&points, "- Subsection %q: %s\n", sub.Heading, strings.Join(sub.KeyPoints, "; "))
	}
	user := fmt.Sprintf(`Article title: %s
Full outline:
%s
Write only the section %q in Markdown, about %d words. Do not repeat the section heading. Use "###" for subsections.
Cover:
%s
%s

Research:
%s`,
		o.Title, plan.String(), s.Heading, s.TargetWords, points.String(), styleLines(b), researchDigest(r))
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: user},
	}
}

func editMessages(b Brief, draft Article) []llm.Message {
	user := fmt.Sprintf(`Edit the article below. Fix factual inconsistencies, remove repetition between sections, smooth transitions, and keep the heading structure unchanged. Return the full edited article in Markdown only.

%s

%s`, styleLines(b), draft.Markdown)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a meticulous editor of SEO articles."},
		{Role: llm.RoleUser, Content: user},
	}
}

func quickMessages(b Brief, p Preset, r research.Result) []llm.Message {
	user := fmt.Sprintf(`Write a complete article of about %d words in Markdown. Start with a single "#" title line followed by an introduction, then use "##" section headings.

%s

Research:
%s`, p.TargetWords, styleLines(b), researchDigest(r))
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: user},
	}
}
