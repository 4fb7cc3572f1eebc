package article

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"seoforge/internal/services"
	"seoforge/internal/textutil"
)

// Size presets.
const (
	SizeShort  = "short"
	SizeMedium = "medium"
	SizeLong   = "long"
	SizePillar = "pillar"
)

// Preset is the length target for a size.
type Preset struct {
	TargetWords int
	Sections    int
}

var presets = map[string]Preset{
	SizeShort:  {TargetWords: 800, Sections: 4},
	SizeMedium: {TargetWords: 1500, Sections: 6},
	SizeLong:   {TargetWords: 2500, Sections: 8},
	SizePillar: {TargetWords: 4000, Sections: 12},
}

// PresetFor returns the preset for size, falling back to medium.
func PresetFor(size string) Preset {
	if p, ok := presets[strings.ToLower(strings.TrimSpace(size))]; ok {
		return p
	}
	return presets[SizeMedium]
}

// ValidSize reports whether size names a preset.
func ValidSize(size string) bool {
	_, ok := presets[strings.ToLower(strings.TrimSpace(size))]
	return ok
}

// Brief is everything the writer needs besides research.
type Brief struct {
	Keyword      string `json:"keyword"`
	Geo          string `json:"geo,omitempty"`
	Language     string `json:"language,omitempty"`
	Tone         string `json:"tone,omitempty"`
	Size         string `json:"size,omitempty"`
	TemplateID   string `json:"template_id,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Validate checks the brief and returns the parsed language tag.
func (b Brief) Validate() (language.Tag, error) {
	if strings.TrimSpace(b.Keyword) == "" {
		return language.Und, services.Validation("article", "keyword is required")
	}
	if b.Size != "" && !ValidSize(b.Size) {
		return language.Und, services.Validation("article", "unknown size "+strconv.Quote(b.Size))
	}
	if b.Language == "" {
		return language.English, nil
	}
	tag, err := language.Parse(b.Language)
	if err != nil {
		return language.Und, services.Validation("article", "invalid language "+strconv.Quote(b.Language))
	}
	return tag, nil
}

// Outline is the section plan produced before drafting.
type Outline struct {
	Title           string    `json:"title"`
	MetaDescription string    `json:"meta_description"`
	Sections        []Section `json:"sections"`
}

// Section is one planned heading.
type Section struct {
	Heading     string    `json:"heading"`
	Level       int       `json:"level,omitempty"`
	KeyPoints   []string  `json:"key_points,omitempty"`
	TargetWords int       `json:"target_words,omitempty"`
	Subsections []Section `json:"subsections,omitempty"`
}

// DraftSection is the written text of one top-level section.
type DraftSection struct {
	Heading   string `json:"heading"`
	Level     int    `json:"level"`
	Markdown  string `json:"markdown"`
	WordCount int    `json:"word_count"`
}

// Article is a finished or in-progress draft.
type Article struct {
	Title           string         `json:"title"`
	MetaDescription string         `json:"meta_description"`
	Slug            string         `json:"slug"`
	Markdown        string         `json:"markdown"`
	Sections        []DraftSection `json:"sections,omitempty"`
	WordCount       int            `json:"word_count"`
	Edited          bool           `json:"edited"`
}

// assemble renders sections under the title and fills the derived fields.
func assemble(title, meta string, sections []DraftSection) Article {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(title)
	sb.WriteString("\n\n")
	for _, s := range sections {
		sb.WriteString(strings.Repeat("#", s.Level))
		sb.WriteByte(' ')
		sb.WriteString(s.Heading)
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(s.Markdown))
		sb.WriteString("\n\n")
	}
	markdown := strings.TrimSpace(sb.String()) + "\n"
	return Article{
		Title:           title,
		MetaDescription: meta,
		Slug:            textutil.Slugify(title),
		Markdown:        markdown,
		Sections:        sections,
		WordCount:       textutil.WordCount(markdown),
	}
}
