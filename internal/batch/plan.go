package batch

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"seoforge/internal/services"
	"seoforge/internal/textutil"
)

// Plan is a content plan as imported from YAML: one project and its pages.
type Plan struct {
	Project Project `yaml:"project"`
	Pages   []Page  `yaml:"pages"`
}

// ParsePlan decodes and normalizes a YAML content plan. Missing project and
// page ids are derived from the project name and generated respectively.
func ParsePlan(r io.Reader) (Plan, error) {
	var plan Plan
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil {
		if errors.Is(err, io.EOF) {
			return Plan{}, services.Validation("batch", "content plan is empty")
		}
		return Plan{}, services.Wrap(services.ErrValidation, "batch", "parse plan", "invalid content plan", err)
	}
	if err := plan.normalize(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (p *Plan) normalize() error {
	p.Project.Name = strings.TrimSpace(p.Project.Name)
	p.Project.ID = strings.TrimSpace(p.Project.ID)
	if p.Project.ID == "" && p.Project.Name != "" {
		p.Project.ID = textutil.Slugify(p.Project.Name)
	}
	if p.Project.ID == "" {
		return services.Validation("batch", "project needs an id or a name")
	}
	if p.Project.Name == "" {
		p.Project.Name = p.Project.ID
	}
	p.Project.Defaults = Settings{}.Merge(p.Project.Defaults)
	if err := p.Project.Defaults.Validate(); err != nil {
		return fmt.Errorf("project defaults: %w", err)
	}
	if len(p.Pages) == 0 {
		return services.Validation("batch", "content plan has no pages")
	}

	seen := make(map[string]bool, len(p.Pages))
	for i := range p.Pages {
		page := &p.Pages[i]
		page.Keyword = strings.TrimSpace(page.Keyword)
		page.Title = strings.TrimSpace(page.Title)
		if page.Subject() == "" {
			return services.Validation("batch", "page "+strconv.Itoa(i+1)+" needs a keyword or title")
		}
		page.ID = strings.TrimSpace(page.ID)
		if page.ID == "" {
			page.ID = uuid.NewString()
		}
		if seen[page.ID] {
			return services.Validation("batch", "duplicate page id "+strconv.Quote(page.ID))
		}
		seen[page.ID] = true
		if page.Status == "" {
			page.Status = StatusPending
		}
		if !page.Status.Valid() {
			return services.Validation("batch", "page "+strconv.Quote(page.ID)+" has unknown status "+strconv.Quote(string(page.Status)))
		}
		page.Overrides = Settings{}.Merge(page.Overrides)
		if err := page.Overrides.Validate(); err != nil {
			return fmt.Errorf("page %s: %w", page.ID, err)
		}
	}
	return nil
}
