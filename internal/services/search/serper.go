package search

import (
	"context"
	"net/http"
	"strings"

	"seoforge/internal/config"
	"seoforge/internal/services"
	"seoforge/internal/services/apiclient"
)

const serperName = "serper"

// Serper queries the serper.dev Google SERP API.
type Serper struct {
	api    *apiclient.Client
	hasKey bool
}

// NewSerper builds a Serper backend from configuration.
func NewSerper(cfg config.Search) *Serper {
	header := http.Header{}
	header.Set("X-API-KEY", cfg.APIKey)
	return &Serper{
		api:    apiclient.New(serperName, cfg.BaseURL, cfg.Timeout(), header),
		hasKey: strings.TrimSpace(cfg.APIKey) != "",
	}
}

func (s *Serper) Name() string { return serperName }

type serperRequest struct {
	Query string `json:"q"`
	Geo   string `json:"gl,omitempty"`
	Num   int    `json:"num,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic"`
	PeopleAlsoAsk []struct {
		Question string `json:"question"`
		Snippet  string `json:"snippet"`
		Link     string `json:"link"`
	} `json:"peopleAlsoAsk"`
	RelatedSearches []struct {
		Query string `json:"query"`
	} `json:"relatedSearches"`
}

func (s *Serper) Query(ctx context.Context, req Request) (Response, error) {
	if !s.hasKey {
		return Response{}, services.Wrap(services.ErrConfiguration, serperName, "search", "api key not configured", nil)
	}
	var payload serperResponse
	body := serperRequest{Query: req.Keyword, Geo: req.Geo, Num: req.NumResults}
	if err := s.api.PostJSON(ctx, "search", "/search", body, &payload); err != nil {
		return Response{}, err
	}

	resp := Response{Keyword: req.Keyword, Geo: req.Geo}
	for _, o := range payload.Organic {
		resp.Results = append(resp.Results, Result{Title: o.Title, Link: o.Link, Snippet: o.Snippet, Position: o.Position})
	}
	for _, q := range payload.PeopleAlsoAsk {
		if strings.TrimSpace(q.Question) == "" {
			continue
		}
		resp.PeopleAlsoAsk = append(resp.PeopleAlsoAsk, Question{Question: q.Question, Snippet: q.Snippet, Link: q.Link})
	}
	for _, r := range payload.RelatedSearches {
		if q := strings.TrimSpace(r.Query); q != "" {
			resp.RelatedSearches = append(resp.RelatedSearches, q)
		}
	}
	return resp, nil
}
