package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"seoforge/internal/app"
	"seoforge/internal/config"
	"seoforge/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, storage and provider connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				var providers preflight.ProviderSource
				if !offline {
					providers = a.LLM
				}
				results := preflight.RunAll(cmd.Context(), a.Config, providers)
				results = append(results, preflight.CheckDatabase(cmd.Context(), a.Store))
				results = append(results, preflight.CheckStages(a.Engine.Health(cmd.Context()))...)
				if !offline {
					results = append(results, endpointChecks(cmd, a.Config)...)
				}

				if ctx.jsonOutput() {
					if err := writeJSON(cmd, results); err != nil {
						return err
					}
				} else {
					renderDoctor(cmd, results)
				}
				if !preflight.Passed(results) {
					return errors.New("one or more checks failed")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip network checks")
	return cmd
}

func endpointChecks(cmd *cobra.Command, cfg *config.Config) []preflight.Result {
	var results []preflight.Result
	if strings.TrimSpace(cfg.Search.APIKey) != "" {
		header := http.Header{}
		header.Set("X-API-KEY", cfg.Search.APIKey)
		results = append(results, preflight.CheckEndpoint(cmd.Context(), "Search API", cfg.Search.BaseURL, header))
	}
	if cfg.Scrape.Provider != "direct" && strings.TrimSpace(cfg.Scrape.APIKey) != "" {
		header := http.Header{}
		header.Set("Authorization", "Bearer "+cfg.Scrape.APIKey)
		results = append(results, preflight.CheckEndpoint(cmd.Context(), "Scrape API", cfg.Scrape.BaseURL, header))
	}
	return results
}

func renderDoctor(cmd *cobra.Command, results []preflight.Result) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Preflight", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
}
