package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"seoforge/internal/app"
	"seoforge/internal/research"
)

const stampLayout = "2006-01-02 15:04"

func newResearchCommand(ctx *commandContext) *cobra.Command {
	researchCmd := &cobra.Command{
		Use:   "research",
		Short: "Gather SERP results and competitor content for a keyword",
	}
	researchCmd.AddCommand(newResearchRunCommand(ctx))
	researchCmd.AddCommand(newResearchShowCommand(ctx))
	researchCmd.AddCommand(newResearchListCommand(ctx))
	return researchCmd
}

func newResearchRunCommand(ctx *commandContext) *cobra.Command {
	var geo string
	var num int
	var fused bool

	cmd := &cobra.Command{
		Use:   "run <keyword>",
		Short: "Research a keyword now",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := strings.Join(args, " ")
			return ctx.withApp(cmd, func(a *app.App) error {
				res, err := a.Research.Conduct(cmd.Context(), research.Request{
					Keyword:    keyword,
					Geo:        geo,
					NumResults: num,
					Fused:      fused,
				})
				if err != nil {
					return err
				}
				return emit(cmd, ctx, res, func() { printResearch(cmd.OutOrStdout(), res) })
			})
		},
	}
	cmd.Flags().StringVar(&geo, "geo", "", "Two-letter country code (defaults to search.default_geo)")
	cmd.Flags().IntVarP(&num, "num", "n", 0, "Number of SERP results to fetch")
	cmd.Flags().BoolVar(&fused, "fused", false, "Source pages from the scrape provider's search instead of SERP links")
	return cmd
}

func newResearchShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored research result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				res, err := a.Research.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				return emit(cmd, ctx, res, func() { printResearch(cmd.OutOrStdout(), res) })
			})
		},
	}
}

func newResearchListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent research results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				results, err := a.Research.Repository().List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, results, func() {
					spec := tableSpec{
						headers: []string{"ID", "Keyword", "Geo", "SERP", "Pages", "Words", "Created"},
						aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
						empty:   "No research stored",
					}
					for _, r := range results {
						spec.add(r.ID, r.Keyword, r.Geo,
							strconv.Itoa(len(r.SERPResults)),
							strconv.Itoa(len(r.ScrapedContent)),
							strconv.Itoa(r.TotalWords()),
							formatStamp(r.CreatedAt))
					}
					spec.print(cmd.OutOrStdout())
				})
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum results to list")
	return cmd
}

func printResearch(out io.Writer, res research.Result) {
	fmt.Fprintf(out, "Research %s\n", res.ID)
	fmt.Fprintf(out, "Keyword: %s (%s)\n", res.Keyword, res.Geo)
	fmt.Fprintf(out, "Scraped: %d of %d results, %d words\n", len(res.ScrapedContent), len(res.SERPResults), res.TotalWords())

	serp := tableSpec{
		headers: []string{"#", "Title", "URL"},
		aligns:  []columnAlignment{alignRight},
		empty:   "No SERP results",
	}
	for _, r := range res.SERPResults {
		serp.add(strconv.Itoa(r.Position), r.Title, r.Link)
	}
	serp.print(out)

	pages := tableSpec{headers: []string{"URL", "Words"}, aligns: []columnAlignment{alignLeft, alignRight}}
	for _, p := range res.ScrapedContent {
		pages.add(p.URL, strconv.Itoa(p.WordCount))
	}
	if len(pages.rows) > 0 {
		pages.print(out)
	}

	if len(res.PeopleAlsoAsk) > 0 {
		fmt.Fprintln(out, "People also ask:")
		for _, q := range res.PeopleAlsoAsk {
			fmt.Fprintf(out, "  - %s\n", q.Question)
		}
	}
	if len(res.FailedURLs) > 0 {
		fmt.Fprintln(out, "Failed URLs:")
		for _, u := range res.FailedURLs {
			fmt.Fprintf(out, "  - %s\n", u)
		}
	}
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(stampLayout)
}
