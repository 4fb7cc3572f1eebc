package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"seoforge/internal/app"
	"seoforge/internal/batch"
)

func newPagesCommand(ctx *commandContext) *cobra.Command {
	pagesCmd := &cobra.Command{
		Use:   "pages",
		Short: "Inspect and manage content-plan pages",
	}
	pagesCmd.AddCommand(newPagesListCommand(ctx))
	pagesCmd.AddCommand(newPagesShowCommand(ctx))
	pagesCmd.AddCommand(newPagesSetStatusCommand(ctx, "reset", batch.StatusPending, "Mark pages pending so the next batch regenerates them"))
	pagesCmd.AddCommand(newPagesSetStatusCommand(ctx, "skip", batch.StatusSkipped, "Exclude pages from future batches"))
	pagesCmd.AddCommand(newPagesExportCommand(ctx))
	return pagesCmd
}

func newPagesListCommand(ctx *commandContext) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list <project>",
		Short: "List a project's pages in plan order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := batch.GenerationStatus(strings.ToLower(strings.TrimSpace(status)))
			if filter != "" && !filter.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				list, err := a.Store.Pages().ListPages(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if filter != "" {
					kept := list[:0]
					for _, p := range list {
						if p.Status == filter {
							kept = append(kept, p)
						}
					}
					list = kept
				}
				return emit(cmd, ctx, list, func() {
					spec := tableSpec{
						headers: []string{"#", "ID", "Subject", "Status", "Words", "Error"},
						aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
						empty:   "No pages",
					}
					for _, p := range list {
						words := "-"
						if p.Article != nil {
							words = strconv.Itoa(p.Article.WordCount)
						}
						spec.add(strconv.Itoa(p.Position+1), p.ID, p.Subject(), string(p.Status), words, dash(p.Error))
					}
					spec.print(cmd.OutOrStdout())
				})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only list pages in this status")
	return cmd
}

func newPagesShowCommand(ctx *commandContext) *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "show <page-id>",
		Short: "Show one page and its article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				page, err := a.Store.Pages().GetPage(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if markdown {
					if page.Article == nil {
						return errors.New("page has no article yet")
					}
					_, err := io.WriteString(cmd.OutOrStdout(), page.Article.Markdown)
					return err
				}
				return emit(cmd, ctx, page, func() { printPage(cmd.OutOrStdout(), page) })
			})
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Print only the article markdown")
	return cmd
}

func newPagesSetStatusCommand(ctx *commandContext, use string, status batch.GenerationStatus, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <page-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				n, err := a.Store.Pages().SetPageStatus(cmd.Context(), status, args...)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, map[string]int{"updated": n}, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Marked %d of %d pages %s\n", n, len(args), status)
				})
			})
		},
	}
}

func printPage(out io.Writer, p batch.Page) {
	fmt.Fprintf(out, "Page %s (project %s, #%d)\n", p.ID, p.ProjectID, p.Position+1)
	fmt.Fprintf(out, "Subject:  %s\n", p.Subject())
	fmt.Fprintln(out, renderStatusLine("Status", pageKind(p.Status), string(p.Status), shouldColorize(out)))
	if p.WorkflowID != "" {
		fmt.Fprintf(out, "Workflow: %s\n", p.WorkflowID)
	}
	if p.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", p.Error)
	}
	if p.Article != nil {
		fmt.Fprintf(out, "Article:  %s (%d words)\n", p.Article.Title, p.Article.WordCount)
	}
	fmt.Fprintf(out, "Updated:  %s\n", formatStamp(p.UpdatedAt))
}
