package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"seoforge/internal/app"
	"seoforge/internal/fileutil"
	"seoforge/internal/workflow"
)

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	workflowCmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Run and inspect article workflows",
	}
	workflowCmd.AddCommand(newWorkflowRunCommand(ctx))
	workflowCmd.AddCommand(newWorkflowShowCommand(ctx))
	workflowCmd.AddCommand(newWorkflowListCommand(ctx))
	return workflowCmd
}

func newWorkflowRunCommand(ctx *commandContext) *cobra.Command {
	var (
		geo    string
		opts   workflow.Options
		output string
	)

	cmd := &cobra.Command{
		Use:   "run <keyword>",
		Short: "Research, outline, write and edit an article",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := strings.Join(args, " ")
			return ctx.withApp(cmd, func(a *app.App) error {
				st, err := a.Engine.Run(cmd.Context(), workflow.Request{
					Keyword: keyword,
					Geo:     geo,
					Options: opts,
				})
				if err != nil && st.ID == "" {
					return err
				}
				if output != "" && st.Article != nil {
					if werr := fileutil.WriteFileAtomic(output, []byte(st.Article.Markdown), 0o644); werr != nil {
						return fmt.Errorf("write article: %w", werr)
					}
				}
				if jerr := emit(cmd, ctx, st, func() {
					printWorkflow(cmd.OutOrStdout(), st, time.Now())
					if output != "" && st.Article != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "Article written to %s\n", output)
					}
				}); jerr != nil {
					return jerr
				}
				return err
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&geo, "geo", "", "Two-letter country code")
	flags.StringVar(&opts.Tone, "tone", "", "Writing tone")
	flags.StringVar(&opts.Size, "size", "", "Article size: short, medium, long or pillar")
	flags.StringVar(&opts.Language, "language", "", "BCP 47 language tag")
	flags.StringVar(&opts.TemplateID, "template", "", "Template identifier")
	flags.StringVar(&opts.Instructions, "instructions", "", "Extra instructions for the writer")
	flags.StringVar(&opts.Provider, "provider", "", "LLM provider (defaults to llm.default_provider)")
	flags.IntVarP(&opts.NumResults, "num", "n", 0, "Number of SERP results to research")
	flags.BoolVar(&opts.Fused, "fused", false, "Use the scrape provider's combined search")
	flags.BoolVar(&opts.SkipEdit, "skip-edit", false, "Skip the editing pass")
	flags.StringVarP(&output, "output", "o", "", "Write the article markdown to this file")
	return cmd
}

func newWorkflowShowCommand(ctx *commandContext) *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				st, err := a.Engine.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if markdown {
					if st.Article == nil {
						return errors.New("workflow has no article yet")
					}
					_, err := io.WriteString(cmd.OutOrStdout(), st.Article.Markdown)
					return err
				}
				return emit(cmd, ctx, st, func() { printWorkflow(cmd.OutOrStdout(), st, time.Now()) })
			})
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Print only the article markdown")
	return cmd
}

func newWorkflowListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				states, err := a.Engine.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, states, func() {
					spec := tableSpec{
						headers: []string{"ID", "Keyword", "Status", "Progress", "Words", "Started"},
						aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
						empty:   "No workflows",
					}
					for _, st := range states {
						words := "-"
						if st.Article != nil {
							words = strconv.Itoa(st.Article.WordCount)
						}
						spec.add(st.ID, st.Keyword, string(st.Status), fmt.Sprintf("%d%%", st.Progress), words, formatStamp(st.StartedAt))
					}
					spec.print(cmd.OutOrStdout())
				})
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum workflows to list")
	return cmd
}

func printWorkflow(out io.Writer, st workflow.State, now time.Time) {
	fmt.Fprintf(out, "Workflow %s\n", st.ID)
	fmt.Fprintf(out, "Keyword:  %s (%s)\n", st.Keyword, st.Geo)
	fmt.Fprintln(out, renderStatusLine("Status", workflowKind(st.Status), fmt.Sprintf("%s (%d%%)", st.Stage, st.Progress), shouldColorize(out)))
	if st.ResearchID != "" {
		fmt.Fprintf(out, "Research: %s\n", st.ResearchID)
	}
	fmt.Fprintf(out, "Duration: %s\n", st.Duration(now).Round(time.Second))
	if st.Error != "" {
		fmt.Fprintf(out, "Error:    %s", st.Error)
		if st.ErrorKind != "" {
			fmt.Fprintf(out, " [%s]", st.ErrorKind)
		}
		fmt.Fprintln(out)
	}
	if st.Article != nil {
		fmt.Fprintf(out, "Article:  %s (%d words, edited: %s)\n", st.Article.Title, st.Article.WordCount, yesNo(st.Article.Edited))
	}
}
