package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"seoforge/internal/app"
	"seoforge/internal/batch"
	"seoforge/internal/services"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Import content plans and generate their pages",
	}
	batchCmd.AddCommand(newBatchImportCommand(ctx))
	batchCmd.AddCommand(newBatchRunCommand(ctx))
	batchCmd.AddCommand(newBatchStatusCommand(ctx))
	batchCmd.AddCommand(newBatchProjectsCommand(ctx))
	return batchCmd
}

type importSummary struct {
	Project batch.Project `json:"project"`
	Created bool          `json:"created"`
	Added   int           `json:"added"`
}

func newBatchImportCommand(ctx *commandContext) *cobra.Command {
	var updateDefaults bool
	cmd := &cobra.Command{
		Use:   "import <plan.yaml>",
		Short: "Import a YAML content plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open plan: %w", err)
			}
			defer f.Close()
			plan, err := batch.ParsePlan(f)
			if err != nil {
				return err
			}

			return ctx.withApp(cmd, func(a *app.App) error {
				pages := a.Store.Pages()
				summary := importSummary{Project: plan.Project, Added: len(plan.Pages)}

				existing, err := pages.GetProject(cmd.Context(), plan.Project.ID)
				switch {
				case errors.Is(err, services.ErrNotFound):
					summary.Created = true
					if err := pages.PutProject(cmd.Context(), plan.Project); err != nil {
						return err
					}
				case err != nil:
					return err
				case updateDefaults:
					existing.Name = plan.Project.Name
					existing.Defaults = plan.Project.Defaults
					if err := pages.PutProject(cmd.Context(), existing); err != nil {
						return err
					}
					summary.Project = existing
				default:
					summary.Project = existing
				}

				if err := pages.AddPages(cmd.Context(), plan.Project.ID, plan.Pages); err != nil {
					return err
				}
				return emit(cmd, ctx, summary, func() {
					verb := "Updated"
					if summary.Created {
						verb = "Created"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s project %s (%s); added %d pages\n", verb, summary.Project.ID, summary.Project.Name, summary.Added)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&updateDefaults, "update-defaults", false, "Replace an existing project's name and defaults with the plan's")
	return cmd
}

func newBatchRunCommand(ctx *commandContext) *cobra.Command {
	var opts batch.Options

	cmd := &cobra.Command{
		Use:   "run <project>",
		Short: "Generate every pending or failed page of a project",
		Long: "Generate pages one at a time in plan order. Interrupting the command " +
			"cancels the batch after the page in progress finishes.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := strings.TrimSpace(args[0])
			return ctx.withApp(cmd, func(a *app.App) error {
				started, err := a.Batch.Start(cmd.Context(), projectID, opts)
				if err != nil {
					return err
				}
				if !ctx.jsonOutput() {
					fmt.Fprintf(cmd.ErrOrStderr(), "Generating %d pages for %s (Ctrl-C cancels after the current page)\n", started.Total, projectID)
				}

				final, err := waitForBatch(cmd.Context(), a.Batch, projectID, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				return emit(cmd, ctx, final, func() { printBatchStatus(cmd.OutOrStdout(), final) })
			})
		},
	}
	cmd.Flags().StringSliceVar(&opts.PageIDs, "page", nil, "Generate only these page ids (repeatable)")
	cmd.Flags().StringVar(&opts.Settings.Tone, "tone", "", "Tone for this batch")
	cmd.Flags().StringVar(&opts.Settings.Size, "size", "", "Size for this batch")
	cmd.Flags().StringVar(&opts.Settings.Geo, "geo", "", "Geo for this batch")
	cmd.Flags().StringVar(&opts.Settings.Language, "language", "", "Language for this batch")
	cmd.Flags().StringVar(&opts.Settings.TemplateID, "template", "", "Template for this batch")
	return cmd
}

// waitForBatch blocks until the batch finishes. The first interrupt requests
// cancellation; the runner then stops after the page in flight.
func waitForBatch(ctx context.Context, runner *batch.Runner, projectID string, errOut io.Writer) (batch.Status, error) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	final, err := runner.Wait(sigCtx, projectID)
	if err == nil {
		return final, nil
	}
	if ctx.Err() != nil || sigCtx.Err() == nil {
		return final, err
	}
	stop()
	runner.Cancel(projectID)
	fmt.Fprintln(errOut, "Cancelling; waiting for the current page to finish")
	return runner.Wait(context.WithoutCancel(ctx), projectID)
}

func newBatchStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <project>",
		Short: "Summarize a project's page statuses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := strings.TrimSpace(args[0])
			return ctx.withApp(cmd, func(a *app.App) error {
				project, err := a.Store.Pages().GetProject(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				list, err := a.Store.Pages().ListPages(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				status := batch.Status{ProjectID: project.ID, Total: len(list), Stats: batch.CountStats(list)}
				if live, ok := a.Batch.Status(projectID); ok {
					status = live
				}
				return emit(cmd, ctx, status, func() { printBatchStatus(cmd.OutOrStdout(), status) })
			})
		},
	}
}

func newBatchProjectsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List imported projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				projects, err := a.Store.Pages().ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, ctx, projects, func() {
					spec := tableSpec{
						headers: []string{"ID", "Name", "Tone", "Size", "Geo", "Created"},
						empty:   "No projects",
					}
					for _, p := range projects {
						spec.add(p.ID, p.Name, dash(p.Defaults.Tone), dash(p.Defaults.Size), dash(p.Defaults.Geo), formatStamp(p.CreatedAt))
					}
					spec.print(cmd.OutOrStdout())
				})
			})
		},
	}
}

func printBatchStatus(out io.Writer, st batch.Status) {
	fmt.Fprintf(out, "Project:   %s\n", st.ProjectID)
	fmt.Fprintf(out, "Running:   %s\n", yesNo(st.Running))
	if st.Cancelled {
		fmt.Fprintln(out, "Cancelled: yes")
	}
	spec := tableSpec{
		headers: []string{"Pending", "Generating", "Completed", "Failed", "Skipped", "Total"},
		aligns:  []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	}
	s := st.Stats
	spec.add(strconv.Itoa(s.Pending), strconv.Itoa(s.Generating), strconv.Itoa(s.Completed),
		strconv.Itoa(s.Failed), strconv.Itoa(s.Skipped), strconv.Itoa(st.Total))
	spec.print(out)
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
