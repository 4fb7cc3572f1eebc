package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"seoforge/internal/app"
	"seoforge/internal/batch"
	"seoforge/internal/fileutil"
	"seoforge/internal/textutil"
)

type exportedPage struct {
	PageID string `json:"page_id"`
	File   string `json:"file"`
	Words  int    `json:"words"`
	SHA256 string `json:"sha256"`
}

func newPagesExportCommand(ctx *commandContext) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export <project>",
		Short: "Write every completed page's article as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(dir)
			if target == "" {
				return fmt.Errorf("--dir is required")
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				list, err := a.Store.Pages().ListPages(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				exported := make([]exportedPage, 0, len(list))
				for _, p := range list {
					if p.Status != batch.StatusCompleted || p.Article == nil {
						continue
					}
					data := []byte(p.Article.Markdown)
					name := fmt.Sprintf("%02d-%s.md", p.Position+1, textutil.Slugify(p.Subject()))
					path := filepath.Join(target, name)
					if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
						return fmt.Errorf("export page %s: %w", p.ID, err)
					}
					exported = append(exported, exportedPage{
						PageID: p.ID,
						File:   path,
						Words:  p.Article.WordCount,
						SHA256: fileutil.Checksum(data),
					})
				}
				return emit(cmd, ctx, exported, func() {
					spec := tableSpec{
						headers: []string{"Page", "File", "Words"},
						aligns:  []columnAlignment{alignLeft, alignLeft, alignRight},
						empty:   "No completed pages to export",
					}
					for _, e := range exported {
						spec.add(e.PageID, e.File, strconv.Itoa(e.Words))
					}
					spec.print(cmd.OutOrStdout())
				})
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to write markdown files into")
	return cmd
}
