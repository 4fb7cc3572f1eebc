package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"seoforge/internal/app"
	"seoforge/internal/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the SERP and page caches",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

type cacheReport struct {
	Backend      string        `json:"backend"`
	Enabled      bool          `json:"enabled"`
	Caches       []cache.Stats `json:"caches"`
	IndexedPages int           `json:"indexed_pages"`
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				report := cacheReport{
					Backend: a.Config.Cache.Backend,
					Enabled: a.Config.Cache.Enabled,
					Caches:  []cache.Stats{a.SearchCache.Stats(cmd.Context()), a.PageCache.Stats(cmd.Context())},
				}
				indexed, err := a.Store.Index().Count(cmd.Context())
				if err != nil {
					return err
				}
				report.IndexedPages = indexed
				return emit(cmd, ctx, report, func() {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Backend: %s (enabled: %s)\n", report.Backend, yesNo(report.Enabled))
					spec := tableSpec{
						headers: []string{"Cache", "Entries", "TTL"},
						aligns:  []columnAlignment{alignLeft, alignRight, alignRight},
					}
					for _, s := range report.Caches {
						spec.add(s.Name, strconv.Itoa(s.Entries), s.TTL.String())
					}
					spec.print(out)
					fmt.Fprintf(out, "Indexed pages: %d\n", report.IndexedPages)
				})
			})
		},
	}
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				searchN, err := a.SearchCache.Prune(cmd.Context())
				if err != nil {
					return err
				}
				pageN, err := a.PageCache.Prune(cmd.Context())
				if err != nil {
					return err
				}
				result := map[string]int{"search": searchN, "pages": pageN}
				return emit(cmd, ctx, result, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d SERP and %d page entries\n", searchN, pageN)
				})
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				searchN, err := a.SearchCache.Clear(cmd.Context())
				if err != nil {
					return err
				}
				pageN, err := a.PageCache.Clear(cmd.Context())
				if err != nil {
					return err
				}
				result := map[string]int{"search": searchN, "pages": pageN}
				return emit(cmd, ctx, result, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d SERP and %d page entries\n", searchN, pageN)
				})
			})
		},
	}
}
