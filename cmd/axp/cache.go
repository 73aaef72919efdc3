package main

import (
	"sort"

	"github.com/spf13/cobra"
)

var evictSel selectionFlags

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheSummaryCmd, cacheEvictCmd)
	evictSel.register(cacheEvictCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage downloaded partitions",
}

var cacheSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize cached partitions by year and month",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustOpenApp()
		defer a.Close()

		sum, err := a.partitions.Summary()
		if err != nil {
			exitWithErr(err)
		}
		if humanOutput {
			years := make([]string, 0, len(sum.Years))
			for y := range sum.Years {
				years = append(years, y)
			}
			sort.Strings(years)
			for _, y := range years {
				ys := sum.Years[y]
				outputHuman("%s: %d papers\n", y, ys.Total)
				months := make([]string, 0, len(ys.Months))
				for m := range ys.Months {
					months = append(months, m)
				}
				sort.Strings(months)
				for _, m := range months {
					ms := ys.Months[m]
					outputHuman("  %s: %d subjects, %d papers\n", m, ms.Subjects, ms.Papers)
				}
			}
			outputHuman("Total: %d papers in %d files\n", sum.TotalPapers, sum.TotalFiles)
			return nil
		}
		return outputJSON(sum)
	},
}

// EvictResponse is the response for cache evict.
type EvictResponse struct {
	Evicted []string `json:"evicted"`
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Remove downloaded partitions from the cache",
	Long: `Remove the selected partition files and their catalog rows. Embeddings
and projections are kept; a later load downloads the partitions again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sel := evictSel.mustSelection()
		a := mustOpenApp()
		defer a.Close()

		resp := EvictResponse{Evicted: []string{}}
		for _, key := range sel.Keys() {
			if _, ok, err := a.partitions.Lookup(key); err != nil {
				exitWithErr(err)
			} else if !ok {
				continue
			}
			if err := a.partitions.Evict(key); err != nil {
				exitWithErr(err)
			}
			resp.Evicted = append(resp.Evicted, key.String())
		}
		if humanOutput {
			outputHuman("Evicted %d partitions\n", len(resp.Evicted))
			return nil
		}
		return outputJSON(resp)
	},
}
