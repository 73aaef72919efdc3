package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/lmmx/arxiv-explorer/internal/partition"
)

var estimateSel selectionFlags

func init() {
	rootCmd.AddCommand(estimateCmd)
	estimateSel.register(estimateCmd)
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate paper counts and embedding time for a selection",
	Long: `Estimate how many papers a selection holds without downloading it.

Cached partitions are counted exactly. Others are counted from the remote
parquet footer, falling back to a file-size heuristic. The embedding time
uses the configured throughput (papers per second).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		sel := estimateSel.mustSelection()
		a := mustOpenApp()
		defer a.Close()

		est, err := partition.NewEstimator(a.partitions, a.hub,
			partition.WithConcurrency(a.cfg.Concurrency),
			partition.WithThroughput(a.cfg.Throughput),
			partition.WithEstimatorLogger(a.logger.Named("estimate")),
		).Estimate(ctx, sel)
		if err != nil {
			exitWithErr(err)
		}

		if humanOutput {
			outputHuman("Papers: %d (%d cached, %d estimated", est.Total, est.TotalCached, est.TotalEstimated)
			if est.UnknownFiles > 0 {
				outputHuman(", %d partitions unknown", est.UnknownFiles)
			}
			outputHuman(")\nEmbedding time: %s\n\n", est.Time.Human)
			cats := make([]string, 0, len(est.ByCategory))
			for c := range est.ByCategory {
				cats = append(cats, c)
			}
			sort.Strings(cats)
			for _, c := range cats {
				outputHuman("  %-16s %d\n", c, est.ByCategory[c].Total)
			}
			return nil
		}
		return outputJSON(est)
	},
}
