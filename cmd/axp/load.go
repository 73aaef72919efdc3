package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lmmx/arxiv-explorer/internal/pipeline"
)

var (
	loadSel   selectionFlags
	papersSel selectionFlags
	papersFil filterFlags
	statsSel  selectionFlags
)

func init() {
	rootCmd.AddCommand(loadCmd, papersCmd, statsCmd)
	loadSel.register(loadCmd)
	papersSel.register(papersCmd)
	papersFil.register(papersCmd)
	statsSel.register(statsCmd)
}

// LoadResponse is the response for the load command.
type LoadResponse struct {
	Selection     string            `json:"selection"`
	TotalPapers   int               `json:"total_papers"`
	FromCache     bool              `json:"from_cache"`
	ProjectionKey string            `json:"projection_key"`
	Run           pipeline.RunStats `json:"run"`
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Download, embed and project a selection",
	Long: `Download the selected partitions, embed every paper that has no
embedding yet, and compute (or load) the 2D projection.

Progress is streamed to stderr as JSON lines, or as progress bars with
--human. Rerunning the same selection does no download or model work.`,
	Example: `  axp load -c cs.AI -c cs.LG -y 2024
  axp load -c hep-th -y 2023 -m 01 -m 02 --human`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		sel := loadSel.mustSelection()
		a := mustOpenApp()
		defer a.Close()

		corpus := a.mustRun(ctx, sel, false)
		if humanOutput {
			rs := corpus.RunStats()
			outputHuman("Loaded %d papers from %d partitions (%d downloaded, %d embedded) in %s\n",
				corpus.Len(), sel.Len(), rs.PartitionsFetched, rs.PapersEmbedded, rs.Duration.Round(10*time.Millisecond))
			return nil
		}
		return outputJSON(LoadResponse{
			Selection:     sel.Canonical(),
			TotalPapers:   corpus.Len(),
			FromCache:     corpus.FromCache(),
			ProjectionKey: corpus.ProjectionKey(),
			Run:           corpus.RunStats(),
		})
	},
}

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "List papers of a selection with their 2D coordinates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		sel := papersSel.mustSelection()
		filter := papersFil.mustFilter()
		a := mustOpenApp()
		defer a.Close()

		papers := a.mustRun(ctx, sel, true).Papers(filter)
		if humanOutput {
			for _, p := range papers {
				outputHuman("%-12s %-10s (%7.3f, %7.3f)  %s\n",
					p.ArxivID, p.Category, p.X, p.Y, truncate(p.Title, ListTitleMaxLen))
			}
			outputHuman("%d papers\n", len(papers))
			return nil
		}
		return outputJSON(papers)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show paper count and top categories of a selection",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		sel := statsSel.mustSelection()
		a := mustOpenApp()
		defer a.Close()

		st := a.mustRun(ctx, sel, true).Stats()
		if humanOutput {
			outputHuman("Total papers: %d\n\n", st.TotalPapers)
			for _, c := range st.TopSubjects {
				outputHuman("  %-16s %s\n", c.Category, fmt.Sprint(c.Papers))
			}
			return nil
		}
		return outputJSON(st)
	},
}
