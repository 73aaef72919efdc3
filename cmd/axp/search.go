package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/lmmx/arxiv-explorer/internal/pipeline"
	"github.com/lmmx/arxiv-explorer/internal/semantic"
)

var (
	searchSel     selectionFlags
	searchLimit   int
	searchSimilar bool
)

func init() {
	rootCmd.AddCommand(searchCmd)
	searchSel.register(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "k", semantic.DefaultK, "Maximum number of results (1-500)")
	searchCmd.Flags().BoolVar(&searchSimilar, "similar", false, "Treat the argument as an arxiv_id and find similar papers")
}

// SearchResponse is the response for the search command.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []pipeline.Hit `json:"results"`
	Total   int            `json:"total"`
	Model   string         `json:"model"`
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search a selection by semantic similarity",
	Long: `Rank the papers of a selection by cosine similarity between the query
embedding and each abstract embedding. Ties are ordered by arxiv_id.`,
	Example: `  axp search -c cs.LG -y 2024 "diffusion models for protein design"
  axp search -c cs.LG -y 2024 --similar 2401.01234 -k 20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		query := strings.TrimSpace(args[0])
		if err := semantic.ValidateK(searchLimit); err != nil {
			exitWithErr(err)
		}
		sel := searchSel.mustSelection()
		a := mustOpenApp()
		defer a.Close()

		corpus := a.mustRun(ctx, sel, true)
		var (
			hits []pipeline.Hit
			err  error
		)
		if searchSimilar {
			hits, err = corpus.Similar(query, searchLimit)
		} else {
			hits, err = corpus.Search(ctx, query, searchLimit)
		}
		if err != nil {
			exitWithErr(err)
		}

		if humanOutput {
			outputHuman("Search: %q\nFound %d papers\n\n", query, len(hits))
			for i, h := range hits {
				outputHuman("%3d. [%.3f] %s  %s\n", i+1, h.Score, h.ArxivID, truncate(h.Title, SearchTitleMaxLen))
			}
			return nil
		}
		return outputJSON(SearchResponse{
			Query:   query,
			Results: hits,
			Total:   len(hits),
			Model:   a.engine.ModelName(),
		})
	},
}
