package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/lmmx/arxiv-explorer/internal/topics"
)

var (
	topicsSel    selectionFlags
	topicsFil    filterFlags
	topicsN      int
	topicsStatus bool
)

func init() {
	rootCmd.AddCommand(topicsCmd)
	topicsSel.register(topicsCmd)
	topicsFil.register(topicsCmd)
	topicsCmd.Flags().IntVarP(&topicsN, "topics", "n", 0, "Number of topics (2-50); default suggested from corpus size")
	topicsCmd.Flags().BoolVar(&topicsStatus, "status", false, "Only report whether topics are available and the suggested count")
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Extract topics from a selection",
	Long: `Extract topics from the abstracts of a selection with TF-IDF and
non-negative matrix factorization. Each paper is assigned a topic-weight
vector and a dominant topic. Results are not cached.

If the corpus has fewer documents or terms than requested topics, the
count is capped and the response says so.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		sel := topicsSel.mustSelection()
		filter := topicsFil.mustFilter()
		a := mustOpenApp()
		defer a.Close()

		corpus := a.mustRun(ctx, sel, true)
		if topicsStatus {
			return outputJSON(corpus.TopicStatus())
		}

		n := topicsN
		if n == 0 {
			n = corpus.TopicStatus().SuggestedTopics
		}
		res, err := corpus.Topics(ctx, filter, n, topics.WithLogger(a.logger.Named("topics")))
		if err != nil {
			exitWithErr(err)
		}

		if humanOutput {
			outputHuman("%d topics over %d papers", res.N, res.PaperCount)
			if res.Capped {
				outputHuman(" (requested %d: %s)", res.Requested, res.CapReason)
			}
			outputHuman("\n\n")
			for _, t := range res.Topics {
				terms := make([]string, len(t.Terms))
				for i, tw := range t.Terms {
					terms[i] = tw.Term
				}
				outputHuman("%2d. [%d papers] %s\n", t.ID, t.DocCount, strings.Join(terms, ", "))
			}
			return nil
		}
		return outputJSON(res)
	},
}
