package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
	"github.com/lmmx/arxiv-explorer/internal/config"
	"github.com/lmmx/arxiv-explorer/internal/partition"
)

var (
	subjectsRefresh bool
	monthsYear      int
)

func init() {
	rootCmd.AddCommand(subjectsCmd, monthsCmd)
	subjectsCmd.Flags().BoolVar(&subjectsRefresh, "refresh", false, "List subjects from the hub again")
	monthsCmd.Flags().IntVarP(&monthsYear, "year", "y", 0, "Restrict to one year")
}

// SubjectsResponse is the response for the subjects command.
type SubjectsResponse struct {
	Subjects []string `json:"subjects"`
	Total    int      `json:"total"`
}

var subjectsCmd = &cobra.Command{
	Use:     "subjects",
	Aliases: []string{"categories"},
	Short:   "List subject categories available in the dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a := mustOpenApp()
		defer a.Close()

		tax, err := partition.LoadSubjects(ctx, config.SubjectsPath(a.cfg.DataDir), a.hub, subjectsRefresh)
		if err != nil {
			exitWithErr(err)
		}
		codes := tax.Codes()
		if humanOutput {
			outputHuman("%s\n%d subjects\n", strings.Join(codes, "\n"), len(codes))
			return nil
		}
		return outputJSON(SubjectsResponse{Subjects: codes, Total: len(codes)})
	},
}

// MonthsResponse is the response for the months command.
type MonthsResponse struct {
	Category string            `json:"category"`
	Months   []arxiv.YearMonth `json:"months"`
}

var monthsCmd = &cobra.Command{
	Use:   "months <category>",
	Short: "List the months the dataset has for a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		category := strings.TrimSpace(args[0])
		a := mustOpenApp()
		defer a.Close()

		var years []int
		if monthsYear != 0 {
			years = []int{monthsYear}
		} else {
			var err error
			if years, err = a.hub.ListYears(ctx, category); err != nil {
				exitWithErr(err)
			}
		}
		resp := MonthsResponse{Category: category, Months: []arxiv.YearMonth{}}
		for _, y := range years {
			months, err := a.hub.ListMonths(ctx, category, y)
			if err != nil {
				exitWithErr(err)
			}
			resp.Months = append(resp.Months, months...)
		}
		if humanOutput {
			for _, m := range resp.Months {
				outputHuman("%s\n", m)
			}
			return nil
		}
		return outputJSON(resp)
	},
}
