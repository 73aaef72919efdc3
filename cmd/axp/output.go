package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
	"github.com/lmmx/arxiv-explorer/internal/pipeline"
	"github.com/lmmx/arxiv-explorer/internal/progress"
)

// Constants for output formatting.
const (
	SearchTitleMaxLen = 70 // Used in search result summaries
	ListTitleMaxLen   = 60 // Used in paper listings

	// progressBarWidth is the width in characters for terminal progress display.
	progressBarWidth = 30
	// progressLineClearWidth clears the whole progress line.
	progressLineClearWidth = 70
)

// ErrorResponse is the JSON body for failures.
type ErrorResponse struct {
	Error     string     `json:"error"`
	Kind      arxiv.Kind `json:"kind,omitempty"`
	Partition string     `json:"partition,omitempty"`
	Hint      string     `json:"hint,omitempty"`
}

// errorResponse classifies err and, for a partition missing upstream,
// points at the command that lists what is published.
func errorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error(), Kind: arxiv.KindOf(err)}
	var pe *pipeline.PartitionError
	if errors.As(err, &pe) {
		resp.Partition = pe.Key.String()
		if arxiv.IsNotFound(err) {
			resp.Hint = fmt.Sprintf("%s is not published on the hub; list published months with 'axp months %s -y %d' and narrow the selection with --month",
				pe.Key, pe.Key.Category, pe.Key.Period.Year)
		}
	}
	return resp
}

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...any) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// exitWithErr reports a classified error and exits with its code.
func exitWithErr(err error) {
	resp := errorResponse(err)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if resp.Hint != "" {
			fmt.Fprintf(os.Stderr, "\n%s\n", resp.Hint)
		}
	} else {
		outputJSON(resp)
	}
	os.Exit(exitCodeFor(err))
}

// truncate shortens s to n runes with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// buildProgressBar creates a progress bar string of the given width.
// Returns a string like "[=====>    ]" showing progress.
func buildProgressBar(current, total, width int) string {
	if total == 0 {
		return strings.Repeat(" ", width)
	}
	filled := (width * current) / total
	if filled >= width {
		return strings.Repeat("=", width)
	}
	return strings.Repeat("=", filled) + ">" + strings.Repeat(" ", width-filled-1)
}

// progressSink renders events on stderr: bars with --human, JSON lines
// otherwise. quiet suppresses everything.
func progressSink(quiet bool) progress.Sink {
	if quiet {
		return progress.Discard
	}
	if !humanOutput {
		enc := json.NewEncoder(os.Stderr)
		return progress.SinkFunc(func(e progress.Event) { _ = enc.Encode(e) })
	}
	return progress.SinkFunc(printEvent)
}

func printEvent(e progress.Event) {
	clearLine := func() { fmt.Fprintf(os.Stderr, "\r%*s\r", progressLineClearWidth, "") }
	switch e.Type {
	case progress.DownloadStart:
		fmt.Fprintf(os.Stderr, "Partitions: %d selected, %d cached\n", e.Total, e.Cached)
	case progress.DownloadProgress, progress.EmbedProgress:
		label := "download"
		if e.Type == progress.EmbedProgress {
			label = "embed"
		}
		pct := 0.0
		if e.Total > 0 {
			pct = float64(e.Current) / float64(e.Total) * 100
		}
		fmt.Fprintf(os.Stderr, "\r%-8s [%s] %d/%d (%.0f%%)", label,
			buildProgressBar(e.Current, e.Total, progressBarWidth), e.Current, e.Total, pct)
	case progress.EmbedStart:
		clearLine()
		fmt.Fprintf(os.Stderr, "Embedding %d papers...\n", e.Total)
	case progress.ProjectStart:
		clearLine()
		fmt.Fprintf(os.Stderr, "Projecting %d papers...\n", e.Total)
	case progress.ProjectComplete:
		if e.FromCache {
			fmt.Fprintln(os.Stderr, "Projection loaded from cache")
		}
	case progress.Complete:
		fmt.Fprintf(os.Stderr, "Complete! %d papers.\n", e.TotalPapers)
	case progress.Error:
		clearLine()
	}
}
