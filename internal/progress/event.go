// Package progress defines the event stream a pipeline run emits while it
// downloads, embeds and projects a selection.
//
// A run emits stage events in order and ends with exactly one terminal
// event, either Complete or Error. The Emitter enforces that contract so
// sinks can trust it.
package progress

import (
	"encoding/json"
	"time"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

// Type names an event on the wire.
type Type string

// Event types, in stage order.
const (
	DownloadStart    Type = "download-start"
	DownloadProgress Type = "download-progress"
	EmbedStart       Type = "embed-start"
	EmbedProgress    Type = "embed-progress"
	ProjectStart     Type = "project-start"
	ProjectComplete  Type = "project-complete"
	Complete         Type = "complete"
	Error            Type = "error"
)

// rank orders event types. Events may not go back to a lower rank.
func (t Type) rank() int {
	switch t {
	case DownloadStart:
		return 0
	case DownloadProgress:
		return 1
	case EmbedStart:
		return 2
	case EmbedProgress:
		return 3
	case ProjectStart:
		return 4
	case ProjectComplete:
		return 5
	case Complete, Error:
		return 6
	}
	return -1
}

// Terminal reports whether t ends a run.
func (t Type) Terminal() bool { return t == Complete || t == Error }

// Event is one progress message. Fields irrelevant to Type are zero and
// are left out of its JSON form; relevant fields are always present, even
// when zero.
type Event struct {
	Type Type      `json:"type"`
	Seq  int       `json:"seq"`
	Time time.Time `json:"time"`

	// Partition is the partition a download or embed event refers to.
	Partition string `json:"partition"`
	// Current and Total count partitions during download and papers
	// during embedding.
	Current int  `json:"current"`
	Total   int  `json:"total"`
	Skipped bool `json:"skipped"`
	// Cached is the number of partitions already on disk at download-start.
	Cached int `json:"cached"`

	TotalPapers int  `json:"total_papers"`
	FromCache   bool `json:"from_cache"`

	Kind    arxiv.Kind `json:"kind"`
	Message string     `json:"message"`
}

// Terminal reports whether e ends a run.
func (e Event) Terminal() bool { return e.Type.Terminal() }

// wireEvent is the JSON form of an Event. A nil field is not part of the
// event type.
type wireEvent struct {
	Type Type      `json:"type"`
	Seq  int       `json:"seq"`
	Time time.Time `json:"time"`

	Partition   *string     `json:"partition,omitempty"`
	Current     *int        `json:"current,omitempty"`
	Total       *int        `json:"total,omitempty"`
	Skipped     *bool       `json:"skipped,omitempty"`
	Cached      *int        `json:"cached,omitempty"`
	TotalPapers *int        `json:"total_papers,omitempty"`
	FromCache   *bool       `json:"from_cache,omitempty"`
	Kind        *arxiv.Kind `json:"kind,omitempty"`
	Message     *string     `json:"message,omitempty"`
}

// MarshalJSON writes the fields that belong to e.Type.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{Type: e.Type, Seq: e.Seq, Time: e.Time}
	switch e.Type {
	case DownloadStart:
		w.Total, w.Cached = &e.Total, &e.Cached
	case DownloadProgress:
		w.Partition, w.Current, w.Total = &e.Partition, &e.Current, &e.Total
	case EmbedStart, ProjectStart:
		w.Total = &e.Total
	case EmbedProgress:
		w.Partition, w.Current, w.Total, w.Skipped = &e.Partition, &e.Current, &e.Total, &e.Skipped
	case ProjectComplete:
		w.FromCache = &e.FromCache
	case Complete:
		w.TotalPapers, w.FromCache = &e.TotalPapers, &e.FromCache
	case Error:
		w.Kind, w.Message = &e.Kind, &e.Message
	}
	return json.Marshal(w)
}
