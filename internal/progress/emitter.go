package progress

import (
	"errors"
	"sync"
	"time"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

var (
	// ErrFinished is returned for events emitted after the terminal event.
	ErrFinished = errors.New("progress: run already finished")

	// ErrOutOfOrder is returned for an event from an earlier stage.
	ErrOutOfOrder = errors.New("progress: event out of stage order")
)

// Sink receives events. Emit is called from one goroutine at a time.
type Sink interface {
	Emit(e Event)
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(e Event)

// Emit implements Sink.
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Emitter sequences the events of one run into a Sink.
//
// It is safe for concurrent use. Counters of progress events never go
// down within a stage: a lower Current than already reported is raised
// to the previous value.
type Emitter struct {
	mu      sync.Mutex
	sink    Sink
	now     func() time.Time
	seq     int
	rank    int
	current map[Type]int
	done    bool
}

// NewEmitter creates an Emitter writing to sink. A nil sink discards.
func NewEmitter(sink Sink) *Emitter {
	if sink == nil {
		sink = Discard
	}
	return &Emitter{sink: sink, now: time.Now, rank: -1, current: make(map[Type]int)}
}

// Finished reports whether a terminal event has been emitted.
func (e *Emitter) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// DownloadStart announces the download stage for total partitions of
// which cached are already local.
func (e *Emitter) DownloadStart(total, cached int) error {
	return e.emit(Event{Type: DownloadStart, Total: total, Cached: cached})
}

// DownloadProgress reports current of total partitions ready.
func (e *Emitter) DownloadProgress(partition string, current, total int) error {
	return e.emit(Event{Type: DownloadProgress, Partition: partition, Current: current, Total: total})
}

// EmbedStart announces the embed stage over total papers.
func (e *Emitter) EmbedStart(total int) error {
	return e.emit(Event{Type: EmbedStart, Total: total})
}

// EmbedProgress reports current of total papers embedded. skipped marks a
// partition that needed no model calls.
func (e *Emitter) EmbedProgress(partition string, current, total int, skipped bool) error {
	return e.emit(Event{Type: EmbedProgress, Partition: partition, Current: current, Total: total, Skipped: skipped})
}

// ProjectStart announces projection of papers points.
func (e *Emitter) ProjectStart(papers int) error {
	return e.emit(Event{Type: ProjectStart, Total: papers})
}

// ProjectComplete ends the projection stage.
func (e *Emitter) ProjectComplete(fromCache bool) error {
	return e.emit(Event{Type: ProjectComplete, FromCache: fromCache})
}

// Complete ends the run successfully.
func (e *Emitter) Complete(totalPapers int, fromCache bool) error {
	return e.emit(Event{Type: Complete, TotalPapers: totalPapers, FromCache: fromCache})
}

// Fail ends the run with err, classified by arxiv.KindOf.
func (e *Emitter) Fail(err error) error {
	ev := Event{Type: Error, Kind: arxiv.KindOf(err)}
	if err != nil {
		ev.Message = err.Error()
	}
	if ev.Kind == "" {
		ev.Kind = arxiv.KindInternal
	}
	return e.emit(ev)
}

func (e *Emitter) emit(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.done {
		return ErrFinished
	}
	r := ev.Type.rank()
	if r < e.rank && !ev.Terminal() {
		return ErrOutOfOrder
	}
	switch ev.Type {
	case DownloadProgress, EmbedProgress:
		if prev := e.current[ev.Type]; ev.Current < prev {
			ev.Current = prev
		}
		e.current[ev.Type] = ev.Current
	}

	e.rank = r
	e.seq++
	ev.Seq = e.seq
	ev.Time = e.now()
	if ev.Terminal() {
		e.done = true
	}
	e.sink.Emit(ev)
	return nil
}
