package pipeline

import (
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/lmmx/arxiv-explorer"

// Metrics holds the pipeline's instruments. All fields are safe for
// concurrent use.
type Metrics struct {
	// PartitionsFetched counts partitions downloaded from the hub.
	PartitionsFetched metric.Int64Counter

	// PartitionsCached counts partitions served from local disk.
	PartitionsCached metric.Int64Counter

	// PapersEmbedded counts model-computed embeddings.
	PapersEmbedded metric.Int64Counter

	// EmbedSkipped counts partitions whose embeddings were already complete.
	EmbedSkipped metric.Int64Counter

	// ProjectionLookups counts projection cache lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	ProjectionLookups metric.Int64Counter

	// Runs counts finished runs. Use with attribute:
	//   attribute.String("status", "ok"|<error kind>)
	Runs metric.Int64Counter

	// StageDuration tracks stage latency. Use with attribute:
	//   attribute.String("stage", "download"|"embed"|"project")
	StageDuration metric.Float64Histogram
}

var stageBuckets = []float64{
	0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.PartitionsFetched, err = m.Int64Counter("axp.partitions.fetched",
		metric.WithDescription("Partitions downloaded from the dataset hub."),
	); err != nil {
		return nil, err
	}
	if met.PartitionsCached, err = m.Int64Counter("axp.partitions.cached",
		metric.WithDescription("Partitions served from the local cache."),
	); err != nil {
		return nil, err
	}
	if met.PapersEmbedded, err = m.Int64Counter("axp.embeddings.computed",
		metric.WithDescription("Embeddings computed by the model."),
	); err != nil {
		return nil, err
	}
	if met.EmbedSkipped, err = m.Int64Counter("axp.embeddings.skipped_partitions",
		metric.WithDescription("Partitions that needed no model calls."),
	); err != nil {
		return nil, err
	}
	if met.ProjectionLookups, err = m.Int64Counter("axp.projection.lookups",
		metric.WithDescription("Projection cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.Runs, err = m.Int64Counter("axp.runs",
		metric.WithDescription("Pipeline runs by final status."),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("axp.stage.duration",
		metric.WithDescription("Duration of each pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}
