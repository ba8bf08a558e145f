package scene

import (
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	outputKey = tag.MustNewKey("output")

	raysTraced     = stats.Int64("pathtracer/rays", "Rays tested against the scene", stats.UnitDimensionless)
	samplesTaken   = stats.Int64("pathtracer/samples", "Light paths sampled", stats.UnitDimensionless)
	rowLatency     = stats.Float64("pathtracer/row_latency", "Time to render one image row", stats.UnitMilliseconds)
	rendersStarted = stats.Int64("pathtracer/renders", "Renders started", stats.UnitDimensionless)
)

// Views lists the views over the renderer's measures.
func Views() []*view.View {
	return []*view.View{
		{
			Name:        "pathtracer/rays",
			Description: "Counter of rays tested against the scene",
			TagKeys:     []tag.Key{outputKey},
			Measure:     raysTraced,
			Aggregation: view.Sum(),
		},
		{
			Name:        "pathtracer/samples",
			Description: "Counter of light paths sampled",
			TagKeys:     []tag.Key{outputKey},
			Measure:     samplesTaken,
			Aggregation: view.Sum(),
		},
		{
			Name:        "pathtracer/row_latency",
			Description: "Distribution of row render times",
			TagKeys:     []tag.Key{outputKey},
			Measure:     rowLatency,
			Aggregation: view.Distribution(1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000),
		},
		{
			Name:        "pathtracer/renders",
			Description: "Counter of renders started",
			TagKeys:     []tag.Key{outputKey},
			Measure:     rendersStarted,
			Aggregation: view.Count(),
		},
	}
}

func RegisterViews() error {
	return view.Register(Views()...)
}
