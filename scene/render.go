package scene

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"row-major/pathtracer/geometry"
	"row-major/pathtracer/imageio"
	"row-major/pathtracer/radiance"
	"row-major/pathtracer/vmath/rgb"

	"github.com/golang/glog"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"google.golang.org/api/option"
)

// ProgressFunc is told how many samples have been collected out of the number
// the current render needs.  Calls are serialized.
type ProgressFunc func(done, total int)

type RenderOptions struct {
	// Samples is the number of light paths averaged into each pixel.
	Samples int

	// Bounces caps the number of segments in a light path.
	Bounces int

	// Workers bounds the number of rows rendered at once.  Zero means one per
	// CPU.
	Workers int

	// Policy tunes the refraction estimator.  Zero fields take their
	// defaults.
	Policy Policy

	Progress ProgressFunc

	// StorageOptions configure the Cloud Storage client used for gs://
	// outputs.
	StorageOptions []option.ClientOption
}

func (o *RenderOptions) validate() error {
	if o.Samples <= 0 {
		return fmt.Errorf("sample count must be positive, got %d", o.Samples)
	}
	if o.Bounces < 0 {
		return fmt.Errorf("bounce count must be non-negative, got %d", o.Bounces)
	}
	if o.Workers < 0 {
		return fmt.Errorf("worker count must be non-negative, got %d", o.Workers)
	}
	if err := o.Policy.WithDefaults().Validate(); err != nil {
		return fmt.Errorf("while validating policy: %w", err)
	}
	return nil
}

// SamplePoint returns the sum of samples light paths through the screen point
// (x, y).  A fresh primary ray is drawn for every sample so lens cameras blur
// correctly.
func (s *Scene) SamplePoint(x, y float64, samples, bounces int, policy Policy, rng *rand.Rand) rgb.T {
	return s.newTracer(bounces, policy).sample(s, x, y, samples, rng)
}

func (t *tracer) sample(s *Scene, x, y float64, samples int, rng *rand.Rand) rgb.T {
	sum := rgb.Black
	for i := 0; i < samples; i++ {
		primary := s.camera.View(x, y, rng)
		sum = rgb.AddCC(sum, t.bounce(primary, t.bounces, geometry.NoSkip, rng))
	}
	return sum
}

// RenderPoint averages samples light paths through the screen point (x, y) and
// quantizes the result.
func (s *Scene) RenderPoint(x, y float64, samples, bounces int, policy Policy, rng *rand.Rand) [3]uint8 {
	sum := s.SamplePoint(x, y, samples, bounces, policy, rng)
	return rgb.Quantize(rgb.DivCS(sum, float64(samples)))
}

// pixelRNG returns the generator for one pass over pixel (px, py).  pass is
// the number of samples the pixel already holds, so resumed renders draw fresh
// paths and fresh renders are reproducible.
func pixelRNG(px, py, pass int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(px)<<32|uint64(uint32(py)), uint64(pass)))
}

// RenderImage tops up every pixel of im to opts.Samples samples.
//
// Rows are rendered in parallel.  Each pixel draws from its own generator, so
// the result does not depend on scheduling.  If ctx is cancelled no further
// rows are started and the context's error is returned; rows already finished
// stay recorded in im.
func (s *Scene) RenderImage(ctx context.Context, im *radiance.Image, opts RenderOptions) error {
	tracer := otel.Tracer("row-major/pathtracer/scene")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Scene.RenderImage")
	defer span.End()

	if err := opts.validate(); err != nil {
		return err
	}

	span.SetAttributes(
		attribute.Int("width", im.Width),
		attribute.Int("height", im.Height),
		attribute.Int("samples", opts.Samples),
		attribute.Int("bounces", opts.Bounces),
	)

	workers := opts.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	// Count the samples we still need, for reporting progress.
	totalSamples := 0
	for _, c := range im.Counts {
		if int(c) < opts.Samples {
			totalSamples += opts.Samples - int(c)
		}
	}
	glog.V(1).Infof("Rendering %dx%d image with %d workers, %d samples outstanding", im.Width, im.Height, workers, totalSamples)

	curProgress := 0

	// progressMutex locks both curProgress and im.
	progressMutex := sync.Mutex{}

	eg, egCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(workers))

	var scheduleErr error
	for py := 0; py < im.Height; py++ {
		if err := sem.Acquire(egCtx, 1); err != nil {
			scheduleErr = err
			break
		}

		progressMutex.Lock()
		row := im.Cut(py, py+1)
		progressMutex.Unlock()

		eg.Go(func() error {
			defer sem.Release(1)

			if err := egCtx.Err(); err != nil {
				return err
			}

			start := time.Now()
			t := s.newTracer(opts.Bounces, opts.Policy)
			added := t.renderRow(s, row, py, im.Width, im.Height, opts.Samples)

			stats.Record(ctx,
				raysTraced.M(t.rays),
				samplesTaken.M(int64(added)),
				rowLatency.M(float64(time.Since(start))/float64(time.Millisecond)),
			)
			glog.V(2).Infof("Row %d: %d samples, %d rays in %v", py, added, t.rays, time.Since(start))

			progressMutex.Lock()
			defer progressMutex.Unlock()

			im.Paste(row, py)
			curProgress += added
			if opts.Progress != nil {
				opts.Progress(curProgress, totalSamples)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("while rendering rows: %w", err)
	}
	if scheduleErr != nil {
		span.RecordError(scheduleErr)
		span.SetStatus(codes.Error, scheduleErr.Error())
		return fmt.Errorf("while scheduling rows: %w", scheduleErr)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("while rendering rows: %w", err)
	}

	return nil
}

// renderRow fills the single-row image row, which is row py of a width x
// height image, and returns the number of samples it added.
func (t *tracer) renderRow(s *Scene, row *radiance.Image, py, width, height, samples int) int {
	added := 0
	fy := (float64(py) + 0.5) / float64(height)
	for px := 0; px < width; px++ {
		have := row.Count(px, 0)
		if have >= samples {
			continue
		}
		want := samples - have

		rng := pixelRNG(px, py, have)
		fx := (float64(px) + 0.5) / float64(width)
		row.Record(px, 0, t.sample(s, fx, fy, want, rng), want)
		added += want
	}
	return added
}

// Render draws the scene at dpi pixels per unit of screen extent and saves the
// result to filename, which may be a local path or a gs://bucket/object URL.
// The image format follows the file extension.
func (s *Scene) Render(ctx context.Context, filename string, dpi float64, opts RenderOptions) error {
	tracer := otel.Tracer("row-major/pathtracer/scene")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Scene.Render")
	defer span.End()

	span.SetAttributes(attribute.String("filename", filename), attribute.Float64("dpi", dpi))

	ctx, err := tag.New(ctx, tag.Insert(outputKey, filename))
	if err != nil {
		return newRenderError("render", filename, fmt.Errorf("while tagging context: %w", err))
	}
	stats.Record(ctx, rendersStarted.M(1))

	width, height := s.Dimensions(dpi)
	if width <= 0 || height <= 0 {
		return newRenderError("render", filename, fmt.Errorf("dpi %v gives an empty %dx%d image", dpi, width, height))
	}

	im := radiance.New(width, height)
	im.Bounces = opts.Bounces
	if err := s.RenderImage(ctx, im, opts); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return newRenderError("render", filename, err)
	}

	buf := im.Resolve()
	if err := imageio.Save(ctx, filename, buf, opts.StorageOptions...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if imageio.IsEncodeError(err) {
			return newRenderError("encode", filename, err)
		}
		return newRenderError("save", filename, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
