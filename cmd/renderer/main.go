// renderer path-traces a scene description into an image.
//
// With -accumulation, the raw radiance samples are kept in a sample DB next to
// the image.  Re-running with -resume tops the DB up to the requested sample
// count instead of starting over, and an interrupted render checkpoints what it
// has finished.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"row-major/pathtracer/imageio"
	"row-major/pathtracer/radiance"
	"row-major/pathtracer/scene"
	"row-major/pathtracer/scenefile"

	"cloud.google.com/go/profiler"
	"contrib.go.opencensus.io/exporter/stackdriver"
	cloudtrace "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/golang/glog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/api/option"
)

var (
	sceneFile = flag.String("scene", "", "Scene description, YAML or JSON")
	output    = flag.String("output", "output.png", "Output image, a local path or gs://bucket/object.  The format follows the extension (.png, .jpg, .jpeg).")

	dpi     = flag.Float64("dpi", 0, "Pixels per unit of screen extent.  Overrides the scene file when positive.")
	samples = flag.Int("samples", 0, "Light paths per pixel.  Overrides the scene file when positive.")
	bounces = flag.Int("bounces", 0, "Maximum light path length.  Overrides the scene file when positive.")
	workers = flag.Int("workers", 0, "Rows rendered concurrently; 0 means one per CPU")

	accumulation            = flag.String("accumulation", "", "Radiance sample DB to keep alongside the image")
	accumulationCompression = flag.String("accumulation-compression", "zlib", "Sample DB compression: zlib or snappy")
	resume                  = flag.Bool("resume", false, "Should we re-open the sample DB to add more samples?")

	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
	memprofile = flag.String("memprofile", "", "write memory profile to `file`")

	enableProfiling      = flag.Bool("enable-profiling", false, "Enable Cloud Profiler?")
	enableMetrics        = flag.Bool("enable-metrics", false, "Export render metrics to Cloud Monitoring?")
	monitoring           = flag.Bool("monitoring", false, "Export traces to Cloud Trace?")
	monitoringProject    = flag.String("monitoring-project", "", "Override project used for monitoring integration.  If not specified, the project associated with Application Default Credentials is used.")
	monitoringTraceRatio = flag.Float64("monitoring-trace-ratio", 1, "What ratio of traces should be exported?")

	gcsCredentialsFile = flag.String("gcs-credentials-file", "", "Service account key for gs:// outputs.  If not specified, Application Default Credentials are used.")
)

func main() {
	flag.Parse()

	glog.CopyStandardLogTo("INFO")
	defer glog.Flush()

	glog.Infof("flags:")
	glog.Infof("scene: %q", *sceneFile)
	glog.Infof("output: %q", *output)
	glog.Infof("accumulation: %q", *accumulation)
	glog.Infof("resume: %v", *resume)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Cloud Profiler initialization, best done as early as possible.
	if *enableProfiling {
		if err := profiler.Start(profiler.Config{
			Service:        "pathtracer-renderer",
			ServiceVersion: "0.0.1",
			ProjectID:      *monitoringProject,
		}); err != nil {
			glog.Fatalf("Error initializing profiler: %v", err)
		}
	}

	if *monitoring {
		traceOpts := []cloudtrace.Option{}
		if *monitoringProject != "" {
			traceOpts = append(traceOpts, cloudtrace.WithProjectID(*monitoringProject))
		}

		_, traceShutdown, err := cloudtrace.InstallNewPipeline(traceOpts, sdktrace.WithSampler(sdktrace.TraceIDRatioBased(*monitoringTraceRatio)))
		if err != nil {
			glog.Fatalf("Failed to install Cloud Trace OpenTelemetry trace pipeline: %v", err)
		}
		defer traceShutdown()
	}

	if *enableMetrics {
		if err := scene.RegisterViews(); err != nil {
			glog.Fatalf("Error registering metric views: %v", err)
		}

		exporter, err := stackdriver.NewExporter(stackdriver.Options{
			ProjectID:         *monitoringProject,
			MetricPrefix:      "pathtracer",
			ReportingInterval: 60 * time.Second,
		})
		if err != nil {
			glog.Fatalf("Error initializing metrics exporter: %v", err)
		}
		if err := exporter.StartMetricsExporter(); err != nil {
			glog.Fatalf("Error starting metrics exporter: %v", err)
		}
		defer exporter.Flush()
		defer exporter.StopMetricsExporter()
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			glog.Fatalf("could not create CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			glog.Fatalf("could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	if err := do(ctx); err != nil {
		glog.Fatalf("Error: %v", err)
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			glog.Fatalf("could not create memory profile: %v", err)
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			glog.Fatalf("could not write memory profile: %v", err)
		}
	}
}

// settings are the render parameters after flags override the scene file.
type settings struct {
	dpi     float64
	samples int
	bounces int
}

func resolveSettings(f *scenefile.File) settings {
	s := settings{
		dpi:     f.Render.DPI,
		samples: f.Render.Samples,
		bounces: f.Render.Bounces,
	}
	if *dpi > 0 {
		s.dpi = *dpi
	}
	if *samples > 0 {
		s.samples = *samples
	}
	if *bounces > 0 {
		s.bounces = *bounces
	}
	return s
}

func do(ctx context.Context) error {
	if *sceneFile == "" {
		return fmt.Errorf("-scene is required")
	}

	desc, err := scenefile.Load(ctx, *sceneFile)
	if err != nil {
		return fmt.Errorf("while loading scene: %w", err)
	}
	sc, err := desc.Build()
	if err != nil {
		return fmt.Errorf("while building scene: %w", err)
	}
	set := resolveSettings(desc)

	width, height := sc.Dimensions(set.dpi)
	glog.Infof("Rendering %d things at %dx%d, %d samples, %d bounces", len(sc.Things()), width, height, set.samples, set.bounces)

	progress := newProgressReporter()
	opts := scene.RenderOptions{
		Samples:  set.samples,
		Bounces:  set.bounces,
		Workers:  *workers,
		Policy:   desc.Policy(),
		Progress: progress.Report,
	}
	if *gcsCredentialsFile != "" {
		opts.StorageOptions = append(opts.StorageOptions, option.WithCredentialsFile(*gcsCredentialsFile))
	}

	if *accumulation == "" {
		if *resume {
			return fmt.Errorf("resumption requested, but no -accumulation file given")
		}
		err := sc.Render(ctx, *output, set.dpi, opts)
		progress.Done()
		return err
	}

	compression, err := radiance.ParseCompression(*accumulationCompression)
	if err != nil {
		return err
	}

	sampleDB, err := openSampleDB(width, height, set.bounces)
	if err != nil {
		return err
	}

	renderErr := sc.RenderImage(ctx, sampleDB, opts)
	progress.Done()

	// Save whatever was finished, even when interrupted, so that hours of
	// render time survive a SIGINT.
	if err := radiance.WriteFile(*accumulation, sampleDB, compression); err != nil {
		return fmt.Errorf("while writing sample DB: %w", err)
	}
	if renderErr != nil {
		if errors.Is(renderErr, context.Canceled) {
			glog.Infof("Interrupted; %d samples saved to %s, rerun with -resume to continue", sampleDB.TotalSamples(), *accumulation)
		}
		return fmt.Errorf("while rendering: %w", renderErr)
	}

	if err := imageio.Save(ctx, *output, sampleDB.Resolve(), opts.StorageOptions...); err != nil {
		return fmt.Errorf("while saving image: %w", err)
	}
	glog.Infof("Wrote %s", *output)

	return nil
}

func openSampleDB(width, height, bounces int) (*radiance.Image, error) {
	if !*resume {
		// Check that the sample DB doesn't exist, to avoid blowing away hours
		// of render time.
		if _, err := os.Stat(*accumulation); err == nil {
			return nil, fmt.Errorf("resumption not requested, but sample DB %s exists", *accumulation)
		}

		sampleDB := radiance.New(width, height)
		sampleDB.Bounces = bounces
		return sampleDB, nil
	}

	sampleDB, err := radiance.ReadFile(*accumulation)
	if err != nil {
		return nil, fmt.Errorf("resumption requested, but encountered error loading existing sample DB: %w", err)
	}
	if err := sampleDB.CheckCompatible(width, height, bounces); err != nil {
		return nil, fmt.Errorf("resumption requested, but %w", err)
	}
	glog.Infof("Resuming with %d samples already collected", sampleDB.TotalSamples())
	return sampleDB, nil
}
