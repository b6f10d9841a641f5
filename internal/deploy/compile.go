package deploy

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"

	"github.com/reviewapps-dev/wfpack/internal/artifact"
	"github.com/reviewapps-dev/wfpack/internal/build"
	"github.com/reviewapps-dev/wfpack/internal/config"
	"github.com/reviewapps-dev/wfpack/internal/failure"
	"github.com/reviewapps-dev/wfpack/internal/logging"
	"github.com/reviewapps-dev/wfpack/internal/logstream"
)

// Options describe one compile invocation.
type Options struct {
	BuildDir string
	CacheDir string
	EnvDir   string
	Config   *config.Config

	// Out receives the build output. Defaults to os.Stdout.
	Out io.Writer
	// Hub, when set, gets every output line published under the build ID.
	// The build's stream is closed on the hub when Compile returns.
	Hub *logstream.Hub
	// BuildID overrides the generated build ID.
	BuildID string

	Clock      clockwork.Clock
	HTTPClient *http.Client
}

// Result is what a finished compile leaves behind.
type Result struct {
	Record *build.Record
	Output string
}

// Compile runs the default pipeline over opts.BuildDir. The build record is
// returned whether or not the build succeeded.
func Compile(ctx context.Context, opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	buildDir, err := filepath.Abs(opts.BuildDir)
	if err != nil {
		return nil, failure.Configuration("build dir: %v", err)
	}
	if info, err := os.Stat(buildDir); err != nil || !info.IsDir() {
		return nil, failure.Configuration("build dir %s does not exist", buildDir)
	}
	if opts.CacheDir == "" {
		return nil, failure.Configuration("cache dir is required")
	}

	trackerOpts := []build.Option{build.WithClock(clock)}
	if opts.BuildID != "" {
		trackerOpts = append(trackerOpts, build.WithID(opts.BuildID))
	}
	tracker, err := build.NewTracker(RecordPath(cfg, buildDir), trackerOpts...)
	if err != nil {
		return nil, failure.Configuration("%v", err)
	}

	hub := opts.Hub
	if hub != nil {
		defer hub.Close(tracker.ID())
	}
	logger := logging.NewBuildLogger(tracker.ID(), out, func(buildID, line string) {
		tracker.AppendLog(line)
		if hub != nil {
			hub.Publish(buildID, line)
		}
	})

	cacheOpts := []artifact.Option{artifact.WithClock(clock)}
	if opts.HTTPClient != nil {
		cacheOpts = append(cacheOpts, artifact.WithHTTPClient(opts.HTTPClient))
	}
	cache := artifact.New(opts.CacheDir, artifact.NewTemplateSource(cfg.Sources, cfg.Stack), cacheOpts...)

	sc := &StepContext{
		Config:   cfg,
		Logger:   logger,
		Tracker:  tracker,
		Cache:    cache,
		BuildDir: buildDir,
		EnvDir:   opts.EnvDir,
	}

	runErr := NewPipeline(DefaultSteps()...).Run(ctx, sc)

	// Flush the retained log lines into the record.
	_ = tracker.Update(func(*build.Record) {})

	rec := tracker.Snapshot()
	return &Result{Record: &rec, Output: logger.Output()}, runErr
}

// RecordPath is where a build's record is kept inside buildDir.
func RecordPath(cfg *config.Config, buildDir string) string {
	return filepath.Join(joinBuild(buildDir, cfg.Install.StateDir), build.RecordFile)
}

// EnvPath is where the configured environment is kept inside buildDir.
func EnvPath(cfg *config.Config, buildDir string) string {
	return filepath.Join(joinBuild(buildDir, cfg.Install.StateDir), EnvFile)
}
