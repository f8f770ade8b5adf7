// Package app implements the application layer for rig.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"go.trai.ch/rig/internal/adapters/httpstore"
	"go.trai.ch/rig/internal/adapters/linear"
	"go.trai.ch/rig/internal/adapters/telemetry"
	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/rig/internal/engine/executor"
	"go.trai.ch/zerr"
)

const (
	serverReadHeaderTimeout = 10 * time.Second
	serverShutdownTimeout   = 5 * time.Second
)

// App represents the main application logic.
type App struct {
	loader      ports.JobLoader
	executor    *executor.Executor
	resolver    ports.KeyResolver
	blobs       ports.BlobStore
	provisioner ports.Provisioner
	telemetry   ports.Telemetry
	logger      ports.Logger
	renderer    ports.Renderer
	stdout      io.Writer
}

// New creates a new App instance. The provisioner is used to map paths when
// resolving keys outside a run, so it should be a host-side one.
func New(
	loader ports.JobLoader,
	exec *executor.Executor,
	resolver ports.KeyResolver,
	blobs ports.BlobStore,
	provisioner ports.Provisioner,
	tel ports.Telemetry,
	log ports.Logger,
) *App {
	return &App{
		loader:      loader,
		executor:    exec,
		resolver:    resolver,
		blobs:       blobs,
		provisioner: provisioner,
		telemetry:   tel,
		logger:      log,
		stdout:      os.Stdout,
	}
}

// WithOutput sends command output to stdout and job progress to a linear
// renderer over stdout and stderr.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.renderer = linear.NewRenderer(stdout, stderr)
	return a
}

// WithRenderer replaces the progress renderer.
func (a *App) WithRenderer(r ports.Renderer) *App {
	a.renderer = r
	return a
}

// RunOptions configuration for the Run method.
type RunOptions struct {
	JobFile     string
	StepTimeout time.Duration
	ReportPath  string
	TracePath   string
}

// Run loads the job file and executes it once. A job that does not pass
// yields an error wrapping domain.ErrJobFailed; the renderer has already
// reported it by then.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	job, err := a.loader.Load(jobFile(opts.JobFile))
	if err != nil {
		return zerr.Wrap(err, "failed to load job")
	}

	var execOpts []executor.Option
	if opts.StepTimeout > 0 {
		execOpts = append(execOpts, executor.WithStepTimeout(opts.StepTimeout))
	}
	if opts.TracePath != "" {
		tracer, shutdown, err := setupTracing(opts.TracePath)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				a.logger.Error(zerr.Wrap(err, "failed to flush trace"))
			}
		}()
		execOpts = append(execOpts, executor.WithTracer(tracer))
	}

	defer a.closeTelemetry()

	result := a.executor.With(execOpts...).Run(ctx, job, a.renderer)

	if opts.ReportPath != "" {
		if err := WriteReport(opts.ReportPath, result); err != nil {
			a.logger.Error(err)
		}
	}

	if !result.Passed() {
		return errors.Join(domain.ErrJobFailed, result.Err)
	}
	return nil
}

// Validate loads the job file and prints its plan.
func (a *App) Validate(_ context.Context, path string) error {
	job, err := a.loader.Load(jobFile(path))
	if err != nil {
		return zerr.Wrap(err, "failed to load job")
	}

	env := job.Environment()
	_, _ = fmt.Fprintf(a.stdout, "job %s is valid (image %s, %d steps)\n", job.Name(), env.Image, job.Len())
	for i, step := range job.Steps() {
		_, _ = fmt.Fprintf(a.stdout, "  %d. %-13s %s\n", i+1, step.Kind(), describe(step))
	}
	return nil
}

// CacheKeys resolves key templates against the workspace and prints one key
// per line. With no templates, every cache step of the job is resolved.
func (a *App) CacheKeys(ctx context.Context, path string, templates []string) error {
	job, err := a.loader.Load(jobFile(path))
	if err != nil {
		return zerr.Wrap(err, "failed to load job")
	}

	var tmpls []domain.KeyTemplate
	if len(templates) == 0 {
		tmpls = jobTemplates(job)
	}
	for _, raw := range templates {
		tmpl, err := domain.ParseKeyTemplate(raw)
		if err != nil {
			return err
		}
		tmpls = append(tmpls, tmpl)
	}

	env, err := a.provisioner.Provision(ctx, job.Environment())
	if err != nil {
		return err
	}
	defer func() { _ = env.Close(context.WithoutCancel(ctx)) }()

	var errs error
	for _, tmpl := range tmpls {
		key, err := a.resolver.Resolve(tmpl, env)
		if err != nil {
			errs = errors.Join(errs, zerr.With(err, "template", tmpl.String()))
			continue
		}
		_, _ = fmt.Fprintf(a.stdout, "%s\t%s\n", key, tmpl)
	}
	return errs
}

// ServeCache exposes the configured blob store over HTTP until ctx is done.
func (a *App) ServeCache(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpstore.NewServer(a.blobs, a.logger),
		ReadHeaderTimeout: serverReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("serving cache on " + addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return zerr.With(zerr.Wrap(err, "cache server failed"), "addr", addr)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

func (a *App) closeTelemetry() {
	c, ok := a.telemetry.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		a.logger.Warn("failed to close progress recorder: " + err.Error())
	}
}

// setupTracing registers a tracer provider that writes finished spans as JSON
// lines to path.
func setupTracing(path string) (ports.Tracer, func(context.Context) error, error) {
	f, err := os.Create(path) //nolint:gosec // Path is provided by the user
	if err != nil {
		return nil, nil, zerr.With(zerr.Wrap(err, "failed to create trace file"), "path", path)
	}

	tp := telemetry.NewProvider(telemetry.NewSpanLog(f))
	otel.SetTracerProvider(tp)

	shutdown := func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), f.Close())
	}
	return telemetry.NewOTelTracerFrom(tp, telemetry.InstrumentationName), shutdown, nil
}

func jobFile(path string) string {
	if path == "" {
		return domain.JobFileName
	}
	return path
}

func jobTemplates(job *domain.Job) []domain.KeyTemplate {
	var out []domain.KeyTemplate
	for _, step := range job.Steps() {
		switch s := step.(type) {
		case domain.RestoreCacheStep:
			out = append(out, s.Keys...)
		case domain.SaveCacheStep:
			out = append(out, s.Key)
		}
	}
	return out
}

func describe(step domain.Step) string {
	switch s := step.(type) {
	case domain.CommandStep:
		desc := s.DisplayName()
		if s.Timeout > 0 {
			desc += fmt.Sprintf(" (timeout %s)", s.Timeout)
		}
		return desc
	case domain.RestoreCacheStep:
		keys := make([]string, 0, len(s.Keys))
		for _, k := range s.Keys {
			keys = append(keys, k.String())
		}
		return strings.Join(keys, ", ")
	case domain.SaveCacheStep:
		return fmt.Sprintf("%s <- %s", s.Key, strings.Join(s.Paths, ", "))
	default:
		return step.DisplayName()
	}
}
