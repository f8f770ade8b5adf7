// Package executor runs a job's steps in order inside one execution environment.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultTeardownTimeout bounds how long releasing the environment may take.
const DefaultTeardownTimeout = 30 * time.Second

// Executor drives a job through Pending, Provisioning, Running(i) and finally
// Completed or Aborted(i). Steps run strictly in order; the first failing
// command step aborts the job. Cache steps never abort it.
type Executor struct {
	provisioner ports.Provisioner
	runner      ports.StepRunner
	resolver    ports.KeyResolver
	cache       ports.CacheStore
	tracer      ports.Tracer
	telemetry   ports.Telemetry
	logger      ports.Logger

	teardownTimeout time.Duration
	stepTimeout     time.Duration
	newRunID        func() string
	now             func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithStepTimeout sets the timeout applied to command steps that do not
// declare one. Zero disables it.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Executor) { e.stepTimeout = d }
}

// WithTeardownTimeout bounds environment teardown.
func WithTeardownTimeout(d time.Duration) Option {
	return func(e *Executor) { e.teardownTimeout = d }
}

// WithTracer replaces the tracer spans are reported to.
func WithTracer(t ports.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// WithRunID overrides run ID generation.
func WithRunID(fn func() string) Option {
	return func(e *Executor) { e.newRunID = fn }
}

// New creates an Executor.
func New(
	provisioner ports.Provisioner,
	runner ports.StepRunner,
	resolver ports.KeyResolver,
	cache ports.CacheStore,
	tracer ports.Tracer,
	telemetry ports.Telemetry,
	logger ports.Logger,
	opts ...Option,
) *Executor {
	e := &Executor{
		provisioner:     provisioner,
		runner:          runner,
		resolver:        resolver,
		cache:           cache,
		tracer:          tracer,
		telemetry:       telemetry,
		logger:          logger,
		teardownTimeout: DefaultTeardownTimeout,
		newRunID:        uuid.NewString,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// With returns a copy of e with opts applied.
func (e *Executor) With(opts ...Option) *Executor {
	c := *e
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Run executes job and returns its result. It never returns nil and never
// retries. A nil renderer discards progress events.
func (e *Executor) Run(ctx context.Context, job *domain.Job, renderer ports.Renderer) *domain.JobResult {
	if renderer == nil {
		renderer = nopRenderer{}
	}
	rs := e.newRunState(job, renderer)

	ctx, span := e.tracer.Start(ctx, "job "+job.Name(),
		ports.WithAttribute("job.name", job.Name()),
		ports.WithAttribute("run.id", rs.result.RunID),
	)
	defer span.End()

	names := make([]string, 0, job.Len())
	for _, s := range job.Steps() {
		names = append(names, s.DisplayName())
	}
	e.tracer.EmitPlan(ctx, names)
	renderer.OnJobStart(job, rs.result.RunID)

	rs.execute(ctx)

	rs.result.State = rs.state
	rs.result.Finished = e.now()
	span.SetAttribute("job.status", string(rs.result.Status))
	if !rs.result.Passed() {
		span.SetAttribute("job.reason", string(rs.result.Reason))
		span.RecordError(rs.result.Err)
	}
	renderer.OnJobComplete(rs.result)
	return rs.result
}

type runState struct {
	e        *Executor
	job      *domain.Job
	renderer ports.Renderer
	state    domain.JobState
	result   *domain.JobResult
	env      ports.Environment
	vars     []string
}

func (e *Executor) newRunState(job *domain.Job, renderer ports.Renderer) *runState {
	runID := e.newRunID()
	return &runState{
		e:        e,
		job:      job,
		renderer: renderer,
		state:    domain.NewJobState(),
		result: &domain.JobResult{
			RunID:    runID,
			JobName:  job.Name(),
			Status:   domain.JobStatusPassed,
			FailedAt: -1,
			Steps:    make([]domain.StepOutcome, 0, job.Len()),
			Started:  e.now(),
		},
		vars: []string{
			"CI=true",
			"RIG=true",
			"RIG_JOB_NAME=" + job.Name(),
			"RIG_RUN_ID=" + runID,
		},
	}
}

func (rs *runState) execute(ctx context.Context) {
	rs.move(rs.state.Provision())

	env, err := rs.provision(ctx)
	if err != nil {
		rs.fail(domain.FailureEnvironment, -1, err)
		rs.skipFrom(0)
		return
	}
	rs.env = env
	defer rs.teardown(ctx)

	for i, step := range rs.job.Steps() {
		if ctx.Err() != nil {
			rs.fail(domain.FailureCanceled, -1, errors.Join(domain.ErrJobCanceled, ctx.Err()))
			rs.skipFrom(i)
			return
		}

		rs.move(rs.state.Run(i))
		outcome := rs.runStep(ctx, i, step)
		rs.result.Steps = append(rs.result.Steps, outcome)

		if outcome.Status == domain.StepStatusFailed {
			reason := domain.FailureCommand
			if errors.Is(outcome.Err, domain.ErrJobCanceled) {
				reason = domain.FailureCanceled
			}
			rs.fail(reason, i, errors.Join(domain.ErrJobFailed,
				zerr.With(zerr.With(outcome.Err, "step", outcome.Name), "step_index", i)))
			rs.skipFrom(i + 1)
			return
		}
	}

	rs.move(rs.state.Complete())
}

func (rs *runState) provision(ctx context.Context) (ports.Environment, error) {
	spec := rs.job.Environment()
	vctx, vertex := rs.e.telemetry.Record(ctx, "provision "+spec.Image, ports.Internal())
	ctx, span := rs.e.tracer.Start(vctx, "provision", ports.WithAttribute("image", spec.Image))
	defer span.End()

	env, err := rs.e.provisioner.Provision(ctx, spec)
	if err != nil && !errors.Is(err, domain.ErrEnvironmentProvisionFailed) {
		err = errors.Join(domain.ErrEnvironmentProvisionFailed, err)
	}
	span.RecordError(err)
	vertex.Complete(err)
	return env, err
}

// teardown releases the environment with a context that survives
// cancellation of ctx but is bounded by the teardown timeout.
func (rs *runState) teardown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rs.e.teardownTimeout)
	defer cancel()

	_, vertex := rs.e.telemetry.Record(ctx, "teardown", ports.Internal())
	err := rs.env.Close(ctx)
	vertex.Complete(err)
	if err != nil {
		rs.e.logger.Error(zerr.Wrap(err, "environment teardown failed"))
		rs.result.Err = errors.Join(rs.result.Err, err)
	}
}

func (rs *runState) move(next domain.JobState, err error) {
	if err != nil {
		rs.e.logger.Error(err)
		return
	}
	rs.state = next
}

func (rs *runState) fail(reason domain.FailureReason, index int, err error) {
	rs.move(rs.state.Abort())
	rs.result.Status = domain.JobStatusFailed
	rs.result.Reason = reason
	rs.result.FailedAt = index
	rs.result.Err = errors.Join(rs.result.Err, err)
}

// skipFrom records every step from index on as skipped.
func (rs *runState) skipFrom(index int) {
	for i := index; i < rs.job.Len(); i++ {
		step := rs.job.Step(i)
		outcome := domain.StepOutcome{
			Index:  i,
			Name:   step.DisplayName(),
			Kind:   step.Kind(),
			Status: domain.StepStatusSkipped,
		}
		rs.result.Steps = append(rs.result.Steps, outcome)
		rs.renderer.OnStepComplete(outcome)
	}
}

func (rs *runState) runStep(ctx context.Context, index int, step domain.Step) domain.StepOutcome {
	name := step.DisplayName()
	ctx, span := rs.e.tracer.Start(ctx, name,
		ports.WithAttribute("step.index", index),
		ports.WithAttribute("step.kind", string(step.Kind())),
	)
	defer span.End()
	ctx, vertex := rs.e.telemetry.Record(ctx, name)

	rs.renderer.OnStepStart(index, step)
	start := rs.e.now()

	var outcome domain.StepOutcome
	switch s := step.(type) {
	case domain.CommandStep:
		outcome = rs.runCommand(ctx, index, s, span, vertex)
	case domain.RestoreCacheStep:
		outcome = rs.restore(ctx, s, vertex)
	case domain.SaveCacheStep:
		outcome = rs.save(ctx, s)
	default:
		outcome = domain.StepOutcome{
			Status: domain.StepStatusFailed,
			Err:    zerr.With(zerr.Wrap(domain.ErrUnknownStepType, "cannot run step"), "step_type", fmt.Sprintf("%T", step)),
		}
	}

	outcome.Index = index
	outcome.Name = name
	outcome.Kind = step.Kind()
	outcome.Duration = rs.e.now().Sub(start)

	span.SetAttribute("step.status", string(outcome.Status))
	if outcome.CacheKey != "" {
		span.SetAttribute("cache.key", outcome.CacheKey.String())
	}
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
	}
	if outcome.Status == domain.StepStatusPassed {
		vertex.Complete(nil)
	} else {
		vertex.Complete(outcome.Err)
	}

	rs.renderer.OnStepComplete(outcome)
	return outcome
}

func (rs *runState) runCommand(
	ctx context.Context, index int, step domain.CommandStep, span ports.Span, vertex ports.Vertex,
) domain.StepOutcome {
	if step.Timeout == 0 {
		step.Timeout = rs.e.stepTimeout
	}

	vars := append(append([]string{}, rs.vars...), "RIG_STEP_INDEX="+strconv.Itoa(index))
	out := io.MultiWriter(stepLog{renderer: rs.renderer, index: index}, span, vertex.Stdout())
	res := rs.e.runner.Run(ctx, rs.env, step, vars, out)

	span.SetAttribute("exit_code", res.ExitCode)
	outcome := domain.StepOutcome{
		ExitCode: res.ExitCode,
		Output:   res.Output,
		TimedOut: res.TimedOut,
		Err:      res.Err,
		Status:   domain.StepStatusPassed,
	}
	if !res.Succeeded() {
		outcome.Status = domain.StepStatusFailed
		if outcome.Err == nil {
			outcome.Err = zerr.With(zerr.Wrap(domain.ErrCommandFailed, "command failed"), "exit_code", res.ExitCode)
		}
	}
	return outcome
}

// restore tries each key in order and stops at the first hit. A key that
// cannot be resolved is skipped so later fallback keys still get a chance; a
// store failure ends the step.
func (rs *runState) restore(ctx context.Context, step domain.RestoreCacheStep, vertex ports.Vertex) domain.StepOutcome {
	outcome := domain.StepOutcome{Status: domain.StepStatusPassed, Cache: domain.CacheOutcomeMiss}

	var resolveErrs error
	for _, tmpl := range step.Keys {
		key, err := rs.e.resolver.Resolve(tmpl, rs.env)
		if err != nil {
			resolveErrs = errors.Join(resolveErrs, zerr.With(err, "template", tmpl.String()))
			continue
		}
		if outcome.CacheKey == "" {
			outcome.CacheKey = key
		}

		result, err := rs.e.cache.Restore(ctx, key, rs.env)
		if err != nil {
			return degraded(outcome.CacheKey, err)
		}
		if result == domain.RestoreHit {
			vertex.Cached()
			outcome.CacheKey = key
			outcome.Cache = domain.CacheOutcomeHit
			return outcome
		}
	}

	if resolveErrs != nil {
		return degraded(outcome.CacheKey, resolveErrs)
	}
	rs.e.logger.Info(fmt.Sprintf("no cache found for %s", outcome.CacheKey))
	return outcome
}

func (rs *runState) save(ctx context.Context, step domain.SaveCacheStep) domain.StepOutcome {
	key, err := rs.e.resolver.Resolve(step.Key, rs.env)
	if err != nil {
		return degraded("", zerr.With(err, "template", step.Key.String()))
	}
	if err := rs.e.cache.Save(ctx, key, step.Paths, rs.env); err != nil {
		return degraded(key, err)
	}
	return domain.StepOutcome{Status: domain.StepStatusPassed, Cache: domain.CacheOutcomeSaved, CacheKey: key}
}

func degraded(key domain.CacheKey, err error) domain.StepOutcome {
	return domain.StepOutcome{
		Status:   domain.StepStatusDegraded,
		Cache:    domain.CacheOutcomeError,
		CacheKey: key,
		Err:      err,
	}
}

// stepLog forwards command output to the renderer.
type stepLog struct {
	renderer ports.Renderer
	index    int
}

func (w stepLog) Write(p []byte) (int, error) {
	w.renderer.OnStepLog(w.index, append([]byte(nil), p...))
	return len(p), nil
}

type nopRenderer struct{}

func (nopRenderer) OnJobStart(*domain.Job, string) {}
func (nopRenderer) OnStepStart(int, domain.Step) {}
func (nopRenderer) OnStepLog(int, []byte) {}
func (nopRenderer) OnStepComplete(domain.StepOutcome) {}
func (nopRenderer) OnJobComplete(*domain.JobResult) {}
