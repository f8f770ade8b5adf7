package linear_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/rig/internal/adapters/linear"
	"go.trai.ch/rig/internal/core/domain"
)

func testJob(t *testing.T) *domain.Job {
	t.Helper()
	key := domain.MustParseKeyTemplate(`rust-{{ checksum "Cargo.lock" }}.0`)
	job, err := domain.NewJob(domain.JobConfig{
		Name:  "build",
		Image: "rust:1.70",
		Steps: []domain.Step{
			domain.CommandStep{Command: "echo ok"},
			domain.RestoreCacheStep{Keys: []domain.KeyTemplate{key}},
			domain.CommandStep{Name: "Build", Command: "cargo build"},
			domain.SaveCacheStep{Key: key, Paths: []string{"target"}},
		},
	})
	require.NoError(t, err)
	return job
}

func newRenderer(t *testing.T) (*linear.Renderer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	return linear.NewRenderer(&buf, &buf), &buf
}

func outcome(index int, name string, kind domain.StepKind, status domain.StepStatus, d time.Duration) domain.StepOutcome {
	return domain.StepOutcome{Index: index, Name: name, Kind: kind, Status: status, Duration: d}
}

func TestRenderer_PassedJob(t *testing.T) {
	r, buf := newRenderer(t)
	job := testJob(t)
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	r.OnJobStart(job, "run-1")

	r.OnStepStart(0, job.Step(0))
	r.OnStepLog(0, []byte("ok\n"))
	echo := outcome(0, "echo ok", domain.StepKindRun, domain.StepStatusPassed, 12*time.Millisecond)
	r.OnStepComplete(echo)

	r.OnStepStart(1, job.Step(1))
	restore := outcome(1, "Restoring cache", domain.StepKindRestoreCache, domain.StepStatusPassed, 3*time.Millisecond)
	restore.Cache = domain.CacheOutcomeMiss
	restore.CacheKey = "rust-abc.0"
	r.OnStepComplete(restore)

	r.OnStepStart(2, job.Step(2))
	r.OnStepLog(2, []byte("Compiling app\nFini"))
	r.OnStepLog(2, []byte("shed"))
	build := outcome(2, "Build", domain.StepKindRun, domain.StepStatusPassed, 1500*time.Millisecond)
	r.OnStepComplete(build)

	r.OnStepStart(3, job.Step(3))
	save := outcome(3, "Saving cache", domain.StepKindSaveCache, domain.StepStatusDegraded, 250*time.Millisecond)
	save.Cache = domain.CacheOutcomeError
	save.Err = errors.New("upload failed: connection refused")
	r.OnStepComplete(save)

	r.OnJobComplete(&domain.JobResult{
		RunID:    "run-1",
		JobName:  "build",
		Status:   domain.JobStatusPassed,
		FailedAt: -1,
		Steps:    []domain.StepOutcome{echo, restore, build, save},
		Started:  started,
		Finished: started.Add(2 * time.Second),
	})

	g := goldie.New(t)
	g.Assert(t, "passed_job", buf.Bytes())
}

func TestRenderer_FailedJob(t *testing.T) {
	r, buf := newRenderer(t)
	job := testJob(t)
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	r.OnJobStart(job, "run-2")

	r.OnStepStart(0, job.Step(0))
	r.OnStepLog(0, []byte("ok\n"))
	echo := outcome(0, "echo ok", domain.StepKindRun, domain.StepStatusPassed, 12*time.Millisecond)
	r.OnStepComplete(echo)

	r.OnStepStart(1, job.Step(1))
	restore := outcome(1, "Restoring cache", domain.StepKindRestoreCache, domain.StepStatusPassed, 4*time.Millisecond)
	restore.Cache = domain.CacheOutcomeHit
	restore.CacheKey = "rust-abc.0"
	r.OnStepComplete(restore)

	r.OnStepStart(2, job.Step(2))
	r.OnStepLog(2, []byte("error: boom\n"))
	build := outcome(2, "Build", domain.StepKindRun, domain.StepStatusFailed, 800*time.Millisecond)
	build.ExitCode = 101
	r.OnStepComplete(build)

	save := outcome(3, "Saving cache", domain.StepKindSaveCache, domain.StepStatusSkipped, 0)
	r.OnStepComplete(save)

	r.OnJobComplete(&domain.JobResult{
		RunID:    "run-2",
		JobName:  "build",
		Status:   domain.JobStatusFailed,
		Reason:   domain.FailureCommand,
		FailedAt: 2,
		Steps:    []domain.StepOutcome{echo, restore, build, save},
		Started:  started,
		Finished: started.Add(time.Second),
	})

	g := goldie.New(t)
	g.Assert(t, "failed_job", buf.Bytes())
}

func TestRenderer_TimedOut(t *testing.T) {
	r, buf := newRenderer(t)
	job := testJob(t)

	r.OnStepStart(2, job.Step(2))
	o := outcome(2, "Build", domain.StepKindRun, domain.StepStatusFailed, 30*time.Second)
	o.TimedOut = true
	o.ExitCode = -1
	r.OnStepComplete(o)

	assert.Contains(t, buf.String(), "[Build] ✗ Timed out after 30s")
}

func TestRenderer_EnvironmentError(t *testing.T) {
	r, buf := newRenderer(t)

	r.OnJobComplete(&domain.JobResult{
		JobName:  "build",
		Status:   domain.JobStatusFailed,
		Reason:   domain.FailureEnvironment,
		FailedAt: -1,
		Err:      errors.New("image not found\nmore detail"),
	})

	out := buf.String()
	assert.Contains(t, out, "Job build failed after 0s (environment_error)")
	assert.Contains(t, out, "→ image not found")
	assert.NotContains(t, out, "more detail")
}

func TestRenderer_LogForUnknownStep(t *testing.T) {
	r, buf := newRenderer(t)
	r.OnStepLog(7, []byte("ignored\n"))
	assert.Empty(t, buf.String())
}

func TestRenderer_Color(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	r := linear.NewRenderer(&buf, &buf)

	r.OnStepComplete(outcome(0, "x", domain.StepKindRun, domain.StepStatusPassed, time.Second))
	assert.True(t, strings.Contains(buf.String(), "\x1b["))
}
