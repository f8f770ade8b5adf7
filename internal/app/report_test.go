package app_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go.trai.ch/rig/internal/app"
	"go.trai.ch/rig/internal/core/domain"
)

func TestNewReport(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	res := &domain.JobResult{
		RunID:    "run-1",
		JobName:  "build",
		Status:   domain.JobStatusPassed,
		FailedAt: -1,
		State:    domain.JobState{Phase: domain.PhaseCompleted, Step: 1},
		Started:  start,
		Finished: start.Add(1500 * time.Millisecond),
		Steps: []domain.StepOutcome{
			{Index: 0, Name: "echo ok", Kind: domain.StepKindRun, Status: domain.StepStatusPassed, Duration: time.Second},
			{
				Index:    1,
				Name:     "save_cache",
				Kind:     domain.StepKindSaveCache,
				Status:   domain.StepStatusDegraded,
				Cache:    domain.CacheOutcomeError,
				CacheKey: "k",
				Err:      errors.New("bucket unreachable"),
			},
		},
	}

	rep := app.NewReport(res)

	assert.Equal(t, "passed", rep.Status)
	assert.Empty(t, rep.Reason)
	assert.Equal(t, "completed", rep.State)
	assert.True(t, rep.Degraded)
	assert.Equal(t, int64(1500), rep.DurationMS)
	assert.Equal(t, int64(1000), rep.Steps[0].DurationMS)
	assert.Equal(t, "run", rep.Steps[0].Kind)
	assert.Equal(t, "error", rep.Steps[1].Cache)
	assert.Equal(t, "bucket unreachable", rep.Steps[1].Error)
}
