package domain

import (
	"time"
)

// StepResult is the outcome of running one command.
type StepResult struct {
	ExitCode int
	Output   []byte
	Duration time.Duration
	TimedOut bool
	Canceled bool
	// Err is set when the process could not be started or waited on.
	Err error
}

// Succeeded reports whether the command exited zero without timing out or being canceled.
func (r StepResult) Succeeded() bool {
	return r.ExitCode == 0 && !r.TimedOut && !r.Canceled && r.Err == nil
}

// StepStatus is the per-step status recorded in a JobResult.
type StepStatus string

const (
	// StepStatusPassed means the step completed normally.
	StepStatusPassed StepStatus = "passed"
	// StepStatusFailed means a command step failed and aborted the job.
	StepStatusFailed StepStatus = "failed"
	// StepStatusDegraded means a cache step failed without affecting the job.
	StepStatusDegraded StepStatus = "degraded"
	// StepStatusSkipped means the step never ran because the job had already stopped.
	StepStatusSkipped StepStatus = "skipped"
)

// CacheOutcome describes what a cache step did.
type CacheOutcome string

const (
	// CacheOutcomeNone is used for command steps.
	CacheOutcomeNone CacheOutcome = ""
	// CacheOutcomeHit means a restore found an entry and unpacked it.
	CacheOutcomeHit CacheOutcome = "hit"
	// CacheOutcomeMiss means no entry existed for any of the keys.
	CacheOutcomeMiss CacheOutcome = "miss"
	// CacheOutcomeSaved means a save uploaded an archive.
	CacheOutcomeSaved CacheOutcome = "saved"
	// CacheOutcomeError means the cache operation failed.
	CacheOutcomeError CacheOutcome = "error"
)

// RestoreOutcome is returned by a cache store restore.
type RestoreOutcome int

const (
	// RestoreMiss means no entry exists for the key.
	RestoreMiss RestoreOutcome = iota
	// RestoreHit means the entry was found and unpacked.
	RestoreHit
)

// String returns "hit" or "miss".
func (o RestoreOutcome) String() string {
	if o == RestoreHit {
		return "hit"
	}
	return "miss"
}

// StepOutcome records what happened to one step of a job.
type StepOutcome struct {
	Index    int
	Name     string
	Kind     StepKind
	Status   StepStatus
	ExitCode int
	Output   []byte
	Duration time.Duration
	TimedOut bool
	// CacheKey is the resolved key that was restored or saved.
	CacheKey CacheKey
	Cache    CacheOutcome
	Err      error
}

// JobStatus is the overall result of a job.
type JobStatus string

const (
	// JobStatusPassed means every command step succeeded.
	JobStatusPassed JobStatus = "passed"
	// JobStatusFailed means the job stopped early.
	JobStatusFailed JobStatus = "failed"
)

// FailureReason classifies why a job failed.
type FailureReason string

const (
	// FailureNone is used for passing jobs.
	FailureNone FailureReason = ""
	// FailureCommand means a command step failed or timed out.
	FailureCommand FailureReason = "command_failed"
	// FailureEnvironment means the environment could not be provisioned.
	FailureEnvironment FailureReason = "environment_error"
	// FailureCanceled means the job was interrupted.
	FailureCanceled FailureReason = "canceled"
)

// JobResult is the single report produced by one job run.
type JobResult struct {
	RunID   string
	JobName string
	Status  JobStatus
	Reason  FailureReason
	// FailedAt is the index of the step that stopped the job, or -1.
	FailedAt int
	Steps    []StepOutcome
	// State is the terminal state of the job state machine.
	State    JobState
	Started  time.Time
	Finished time.Time
	Err      error
}

// Passed reports whether the job passed.
func (r *JobResult) Passed() bool {
	return r.Status == JobStatusPassed
}

// Duration returns the wall time of the run.
func (r *JobResult) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Degraded reports whether any cache step failed without failing the job.
func (r *JobResult) Degraded() bool {
	for _, s := range r.Steps {
		if s.Status == StepStatusDegraded {
			return true
		}
	}
	return false
}

// DegradedSteps returns the outcomes of cache steps that failed.
func (r *JobResult) DegradedSteps() []StepOutcome {
	var out []StepOutcome
	for _, s := range r.Steps {
		if s.Status == StepStatusDegraded {
			out = append(out, s)
		}
	}
	return out
}
