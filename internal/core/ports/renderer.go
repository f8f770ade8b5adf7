package ports

import "go.trai.ch/rig/internal/core/domain"

// Renderer presents job progress to the user.
//
//go:generate go run go.uber.org/mock/mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// OnJobStart is called once before provisioning.
	OnJobStart(job *domain.Job, runID string)
	// OnStepStart is called before step index runs.
	OnStepStart(index int, step domain.Step)
	// OnStepLog receives a chunk of output produced by step index.
	OnStepLog(index int, data []byte)
	// OnStepComplete is called after step index finishes.
	OnStepComplete(outcome domain.StepOutcome)
	// OnJobComplete is called once with the final result.
	OnJobComplete(result *domain.JobResult)
}
