package ports

import (
	"context"
	"io"

	"go.trai.ch/rig/internal/core/domain"
)

// StepRunner executes command steps.
//
//go:generate go run go.uber.org/mock/mockgen -source=step_runner.go -destination=mocks/mock_step_runner.go -package=mocks
type StepRunner interface {
	// Run executes step inside env, streaming combined output to out.
	//
	// The vars parameter contains extra variables in "KEY=VALUE" format.
	// Failures are reported on the result, never as a separate error.
	Run(ctx context.Context, env Environment, step domain.CommandStep, vars []string, out io.Writer) domain.StepResult
}
