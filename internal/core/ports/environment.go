package ports

import (
	"context"
	"os/exec"

	"go.trai.ch/rig/internal/core/domain"
)

// PathMapper translates paths as a step sees them into host paths.
type PathMapper interface {
	// HostPath maps p, which may be relative to the working directory,
	// "~"-relative or absolute, to a path on the host filesystem.
	HostPath(p string) (string, error)
}

// CommandRequest describes one process to start inside an environment.
type CommandRequest struct {
	// Script is the shell command text.
	Script string
	// Dir overrides the job working directory when set.
	Dir string
	// Env holds KEY=VALUE pairs added on top of the environment's defaults.
	Env []string
}

// Environment is an acquired execution environment.
//
//go:generate go run go.uber.org/mock/mockgen -source=environment.go -destination=mocks/mock_environment.go -package=mocks
type Environment interface {
	PathMapper

	// Command builds an unstarted process that runs req inside the environment.
	Command(ctx context.Context, req CommandRequest) (*exec.Cmd, error)

	// Close releases the environment. It is safe to call more than once.
	Close(ctx context.Context) error
}

// Provisioner acquires execution environments.
type Provisioner interface {
	// Provision prepares an environment matching spec.
	Provision(ctx context.Context, spec domain.EnvironmentSpec) (Environment, error)
}
