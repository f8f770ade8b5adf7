// Package local runs job steps directly on the host.
//
// The workspace stands in for the job working directory and "~" maps to the
// configured home directory. The image reference is recorded but not used.
package local

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Provisioner = (*Provisioner)(nil)

// Provisioner hands out host environments rooted at a workspace.
type Provisioner struct {
	workspace string
	home      string
}

// NewProvisioner creates a Provisioner. An empty home selects the current
// user's home directory.
func NewProvisioner(workspace, home string) *Provisioner {
	return &Provisioner{workspace: workspace, home: home}
}

// Provision returns an environment for spec. It only checks that the
// workspace exists.
func (p *Provisioner) Provision(_ context.Context, spec domain.EnvironmentSpec) (ports.Environment, error) {
	workspace, err := filepath.Abs(p.workspace)
	if err != nil {
		return nil, provisionError(err, spec)
	}
	info, err := os.Stat(workspace)
	if err != nil {
		return nil, provisionError(err, spec)
	}
	if !info.IsDir() {
		return nil, provisionError(zerr.New("workspace is not a directory"), spec)
	}

	home := p.home
	if home == "" {
		if home, err = os.UserHomeDir(); err != nil {
			return nil, provisionError(err, spec)
		}
	}

	shell := spec.Shell
	if len(shell) == 0 {
		shell = domain.DefaultShell
	}

	return &Environment{
		workspace: workspace,
		home:      home,
		workdir:   spec.WorkingDirectory,
		shell:     shell,
		env:       domain.EnvList(spec.Environment),
	}, nil
}

func provisionError(err error, spec domain.EnvironmentSpec) error {
	return zerr.With(zerr.With(zerr.Wrap(domain.ErrEnvironmentProvisionFailed, err.Error()),
		"driver", "local"), "image", spec.Image)
}

var _ ports.Environment = (*Environment)(nil)

// Environment is a host environment.
type Environment struct {
	workspace string
	home      string
	workdir   string
	shell     []string
	env       []string
}

// HostPath maps job paths to the host. Relative paths and paths below the job
// working directory land in the workspace; "~" paths land in the home directory.
func (e *Environment) HostPath(p string) (string, error) {
	switch {
	case p == "~":
		return e.home, nil
	case strings.HasPrefix(p, "~/"):
		return filepath.Join(e.home, p[2:]), nil
	case !filepath.IsAbs(p):
		return filepath.Join(e.workspace, p), nil
	}

	if e.workdir != "" {
		if rel, err := filepath.Rel(e.workdir, p); err == nil && !escapes(rel) {
			return filepath.Join(e.workspace, rel), nil
		}
	}
	return filepath.Clean(p), nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Command builds a shell process in the workspace. The process sees the host
// environment, HOME set to the environment's home, the job variables and req.Env,
// in increasing precedence.
func (e *Environment) Command(ctx context.Context, req ports.CommandRequest) (*exec.Cmd, error) {
	dir := e.workspace
	if req.Dir != "" {
		var err error
		if dir, err = e.HostPath(req.Dir); err != nil {
			return nil, err
		}
	}

	args := append(append([]string{}, e.shell[1:]...), req.Script)
	cmd := exec.CommandContext(ctx, e.shell[0], args...) //nolint:gosec // Job commands are user provided
	cmd.Dir = dir
	cmd.Env = domain.MergeEnv(os.Environ(), []string{"HOME=" + e.home}, e.env, req.Env)
	return cmd, nil
}

// Close is a no-op; host environments hold no resources.
func (e *Environment) Close(context.Context) error {
	return nil
}
