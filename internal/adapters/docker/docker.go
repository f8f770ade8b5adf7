// Package docker runs job steps inside a long-lived container.
//
// Provisioning pulls the image when it is not present locally and starts a
// container that sleeps forever, with the workspace bind-mounted at the job
// working directory and a per-run directory mounted as $HOME. Each step is a
// `docker exec` into that container. Close removes the container.
package docker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/zerr"
)

// ContainerHome is where the per-run home directory is mounted.
const ContainerHome = "/root"

// RunFunc runs the docker CLI with args and returns its combined output.
type RunFunc func(ctx context.Context, args ...string) ([]byte, error)

// Options configures a Provisioner.
type Options struct {
	// Binary is the docker CLI to invoke.
	Binary string
	// Workspace is the host directory mounted at the job working directory.
	Workspace string
	// Home is the host directory mounted at ContainerHome. When empty a fresh
	// directory under <workspace>/.rig/home is created for each run and
	// removed on Close.
	Home string
	// Run overrides how the CLI is invoked.
	Run RunFunc
}

var _ ports.Provisioner = (*Provisioner)(nil)

// Provisioner starts one container per job.
type Provisioner struct {
	binary    string
	workspace string
	home      string
	run       RunFunc
	logger    ports.Logger
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(opts Options, logger ports.Logger) *Provisioner {
	p := &Provisioner{
		binary:    opts.Binary,
		workspace: opts.Workspace,
		home:      opts.Home,
		run:       opts.Run,
		logger:    logger,
	}
	if p.binary == "" {
		p.binary = "docker"
	}
	if p.run == nil {
		p.run = p.exec
	}
	return p
}

func (p *Provisioner) exec(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.binary, args...) //nolint:gosec // Arguments are built internally
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, zerr.With(zerr.Wrap(err, strings.TrimSpace(string(out))), "args", strings.Join(args, " "))
	}
	return out, nil
}

// Provision starts a container for spec.
func (p *Provisioner) Provision(ctx context.Context, spec domain.EnvironmentSpec) (ports.Environment, error) {
	workspace, err := filepath.Abs(p.workspace)
	if err != nil {
		return nil, p.fail(err, spec)
	}

	if err := p.ensureImage(ctx, spec.Image); err != nil {
		return nil, p.fail(err, spec)
	}

	home, ownHome := p.home, false
	if home == "" {
		parent := filepath.Join(workspace, domain.RigDirName, domain.HomeDirName)
		if err := os.MkdirAll(parent, domain.DirPerm); err != nil {
			return nil, p.fail(err, spec)
		}
		if home, err = os.MkdirTemp(parent, "run-"); err != nil {
			return nil, p.fail(err, spec)
		}
		ownHome = true
	}

	name := "rig-" + uuid.NewString()
	args := []string{
		"run", "--detach", "--init",
		"--name", name,
		"--volume", workspace + ":" + spec.WorkingDirectory,
		"--volume", home + ":" + ContainerHome,
		"--workdir", spec.WorkingDirectory,
		"--entrypoint", "",
		spec.Image,
		"sleep", "infinity",
	}
	if _, err := p.run(ctx, args...); err != nil {
		if ownHome {
			_ = os.RemoveAll(home)
		}
		return nil, p.fail(err, spec)
	}

	shell := spec.Shell
	if len(shell) == 0 {
		shell = domain.DefaultShell
	}

	return &Environment{
		provisioner: p,
		container:   name,
		workspace:   workspace,
		home:        home,
		ownHome:     ownHome,
		workdir:     spec.WorkingDirectory,
		shell:       shell,
		env:         domain.EnvList(spec.Environment),
	}, nil
}

func (p *Provisioner) ensureImage(ctx context.Context, image string) error {
	if _, err := p.run(ctx, "image", "inspect", "--format", "{{.Id}}", image); err == nil {
		return nil
	}
	p.logger.Info(fmt.Sprintf("pulling image %s", image))
	_, err := p.run(ctx, "pull", image)
	return err
}

func (p *Provisioner) fail(err error, spec domain.EnvironmentSpec) error {
	return errors.Join(domain.ErrEnvironmentProvisionFailed,
		zerr.With(zerr.With(err, "driver", "docker"), "image", spec.Image))
}

var _ ports.Environment = (*Environment)(nil)

// Environment is a running container.
type Environment struct {
	provisioner *Provisioner
	container   string
	workspace   string
	home        string
	ownHome     bool
	workdir     string
	shell       []string
	env         []string

	closeOnce sync.Once
	closeErr  error
}

// Container returns the container name.
func (e *Environment) Container() string {
	return e.container
}

// HostPath maps container paths onto the bind mounts. Paths outside both
// mounts are rejected with domain.ErrPathOutsideEnvironment.
func (e *Environment) HostPath(p string) (string, error) {
	switch {
	case p == "~":
		return e.home, nil
	case strings.HasPrefix(p, "~/"):
		p = path.Join(ContainerHome, p[2:])
	case !path.IsAbs(p):
		p = path.Join(e.workdir, p)
	}
	p = path.Clean(p)

	if rel, ok := within(e.workdir, p); ok {
		return filepath.Join(e.workspace, filepath.FromSlash(rel)), nil
	}
	if rel, ok := within(ContainerHome, p); ok {
		return filepath.Join(e.home, filepath.FromSlash(rel)), nil
	}
	return "", zerr.With(zerr.Wrap(domain.ErrPathOutsideEnvironment, "path is not mounted"), "path", p)
}

func within(base, p string) (string, bool) {
	if p == base {
		return ".", true
	}
	prefix := strings.TrimSuffix(base, "/") + "/"
	if strings.HasPrefix(p, prefix) {
		return p[len(prefix):], true
	}
	return "", false
}

// Command builds a `docker exec` process running req inside the container.
func (e *Environment) Command(ctx context.Context, req ports.CommandRequest) (*exec.Cmd, error) {
	dir := e.workdir
	if req.Dir != "" {
		dir = req.Dir
		if !path.IsAbs(dir) {
			dir = path.Join(e.workdir, dir)
		}
	}

	args := []string{"exec", "--workdir", dir}
	for _, kv := range domain.MergeEnv(e.env, req.Env) {
		args = append(args, "--env", kv)
	}
	args = append(args, e.container)
	args = append(args, e.shell...)
	args = append(args, req.Script)

	return exec.CommandContext(ctx, e.provisioner.binary, args...), nil //nolint:gosec // Job commands are user provided
}

// Close force-removes the container and any per-run home directory.
func (e *Environment) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		_, err := e.provisioner.run(ctx, "rm", "--force", "--volumes", e.container)
		if err != nil {
			err = errors.Join(domain.ErrEnvironmentTeardownFailed, zerr.With(err, "container", e.container))
		}
		if e.ownHome {
			if rmErr := removeAll(e.home); rmErr != nil {
				err = errors.Join(err, zerr.With(zerr.Wrap(rmErr, "failed to remove home"), "path", e.home))
			}
		}
		e.closeErr = err
	})
	return e.closeErr
}

// removeAll deletes dir, making read-only directories writable on a second pass.
func removeAll(dir string) error {
	err := os.RemoveAll(dir)
	if err == nil {
		return nil
	}
	_ = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			_ = os.Chmod(p, domain.DirPerm)
		}
		return nil
	})
	return os.RemoveAll(dir)
}
