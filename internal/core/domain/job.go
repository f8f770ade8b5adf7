package domain

import (
	"errors"
	"iter"
	"maps"
	"path"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// DefaultWorkingDirectory is used when a job does not declare one.
const DefaultWorkingDirectory = "/root/project"

// EnvironmentSpec describes the execution environment a job runs in.
type EnvironmentSpec struct {
	// Image is the container image reference, e.g. "rust:1.70".
	Image string
	// WorkingDirectory is the absolute path steps run in.
	WorkingDirectory string
	// Shell is the argv prefix used to interpret command text.
	Shell []string
	// Environment holds job-level variables shared by every step.
	Environment map[string]string
}

// JobConfig is the unvalidated input to NewJob.
type JobConfig struct {
	Name             string
	Image            string
	WorkingDirectory string
	Shell            []string
	Environment      map[string]string
	Steps            []Step
}

// Job is a validated, immutable ordered sequence of steps bound to one environment.
type Job struct {
	name  string
	env   EnvironmentSpec
	steps []Step
}

// NewJob validates cfg and returns a Job holding its own copy of the input.
func NewJob(cfg JobConfig) (*Job, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "build"
	}

	if strings.TrimSpace(cfg.Image) == "" {
		return nil, errors.Join(ErrInvalidJob, zerr.With(zerr.Wrap(ErrMissingImage, "invalid environment"), "job", name))
	}

	workdir := cfg.WorkingDirectory
	if workdir == "" {
		workdir = DefaultWorkingDirectory
	}
	if !path.IsAbs(workdir) {
		return nil, errors.Join(ErrInvalidJob,
			zerr.With(zerr.New("working directory must be absolute"), "working_directory", workdir))
	}

	shell := slices.Clone(cfg.Shell)
	if len(shell) == 0 {
		shell = slices.Clone(DefaultShell)
	}

	steps := make([]Step, 0, len(cfg.Steps))
	for i, s := range cfg.Steps {
		if err := validateStep(s); err != nil {
			return nil, errors.Join(ErrInvalidJob, zerr.With(zerr.With(zerr.Wrap(err, "invalid step"),
				"step_index", i), "step_kind", stepKindOf(s)))
		}
		steps = append(steps, cloneStep(s))
	}

	return &Job{
		name: name,
		env: EnvironmentSpec{
			Image:            cfg.Image,
			WorkingDirectory: path.Clean(workdir),
			Shell:            shell,
			Environment:      maps.Clone(cfg.Environment),
		},
		steps: steps,
	}, nil
}

func stepKindOf(s Step) string {
	if s == nil {
		return "nil"
	}
	return string(s.Kind())
}

func validateStep(s Step) error {
	switch v := s.(type) {
	case CommandStep:
		if strings.TrimSpace(v.Command) == "" {
			return ErrEmptyCommand
		}
		if v.Timeout < 0 {
			return zerr.With(zerr.New("timeout must not be negative"), "timeout", v.Timeout.String())
		}
	case RestoreCacheStep:
		if len(v.Keys) == 0 {
			return ErrMissingCacheKey
		}
		for _, k := range v.Keys {
			if k.IsZero() {
				return ErrMissingCacheKey
			}
		}
	case SaveCacheStep:
		if v.Key.IsZero() {
			return ErrMissingCacheKey
		}
		if len(v.Paths) == 0 {
			return ErrMissingCachePaths
		}
		for _, p := range v.Paths {
			if strings.TrimSpace(p) == "" {
				return ErrMissingCachePaths
			}
		}
	default:
		return ErrUnknownStepType
	}
	return nil
}

// Name returns the job name.
func (j *Job) Name() string { return j.name }

// Environment returns a copy of the job's environment descriptor.
func (j *Job) Environment() EnvironmentSpec {
	env := j.env
	env.Shell = slices.Clone(j.env.Shell)
	env.Environment = maps.Clone(j.env.Environment)
	return env
}

// Len returns the number of steps.
func (j *Job) Len() int { return len(j.steps) }

// Step returns the step at index i.
func (j *Job) Step(i int) Step { return cloneStep(j.steps[i]) }

// Steps returns an iterator over the steps in execution order.
func (j *Job) Steps() iter.Seq2[int, Step] {
	return func(yield func(int, Step) bool) {
		for i, s := range j.steps {
			if !yield(i, cloneStep(s)) {
				return
			}
		}
	}
}
