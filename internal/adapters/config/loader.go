// Package config loads rig.yml job declarations.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/zerr"
)

// SupportedVersion is the only job file format version understood by the loader.
const SupportedVersion = 1

// Loader implements ports.JobLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load reads the job file at path. When path is a directory, rig.yml inside it is used.
func (l *Loader) Load(path string) (*domain.Job, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, domain.JobFileName)
	}

	var file Jobfile
	if err := readAndUnmarshalYAML(path, &file); err != nil {
		return nil, err
	}

	switch file.Version {
	case 0:
		l.Logger.Warn(fmt.Sprintf("%s declares no version, assuming %d", filepath.Base(path), SupportedVersion))
	case SupportedVersion:
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnsupportedVersion, "unsupported job file"), "version", file.Version)
	}

	return buildJob(&file.Job)
}

func buildJob(dto *JobDTO) (*domain.Job, error) {
	steps := make([]domain.Step, 0, len(dto.Steps))
	for i := range dto.Steps {
		step, err := buildStep(&dto.Steps[i])
		if err != nil {
			return nil, errors.Join(domain.ErrInvalidJob, zerr.With(err, "step_index", i))
		}
		steps = append(steps, step)
	}

	return domain.NewJob(domain.JobConfig{
		Name:             dto.Name,
		Image:            dto.Image,
		WorkingDirectory: dto.WorkingDirectory,
		Shell:            dto.Shell,
		Environment:      dto.Environment,
		Steps:            steps,
	})
}

func buildStep(dto *StepDTO) (domain.Step, error) {
	switch {
	case dto.Run != nil:
		return buildRunStep(dto.Run)
	case dto.RestoreCache != nil:
		return buildRestoreStep(dto.RestoreCache)
	case dto.SaveCache != nil:
		return buildSaveStep(dto.SaveCache)
	default:
		return nil, domain.ErrUnknownStepType
	}
}

func buildRunStep(dto *RunDTO) (domain.Step, error) {
	step := domain.CommandStep{
		Name:        dto.Name,
		Command:     dto.Command,
		WorkingDir:  dto.WorkingDir,
		Environment: dto.Environment,
	}
	if dto.Timeout != "" {
		d, err := time.ParseDuration(dto.Timeout)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "invalid timeout"), "timeout", dto.Timeout)
		}
		step.Timeout = d
	}
	return step, nil
}

func buildRestoreStep(dto *RestoreCacheDTO) (domain.Step, error) {
	raw := dto.Keys
	if dto.Key != "" {
		raw = append([]string{dto.Key}, raw...)
	}

	keys := make([]domain.KeyTemplate, 0, len(raw))
	for _, k := range raw {
		tmpl, err := domain.ParseKeyTemplate(k)
		if err != nil {
			return nil, err
		}
		keys = append(keys, tmpl)
	}
	return domain.RestoreCacheStep{Name: dto.Name, Keys: keys}, nil
}

func buildSaveStep(dto *SaveCacheDTO) (domain.Step, error) {
	key, err := domain.ParseKeyTemplate(dto.Key)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(dto.Paths))
	for _, p := range dto.Paths {
		paths = append(paths, strings.TrimSpace(p))
	}
	return domain.SaveCacheStep{Name: dto.Name, Key: key, Paths: paths}, nil
}

func readAndUnmarshalYAML[T any](path string, target *T) error {
	// #nosec G304 -- path is chosen by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Join(domain.ErrConfigReadFailed, zerr.With(err, "path", path))
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return errors.Join(domain.ErrConfigParseFailed, zerr.With(err, "path", path))
	}
	return nil
}
