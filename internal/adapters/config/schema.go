package config

import (
	"gopkg.in/yaml.v3"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/zerr"
)

// Jobfile represents the structure of the rig.yml job file.
type Jobfile struct {
	Version int    `yaml:"version"`
	Job     JobDTO `yaml:"job"`
}

// JobDTO represents the job declaration.
type JobDTO struct {
	Name             string            `yaml:"name"`
	Image            string            `yaml:"image"`
	WorkingDirectory string            `yaml:"working_directory"`
	Shell            []string          `yaml:"shell"`
	Environment      map[string]string `yaml:"environment"`
	Steps            []StepDTO         `yaml:"steps"`
}

// StepDTO is one entry of the steps list. Exactly one field is set.
type StepDTO struct {
	Run          *RunDTO
	RestoreCache *RestoreCacheDTO
	SaveCache    *SaveCacheDTO
}

// RunDTO is a run step, written either as a string or as a mapping.
type RunDTO struct {
	Name        string            `yaml:"name"`
	Command     string            `yaml:"command"`
	Timeout     string            `yaml:"timeout"`
	WorkingDir  string            `yaml:"working_directory"`
	Environment map[string]string `yaml:"environment"`
}

// RestoreCacheDTO is a restore_cache step.
type RestoreCacheDTO struct {
	Name string   `yaml:"name"`
	Key  string   `yaml:"key"`
	Keys []string `yaml:"keys"`
}

// SaveCacheDTO is a save_cache step.
type SaveCacheDTO struct {
	Name  string   `yaml:"name"`
	Key   string   `yaml:"key"`
	Paths []string `yaml:"paths"`
}

// UnmarshalYAML decodes a single-key mapping such as {run: ...}.
func (s *StepDTO) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return zerr.With(zerr.New("step must be a mapping with exactly one key"), "line", node.Line)
	}

	kind, body := node.Content[0].Value, node.Content[1]
	switch kind {
	case "run":
		s.Run = &RunDTO{}
		if body.Kind == yaml.ScalarNode {
			s.Run.Command = body.Value
			return nil
		}
		return body.Decode(s.Run)
	case "restore_cache":
		s.RestoreCache = &RestoreCacheDTO{}
		return body.Decode(s.RestoreCache)
	case "save_cache":
		s.SaveCache = &SaveCacheDTO{}
		return body.Decode(s.SaveCache)
	default:
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrUnknownStepType, "invalid step"), "step", kind), "line", node.Line)
	}
}
