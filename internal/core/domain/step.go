package domain

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// StepKind identifies the variant of a Step.
type StepKind string

const (
	// StepKindRun is a shell command step.
	StepKindRun StepKind = "run"
	// StepKindRestoreCache restores a cached archive.
	StepKindRestoreCache StepKind = "restore_cache"
	// StepKindSaveCache persists paths into the cache.
	StepKindSaveCache StepKind = "save_cache"
)

// Step is one entry in a job's ordered step list.
// It is implemented only by CommandStep, RestoreCacheStep and SaveCacheStep.
type Step interface {
	// Kind reports which variant the step is.
	Kind() StepKind
	// DisplayName is the label used in reports.
	DisplayName() string

	sealed()
}

// CommandStep runs shell command text inside the execution environment.
type CommandStep struct {
	Name        string
	Command     string
	Environment map[string]string
	WorkingDir  string
	Timeout     time.Duration
}

// Kind implements Step.
func (s CommandStep) Kind() StepKind { return StepKindRun }

// DisplayName returns the step name, or the first line of the command when unnamed.
func (s CommandStep) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	line, _, _ := strings.Cut(strings.TrimSpace(s.Command), "\n")
	return line
}

func (CommandStep) sealed() {}

// RestoreCacheStep restores the first cache entry found among Keys.
type RestoreCacheStep struct {
	Name string
	Keys []KeyTemplate
}

// Kind implements Step.
func (s RestoreCacheStep) Kind() StepKind { return StepKindRestoreCache }

// DisplayName returns the step name, defaulting to "Restoring cache".
func (s RestoreCacheStep) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return "Restoring cache"
}

func (RestoreCacheStep) sealed() {}

// SaveCacheStep archives Paths under the key produced by Key.
type SaveCacheStep struct {
	Name  string
	Key   KeyTemplate
	Paths []string
}

// Kind implements Step.
func (s SaveCacheStep) Kind() StepKind { return StepKindSaveCache }

// DisplayName returns the step name, defaulting to "Saving cache".
func (s SaveCacheStep) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return "Saving cache"
}

func (SaveCacheStep) sealed() {}

func cloneStep(s Step) Step {
	switch v := s.(type) {
	case CommandStep:
		v.Environment = maps.Clone(v.Environment)
		return v
	case RestoreCacheStep:
		v.Keys = slices.Clone(v.Keys)
		return v
	case SaveCacheStep:
		v.Paths = slices.Clone(v.Paths)
		return v
	default:
		return s
	}
}
