package domain

import (
	"fmt"

	"go.trai.ch/zerr"
)

// Phase is the coarse position of a job in its lifecycle.
type Phase int

const (
	// PhasePending is the state before anything has happened.
	PhasePending Phase = iota
	// PhaseProvisioning means the environment is being acquired.
	PhaseProvisioning
	// PhaseRunning means a step is executing.
	PhaseRunning
	// PhaseCompleted means every step ran.
	PhaseCompleted
	// PhaseAborted means the job stopped early.
	PhaseAborted
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseProvisioning:
		return "provisioning"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// JobState tracks Pending -> Provisioning -> Running(i) -> {Completed | Aborted(i)}.
// Step is meaningful for Running and Aborted; Aborted with Step -1 means the
// job stopped before any step ran.
type JobState struct {
	Phase Phase
	Step  int
}

// NewJobState returns a job in the Pending state.
func NewJobState() JobState {
	return JobState{Phase: PhasePending, Step: -1}
}

// String renders the state, e.g. "running(2)".
func (s JobState) String() string {
	switch s.Phase {
	case PhaseRunning, PhaseAborted:
		return fmt.Sprintf("%s(%d)", s.Phase, s.Step)
	default:
		return s.Phase.String()
	}
}

// IsTerminal reports whether the job has finished.
func (s JobState) IsTerminal() bool {
	return s.Phase == PhaseCompleted || s.Phase == PhaseAborted
}

// Provision moves Pending to Provisioning.
func (s JobState) Provision() (JobState, error) {
	if s.Phase != PhasePending {
		return s, s.invalid("provisioning")
	}
	return JobState{Phase: PhaseProvisioning, Step: -1}, nil
}

// Run moves to Running(i). It is valid from Provisioning when i is 0 and from
// Running(i-1) otherwise.
func (s JobState) Run(i int) (JobState, error) {
	switch {
	case s.Phase == PhaseProvisioning && i == 0:
	case s.Phase == PhaseRunning && i == s.Step+1:
	default:
		return s, s.invalid(fmt.Sprintf("running(%d)", i))
	}
	return JobState{Phase: PhaseRunning, Step: i}, nil
}

// Complete moves Provisioning (no steps) or Running to Completed.
func (s JobState) Complete() (JobState, error) {
	if s.Phase != PhaseRunning && s.Phase != PhaseProvisioning {
		return s, s.invalid("completed")
	}
	return JobState{Phase: PhaseCompleted, Step: s.Step}, nil
}

// Abort moves any non-terminal state to Aborted at the current step.
func (s JobState) Abort() (JobState, error) {
	if s.IsTerminal() {
		return s, s.invalid("aborted")
	}
	return JobState{Phase: PhaseAborted, Step: s.Step}, nil
}

func (s JobState) invalid(to string) error {
	return zerr.With(zerr.With(zerr.Wrap(ErrInvalidTransition, "cannot transition"), "from", s.String()), "to", to)
}
