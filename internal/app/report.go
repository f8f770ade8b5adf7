package app

import (
	"encoding/json"
	"os"
	"time"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/zerr"
)

// Report is the JSON form of a domain.JobResult.
type Report struct {
	RunID      string       `json:"run_id"`
	Job        string       `json:"job"`
	Status     string       `json:"status"`
	Reason     string       `json:"reason,omitempty"`
	FailedAt   int          `json:"failed_at"`
	State      string       `json:"state"`
	Degraded   bool         `json:"degraded"`
	Started    time.Time    `json:"started"`
	Finished   time.Time    `json:"finished"`
	DurationMS int64        `json:"duration_ms"`
	Error      string       `json:"error,omitempty"`
	Steps      []StepReport `json:"steps"`
}

// StepReport is the JSON form of a domain.StepOutcome.
type StepReport struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exit_code"`
	TimedOut   bool   `json:"timed_out,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	CacheKey   string `json:"cache_key,omitempty"`
	Cache      string `json:"cache,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewReport converts r.
func NewReport(r *domain.JobResult) Report {
	rep := Report{
		RunID:      r.RunID,
		Job:        r.JobName,
		Status:     string(r.Status),
		Reason:     string(r.Reason),
		FailedAt:   r.FailedAt,
		State:      r.State.String(),
		Degraded:   r.Degraded(),
		Started:    r.Started,
		Finished:   r.Finished,
		DurationMS: r.Duration().Milliseconds(),
		Error:      errString(r.Err),
		Steps:      make([]StepReport, 0, len(r.Steps)),
	}
	for _, s := range r.Steps {
		rep.Steps = append(rep.Steps, StepReport{
			Index:      s.Index,
			Name:       s.Name,
			Kind:       string(s.Kind),
			Status:     string(s.Status),
			ExitCode:   s.ExitCode,
			TimedOut:   s.TimedOut,
			DurationMS: s.Duration.Milliseconds(),
			CacheKey:   s.CacheKey.String(),
			Cache:      string(s.Cache),
			Error:      errString(s.Err),
		})
	}
	return rep
}

// WriteReport writes the JSON report of r to path.
func WriteReport(path string, r *domain.JobResult) error {
	data, err := json.MarshalIndent(NewReport(r), "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode report")
	}
	if err := os.WriteFile(path, append(data, '\n'), domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write report"), "path", path)
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
