// Package linear provides a synchronous, line-buffered renderer for CI logs.
package linear

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/rig/internal/ui/style"
	"go.trai.ch/rig/internal/ui/term"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer implements ports.Renderer.
// Step output goes to stdout prefixed with the step name; lifecycle messages
// go to stderr.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	output *termenv.Output

	mu    sync.Mutex
	total int
	names map[int]string
	bufs  map[int]*bytes.Buffer
}

// NewRenderer creates a Renderer. Nil writers select os.Stdout and os.Stderr.
func NewRenderer(stdout, stderr io.Writer) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Renderer{
		stdout: stdout,
		stderr: stderr,
		output: term.NewOutput(stderr),
		names:  make(map[int]string),
		bufs:   make(map[int]*bytes.Buffer),
	}
}

// OnJobStart prints the job header.
func (r *Renderer) OnJobStart(job *domain.Job, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total = job.Len()
	env := job.Environment()
	title := r.output.String(fmt.Sprintf("Running job %s", job.Name())).Bold().String()
	_, _ = fmt.Fprintf(r.stderr, "%s %s\n", title,
		r.faint(fmt.Sprintf("(%d steps, image %s, run %s)", r.total, env.Image, runID)))
}

// OnStepStart prints a step start message.
func (r *Renderer) OnStepStart(index int, step domain.Step) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := step.DisplayName()
	r.names[index] = name
	r.bufs[index] = new(bytes.Buffer)

	_, _ = fmt.Fprintf(r.stderr, "%s Starting... %s\n",
		r.faint(prefix(name)), r.faint(fmt.Sprintf("(%d/%d)", index+1, r.total)))
}

// OnStepLog buffers data and prints complete lines with the step prefix.
func (r *Renderer) OnStepLog(index int, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.bufs[index]
	if !ok {
		return
	}
	buf.Write(data)

	for {
		i := bytes.IndexByte(buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		r.printLineLocked(r.names[index], buf.Next(i+1))
	}
}

// OnStepComplete flushes remaining output and prints the step status.
func (r *Renderer) OnStepComplete(o domain.StepOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := o.Name
	if n, ok := r.names[o.Index]; ok {
		name = n
	}
	if buf, ok := r.bufs[o.Index]; ok && buf.Len() > 0 {
		r.printLineLocked(name, buf.Bytes())
	}
	delete(r.names, o.Index)
	delete(r.bufs, o.Index)

	p := prefix(name)
	d := formatDuration(o.Duration)

	switch {
	case o.Status == domain.StepStatusSkipped:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Skipped\n", r.faint(p), r.faint(style.Skipped))
	case o.Status == domain.StepStatusFailed && o.TimedOut:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Timed out after %s\n", p, r.paint(style.Cross, style.Red), d)
	case o.Status == domain.StepStatusFailed:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %s: %s\n", p, r.paint(style.Cross, style.Red), d, failure(o))
	case o.Status == domain.StepStatusDegraded:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Cache unavailable after %s: %s\n",
			p, r.paint(style.Warning, style.Yellow), d, firstLine(o.Err))
	case o.Cache == domain.CacheOutcomeHit:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Restored %s in %s\n", p, r.paint(style.Hit, style.Green), o.CacheKey, d)
	case o.Cache == domain.CacheOutcomeMiss:
		_, _ = fmt.Fprintf(r.stderr, "%s %s No cache found in %s\n", p, r.paint(style.Miss, style.Yellow), d)
	case o.Cache == domain.CacheOutcomeSaved:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Saved %s in %s\n", p, r.paint(style.Check, style.Green), o.CacheKey, d)
	default:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Completed in %s\n", p, r.paint(style.Check, style.Green), d)
	}
}

// OnJobComplete prints the final report.
func (r *Renderer) OnJobComplete(res *domain.JobResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := formatDuration(res.Duration())
	if res.Passed() {
		line := fmt.Sprintf("Job %s passed in %s", res.JobName, d)
		_, _ = fmt.Fprintln(r.stderr, r.paint(line, style.Green))
	} else {
		line := fmt.Sprintf("Job %s failed after %s (%s)", res.JobName, d, res.Reason)
		_, _ = fmt.Fprintln(r.stderr, r.paint(line, style.Red))
		if res.FailedAt >= 0 && res.FailedAt < len(res.Steps) {
			failed := res.Steps[res.FailedAt]
			_, _ = fmt.Fprintf(r.stderr, "  %s step %d %s\n", style.Arrow, failed.Index+1, failed.Name)
		} else if res.Err != nil {
			_, _ = fmt.Fprintf(r.stderr, "  %s %s\n", style.Arrow, firstLine(res.Err))
		}
	}

	if degraded := res.DegradedSteps(); len(degraded) > 0 {
		_, _ = fmt.Fprintf(r.stderr, "%s %d cache step(s) degraded:\n", r.paint(style.Warning, style.Yellow), len(degraded))
		for _, s := range degraded {
			_, _ = fmt.Fprintf(r.stderr, "  %s step %d %s: %s\n", style.Arrow, s.Index+1, s.Name, firstLine(s.Err))
		}
	}
}

// printLineLocked prints a line with the step prefix.
// Must be called with r.mu held.
func (r *Renderer) printLineLocked(name string, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	_, _ = fmt.Fprintf(r.stdout, "%s %s\n", prefix(name), line)
}

func (r *Renderer) faint(s string) string {
	return r.output.String(s).Faint().String()
}

func (r *Renderer) paint(s string, c lipgloss.Color) string {
	return term.Paint(r.output, s, string(c))
}

func prefix(name string) string {
	return "[" + name + "]"
}

func failure(o domain.StepOutcome) string {
	if o.ExitCode > 0 {
		return fmt.Sprintf("exit code %d", o.ExitCode)
	}
	return firstLine(o.Err)
}

func firstLine(err error) string {
	if err == nil {
		return "unknown error"
	}
	s, _, _ := strings.Cut(err.Error(), "\n")
	return s
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}
