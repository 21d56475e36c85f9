package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig describes a multi-step command
type RunnerConfig struct {
	Title     string  // e.g., "Diagnostics"
	Command   string  // e.g., "lineus diag"
	Params    []Param // Shown in the header
	StepNames []string
	Output    io.Writer            // Default: os.Stdout
	Hints     func(error) []string // Troubleshooting tips for a failure
}

// Runner prints a header, streams step progress while an operation runs,
// then prints a result box.
type Runner struct {
	config   RunnerConfig
	header   *Header
	progress *Progress
	output   io.Writer
	width    int
}

// Operation is the work a Runner reports on. It returns detail lines for
// the success box.
type Operation func(ctx context.Context, onStep StepCallback) ([]Param, error)

// NewRunner creates a Runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := GetTerminalWidth()

	progress := NewProgress("", len(config.StepNames))
	progress.SetWidth(width)
	progress.SetStepNames(config.StepNames)

	return &Runner{
		config:   config,
		header:   NewHeader(config.Title, config.Command, config.Params...).SetWidth(width),
		progress: progress,
		output:   config.Output,
		width:    width,
	}
}

// Run executes op and renders its progress and outcome
func (r *Runner) Run(ctx context.Context, op Operation) error {
	start := time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	details, err := op(ctx, r.onStep)
	duration := time.Since(start).Round(time.Millisecond)

	_, _ = fmt.Fprintln(r.output)
	if err != nil {
		var hints []string
		if r.config.Hints != nil {
			hints = r.config.Hints(err)
		}
		result := NewFailureResult(r.config.Title+" failed", err, hints).SetWidth(r.width)
		_, _ = fmt.Fprintln(r.output, result.Render())
		return err
	}

	result := NewSuccessResult(r.config.Title+" complete", details...).SetWidth(r.width)
	result.AddDetail("Duration", duration.String())
	_, _ = fmt.Fprintln(r.output, result.Render())
	return nil
}

// onStep records a step update and prints it. Step numbers past the
// declared steps extend the list.
func (r *Runner) onStep(stepNumber int, name string, status StepStatus, message string) {
	for stepNumber > r.progress.Total() {
		r.progress.AddStep("")
	}
	if stepNumber < 1 {
		return
	}
	if name != "" {
		r.progress.Steps[stepNumber-1].Name = name
	}
	r.progress.UpdateStep(stepNumber, status, message)

	line := r.progress.RenderStepLine(r.progress.Steps[stepNumber-1])
	switch status {
	case StepRunning:
		// Overwritten when the step finishes
		_, _ = fmt.Fprint(r.output, line+"\r")
	default:
		_, _ = fmt.Fprintln(r.output, line)
	}
}
