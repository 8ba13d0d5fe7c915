package pipeline

import (
	"context"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/nao1215/lexcrawl/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the report
// filled in by the previous steps.
type Step interface {
	// Do executes the pipeline step.
	// Fatal errors are returned; recoverable problems are logged and
	// recorded in the report.
	Do(ctx context.Context, report *model.RunReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. All step errors are combined in the report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// A stop signal (ctx cancelled) is not an error: the step that observes it
// finishes its work, marks the report as stopped and no later step starts.
// Execute then returns nil.
//
// With continueOnError unset the first step error is returned. Otherwise all
// steps run and the combined error is returned.
func (p *Pipeline) Execute(ctx context.Context, report *model.RunReport) error {
	var result *multierror.Error

	for _, step := range p.steps {
		if report.Stopped || ctx.Err() != nil {
			report.Stopped = true
			p.logger.Warn("pipeline stopped",
				"step", step.Name(),
				"run_id", report.RunID,
			)
			break
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"run_id", report.RunID,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"run_id", report.RunID,
				"error", err,
			)

			if !p.continueOnError {
				report.Error = err
				report.ErrorMessage = err.Error()
				return err
			}

			result = multierror.Append(result, err)
			report.Error = result
			report.ErrorMessage = result.Error()
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"run_id", report.RunID,
			)
		}

		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}

	return result.ErrorOrNil()
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
