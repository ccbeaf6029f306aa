package pipeline

import (
	"context"
	"log/slog"

	goerrors "github.com/go-errors/errors"
)

// Step is one stage of a run.
type Step interface {
	// Do executes the step. A returned error ends the run.
	Do(ctx context.Context, state *State) error

	// Name returns the step's name for logging and the run history.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
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
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order.
//
// Cancellation is checked before each step; steps bound their own waits.
// The first step error is returned wrapped in a *goerrors.Error carrying the
// stack, and state.Stage names the failed step. Once a step sets the
// connectivity result, the remaining steps are skipped.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for _, step := range p.steps {
		if state.Done() {
			p.logger.Info("pipeline finished early",
				"result", state.Result,
				"skipped", step.Name(),
			)
			return nil
		}

		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		state.Stage = step.Name()
		p.logger.Info("executing step", "step", step.Name())

		if err := step.Do(ctx, state); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"error", err,
			)
			return goerrors.Wrap(err, 0)
		}

		p.logger.Debug("step completed", "step", step.Name())
		state.Completed = append(state.Completed, step.Name())
	}
	return nil
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
