// Package agent turns a natural-language task into an executed plan.
//
// An Agent asks its Planner for plan text, parses it (structured JSON
// first, numbered text as a fallback), runs the steps through an
// executor and returns the aggregated model.TaskResult. It keeps no
// state between tasks.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailagent/internal/logging"
	"github.com/nhle/mailagent/internal/model"
	"github.com/nhle/mailagent/internal/plan"
)

// ErrPlanGeneration wraps every failure of the plan generator. A task run
// that fails this way produces no TaskResult.
var ErrPlanGeneration = errors.New("plan generation failed")

// Planner produces plan text for a task.
type Planner interface {
	Generate(ctx context.Context, task string) (string, error)
}

// StepRunner executes parsed steps.
type StepRunner interface {
	Execute(ctx context.Context, steps []model.StepDescriptor) []model.StepOutcome
}

// Recorder persists finished task runs.
type Recorder interface {
	SaveRun(ctx context.Context, task string, result *model.TaskResult) (string, error)
}

// Agent orchestrates a single task run.
type Agent struct {
	planner  Planner
	runner   StepRunner
	recorder Recorder
	logger   *zap.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithRecorder stores every completed run with r. Recording failures are
// logged and never change the returned result.
func WithRecorder(r Recorder) Option {
	return func(a *Agent) {
		a.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) {
		a.logger = logging.OrNop(l)
	}
}

// New creates an Agent.
func New(planner Planner, runner StepRunner, opts ...Option) *Agent {
	a := &Agent{
		planner: planner,
		runner:  runner,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ProcessTask generates a plan for task, executes it and returns the
// result. The only error is a wrapped ErrPlanGeneration; step failures
// are reported inside the result.
func (a *Agent) ProcessTask(ctx context.Context, task string) (*model.TaskResult, error) {
	start := time.Now()

	planText, err := a.planner.Generate(ctx, task)
	if err != nil {
		TasksTotal.WithLabelValues("plan_error").Inc()
		a.logger.Error("plan generation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPlanGeneration, err)
	}

	steps, format := plan.ParseAuto(planText)
	a.logger.Debug("plan parsed",
		zap.String("format", string(format)),
		zap.Int("steps", len(steps)),
	)

	outcomes := a.runner.Execute(ctx, steps)
	result := model.NewTaskResult(planText, outcomes)

	TasksTotal.WithLabelValues(result.Status).Inc()
	a.logger.Info("task processed",
		zap.String("status", result.Status),
		zap.Int("results", len(result.Results)),
		zap.Int("failures", len(result.Failures())),
		zap.Duration("elapsed", time.Since(start)),
	)

	if a.recorder != nil {
		id, err := a.recorder.SaveRun(ctx, task, result)
		if err != nil {
			a.logger.Warn("recording run failed", zap.Error(err))
		} else {
			a.logger.Debug("run recorded", zap.String("run_id", id))
		}
	}

	return result, nil
}
