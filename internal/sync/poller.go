// Package sync runs a task repeatedly on an interval, for unattended
// mailbox upkeep such as "categorize my newest emails every five minutes".
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailagent/internal/logging"
	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/model"
)

// RunState represents the current state of the poller.
type RunState int

const (
	RunIdle RunState = iota
	RunRunning
	RunError
)

func (s RunState) String() string {
	switch s {
	case RunIdle:
		return "idle"
	case RunRunning:
		return "running"
	case RunError:
		return "error"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// Status is a snapshot of the poller.
type Status struct {
	State      RunState
	LastRun    time.Time
	LastStatus string
	Runs       int
	Error      error
}

// Result is emitted after every run.
type Result struct {
	TaskResult *model.TaskResult
	Error      error
	At         time.Time
}

// TaskProcessor runs one task. *agent.Agent satisfies it.
type TaskProcessor interface {
	ProcessTask(ctx context.Context, task string) (*model.TaskResult, error)
}

const (
	defaultInterval   = 5 * time.Minute
	defaultRunTimeout = 2 * time.Minute
)

// Poller runs one task on a fixed interval until its context ends or the
// mailbox reports expired credentials.
type Poller struct {
	processor  TaskProcessor
	task       string
	interval   time.Duration
	runTimeout time.Duration
	logger     *zap.Logger

	resultCh  chan Result
	triggerCh chan struct{}

	mu     gosync.Mutex
	status Status
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the time between runs. Non-positive values keep the
// default of five minutes.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithRunTimeout bounds a single run.
func WithRunTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.runTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) {
		p.logger = logging.OrNop(l)
	}
}

// New creates a Poller for task.
func New(processor TaskProcessor, task string, opts ...Option) *Poller {
	p := &Poller{
		processor:  processor,
		task:       task,
		interval:   defaultInterval,
		runTimeout: defaultRunTimeout,
		logger:     zap.NewNop(),
		resultCh:   make(chan Result, 16),
		triggerCh:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Results delivers one Result per run. Results are dropped when nobody
// reads them.
func (p *Poller) Results() <-chan Result {
	return p.resultCh
}

// Trigger requests an immediate run. It never blocks.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns a snapshot of the poller state.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Run runs the task immediately and then on every tick. It returns nil
// when ctx ends, or an error wrapping mailbox.ErrAuthExpired when a run
// hits expired credentials, since every later run would fail the same way.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.runOnce(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-p.triggerCh:
		}
	}
}

// runOnce performs a single run and publishes its Result.
func (p *Poller) runOnce(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	p.setState(RunRunning, "", nil)

	runCtx, cancel := context.WithTimeout(ctx, p.runTimeout)
	defer cancel()

	result, err := p.processor.ProcessTask(runCtx, p.task)
	now := time.Now()

	if err != nil {
		p.logger.Warn("scheduled run failed", zap.Error(err))
		p.setState(RunError, "", err)
		p.sendResult(Result{Error: err, At: now})
		return nil
	}

	p.sendResult(Result{TaskResult: result, At: now})
	p.logger.Info("scheduled run finished",
		zap.String("status", result.Status),
		zap.Int("results", len(result.Results)),
	)

	if authErr := authFailure(result); authErr != nil {
		p.setState(RunError, result.Status, authErr)
		return fmt.Errorf("stopping scheduled runs: %w", authErr)
	}

	p.setState(RunIdle, result.Status, nil)
	return nil
}

// authFailure returns the first step error caused by expired credentials.
func authFailure(r *model.TaskResult) error {
	for _, o := range r.Failures() {
		if err := o.Err(); err != nil && errors.Is(err, mailbox.ErrAuthExpired) {
			return err
		}
	}
	return nil
}

func (p *Poller) setState(state RunState, runStatus string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state != RunRunning {
		p.status.Runs++
		p.status.LastRun = time.Now()
		p.status.LastStatus = runStatus
	}
}

// sendResult sends a Result without blocking.
func (p *Poller) sendResult(r Result) {
	select {
	case p.resultCh <- r:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}
