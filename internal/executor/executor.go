// Package executor runs parsed plan steps against a mailbox gateway.
//
// Steps run strictly one after another in plan order, and within a
// list_recent step the per-email classify and categorize calls run in the
// order the gateway returned the emails. Gateway errors never escape a
// step: each becomes a failed model.StepOutcome and execution moves on.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailagent/internal/logging"
	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/model"
)

var (
	errMissingMessageID  = errors.New("categorize step names no message id")
	errMissingCategories = errors.New("categorize step names no known category")
	errNoReceipt         = errors.New("mailbox returned no receipt")
)

// Executor dispatches steps to a Gateway.
type Executor struct {
	gateway mailbox.Gateway
	policy  SubFailurePolicy
	logger  *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = logging.OrNop(l)
	}
}

// WithSubFailurePolicy sets how per-email sub-call failures affect a
// list_recent step. The default is PolicyTolerate.
func WithSubFailurePolicy(p SubFailurePolicy) Option {
	return func(e *Executor) {
		e.policy = p
	}
}

// New creates an Executor.
func New(gw mailbox.Gateway, opts ...Option) *Executor {
	e := &Executor{
		gateway: gw,
		policy:  PolicyTolerate,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs steps in order and returns one outcome per recognized
// step. Unrecognized steps are skipped and produce no outcome. Once ctx
// is done, every remaining recognized step fails with the context error.
func (e *Executor) Execute(
	ctx context.Context,
	steps []model.StepDescriptor,
) []model.StepOutcome {
	outcomes := make([]model.StepOutcome, 0, len(steps))

	for i, step := range steps {
		if !step.Operation.Known() {
			StepsSkipped.Inc()
			e.logger.Debug("skipping unrecognized step",
				zap.Int("index", i),
				zap.String("raw", step.RawText),
			)
			continue
		}

		outcomes = append(outcomes, e.ExecuteStep(ctx, step))
	}

	return outcomes
}

// ExecuteStep runs a single recognized step.
func (e *Executor) ExecuteStep(
	ctx context.Context,
	step model.StepDescriptor,
) model.StepOutcome {
	start := time.Now()

	var outcome model.StepOutcome
	if err := ctx.Err(); err != nil {
		outcome = model.Failed(step, fmt.Errorf("step not started: %w", err), nil)
	} else {
		switch step.Operation {
		case model.OpListRecent:
			outcome = e.listRecent(ctx, step)
		case model.OpSend:
			outcome = e.send(ctx, step)
		case model.OpCategorize:
			outcome = e.categorize(ctx, step)
		default:
			outcome = model.Failed(
				step, fmt.Errorf("unsupported operation %q", step.Operation), nil,
			)
		}
	}

	op := string(step.Operation)
	StepDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if outcome.IsFailure() {
		StepsTotal.WithLabelValues(op, "failure").Inc()
		e.logger.Warn("step failed",
			zap.String("operation", op),
			zap.String("raw", step.RawText),
			zap.String("error", outcome.Error),
			zap.Int("diagnostics", len(outcome.Diagnostics)),
		)
	} else {
		StepsTotal.WithLabelValues(op, "success").Inc()
		e.logger.Info("step completed",
			zap.String("operation", op),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("diagnostics", len(outcome.Diagnostics)),
		)
	}

	return outcome
}

// listRecent lists emails, then classifies and categorizes each one.
// The step fails only if the list call fails, unless the sub-failure
// policy says otherwise.
func (e *Executor) listRecent(
	ctx context.Context,
	step model.StepDescriptor,
) model.StepOutcome {
	count := step.Params.Count
	if count <= 0 {
		count = model.DefaultListCount
	}

	emails, err := e.gateway.ListRecent(ctx, count)
	if err != nil {
		return model.Failed(step, fmt.Errorf("listing recent emails: %w", err), nil)
	}
	if emails == nil {
		emails = []model.Email{}
	}

	var diags []model.Diagnostic
	failedEmails := 0

	for i := range emails {
		d := e.categorizeEmail(ctx, &emails[i])
		if d != nil {
			diags = append(diags, *d)
			failedEmails++
		}
	}

	if e.policy.fails(failedEmails, len(emails)) {
		return model.Failed(step, fmt.Errorf(
			"%d of %d emails could not be categorized (policy %s)",
			failedEmails, len(emails), e.policy,
		), diags)
	}

	return model.Succeeded(step, emails, diags)
}

// categorizeEmail classifies email and applies the category. It returns
// a diagnostic for the first sub-call that failed, or nil.
func (e *Executor) categorizeEmail(
	ctx context.Context,
	email *model.Email,
) *model.Diagnostic {
	category, err := e.gateway.Classify(ctx, email.BodyPreview)
	if err != nil {
		return e.diagnose(email.ID, model.StageClassify, err)
	}

	ok, err := e.gateway.SetCategories(ctx, email.ID, []model.Category{category})
	if err != nil {
		return e.diagnose(email.ID, model.StageCategorize, err)
	}
	if !ok {
		return e.diagnose(email.ID, model.StageCategorize,
			fmt.Errorf("mailbox rejected categories for %s", email.ID))
	}

	email.Categories = []model.Category{category}
	return nil
}

func (e *Executor) diagnose(id, stage string, err error) *model.Diagnostic {
	SubOperationFailures.WithLabelValues(stage).Inc()
	e.logger.Debug("sub-operation failed",
		zap.String("message_id", id),
		zap.String("stage", stage),
		zap.Error(err),
	)
	return &model.Diagnostic{MessageID: id, Stage: stage, Error: err.Error()}
}

func (e *Executor) send(
	ctx context.Context,
	step model.StepDescriptor,
) model.StepOutcome {
	p := step.Params
	if len(p.Recipients) == 0 {
		return model.Failed(step, fmt.Errorf(
			"%w: send step names no recipients", mailbox.ErrInvalidRecipient,
		), nil)
	}

	receipt, err := e.gateway.Send(ctx, p.Recipients, p.Subject, p.Body)
	if err != nil {
		return model.Failed(step, fmt.Errorf("sending email: %w", err), nil)
	}
	if receipt == nil {
		return model.Failed(step, fmt.Errorf("sending email: %w", errNoReceipt), nil)
	}

	return model.Succeeded(step, receipt, nil)
}

func (e *Executor) categorize(
	ctx context.Context,
	step model.StepDescriptor,
) model.StepOutcome {
	p := step.Params
	if p.MessageID == "" {
		return model.Failed(step, errMissingMessageID, nil)
	}
	if len(p.Categories) == 0 {
		return model.Failed(step, errMissingCategories, nil)
	}

	ok, err := e.gateway.SetCategories(ctx, p.MessageID, p.Categories)
	if err != nil {
		return model.Failed(step, fmt.Errorf(
			"setting categories on %s: %w", p.MessageID, err,
		), nil)
	}
	if !ok {
		return model.Failed(step, fmt.Errorf(
			"mailbox rejected categories for %s", p.MessageID,
		), nil)
	}

	return model.Succeeded(step, model.CategorizeResult{
		MessageID:  p.MessageID,
		Categories: p.Categories,
		Applied:    true,
	}, nil)
}
