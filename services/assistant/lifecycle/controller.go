// Package lifecycle applies external events to runs: submitting tool outputs
// resumes a run waiting on tool calls, cancelling stops a queued or running one.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/go-errors/errors"
	assistantErrors "github.com/kaytu-io/kaytu-assistant/services/assistant/errors"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/events"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/model"
	"github.com/kaytu-io/kaytu-assistant/services/assistant/repository"
	openai2 "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultStoreTimeout = 5 * time.Second
	// a transition losing this many version races in a row is reported as internal
	maxAttempts = 3
)

type Controller struct {
	logger    *zap.Logger
	runs      repository.Run
	publisher events.Publisher
	locks     *keyedMutex
	timeout   time.Duration
	now       func() time.Time
}

type Option func(*Controller)

func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

func WithStoreTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func New(logger *zap.Logger, runs repository.Run, opts ...Option) *Controller {
	c := &Controller{
		logger:    logger.Named("lifecycle"),
		runs:      runs,
		publisher: events.Noop{},
		locks:     newKeyedMutex(),
		timeout:   DefaultStoreTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SubmitToolOutputs hands the results of the pending tool calls back to a run in
// requires_action and moves it to queued. The pending required action is cleared.
func (c *Controller) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []model.ToolOutput) (*model.Run, error) {
	if err := validateToolOutputs(outputs); err != nil {
		return nil, c.fail(model.EventSubmitToolOutputs, err)
	}

	return c.transition(ctx, model.EventSubmitToolOutputs, threadID, runID, outputs, func(run *model.Run, to openai2.RunStatus) error {
		if err := checkPendingToolCalls(run, outputs); err != nil {
			return err
		}
		run.Status = to
		run.RequiredAction = nil
		return nil
	})
}

// CancelRun moves a queued or in progress run to cancelled and stamps cancelled_at.
func (c *Controller) CancelRun(ctx context.Context, threadID, runID string) (*model.Run, error) {
	return c.transition(ctx, model.EventCancel, threadID, runID, nil, func(run *model.Run, to openai2.RunStatus) error {
		cancelledAt := c.now().Unix()
		run.Status = to
		run.CancelledAt = &cancelledAt
		return nil
	})
}

// GetRun loads a run, hiding runs that belong to another thread.
func (c *Controller) GetRun(ctx context.Context, threadID, runID string) (*model.Run, error) {
	run, err := c.load(ctx, threadID, runID)
	if err != nil {
		return nil, err
	}

	return run, nil
}

func (c *Controller) transition(
	ctx context.Context,
	event model.Event,
	threadID, runID string,
	outputs []model.ToolOutput,
	apply func(run *model.Run, to openai2.RunStatus) error,
) (*model.Run, error) {
	unlock := c.locks.Lock(runID)
	defer unlock()

	logger := c.logger.With(
		zap.String("event", event.String()),
		zap.String("thread_id", threadID),
		zap.String("run_id", runID),
	)

	for attempt := 1; ; attempt++ {
		run, err := c.load(ctx, threadID, runID)
		if err != nil {
			return nil, c.fail(event, err)
		}

		to, err := model.Transition(run.Status, event)
		if err != nil {
			return nil, c.fail(event, invalidState(event, run.Status))
		}

		next := run.Clone()
		if err := apply(&next, to); err != nil {
			return nil, c.fail(event, err)
		}

		updated, err := c.update(ctx, next)
		if errors.Is(err, repository.ErrRunConflict) {
			TransitionConflictsCount.WithLabelValues(event.String()).Inc()
			if attempt < maxAttempts {
				logger.Warn("run changed during transition, retrying", zap.Int("attempt", attempt))
				continue
			}
			return nil, c.fail(event, c.internal(logger, err, "failed to update run after %d attempts", attempt))
		}
		if errors.Is(err, repository.ErrRunNotFound) {
			return nil, c.fail(event, assistantErrors.ErrRunNotFound)
		}
		if err != nil {
			return nil, c.fail(event, c.internal(logger, err, "failed to update run"))
		}

		logger.Info("run transitioned",
			zap.String("from", string(run.Status)),
			zap.String("to", string(updated.Status)),
			zap.Int64("version", updated.Version),
		)
		TransitionsCount.WithLabelValues(event.String(), "ok").Inc()
		c.publish(ctx, logger, *updated, outputs)

		return updated, nil
	}
}

func (c *Controller) load(ctx context.Context, threadID, runID string) (*model.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	run, err := c.runs.Get(ctx, runID)
	if errors.Is(err, repository.ErrRunNotFound) {
		return nil, assistantErrors.ErrRunNotFound
	}
	if err != nil {
		return nil, c.internal(c.logger.With(zap.String("run_id", runID)), err, "failed to load run")
	}
	if run.ThreadID != threadID {
		return nil, assistantErrors.ErrRunNotFound
	}

	return run, nil
}

func (c *Controller) update(ctx context.Context, run model.Run) (*model.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.runs.Update(ctx, run)
}

// publish runs after the write is committed; delivery failures are only logged.
func (c *Controller) publish(ctx context.Context, logger *zap.Logger, run model.Run, outputs []model.ToolOutput) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	ev := events.NewRunEvent(run, outputs, c.now().Unix())
	if err := c.publisher.Publish(ctx, ev); err != nil {
		logger.Error("failed to publish run event", zap.String("subject", ev.Type.Subject()), zap.Error(err))
	}
}

func (c *Controller) internal(logger *zap.Logger, err error, format string, args ...any) error {
	wrapped := goerrors.Wrap(err, 1)
	logger.Error("run store failure", zap.Error(err), zap.String("stack", string(wrapped.Stack())))

	return assistantErrors.Internal(err, format, args...)
}

func (c *Controller) fail(event model.Event, err error) error {
	TransitionsCount.WithLabelValues(event.String(), assistantErrors.KindOf(err).String()).Inc()
	return err
}

func invalidState(event model.Event, status openai2.RunStatus) error {
	allowed := make([]string, 0, 2)
	for _, s := range model.SourceStatuses(event) {
		allowed = append(allowed, string(s))
	}

	return assistantErrors.InvalidState("cannot %s a run with status %s, expected %s",
		verb(event), status, strings.Join(allowed, " or "))
}

func verb(event model.Event) string {
	switch event {
	case model.EventSubmitToolOutputs:
		return "submit tool outputs to"
	case model.EventCancel:
		return "cancel"
	default:
		return event.String()
	}
}

func validateToolOutputs(outputs []model.ToolOutput) error {
	if len(outputs) == 0 {
		return assistantErrors.InvalidArgument("tool_outputs must contain at least one tool output")
	}

	seen := make(map[string]int, len(outputs))
	for i, o := range outputs {
		if o.ToolCallID == "" {
			return assistantErrors.InvalidArgument("tool_outputs[%d].tool_call_id is required", i)
		}
		if o.Output == nil {
			return assistantErrors.InvalidArgument("tool_outputs[%d].output is required", i)
		}
		if j, ok := seen[o.ToolCallID]; ok {
			return assistantErrors.InvalidArgument("tool_outputs[%d].tool_call_id %q duplicates tool_outputs[%d]", i, o.ToolCallID, j)
		}
		seen[o.ToolCallID] = i
	}

	return nil
}

// checkPendingToolCalls rejects outputs for calls the run never asked for.
// Runs stored without pending calls accept any ids.
func checkPendingToolCalls(run *model.Run, outputs []model.ToolOutput) error {
	ids := run.RequiredAction.ToolCallIDs()
	if len(ids) == 0 {
		return nil
	}

	pending := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}
	for i, o := range outputs {
		if _, ok := pending[o.ToolCallID]; !ok {
			return assistantErrors.InvalidArgument("tool_outputs[%d].tool_call_id %q does not match a pending tool call", i, o.ToolCallID)
		}
	}

	return nil
}
