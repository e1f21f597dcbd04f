package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/luximus/flowbot/logger"
	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

const completedMessage = "Flow completed successfully"
const alreadyRunningPrefix = "Flow is already running."

// Controller drives one flow instance. Every exported method reloads the state from the
// store, holds the instance lock for the whole call and persists before returning.
type Controller struct {
	engine     *Engine
	definition *Definition
	subjectId  string
	state      *model.FlowState
}

func (c *Controller) Kind() string {
	return c.definition.Name
}

func (c *Controller) SubjectId() string {
	return c.subjectId
}

// Load returns the persisted state, creating and saving the default state when none exists.
func (c *Controller) Load(ctx context.Context) (*model.FlowState, error) {
	unlock := c.engine.locks.Lock(c.definition.Name, c.subjectId)
	defer unlock()
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	st := *c.state
	return &st, nil
}

// Start begins a fresh run. A start on a running flow re-executes the step it is parked on
// and leaves current_step where it was.
func (c *Controller) Start(ctx context.Context, data map[string]any) (*model.Result, error) {
	return c.run(ctx, CMD_START, func(ctx context.Context) (*model.Result, error) {
		if c.state.IsRunning {
			return c.reenter(ctx)
		}
		return c.restart(ctx, data)
	})
}

func (c *Controller) Continue(ctx context.Context) (*model.Result, error) {
	return c.run(ctx, CMD_CONTINUE, c.continueFlow)
}

func (c *Controller) Stop(ctx context.Context) (*model.Result, error) {
	return c.run(ctx, CMD_STOP, c.stop)
}

// Restart rewinds to step 0 whatever the current state is.
func (c *Controller) Restart(ctx context.Context, data map[string]any) (*model.Result, error) {
	return c.run(ctx, CMD_RESTART, func(ctx context.Context) (*model.Result, error) {
		return c.restart(ctx, data)
	})
}

// Deliver merges externally supplied data into a running flow and continues it.
func (c *Controller) Deliver(ctx context.Context, data map[string]any) (*model.Result, error) {
	return c.run(ctx, CMD_DELIVER, func(ctx context.Context) (*model.Result, error) {
		if !c.state.IsRunning {
			return nil, ErrNotRunning
		}
		c.state.Merge(data)
		if err := c.save(ctx); err != nil {
			return nil, err
		}
		return c.advance(ctx)
	})
}

// HandleMessage maps free text onto a command. Text that is not a command is fed to the
// flow when the definition names a FreeTextKey and the flow is running; otherwise the
// subject gets the usage hint and the state is left untouched.
func (c *Controller) HandleMessage(ctx context.Context, text string) (*model.Result, error) {
	return c.run(ctx, CMD_MESSAGE, func(ctx context.Context) (*model.Result, error) {
		cmd, ok := ParseCommand(text)
		if ok {
			switch cmd {
			case CMD_START:
				if c.state.IsRunning {
					return c.reenter(ctx)
				}
				return c.restart(ctx, nil)
			case CMD_CONTINUE:
				return c.continueFlow(ctx)
			case CMD_STOP:
				return c.stop(ctx)
			case CMD_RESTART:
				return c.restart(ctx, nil)
			}
		}
		if len(c.definition.FreeTextKey) > 0 && c.state.IsRunning {
			c.state.Merge(map[string]any{c.definition.FreeTextKey: text})
			if err := c.save(ctx); err != nil {
				return nil, err
			}
			return c.advance(ctx)
		}
		return c.rejectMessage(ctx, text)
	})
}

func (c *Controller) run(ctx context.Context, cmd Command, fn func(ctx context.Context) (*model.Result, error)) (*model.Result, error) {
	unlock := c.engine.locks.Lock(c.definition.Name, c.subjectId)
	defer unlock()

	var res *model.Result
	err := c.load(ctx)
	if err == nil {
		res, err = fn(ctx)
	}
	if err != nil {
		if res == nil {
			res = model.ErrorResult(err)
		} else if len(res.Error) == 0 {
			res.Error = err.Error()
		}
	}
	outcome := outcomeOf(err)
	c.engine.collector.RecordCommand(c.definition.Name, string(cmd), outcome)
	logger.Info("flow command handled", zap.String("flow", c.definition.Name), zap.String("subject", c.subjectId),
		zap.String("command", string(cmd)), zap.String("outcome", outcome), zap.Int("step", c.currentStep()))
	return res, err
}

func (c *Controller) currentStep() int {
	if c.state == nil {
		return -1
	}
	return c.state.CurrentStep
}

func (c *Controller) continueFlow(ctx context.Context) (*model.Result, error) {
	if !c.state.IsRunning {
		return nil, ErrNotRunning
	}
	return c.advance(ctx)
}

func (c *Controller) restart(ctx context.Context, data map[string]any) (*model.Result, error) {
	c.state.CurrentStep = 0
	c.state.IsRunning = true
	c.state.MarkCompleted(false)
	c.state.LastError = ""
	c.state.ParkedAt = nil
	c.state.Merge(data)
	c.state.Data[DATA_RUN_ID] = uuid.New().String()
	if err := c.save(ctx); err != nil {
		return nil, err
	}
	return c.advance(ctx)
}

func (c *Controller) reenter(ctx context.Context) (*model.Result, error) {
	idx := c.state.CurrentStep
	if c.state.ParkedAt != nil {
		idx = *c.state.ParkedAt
	}
	if idx >= len(c.definition.Steps) {
		return &model.Result{Message: alreadyRunningPrefix, AlreadyRunning: true}, nil
	}
	sr, err := c.execute(ctx, idx)
	if err != nil {
		return c.fail(ctx, idx, err)
	}
	if err := c.save(ctx); err != nil {
		return nil, err
	}
	message := alreadyRunningPrefix
	if len(sr.Message) > 0 {
		message = alreadyRunningPrefix + " " + sr.Message
	}
	current := c.state.CurrentStep
	return &model.Result{Message: message, CurrentStep: &current, AlreadyRunning: true}, nil
}

func (c *Controller) stop(ctx context.Context) (*model.Result, error) {
	if !c.state.IsRunning {
		return nil, ErrNotRunning
	}
	c.state.IsRunning = false
	c.state.MarkCompleted(false)
	c.state.ParkedAt = nil
	if err := c.save(ctx); err != nil {
		return nil, err
	}
	if c.definition.OnStop != nil {
		if err := c.definition.OnStop(ctx, c.stepContext(c.state.CurrentStep), nil); err != nil {
			logger.Warn("stop hook failed", zap.String("flow", c.definition.Name), zap.String("subject", c.subjectId), zap.Error(err))
		}
	}
	return &model.Result{Message: "Flow stopped"}, nil
}

func (c *Controller) rejectMessage(ctx context.Context, text string) (*model.Result, error) {
	hint := c.definition.UsageHint
	if len(hint) == 0 {
		hint = DefaultUsageHint
	}
	if err := c.stepContext(c.state.CurrentStep).Notify(ctx, hint); err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			return nil, err
		}
		logger.Warn("could not send usage hint", zap.String("flow", c.definition.Name), zap.String("subject", c.subjectId), zap.Error(err))
	}
	logger.Debug("invalid command", zap.String("flow", c.definition.Name), zap.String("subject", c.subjectId), zap.String("text", text))
	return nil, ErrInvalidCommand
}

// advance runs steps from current_step until one parks the flow, every step has run, or a
// step fails. Auto-continuing steps are chained in a loop and their messages joined.
func (c *Controller) advance(ctx context.Context) (*model.Result, error) {
	steps := c.definition.Steps
	var messages []string
	for {
		if c.state.CurrentStep >= len(steps) {
			return c.complete(ctx, messages)
		}
		idx := c.state.CurrentStep
		sr, err := c.execute(ctx, idx)
		if err != nil {
			return c.fail(ctx, idx, err)
		}
		if len(sr.Message) > 0 {
			messages = append(messages, sr.Message)
		}
		switch {
		case sr.Hold:
			c.state.ParkedAt = &idx
			if err := c.save(ctx); err != nil {
				return nil, err
			}
			return &model.Result{Message: strings.Join(messages, " "), CurrentStep: &idx}, nil
		case sr.AutoContinue:
			c.state.CurrentStep++
			if err := c.save(ctx); err != nil {
				return nil, err
			}
		default:
			c.state.ParkedAt = &idx
			c.state.CurrentStep++
			if err := c.save(ctx); err != nil {
				return nil, err
			}
			next := c.state.CurrentStep
			return &model.Result{Message: strings.Join(messages, " "), CurrentStep: &next}, nil
		}
	}
}

func (c *Controller) complete(ctx context.Context, messages []string) (*model.Result, error) {
	c.state.CurrentStep = len(c.definition.Steps)
	c.state.IsRunning = false
	c.state.MarkCompleted(true)
	c.state.ParkedAt = nil
	c.state.LastError = ""
	if err := c.save(ctx); err != nil {
		return nil, err
	}
	handler := c.engine.handlers.GetHandler(c.definition.OnComplete)
	if err := handler(ctx, c.definition.Name, c.subjectId); err != nil {
		logger.Error("completion handler failed", zap.String("flow", c.definition.Name), zap.String("subject", c.subjectId), zap.Error(err))
	}
	logger.Info("flow completed", zap.String("flow", c.definition.Name), zap.String("subject", c.subjectId))
	message := completedMessage
	if len(messages) > 0 {
		message = strings.Join(messages, " ")
	}
	return &model.Result{Message: message, Completed: true}, nil
}

// fail leaves the flow on the step that failed, not running and not completed.
func (c *Controller) fail(ctx context.Context, idx int, cause error) (*model.Result, error) {
	def := c.definition
	stepErr := &StepExecutionError{Kind: def.Name, Step: idx, StepName: def.Steps[idx].Name(), Err: cause}
	logger.Error("step failed", zap.String("flow", def.Name), zap.String("subject", c.subjectId),
		zap.Int("step", idx), zap.String("step_name", stepErr.StepName), zap.Error(cause))
	c.engine.collector.RecordStepFailure(def.Name, c.subjectId, stepErr.StepName, idx, cause.Error())

	c.state.CurrentStep = idx
	c.state.IsRunning = false
	c.state.MarkCompleted(false)
	c.state.ParkedAt = nil
	c.state.LastError = cause.Error()
	if err := c.save(ctx); err != nil {
		logger.Error("could not persist failed flow", zap.String("flow", def.Name), zap.String("subject", c.subjectId), zap.Error(err))
	}
	if def.OnFailure != nil {
		if err := def.OnFailure(ctx, c.stepContext(idx), stepErr); err != nil {
			logger.Warn("failure hook failed", zap.String("flow", def.Name), zap.String("subject", c.subjectId), zap.Error(err))
		}
	}
	return &model.Result{Error: "An error occurred: " + cause.Error()}, stepErr
}

func (c *Controller) execute(ctx context.Context, idx int) (sr StepResult, err error) {
	step := c.definition.Steps[idx]
	ctx, span := trace.StartSpan(ctx, "flow.step")
	span.AddAttributes(
		trace.StringAttribute("flow", c.definition.Name),
		trace.StringAttribute("subject", c.subjectId),
		trace.Int64Attribute("step", int64(idx)),
		trace.StringAttribute("step_name", step.Name()),
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in step %s: %v", step.Name(), r)
		}
		if err != nil {
			span.SetStatus(trace.Status{Code: trace.StatusCodeUnknown, Message: err.Error()})
		} else {
			c.engine.collector.RecordStepSuccess(c.definition.Name, c.subjectId, step.Name(), idx, c.state.Data)
		}
		span.End()
	}()

	logger.Debug("executing step", zap.String("flow", c.definition.Name), zap.String("subject", c.subjectId),
		zap.Int("step", idx), zap.String("step_name", step.Name()))
	sr, err = step.Execute(ctx, c.stepContext(idx))
	return sr, err
}

func (c *Controller) stepContext(idx int) *StepContext {
	if c.state.Data == nil {
		c.state.Data = make(map[string]any)
	}
	return &StepContext{
		Kind:      c.definition.Name,
		SubjectId: c.subjectId,
		Step:      idx,
		Data:      c.state.Data,
		Messenger: c.engine.messenger,
		subjects:  c.engine.subjects,
	}
}

func (c *Controller) load(ctx context.Context) error {
	st, err := c.engine.flowDao.GetFlowState(ctx, c.definition.Name, c.subjectId)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			logger.Error("error loading flow state", zap.String("flow", c.definition.Name), zap.String("subject", c.subjectId), zap.Error(err))
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		c.state = model.NewFlowState(c.definition.Name, c.subjectId)
		return c.save(ctx)
	}
	if st.Data == nil {
		st.Data = make(map[string]any)
	}
	st.FlowKind = c.definition.Name
	st.SubjectId = c.subjectId
	if st.CurrentStep < 0 {
		st.CurrentStep = 0
	}
	if st.CurrentStep > len(c.definition.Steps) {
		st.CurrentStep = len(c.definition.Steps)
	}
	c.state = st
	return nil
}

func (c *Controller) save(ctx context.Context) error {
	if err := c.engine.flowDao.SaveFlowState(ctx, c.state); err != nil {
		logger.Error("error saving flow state", zap.String("flow", c.definition.Name), zap.String("subject", c.subjectId), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func outcomeOf(err error) string {
	var stepErr *StepExecutionError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &stepErr):
		return "step_failed"
	case errors.Is(err, ErrNotRunning):
		return "not_running"
	case errors.Is(err, ErrInvalidCommand):
		return "invalid_command"
	case errors.Is(err, ErrSubjectNotFound):
		return "subject_not_found"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
