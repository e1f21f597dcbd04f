package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
	"github.com/luximus/flowbot/util"
)

// StepResult is what a step reports back to the controller.
//
// AutoContinue runs the next step immediately. Otherwise the flow parks after this step and
// waits for an external continue. Hold parks the flow on this same step, for steps that are
// waiting on data some other request has not delivered yet.
type StepResult struct {
	Message      string
	AutoContinue bool
	Hold         bool
}

type Step interface {
	Name() string
	Execute(ctx context.Context, sc *StepContext) (StepResult, error)
}

type StepFunc func(ctx context.Context, sc *StepContext) (StepResult, error)

type namedStep struct {
	name string
	fn   StepFunc
}

func NewStep(name string, fn StepFunc) Step {
	return &namedStep{name: name, fn: fn}
}

func (s *namedStep) Name() string {
	return s.name
}

func (s *namedStep) Execute(ctx context.Context, sc *StepContext) (StepResult, error) {
	return s.fn(ctx, sc)
}

type Image struct {
	Base64   string
	Filename string
	Caption  string
}

// Messenger delivers outbound chat messages to a subject's phone.
type Messenger interface {
	SendText(ctx context.Context, phone string, text string) error
	SendImage(ctx context.Context, phone string, image Image) error
}

// Subjects is the domain-record repository a flow reads and updates.
type Subjects interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, update model.UserUpdate) (*model.User, error)
}

// StepContext is handed to every step and hook. Data is the flow's own data bag; writes to
// it are persisted once the step returns.
type StepContext struct {
	Kind      string
	SubjectId string
	Step      int
	Data      map[string]any
	Messenger Messenger

	subjects Subjects
	user     *model.User
}

// User fetches the subject record once per step.
func (sc *StepContext) User(ctx context.Context) (*model.User, error) {
	if sc.user != nil {
		return sc.user, nil
	}
	user, err := sc.subjects.GetUser(ctx, sc.SubjectId)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSubjectNotFound, sc.SubjectId)
		}
		return nil, err
	}
	sc.user = user
	return user, nil
}

func (sc *StepContext) UpdateUser(ctx context.Context, update model.UserUpdate) (*model.User, error) {
	user, err := sc.subjects.UpdateUser(ctx, sc.SubjectId, update)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSubjectNotFound, sc.SubjectId)
		}
		return nil, err
	}
	sc.user = user
	return user, nil
}

// Notify sends text to the subject's phone.
func (sc *StepContext) Notify(ctx context.Context, text string) error {
	user, err := sc.User(ctx)
	if err != nil {
		return err
	}
	return sc.Messenger.SendText(ctx, user.Phone, text)
}

// Render resolves {$.data.key} and {$.user.first_name} style tokens in tmpl.
func (sc *StepContext) Render(tmpl string) string {
	vars := map[string]any{
		"data": sc.Data,
	}
	if sc.user != nil {
		vars["user"] = map[string]any{
			"id":         sc.user.Id,
			"name":       sc.user.Name,
			"first_name": sc.user.FirstName(),
			"phone":      sc.user.Phone,
		}
	}
	return util.ResolveTemplate(vars, tmpl)
}

func (sc *StepContext) String(key string) string {
	v, ok := sc.Data[key].(string)
	if !ok {
		return ""
	}
	return v
}
