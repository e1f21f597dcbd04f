package integration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/luximus/flowbot/client/google"
	"github.com/luximus/flowbot/flow"
	"github.com/luximus/flowbot/logger"
	"github.com/luximus/flowbot/model"
)

// Data keys written by the OAuth callback and the token step.
const DATA_TOKENS = "tokens"
const DATA_CREDENTIALS = "credentials"

var errMissingCredentials = errors.New("credentials not found")

func googleDefinition(deps Dependencies) *flow.Definition {
	g := &googleSteps{deps: deps}
	return &flow.Definition{
		Name: FLOW_GOOGLE,
		Steps: []flow.Step{
			flow.NewStep("send_authorization_link", g.sendAuthorizationLink),
			flow.NewStep("await_tokens", g.awaitTokens),
			flow.NewStep("confirm_calendar", g.confirmCalendar),
			flow.NewStep("finish", g.finish),
		},
		OnComplete: flow.DELETE,
		OnStop:     g.onStop,
		OnFailure:  g.onFailure,
		UsageHint:  UsageHint,
	}
}

type googleSteps struct {
	deps Dependencies
}

func (g *googleSteps) sendAuthorizationLink(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
	user, err := sc.User(ctx)
	if err != nil {
		return flow.StepResult{}, err
	}
	if err := sc.Notify(ctx, sc.Render(textGoogleStarting)); err != nil {
		return flow.StepResult{}, err
	}
	// a fresh link invalidates whatever an earlier run received
	delete(sc.Data, DATA_TOKENS)
	delete(sc.Data, DATA_CREDENTIALS)

	state, err := g.deps.States.Generate(user.Id)
	if err != nil {
		return flow.StepResult{}, fmt.Errorf("generate oauth state: %w", err)
	}
	link, err := g.deps.Links.Create(ctx, g.deps.Authorizer.AuthCodeURL(state))
	if err != nil {
		return flow.StepResult{}, fmt.Errorf("shorten authorization url: %w", err)
	}
	if err := sc.Notify(ctx, fmt.Sprintf(sc.Render(textGoogleLink), link)); err != nil {
		return flow.StepResult{}, err
	}
	return flow.StepResult{Message: "Step 1 completed: Authorization link sent to the user."}, nil
}

func (g *googleSteps) awaitTokens(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
	tokens, ok := google.TokensFromData(sc.Data[DATA_TOKENS])
	if !ok {
		return flow.StepResult{Message: textGoogleWaiting, Hold: true}, nil
	}
	fresh, err := g.deps.Authorizer.Refresh(ctx, tokens)
	if err != nil {
		return flow.StepResult{}, err
	}
	sc.Data[DATA_TOKENS] = fresh
	sc.Data[DATA_CREDENTIALS] = fresh
	return flow.StepResult{Message: "Step 2 completed: Authorization successful.", AutoContinue: true}, nil
}

func (g *googleSteps) confirmCalendar(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
	credentials, ok := google.TokensFromData(sc.Data[DATA_CREDENTIALS])
	if !ok {
		return flow.StepResult{}, errMissingCredentials
	}
	if err := g.deps.Authorizer.ProbeCalendar(ctx, credentials); err != nil {
		return flow.StepResult{}, err
	}
	_, err := sc.UpdateUser(ctx, model.UserUpdate{
		GoogleToken:               model.String(credentials.Token),
		GoogleRefreshToken:        model.String(credentials.RefreshToken),
		GoogleCalendarIntegration: model.Bool(true),
		EmailIntegration:          model.Bool(true),
		AppleCalendarIntegration:  model.Bool(true),
	})
	if err != nil {
		return flow.StepResult{}, err
	}
	if err := sc.Notify(ctx, textGoogleSuccess); err != nil {
		return flow.StepResult{}, err
	}
	tellOnboardingAgent(ctx, g.deps.Agents, sc, agentGoogleSuccess)
	return flow.StepResult{Message: "Step 3 completed: Google Calendar confirmado e integrado.", AutoContinue: true}, nil
}

func (g *googleSteps) finish(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
	if err := clearMarker(ctx, sc); err != nil {
		return flow.StepResult{}, err
	}
	return flow.StepResult{Message: "Google Calendar integration completed successfully!", AutoContinue: true}, nil
}

func (g *googleSteps) onStop(ctx context.Context, sc *flow.StepContext, _ error) error {
	if err := sc.Notify(ctx, textGoogleCanceled); err != nil {
		return err
	}
	tellOnboardingAgent(ctx, g.deps.Agents, sc, agentGoogleCanceled)
	return clearMarker(ctx, sc)
}

func (g *googleSteps) onFailure(ctx context.Context, sc *flow.StepContext, cause error) error {
	if err := sc.Notify(ctx, textGoogleFailure); err != nil {
		logger.Warn("could not notify failure", zap.String("subject", sc.SubjectId), zap.Error(err))
	}
	tellOnboardingAgent(ctx, g.deps.Agents, sc, agentGoogleFailure)
	return clearMarker(ctx, sc)
}
