package integration

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/luximus/flowbot/client/google"
	"github.com/luximus/flowbot/client/letta"
	"github.com/luximus/flowbot/client/wpp"
	"github.com/luximus/flowbot/flow"
	"github.com/luximus/flowbot/logger"
	"github.com/luximus/flowbot/model"
)

const FLOW_WHATSAPP = "whatsapp_integration"
const FLOW_GOOGLE = "google_integration"
const FLOW_CREATE_AGENTS = "create_agents"

// Values of the user's integration_is_running marker.
const MARKER_WHATSAPP = "whatsapp"
const MARKER_GOOGLE = "google_calendar"
const MARKER_CREATE_AGENTS = "create_agents"

var markers = map[string]string{
	MARKER_WHATSAPP:      FLOW_WHATSAPP,
	MARKER_GOOGLE:        FLOW_GOOGLE,
	MARKER_CREATE_AGENTS: FLOW_CREATE_AGENTS,
}

// FlowForMarker maps an integration_is_running marker onto the flow kind it belongs to.
func FlowForMarker(marker string) (string, bool) {
	kind, ok := markers[marker]
	return kind, ok
}

func MarkerForFlow(kind string) (string, bool) {
	for marker, k := range markers {
		if k == kind {
			return marker, true
		}
	}
	return "", false
}

// Gateway is the part of the chat gateway API the login flow drives for a user session.
type Gateway interface {
	GenerateToken(ctx context.Context, session string) (string, error)
	StartSession(ctx context.Context, session string, token string) (*wpp.SessionStatus, error)
	SessionStatus(ctx context.Context, session string, token string) (*wpp.SessionStatus, error)
}

type Agents interface {
	CreateAgent(ctx context.Context, req letta.CreateAgentRequest) (*letta.Agent, error)
	HumanBlockId(ctx context.Context, agentId string) (string, error)
	OnboardingAgentId(ctx context.Context, phone string) (string, error)
	SendMessage(ctx context.Context, agentId string, text string) (string, error)
}

type Authorizer interface {
	AuthCodeURL(state string) string
	Refresh(ctx context.Context, tokens google.Tokens) (google.Tokens, error)
	ProbeCalendar(ctx context.Context, tokens google.Tokens) error
}

type StateIssuer interface {
	Generate(userId string) (string, error)
}

type Shortener interface {
	Create(ctx context.Context, longURL string) (string, error)
}

// Polling bounds the in-step waits on the chat gateway.
type Polling struct {
	Interval time.Duration
	Attempts uint64
}

type Dependencies struct {
	Gateway    Gateway
	Agents     Agents
	Authorizer Authorizer
	States     StateIssuer
	Links      Shortener
	Poll       Polling
}

func Definitions(deps Dependencies) []*flow.Definition {
	return []*flow.Definition{
		whatsappDefinition(deps),
		googleDefinition(deps),
		createAgentsDefinition(deps),
	}
}

func Register(registry *flow.Registry, deps Dependencies) error {
	for _, def := range Definitions(deps) {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

var errNotReady = errors.New("not ready")

// until calls fn every Interval until it reports done or Attempts run out. Errors from fn are
// retried like a not-ready answer; the last one is returned when nothing succeeded.
func (p Polling) until(ctx context.Context, fn func() (bool, error)) (bool, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), p.Attempts), ctx)
	var done bool
	err := backoff.Retry(func() error {
		ok, err := fn()
		if err != nil {
			return err
		}
		if !ok {
			return errNotReady
		}
		done = true
		return nil
	}, b)
	if done {
		return true, nil
	}
	if errors.Is(err, errNotReady) {
		return false, nil
	}
	return false, err
}

func clearMarker(ctx context.Context, sc *flow.StepContext) error {
	_, err := sc.UpdateUser(ctx, model.UserUpdate{IntegrationRunning: model.String("")})
	return err
}

// tellOnboardingAgent forwards a system note to the user's onboarding agent. The agent is a
// side channel, so failures are only logged.
func tellOnboardingAgent(ctx context.Context, agents Agents, sc *flow.StepContext, text string) {
	user, err := sc.User(ctx)
	if err != nil {
		logger.Warn("could not load user for agent message", zap.String("subject", sc.SubjectId), zap.Error(err))
		return
	}
	agentId, err := agents.OnboardingAgentId(ctx, user.Phone)
	if err != nil {
		logger.Warn("onboarding agent not available", zap.String("subject", sc.SubjectId), zap.Error(err))
		return
	}
	if _, err := agents.SendMessage(ctx, agentId, text); err != nil {
		logger.Warn("could not message onboarding agent", zap.String("agent", agentId), zap.Error(err))
	}
}

// notifyAll sends every text in order and stops at the first failure.
func notifyAll(ctx context.Context, sc *flow.StepContext, texts ...string) error {
	for _, text := range texts {
		if err := sc.Notify(ctx, sc.Render(text)); err != nil {
			return err
		}
	}
	return nil
}
