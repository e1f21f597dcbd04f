package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luximus/flowbot/client/google"
	"github.com/luximus/flowbot/client/letta"
	"github.com/luximus/flowbot/flow"
	"github.com/luximus/flowbot/integration"
	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
	"github.com/luximus/flowbot/persistence/memory"
	"github.com/luximus/flowbot/persistence/sqlite"
	"github.com/luximus/flowbot/util"
)

type fakeAgents struct {
	mu       sync.Mutex
	phones   map[string]string
	messages []string
}

func (a *fakeAgents) PhoneTag(ctx context.Context, agentId string) (string, error) {
	phone, ok := a.phones[agentId]
	if !ok {
		return "", letta.ErrAgentNotFound
	}
	return phone, nil
}

func (a *fakeAgents) OnboardingAgentId(ctx context.Context, phone string) (string, error) {
	return "agent-onboarding", nil
}

func (a *fakeAgents) SendMessage(ctx context.Context, agentId string, text string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, text)
	return "", nil
}

type fakeExchanger struct{}

func (fakeExchanger) Exchange(ctx context.Context, code string) (google.Tokens, error) {
	if code != "good-code" {
		return google.Tokens{}, errors.New("invalid_grant")
	}
	return google.Tokens{Token: "access", RefreshToken: "refresh"}, nil
}

type fakeStates struct{}

func (fakeStates) Parse(state string) (string, error) {
	if len(state) < 7 || state[:6] != "state-" {
		return "", google.ErrInvalidState
	}
	return state[6:], nil
}

type nullMessenger struct{}

func (nullMessenger) SendText(ctx context.Context, phone string, text string) error { return nil }

func (nullMessenger) SendImage(ctx context.Context, phone string, image flow.Image) error { return nil }

// testFlows stands in for the integration flows: one pausing step followed by a step that
// waits for tokens or a text.
func testFlows() []*flow.Definition {
	pause := flow.NewStep("first", func(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
		return flow.StepResult{Message: "first"}, nil
	})
	awaitTokens := flow.NewStep("await", func(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
		if _, ok := google.TokensFromData(sc.Data[integration.DATA_TOKENS]); !ok {
			return flow.StepResult{Message: "waiting", Hold: true}, nil
		}
		return flow.StepResult{Message: "tokens received", AutoContinue: true}, nil
	})
	finish := flow.NewStep("finish", func(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
		_, err := sc.UpdateUser(ctx, model.UserUpdate{IntegrationRunning: model.String("")})
		return flow.StepResult{AutoContinue: true}, err
	})
	var defs []*flow.Definition
	for _, name := range []string{integration.FLOW_WHATSAPP, integration.FLOW_GOOGLE, integration.FLOW_CREATE_AGENTS} {
		defs = append(defs, &flow.Definition{Name: name, Steps: []flow.Step{pause, awaitTokens, finish}})
	}
	defs[2].Steps = []flow.Step{finish}
	return defs
}

type testEnv struct {
	svc    *IntegrationService
	engine *flow.Engine
	users  persistence.UserDao
	agents *fakeAgents
	user   *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Connect(ctx, filepath.Join(t.TempDir(), "flowbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	registry := flow.NewRegistry()
	for _, def := range testFlows() {
		require.NoError(t, registry.Register(def))
	}
	users := sqlite.NewSqliteUserDao(db)
	engine := flow.NewEngine(flow.Dependencies{
		Registry:  registry,
		FlowDao:   memory.NewMemoryFlowDao(time.Hour, util.NewJsonEncoderDecoder[model.FlowState]()),
		Subjects:  users,
		Messenger: nullMessenger{},
	})
	env := &testEnv{
		engine: engine,
		users:  users,
		agents: &fakeAgents{phones: map[string]string{"agent-main": "5511999990000"}},
		user:   &model.User{Name: "Maria Silva", Phone: "5511999990000"},
	}
	require.NoError(t, users.CreateUser(ctx, env.user))
	env.svc = NewIntegrationService(IntegrationServiceConfig{
		Engine:           engine,
		Users:            users,
		Agents:           env.agents,
		Exchanger:        fakeExchanger{},
		States:           fakeStates{},
		PrincipalSession: "principal",
	})
	return env
}

func (env *testEnv) reloadUser(t *testing.T) *model.User {
	t.Helper()
	u, err := env.users.GetUser(context.Background(), env.user.Id)
	require.NoError(t, err)
	return u
}
