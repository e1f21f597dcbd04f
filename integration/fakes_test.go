package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luximus/flowbot/client/google"
	"github.com/luximus/flowbot/client/letta"
	"github.com/luximus/flowbot/client/wpp"
	"github.com/luximus/flowbot/flow"
	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
	"github.com/luximus/flowbot/persistence/memory"
	"github.com/luximus/flowbot/persistence/sqlite"
	"github.com/luximus/flowbot/util"
)

type fakeGateway struct {
	mu       sync.Mutex
	token    string
	qrCode   string
	status   string
	sessions []string
}

func (g *fakeGateway) GenerateToken(ctx context.Context, session string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = append(g.sessions, session)
	return g.token, nil
}

func (g *fakeGateway) StartSession(ctx context.Context, session string, token string) (*wpp.SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.qrCode) == 0 {
		return &wpp.SessionStatus{Status: "INITIALIZING"}, nil
	}
	return &wpp.SessionStatus{Status: wpp.STATUS_QRCODE, QRCode: g.qrCode}, nil
}

func (g *fakeGateway) SessionStatus(ctx context.Context, session string, token string) (*wpp.SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &wpp.SessionStatus{Status: "CONNECTED", Message: g.status}, nil
}

type fakeAgents struct {
	mu           sync.Mutex
	onboardingId string
	reply        string
	created      []letta.CreateAgentRequest
	messages     map[string][]string
}

func newFakeAgents(onboardingId string) *fakeAgents {
	return &fakeAgents{onboardingId: onboardingId, reply: "Olá Maria, eu sou o Luximus!", messages: make(map[string][]string)}
}

func (a *fakeAgents) CreateAgent(ctx context.Context, req letta.CreateAgentRequest) (*letta.Agent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.created = append(a.created, req)
	id := fmt.Sprintf("agent-%d", len(a.created))
	if len(req.Tags) > 2 && req.Tags[2] == letta.TAG_ONBOARDING {
		a.onboardingId = id
	}
	return &letta.Agent{Id: id, Name: req.Name, Tags: req.Tags}, nil
}

func (a *fakeAgents) HumanBlockId(ctx context.Context, agentId string) (string, error) {
	return "block-" + agentId, nil
}

func (a *fakeAgents) OnboardingAgentId(ctx context.Context, phone string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.onboardingId) == 0 {
		return "", letta.ErrAgentNotFound
	}
	return a.onboardingId, nil
}

func (a *fakeAgents) SendMessage(ctx context.Context, agentId string, text string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages[agentId] = append(a.messages[agentId], text)
	return a.reply, nil
}

func (a *fakeAgents) Messages(agentId string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages[agentId]...)
}

func (a *fakeAgents) Created() []letta.CreateAgentRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]letta.CreateAgentRequest(nil), a.created...)
}

type fakeAuthorizer struct {
	probeErr error
	probed   []google.Tokens
}

func (f *fakeAuthorizer) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f *fakeAuthorizer) Refresh(ctx context.Context, tokens google.Tokens) (google.Tokens, error) {
	return tokens, nil
}

func (f *fakeAuthorizer) ProbeCalendar(ctx context.Context, tokens google.Tokens) error {
	f.probed = append(f.probed, tokens)
	return f.probeErr
}

type fakeStates struct{}

func (fakeStates) Generate(userId string) (string, error) {
	return "state-" + userId, nil
}

type fakeShortener struct {
	urls []string
}

func (f *fakeShortener) Create(ctx context.Context, longURL string) (string, error) {
	f.urls = append(f.urls, longURL)
	return "https://l.example.com/Ab12cd", nil
}

type recordingMessenger struct {
	mu     sync.Mutex
	texts  []string
	images []flow.Image
}

func (m *recordingMessenger) SendText(ctx context.Context, phone string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}

func (m *recordingMessenger) SendImage(ctx context.Context, phone string, image flow.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = append(m.images, image)
	return nil
}

func (m *recordingMessenger) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

type testEnv struct {
	engine     *flow.Engine
	flows      persistence.FlowDao
	users      persistence.UserDao
	messenger  *recordingMessenger
	gateway    *fakeGateway
	agents     *fakeAgents
	authorizer *fakeAuthorizer
	links      *fakeShortener
	user       *model.User
}

func newTestEnv(t *testing.T, marker string) *testEnv {
	t.Helper()
	return newTestEnvWithAgents(t, marker, newFakeAgents("agent-onboarding"))
}

func newTestEnvWithAgents(t *testing.T, marker string, agents *fakeAgents) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Connect(ctx, filepath.Join(t.TempDir(), "flowbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		flows:      memory.NewMemoryFlowDao(time.Hour, util.NewJsonEncoderDecoder[model.FlowState]()),
		users:      sqlite.NewSqliteUserDao(db),
		messenger:  &recordingMessenger{},
		gateway:    &fakeGateway{token: "wpp-token", qrCode: "iVBORw0KGgo=", status: wpp.STATUS_CONNECTED},
		agents:     agents,
		authorizer: &fakeAuthorizer{},
		links:      &fakeShortener{},
		user:       &model.User{Name: "Maria Silva", Phone: "5511999990000", IntegrationRunning: marker},
	}
	require.NoError(t, env.users.CreateUser(ctx, env.user))

	registry := flow.NewRegistry()
	require.NoError(t, Register(registry, Dependencies{
		Gateway:    env.gateway,
		Agents:     env.agents,
		Authorizer: env.authorizer,
		States:     fakeStates{},
		Links:      env.links,
		Poll:       Polling{Interval: time.Millisecond, Attempts: 3},
	}))
	env.engine = flow.NewEngine(flow.Dependencies{
		Registry:  registry,
		FlowDao:   env.flows,
		Subjects:  env.users,
		Messenger: env.messenger,
	})
	return env
}

func (env *testEnv) controller(t *testing.T, kind string) *flow.Controller {
	t.Helper()
	c, err := env.engine.Flow(kind, env.user.Id)
	require.NoError(t, err)
	return c
}

func (env *testEnv) reloadUser(t *testing.T) *model.User {
	t.Helper()
	u, err := env.users.GetUser(context.Background(), env.user.Id)
	require.NoError(t, err)
	return u
}
