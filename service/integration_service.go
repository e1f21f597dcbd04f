package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/luximus/flowbot/client/google"
	"github.com/luximus/flowbot/flow"
	"github.com/luximus/flowbot/integration"
	"github.com/luximus/flowbot/logger"
	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
)

const agentWhatsappDisconnected = "SYSTEM MESSAGE: O usuário desconectou o Whatsapp do sistema. Pergunte a ele se deseja integrar novamente."

const STATUS_PENDING = "pending"
const STATUS_COMPLETED = "completed"

var (
	ErrInvalidPhone  = errors.New("phone must look like 55DDDNUMBER, e.g. 551199999999")
	ErrMissingParams = errors.New("missing required parameters")
	ErrUnknownMarker = errors.New("flow is not an integration")
)

var phonePattern = regexp.MustCompile(`^55\d{10,11}$`)

var digits = regexp.MustCompile(`\d+`)

// AgentDirectory is the part of the agent host the service needs to map agents onto users.
type AgentDirectory interface {
	PhoneTag(ctx context.Context, agentId string) (string, error)
	OnboardingAgentId(ctx context.Context, phone string) (string, error)
	SendMessage(ctx context.Context, agentId string, text string) (string, error)
}

type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (google.Tokens, error)
}

type StateVerifier interface {
	Parse(state string) (string, error)
}

type IntegrationServiceConfig struct {
	Engine    *flow.Engine
	Users     persistence.UserDao
	Agents    AgentDirectory
	Exchanger CodeExchanger
	States    StateVerifier
	// PrincipalSession, when set, restricts inbound chat messages to the bot's own session.
	PrincipalSession string
}

// IntegrationService routes inbound gateway events, OAuth callbacks and agent tool calls onto
// the integration flows.
type IntegrationService struct {
	engine           *flow.Engine
	users            persistence.UserDao
	agents           AgentDirectory
	exchanger        CodeExchanger
	states           StateVerifier
	principalSession string
}

func NewIntegrationService(conf IntegrationServiceConfig) *IntegrationService {
	return &IntegrationService{
		engine:           conf.Engine,
		users:            conf.Users,
		agents:           conf.Agents,
		exchanger:        conf.Exchanger,
		states:           conf.States,
		principalSession: conf.PrincipalSession,
	}
}

// HandleWebhook processes one chat gateway event. Events other than inbound messages and
// mobile disconnects are ignored and yield a nil result.
func (s *IntegrationService) HandleWebhook(ctx context.Context, ev model.WebhookEvent) (*model.Result, error) {
	switch ev.Event {
	case model.EVENT_ON_MESSAGE:
		return s.onMessage(ctx, ev)
	case model.EVENT_STATUS_FIND:
		return nil, s.onStatusFind(ctx, ev)
	default:
		logger.Debug("ignoring webhook event", zap.String("event", ev.Event), zap.String("session", ev.Session))
		return nil, nil
	}
}

func (s *IntegrationService) onMessage(ctx context.Context, ev model.WebhookEvent) (*model.Result, error) {
	if len(s.principalSession) > 0 && ev.Session != s.principalSession {
		return nil, nil
	}
	if !strings.HasSuffix(ev.From, "@c.us") {
		return nil, nil
	}
	phone := strings.TrimSuffix(ev.From, "@c.us")
	user, err := s.userByPhone(ctx, phone, ev.NotifyName)
	if err != nil {
		return nil, err
	}
	kind, ok := integration.FlowForMarker(user.IntegrationRunning)
	if !ok {
		logger.Debug("no integration running", zap.String("user", user.Id))
		return nil, nil
	}
	controller, err := s.engine.Flow(kind, user.Id)
	if err != nil {
		return nil, err
	}
	return controller.HandleMessage(ctx, ev.Body)
}

func (s *IntegrationService) userByPhone(ctx context.Context, phone string, name string) (*model.User, error) {
	user, err := s.users.GetUserByPhone(ctx, phone)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return nil, err
	}
	user = &model.User{Name: name, Phone: phone}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	logger.Info("created user from inbound message", zap.String("user", user.Id), zap.String("phone", phone))
	return user, nil
}

func (s *IntegrationService) onStatusFind(ctx context.Context, ev model.WebhookEvent) error {
	if ev.Status != model.STATUS_DISCONNECTED_MOBILE {
		return nil
	}
	phone := digits.FindString(ev.Session)
	if len(phone) == 0 {
		return nil
	}
	user, err := s.users.GetUserByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil
		}
		return err
	}
	if _, err := s.users.UpdateUser(ctx, user.Id, model.UserUpdate{WhatsappIntegration: model.Bool(false)}); err != nil {
		return err
	}
	logger.Info("chat session disconnected", zap.String("user", user.Id), zap.String("session", ev.Session))
	s.tellOnboardingAgent(ctx, user.Phone, agentWhatsappDisconnected)
	return nil
}

func (s *IntegrationService) tellOnboardingAgent(ctx context.Context, phone string, text string) {
	agentId, err := s.agents.OnboardingAgentId(ctx, phone)
	if err != nil {
		logger.Warn("onboarding agent not available", zap.String("phone", phone), zap.Error(err))
		return
	}
	if _, err := s.agents.SendMessage(ctx, agentId, text); err != nil {
		logger.Warn("could not message onboarding agent", zap.String("agent", agentId), zap.Error(err))
	}
}

// HandleOAuthCallback verifies the signed state, exchanges the code, stores the tokens on the
// user and hands them to the waiting google flow.
func (s *IntegrationService) HandleOAuthCallback(ctx context.Context, state string, code string) (*model.Result, error) {
	if len(state) == 0 || len(code) == 0 {
		return nil, ErrMissingParams
	}
	userId, err := s.states.Parse(state)
	if err != nil {
		return nil, err
	}
	tokens, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	update := model.UserUpdate{GoogleToken: model.String(tokens.Token), GoogleRefreshToken: model.String(tokens.RefreshToken)}
	if _, err := s.users.UpdateUser(ctx, userId, update); err != nil {
		return nil, err
	}
	controller, err := s.engine.Flow(integration.FLOW_GOOGLE, userId)
	if err != nil {
		return nil, err
	}
	return controller.Deliver(ctx, map[string]any{integration.DATA_TOKENS: tokens})
}

func (s *IntegrationService) userByAgent(ctx context.Context, agentId string) (*model.User, error) {
	if len(agentId) == 0 {
		return nil, ErrMissingParams
	}
	phone, err := s.agents.PhoneTag(ctx, agentId)
	if err != nil {
		return nil, err
	}
	return s.users.GetUserByPhone(ctx, phone)
}

// StartIntegration marks kind as the user's running integration and restarts its flow. The
// user is the one whose phone tags the calling agent.
func (s *IntegrationService) StartIntegration(ctx context.Context, agentId string, kind string) (*model.Result, error) {
	user, err := s.userByAgent(ctx, agentId)
	if err != nil {
		return nil, err
	}
	return s.runIntegration(ctx, user, kind)
}

func (s *IntegrationService) CreateAgents(ctx context.Context, userId string) (*model.Result, error) {
	if len(userId) == 0 {
		return nil, ErrMissingParams
	}
	user, err := s.users.GetUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	return s.runIntegration(ctx, user, integration.FLOW_CREATE_AGENTS)
}

func (s *IntegrationService) runIntegration(ctx context.Context, user *model.User, kind string) (*model.Result, error) {
	marker, ok := integration.MarkerForFlow(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarker, kind)
	}
	controller, err := s.engine.Flow(kind, user.Id)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.UpdateUser(ctx, user.Id, model.UserUpdate{IntegrationRunning: model.String(marker)}); err != nil {
		return nil, err
	}
	logger.Info("starting integration", zap.String("flow", kind), zap.String("user", user.Id))
	return controller.Restart(ctx, nil)
}

func (s *IntegrationService) VerifyStatus(ctx context.Context, agentId string) (*model.IntegrationStatus, error) {
	user, err := s.userByAgent(ctx, agentId)
	if err != nil {
		return nil, err
	}
	status := STATUS_PENDING
	if user.FullyIntegrated() {
		status = STATUS_COMPLETED
	}
	return &model.IntegrationStatus{
		Status: status,
		Integrations: map[string]bool{
			"whatsapp":        user.WhatsappIntegration,
			"google_calendar": user.GoogleCalendarIntegration,
			"apple_calendar":  user.AppleCalendarIntegration,
			"email":           user.EmailIntegration,
		},
	}, nil
}

// RegisterUser creates a user and provisions their agents. A provisioning failure is logged
// and leaves the user in place.
func (s *IntegrationService) RegisterUser(ctx context.Context, user *model.User) (*model.User, error) {
	if !phonePattern.MatchString(user.Phone) {
		return nil, ErrInvalidPhone
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if _, err := s.CreateAgents(ctx, user.Id); err != nil {
		logger.Error("agent provisioning failed", zap.String("user", user.Id), zap.Error(err))
	}
	return s.users.GetUser(ctx, user.Id)
}

// Command runs a raw flow command. Data seeds start, restart and deliver; Message is the text
// of the message command.
func (s *IntegrationService) Command(ctx context.Context, kind string, subjectId string, cmd string, req model.FlowCommandRequest) (*model.Result, error) {
	controller, err := s.engine.Flow(kind, subjectId)
	if err != nil {
		return nil, err
	}
	switch flow.Command(cmd) {
	case flow.CMD_START:
		return controller.Start(ctx, req.Data)
	case flow.CMD_CONTINUE:
		return controller.Continue(ctx)
	case flow.CMD_STOP:
		return controller.Stop(ctx)
	case flow.CMD_RESTART:
		return controller.Restart(ctx, req.Data)
	case flow.CMD_DELIVER:
		return controller.Deliver(ctx, req.Data)
	case flow.CMD_MESSAGE:
		return controller.HandleMessage(ctx, req.Message)
	default:
		return nil, fmt.Errorf("%w: %s", flow.ErrInvalidCommand, cmd)
	}
}

func (s *IntegrationService) FlowState(ctx context.Context, kind string, subjectId string) (*model.FlowState, error) {
	controller, err := s.engine.Flow(kind, subjectId)
	if err != nil {
		return nil, err
	}
	return controller.Load(ctx)
}
