package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luximus/flowbot/client/google"
	"github.com/luximus/flowbot/client/letta"
	"github.com/luximus/flowbot/flow"
	"github.com/luximus/flowbot/integration"
	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
)

func message(from string, body string) model.WebhookEvent {
	return model.WebhookEvent{Event: model.EVENT_ON_MESSAGE, Session: "principal", From: from, NotifyName: "João Souza", Body: body}
}

func TestWebhook(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, env *testEnv){
		"unknown sender becomes a user":  testWebhookCreatesUser,
		"message routed to running flow": testWebhookRoutesMessage,
		"foreign session and groups":     testWebhookIgnored,
		"mobile disconnect":              testWebhookDisconnect,
		"other events":                   testWebhookOtherEvent,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, newTestEnv(t))
		})
	}
}

func testWebhookCreatesUser(t *testing.T, env *testEnv) {
	ctx := context.Background()
	res, err := env.svc.HandleWebhook(ctx, message("5521988887777@c.us", "oi"))
	require.NoError(t, err)
	assert.Nil(t, res)

	user, err := env.users.GetUserByPhone(ctx, "5521988887777")
	require.NoError(t, err)
	assert.Equal(t, "João Souza", user.Name)
	assert.True(t, user.IsActive)
}

func testWebhookRoutesMessage(t *testing.T, env *testEnv) {
	ctx := context.Background()
	res, err := env.svc.StartIntegration(ctx, "agent-main", integration.FLOW_WHATSAPP)
	require.NoError(t, err)
	assert.Equal(t, "first", res.Message)
	assert.Equal(t, integration.MARKER_WHATSAPP, env.reloadUser(t).IntegrationRunning)

	res, err = env.svc.HandleWebhook(ctx, message("5511999990000@c.us", "continuar"))
	require.NoError(t, err)
	assert.Equal(t, "waiting", res.Message)

	_, err = env.svc.HandleWebhook(ctx, message("5511999990000@c.us", "qualquer coisa"))
	require.ErrorIs(t, err, flow.ErrInvalidCommand)
}

func testWebhookIgnored(t *testing.T, env *testEnv) {
	ctx := context.Background()
	ev := message("5521988887777@c.us", "oi")
	ev.Session = "info_agent_5511999990000"
	res, err := env.svc.HandleWebhook(ctx, ev)
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = env.svc.HandleWebhook(ctx, message("120363025@g.us", "oi"))
	require.NoError(t, err)
	assert.Nil(t, res)

	_, err = env.users.GetUserByPhone(ctx, "5521988887777")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func testWebhookDisconnect(t *testing.T, env *testEnv) {
	ctx := context.Background()
	_, err := env.users.UpdateUser(ctx, env.user.Id, model.UserUpdate{WhatsappIntegration: model.Bool(true)})
	require.NoError(t, err)

	ev := model.WebhookEvent{Event: model.EVENT_STATUS_FIND, Session: "info_agent_5511999990000", Status: model.STATUS_DISCONNECTED_MOBILE}
	_, err = env.svc.HandleWebhook(ctx, ev)
	require.NoError(t, err)
	assert.False(t, env.reloadUser(t).WhatsappIntegration)
	assert.Equal(t, []string{agentWhatsappDisconnected}, env.agents.messages)

	ev.Status = "inChat"
	_, err = env.svc.HandleWebhook(ctx, ev)
	require.NoError(t, err)
	assert.Len(t, env.agents.messages, 1)
}

func testWebhookOtherEvent(t *testing.T, env *testEnv) {
	res, err := env.svc.HandleWebhook(context.Background(), model.WebhookEvent{Event: "onack"})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestOAuthCallback(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.HandleOAuthCallback(ctx, "", "good-code")
	require.ErrorIs(t, err, ErrMissingParams)
	_, err = env.svc.HandleOAuthCallback(ctx, "forged", "good-code")
	require.ErrorIs(t, err, google.ErrInvalidState)

	_, err = env.svc.StartIntegration(ctx, "agent-main", integration.FLOW_GOOGLE)
	require.NoError(t, err)
	_, err = env.svc.HandleOAuthCallback(ctx, "state-"+env.user.Id, "bad-code")
	require.Error(t, err)

	res, err := env.svc.HandleOAuthCallback(ctx, "state-"+env.user.Id, "good-code")
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, "tokens received", res.Message)

	user := env.reloadUser(t)
	assert.Equal(t, "access", user.GoogleToken)
	assert.Equal(t, "refresh", user.GoogleRefreshToken)
	assert.Empty(t, user.IntegrationRunning)
}

func TestAgentTools(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.StartIntegration(ctx, "", integration.FLOW_GOOGLE)
	require.ErrorIs(t, err, ErrMissingParams)
	_, err = env.svc.StartIntegration(ctx, "agent-unknown", integration.FLOW_GOOGLE)
	require.ErrorIs(t, err, letta.ErrAgentNotFound)
	_, err = env.svc.StartIntegration(ctx, "agent-main", "billing")
	require.ErrorIs(t, err, ErrUnknownMarker)

	status, err := env.svc.VerifyStatus(ctx, "agent-main")
	require.NoError(t, err)
	assert.Equal(t, STATUS_PENDING, status.Status)
	assert.False(t, status.Integrations["whatsapp"])

	_, err = env.users.UpdateUser(ctx, env.user.Id, model.UserUpdate{
		WhatsappIntegration:       model.Bool(true),
		GoogleCalendarIntegration: model.Bool(true),
		AppleCalendarIntegration:  model.Bool(true),
		EmailIntegration:          model.Bool(true),
	})
	require.NoError(t, err)
	status, err = env.svc.VerifyStatus(ctx, "agent-main")
	require.NoError(t, err)
	assert.Equal(t, STATUS_COMPLETED, status.Status)
	assert.Len(t, status.Integrations, 4)
}

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.RegisterUser(ctx, &model.User{Name: "Ana", Phone: "11999990000"})
	require.ErrorIs(t, err, ErrInvalidPhone)

	user, err := env.svc.RegisterUser(ctx, &model.User{Name: "Ana Lima", Phone: "5531977776666"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.Id)
	assert.Empty(t, user.IntegrationRunning)

	st, err := env.svc.FlowState(ctx, integration.FLOW_CREATE_AGENTS, user.Id)
	require.NoError(t, err)
	assert.Equal(t, model.COMPLETED, st.Status())
}

func TestCommand(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	subject := env.user.Id

	res, err := env.svc.Command(ctx, integration.FLOW_WHATSAPP, subject, "start", model.FlowCommandRequest{Data: map[string]any{"origin": "admin"}})
	require.NoError(t, err)
	assert.Equal(t, 1, *res.CurrentStep)

	res, err = env.svc.Command(ctx, integration.FLOW_WHATSAPP, subject, "message", model.FlowCommandRequest{Message: "ok"})
	require.NoError(t, err)
	assert.Equal(t, "waiting", res.Message)

	res, err = env.svc.Command(ctx, integration.FLOW_WHATSAPP, subject, "deliver", model.FlowCommandRequest{Data: map[string]any{"tokens": map[string]any{"token": "t"}}})
	require.NoError(t, err)
	assert.True(t, res.Completed)

	st, err := env.svc.FlowState(ctx, integration.FLOW_WHATSAPP, subject)
	require.NoError(t, err)
	assert.Equal(t, "admin", st.Data["origin"])

	_, err = env.svc.Command(ctx, integration.FLOW_WHATSAPP, subject, "pause", model.FlowCommandRequest{})
	require.ErrorIs(t, err, flow.ErrInvalidCommand)
	_, err = env.svc.Command(ctx, "billing", subject, "start", model.FlowCommandRequest{})
	require.ErrorIs(t, err, flow.ErrUnknownFlow)
}
