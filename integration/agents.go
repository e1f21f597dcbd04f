package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luximus/flowbot/client/letta"
	"github.com/luximus/flowbot/flow"
	"github.com/luximus/flowbot/model"
)

const DATA_ONBOARDING_AGENT = "id_onboarding_agent"
const DATA_PROVISIONED_AT = "provisioned_at"

const agentModel = "google_ai/gemini-1.5-pro-latest"
const agentEmbedding = "letta/letta-free"

const onboardingPersona = `- Você fala somente o idioma Português (Brasil) com o usuário.
- Você sempre deve chamar o usuário pelo primeiro nome.
- Você deve sempre ser educado e gentil.
- Você é um assistente de configuração inicial e vai ajudar o usuário a integrar ferramentas no sistema.
- Você deve se apresentar como Luximus.
- Você pode consultar quais integrações já foram feitas através da função verify_integrations_status.
- Para integrar o WhatsApp, chame start_whatsapp_integration e não envie nenhuma mensagem ao usuário, o sistema fará isso.
- Para integrar a conta Google, chame start_google_integration e não envie nenhuma mensagem ao usuário, o sistema fará isso.
- Quando todas as integrações estiverem feitas, informe ao usuário que as configurações iniciais foram concluídas.`

const mainPersona = `- Você fala somente o idioma Português (Brasil) com o usuário.
- Você sempre deve chamar o usuário pelo primeiro nome.
- Você deve se apresentar como Luximus, o agente principal, responsável por gerir todas as necessidades do usuário.
- Salve na core memory informações extremamente importantes e na archival memory as demais.`

const backgroundPersona = `- Você é o agente auxiliar do usuário e trabalha para o agente principal %s.
- Você organiza a memória de longo prazo do usuário e não fala diretamente com ele.`

func sendMessageRules(tools ...string) []letta.ToolRule {
	rules := make([]letta.ToolRule, 0, len(tools))
	for _, tool := range tools {
		rules = append(rules, letta.ToolRule{ToolName: tool, Type: "constrain_child_tools", Children: []string{"send_message"}})
	}
	return rules
}

var memoryTools = []string{"core_memory_append", "archival_memory_insert", "core_memory_replace", "conversation_search", "archival_memory_search"}

func humanBlock(user *model.User) letta.Block {
	value := fmt.Sprintf("- Nome completo do usuário: %s\n- Primeiro nome do usuário: %s\n- Número de telefone do usuário: %s\n",
		user.Name, user.FirstName(), user.Phone)
	return letta.Block{Label: "human", Value: value, Limit: 10000}
}

func onboardingAgentRequest(user *model.User) letta.CreateAgentRequest {
	integrationTools := []string{"verify_integrations_status", "start_whatsapp_integration", "start_google_integration"}
	rules := sendMessageRules(memoryTools...)
	for _, tool := range integrationTools {
		rules = append(rules, letta.ToolRule{ToolName: tool, Type: "exit_loop"})
	}
	return letta.CreateAgentRequest{
		AgentType:        "memgpt_agent",
		Name:             user.Phone + "_onboarding",
		Description:      "Agente que faz as configurações iniciais do sistema para o usuário chamado " + user.Name,
		Tags:             []string{user.Phone, letta.TAG_WORKER, letta.TAG_ONBOARDING},
		Model:            agentModel,
		Embedding:        agentEmbedding,
		IncludeBaseTools: true,
		Tools:            integrationTools,
		ToolRules:        rules,
		MemoryBlocks:     []letta.Block{humanBlock(user), {Label: "persona", Value: onboardingPersona, Limit: 5000}},
		MemoryVariables:  map[string]string{"user_name": user.Name},
	}
}

func mainAgentRequest(user *model.User, humanBlockId string) letta.CreateAgentRequest {
	return letta.CreateAgentRequest{
		AgentType:        "memgpt_agent",
		Name:             user.Phone + "_main",
		Description:      "Agente principal do usuário, responsável por ser o assistente pessoal do usuário chamado " + user.Name,
		Tags:             []string{user.Phone, letta.TAG_MAIN},
		Model:            agentModel,
		Embedding:        agentEmbedding,
		IncludeBaseTools: true,
		ToolRules:        sendMessageRules(memoryTools...),
		BlockIds:         []string{humanBlockId},
		MemoryBlocks:     []letta.Block{{Label: "persona", Value: mainPersona, Limit: 5000}},
		MemoryVariables:  map[string]string{"user_name": user.Name},
	}
}

func backgroundAgentRequest(user *model.User, humanBlockId string, mainAgentId string) letta.CreateAgentRequest {
	return letta.CreateAgentRequest{
		AgentType:   "memgpt_agent",
		Name:        user.Phone + "_background",
		Description: "Agente auxiliar do usuário chamado " + user.Name,
		Tags:        []string{user.Phone, letta.TAG_BACKGROUND},
		Model:       agentModel,
		Embedding:   agentEmbedding,
		Tools: []string{"send_message", "archival_memory_insert", "archival_memory_search",
			"conversation_search", "send_message_to_agent_async"},
		BlockIds:        []string{humanBlockId},
		MemoryBlocks:    []letta.Block{{Label: "persona", Value: fmt.Sprintf(backgroundPersona, mainAgentId), Limit: 5000}},
		MemoryVariables: map[string]string{"user_name": user.Name},
	}
}

func createAgentsDefinition(deps Dependencies) *flow.Definition {
	a := &agentSteps{deps: deps}
	return &flow.Definition{
		Name: FLOW_CREATE_AGENTS,
		Steps: []flow.Step{
			flow.NewStep("create_agents", a.createAgents),
			flow.NewStep("greet", a.greet),
			flow.NewStep("record_provisioning", a.recordProvisioning),
			flow.NewStep("finish", a.finish),
		},
		OnComplete: flow.NOOP,
		OnFailure: func(ctx context.Context, sc *flow.StepContext, cause error) error {
			return clearMarker(ctx, sc)
		},
		UsageHint: UsageHint,
	}
}

type agentSteps struct {
	deps Dependencies
	now  func() time.Time
}

// createAgents provisions the onboarding, main and background agents. A user that already
// has a main agent is left alone, and an existing onboarding agent is reused.
func (a *agentSteps) createAgents(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
	user, err := sc.User(ctx)
	if err != nil {
		return flow.StepResult{}, err
	}
	onboardingId, err := a.deps.Agents.OnboardingAgentId(ctx, user.Phone)
	switch {
	case errors.Is(err, letta.ErrAgentNotFound):
		onboarding, err := a.deps.Agents.CreateAgent(ctx, onboardingAgentRequest(user))
		if err != nil {
			return flow.StepResult{}, err
		}
		onboardingId = onboarding.Id
	case err != nil:
		return flow.StepResult{}, err
	}
	sc.Data[DATA_ONBOARDING_AGENT] = onboardingId
	if len(user.MainAgentId) > 0 {
		return flow.StepResult{Message: "Step 1 completed: agents already provisioned", AutoContinue: true}, nil
	}

	humanBlockId, err := a.deps.Agents.HumanBlockId(ctx, onboardingId)
	if err != nil {
		return flow.StepResult{}, err
	}
	main, err := a.deps.Agents.CreateAgent(ctx, mainAgentRequest(user, humanBlockId))
	if err != nil {
		return flow.StepResult{}, err
	}
	if _, err := a.deps.Agents.CreateAgent(ctx, backgroundAgentRequest(user, humanBlockId, main.Id)); err != nil {
		return flow.StepResult{}, err
	}
	if _, err := sc.UpdateUser(ctx, model.UserUpdate{MainAgentId: model.String(main.Id)}); err != nil {
		return flow.StepResult{}, err
	}
	return flow.StepResult{Message: "Step 1 completed", AutoContinue: true}, nil
}

func (a *agentSteps) greet(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
	if _, err := sc.User(ctx); err != nil {
		return flow.StepResult{}, err
	}
	agentId := sc.String(DATA_ONBOARDING_AGENT)
	if len(agentId) == 0 {
		return flow.StepResult{}, fmt.Errorf("onboarding agent id missing")
	}
	reply, err := a.deps.Agents.SendMessage(ctx, agentId, sc.Render(agentNewUser))
	if err != nil {
		return flow.StepResult{}, err
	}
	if len(strings.TrimSpace(reply)) > 0 {
		if err := sc.Notify(ctx, reply); err != nil {
			return flow.StepResult{}, err
		}
	}
	return flow.StepResult{Message: "Step 2 completed", AutoContinue: true}, nil
}

func (a *agentSteps) recordProvisioning(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
	now := time.Now
	if a.now != nil {
		now = a.now
	}
	sc.Data[DATA_PROVISIONED_AT] = now().UTC().Format(time.RFC3339)
	return flow.StepResult{Message: "Step 3 completed", AutoContinue: true}, nil
}

func (a *agentSteps) finish(ctx context.Context, sc *flow.StepContext) (flow.StepResult, error) {
	if err := clearMarker(ctx, sc); err != nil {
		return flow.StepResult{}, err
	}
	return flow.StepResult{Message: "Step 4 completed", AutoContinue: true}, nil
}
