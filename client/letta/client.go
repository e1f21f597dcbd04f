package letta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	c "github.com/patrickmn/go-cache"

	"github.com/luximus/flowbot/logger"
	"go.uber.org/zap"
)

const TAG_WORKER = "worker"
const TAG_ONBOARDING = "onboarding"
const TAG_MAIN = "main"
const TAG_BACKGROUND = "background"

const defaultReply = "Ok, processei essa informação!"

var ErrAgentNotFound = errors.New("agent not found")

var digits = regexp.MustCompile(`\d+`)

type Config struct {
	BaseURL  string
	Password string
	Timeout  time.Duration
	// CacheTTL bounds how long a phone to onboarding agent lookup is reused.
	CacheTTL time.Duration
}

type Block struct {
	Id    string `json:"id,omitempty"`
	Label string `json:"label"`
	Value string `json:"value,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type Agent struct {
	Id     string   `json:"id"`
	Name   string   `json:"name"`
	Tags   []string `json:"tags"`
	Memory struct {
		Blocks []Block `json:"blocks"`
	} `json:"memory"`
}

type ToolRule struct {
	ToolName string   `json:"tool_name"`
	Type     string   `json:"type"`
	Children []string `json:"children,omitempty"`
}

type CreateAgentRequest struct {
	AgentType        string            `json:"agent_type,omitempty"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Tags             []string          `json:"tags"`
	System           string            `json:"system,omitempty"`
	Model            string            `json:"model,omitempty"`
	Embedding        string            `json:"embedding,omitempty"`
	IncludeBaseTools bool              `json:"include_base_tools"`
	Tools            []string          `json:"tools,omitempty"`
	ToolRules        []ToolRule        `json:"tool_rules,omitempty"`
	MemoryBlocks     []Block           `json:"memory_blocks,omitempty"`
	BlockIds         []string          `json:"block_ids,omitempty"`
	MemoryVariables  map[string]string `json:"memory_variables,omitempty"`
}

type Client struct {
	conf  Config
	http  *http.Client
	cache *c.Cache
}

func NewClient(conf Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := conf.Timeout
		if timeout <= 0 {
			timeout = time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	ttl := conf.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Client{
		conf:  conf,
		http:  httpClient,
		cache: c.New(ttl, 2*ttl),
	}
}

func (cl *Client) CreateAgent(ctx context.Context, req CreateAgentRequest) (*Agent, error) {
	var agent Agent
	if err := cl.do(ctx, http.MethodPost, "/v1/agents/", req, &agent); err != nil {
		return nil, fmt.Errorf("create agent %s: %w", req.Name, err)
	}
	return &agent, nil
}

func (cl *Client) GetAgent(ctx context.Context, agentId string) (*Agent, error) {
	var agent Agent
	if err := cl.do(ctx, http.MethodGet, "/v1/agents/"+url.PathEscape(agentId), nil, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// ListAgents returns the agents carrying every one of tags.
func (cl *Client) ListAgents(ctx context.Context, tags ...string) ([]Agent, error) {
	q := url.Values{}
	for _, tag := range tags {
		q.Add("tags", tag)
	}
	q.Set("match_all_tags", "true")
	var agents []Agent
	if err := cl.do(ctx, http.MethodGet, "/v1/agents/?"+q.Encode(), nil, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// OnboardingAgentId finds the onboarding agent provisioned for phone.
func (cl *Client) OnboardingAgentId(ctx context.Context, phone string) (string, error) {
	key := "onboarding:" + phone
	if id, found := cl.cache.Get(key); found {
		return id.(string), nil
	}
	agents, err := cl.ListAgents(ctx, phone, TAG_WORKER, TAG_ONBOARDING)
	if err != nil {
		return "", err
	}
	if len(agents) == 0 {
		return "", fmt.Errorf("%w: onboarding agent for %s", ErrAgentNotFound, phone)
	}
	cl.cache.SetDefault(key, agents[0].Id)
	return agents[0].Id, nil
}

// PhoneTag returns the first numeric tag of the agent, which is the owner's phone.
func (cl *Client) PhoneTag(ctx context.Context, agentId string) (string, error) {
	agent, err := cl.GetAgent(ctx, agentId)
	if err != nil {
		return "", err
	}
	for _, tag := range agent.Tags {
		if digits.MatchString(tag) {
			return tag, nil
		}
	}
	return "", fmt.Errorf("agent %s has no phone tag", agentId)
}

func (cl *Client) HumanBlockId(ctx context.Context, agentId string) (string, error) {
	agent, err := cl.GetAgent(ctx, agentId)
	if err != nil {
		return "", err
	}
	for _, block := range agent.Memory.Blocks {
		if block.Label == "human" {
			return block.Id, nil
		}
	}
	return "", fmt.Errorf("agent %s has no human block", agentId)
}

type messageResponse struct {
	Messages []struct {
		MessageType string `json:"message_type"`
		Content     string `json:"content"`
		ToolCall    *struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"tool_call,omitempty"`
	} `json:"messages"`
}

// SendMessage posts text as a user message and returns the agent's final reply.
func (cl *Client) SendMessage(ctx context.Context, agentId string, text string) (string, error) {
	req := map[string]any{
		"messages": []map[string]string{{"role": "user", "content": text}},
	}
	var res messageResponse
	if err := cl.do(ctx, http.MethodPost, "/v1/agents/"+url.PathEscape(agentId)+"/messages", req, &res); err != nil {
		return "", err
	}
	for _, msg := range res.Messages {
		switch msg.MessageType {
		case "assistant_message":
			return msg.Content, nil
		case "tool_call_message":
			if msg.ToolCall == nil || len(msg.ToolCall.Arguments) == 0 {
				continue
			}
			var args struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal([]byte(msg.ToolCall.Arguments), &args); err != nil {
				logger.Warn("could not decode tool call arguments", zap.String("agent", agentId), zap.Error(err))
				continue
			}
			if len(args.Message) == 0 {
				return defaultReply, nil
			}
			return args.Message, nil
		}
	}
	return "", fmt.Errorf("agent %s returned no reply", agentId)
}

func (cl *Client) do(ctx context.Context, method string, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(cl.conf.BaseURL, "/")+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(cl.conf.Password) > 0 {
		req.Header.Set("X-BARE-PASSWORD", cl.conf.Password)
	}
	resp, err := cl.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, path)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("letta %s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
