package model

const EVENT_ON_MESSAGE = "onmessage"
const EVENT_STATUS_FIND = "status-find"
const STATUS_DISCONNECTED_MOBILE = "desconnectedMobile"

// WebhookEvent is the subset of the chat gateway callback payload the bot consumes.
type WebhookEvent struct {
	Event      string `json:"event"`
	Session    string `json:"session"`
	From       string `json:"from"`
	NotifyName string `json:"notifyName"`
	Body       string `json:"body"`
	Status     string `json:"status"`
}

type IntegrationStatus struct {
	Status       string          `json:"status"`
	Integrations map[string]bool `json:"integrations"`
}
