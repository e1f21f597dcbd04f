package model

import (
	"strings"
	"time"
)

// User is the domain record a flow instance acts on behalf of.
type User struct {
	Id                        string    `json:"id"`
	Name                      string    `json:"name"`
	Phone                     string    `json:"phone"`
	Cpf                       string    `json:"cpf,omitempty"`
	IsActive                  bool      `json:"is_active"`
	CreatedAt                 time.Time `json:"created_at"`
	MainAgentId               string    `json:"id_main_agent,omitempty"`
	WppSessionId              string    `json:"id_session_wpp,omitempty"`
	WppToken                  string    `json:"-"`
	GoogleToken               string    `json:"-"`
	GoogleRefreshToken        string    `json:"-"`
	WhatsappIntegration       bool      `json:"whatsapp_integration"`
	GoogleCalendarIntegration bool      `json:"google_calendar_integration"`
	AppleCalendarIntegration  bool      `json:"apple_calendar_integration"`
	EmailIntegration          bool      `json:"email_integration"`
	IntegrationRunning        string    `json:"integration_is_running,omitempty"`
}

func (u *User) FirstName() string {
	fields := strings.Fields(u.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (u *User) FullyIntegrated() bool {
	return u.WhatsappIntegration && u.GoogleCalendarIntegration &&
		u.AppleCalendarIntegration && u.EmailIntegration
}

// UserUpdate holds the partial fields of an update; nil fields are left untouched.
type UserUpdate struct {
	Name                      *string
	MainAgentId               *string
	WppSessionId              *string
	WppToken                  *string
	GoogleToken               *string
	GoogleRefreshToken        *string
	WhatsappIntegration       *bool
	GoogleCalendarIntegration *bool
	AppleCalendarIntegration  *bool
	EmailIntegration          *bool
	IntegrationRunning        *string
}

func (u UserUpdate) Apply(user *User) {
	if u.Name != nil {
		user.Name = *u.Name
	}
	if u.MainAgentId != nil {
		user.MainAgentId = *u.MainAgentId
	}
	if u.WppSessionId != nil {
		user.WppSessionId = *u.WppSessionId
	}
	if u.WppToken != nil {
		user.WppToken = *u.WppToken
	}
	if u.GoogleToken != nil {
		user.GoogleToken = *u.GoogleToken
	}
	if u.GoogleRefreshToken != nil {
		user.GoogleRefreshToken = *u.GoogleRefreshToken
	}
	if u.WhatsappIntegration != nil {
		user.WhatsappIntegration = *u.WhatsappIntegration
	}
	if u.GoogleCalendarIntegration != nil {
		user.GoogleCalendarIntegration = *u.GoogleCalendarIntegration
	}
	if u.AppleCalendarIntegration != nil {
		user.AppleCalendarIntegration = *u.AppleCalendarIntegration
	}
	if u.EmailIntegration != nil {
		user.EmailIntegration = *u.EmailIntegration
	}
	if u.IntegrationRunning != nil {
		user.IntegrationRunning = *u.IntegrationRunning
	}
}

func String(s string) *string {
	return &s
}

func Bool(b bool) *bool {
	return &b
}
