package wpp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/luximus/flowbot/flow"
)

var _ flow.Messenger = new(Session)

type SessionStatus struct {
	Status  string `json:"status"`
	QRCode  string `json:"qrcode,omitempty"`
	Message string `json:"message,omitempty"`
}

// Session is one WPPConnect session, addressed by name and authorised by its bearer token.
type Session struct {
	client *Client
	name   string
	token  string
}

func (s *Session) Name() string {
	return s.name
}

func (s *Session) Token() string {
	return s.token
}

// GenerateToken asks the gateway for a bearer token and keeps it on the session.
func (s *Session) GenerateToken(ctx context.Context) (string, error) {
	if len(s.client.conf.SecretKey) == 0 {
		return "", fmt.Errorf("wpp secret key not configured")
	}
	var res struct {
		Token string `json:"token"`
	}
	path := sessionPath(s.name, url.PathEscape(s.client.conf.SecretKey), "generate-token")
	if err := s.client.do(ctx, http.MethodPost, path, "", nil, &res); err != nil {
		return "", err
	}
	if len(res.Token) == 0 {
		return "", fmt.Errorf("wpp generate-token: empty token")
	}
	s.token = res.Token
	return res.Token, nil
}

func (s *Session) Start(ctx context.Context, waitQRCode bool) (*SessionStatus, error) {
	req := map[string]any{
		"webhook":    s.client.conf.WebhookURL,
		"waitQrCode": waitQRCode,
	}
	var res SessionStatus
	if err := s.client.do(ctx, http.MethodPost, sessionPath(s.name, "start-session"), s.token, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Session) Status(ctx context.Context) (*SessionStatus, error) {
	var res SessionStatus
	if err := s.client.do(ctx, http.MethodGet, sessionPath(s.name, "status-session"), s.token, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Session) Logout(ctx context.Context) error {
	return s.client.do(ctx, http.MethodPost, sessionPath(s.name, "logout-session"), s.token, nil, nil)
}

func (s *Session) SendText(ctx context.Context, phone string, text string) error {
	req := map[string]any{
		"phone":   phone,
		"isGroup": false,
		"message": text,
	}
	return s.client.do(ctx, http.MethodPost, sessionPath(s.name, "send-message"), s.token, req, nil)
}

func (s *Session) SendImage(ctx context.Context, phone string, image flow.Image) error {
	req := map[string]any{
		"phone":    phone,
		"isGroup":  false,
		"filename": image.Filename,
		"caption":  image.Caption,
		"base64":   image.Base64,
	}
	return s.client.do(ctx, http.MethodPost, sessionPath(s.name, "send-image"), s.token, req, nil)
}
