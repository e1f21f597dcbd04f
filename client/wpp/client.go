package wpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luximus/flowbot/logger"
	"go.uber.org/zap"
)

const STATUS_QRCODE = "QRCODE"
const STATUS_CONNECTED = "Connected"

type Config struct {
	BaseURL          string
	SecretKey        string
	PrincipalSession string
	PrincipalToken   string
	WebhookURL       string
	Timeout          time.Duration
	MaxRetries       uint64
}

// APIError is returned for any non 2xx response from the gateway.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wpp %s: status %d: %s", e.Path, e.StatusCode, e.Body)
}

type Client struct {
	conf Config
	http *http.Client
}

func NewClient(conf Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := conf.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{conf: conf, http: httpClient}
}

// Principal is the bot's own session, used to talk to every user.
func (c *Client) Principal() *Session {
	return c.Session(c.conf.PrincipalSession, c.conf.PrincipalToken)
}

func (c *Client) Session(name string, token string) *Session {
	return &Session{client: c, name: name, token: token}
}

func (c *Client) do(ctx context.Context, method string, path string, token string, in any, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return err
		}
	}
	operation := func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.conf.BaseURL, "/")+path, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if len(token) > 0 {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 300 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Path: path, Body: string(respBody)}
			if resp.StatusCode < 500 {
				return backoff.Permanent(apiErr)
			}
			return apiErr
		}
		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return backoff.Permanent(fmt.Errorf("wpp %s: decode response: %w", path, err))
		}
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.conf.MaxRetries), ctx)
	err := backoff.RetryNotify(operation, b, func(err error, wait time.Duration) {
		logger.Warn("wpp request failed, retrying", zap.String("path", path), zap.Duration("wait", wait), zap.Error(err))
	})
	return err
}

func sessionPath(session string, rest ...string) string {
	parts := append([]string{"", "api", url.PathEscape(session)}, rest...)
	return strings.Join(parts, "/")
}

func (c *Client) GenerateToken(ctx context.Context, session string) (string, error) {
	return c.Session(session, "").GenerateToken(ctx)
}

func (c *Client) StartSession(ctx context.Context, session string, token string) (*SessionStatus, error) {
	return c.Session(session, token).Start(ctx, false)
}

func (c *Client) SessionStatus(ctx context.Context, session string, token string) (*SessionStatus, error) {
	return c.Session(session, token).Status(ctx)
}
