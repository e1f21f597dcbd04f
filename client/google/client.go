package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

const DefaultCalendarProbeURL = "https://www.googleapis.com/calendar/v3/users/me/calendarList?maxResults=1"

var DefaultScopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/gmail.compose",
	"https://www.googleapis.com/auth/gmail.readonly",
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// Endpoint overrides the Google endpoint, for tests.
	Endpoint         *oauth2.Endpoint
	CalendarProbeURL string
}

// Tokens is the credential pair kept in the flow data bag and on the user record.
type Tokens struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

func (t Tokens) oauth2() *oauth2.Token {
	return &oauth2.Token{AccessToken: t.Token, RefreshToken: t.RefreshToken, Expiry: t.Expiry, TokenType: "Bearer"}
}

func fromOauth2(tok *oauth2.Token) Tokens {
	return Tokens{Token: tok.AccessToken, RefreshToken: tok.RefreshToken, Expiry: tok.Expiry}
}

// TokensFromData decodes a Tokens value that went through a JSON round trip as a map.
func TokensFromData(v any) (Tokens, bool) {
	if v == nil {
		return Tokens{}, false
	}
	if t, ok := v.(Tokens); ok {
		return t, len(t.Token) > 0
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Tokens{}, false
	}
	var t Tokens
	if err := json.Unmarshal(raw, &t); err != nil {
		return Tokens{}, false
	}
	return t, len(t.Token) > 0
}

type Client struct {
	oauth    *oauth2.Config
	probeURL string
}

func NewClient(conf Config) *Client {
	endpoint := googleoauth.Endpoint
	if conf.Endpoint != nil {
		endpoint = *conf.Endpoint
	}
	scopes := conf.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	probeURL := conf.CalendarProbeURL
	if len(probeURL) == 0 {
		probeURL = DefaultCalendarProbeURL
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			RedirectURL:  conf.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		probeURL: probeURL,
	}
}

func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"))
}

func (c *Client) Exchange(ctx context.Context, code string) (Tokens, error) {
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return Tokens{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	return fromOauth2(tok), nil
}

// Refresh returns tokens unchanged while they are valid and refreshes expired ones.
func (c *Client) Refresh(ctx context.Context, tokens Tokens) (Tokens, error) {
	tok := tokens.oauth2()
	if tok.Valid() {
		return tokens, nil
	}
	if len(tok.RefreshToken) == 0 {
		return Tokens{}, fmt.Errorf("credentials are invalid and cannot be refreshed")
	}
	fresh, err := c.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		return Tokens{}, fmt.Errorf("refresh credentials: %w", err)
	}
	refreshed := fromOauth2(fresh)
	if len(refreshed.RefreshToken) == 0 {
		refreshed.RefreshToken = tokens.RefreshToken
	}
	return refreshed, nil
}

// ProbeCalendar checks that tokens grant access to the calendar API.
func (c *Client) ProbeCalendar(ctx context.Context, tokens Tokens) error {
	httpClient := c.oauth.Client(ctx, tokens.oauth2())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.probeURL, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("calendar probe: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
