package wpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/luximus/flowbot/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession(t *testing.T) {
	var sent []map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/info_agent_5511/secret/generate-token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	})
	mux.HandleFunc("/api/info_agent_5511/start-session", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "http://bot/webhook", body["webhook"])
		_ = json.NewEncoder(w).Encode(SessionStatus{Status: STATUS_QRCODE, QRCode: "data:image/png;base64,AAA"})
	})
	mux.HandleFunc("/api/info_agent_5511/status-session", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(SessionStatus{Status: "CONNECTED", Message: STATUS_CONNECTED})
	})
	mux.HandleFunc("/api/principal/send-message", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer principal-token", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		sent = append(sent, body)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/api/principal/send-image", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		sent = append(sent, body)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:          srv.URL,
		SecretKey:        "secret",
		PrincipalSession: "principal",
		PrincipalToken:   "principal-token",
		WebhookURL:       "http://bot/webhook",
	}, srv.Client())
	ctx := context.Background()

	token, err := client.GenerateToken(ctx, "info_agent_5511")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	st, err := client.StartSession(ctx, "info_agent_5511", token)
	require.NoError(t, err)
	assert.Equal(t, STATUS_QRCODE, st.Status)
	assert.NotEmpty(t, st.QRCode)

	st, err = client.SessionStatus(ctx, "info_agent_5511", token)
	require.NoError(t, err)
	assert.Equal(t, STATUS_CONNECTED, st.Message)

	var messenger flow.Messenger = client.Principal()
	require.NoError(t, messenger.SendText(ctx, "5511", "oi"))
	require.NoError(t, messenger.SendImage(ctx, "5511", flow.Image{Base64: "AAA", Filename: "qr_code.png", Caption: "scan"}))
	require.Len(t, sent, 2)
	assert.Equal(t, "oi", sent[0]["message"])
	assert.Equal(t, false, sent[0]["isGroup"])
	assert.Equal(t, "qr_code.png", sent[1]["filename"])
}

func TestClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Path {
		case "/api/principal/send-message":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("bad token"))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, PrincipalSession: "principal", MaxRetries: 2}, srv.Client())
	ctx := context.Background()

	err := client.Principal().SendText(ctx, "5511", "oi")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "bad token", apiErr.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, 0)
	_, err = client.SessionStatus(ctx, "principal", "")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	_, err = client.GenerateToken(ctx, "principal")
	require.Error(t, err)
}
