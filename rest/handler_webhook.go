package rest

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/luximus/flowbot/logger"
	"github.com/luximus/flowbot/model"
)

// HandleWebhook acknowledges a chat gateway callback and queues it for processing.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var ev model.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if ev.Event != model.EVENT_ON_MESSAGE && ev.Event != model.EVENT_STATUS_FIND {
		respondOK(w, map[string]any{"status": "ignored", "message": "Evento não processado."})
		return
	}
	if err := s.dispatcher.Dispatch(ev); err != nil {
		logger.Error("error dispatching webhook", zap.String("event", ev.Event), zap.String("session", ev.Session), zap.Error(err))
		respondWithError(w, statusOf(err), err.Error())
		return
	}
	respondOK(w, map[string]any{"status": "success", "event": ev.Event})
}
