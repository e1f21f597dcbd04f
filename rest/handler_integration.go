package rest

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/luximus/flowbot/integration"
	"github.com/luximus/flowbot/logger"
)

const integrationSuccessPage = `<!DOCTYPE html>
<html lang="pt-BR"><head><meta charset="utf-8"><title>Integração concluída</title></head>
<body><h1>Integração realizada com sucesso!</h1><p>Você já pode voltar para a conversa.</p></body></html>`

func (s *Server) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	_, err := s.integrations.HandleOAuthCallback(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		logger.Error("error handling oauth callback", zap.Error(err))
		respondWithError(w, statusOf(err), err.Error())
		return
	}
	http.Redirect(w, r, "/integration-success", http.StatusFound)
}

func (s *Server) HandleIntegrationSuccess(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(integrationSuccessPage))
}

func (s *Server) HandleStartWhatsapp(w http.ResponseWriter, r *http.Request) {
	s.startIntegration(w, r, integration.FLOW_WHATSAPP, "Fluxo de integração com WhatsApp iniciado.")
}

func (s *Server) HandleStartGoogle(w http.ResponseWriter, r *http.Request) {
	s.startIntegration(w, r, integration.FLOW_GOOGLE, "Fluxo de integração com Google iniciado.")
}

func (s *Server) startIntegration(w http.ResponseWriter, r *http.Request, kind string, message string) {
	agentId := r.URL.Query().Get("agent_id")
	res, err := s.integrations.StartIntegration(r.Context(), agentId, kind)
	if err != nil {
		logger.Error("error starting integration", zap.String("flow", kind), zap.String("agent", agentId), zap.Error(err))
		respondWithResult(w, res, err)
		return
	}
	respondOK(w, map[string]any{"status": "success", "message": message, "result": res})
}

func (s *Server) HandleCreateAgents(w http.ResponseWriter, r *http.Request) {
	userId := r.URL.Query().Get("user_id")
	res, err := s.integrations.CreateAgents(r.Context(), userId)
	if err != nil {
		logger.Error("error creating agents", zap.String("user", userId), zap.Error(err))
	}
	respondWithResult(w, res, err)
}

func (s *Server) HandleVerifyStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.integrations.VerifyStatus(r.Context(), r.URL.Query().Get("agent_id"))
	if err != nil {
		respondWithError(w, statusOf(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}
