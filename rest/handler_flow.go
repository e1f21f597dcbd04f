package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/luximus/flowbot/logger"
	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
)

func (s *Server) HandleFlowCommand(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	vars := mux.Vars(r)
	kind, subject, command := vars["kind"], vars["subject"], vars["command"]

	var req model.FlowCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.integrations.Command(r.Context(), kind, subject, command, req)
	if err != nil {
		logger.Error("error running flow command", zap.String("flow", kind), zap.String("subject", subject),
			zap.String("command", command), zap.Error(err))
	}
	respondWithResult(w, res, err)
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	st, err := s.integrations.FlowState(r.Context(), vars["kind"], vars["subject"])
	if err != nil {
		respondWithError(w, statusOf(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"state": st, "status": st.Status()})
}

func (s *Server) HandleShortLink(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	url, err := s.links.Resolve(r.Context(), code)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "URL não encontrada ou expirou")
			return
		}
		respondWithError(w, statusOf(err), err.Error())
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

type createUserRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Cpf   string `json:"cpf"`
}

func (s *Server) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.integrations.RegisterUser(r.Context(), &model.User{Name: req.Name, Phone: req.Phone, Cpf: req.Cpf})
	if err != nil {
		logger.Error("error creating user", zap.String("phone", req.Phone), zap.Error(err))
		respondWithError(w, statusOf(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, user)
}
