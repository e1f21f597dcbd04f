package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/luximus/flowbot/client/google"
	"github.com/luximus/flowbot/client/letta"
	"github.com/luximus/flowbot/flow"
	"github.com/luximus/flowbot/logger"
	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
	"github.com/luximus/flowbot/service"
)

type IntegrationService interface {
	HandleOAuthCallback(ctx context.Context, state string, code string) (*model.Result, error)
	StartIntegration(ctx context.Context, agentId string, kind string) (*model.Result, error)
	CreateAgents(ctx context.Context, userId string) (*model.Result, error)
	VerifyStatus(ctx context.Context, agentId string) (*model.IntegrationStatus, error)
	RegisterUser(ctx context.Context, user *model.User) (*model.User, error)
	Command(ctx context.Context, kind string, subjectId string, cmd string, req model.FlowCommandRequest) (*model.Result, error)
	FlowState(ctx context.Context, kind string, subjectId string) (*model.FlowState, error)
}

type Dispatcher interface {
	Dispatch(ev model.WebhookEvent) error
}

type LinkResolver interface {
	Resolve(ctx context.Context, code string) (string, error)
}

type Server struct {
	http.Server
	Port         int
	integrations IntegrationService
	dispatcher   Dispatcher
	links        LinkResolver
}

func NewServer(httpPort int, integrations IntegrationService, dispatcher Dispatcher, links LinkResolver) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr:              fmt.Sprintf(":%d", httpPort),
			ReadHeaderTimeout: 10 * time.Second,
		},
		Port:         httpPort,
		integrations: integrations,
		dispatcher:   dispatcher,
		links:        links,
	}
	s.Handler = s.Router()
	return s, nil
}

func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/webhook", s.HandleWebhook).Methods(http.MethodPost)
	router.HandleFunc("/webhook/", s.HandleWebhook).Methods(http.MethodPost)

	router.HandleFunc("/google-integration/oauth2callback", s.HandleOAuthCallback).Methods(http.MethodGet)
	router.HandleFunc("/integration-success", s.HandleIntegrationSuccess).Methods(http.MethodGet)

	router.HandleFunc("/tools/start-whatsapp-integration", s.HandleStartWhatsapp).Methods(http.MethodPost)
	router.HandleFunc("/tools/start-google-integration", s.HandleStartGoogle).Methods(http.MethodPost)
	router.HandleFunc("/tools/create-agents", s.HandleCreateAgents).Methods(http.MethodPost)
	router.HandleFunc("/tools/verify-integrations-status", s.HandleVerifyStatus).Methods(http.MethodGet)

	router.HandleFunc("/users", s.HandleCreateUser).Methods(http.MethodPost)

	router.HandleFunc("/flows/{kind}/{subject}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/flows/{kind}/{subject}/{command}", s.HandleFlowCommand).Methods(http.MethodPost)

	router.HandleFunc("/s/{code}", s.HandleShortLink).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondOK(w, map[string]any{"status": "ok"})
	}).Methods(http.MethodGet)

	router.Use(loggingMiddleware)
	return router
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info(r.URL.Path, zap.String("method", r.Method), zap.Duration("took", time.Since(start)))
	})
}

// statusOf maps engine and service errors onto HTTP status codes.
func statusOf(err error) int {
	var stepErr *flow.StepExecutionError
	switch {
	case errors.As(err, &stepErr):
		return http.StatusInternalServerError
	case errors.Is(err, flow.ErrUnknownFlow), errors.Is(err, flow.ErrSubjectNotFound),
		errors.Is(err, persistence.ErrNotFound), errors.Is(err, letta.ErrAgentNotFound):
		return http.StatusNotFound
	case errors.Is(err, flow.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, flow.ErrInvalidCommand), errors.Is(err, service.ErrMissingParams),
		errors.Is(err, service.ErrInvalidPhone), errors.Is(err, service.ErrUnknownMarker),
		errors.Is(err, google.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, flow.ErrStoreUnavailable), errors.Is(err, service.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondWithResult writes res, or err with the matching status when the command failed.
func respondWithResult(w http.ResponseWriter, res *model.Result, err error) {
	if err != nil {
		if res == nil {
			res = model.ErrorResult(err)
		}
		respondWithJSON(w, statusOf(err), res)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	respondWithJSON(w, http.StatusOK, message)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
