package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/harishgarg/procflow/engine"
	"github.com/harishgarg/procflow/filestore"
	"github.com/harishgarg/procflow/logger"
	"github.com/harishgarg/procflow/metadata"
	"github.com/harishgarg/procflow/model"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port            int
	metadataService metadata.MetadataService
	engine          *engine.Engine
	fileStore       *filestore.FileStore
}

func NewServer(httpPort int, metadataService metadata.MetadataService, eng *engine.Engine, fileStore *filestore.FileStore) (*Server, error) {

	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		metadataService: metadataService,
		engine:          eng,
		fileStore:       fileStore,
		Port:            httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/metadata/process", s.HandleSaveProcess).Methods(http.MethodPost)
	router.HandleFunc("/metadata/process", s.HandleListProcesses).Methods(http.MethodGet)
	router.HandleFunc("/metadata/process/validate", s.HandleValidateProcess).Methods(http.MethodPost)
	router.HandleFunc("/metadata/process/{name}", s.HandleGetProcess).Methods(http.MethodGet)
	router.HandleFunc("/metadata/process/{name}", s.HandleDeleteProcess).Methods(http.MethodDelete)

	router.HandleFunc("/execution", s.HandleRunProcess).Methods(http.MethodPost)
	router.HandleFunc("/execution", s.HandleListExecutions).Methods(http.MethodGet)
	router.HandleFunc("/execution/{id}", s.HandleGetExecution).Methods(http.MethodGet)
	router.HandleFunc("/execution/{id}/activity/{activityId}", s.HandleSubmitTask).Methods(http.MethodPost)
	router.HandleFunc("/execution/{id}/rerun", s.HandleRerun).Methods(http.MethodPost)
	router.HandleFunc("/execution/{id}/restart", s.HandleRestart).Methods(http.MethodPost)
	router.HandleFunc("/execution/{id}/next", s.HandleNavigate).Methods(http.MethodGet)
	router.HandleFunc("/execution/{id}/task", s.HandleCurrentTask).Methods(http.MethodGet)
	router.HandleFunc("/execution/{id}/cancel", s.HandleCancel).Methods(http.MethodPost)

	router.HandleFunc("/file", s.HandleUploadFile).Methods(http.MethodPost)
	router.HandleFunc("/file/{id}", s.HandleGetFile).Methods(http.MethodGet)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
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
		logger.Error("error shutting down http server")
	}
	return nil
}
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

type envelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, data any) {
	respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: data, Timestamp: time.Now()})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, envelope{Success: false, Error: message, Timestamp: time.Now()})
}

// respondDomainError maps the typed errors of the lower layers onto HTTP
// statuses. Unrecognized errors stay 500.
func respondDomainError(w http.ResponseWriter, err error) {
	var (
		defInvalid     model.DefinitionInvalidError
		instNotFound   model.InstanceNotFoundError
		actNotFound    model.ActivityNotFoundError
		notWaiting     model.ActivityNotWaitingError
		fieldInvalid   model.FieldValidationError
		storageFailure model.StorageLayerError
	)
	switch {
	case errors.As(err, &defInvalid), errors.As(err, &fieldInvalid), errors.As(err, &notWaiting):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &instNotFound), errors.As(err, &actNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &storageFailure):
		respondWithError(w, http.StatusInternalServerError, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
