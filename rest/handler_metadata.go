package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/harishgarg/procflow/logger"
	"github.com/harishgarg/procflow/metadata"
	"github.com/harishgarg/procflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleSaveProcess(w http.ResponseWriter, r *http.Request) {
	var def model.ProcessDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed process definition")
		return
	}
	defer r.Body.Close()
	result, err := s.metadataService.SaveProcessDefinition(def)
	if err != nil {
		logger.Error("error saving process definition", zap.String("process", def.Id), zap.Error(err))
		respondDomainError(w, err)
		return
	}
	respondOK(w, result)
}

func (s *Server) HandleValidateProcess(w http.ResponseWriter, r *http.Request) {
	var def model.ProcessDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed process definition")
		return
	}
	defer r.Body.Close()
	respondOK(w, metadata.Validate(&def))
}

func (s *Server) HandleGetProcess(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	def, err := s.metadataService.GetProcessDefinition(name)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "process definition not found")
		return
	}
	respondOK(w, def)
}

func (s *Server) HandleListProcesses(w http.ResponseWriter, r *http.Request) {
	defs, err := s.metadataService.ListProcessDefinitions()
	if err != nil {
		logger.Error("error listing process definitions", zap.Error(err))
		respondDomainError(w, err)
		return
	}
	respondOK(w, defs)
}

func (s *Server) HandleDeleteProcess(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.metadataService.DeleteProcessDefinition(name); err != nil {
		logger.Error("error deleting process definition", zap.String("process", name), zap.Error(err))
		respondDomainError(w, err)
		return
	}
	respondOK(w, nil)
}
