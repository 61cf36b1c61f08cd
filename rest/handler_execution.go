package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/harishgarg/procflow/logger"
	"github.com/harishgarg/procflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleRunProcess(w http.ResponseWriter, r *http.Request) {
	var runReq model.ProcessRunRequest
	if err := json.NewDecoder(r.Body).Decode(&runReq); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed run request")
		return
	}
	defer r.Body.Close()
	result, err := s.engine.CreateInstance(runReq.ProcessId, runReq.Input)
	if err != nil {
		logger.Error("error running process", zap.String("process", runReq.ProcessId), zap.Error(err))
		respondDomainError(w, err)
		return
	}
	respondOK(w, result)
}

func (s *Server) HandleListExecutions(w http.ResponseWriter, r *http.Request) {
	var (
		instances []model.ProcessInstance
		err       error
	)
	switch {
	case r.URL.Query().Get("status") != "":
		instances, err = s.engine.Storage().FindByState(model.InstanceState(r.URL.Query().Get("status")))
	case r.URL.Query().Get("process") != "":
		instances, err = s.engine.Storage().FindByProcess(r.URL.Query().Get("process"))
	default:
		instances, err = s.engine.Storage().GetAllProcessInstances()
	}
	if err != nil {
		logger.Error("error listing process instances", zap.Error(err))
		respondDomainError(w, err)
		return
	}
	respondOK(w, instances)
}

func (s *Server) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	inst, err := s.engine.GetInstance(id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, inst)
}

func (s *Server) HandleSubmitTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	activityId := vars["activityId"]
	var submitReq model.TaskSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&submitReq); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed task submission")
		return
	}
	defer r.Body.Close()
	result, err := s.engine.SubmitHumanTask(id, activityId, submitReq.Data)
	if err != nil {
		logger.Error("error submitting human task", zap.String("instanceId", id), zap.String("activity", activityId), zap.Error(err))
		respondDomainError(w, err)
		return
	}
	respondOK(w, result)
}

func (s *Server) HandleRerun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	result, err := s.engine.Rerun(id)
	if err != nil {
		logger.Error("error rerunning process", zap.String("instanceId", id), zap.Error(err))
		respondDomainError(w, err)
		return
	}
	respondOK(w, result)
}

func (s *Server) HandleRestart(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	result, err := s.engine.Restart(id)
	if err != nil {
		logger.Error("error restarting process", zap.String("instanceId", id), zap.Error(err))
		respondDomainError(w, err)
		return
	}
	respondOK(w, result)
}

func (s *Server) HandleNavigate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	next, err := s.engine.Navigate(id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, map[string]any{"next": next})
}

func (s *Server) HandleCurrentTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	task, err := s.engine.CurrentHumanTask(id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondOK(w, task)
}

func (s *Server) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	inst, err := s.engine.CancelInstance(id)
	if err != nil {
		logger.Error("error cancelling process", zap.String("instanceId", id), zap.Error(err))
		respondDomainError(w, err)
		return
	}
	respondOK(w, inst)
}
