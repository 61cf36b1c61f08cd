package rest

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/harishgarg/procflow/filestore"
	"github.com/harishgarg/procflow/logger"
	"go.uber.org/zap"
)

const MAX_UPLOAD_SIZE = 32 << 20

func (s *Server) HandleUploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MAX_UPLOAD_SIZE); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "error reading file part")
		return
	}
	meta := filestore.FileMeta{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		InstanceId:  r.FormValue("instanceId"),
		ActivityId:  r.FormValue("activityId"),
		FieldName:   r.FormValue("fieldName"),
	}
	saved, err := s.fileStore.Save(meta, content)
	if err != nil {
		logger.Error("error storing file", zap.String("name", header.Filename), zap.Error(err))
		respondDomainError(w, err)
		return
	}
	respondOK(w, saved)
}

func (s *Server) HandleGetFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	meta, content, err := s.fileStore.Get(id)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "file not found")
		return
	}
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+meta.Name)
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}
