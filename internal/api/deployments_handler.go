package api

import (
	"fmt"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"

	"sincro-go/internal/sincro"
)

func (s *Server) handleCreateDeployment(w http.ResponseWriter, r *http.Request) {
	var req createDeploymentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	autoExclude := true
	if req.AutoExclude != nil {
		autoExclude = *req.AutoExclude
	}
	d, err := s.svc.CreateDeployment(r.Context(), sincro.DeploymentRequest{
		FileID:           req.FileID,
		RepoPath:         req.RepoPath,
		FileRelativePath: req.FileRelativePath,
		SourceBranch:     req.SourceBranch,
		SourceCommit:     req.SourceCommit,
		AutoExclude:      autoExclude,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusCreated, d)
}

func (s *Server) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.GetDeployment(chi.URLParam(r, "deploymentID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDeployment(w http.ResponseWriter, r *http.Request) {
	fromDisk := false
	if v := r.URL.Query().Get("fromDisk"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, fmt.Errorf("fromDisk must be a boolean: %w", errBadRequest))
			return
		}
		fromDisk = b
	}
	if err := s.svc.DeleteDeployment(r.Context(), chi.URLParam(r, "deploymentID"), fromDisk); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, nil)
}

func (s *Server) handleUpdateDescription(w http.ResponseWriter, r *http.Request) {
	var req descriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := s.svc.UpdateDescription(chi.URLParam(r, "deploymentID"), req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, d)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Deactivate(r.Context(), chi.URLParam(r, "deploymentID")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, nil)
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reactivate(r.Context(), chi.URLParam(r, "deploymentID")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, nil)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Sync(r.Context(), chi.URLParam(r, "deploymentID")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, nil)
}

func (s *Server) handleFileExists(w http.ResponseWriter, r *http.Request) {
	exists, err := s.svc.CheckFileExists(chi.URLParam(r, "deploymentID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, exists)
}

func (s *Server) handleExcludeStatus(w http.ResponseWriter, r *http.Request) {
	excluded, err := s.svc.CheckExcludeStatus(r.Context(), chi.URLParam(r, "deploymentID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, excluded)
}

func (s *Server) handleGlobalExcludes(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		s.writeError(w, fmt.Errorf("path is required: %w", errBadRequest))
		return
	}
	excluded, err := s.svc.IsGloballyExcluded(p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, excluded)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, stats)
}
