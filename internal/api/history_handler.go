package api

import (
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"sincro-go/internal/metrics"
	"sincro-go/internal/model"
	"sincro-go/internal/sincro"
)

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	entry, err := s.svc.Commit(r.Context(), chi.URLParam(r, "deploymentID"), req.Message, req.Tag)
	switch {
	case errors.Is(err, sincro.ErrNoChanges):
		metrics.RecordCommit("no_changes")
	case err != nil:
		metrics.RecordCommit("error")
	default:
		metrics.RecordCommit("committed")
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusCreated, entry)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.CheckoutToCommit(r.Context(), chi.URLParam(r, "deploymentID"), req.Hash); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, nil)
}

func (s *Server) handleCheckForChanges(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	changed, err := s.svc.CheckForChanges(r.Context(), chi.URLParam(r, "deploymentID"))
	metrics.RecordDriftCheck("manual", changed, err, time.Since(start))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, changed)
}

func (s *Server) handleListCommits(w http.ResponseWriter, r *http.Request) {
	commits, err := s.svc.ListCommits(r.Context(), chi.URLParam(r, "deploymentID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if commits == nil {
		commits = []*model.CommitLogEntry{}
	}
	s.writeData(w, http.StatusOK, commits)
}

// handleDiff serves ?from=<hash>[&to=<hash>]. Without to, from is diffed
// against its parent.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	diff, err := s.svc.GetDiff(r.Context(), chi.URLParam(r, "deploymentID"), q.Get("from"), q.Get("to"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, diff)
}

func (s *Server) handleDiffWorkingTree(w http.ResponseWriter, r *http.Request) {
	diff, err := s.svc.GetDiffWorkingTree(r.Context(), chi.URLParam(r, "deploymentID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, diff)
}

func (s *Server) handleFilesAtRevision(w http.ResponseWriter, r *http.Request) {
	files, err := s.svc.GetFilesAtRevision(r.Context(), chi.URLParam(r, "deploymentID"), chi.URLParam(r, "hash"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, files)
}

func (s *Server) handleFileAtRevision(w http.ResponseWriter, r *http.Request) {
	content, err := s.svc.GetFileAtRevision(r.Context(), chi.URLParam(r, "deploymentID"), chi.URLParam(r, "hash"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, content)
}

func (s *Server) handleCurrentFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.svc.GetCurrentFiles(r.Context(), chi.URLParam(r, "deploymentID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, files)
}
