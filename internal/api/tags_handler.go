package api

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"sincro-go/internal/model"
)

func nonNilTags(tags []*model.Tag) []*model.Tag {
	if tags == nil {
		return []*model.Tag{}
	}
	return tags
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.svc.ListTags()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, nonNilTags(tags))
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	tag, err := s.svc.CreateTag(req.Name, req.Color)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusCreated, tag)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTag(chi.URLParam(r, "tagID")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, nil)
}

func (s *Server) handleGetDeploymentTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.svc.GetDeploymentTags(chi.URLParam(r, "deploymentID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, nonNilTags(tags))
}

func (s *Server) handleSetDeploymentTags(w http.ResponseWriter, r *http.Request) {
	var req tagIDsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.SetDeploymentTags(chi.URLParam(r, "deploymentID"), req.TagIDs); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, nil)
}
