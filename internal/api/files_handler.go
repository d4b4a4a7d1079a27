package api

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"sincro-go/internal/model"
)

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.svc.ListFiles()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if files == nil {
		files = []*model.ManagedFile{}
	}
	s.writeData(w, http.StatusOK, files)
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	var req createFileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	f, err := s.svc.CreateFile(r.Context(), req.Name, req.Alias)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusCreated, f)
}

func (s *Server) handleCreateBundle(w http.ResponseWriter, r *http.Request) {
	var req createBundleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	f, err := s.svc.CreateBundle(r.Context(), req.Name, req.Alias, req.BasePath, req.Paths)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusCreated, f)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.GetFile(chi.URLParam(r, "fileID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, f)
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	var req updateFileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	f, err := s.svc.UpdateFile(chi.URLParam(r, "fileID"), model.FileUpdate{
		Name:        req.Name,
		Alias:       req.Alias,
		UseAutoIcon: req.UseAutoIcon,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteFile(r.Context(), chi.URLParam(r, "fileID")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, nil)
}

func (s *Server) handleBundleEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.ListBundleEntries(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []string{}
	}
	s.writeData(w, http.StatusOK, entries)
}

func (s *Server) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	ds, err := s.svc.ListDeployments(chi.URLParam(r, "fileID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ds == nil {
		ds = []*model.Deployment{}
	}
	s.writeData(w, http.StatusOK, ds)
}

func (s *Server) handleGetFileTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.svc.GetFileTags(chi.URLParam(r, "fileID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, nonNilTags(tags))
}

func (s *Server) handleSetFileTags(w http.ResponseWriter, r *http.Request) {
	var req tagIDsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.SetFileTags(chi.URLParam(r, "fileID"), req.TagIDs); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, nil)
}
