package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ditrix/ditrix-server/internal/authctx"
	"github.com/ditrix/ditrix-server/internal/convert"
	"github.com/ditrix/ditrix-server/internal/service"
)

func (s *Server) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	uid, _ := authctx.UserIDFromCtx(r.Context())
	p, err := s.Profiles.Get(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err, "Failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, convert.ProfileResponse{Status: convert.StatusOK, Profile: convert.ToProfile(p)})
}

func (s *Server) handleProfilePut(w http.ResponseWriter, r *http.Request) {
	var req convert.ProfileRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	uid, _ := authctx.UserIDFromCtx(r.Context())
	p, err := s.Profiles.Update(r.Context(), uid, service.ProfileUpdate{Name: req.Name, Avatar: req.AvatarBase64})
	if err != nil {
		s.writeError(w, r, err, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, convert.ProfileResponse{Status: convert.StatusOK, Profile: convert.ToProfile(p)})
}

func (s *Server) handleSyncList(w http.ResponseWriter, r *http.Request) {
	uid, _ := authctx.UserIDFromCtx(r.Context())
	items, err := s.Sync.List(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err, "Failed to list captures")
		return
	}
	writeJSON(w, http.StatusOK, convert.SyncListResponse{Status: convert.StatusOK, Captures: convert.ToSyncItems(items)})
}

func (s *Server) handleSyncUpload(w http.ResponseWriter, r *http.Request) {
	var req convert.SyncUploadRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	uid, _ := authctx.UserIDFromCtx(r.Context())
	n, err := s.Sync.Upload(r.Context(), uid, convert.FromSyncItems(req.Captures))
	if err != nil {
		s.writeError(w, r, err, "Failed to upload captures")
		return
	}
	writeJSON(w, http.StatusOK, convert.SyncUploadResponse{Status: convert.StatusOK, Uploaded: n})
}

func (s *Server) handleSyncDelete(w http.ResponseWriter, r *http.Request) {
	uid, _ := authctx.UserIDFromCtx(r.Context())
	if err := s.Sync.Delete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err, "Failed to delete capture")
		return
	}
	writeJSON(w, http.StatusOK, convert.MessageResponse{Status: convert.StatusOK})
}
