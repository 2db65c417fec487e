package httpserver

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"

	"github.com/ditrix/ditrix-server/internal/authctx"
	"github.com/ditrix/ditrix-server/internal/convert"
	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
)

func (s *Server) handleCaptureList(w http.ResponseWriter, r *http.Request) {
	uid, _ := authctx.UserIDFromCtx(r.Context())
	lists, err := s.Captures.List(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err, "Failed to list captures")
		return
	}
	writeJSON(w, http.StatusOK, convert.CaptureListResponse{
		Status: convert.StatusOK,
		Owned:  convert.ToCaptures(lists.Owned),
		Shared: convert.ToCaptures(lists.Shared),
	})
}

func (s *Server) handleCaptureCreate(w http.ResponseWriter, r *http.Request) {
	var req convert.CaptureCreateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	uid, _ := authctx.UserIDFromCtx(r.Context())
	c, err := s.Captures.Create(r.Context(), uid, convert.FromCaptureCreate(req))
	if err != nil {
		s.writeError(w, r, err, "Failed to create capture")
		return
	}
	writeJSON(w, http.StatusCreated, convert.CaptureCreateResponse{
		Status:    convert.StatusOK,
		CaptureID: c.ID,
		ShareCode: c.ShareCode,
	})
}

func (s *Server) handleCaptureGet(w http.ResponseWriter, r *http.Request) {
	uid, _ := authctx.UserIDFromCtx(r.Context())
	d, err := s.Captures.Get(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, "Failed to get capture")
		return
	}
	writeJSON(w, http.StatusOK, convert.CaptureResponse{Status: convert.StatusOK, Capture: convert.ToCaptureDetail(d)})
}

// handleCaptureUpdate patches metadata; a roster in the body replaces the
// stored one in the same write.
func (s *Server) handleCaptureUpdate(w http.ResponseWriter, r *http.Request) {
	var req convert.CaptureUpdateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	uid, _ := authctx.UserIDFromCtx(r.Context())
	id := chi.URLParam(r, "id")
	if req.Roster != nil {
		for i, e := range *req.Roster {
			if err := s.validate.Struct(e); err != nil {
				s.writeError(w, r, fmt.Errorf("%w: roster[%d] id required", errs.ErrInvalidInput, i), "")
				return
			}
		}
	}
	d, err := s.Captures.Update(r.Context(), uid, id, convert.FromCaptureUpdate(req))
	if err != nil {
		s.writeError(w, r, err, "Failed to update capture")
		return
	}
	writeJSON(w, http.StatusOK, convert.CaptureResponse{
		Status:  convert.StatusOK,
		Message: "Capture updated",
		Capture: convert.ToCaptureDetail(d),
	})
}

func (s *Server) handleCaptureDelete(w http.ResponseWriter, r *http.Request) {
	uid, _ := authctx.UserIDFromCtx(r.Context())
	if err := s.Captures.Delete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err, "Failed to delete capture")
		return
	}
	writeJSON(w, http.StatusOK, convert.MessageResponse{Status: convert.StatusOK, Message: "Capture deleted"})
}

func (s *Server) handleRosterReplace(w http.ResponseWriter, r *http.Request) {
	var req convert.RosterRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	uid, _ := authctx.UserIDFromCtx(r.Context())
	roster, err := s.Captures.ReplaceRoster(r.Context(), uid, chi.URLParam(r, "id"), convert.FromRoster(req.Roster))
	if err != nil {
		s.writeError(w, r, err, "Failed to update roster")
		return
	}
	writeJSON(w, http.StatusOK, convert.RosterResponse{
		Status: convert.StatusOK,
		Count:  len(roster),
		Roster: convert.ToRoster(roster),
	})
}

func (s *Server) handleCollaboratorList(w http.ResponseWriter, r *http.Request) {
	uid, _ := authctx.UserIDFromCtx(r.Context())
	cs, err := s.Captures.Collaborators(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, "Failed to list collaborators")
		return
	}
	writeJSON(w, http.StatusOK, convert.CollaboratorsResponse{
		Status:        convert.StatusOK,
		Collaborators: convert.ToCollaborators(cs),
	})
}

func (s *Server) handleCollaboratorAdd(w http.ResponseWriter, r *http.Request) {
	var req convert.CollaboratorRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	uid, _ := authctx.UserIDFromCtx(r.Context())
	_, err := s.Captures.AddCollaborator(r.Context(), uid, chi.URLParam(r, "id"), req.Email, model.Role(req.Role))
	if err != nil {
		s.writeError(w, r, err, "Failed to add collaborator")
		return
	}
	writeJSON(w, http.StatusOK, convert.MessageResponse{Status: convert.StatusOK, Message: "Collaborator added"})
}

func (s *Server) handleCollaboratorRemove(w http.ResponseWriter, r *http.Request) {
	collab, err := uuid.FromString(chi.URLParam(r, "userId"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: bad user id", errs.ErrInvalidInput), "")
		return
	}
	uid, _ := authctx.UserIDFromCtx(r.Context())
	if err := s.Captures.RemoveCollaborator(r.Context(), uid, chi.URLParam(r, "id"), collab); err != nil {
		s.writeError(w, r, err, "Failed to remove collaborator")
		return
	}
	writeJSON(w, http.StatusOK, convert.MessageResponse{Status: convert.StatusOK, Message: "Collaborator removed"})
}

func (s *Server) handleCaptureJoin(w http.ResponseWriter, r *http.Request) {
	uid, _ := authctx.UserIDFromCtx(r.Context())
	id, already, err := s.Captures.JoinByCode(r.Context(), uid, chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err, "Failed to join capture")
		return
	}
	msg := "Joined successfully"
	if already {
		msg = "Already have access"
	}
	writeJSON(w, http.StatusOK, convert.JoinResponse{Status: convert.StatusOK, Message: msg, CaptureID: id})
}
