package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"github.com/the-bazaar/bazaar-backend/internal/metrics"
	"github.com/the-bazaar/bazaar-backend/internal/middleware"
	"github.com/the-bazaar/bazaar-backend/internal/staff"
)

type staffPage struct {
	Members    []staff.Member `json:"members"`
	Pagination PaginationMeta `json:"pagination"`
}

func (s *Server) ListStaff(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	page, err := s.staff.List(r.Context(), limit, offset)
	if err != nil {
		internalError(w, r, "failed to list staff", err)
		return
	}
	writeJSON(w, http.StatusOK, staffPage{
		Members:    page.Members,
		Pagination: buildPaginationMeta(page.Total, limit, offset),
	})
}

func (s *Server) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var in staff.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	user := currentUser(r)

	member, err := s.staff.Create(r.Context(), user.ID, in, middleware.ClientIP(r))
	if err != nil {
		s.writeStaffError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (s *Server) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "staffID")
	if !ok {
		return
	}
	var in staff.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	member, err := s.staff.Update(r.Context(), currentUser(r).ID, id, in, middleware.ClientIP(r))
	if err != nil {
		s.writeStaffError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) DeactivateStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "staffID")
	if !ok {
		return
	}
	if err := s.staff.Deactivate(r.Context(), currentUser(r).ID, id, middleware.ClientIP(r)); err != nil {
		s.writeStaffError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeStaffError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *staff.ValidationError
	switch {
	case errors.Is(err, staff.ErrEscalation):
		denial := auth.ErrForbiddenEscalation()
		logging.FromContext(r.Context()).Warn("super_admin escalation attempt",
			"user_id", currentUser(r).ID,
			"required", denial.Required,
			"path", r.URL.Path,
		)
		metrics.AuthDenied(denial.Code)
		auth.WriteError(w, denial)
	case errors.As(err, &verr):
		details := make([]ErrorDetail, len(verr.Fields))
		for i, f := range verr.Fields {
			details[i] = ErrorDetail{Field: f.Field, Message: f.Message}
		}
		ValidationErr("Invalid staff member", details).Write(w)
	case errors.Is(err, staff.ErrEmailTaken):
		ConflictErr("A user with this email already exists").Write(w)
	case errors.Is(err, staff.ErrNotFound):
		NotFound("Staff member").Write(w)
	case errors.Is(err, staff.ErrSelfDeactivation):
		BadRequest("You cannot deactivate your own account").Write(w)
	case errors.Is(err, staff.ErrProtectedMember):
		denial := auth.ErrForbiddenEscalation()
		denial.Message = "Super administrator accounts cannot be modified"
		auth.WriteError(w, denial)
	default:
		internalError(w, r, "staff operation failed", err)
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		ValidationErr("Invalid identifier", []ErrorDetail{{Field: param, Message: "must be a UUID"}}).Write(w)
		return uuid.Nil, false
	}
	return id, true
}
