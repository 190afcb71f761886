package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/the-bazaar/bazaar-backend/internal/audit"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/middleware"
)

func (s *Server) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize == 0 {
		pageSize = config.DefaultAuditLogPageSize
	}

	result, err := s.auditLog.List(r.Context(), page, pageSize)
	if err != nil {
		internalError(w, r, "failed to list audit logs", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type exportRequest struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (s *Server) ExportAuditLogs(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.auditExporter.Export(r.Context(), currentUser(r).ID, middleware.ClientIP(r), req.From, req.To)
	if errors.Is(err, audit.ErrInvalidRange) {
		ValidationErr("Invalid export range", []ErrorDetail{{Field: "to", Message: "must be after from"}}).Write(w)
		return
	}
	if err != nil {
		internalError(w, r, "failed to export audit logs", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
