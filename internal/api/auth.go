package api

import (
	"net/http"

	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/rbac"
)

type sessionResponse struct {
	Authenticated bool                    `json:"authenticated"`
	User          *auth.AuthenticatedUser `json:"user,omitempty"`
}

// Session reports who the caller is, if anyone. It never fails on credentials.
func (s *Server) Session(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: user})
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

type moduleResponse struct {
	Module      rbac.Module `json:"module"`
	Permissions []string    `json:"permissions"`
}

// Modules lists the admin modules the caller can open and, for each, which of
// the module's permissions they hold.
func (s *Server) Modules(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	out := []moduleResponse{}
	for _, m := range auth.AccessibleModules(user) {
		held := []string{}
		for _, p := range rbac.PermissionsForModule(m).Sorted() {
			if auth.HasPermission(user, p) {
				held = append(held, string(p))
			}
		}
		out = append(out, moduleResponse{Module: m, Permissions: held})
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": out})
}
