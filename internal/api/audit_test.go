package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/the-bazaar/bazaar-backend/internal/audit"
	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/rbac"
	"github.com/the-bazaar/bazaar-backend/internal/testutil"
)

func TestListAuditLogs(t *testing.T) {
	t.Run("defaults the page size", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleAdmin)
		h.audit.On("List", mock.Anything, 0, config.DefaultAuditLogPageSize).Return(&audit.Page{
			Entries:  []db.AdminAuditLog{{ID: uuid.New(), Action: "staff.create"}},
			Total:    1,
			Page:     1,
			PageSize: config.DefaultAuditLogPageSize,
		}, nil)

		resp := h.doAs(token, testutil.Request{Method: http.MethodGet, Path: "/api/admin/audit-logs"})

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, resp.Body["entries"], 1)
		assert.Equal(t, float64(1), resp.Body["total"])
	})

	t.Run("passes paging through", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleAdmin)
		h.audit.On("List", mock.Anything, 3, 10).Return(&audit.Page{Page: 3, PageSize: 10}, nil)

		resp := h.doAs(token, testutil.Request{
			Method:      http.MethodGet,
			Path:        "/api/admin/audit-logs",
			QueryParams: map[string]string{"page": "3", "pageSize": "10"},
		})

		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("managers are denied the module", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleManager)

		resp := h.doAs(token, testutil.Request{Method: http.MethodGet, Path: "/api/admin/audit-logs"})

		require.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, auth.CodeModuleAccessDenied, resp.ErrorCode())
	})
}

func TestExportAuditLogs(t *testing.T) {
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	t.Run("admins lack the export permission", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleAdmin)

		resp := h.doAs(token, testutil.Request{
			Method: http.MethodPost,
			Path:   "/api/admin/audit-logs/export",
			Body:   map[string]time.Time{"from": from, "to": to},
		})

		require.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, auth.CodeMissingPermission, resp.ErrorCode())
	})

	t.Run("super admins export", func(t *testing.T) {
		h := newHarness(t)
		token, actor := h.signIn(rbac.RoleSuperAdmin)
		h.audit.On("Export", mock.Anything, actor, mock.Anything,
			mock.MatchedBy(from.Equal), mock.MatchedBy(to.Equal),
		).Return(&audit.ExportResult{
			Key:       "audit-exports/01JABCDEF.csv",
			URL:       "https://s3.example/audit-exports/01JABCDEF.csv?X-Amz-Signature=abc",
			Rows:      12,
			ExpiresAt: time.Now().Add(15 * time.Minute),
		}, nil)

		resp := h.doAs(token, testutil.Request{
			Method: http.MethodPost,
			Path:   "/api/admin/audit-logs/export",
			Body:   map[string]time.Time{"from": from, "to": to},
		})

		require.Equal(t, http.StatusCreated, resp.Code)
		assert.Equal(t, float64(12), resp.Body["rows"])
		assert.Contains(t, resp.Body["url"], "X-Amz-Signature")
	})

	t.Run("inverted range", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleSuperAdmin)
		h.audit.On("Export", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, audit.ErrInvalidRange)

		resp := h.doAs(token, testutil.Request{
			Method: http.MethodPost,
			Path:   "/api/admin/audit-logs/export",
			Body:   map[string]time.Time{"from": to, "to": from},
		})

		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, CodeValidationError, resp.ErrorCode())
	})
}
