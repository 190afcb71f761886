package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/rbac"
	"github.com/the-bazaar/bazaar-backend/internal/staff"
	"github.com/the-bazaar/bazaar-backend/internal/testutil"
)

func newStaffBody(role string) map[string]any {
	return map[string]any{
		"email":    "new.hire@bazaar.test",
		"password": "correct-horse-battery",
		"fullName": "New Hire",
		"role":     role,
	}
}

func TestCreateStaff(t *testing.T) {
	t.Run("only super admins reach the service", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleAdmin)

		resp := h.doAs(token, testutil.Request{Method: http.MethodPost, Path: "/api/admin/staff", Body: newStaffBody("viewer")})

		require.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, auth.CodeSuperAdminRequired, resp.ErrorCode())
		h.staff.AssertNotCalled(t, "Create")
	})

	t.Run("escalation is forbidden", func(t *testing.T) {
		h := newHarness(t)
		token, id := h.signIn(rbac.RoleSuperAdmin)
		h.staff.On("Create", mock.Anything, id, mock.MatchedBy(func(in staff.CreateInput) bool {
			return in.Role == "super_admin"
		}), mock.Anything).Return(nil, staff.ErrEscalation)

		resp := h.doAs(token, testutil.Request{Method: http.MethodPost, Path: "/api/admin/staff", Body: newStaffBody("super_admin")})

		require.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, auth.CodeForbidden, resp.ErrorCode())
	})

	t.Run("creates a member", func(t *testing.T) {
		h := newHarness(t)
		token, id := h.signIn(rbac.RoleSuperAdmin)
		member := &staff.Member{
			ID:          uuid.New(),
			Email:       "new.hire@bazaar.test",
			FullName:    "New Hire",
			Role:        "manager",
			Permissions: []string{"orders:view"},
			IsActive:    true,
			CreatedBy:   &id,
		}
		h.staff.On("Create", mock.Anything, id, mock.AnythingOfType("staff.CreateInput"), mock.Anything).Return(member, nil)

		resp := h.doAs(token, testutil.Request{Method: http.MethodPost, Path: "/api/admin/staff", Body: newStaffBody("manager")})

		require.Equal(t, http.StatusCreated, resp.Code)
		assert.Equal(t, member.ID.String(), resp.Body["id"])
		assert.Equal(t, "manager", resp.Body["role"])
		assert.Equal(t, id.String(), resp.Body["createdBy"])
	})

	t.Run("validation failures list fields", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleSuperAdmin)
		verr := &staff.ValidationError{Fields: []staff.FieldError{{Field: "email", Message: "must be a valid email address"}}}
		h.staff.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, verr)

		resp := h.doAs(token, testutil.Request{Method: http.MethodPost, Path: "/api/admin/staff", Body: newStaffBody("viewer")})

		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, CodeValidationError, resp.ErrorCode())
		details := resp.Body["details"].([]any)
		require.Len(t, details, 1)
		assert.Equal(t, "email", details[0].(map[string]any)["field"])
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleSuperAdmin)
		h.staff.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, staff.ErrEmailTaken)

		resp := h.doAs(token, testutil.Request{Method: http.MethodPost, Path: "/api/admin/staff", Body: newStaffBody("viewer")})

		require.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, CodeConflict, resp.ErrorCode())
	})

	t.Run("malformed JSON", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleSuperAdmin)

		resp := h.doAs(token, testutil.Request{Method: http.MethodPost, Path: "/api/admin/staff", RawBody: []byte(`{"email":`)})

		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, CodeBadRequest, resp.ErrorCode())
	})
}

func TestListStaff(t *testing.T) {
	t.Run("admins with staff:view list with pagination", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleAdmin)
		h.staff.On("List", mock.Anything, int64(10), int64(20)).Return(&staff.Page{
			Members: []staff.Member{{ID: uuid.New(), Email: "a@bazaar.test", Role: "viewer", IsActive: true}},
			Total:   31,
		}, nil)

		resp := h.doAs(token, testutil.Request{
			Method:      http.MethodGet,
			Path:        "/api/admin/staff",
			QueryParams: map[string]string{"limit": "10", "offset": "20"},
		})

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, resp.Body["members"], 1)
		pagination := resp.Body["pagination"].(map[string]any)
		assert.Equal(t, float64(31), pagination["total"])
		assert.Equal(t, true, pagination["hasMore"])
	})

	t.Run("managers lack the staff module", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleManager)

		resp := h.doAs(token, testutil.Request{Method: http.MethodGet, Path: "/api/admin/staff"})

		require.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, auth.CodeModuleAccessDenied, resp.ErrorCode())
	})
}

func TestUpdateStaff(t *testing.T) {
	t.Run("invalid id", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleSuperAdmin)

		resp := h.doAs(token, testutil.Request{Method: http.MethodPatch, Path: "/api/admin/staff/not-a-uuid", Body: map[string]any{"role": "viewer"}})

		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, CodeValidationError, resp.ErrorCode())
	})

	t.Run("protected super admin", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleSuperAdmin)
		target := uuid.New()
		h.staff.On("Update", mock.Anything, mock.Anything, target, mock.Anything, mock.Anything).Return(nil, staff.ErrProtectedMember)

		resp := h.doAs(token, testutil.Request{Method: http.MethodPatch, Path: "/api/admin/staff/" + target.String(), Body: map[string]any{"role": "viewer"}})

		require.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, auth.CodeForbidden, resp.ErrorCode())
	})

	t.Run("unknown member", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleSuperAdmin)
		target := uuid.New()
		h.staff.On("Update", mock.Anything, mock.Anything, target, mock.Anything, mock.Anything).Return(nil, staff.ErrNotFound)

		resp := h.doAs(token, testutil.Request{Method: http.MethodPatch, Path: "/api/admin/staff/" + target.String(), Body: map[string]any{"resetPermissions": true}})

		require.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, CodeResourceNotFound, resp.ErrorCode())
	})
}

func TestDeactivateStaff(t *testing.T) {
	t.Run("soft deletes", func(t *testing.T) {
		h := newHarness(t)
		token, id := h.signIn(rbac.RoleSuperAdmin)
		target := uuid.New()
		h.staff.On("Deactivate", mock.Anything, id, target, mock.Anything).Return(nil)

		resp := h.doAs(token, testutil.Request{Method: http.MethodDelete, Path: "/api/admin/staff/" + target.String()})

		assert.Equal(t, http.StatusNoContent, resp.Code)
	})

	t.Run("cannot deactivate self", func(t *testing.T) {
		h := newHarness(t)
		token, id := h.signIn(rbac.RoleSuperAdmin)
		h.staff.On("Deactivate", mock.Anything, id, id, mock.Anything).Return(staff.ErrSelfDeactivation)

		resp := h.doAs(token, testutil.Request{Method: http.MethodDelete, Path: "/api/admin/staff/" + id.String()})

		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, CodeBadRequest, resp.ErrorCode())
	})

	t.Run("unexpected failure", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleSuperAdmin)
		h.staff.On("Deactivate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset"))

		resp := h.doAs(token, testutil.Request{Method: http.MethodDelete, Path: "/api/admin/staff/" + uuid.NewString()})

		require.Equal(t, http.StatusInternalServerError, resp.Code)
		assert.Equal(t, CodeInternalError, resp.ErrorCode())
	})
}
