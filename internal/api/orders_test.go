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
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/orders"
	"github.com/the-bazaar/bazaar-backend/internal/rbac"
	"github.com/the-bazaar/bazaar-backend/internal/testutil"
)

func TestGetOrderOwnership(t *testing.T) {
	t.Run("buyer reads own order", func(t *testing.T) {
		h := newHarness(t)
		token, buyer := h.signIn(rbac.RoleBuyer)
		order := db.Order{ID: uuid.New(), BuyerID: buyer, VendorID: uuid.New(), Status: "pending"}
		h.orders.On("Owners", mock.Anything, order.ID).Return([]uuid.UUID{order.BuyerID, order.VendorID}, nil)
		h.orders.On("Get", mock.Anything, order.ID).Return(order, nil)

		resp := h.doAs(token, testutil.Request{Method: http.MethodGet, Path: "/api/orders/" + order.ID.String()})

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, order.ID.String(), resp.Body["id"])
	})

	t.Run("other buyers are refused", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleBuyer)
		id := uuid.New()
		h.orders.On("Owners", mock.Anything, id).Return([]uuid.UUID{uuid.New(), uuid.New()}, nil)

		resp := h.doAs(token, testutil.Request{Method: http.MethodGet, Path: "/api/orders/" + id.String()})

		require.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, auth.CodeNotOwner, resp.ErrorCode())
		h.orders.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("admins skip the ownership lookup", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleViewer)
		order := db.Order{ID: uuid.New(), Status: "paid"}
		h.orders.On("Get", mock.Anything, order.ID).Return(order, nil)

		resp := h.doAs(token, testutil.Request{Method: http.MethodGet, Path: "/api/orders/" + order.ID.String()})

		require.Equal(t, http.StatusOK, resp.Code)
		h.orders.AssertNotCalled(t, "Owners", mock.Anything, mock.Anything)
	})

	t.Run("unknown order is not found", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleBuyer)
		id := uuid.New()
		h.orders.On("Owners", mock.Anything, id).Return(nil, orders.ErrNotFound)

		resp := h.doAs(token, testutil.Request{Method: http.MethodGet, Path: "/api/orders/" + id.String()})

		require.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, auth.CodeResourceNotFound, resp.ErrorCode())
	})

	t.Run("malformed id is not found", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleBuyer)

		resp := h.doAs(token, testutil.Request{Method: http.MethodGet, Path: "/api/orders/42"})

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("owner lookup failure is a service error", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleBuyer)
		id := uuid.New()
		h.orders.On("Owners", mock.Anything, id).Return(nil, errors.New("pool closed"))

		resp := h.doAs(token, testutil.Request{Method: http.MethodGet, Path: "/api/orders/" + id.String()})

		require.Equal(t, http.StatusInternalServerError, resp.Code)
		assert.Equal(t, auth.CodeServiceError, resp.ErrorCode())
	})
}

func TestListVendorOrders(t *testing.T) {
	t.Run("lists the caller's orders", func(t *testing.T) {
		h := newHarness(t)
		token, vendor := h.signIn(rbac.RoleVendor)
		h.orders.On("ListForVendor", mock.Anything, vendor, int64(50), int64(0)).
			Return([]db.Order{{ID: uuid.New(), VendorID: vendor}}, nil)

		resp := h.doAs(token, testutil.Request{Method: http.MethodGet, Path: "/api/vendor/orders"})

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, resp.Body["orders"], 1)
	})

	t.Run("buyers are refused", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleBuyer)

		resp := h.doAs(token, testutil.Request{Method: http.MethodGet, Path: "/api/vendor/orders"})

		require.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, auth.CodeVendorRequired, resp.ErrorCode())
	})
}

func TestUpdateOrderStatus(t *testing.T) {
	t.Run("transitions", func(t *testing.T) {
		h := newHarness(t)
		token, actor := h.signIn(rbac.RoleStaff)
		id := uuid.New()
		h.orders.On("UpdateStatus", mock.Anything, actor, id, "shipped", mock.Anything).
			Return(db.Order{ID: id, Status: "shipped"}, nil)

		resp := h.doAs(token, testutil.Request{
			Method: http.MethodPatch,
			Path:   "/api/admin/orders/" + id.String() + "/status",
			Body:   map[string]string{"status": "shipped"},
		})

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "shipped", resp.Body["status"])
	})

	t.Run("refunds need the refund route", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleStaff)
		id := uuid.New()

		refund := h.doAs(token, testutil.Request{Method: http.MethodPost, Path: "/api/admin/orders/" + id.String() + "/refund"})
		require.Equal(t, http.StatusForbidden, refund.Code)

		resp := h.doAs(token, testutil.Request{
			Method: http.MethodPatch,
			Path:   "/api/admin/orders/" + id.String() + "/status",
			Body:   map[string]string{"status": "refunded"},
		})

		require.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, CodeInvalidState, resp.ErrorCode())
		h.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		h.orders.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("viewers lack orders:update", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleViewer)

		resp := h.doAs(token, testutil.Request{
			Method: http.MethodPatch,
			Path:   "/api/admin/orders/" + uuid.NewString() + "/status",
			Body:   map[string]string{"status": "shipped"},
		})

		require.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, auth.CodeMissingPermission, resp.ErrorCode())
	})

	errorCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown status", orders.ErrUnknownStatus, http.StatusBadRequest, CodeValidationError},
		{"illegal transition", orders.ErrInvalidTransition, http.StatusConflict, CodeInvalidState},
		{"unknown order", orders.ErrNotFound, http.StatusNotFound, CodeResourceNotFound},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			token, _ := h.signIn(rbac.RoleManager)
			h.orders.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(db.Order{}, tc.err)

			resp := h.doAs(token, testutil.Request{
				Method: http.MethodPatch,
				Path:   "/api/admin/orders/" + uuid.NewString() + "/status",
				Body:   map[string]string{"status": "teleported"},
			})

			assert.Equal(t, tc.status, resp.Code)
			assert.Equal(t, tc.code, resp.ErrorCode())
		})
	}
}

func TestRefundOrder(t *testing.T) {
	t.Run("managers cannot refund", func(t *testing.T) {
		h := newHarness(t)
		token, _ := h.signIn(rbac.RoleManager)

		resp := h.doAs(token, testutil.Request{Method: http.MethodPost, Path: "/api/admin/orders/" + uuid.NewString() + "/refund"})

		require.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, auth.CodeMissingPermission, resp.ErrorCode())
	})

	t.Run("unpaid orders conflict", func(t *testing.T) {
		h := newHarness(t)
		token, actor := h.signIn(rbac.RoleAdmin)
		id := uuid.New()
		h.orders.On("Refund", mock.Anything, actor, id, mock.Anything).Return(db.Order{}, orders.ErrNotPaid)

		resp := h.doAs(token, testutil.Request{Method: http.MethodPost, Path: "/api/admin/orders/" + id.String() + "/refund"})

		require.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, CodeInvalidState, resp.ErrorCode())
	})

	t.Run("refunds", func(t *testing.T) {
		h := newHarness(t)
		token, actor := h.signIn(rbac.RoleAdmin)
		id := uuid.New()
		h.orders.On("Refund", mock.Anything, actor, id, mock.Anything).
			Return(db.Order{ID: id, Status: "refunded", PaymentStatus: "refunded"}, nil)

		resp := h.doAs(token, testutil.Request{Method: http.MethodPost, Path: "/api/admin/orders/" + id.String() + "/refund"})

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "refunded", resp.Body["payment_status"])
	})
}
