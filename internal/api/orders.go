package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/middleware"
	"github.com/the-bazaar/bazaar-backend/internal/orders"
)

// orderOwners feeds RequireOwnerOrAdmin.
func (s *Server) orderOwners(r *http.Request) ([]uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		// an unparseable id names no order
		return nil, auth.ErrOwnerNotFound
	}
	owners, err := s.orders.Owners(r.Context(), id)
	if errors.Is(err, orders.ErrNotFound) {
		return nil, auth.ErrOwnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading order owners: %w", err)
	}
	return owners, nil
}

func (s *Server) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "orderID")
	if !ok {
		return
	}
	order, err := s.orders.Get(r.Context(), id)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) ListVendorOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	list, err := s.orders.ListForVendor(r.Context(), currentUser(r).ID, limit, offset)
	if err != nil {
		internalError(w, r, "failed to list vendor orders", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "orderID")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if orders.Status(req.Status) == orders.StatusRefunded {
		NewError(http.StatusConflict, CodeInvalidState, "Refunds are issued through the refund endpoint").Write(w)
		return
	}

	order, err := s.orders.UpdateStatus(r.Context(), currentUser(r).ID, id, req.Status, middleware.ClientIP(r))
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) RefundOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "orderID")
	if !ok {
		return
	}
	order, err := s.orders.Refund(r.Context(), currentUser(r).ID, id, middleware.ClientIP(r))
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		NotFound("Order").Write(w)
	case errors.Is(err, orders.ErrUnknownStatus):
		ValidationErr("Unknown order status", []ErrorDetail{{Field: "status", Message: "not a known status"}}).Write(w)
	case errors.Is(err, orders.ErrInvalidTransition):
		NewError(http.StatusConflict, CodeInvalidState, err.Error()).Write(w)
	case errors.Is(err, orders.ErrNotPaid):
		NewError(http.StatusConflict, CodeInvalidState, "Order has not been paid").Write(w)
	default:
		internalError(w, r, "order operation failed", err)
	}
}
