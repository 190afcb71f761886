package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/the-bazaar/bazaar-backend/internal/audit"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
)

var (
	ErrNotFound          = errors.New("orders: order not found")
	ErrUnknownStatus     = errors.New("orders: unknown status")
	ErrInvalidTransition = errors.New("orders: status transition not allowed")
	ErrNotPaid           = errors.New("orders: order has not been paid")
)

type Store interface {
	audit.Store
	GetOrder(ctx context.Context, id uuid.UUID) (db.Order, error)
	GetOrderByReference(ctx context.Context, reference string) (db.Order, error)
	ListOrdersByVendor(ctx context.Context, arg db.ListOrdersByVendorParams) ([]db.Order, error)
	UpdateOrderStatus(ctx context.Context, arg db.UpdateOrderStatusParams) (db.Order, error)
	UpdateOrderPayment(ctx context.Context, arg db.UpdateOrderPaymentParams) (db.Order, error)
}

type Service struct {
	store Store
	audit *audit.Recorder
}

func NewService(store Store) *Service {
	return &Service{store: store, audit: audit.NewRecorder(store)}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (db.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Order{}, ErrNotFound
	}
	return order, err
}

// Owners returns the parties that own an order: its buyer and its vendor.
func (s *Service) Owners(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return []uuid.UUID{order.BuyerID, order.VendorID}, nil
}

func (s *Service) ListForVendor(ctx context.Context, vendorID uuid.UUID, limit, offset int64) ([]db.Order, error) {
	orders, err := s.store.ListOrdersByVendor(ctx, db.ListOrdersByVendorParams{
		VendorID: vendorID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, fmt.Errorf("listing vendor orders: %w", err)
	}
	if orders == nil {
		orders = []db.Order{}
	}
	return orders, nil
}

// UpdateStatus moves an order along the workflow. Refunds are refused here;
// they need orders:refund and go through Refund.
func (s *Service) UpdateStatus(ctx context.Context, actor uuid.UUID, id uuid.UUID, next string, ip string) (db.Order, error) {
	to, ok := ParseStatus(next)
	if !ok {
		return db.Order{}, ErrUnknownStatus
	}
	if to == StatusRefunded {
		return db.Order{}, fmt.Errorf("%w: refunds are issued through the refund endpoint", ErrInvalidTransition)
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return db.Order{}, err
	}
	from := Status(order.Status)
	if !CanTransition(from, to) {
		return db.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	updated, err := s.store.UpdateOrderStatus(ctx, db.UpdateOrderStatusParams{ID: id, Status: string(to)})
	if err != nil {
		return db.Order{}, fmt.Errorf("updating order status: %w", err)
	}

	if err := s.audit.Record(ctx, audit.Entry{
		ActorID:      &actor,
		Action:       audit.ActionOrderStatus,
		ResourceType: "order",
		ResourceID:   id.String(),
		Details:      map[string]any{"from": from, "to": to},
		IP:           ip,
	}); err != nil {
		logging.FromContext(ctx).Error("failed to audit order status change", "order_id", id, "error", err)
	}
	return updated, nil
}

// Refund marks a delivered, paid order as refunded.
func (s *Service) Refund(ctx context.Context, actor uuid.UUID, id uuid.UUID, ip string) (db.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return db.Order{}, err
	}
	if order.PaymentStatus != PaymentPaid {
		return db.Order{}, ErrNotPaid
	}
	from := Status(order.Status)
	if !CanTransition(from, StatusRefunded) {
		return db.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, StatusRefunded)
	}

	updated, err := s.store.UpdateOrderPayment(ctx, db.UpdateOrderPaymentParams{
		ID:            id,
		Status:        string(StatusRefunded),
		PaymentStatus: PaymentRefunded,
	})
	if err != nil {
		return db.Order{}, fmt.Errorf("refunding order: %w", err)
	}

	if err := s.audit.Record(ctx, audit.Entry{
		ActorID:      &actor,
		Action:       audit.ActionOrderRefunded,
		ResourceType: "order",
		ResourceID:   id.String(),
		Details:      map[string]any{"total_kobo": order.TotalKobo},
		IP:           ip,
	}); err != nil {
		logging.FromContext(ctx).Error("failed to audit refund", "order_id", id, "error", err)
	}
	return updated, nil
}

// ProcessWebhook applies a verified gateway event. Events for unknown
// references are logged and dropped; retrying them cannot succeed.
func (s *Service) ProcessWebhook(ctx context.Context, event string, data json.RawMessage) error {
	log := logging.FromContext(ctx).With("event", event)

	switch event {
	case EventChargeSuccess:
		var d chargeData
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decoding charge data: %w", err)
		}
		return s.applyCharge(ctx, log, d)
	case EventRefundProcessed:
		var d refundData
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decoding refund data: %w", err)
		}
		return s.applyRefund(ctx, log, d)
	default:
		log.Debug("ignoring webhook event")
		return nil
	}
}

func (s *Service) applyCharge(ctx context.Context, log *slog.Logger, d chargeData) error {
	order, err := s.store.GetOrderByReference(ctx, d.Reference)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Warn("charge for unknown reference", "reference", d.Reference)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading order: %w", err)
	}
	if order.PaymentStatus == PaymentPaid {
		return nil
	}

	status := Status(order.Status)
	payment := PaymentPaid
	if d.Amount != order.TotalKobo {
		log.Warn("charge amount does not match order total", "reference", d.Reference, "amount", d.Amount, "total_kobo", order.TotalKobo)
		payment = PaymentFailed
	} else if CanTransition(status, StatusConfirmed) {
		status = StatusConfirmed
	}

	_, err = s.store.UpdateOrderPayment(ctx, db.UpdateOrderPaymentParams{
		ID:            order.ID,
		Status:        string(status),
		PaymentStatus: payment,
	})
	if err != nil {
		return fmt.Errorf("recording payment: %w", err)
	}
	return nil
}

func (s *Service) applyRefund(ctx context.Context, log *slog.Logger, d refundData) error {
	order, err := s.store.GetOrderByReference(ctx, d.TransactionReference)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Warn("refund for unknown reference", "reference", d.TransactionReference)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading order: %w", err)
	}
	if order.PaymentStatus == PaymentRefunded {
		return nil
	}

	status := Status(order.Status)
	if CanTransition(status, StatusRefunded) {
		status = StatusRefunded
	}
	_, err = s.store.UpdateOrderPayment(ctx, db.UpdateOrderPaymentParams{
		ID:            order.ID,
		Status:        string(status),
		PaymentStatus: PaymentRefunded,
	})
	if err != nil {
		return fmt.Errorf("recording refund: %w", err)
	}
	return nil
}
