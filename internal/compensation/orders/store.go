// Package orders backs the order-scoped read/transition endpoints
// that sit alongside Order Ingest: GET /orders, GET /orders/{id}, and
// the out-of-band payment-gateway status transition.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/errs"
)

// Store is the Order read/transition store.
type Store struct {
	pg *datastore.Postgres
}

// New builds an orders Store over pg.
func New(pg *datastore.Postgres) *Store {
	return &Store{pg: pg}
}

// Get loads one order, enforcing that callerID owns it.
func (s *Store) Get(ctx context.Context, orderID, callerID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.pg.RawDB().GetContext(ctx, &order, `SELECT * FROM orders WHERE id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "order not found", orderID)
	}
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to load order", nil)
	}
	if order.BuyerPartnerID != callerID {
		return nil, errs.New(errs.Forbidden, "order belongs to a different partner", orderID)
	}
	return &order, nil
}

// List returns callerID's own orders, most recent first.
func (s *Store) List(ctx context.Context, callerID uuid.UUID, limit int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []*models.Order
	err := s.pg.RawDB().SelectContext(ctx, &list, `
		SELECT * FROM orders WHERE buyer_partner_id = $1 ORDER BY created_at DESC LIMIT $2`, callerID, limit)
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to list orders", nil)
	}
	return list, nil
}

var validTransitions = map[models.OrderStatus]map[models.OrderStatus]bool{
	models.OrderPending: {
		models.OrderPaid:     true,
		models.OrderFailed:   true,
		models.OrderRefunded: true,
	},
}

// UpdateStatus transitions an order's status. Out-of-band
// payment-gateway verification lives outside the core (spec §6); this
// only records the resulting state and stamps paid_at for "paid".
func (s *Store) UpdateStatus(ctx context.Context, orderID, callerID uuid.UUID, newStatus models.OrderStatus) (*models.Order, error) {
	order, err := s.Get(ctx, orderID, callerID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, errs.New(errs.Conflict, "order is already terminal", orderID)
	}
	if !validTransitions[order.Status][newStatus] {
		return nil, errs.New(errs.Validation, "invalid order status transition", newStatus)
	}

	var paidAt *time.Time
	if newStatus == models.OrderPaid {
		now := time.Now()
		paidAt = &now
	}

	_, err = s.pg.RawDB().ExecContext(ctx, `UPDATE orders SET status = $1, paid_at = $2 WHERE id = $3`, newStatus, paidAt, orderID)
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to update order status", nil)
	}
	order.Status = newStatus
	order.PaidAt = paidAt
	return order, nil
}
