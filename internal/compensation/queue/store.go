// Package queue implements the Commission Queue (C4): the durable,
// append-only buffer of per-upline commission rows awaiting weekly
// settlement.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/brave-intl/compensation-engine/internal/appctx"
	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/errs"
)

// Store is the Commission Queue's Postgres-backed implementation.
type Store struct {
	pg *datastore.Postgres
}

// New builds a queue Store over pg.
func New(pg *datastore.Postgres) *Store {
	return &Store{pg: pg}
}

// Enqueue writes a pending commission row. amount<=0 is a no-op
// (spec §4.4).
func (s *Store) Enqueue(ctx context.Context, partnerID, sourceOrderID uuid.UUID, level int, units int64, amount decimal.Decimal, windowStart, windowEnd time.Time) (*models.QueuedCommission, error) {
	if amount.Sign() <= 0 {
		return nil, nil
	}

	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return nil, err
	}
	defer rollback()

	row := &models.QueuedCommission{
		ID:            uuid.New(),
		PartnerID:     partnerID,
		SourceOrderID: sourceOrderID,
		Level:         level,
		SalesUnits:    units,
		Amount:        amount,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		Status:        models.QueuedPending,
		CreatedAt:     time.Now(),
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO queued_commissions
			(id, partner_id, source_order_id, level, sales_units, amount, window_start, window_end, status, created_at, processed_at)
		VALUES
			(:id, :partner_id, :source_order_id, :level, :sales_units, :amount, :window_start, :window_end, :status, :created_at, :processed_at)`,
		row)
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to enqueue commission row", nil)
	}
	if err := commit(); err != nil {
		return nil, errs.New(errs.Transient, "failed to commit enqueued commission row", nil)
	}
	return row, nil
}

// DrainPendingGrouped returns, for each partner with pending rows,
// the aggregate (partner_id, sum(amount), sum(units), count, row_ids)
// (spec §4.4). Selects the rows FOR UPDATE for the duration of this
// call's own transaction; it does not by itself prevent a concurrent
// Settler run from draining the same rows; the advisory lock acquired
// in settler.Run before this is called is what does that.
func (s *Store) DrainPendingGrouped(ctx context.Context) ([]*models.DrainedGroup, error) {
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return nil, err
	}
	defer rollback()

	rows, err := tx.QueryxContext(ctx, `
		SELECT partner_id, amount, id FROM queued_commissions WHERE status = $1 ORDER BY partner_id FOR UPDATE`,
		models.QueuedPending)
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to scan pending commission rows", nil)
	}
	defer rows.Close()

	groups := map[uuid.UUID]*models.DrainedGroup{}
	order := make([]uuid.UUID, 0)
	for rows.Next() {
		var partnerID, id uuid.UUID
		var amount decimal.Decimal
		if err := rows.Scan(&partnerID, &amount, &id); err != nil {
			return nil, errs.New(errs.Transient, "failed to scan pending commission row", nil)
		}
		g, ok := groups[partnerID]
		if !ok {
			g = &models.DrainedGroup{PartnerID: partnerID, TotalAmount: decimal.Zero}
			groups[partnerID] = g
			order = append(order, partnerID)
		}
		g.TotalAmount = g.TotalAmount.Add(amount)
		g.RowCount++
		g.RowIDs = append(g.RowIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New(errs.Transient, "failed to iterate pending commission rows", nil)
	}

	// sales_units is summed separately to keep the row scan above
	// lightweight; a second pass reads it per group's row ids.
	result := make([]*models.DrainedGroup, 0, len(order))
	for _, partnerID := range order {
		g := groups[partnerID]
		var units int64
		if err := tx.GetContext(ctx, &units, `SELECT COALESCE(SUM(sales_units), 0) FROM queued_commissions WHERE id = ANY($1)`, pq.Array(g.RowIDs)); err != nil {
			return nil, errs.New(errs.Transient, "failed to sum commission row units", nil)
		}
		g.TotalUnits = units
		result = append(result, g)
	}

	if err := commit(); err != nil {
		return nil, errs.New(errs.Transient, "failed to commit drain read", nil)
	}
	return result, nil
}

// MarkProcessed sets status=processed and stamps processed_at for rowIDs.
func (s *Store) MarkProcessed(ctx context.Context, rowIDs []uuid.UUID) error {
	if len(rowIDs) == 0 {
		return nil
	}
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return err
	}
	defer rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE queued_commissions SET status = $1, processed_at = $2 WHERE id = ANY($3)`,
		models.QueuedProcessed, time.Now(), pq.Array(rowIDs))
	if err != nil {
		return errs.New(errs.Transient, "failed to mark commission rows processed", nil)
	}
	return commit()
}

// PendingSum returns the sum of pending amounts for one partner, the
// figure the Query API exposes as pending_weekly_commissions.
func (s *Store) PendingSum(ctx context.Context, partnerID uuid.UUID) (decimal.Decimal, error) {
	db := s.queryer(ctx)
	var sum decimal.Decimal
	err := db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0) FROM queued_commissions WHERE partner_id = $1 AND status = $2`,
		partnerID, models.QueuedPending)
	if err != nil {
		return decimal.Zero, errs.New(errs.Transient, "failed to sum pending commissions", nil)
	}
	return sum, nil
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (s *Store) queryer(ctx context.Context) queryer {
	if tx, ok := ctx.Value(appctx.DatabaseTransactionCTXKey).(*sqlx.Tx); ok {
		return tx
	}
	return s.pg.RawDB()
}
