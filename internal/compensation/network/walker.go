// Package network implements the Network Walker (C2): upline
// traversal with cycle protection and the tiered commission rate
// table.
package network

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/brave-intl/compensation-engine/internal/appctx"
	"github.com/brave-intl/compensation-engine/internal/config"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/errs"
)

// UplineMember is one step of a resolved upline chain.
type UplineMember struct {
	PartnerID      uuid.UUID
	Level          int
	TeamSalesUnits int64
}

// Walker resolves referrer chains and tiered commission rates.
type Walker struct {
	pg    *datastore.Postgres
	rates []config.TierRate
}

// New builds a Walker over pg, using cfg's tier rate table.
func New(pg *datastore.Postgres, cfg *config.Config) *Walker {
	return &Walker{pg: pg, rates: cfg.TierRates}
}

type referrerRow struct {
	ID             uuid.UUID  `db:"id"`
	ReferrerID     *uuid.UUID `db:"referrer_id"`
	TeamSalesUnits int64      `db:"team_sales_units"`
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (w *Walker) queryer(ctx context.Context) queryer {
	if tx, ok := ctx.Value(appctx.DatabaseTransactionCTXKey).(*sqlx.Tx); ok {
		return tx
	}
	return w.pg.RawDB()
}

// Upline yields the referrer chain starting at the immediate referrer,
// terminating at a root or a previously-seen id (cycle guard).
// maxDepth is a safety bound, not a business rule (spec §4.2).
func (w *Walker) Upline(ctx context.Context, partnerID uuid.UUID, maxDepth int) ([]UplineMember, error) {
	db := w.queryer(ctx)

	seen := map[uuid.UUID]bool{partnerID: true}
	members := make([]UplineMember, 0, 8)
	currentID := partnerID

	for level := 1; level <= maxDepth; level++ {
		var row referrerRow
		err := db.GetContext(ctx, &row, `SELECT id, referrer_id, team_sales_units FROM partners WHERE id = $1`, currentID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.New(errs.NotFound, "partner not found while walking upline", currentID)
		}
		if err != nil {
			return nil, errs.New(errs.Transient, "failed to read partner while walking upline", nil)
		}
		if row.ReferrerID == nil {
			break
		}
		next := *row.ReferrerID
		if seen[next] {
			break
		}
		seen[next] = true

		var nextRow referrerRow
		err = db.GetContext(ctx, &nextRow, `SELECT id, referrer_id, team_sales_units FROM partners WHERE id = $1`, next)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return nil, errs.New(errs.Transient, "failed to read upline partner", nil)
		}

		members = append(members, UplineMember{PartnerID: nextRow.ID, Level: level, TeamSalesUnits: nextRow.TeamSalesUnits})
		currentID = nextRow.ID
	}
	return members, nil
}

// Downline is the mirror query (children instead of ancestors),
// returning a partner's team. Order Ingest does not use it, and no
// route or command calls it. Carries the same cycle guard as Upline
// but walks breadth-first since a partner may have many direct
// children.
func (w *Walker) Downline(ctx context.Context, partnerID uuid.UUID, maxDepth int) ([]UplineMember, error) {
	db := w.queryer(ctx)

	seen := map[uuid.UUID]bool{partnerID: true}
	frontier := []uuid.UUID{partnerID}
	members := make([]UplineMember, 0, 8)

	for level := 1; level <= maxDepth && len(frontier) > 0; level++ {
		var children []referrerRow
		err := db.SelectContext(ctx, &children, `SELECT id, referrer_id, team_sales_units FROM partners WHERE referrer_id = ANY($1)`, pq.Array(frontier))
		if err != nil {
			return nil, errs.New(errs.Transient, "failed to read downline", nil)
		}

		var next []uuid.UUID
		for _, child := range children {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			members = append(members, UplineMember{PartnerID: child.ID, Level: level, TeamSalesUnits: child.TeamSalesUnits})
			next = append(next, child.ID)
		}
		frontier = next
	}
	return members, nil
}

// TieredRate returns 0.02 when units<=1000, 0.01 when 1000<units<=10000,
// and 0.001 otherwise (spec §4.2, boundaries inclusive on the lower tier).
func (w *Walker) TieredRate(totalTeamUnits int64) decimal.Decimal {
	units := decimal.NewFromInt(totalTeamUnits)
	for _, tier := range w.rates {
		if tier.MaxUnits.IsZero() {
			return tier.Rate // unbounded final tier
		}
		if units.LessThanOrEqual(tier.MaxUnits) {
			return tier.Rate
		}
	}
	// Unreachable given New's config always ends on an unbounded tier,
	// but fall back to the most conservative rate rather than panic.
	if len(w.rates) > 0 {
		return w.rates[len(w.rates)-1].Rate
	}
	return decimal.Zero
}
