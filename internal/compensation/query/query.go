// Package query implements the Query API (C10): read-only
// compensation summaries, ledger feeds, and admin aggregates.
package query

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/brave-intl/compensation-engine/internal/appctx"
	"github.com/brave-intl/compensation-engine/internal/compensation/ledger"
	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/compensation/queue"
	"github.com/brave-intl/compensation-engine/internal/compensation/registry"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/errs"
)

// Service answers read-only compensation queries.
type Service struct {
	pg       *datastore.Postgres
	registry *registry.Store
	ledger   *ledger.Store
	queue    *queue.Store
}

// New builds a query Service.
func New(pg *datastore.Postgres, reg *registry.Store, led *ledger.Store, q *queue.Store) *Service {
	return &Service{pg: pg, registry: reg, ledger: led, queue: q}
}

// Summary returns a partner's compensation snapshot (spec §4.10).
func (s *Service) Summary(ctx context.Context, partnerID uuid.UUID) (*models.Summary, error) {
	partner, err := s.registry.GetByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	directBonus, err := s.ledger.SumByKind(ctx, partnerID, models.KindDirectReferral, models.LedgerApproved)
	if err != nil {
		return nil, err
	}
	teamCommission, err := s.ledger.SumByKind(ctx, partnerID, models.KindTeamCommission, models.LedgerApproved)
	if err != nil {
		return nil, err
	}
	rankBonuses, err := s.ledger.SumByKind(ctx, partnerID, models.KindRankBonus, models.LedgerApproved)
	if err != nil {
		return nil, err
	}
	pendingPayoutsNeg, err := s.ledger.SumByKind(ctx, partnerID, models.KindPayout, models.LedgerPending)
	if err != nil {
		return nil, err
	}
	pendingWeekly, err := s.queue.PendingSum(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	return &models.Summary{
		TotalEarnings:            partner.TotalEarnings,
		WalletBalance:            partner.WalletBalance,
		PendingPayouts:           pendingPayoutsNeg.Neg(), // stored negative; surfaced as a positive reserved amount
		DirectReferralBonus:      directBonus,
		TeamCommission:           teamCommission,
		RankBonuses:              rankBonuses,
		PendingWeeklyCommissions: pendingWeekly,
	}, nil
}

// Feed returns a partner's most-recent ledger entries.
func (s *Service) Feed(ctx context.Context, partnerID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	return s.ledger.Feed(ctx, partnerID, limit)
}

// LedgerAggregate is one row of an admin ledger aggregation.
type LedgerAggregate struct {
	Kind   models.LedgerEntryKind `db:"kind" json:"kind"`
	Count  int64                  `db:"count" json:"count"`
	Amount decimal.Decimal        `db:"amount" json:"amount"`
}

// AdminLedgerAggregate rolls up approved ledger entries by kind over
// [start, until), for the admin ledger aggregate endpoint (expansion,
// grounded on eyeshade/datastore.go's GetSettlementStats/GetGrantStats).
func (s *Service) AdminLedgerAggregate(ctx context.Context, kind *models.LedgerEntryKind, start, until time.Time) ([]LedgerAggregate, error) {
	db := s.queryer(ctx)
	var rows []LedgerAggregate
	var err error
	if kind != nil {
		err = db.SelectContext(ctx, &rows, `
			SELECT kind, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount
			FROM ledger_entries
			WHERE status = $1 AND kind = $2 AND created_at >= $3 AND created_at < $4
			GROUP BY kind`,
			models.LedgerApproved, *kind, start, until)
	} else {
		err = db.SelectContext(ctx, &rows, `
			SELECT kind, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount
			FROM ledger_entries
			WHERE status = $1 AND created_at >= $2 AND created_at < $3
			GROUP BY kind`,
			models.LedgerApproved, start, until)
	}
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to aggregate ledger", nil)
	}
	return rows, nil
}

type queryer interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (s *Service) queryer(ctx context.Context) queryer {
	if tx, ok := ctx.Value(appctx.DatabaseTransactionCTXKey).(*sqlx.Tx); ok {
		return tx
	}
	return s.pg.RawDB()
}
