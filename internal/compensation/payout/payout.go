// Package payout implements the Payout Service (C8): withdrawal
// requests, minimum/balance enforcement, and the
// pending/approved/cancelled transition with refund-on-reject.
package payout

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/brave-intl/compensation-engine/internal/appctx"
	"github.com/brave-intl/compensation-engine/internal/compensation/ledger"
	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/compensation/registry"
	"github.com/brave-intl/compensation-engine/internal/config"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/errs"
)

// Service drives partner withdrawal requests and the admin
// approve/reject workflow.
type Service struct {
	pg          *datastore.Postgres
	registry    *registry.Store
	ledger      *ledger.Store
	minWithdraw decimal.Decimal
}

// New builds a payout Service, enforcing cfg.MinWalletWithdrawal.
func New(pg *datastore.Postgres, reg *registry.Store, led *ledger.Store, cfg *config.Config) *Service {
	return &Service{pg: pg, registry: reg, ledger: led, minWithdraw: cfg.MinWalletWithdrawal}
}

// Request validates amount against MIN_WALLET_WITHDRAWAL and the
// partner's wallet balance, then records a pending payout (spec §4.8).
func (s *Service) Request(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal) (*models.LedgerEntry, error) {
	if amount.LessThan(s.minWithdraw) {
		return nil, errs.New(errs.MinWithdrawal, "amount is below the minimum withdrawal", amount)
	}

	partner, err := s.registry.GetByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(partner.WalletBalance) {
		return nil, errs.New(errs.InsufficientFunds, "amount exceeds wallet balance", amount)
	}

	return s.ledger.RecordPayout(ctx, partnerID, amount)
}

// Approve marks a pending payout approved; no balance change since
// the amount was already reserved on request.
func (s *Service) Approve(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error) {
	return s.ledger.ApprovePayout(ctx, entryID)
}

// Reject cancels a pending payout and refunds the reserved amount.
func (s *Service) Reject(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error) {
	return s.ledger.RejectPayout(ctx, entryID)
}

// List returns payout entries in the given status, most recent first,
// for the admin approve/reject queue (spec §6 expansion).
func (s *Service) List(ctx context.Context, status models.LedgerEntryStatus, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	db := s.queryer(ctx)
	var entries []*models.LedgerEntry
	err := db.SelectContext(ctx, &entries, `
		SELECT * FROM ledger_entries WHERE kind = $1 AND status = $2 ORDER BY created_at DESC LIMIT $3`,
		models.KindPayout, status, limit)
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to list payouts", nil)
	}
	return entries, nil
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
