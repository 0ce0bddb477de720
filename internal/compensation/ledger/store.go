// Package ledger implements the Ledger (C3): the append-mostly record
// of compensation transactions and the sole authority for wallet and
// earnings mutations.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/brave-intl/compensation-engine/internal/appctx"
	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/compensation/registry"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/errs"
	"github.com/brave-intl/compensation-engine/internal/logging"
)

// Store is the Ledger's Postgres-backed implementation. It owns the
// registry.Store it was built with and is the only caller of its
// Credit/Debit methods (spec §4.1).
type Store struct {
	pg       *datastore.Postgres
	registry *registry.Store
}

// New builds a ledger Store over pg, driving reg for wallet/earnings mutation.
func New(pg *datastore.Postgres, reg *registry.Store) *Store {
	return &Store{pg: pg, registry: reg}
}

// RecordCredit writes an approved credit entry and simultaneously
// bumps wallet_balance and total_earnings. A non-positive amount is a
// no-op returning a synthetic zero entry (spec §4.3).
func (s *Store) RecordCredit(ctx context.Context, partnerID uuid.UUID, kind models.LedgerEntryKind, amount decimal.Decimal, description string, ref *uuid.UUID) (*models.LedgerEntry, error) {
	if amount.Sign() <= 0 {
		return &models.LedgerEntry{
			ID:          uuid.Nil,
			PartnerID:   partnerID,
			Kind:        kind,
			Amount:      decimal.Zero,
			Description: description,
			Status:      models.LedgerApproved,
			CreatedAt:   time.Now(),
		}, nil
	}

	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return nil, err
	}
	defer rollback()

	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		PartnerID:   partnerID,
		Kind:        kind,
		Amount:      amount,
		Description: description,
		ReferenceID: ref,
		Status:      models.LedgerApproved,
		CreatedAt:   time.Now(),
	}
	if err := insertEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := s.registry.Credit(ctx, partnerID, amount); err != nil {
		return nil, err
	}
	if err := commit(); err != nil {
		return nil, errs.New(errs.Transient, "failed to commit credit", nil)
	}
	return entry, nil
}

// RecordPayout validates amount > 0, writes a pending entry of −amount
// and reserves the same amount out of wallet_balance. Callers (the
// Payout Service) are expected to have already checked
// MIN_WALLET_WITHDRAWAL and sufficiency; Debit re-enforces sufficiency
// at the row level regardless.
func (s *Store) RecordPayout(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal) (*models.LedgerEntry, error) {
	if amount.Sign() <= 0 {
		return nil, errs.New(errs.Validation, "payout amount must be positive", amount)
	}

	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return nil, err
	}
	defer rollback()

	if err := s.registry.Debit(ctx, partnerID, amount); err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		PartnerID:   partnerID,
		Kind:        models.KindPayout,
		Amount:      amount.Neg(),
		Description: "wallet withdrawal",
		Status:      models.LedgerPending,
		CreatedAt:   time.Now(),
	}
	if err := insertEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := commit(); err != nil {
		return nil, errs.New(errs.Transient, "failed to commit payout", nil)
	}
	return entry, nil
}

// ApprovePayout stamps a pending payout entry approved; no balance
// change since the amount was already reserved by RecordPayout.
func (s *Store) ApprovePayout(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error) {
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return nil, err
	}
	defer rollback()

	entry, err := getEntryForUpdate(ctx, tx, entryID)
	if err != nil {
		return nil, err
	}
	if err := requirePendingPayout(entry); err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `UPDATE ledger_entries SET status = $1, processed_at = $2 WHERE id = $3`,
		models.LedgerApproved, now, entryID)
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to approve payout", nil)
	}
	entry.Status = models.LedgerApproved
	entry.ProcessedAt = &now

	if err := commit(); err != nil {
		return nil, errs.New(errs.Transient, "failed to commit payout approval", nil)
	}
	return entry, nil
}

// RejectPayout cancels a pending payout entry and refunds the
// reserved amount back onto the wallet.
func (s *Store) RejectPayout(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error) {
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return nil, err
	}
	defer rollback()

	entry, err := getEntryForUpdate(ctx, tx, entryID)
	if err != nil {
		return nil, err
	}
	if err := requirePendingPayout(entry); err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `UPDATE ledger_entries SET status = $1, processed_at = $2 WHERE id = $3`,
		models.LedgerCancelled, now, entryID)
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to reject payout", nil)
	}

	refund := entry.Amount.Neg() // entry.Amount is negative; refund is its magnitude
	if err := s.registry.RefundWallet(ctx, entry.PartnerID, refund); err != nil {
		return nil, err
	}

	entry.Status = models.LedgerCancelled
	entry.ProcessedAt = &now

	if err := commit(); err != nil {
		return nil, errs.New(errs.Transient, "failed to commit payout rejection", nil)
	}
	return entry, nil
}

func requirePendingPayout(entry *models.LedgerEntry) error {
	if entry.Kind != models.KindPayout {
		return errs.New(errs.Validation, "entry is not a payout", entry.ID)
	}
	if entry.Status != models.LedgerPending {
		return errs.New(errs.Conflict, "payout entry is already terminal", entry.ID)
	}
	return nil
}

// SumByKind returns the sum of amounts for partnerID's entries of kind
// in the given status (an empty status means "approved").
func (s *Store) SumByKind(ctx context.Context, partnerID uuid.UUID, kind models.LedgerEntryKind, status models.LedgerEntryStatus) (decimal.Decimal, error) {
	if status == "" {
		status = models.LedgerApproved
	}
	db := s.queryer(ctx)
	var sum sql.NullString
	err := db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE partner_id = $1 AND kind = $2 AND status = $3`,
		partnerID, kind, status)
	if err != nil {
		return decimal.Zero, errs.New(errs.Transient, "failed to sum ledger entries", nil)
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(sum.String)
	if err != nil {
		return decimal.Zero, errs.New(errs.Transient, "failed to parse ledger sum", nil)
	}
	return d, nil
}

// Feed returns a partner's most-recent ledger entries, newest first.
func (s *Store) Feed(ctx context.Context, partnerID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	db := s.queryer(ctx)
	var entries []*models.LedgerEntry
	err := db.SelectContext(ctx, &entries, `
		SELECT * FROM ledger_entries WHERE partner_id = $1 ORDER BY created_at DESC LIMIT $2`, partnerID, limit)
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to load ledger feed", nil)
	}
	return entries, nil
}

func insertEntry(ctx context.Context, tx *sqlx.Tx, entry *models.LedgerEntry) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO ledger_entries
			(id, partner_id, kind, amount, description, reference_id, status, created_at, processed_at)
		VALUES
			(:id, :partner_id, :kind, :amount, :description, :reference_id, :status, :created_at, :processed_at)`,
		entry)
	if err != nil {
		logging.Logger(ctx, "ledger.insertEntry").Error().Err(err).Msg("failed to insert ledger entry")
		return errs.New(errs.Transient, "failed to insert ledger entry", nil)
	}
	return nil
}

func getEntryForUpdate(ctx context.Context, tx *sqlx.Tx, entryID uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := tx.GetContext(ctx, &entry, `SELECT * FROM ledger_entries WHERE id = $1 FOR UPDATE`, entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "ledger entry not found", entryID)
	}
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to load ledger entry", nil)
	}
	return &entry, nil
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (s *Store) queryer(ctx context.Context) queryer {
	if tx, ok := ctx.Value(appctx.DatabaseTransactionCTXKey).(*sqlx.Tx); ok {
		return tx
	}
	return s.pg.RawDB()
}
