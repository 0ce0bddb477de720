// Package registry implements the Partner Registry (C1): partner
// identity, referral codes, and the aggregate counters every other
// component reads or mutates through it.
package registry

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/brave-intl/compensation-engine/internal/appctx"
	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/errs"
	"github.com/brave-intl/compensation-engine/internal/logging"
)

const referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const referralCodeLength = 8
const referralCodeMaxAttempts = 10

// Store is the Partner Registry's Postgres-backed implementation.
// Every mutating method joins the transaction already on ctx — begun
// by Order Ingest, the Ledger or the Rank Engine (spec §4.1: "all
// mutating operations require a transaction handle from C3");
// datastore.GetTx is a no-op reuse in that case and begins a new
// transaction for standalone callers such as Create.
type Store struct {
	pg *datastore.Postgres
}

// New builds a registry Store over pg.
func New(pg *datastore.Postgres) *Store {
	return &Store{pg: pg}
}

func generateReferralCode() (string, error) {
	b := make([]byte, referralCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = referralCodeAlphabet[int(b[i])%len(referralCodeAlphabet)]
	}
	return string(b), nil
}

// Create registers a new partner. If referrerCode is non-nil it must
// resolve to an existing partner or Create fails with errs.Validation
// ("unknown referral code").
func (s *Store) Create(ctx context.Context, referrerCode *string) (*models.Partner, error) {
	logger := logging.Logger(ctx, "registry.Create")
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return nil, err
	}
	defer rollback()

	var referrerID *uuid.UUID
	if referrerCode != nil {
		referrer, err := s.getByReferralCodeTx(ctx, tx, *referrerCode)
		if err != nil {
			return nil, errs.New(errs.Validation, "unknown referral code", *referrerCode)
		}
		referrerID = &referrer.ID
	}

	partner := &models.Partner{
		ID:               uuid.New(),
		ReferrerID:       referrerID,
		Role:             "partner",
		Rank:             models.RankStarter,
		DirectSalesUnits: 0,
		TeamSalesUnits:   0,
		TotalEarnings:    decimal.Zero,
		WalletBalance:    decimal.Zero,
		InsuranceAmount:  decimal.Zero,
		CreatedAt:        time.Now(),
	}

	var code string
	for attempt := 0; attempt < referralCodeMaxAttempts; attempt++ {
		code, err = generateReferralCode()
		if err != nil {
			return nil, err
		}
		partner.ReferralCode = code
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO partners
				(id, referrer_id, referral_code, role, rank, direct_sales_units,
				 team_sales_units, total_earnings, wallet_balance, insurance_amount, created_at)
			VALUES
				(:id, :referrer_id, :referral_code, :role, :rank, :direct_sales_units,
				 :team_sales_units, :total_earnings, :wallet_balance, :insurance_amount, :created_at)`,
			partner)
		if err == nil {
			break
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			continue
		}
		logger.Error().Err(err).Msg("failed to insert partner")
		return nil, errs.New(errs.Transient, "failed to create partner", nil)
	}
	if err != nil {
		logger.Error().Msg("exhausted referral code attempts")
		return nil, errs.New(errs.Transient, "could not allocate a unique referral code", nil)
	}

	if err := commit(); err != nil {
		return nil, errs.New(errs.Transient, "failed to commit partner creation", nil)
	}
	return partner, nil
}

// GetByID loads a partner by id.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	db := txOrDB(ctx, s.pg)
	var partner models.Partner
	err := db.GetContext(ctx, &partner, `SELECT * FROM partners WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "partner not found", id)
	}
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to load partner", nil)
	}
	return &partner, nil
}

// GetByIDs batch-loads partners in one round trip (grounded on
// eyeshade/datastore.go's pq.Array batching). No component in this
// module calls it; the Query API's feed does not resolve partners.
func (s *Store) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Partner, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db := txOrDB(ctx, s.pg)
	var partners []*models.Partner
	err := db.SelectContext(ctx, &partners, `SELECT * FROM partners WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to batch-load partners", nil)
	}
	return partners, nil
}

// GetByReferralCode loads a partner by referral code.
func (s *Store) GetByReferralCode(ctx context.Context, code string) (*models.Partner, error) {
	db := txOrDB(ctx, s.pg)
	return getByReferralCode(ctx, db, code)
}

func (s *Store) getByReferralCodeTx(ctx context.Context, tx *sqlx.Tx, code string) (*models.Partner, error) {
	return getByReferralCode(ctx, tx, code)
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func getByReferralCode(ctx context.Context, db queryer, code string) (*models.Partner, error) {
	var partner models.Partner
	err := db.GetContext(ctx, &partner, `SELECT * FROM partners WHERE referral_code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "partner not found", code)
	}
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to load partner", nil)
	}
	return &partner, nil
}

// IncrementDirect adds units to direct_sales_units and stamps last_sale_at.
func (s *Store) IncrementDirect(ctx context.Context, id uuid.UUID, units int64) error {
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return err
	}
	defer rollback()
	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE partners SET direct_sales_units = direct_sales_units + $1, last_sale_at = $2
		WHERE id = $3`, units, now, id)
	if err != nil {
		return errs.New(errs.Transient, "failed to increment direct sales units", nil)
	}
	if err := requireRowsAffected(res, id); err != nil {
		return err
	}
	return commit()
}

// IncrementTeam adds units to team_sales_units.
func (s *Store) IncrementTeam(ctx context.Context, id uuid.UUID, units int64) error {
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return err
	}
	defer rollback()
	res, err := tx.ExecContext(ctx, `UPDATE partners SET team_sales_units = team_sales_units + $1 WHERE id = $2`, units, id)
	if err != nil {
		return errs.New(errs.Transient, "failed to increment team sales units", nil)
	}
	if err := requireRowsAffected(res, id); err != nil {
		return err
	}
	return commit()
}

// Credit adds amount to both wallet_balance and total_earnings. Never
// called outside the Ledger, which is the sole caller of this and
// Debit (spec §4.1).
func (s *Store) Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return err
	}
	defer rollback()
	res, err := tx.ExecContext(ctx, `
		UPDATE partners SET wallet_balance = wallet_balance + $1, total_earnings = total_earnings + $1
		WHERE id = $2`, amount, id)
	if err != nil {
		return errs.New(errs.Transient, "failed to credit partner", nil)
	}
	if err := requireRowsAffected(res, id); err != nil {
		return err
	}
	return commit()
}

// RefundWallet adds amount back to wallet_balance only, leaving
// total_earnings untouched. Used to reverse a Debit (a rejected
// payout is not an approved credit, so it must not inflate lifetime
// earnings — spec §3/§4.8).
func (s *Store) RefundWallet(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return err
	}
	defer rollback()
	res, err := tx.ExecContext(ctx, `
		UPDATE partners SET wallet_balance = wallet_balance + $1
		WHERE id = $2`, amount, id)
	if err != nil {
		return errs.New(errs.Transient, "failed to refund partner wallet", nil)
	}
	if err := requireRowsAffected(res, id); err != nil {
		return err
	}
	return commit()
}

// Debit subtracts amount from wallet_balance only, failing with
// errs.InsufficientFunds if the balance would go negative. Enforces
// the "wallet_balance >= 0 at rest" invariant at the row level via
// the WHERE clause so concurrent debits cannot race past zero.
func (s *Store) Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return err
	}
	defer rollback()
	res, err := tx.ExecContext(ctx, `
		UPDATE partners SET wallet_balance = wallet_balance - $1
		WHERE id = $2 AND wallet_balance >= $1`, amount, id)
	if err != nil {
		return errs.New(errs.Transient, "failed to debit partner", nil)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errs.New(errs.Transient, "failed to read debit result", nil)
	}
	if affected == 0 {
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return errs.New(errs.InsufficientFunds, "wallet balance too low", id)
	}
	return commit()
}

// SetRank advances a partner's rank.
func (s *Store) SetRank(ctx context.Context, id uuid.UUID, rank models.Rank) error {
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return err
	}
	defer rollback()
	res, err := tx.ExecContext(ctx, `UPDATE partners SET rank = $1 WHERE id = $2`, rank, id)
	if err != nil {
		return errs.New(errs.Transient, "failed to set rank", nil)
	}
	if err := requireRowsAffected(res, id); err != nil {
		return err
	}
	return commit()
}

// SetInsurance overwrites the partner's current insurance entitlement.
func (s *Store) SetInsurance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return err
	}
	defer rollback()
	res, err := tx.ExecContext(ctx, `UPDATE partners SET insurance_amount = $1 WHERE id = $2`, amount, id)
	if err != nil {
		return errs.New(errs.Transient, "failed to set insurance amount", nil)
	}
	if err := requireRowsAffected(res, id); err != nil {
		return err
	}
	return commit()
}

func requireRowsAffected(res sql.Result, id uuid.UUID) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return errs.New(errs.Transient, "failed to read update result", nil)
	}
	if affected == 0 {
		return errs.New(errs.NotFound, "partner not found", id)
	}
	return nil
}

// dbOrTx abstracts over *sqlx.DB and *sqlx.Tx for read paths.
type dbOrTx interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func txOrDB(ctx context.Context, pg *datastore.Postgres) dbOrTx {
	if tx, ok := ctx.Value(appctx.DatabaseTransactionCTXKey).(*sqlx.Tx); ok {
		return tx
	}
	return pg.RawDB()
}
