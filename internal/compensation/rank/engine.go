// Package rank implements the Rank Engine (C6): post-purchase
// threshold checks, one-step promotion, rank bonus credit and
// one-shot insurance assignment.
package rank

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/brave-intl/compensation-engine/internal/compensation/ledger"
	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/compensation/registry"
	"github.com/brave-intl/compensation-engine/internal/config"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/errs"
	"github.com/brave-intl/compensation-engine/internal/logging"
)

// Engine evaluates a partner against the rank ladder after each purchase.
type Engine struct {
	pg       *datastore.Postgres
	registry *registry.Store
	ledger   *ledger.Store
	ladder   []config.RankStep
}

// New builds a rank Engine using cfg's rank ladder.
func New(pg *datastore.Postgres, reg *registry.Store, led *ledger.Store, cfg *config.Config) *Engine {
	return &Engine{pg: pg, registry: reg, ledger: led, ladder: cfg.RankLadder}
}

// rankForStepIndex maps a ladder index ("achiever" is index 0) to its
// models.Rank; models.RankOrder[0] is "starter", never awarded here.
func rankForStepIndex(i int) models.Rank {
	if i+1 < len(models.RankOrder) {
		return models.RankOrder[i+1]
	}
	return models.RankOrder[len(models.RankOrder)-1]
}

// Evaluate checks partnerID against the ladder and, if a new rank is
// reached, awards it: sets the rank, credits a rank_bonus, and — if
// the step carries insurance — creates an InsuranceAssignment and
// updates insurance_amount. A single call never promotes more than one
// step (spec §4.6): it only ever inspects the single rung directly
// above the partner's current rank, so even a purchase that jumps
// several thresholds at once awards just that one rung; a later call
// picks up the next rung in turn.
func (e *Engine) Evaluate(ctx context.Context, partnerID uuid.UUID) error {
	logger := logging.Logger(ctx, "rank.Evaluate")

	partner, err := e.registry.GetByID(ctx, partnerID)
	if err != nil {
		return err
	}

	nextIdx := partner.Rank.Index() + 1 // first ladder rung above current rank
	if nextIdx <= 0 || nextIdx > len(e.ladder) {
		return nil // already at or above the top of the ladder
	}
	step := e.ladder[nextIdx-1]
	if int64(step.ThresholdUnit) > partner.TotalSalesUnits() {
		return nil // not yet qualified for the very next rung
	}
	newRank := rankForStepIndex(nextIdx - 1)

	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, e.pg)
	if err != nil {
		return err
	}
	defer rollback()

	if err := e.registry.SetRank(ctx, partnerID, newRank); err != nil {
		return err
	}

	description := "rank bonus for reaching " + string(newRank)
	if _, err := e.ledger.RecordCredit(ctx, partnerID, models.KindRankBonus, step.BonusAmount, description, nil); err != nil {
		return err
	}

	if step.InsuranceAmt.Sign() > 0 {
		if err := e.assignInsurance(ctx, tx, partnerID, newRank, step.InsuranceAmt); err != nil {
			return err
		}
		if err := e.registry.SetInsurance(ctx, partnerID, step.InsuranceAmt); err != nil {
			return err
		}
	}

	logger.Info().Str("partner_id", partnerID.String()).Str("new_rank", string(newRank)).Msg("partner promoted")
	return commit()
}

func (e *Engine) assignInsurance(ctx context.Context, tx *sqlx.Tx, partnerID uuid.UUID, rnk models.Rank, amount decimal.Decimal) error {
	var existing int
	err := tx.GetContext(ctx, &existing, `
		SELECT COUNT(*) FROM insurance_assignments WHERE partner_id = $1 AND rank = $2 AND status = $3`,
		partnerID, rnk, models.InsuranceActive)
	if err != nil {
		return errs.New(errs.Transient, "failed to check existing insurance assignment", nil)
	}
	if existing > 0 {
		return errs.New(errs.Conflict, "insurance already assigned for this rank", partnerID)
	}

	assignment := &models.InsuranceAssignment{
		ID:         uuid.New(),
		PartnerID:  partnerID,
		Rank:       rnk,
		Amount:     amount,
		AssignedAt: time.Now(),
		Status:     models.InsuranceActive,
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO insurance_assignments (id, partner_id, rank, amount, assigned_at, status)
		VALUES (:id, :partner_id, :rank, :amount, :assigned_at, :status)`,
		assignment)
	if err != nil {
		return errs.New(errs.Transient, "failed to insert insurance assignment", nil)
	}
	return nil
}
