// Package settler implements the Weekly Settler (C7): aggregates
// pending Commission Queue rows per partner into one ledger
// team_commission credit, idempotently.
package settler

import (
	"context"
	"fmt"

	"github.com/brave-intl/compensation-engine/internal/compensation/ledger"
	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/compensation/queue"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/logging"
)

// advisoryLockKey is an arbitrary, stable string hashed by Postgres's
// hashtext() into the bigint pg_advisory_xact_lock expects. Grounded
// on services/wallet/datastore.go's waitAndLockTx pattern.
const advisoryLockKey = "compensation_engine_weekly_settler"

// Settler runs the weekly aggregation pass.
type Settler struct {
	pg     *datastore.Postgres
	queue  *queue.Store
	ledger *ledger.Store
}

// New builds a Settler over q and led.
func New(pg *datastore.Postgres, q *queue.Store, led *ledger.Store) *Settler {
	return &Settler{pg: pg, queue: q, ledger: led}
}

// Result summarizes one settlement run for scheduler-side logging
// (spec §7: "Scheduler-side errors are logged with counts ... and
// never raised to callers").
type Result struct {
	PartnersCredited int
	TotalCredited    string
	// Skipped is true when another run already held the advisory lock
	// and this call returned immediately without draining anything.
	Skipped bool
}

// Run acquires the named advisory lock before draining (spec §5: "the
// Weekly Settler acquires a named advisory lock before draining");
// a second concurrent caller — another node's scheduler fire, or a
// manual `settle` run — finds the lock held and returns immediately
// with Skipped=true rather than draining the same pending rows twice.
// Once the lock is held, it drains every partner's pending commission
// rows, writes one team_commission credit per partner for the summed
// amount, and marks those rows processed — all within one transaction
// per partner, so a mid-run crash leaves other partners unaffected
// (spec §4.7). Running twice in succession produces no new credits on
// the second run because the second DrainPendingGrouped finds no
// pending rows.
func (s *Settler) Run(ctx context.Context) (*Result, error) {
	logger := logging.Logger(ctx, "settler.Run")

	acquired, release, err := s.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		logger.Info().Msg("settler already running elsewhere; skipping this run")
		return &Result{Skipped: true}, nil
	}
	defer release()

	groups, err := s.queue.DrainPendingGrouped(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	totalCredited := 0.0
	for _, group := range groups {
		if group.RowCount == 0 {
			continue
		}
		if err := s.settleOne(ctx, group); err != nil {
			logger.Error().Err(err).Str("partner_id", group.PartnerID.String()).Msg("failed to settle partner's pending commission")
			return nil, err
		}
		result.PartnersCredited++
		amountFloat, _ := group.TotalAmount.Float64()
		totalCredited += amountFloat
	}

	result.TotalCredited = fmt.Sprintf("%.2f", totalCredited)
	logger.Info().Int("partners_credited", result.PartnersCredited).Str("total_credited", result.TotalCredited).Msg("settlement run complete")
	return result, nil
}

// acquireLock takes pg_advisory_xact_lock inside its own transaction
// so the lock is automatically released when release() commits (or
// the process dies), never requiring a separate unlock round trip.
func (s *Settler) acquireLock(ctx context.Context) (bool, func(), error) {
	ctx, tx, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return false, func() {}, err
	}

	var locked bool
	err = tx.GetContext(ctx, &locked, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, advisoryLockKey)
	if err != nil {
		rollback()
		return false, func() {}, err
	}
	if !locked {
		rollback()
		return false, func() {}, nil
	}
	// The lock is held for the lifetime of this transaction; release
	// commits it (and releases the lock) once the run completes.
	return true, func() { _ = commit() }, nil
}

// settleOne credits one partner's aggregate and marks its rows
// processed inside a single shared transaction, so a mid-run crash
// can never leave a team_commission entry without its rows marked
// processed (or vice versa) for that partner.
func (s *Settler) settleOne(ctx context.Context, group *models.DrainedGroup) error {
	ctx, _, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return err
	}
	defer rollback()

	description := fmt.Sprintf("weekly team commission across %d rows, %d units", group.RowCount, group.TotalUnits)
	if _, err := s.ledger.RecordCredit(ctx, group.PartnerID, models.KindTeamCommission, group.TotalAmount, description, nil); err != nil {
		return err
	}
	if err := s.queue.MarkProcessed(ctx, group.RowIDs); err != nil {
		return err
	}
	return commit()
}
