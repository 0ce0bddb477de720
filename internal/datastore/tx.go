package datastore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/brave-intl/compensation-engine/internal/appctx"
	"github.com/brave-intl/compensation-engine/internal/logging"
)

// TxAble is anything capable of beginning and rolling back a sqlx.Tx.
type TxAble interface {
	RollbackTx(*sqlx.Tx)
	BeginTx() (*sqlx.Tx, error)
}

// GetTx returns the tx already on ctx if present, otherwise begins one
// and stores it on the returned context. The caller always runs its
// rollback func via defer and calls commit on the happy path; rollback
// after a successful commit is a no-op because sql.Tx returns
// sql.ErrTxDone, which RollbackTx swallows. This lets nested component
// calls within one Order Ingest transaction (spec §5: "the Order
// Ingest transaction is the largest") share a single sqlx.Tx without
// every component needing to know whether it is the outermost caller.
func GetTx(ctx context.Context, ta TxAble) (context.Context, *sqlx.Tx, func(), func() error, error) {
	logger := logging.Logger(ctx, "datastore.GetTx")

	if tx, ok := ctx.Value(appctx.DatabaseTransactionCTXKey).(*sqlx.Tx); ok {
		return ctx, tx, func() {}, func() error { return nil }, nil
	}

	tx, err := ta.BeginTx()
	if err != nil {
		logger.Error().Err(err).Msg("failed to begin transaction")
		return ctx, nil, func() {}, func() error { return nil }, fmt.Errorf("failed to begin transaction: %w", err)
	}

	ctx = context.WithValue(ctx, appctx.DatabaseTransactionCTXKey, tx)
	rollback := func() { ta.RollbackTx(tx) }
	commit := func() error {
		if err := tx.Commit(); err != nil {
			logger.Error().Err(err).Msg("failed to commit transaction")
			return err
		}
		return nil
	}
	return ctx, tx, rollback, commit, nil
}
