package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/compensation/registry"
	"github.com/brave-intl/compensation-engine/internal/datastore"
)

func TestRecordCreditNonPositiveIsNoop(t *testing.T) {
	s := &Store{}
	partnerID := uuid.New()

	entry, err := s.RecordCredit(context.Background(), partnerID, models.KindRankBonus, decimal.Zero, "no-op", nil)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, entry.ID)
	assert.True(t, entry.Amount.IsZero())
	assert.Equal(t, models.LedgerApproved, entry.Status)

	entry, err = s.RecordCredit(context.Background(), partnerID, models.KindRankBonus, decimal.NewFromInt(-5), "negative", nil)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, entry.ID)
}

func TestRecordPayoutRejectsNonPositiveAmount(t *testing.T) {
	s := &Store{}
	_, err := s.RecordPayout(context.Background(), uuid.New(), decimal.Zero)
	assert.Error(t, err)
	_, err = s.RecordPayout(context.Background(), uuid.New(), decimal.NewFromInt(-10))
	assert.Error(t, err)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	pg := &datastore.Postgres{DB: sqlx.NewDb(mockDB, "sqlmock")}
	return &Store{pg: pg}, mock, func() { _ = mockDB.Close() }
}

func TestSumByKindNoRows(t *testing.T) {
	s, mock, closeFn := newMockStore(t)
	defer closeFn()

	partnerID := uuid.New()
	rows := sqlmock.NewRows([]string{"coalesce"}).AddRow("0")
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM ledger_entries`).
		WithArgs(partnerID, models.KindTeamCommission, models.LedgerApproved).
		WillReturnRows(rows)

	sum, err := s.SumByKind(context.Background(), partnerID, models.KindTeamCommission, models.LedgerApproved)
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(sum))
}

// TestRejectPayoutRefundsWalletOnly covers S6: rejecting a pending
// payout restores wallet_balance but must never touch total_earnings,
// since a cancelled payout is not an approved credit (spec §3/§4.8,
// Testable Invariant 2).
func TestRejectPayoutRefundsWalletOnly(t *testing.T) {
	s, mock, closeFn := newMockStore(t)
	defer closeFn()
	s.registry = registry.New(s.pg)

	partnerID := uuid.New()
	entryID := uuid.New()

	mock.ExpectBegin()

	entryRows := sqlmock.NewRows([]string{
		"id", "partner_id", "kind", "amount", "description", "reference_id",
		"status", "metadata", "created_at", "processed_at",
	}).AddRow(entryID, partnerID, models.KindPayout, "-3000", "wallet withdrawal", nil,
		models.LedgerPending, nil, time.Now(), nil)
	mock.ExpectQuery(`SELECT \* FROM ledger_entries WHERE id = \$1 FOR UPDATE`).
		WithArgs(entryID).WillReturnRows(entryRows)

	mock.ExpectExec(`UPDATE ledger_entries SET status = \$1, processed_at = \$2 WHERE id = \$3`).
		WithArgs(models.LedgerCancelled, sqlmock.AnyArg(), entryID).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// The refund must touch wallet_balance only, never total_earnings.
	mock.ExpectExec(`UPDATE partners SET wallet_balance = wallet_balance \+ \$1 WHERE id = \$2`).
		WithArgs(sqlmock.AnyArg(), partnerID).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectCommit()

	entry, err := s.RejectPayout(context.Background(), entryID)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerCancelled, entry.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequirePendingPayout(t *testing.T) {
	entry := &models.LedgerEntry{ID: uuid.New(), Kind: models.KindPayout, Status: models.LedgerPending}
	assert.NoError(t, requirePendingPayout(entry))

	wrongKind := &models.LedgerEntry{ID: uuid.New(), Kind: models.KindRankBonus, Status: models.LedgerPending}
	assert.Error(t, requirePendingPayout(wrongKind))

	terminal := &models.LedgerEntry{ID: uuid.New(), Kind: models.KindPayout, Status: models.LedgerApproved}
	assert.Error(t, requirePendingPayout(terminal))
}
