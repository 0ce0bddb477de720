package registry

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

	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/errs"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	pg := &datastore.Postgres{DB: sqlx.NewDb(mockDB, "sqlmock")}
	return &Store{pg: pg}, mock, func() { _ = mockDB.Close() }
}

func TestDebitInsufficientFunds(t *testing.T) {
	s, mock, closeFn := newMockStore(t)
	defer closeFn()

	partnerID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE partners SET wallet_balance = wallet_balance - \$1`).
		WithArgs(sqlmock.AnyArg(), partnerID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	partnerRows := sqlmock.NewRows([]string{
		"id", "referrer_id", "referral_code", "role", "rank",
		"direct_sales_units", "team_sales_units", "total_earnings",
		"wallet_balance", "insurance_amount", "last_sale_at", "created_at",
	}).AddRow(partnerID, nil, "ABC12345", "partner", "starter", 0, 0, "0", "10", "0", nil, time.Now())
	mock.ExpectQuery(`SELECT \* FROM partners WHERE id = \$1`).
		WithArgs(partnerID).WillReturnRows(partnerRows)
	mock.ExpectRollback()

	err := s.Debit(context.Background(), partnerID, decimal.NewFromInt(100))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.InsufficientFunds)
}

// TestRefundWalletTouchesWalletOnly asserts RefundWallet's UPDATE
// never mentions total_earnings, so a rejected payout cannot inflate
// lifetime earnings (spec §3/§4.8, Testable Invariant 2).
func TestRefundWalletTouchesWalletOnly(t *testing.T) {
	s, mock, closeFn := newMockStore(t)
	defer closeFn()

	partnerID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE partners SET wallet_balance = wallet_balance \+ \$1 WHERE id = \$2`).
		WithArgs(sqlmock.AnyArg(), partnerID).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.RefundWallet(context.Background(), partnerID, decimal.NewFromInt(3000))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateReferralCodeLengthAndAlphabet(t *testing.T) {
	code, err := generateReferralCode()
	require.NoError(t, err)
	assert.Len(t, code, referralCodeLength)
	for _, r := range code {
		assert.Contains(t, referralCodeAlphabet, string(r))
	}
}
