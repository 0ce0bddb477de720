package query

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/brave-intl/compensation-engine/internal/compensation/ledger"
	"github.com/brave-intl/compensation-engine/internal/compensation/queue"
	"github.com/brave-intl/compensation-engine/internal/compensation/registry"
	"github.com/brave-intl/compensation-engine/internal/datastore"
)

// TestSummaryReportsPendingPayoutsAsPositive covers the sign-flip:
// payout entries are stored negative (a wallet debit), but the
// summary surfaces the reserved amount as a positive figure.
func TestSummaryReportsPendingPayoutsAsPositive(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	pg := &datastore.Postgres{DB: sqlx.NewDb(mockDB, "sqlmock")}

	reg := registry.New(pg)
	led := ledger.New(pg, reg)
	q := queue.New(pg)
	s := New(pg, reg, led, q)

	partnerID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM partners WHERE id = \$1`).
		WithArgs(partnerID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "referrer_id", "referral_code", "role", "rank",
			"direct_sales_units", "team_sales_units", "total_earnings",
			"wallet_balance", "insurance_amount", "last_sale_at", "created_at",
		}).AddRow(partnerID, nil, "ABC12345", "partner", "starter", 100, 0, "5000", "3000", "0", nil, time.Now()))

	sumRows := func(v string) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"coalesce"}).AddRow(v)
	}
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM ledger_entries`).WillReturnRows(sumRows("2000"))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM ledger_entries`).WillReturnRows(sumRows("0"))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM ledger_entries`).WillReturnRows(sumRows("10000"))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM ledger_entries`).WillReturnRows(sumRows("-1500"))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM queued_commissions`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("750"))

	summary, err := s.Summary(context.Background(), partnerID)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(1500).Equal(summary.PendingPayouts))
	require.True(t, decimal.NewFromInt(750).Equal(summary.PendingWeeklyCommissions))
	require.NoError(t, mock.ExpectationsWereMet())
}
