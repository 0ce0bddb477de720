package ingest

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
	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/compensation/network"
	"github.com/brave-intl/compensation-engine/internal/compensation/queue"
	"github.com/brave-intl/compensation-engine/internal/compensation/rank"
	"github.com/brave-intl/compensation-engine/internal/compensation/registry"
	"github.com/brave-intl/compensation-engine/internal/config"
	"github.com/brave-intl/compensation-engine/internal/datastore"
)

type fakePackages struct {
	pkg *models.Package
}

func (f *fakePackages) GetPackage(ctx context.Context, id uuid.UUID) (*models.Package, error) {
	return f.pkg, nil
}

func partnerRowColumns() []string {
	return []string{
		"id", "referrer_id", "referral_code", "role", "rank",
		"direct_sales_units", "team_sales_units", "total_earnings",
		"wallet_balance", "insurance_amount", "last_sale_at", "created_at",
	}
}

// TestIngestReadsUplineRateBeforeIncrementing is the central
// ordering guarantee (spec §4.2/§9): the commission rate for an
// upline member is computed from its team_sales_units as read before
// this sale's increment is applied, never after.
func TestIngestReadsUplineRateBeforeIncrementing(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	pg := &datastore.Postgres{DB: sqlx.NewDb(mockDB, "sqlmock")}
	cfg := config.New()

	reg := registry.New(pg)
	walker := network.New(pg, cfg)
	led := ledger.New(pg, reg)
	q := queue.New(pg)
	rankEngine := rank.New(pg, reg, led, cfg)
	svc := New(pg, reg, walker, led, q, rankEngine, cfg)

	buyerID := uuid.New()
	referrerID := uuid.New()
	packageID := uuid.New()
	now := time.Now()

	pkg := &models.Package{ID: packageID, Price: decimal.NewFromInt(10000), Active: true}

	mock.ExpectBegin()

	// registry.GetByID(buyer)
	mock.ExpectQuery(`SELECT \* FROM partners WHERE id = \$1`).
		WithArgs(buyerID).
		WillReturnRows(sqlmock.NewRows(partnerRowColumns()).
			AddRow(buyerID, referrerID, "BUYER001", "partner", "starter", 0, 0, "0", "0", "0", nil, now))

	// insertOrder
	mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(1, 1))

	// registry.IncrementDirect(buyer, 2 units)
	mock.ExpectExec(`UPDATE partners SET direct_sales_units`).
		WithArgs(int64(2), sqlmock.AnyArg(), buyerID).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// walker.Upline(buyer): after the buyer's own row, the read of the
	// referrer's row sees its team_sales_units BEFORE this sale's
	// increment — 500, squarely in the 0.02 tier.
	mock.ExpectQuery(`SELECT id, referrer_id, team_sales_units FROM partners WHERE id = \$1`).
		WithArgs(buyerID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "referrer_id", "team_sales_units"}).
			AddRow(buyerID, referrerID, int64(0)))
	mock.ExpectQuery(`SELECT id, referrer_id, team_sales_units FROM partners WHERE id = \$1`).
		WithArgs(referrerID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "referrer_id", "team_sales_units"}).
			AddRow(referrerID, nil, int64(500)))
	mock.ExpectQuery(`SELECT id, referrer_id, team_sales_units FROM partners WHERE id = \$1`).
		WithArgs(referrerID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "referrer_id", "team_sales_units"}).
			AddRow(referrerID, nil, int64(500)))

	// queue.Enqueue for referrer: 2 units * 5000 * 0.02 = 200
	mock.ExpectExec(`INSERT INTO queued_commissions`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// registry.IncrementTeam(referrer, 2 units)
	mock.ExpectExec(`UPDATE partners SET team_sales_units`).
		WithArgs(int64(2), referrerID).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// direct referral bonus: ledger.RecordCredit(referrer, 2000)
	mock.ExpectExec(`INSERT INTO ledger_entries`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE partners SET wallet_balance`).
		WithArgs(sqlmock.AnyArg(), referrerID).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// rank.Evaluate(buyer): fresh read shows 2 total units, far below
	// the achiever threshold (100) — no promotion.
	mock.ExpectQuery(`SELECT \* FROM partners WHERE id = \$1`).
		WithArgs(buyerID).
		WillReturnRows(sqlmock.NewRows(partnerRowColumns()).
			AddRow(buyerID, referrerID, "BUYER001", "partner", "starter", 2, 0, "0", "0", "0", nil, now))

	mock.ExpectCommit()

	order, err := svc.Ingest(context.Background(), &fakePackages{pkg: pkg}, Input{
		BuyerPartnerID: buyerID,
		PackageID:      packageID,
		PaymentMethod:  "card",
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), order.SalesUnits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestRejectsInactivePackage(t *testing.T) {
	svc := &Service{unitPrice: decimal.NewFromInt(5000)}
	pkg := &models.Package{ID: uuid.New(), Price: decimal.NewFromInt(5000), Active: false}

	_, err := svc.Ingest(context.Background(), &fakePackages{pkg: pkg}, Input{
		BuyerPartnerID: uuid.New(),
		PackageID:      pkg.ID,
	})
	require.Error(t, err)
}
