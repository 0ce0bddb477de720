package network

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/brave-intl/compensation-engine/internal/datastore"
)

func newMockWalker(t *testing.T) (*Walker, sqlmock.Sqlmock, func()) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	pg := &datastore.Postgres{DB: sqlx.NewDb(mockDB, "sqlmock")}
	return &Walker{pg: pg}, mock, func() { _ = mockDB.Close() }
}

func TestUplineStopsAtRoot(t *testing.T) {
	w, mock, closeFn := newMockWalker(t)
	defer closeFn()

	leaf := uuid.New()
	parent := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "referrer_id", "team_sales_units"}).
		AddRow(leaf, parent, int64(0))
	mock.ExpectQuery(`SELECT id, referrer_id, team_sales_units FROM partners WHERE id = \$1`).
		WithArgs(leaf).WillReturnRows(rows)

	parentRows := sqlmock.NewRows([]string{"id", "referrer_id", "team_sales_units"}).
		AddRow(parent, nil, int64(500))
	mock.ExpectQuery(`SELECT id, referrer_id, team_sales_units FROM partners WHERE id = \$1`).
		WithArgs(parent).WillReturnRows(parentRows)
	// the next loop iteration re-reads the now-current partner (parent)
	// to discover it has no referrer and stop.
	parentRowsAgain := sqlmock.NewRows([]string{"id", "referrer_id", "team_sales_units"}).
		AddRow(parent, nil, int64(500))
	mock.ExpectQuery(`SELECT id, referrer_id, team_sales_units FROM partners WHERE id = \$1`).
		WithArgs(parent).WillReturnRows(parentRowsAgain)

	members, err := w.Upline(context.Background(), leaf, 10)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, parent, members[0].PartnerID)
	require.Equal(t, int64(500), members[0].TeamSalesUnits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUplineCycleGuardStops(t *testing.T) {
	w, mock, closeFn := newMockWalker(t)
	defer closeFn()

	a := uuid.New()
	b := uuid.New()

	// a refers to b, b refers back to a: a cycle.
	aRows := sqlmock.NewRows([]string{"id", "referrer_id", "team_sales_units"}).AddRow(a, b, int64(10))
	mock.ExpectQuery(`SELECT id, referrer_id, team_sales_units FROM partners WHERE id = \$1`).
		WithArgs(a).WillReturnRows(aRows)

	bRows := sqlmock.NewRows([]string{"id", "referrer_id", "team_sales_units"}).AddRow(b, a, int64(20))
	mock.ExpectQuery(`SELECT id, referrer_id, team_sales_units FROM partners WHERE id = \$1`).
		WithArgs(b).WillReturnRows(bRows)
	// next loop iteration re-reads b (now current) before discovering
	// its referrer (a) has already been seen.
	bRowsAgain := sqlmock.NewRows([]string{"id", "referrer_id", "team_sales_units"}).AddRow(b, a, int64(20))
	mock.ExpectQuery(`SELECT id, referrer_id, team_sales_units FROM partners WHERE id = \$1`).
		WithArgs(b).WillReturnRows(bRowsAgain)

	members, err := w.Upline(context.Background(), a, 10)
	require.NoError(t, err)
	// b is resolved once; the walk must not loop back to a.
	require.Len(t, members, 1)
	require.Equal(t, b, members[0].PartnerID)
}
