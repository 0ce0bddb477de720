package catalog

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/errs"
)

func TestGetPackageNotFound(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	pg := &datastore.Postgres{DB: sqlx.NewDb(mockDB, "sqlmock")}
	s := New(pg)

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM packages WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err = s.GetPackage(context.Background(), id)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.NotFound)
}
