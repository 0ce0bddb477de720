package orders

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/errs"
)

func orderRowColumns() []string {
	return []string{
		"id", "buyer_partner_id", "package_id", "amount", "sales_units",
		"status", "payment_method", "payment_reference", "created_at", "paid_at",
	}
}

func TestGetRejectsWrongOwner(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	pg := &datastore.Postgres{DB: sqlx.NewDb(mockDB, "sqlmock")}
	s := New(pg)

	orderID := uuid.New()
	buyerID := uuid.New()
	otherCaller := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM orders WHERE id = \$1`).
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows(orderRowColumns()).
			AddRow(orderID, buyerID, uuid.New(), "100", 1, "pending", "card", nil, time.Now(), nil))

	_, err = s.Get(context.Background(), orderID, otherCaller)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.Forbidden)
}

func TestUpdateStatusRejectsTerminalOrder(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	pg := &datastore.Postgres{DB: sqlx.NewDb(mockDB, "sqlmock")}
	s := New(pg)

	orderID := uuid.New()
	buyerID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM orders WHERE id = \$1`).
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows(orderRowColumns()).
			AddRow(orderID, buyerID, uuid.New(), "100", 1, "paid", "card", nil, time.Now(), time.Now()))

	_, err = s.UpdateStatus(context.Background(), orderID, buyerID, models.OrderRefunded)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.Conflict)
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	pg := &datastore.Postgres{DB: sqlx.NewDb(mockDB, "sqlmock")}
	s := New(pg)

	orderID := uuid.New()
	buyerID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM orders WHERE id = \$1`).
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows(orderRowColumns()).
			AddRow(orderID, buyerID, uuid.New(), "100", 1, "pending", "card", nil, time.Now(), nil))

	// pending can only move to paid/failed/refunded, not back to pending.
	_, err = s.UpdateStatus(context.Background(), orderID, buyerID, models.OrderPending)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.Validation)
}
