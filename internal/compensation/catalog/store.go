// Package catalog stores the Package rows Order Ingest resolves
// prices from. Spec.md §3 describes Package as part of the core data
// model even though the storefront around it is out of scope.
package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/brave-intl/compensation-engine/internal/appctx"
	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/errs"
)

// Store is the Package store.
type Store struct {
	pg *datastore.Postgres
}

// New builds a catalog Store over pg.
func New(pg *datastore.Postgres) *Store {
	return &Store{pg: pg}
}

// GetPackage loads a package by id, satisfying ingest's packageLookup.
func (s *Store) GetPackage(ctx context.Context, id uuid.UUID) (*models.Package, error) {
	db := s.queryer(ctx)
	var pkg models.Package
	err := db.GetContext(ctx, &pkg, `SELECT * FROM packages WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "package not found", id)
	}
	if err != nil {
		return nil, errs.New(errs.Transient, "failed to load package", nil)
	}
	return &pkg, nil
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (s *Store) queryer(ctx context.Context) queryer {
	if tx, ok := ctx.Value(appctx.DatabaseTransactionCTXKey).(*sqlx.Tx); ok {
		return tx
	}
	return s.pg.RawDB()
}
