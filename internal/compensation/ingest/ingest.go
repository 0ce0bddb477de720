// Package ingest implements Order Ingest (C5): validates a purchase,
// normalises it to sales units, and atomically drives the Partner
// Registry, Network Walker, Ledger, Commission Queue and Rank Engine.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/brave-intl/compensation-engine/internal/appctx"
	"github.com/brave-intl/compensation-engine/internal/compensation/ledger"
	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/compensation/network"
	"github.com/brave-intl/compensation-engine/internal/compensation/queue"
	"github.com/brave-intl/compensation-engine/internal/compensation/rank"
	"github.com/brave-intl/compensation-engine/internal/compensation/registry"
	"github.com/brave-intl/compensation-engine/internal/config"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/errs"
	"github.com/brave-intl/compensation-engine/internal/logging"
)

// Service drives the Order Ingest transaction.
type Service struct {
	pg       *datastore.Postgres
	registry *registry.Store
	walker   *network.Walker
	ledger   *ledger.Store
	queue    *queue.Store
	rank     *rank.Engine
	unitPrice             decimal.Decimal
	directReferralPercent decimal.Decimal
	maxUplineDepth        int
}

// New builds an ingest Service wiring together every component it
// drives atomically.
func New(pg *datastore.Postgres, reg *registry.Store, walker *network.Walker, led *ledger.Store, q *queue.Store, rankEngine *rank.Engine, cfg *config.Config) *Service {
	return &Service{
		pg:                    pg,
		registry:              reg,
		walker:                walker,
		ledger:                led,
		queue:                 q,
		rank:                  rankEngine,
		unitPrice:             cfg.UnitPrice,
		directReferralPercent: cfg.DirectReferralPercent,
		maxUplineDepth:        cfg.MaxUplineDepth,
	}
}

// packageLookup is the minimal capability ingest needs to resolve a
// package's price; kept as an interface so the HTTP layer can inject
// whichever package store it already has without an import cycle.
type packageLookup interface {
	GetPackage(ctx context.Context, id uuid.UUID) (*models.Package, error)
}

// Input is the Order Ingest request (spec §4.5).
type Input struct {
	BuyerPartnerID   uuid.UUID
	PackageID        uuid.UUID
	PaymentMethod    string
	PaymentReference *string
}

// Ingest runs the full order→registry→walker→ledger→queue→rank chain
// in one atomic transaction. Either the order is visible with every
// side-effect, or none of them are.
func (s *Service) Ingest(ctx context.Context, packages packageLookup, in Input) (*models.Order, error) {
	logger := logging.Logger(ctx, "ingest.Ingest")

	pkg, err := packages.GetPackage(ctx, in.PackageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Active {
		return nil, errs.New(errs.Validation, "package is not active", in.PackageID)
	}

	salesUnits := pkg.Price.Div(s.unitPrice).Floor().IntPart()
	if salesUnits < 1 {
		salesUnits = 1
	}

	ctx, _, rollback, commit, err := datastore.GetTx(ctx, s.pg)
	if err != nil {
		return nil, err
	}
	defer rollback()

	buyer, err := s.registry.GetByID(ctx, in.BuyerPartnerID)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:               uuid.New(),
		BuyerPartnerID:   in.BuyerPartnerID,
		PackageID:        in.PackageID,
		Amount:           pkg.Price,
		SalesUnits:       salesUnits,
		Status:           models.OrderPending,
		PaymentMethod:    in.PaymentMethod,
		PaymentReference: in.PaymentReference,
		CreatedAt:        time.Now(),
	}
	if err := s.insertOrder(ctx, order); err != nil {
		return nil, err
	}

	// Step 2: increment the buyer's direct counter and last-sale date.
	if err := s.registry.IncrementDirect(ctx, in.BuyerPartnerID, salesUnits); err != nil {
		return nil, err
	}

	// Step 3: walk the upline, reading each member's pre-increment
	// team_sales_units before enqueuing and before bumping it — the
	// walker resolves every upline row's rate up front, in one pass,
	// so later increments in this same loop cannot uplift an earlier
	// member's own rate for this sale (spec §4.2/§9).
	now := time.Now()
	uplines, err := s.walker.Upline(ctx, in.BuyerPartnerID, s.maxUplineDepth)
	if err != nil {
		return nil, err
	}
	for _, u := range uplines {
		rate := s.walker.TieredRate(u.TeamSalesUnits)
		amount := decimal.NewFromInt(salesUnits).Mul(s.unitPrice).Mul(rate)
		if amount.Sign() > 0 {
			if _, err := s.queue.Enqueue(ctx, u.PartnerID, order.ID, u.Level, salesUnits, amount, now, now); err != nil {
				return nil, err
			}
		}
		if err := s.registry.IncrementTeam(ctx, u.PartnerID, salesUnits); err != nil {
			return nil, err
		}
	}

	// Step 4: instant direct-referral bonus to the buyer's immediate referrer.
	if buyer.ReferrerID != nil {
		bonus := pkg.Price.Mul(s.directReferralPercent)
		if _, err := s.ledger.RecordCredit(ctx, *buyer.ReferrerID, models.KindDirectReferral, bonus, "direct referral bonus", &in.BuyerPartnerID); err != nil {
			return nil, err
		}
	}

	// Step 5: rank check on the buyer.
	if err := s.rank.Evaluate(ctx, in.BuyerPartnerID); err != nil {
		return nil, err
	}

	if err := commit(); err != nil {
		logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("order ingest transaction failed to commit")
		return nil, errs.New(errs.Transient, "failed to commit order", nil)
	}

	logger.Info().Str("order_id", order.ID.String()).Int64("sales_units", salesUnits).Msg("order ingested")
	return order, nil
}

func (s *Service) insertOrder(ctx context.Context, order *models.Order) error {
	tx, ok := ctx.Value(appctx.DatabaseTransactionCTXKey).(*sqlx.Tx)
	if !ok {
		return errs.New(errs.Transient, "order insert attempted outside a transaction", nil)
	}
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO orders
			(id, buyer_partner_id, package_id, amount, sales_units, status, payment_method, payment_reference, created_at, paid_at)
		VALUES
			(:id, :buyer_partner_id, :package_id, :amount, :sales_units, :status, :payment_method, :payment_reference, :created_at, :paid_at)`,
		order)
	if err != nil {
		return errs.New(errs.Transient, "failed to insert order", nil)
	}
	return nil
}
