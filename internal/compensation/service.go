// Package compensation wires the ten components (C1–C10) into one
// service and exposes the HTTP routers the teacher's eyeshade service
// mounts its routes from.
package compensation

import (
	"github.com/brave-intl/compensation-engine/internal/compensation/catalog"
	"github.com/brave-intl/compensation-engine/internal/compensation/ingest"
	"github.com/brave-intl/compensation-engine/internal/compensation/ledger"
	"github.com/brave-intl/compensation-engine/internal/compensation/network"
	"github.com/brave-intl/compensation-engine/internal/compensation/orders"
	"github.com/brave-intl/compensation-engine/internal/compensation/payout"
	"github.com/brave-intl/compensation-engine/internal/compensation/queue"
	"github.com/brave-intl/compensation-engine/internal/compensation/query"
	"github.com/brave-intl/compensation-engine/internal/compensation/rank"
	"github.com/brave-intl/compensation-engine/internal/compensation/registry"
	"github.com/brave-intl/compensation-engine/internal/compensation/scheduler"
	"github.com/brave-intl/compensation-engine/internal/compensation/settler"
	"github.com/brave-intl/compensation-engine/internal/config"
	"github.com/brave-intl/compensation-engine/internal/datastore"
)

// Service bundles every compensation-engine component behind one
// construction point, the way eyeshade.Service bundles its datastore
// and sub-routers.
type Service struct {
	Config *config.Config

	Catalog   *catalog.Store
	Registry  *registry.Store
	Network   *network.Walker
	Ledger    *ledger.Store
	Queue     *queue.Store
	Orders    *orders.Store
	Rank      *rank.Engine
	Ingest    *ingest.Service
	Settler   *settler.Settler
	Payout    *payout.Service
	Query     *query.Service
	Scheduler *scheduler.Scheduler
}

// NewService constructs every component over pg using cfg, in
// dependency order: registry and catalog have none, the walker only
// needs the registry's table, the ledger drives the registry, and
// everything above the ledger composes downward from there.
func NewService(pg *datastore.Postgres, cfg *config.Config) *Service {
	reg := registry.New(pg)
	cat := catalog.New(pg)
	walker := network.New(pg, cfg)
	led := ledger.New(pg, reg)
	q := queue.New(pg)
	ord := orders.New(pg)
	rankEngine := rank.New(pg, reg, led, cfg)
	ing := ingest.New(pg, reg, walker, led, q, rankEngine, cfg)
	settle := settler.New(pg, q, led)
	pay := payout.New(pg, reg, led, cfg)
	qry := query.New(pg, reg, led, q)
	sched := scheduler.New(pg, settle, cfg)

	return &Service{
		Config:    cfg,
		Catalog:   cat,
		Registry:  reg,
		Network:   walker,
		Ledger:    led,
		Queue:     q,
		Orders:    ord,
		Rank:      rankEngine,
		Ingest:    ing,
		Settler:   settle,
		Payout:    pay,
		Query:     qry,
		Scheduler: sched,
	}
}
