// Package scheduler implements the Scheduler (C9): a single-instance
// cron that fires the Weekly Settler on a fixed weekly slot. The
// advisory lock guarding against double-firing is acquired by the
// Settler itself (spec §5); the Scheduler just fires the cron tick.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/brave-intl/compensation-engine/internal/compensation/settler"
	"github.com/brave-intl/compensation-engine/internal/config"
	"github.com/brave-intl/compensation-engine/internal/datastore"
	"github.com/brave-intl/compensation-engine/internal/logging"
)

// Scheduler owns the cron loop around Settler runs.
type Scheduler struct {
	pg      *datastore.Postgres
	settler *settler.Settler
	cron    *cron.Cron
}

// New builds a Scheduler that fires at cfg.SchedulerWeekday/Hour/Minute.
func New(pg *datastore.Postgres, s *settler.Settler, cfg *config.Config) *Scheduler {
	spec := fmt.Sprintf("%d %d * * %d", cfg.SchedulerMinute, cfg.SchedulerHour, int(cfg.SchedulerWeekday))
	c := cron.New()
	sched := &Scheduler{pg: pg, settler: s, cron: c}
	// At most one unrun slot is coalesced because cron.v3 itself only
	// ever queues one pending invocation per entry; it never stacks
	// missed runs (spec §4.9's catch-up policy).
	_, _ = c.AddFunc(spec, sched.tick)
	return sched
}

// Start begins the cron loop in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for any in-flight Settler run to finish and prevents new
// ones from starting (spec §4.9: "on shutdown, in-flight Settler runs
// are allowed to finish; no new runs start").
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	logger := logging.Logger(ctx, "scheduler.tick")

	result, err := s.settler.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("weekly settlement run failed")
		return
	}
	if result.Skipped {
		logger.Info().Msg("settler already running elsewhere; skipped this fire")
		return
	}
	logger.Info().Int("partners_credited", result.PartnersCredited).Str("total_credited", result.TotalCredited).Msg("weekly settlement run succeeded")
}
