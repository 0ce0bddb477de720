package compensation

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/errs"
	"github.com/brave-intl/compensation-engine/internal/handlers"
	"github.com/brave-intl/compensation-engine/internal/middleware"
)

// RouterAdmin mounts the admin-scoped approve/reject/list/aggregate
// endpoints (spec §6: "Admin endpoints (role=admin): approve/reject
// payout by entry id; list/aggregate ledger").
func (s *Service) RouterAdmin() chi.Router {
	r := chi.NewRouter()

	r.Method("POST", "/payouts/{id}/approve", middleware.InstrumentHandler("AdminApprovePayout", handlers.AppHandler(s.adminApprovePayout)))
	r.Method("POST", "/payouts/{id}/reject", middleware.InstrumentHandler("AdminRejectPayout", handlers.AppHandler(s.adminRejectPayout)))
	r.Method("GET", "/payouts", middleware.InstrumentHandler("AdminListPayouts", handlers.AppHandler(s.adminListPayouts)))
	r.Method("GET", "/ledger/aggregate", middleware.InstrumentHandler("AdminLedgerAggregate", handlers.AppHandler(s.adminLedgerAggregate)))

	return r
}

func (s *Service) adminApprovePayout(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()
	entryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return handlers.WrapError(errs.Validation, "invalid entry id", http.StatusBadRequest)
	}
	entry, err := s.Payout.Approve(ctx, entryID)
	if err != nil {
		return handlers.WrapError(err, "failed to approve payout", http.StatusInternalServerError)
	}
	return handlers.RenderContent(ctx, entry, w, http.StatusOK)
}

func (s *Service) adminRejectPayout(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()
	entryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return handlers.WrapError(errs.Validation, "invalid entry id", http.StatusBadRequest)
	}
	entry, err := s.Payout.Reject(ctx, entryID)
	if err != nil {
		return handlers.WrapError(err, "failed to reject payout", http.StatusInternalServerError)
	}
	return handlers.RenderContent(ctx, entry, w, http.StatusOK)
}

func (s *Service) adminListPayouts(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()
	status := models.LedgerEntryStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.LedgerPending
	}
	limit := parseLimit(r, 50)
	list, err := s.Payout.List(ctx, status, limit)
	if err != nil {
		return handlers.WrapError(err, "failed to list payouts", http.StatusInternalServerError)
	}
	return handlers.RenderContent(ctx, list, w, http.StatusOK)
}

func (s *Service) adminLedgerAggregate(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()
	q := r.URL.Query()

	var kind *models.LedgerEntryKind
	if raw := q.Get("kind"); raw != "" {
		k := models.LedgerEntryKind(raw)
		kind = &k
	}

	start, err := parseTimeOrDefault(q.Get("start"), time.Now().AddDate(0, 0, -7))
	if err != nil {
		return handlers.WrapError(errs.Validation, "invalid start timestamp", http.StatusBadRequest)
	}
	until, err := parseTimeOrDefault(q.Get("until"), time.Now())
	if err != nil {
		return handlers.WrapError(errs.Validation, "invalid until timestamp", http.StatusBadRequest)
	}

	rows, err := s.Query.AdminLedgerAggregate(ctx, kind, start, until)
	if err != nil {
		return handlers.WrapError(err, "failed to aggregate ledger", http.StatusInternalServerError)
	}
	return handlers.RenderContent(ctx, rows, w, http.StatusOK)
}

func parseTimeOrDefault(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, raw)
}
