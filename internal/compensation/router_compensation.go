package compensation

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"

	"github.com/brave-intl/compensation-engine/internal/appctx"
	"github.com/brave-intl/compensation-engine/internal/errs"
	"github.com/brave-intl/compensation-engine/internal/handlers"
	"github.com/brave-intl/compensation-engine/internal/middleware"
)

type requestPayoutRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// RouterCompensation mounts the partner-scoped compensation endpoints
// (summary, transaction feed, payout requests — spec §6).
func (s *Service) RouterCompensation() chi.Router {
	r := chi.NewRouter()

	r.Method("GET", "/summary", middleware.InstrumentHandler("CompensationSummary", handlers.AppHandler(s.compensationSummary)))
	r.Method("GET", "/transactions", middleware.InstrumentHandler("CompensationFeed", handlers.AppHandler(s.compensationFeed)))
	r.Method("POST", "/payout", middleware.InstrumentHandler("RequestPayout", handlers.AppHandler(s.requestPayout)))

	return r
}

func (s *Service) compensationSummary(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()
	partnerID, err := appctx.GetPartnerID(ctx)
	if err != nil {
		return handlers.WrapError(errs.Unauthorized, "caller identity is required", http.StatusUnauthorized)
	}
	summary, err := s.Query.Summary(ctx, partnerID)
	if err != nil {
		return handlers.WrapError(err, "failed to load compensation summary", http.StatusInternalServerError)
	}
	return handlers.RenderContent(ctx, summary, w, http.StatusOK)
}

func (s *Service) compensationFeed(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()
	partnerID, err := appctx.GetPartnerID(ctx)
	if err != nil {
		return handlers.WrapError(errs.Unauthorized, "caller identity is required", http.StatusUnauthorized)
	}
	limit := parseLimit(r, 50)
	feed, err := s.Query.Feed(ctx, partnerID, limit)
	if err != nil {
		return handlers.WrapError(err, "failed to load ledger feed", http.StatusInternalServerError)
	}
	return handlers.RenderContent(ctx, feed, w, http.StatusOK)
}

func (s *Service) requestPayout(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()
	partnerID, err := appctx.GetPartnerID(ctx)
	if err != nil {
		return handlers.WrapError(errs.Unauthorized, "caller identity is required", http.StatusUnauthorized)
	}
	var req requestPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return handlers.WrapError(err, "invalid request body", http.StatusBadRequest)
	}
	entry, err := s.Payout.Request(ctx, partnerID, req.Amount)
	if err != nil {
		return handlers.WrapError(err, "failed to request payout", http.StatusBadRequest)
	}
	return handlers.RenderContent(ctx, entry, w, http.StatusCreated)
}
