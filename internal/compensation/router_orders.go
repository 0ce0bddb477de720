package compensation

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi"
	"github.com/google/uuid"

	"github.com/brave-intl/compensation-engine/internal/appctx"
	"github.com/brave-intl/compensation-engine/internal/compensation/ingest"
	"github.com/brave-intl/compensation-engine/internal/compensation/models"
	"github.com/brave-intl/compensation-engine/internal/errs"
	"github.com/brave-intl/compensation-engine/internal/handlers"
	"github.com/brave-intl/compensation-engine/internal/middleware"
)

type createOrderRequest struct {
	PackageID        uuid.UUID `json:"package_id" valid:"-"`
	PaymentMethod    string    `json:"payment_method" valid:"required"`
	PaymentReference *string   `json:"payment_reference,omitempty" valid:"-"`
}

// RouterOrders mounts the partner-scoped order endpoints (spec §6).
func (s *Service) RouterOrders() chi.Router {
	r := chi.NewRouter()

	r.Method("POST", "/", middleware.InstrumentHandler("CreateOrder", handlers.AppHandler(s.createOrder)))
	r.Method("GET", "/", middleware.InstrumentHandler("ListOrders", handlers.AppHandler(s.listOrders)))
	r.Method("GET", "/{id}", middleware.InstrumentHandler("GetOrder", handlers.AppHandler(s.getOrder)))
	r.Method("PATCH", "/{id}/status", middleware.InstrumentHandler("UpdateOrderStatus", handlers.AppHandler(s.updateOrderStatus)))

	return r
}

func (s *Service) createOrder(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()
	partnerID, err := appctx.GetPartnerID(ctx)
	if err != nil {
		return handlers.WrapError(errs.Unauthorized, "caller identity is required", http.StatusUnauthorized)
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return handlers.WrapError(err, "invalid request body", http.StatusBadRequest)
	}
	if _, err := govalidator.ValidateStruct(req); err != nil {
		return handlers.WrapValidationError(err)
	}

	order, err := s.Ingest.Ingest(ctx, s.Catalog, ingest.Input{
		BuyerPartnerID:   partnerID,
		PackageID:        req.PackageID,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		return handlers.WrapError(err, "failed to create order", http.StatusInternalServerError)
	}
	return handlers.RenderContent(ctx, order, w, http.StatusCreated)
}

func (s *Service) listOrders(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()
	partnerID, err := appctx.GetPartnerID(ctx)
	if err != nil {
		return handlers.WrapError(errs.Unauthorized, "caller identity is required", http.StatusUnauthorized)
	}
	limit := parseLimit(r, 50)
	list, err := s.Orders.List(ctx, partnerID, limit)
	if err != nil {
		return handlers.WrapError(err, "failed to list orders", http.StatusInternalServerError)
	}
	return handlers.RenderContent(ctx, list, w, http.StatusOK)
}

func (s *Service) getOrder(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()
	partnerID, err := appctx.GetPartnerID(ctx)
	if err != nil {
		return handlers.WrapError(errs.Unauthorized, "caller identity is required", http.StatusUnauthorized)
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return handlers.WrapError(errs.Validation, "invalid order id", http.StatusBadRequest)
	}
	order, err := s.Orders.Get(ctx, orderID, partnerID)
	if err != nil {
		return handlers.WrapError(err, "failed to load order", http.StatusInternalServerError)
	}
	return handlers.RenderContent(ctx, order, w, http.StatusOK)
}

func (s *Service) updateOrderStatus(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()
	partnerID, err := appctx.GetPartnerID(ctx)
	if err != nil {
		return handlers.WrapError(errs.Unauthorized, "caller identity is required", http.StatusUnauthorized)
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return handlers.WrapError(errs.Validation, "invalid order id", http.StatusBadRequest)
	}
	newStatus := models.OrderStatus(r.URL.Query().Get("new_status"))
	if newStatus == "" {
		return handlers.WrapError(errs.Validation, "new_status is required", http.StatusBadRequest)
	}
	order, err := s.Orders.UpdateStatus(ctx, orderID, partnerID, newStatus)
	if err != nil {
		return handlers.WrapError(err, "failed to update order status", http.StatusInternalServerError)
	}
	return handlers.RenderContent(ctx, order, w, http.StatusOK)
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
