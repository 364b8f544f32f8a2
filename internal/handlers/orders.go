package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/orderapi"
	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/platform/httpx"
	"github.com/hanko-field/storefront/internal/services"
)

const (
	maxOrderBodySize       = 64 * 1024
	maxOrderUpdateBodySize = 4 * 1024
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

type transitionOrderRequest struct {
	Status         domain.OrderStatus `json:"status"`
	ExpectedStatus domain.OrderStatus `json:"expectedStatus,omitempty"`
	Reason         string             `json:"reason,omitempty"`
}

// OrderHandlers exposes order endpoints for authenticated users.
type OrderHandlers struct {
	authn      *auth.Authenticator
	orders     services.OrderService
	createMids []func(http.Handler) http.Handler
}

// OrderHandlerOption customises OrderHandlers.
type OrderHandlerOption func(*OrderHandlers)

// WithCreateOrderMiddleware wraps only POST /orders, typically with the idempotency middleware.
func WithCreateOrderMiddleware(mw ...func(http.Handler) http.Handler) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.createMids = append(h.createMids, mw...)
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance. authn guards the staff-only transition route.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(h.createMids...).Post("/", h.createOrder)
	r.Get("/mine", h.listMine)
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}/payment", h.updatePayment)
	r.Post("/{orderID}:cancel", h.cancelOrder)
	if h.authn != nil {
		r.With(h.authn.RequireAuth(auth.RoleStaff, auth.RoleAdmin)).Post("/{orderID}:transition", h.transitionOrder)
	}
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	var req orderapi.CreateOrderRequest
	if !decodeBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		UserID:          userID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		ShippingMethod:  req.ShippingMethod,
		PaymentMethod:   req.PaymentMethod,
		PaymentDetails:  req.PaymentDetails,
		ClaimedTotals:   req.Totals(),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, orderapi.OrderEnvelope{Order: orderapi.OrderFromDomain(order)})
}

func (h *OrderHandlers) listMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	orders, err := h.orders.ListMine(ctx, userID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	if orders == nil {
		orders = []domain.OrderSummary{}
	}
	httpx.WriteJSON(w, http.StatusOK, orderapi.OrderListEnvelope{Orders: orders})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(ctx, userID, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderapi.OrderEnvelope{Order: orderapi.OrderFromDomain(order)})
}

func (h *OrderHandlers) updatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	var req orderapi.UpdatePaymentRequest
	if !decodeBody(ctx, w, r, maxOrderUpdateBodySize, &req) {
		return
	}
	order, err := h.orders.UpdatePayment(ctx, services.UpdatePaymentCommand{
		UserID:        userID,
		OrderID:       orderID,
		Status:        domain.PaymentStatus(strings.ToLower(strings.TrimSpace(string(req.Status)))),
		TransactionID: req.TransactionID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderapi.OrderEnvelope{Order: orderapi.OrderFromDomain(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	// The body is optional for cancellation.
	var req orderapi.CancelOrderRequest
	body, err := readLimitedBody(r, maxOrderUpdateBodySize)
	switch {
	case errors.Is(err, errEmptyBody):
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	case err != nil:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	default:
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		UserID:  userID,
		OrderID: orderID,
		Reason:  req.Reason,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderapi.OrderEnvelope{Order: orderapi.OrderFromDomain(order)})
}

func (h *OrderHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	var req transitionOrderRequest
	if !decodeBody(ctx, w, r, maxOrderUpdateBodySize, &req) {
		return
	}
	if !req.Status.IsValid() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid order status", http.StatusBadRequest))
		return
	}
	cmd := services.OrderStatusTransitionCommand{
		OrderID:      orderID,
		TargetStatus: req.Status,
		ActorID:      actorID,
		Reason:       req.Reason,
	}
	if req.ExpectedStatus != "" {
		if !req.ExpectedStatus.IsValid() {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expectedStatus must be a valid order status", http.StatusBadRequest))
			return
		}
		expected := req.ExpectedStatus
		cmd.ExpectedStatus = &expected
	}
	order, err := h.orders.TransitionStatus(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderapi.OrderEnvelope{Order: orderapi.OrderFromDomain(order)})
}

func (h *OrderHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	return requireIdentity(ctx, w)
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (string, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return strings.TrimSpace(identity.UID), true
}

func orderIDParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderTotalsMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("totals_mismatch", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

// decodeBody reads a required JSON body and writes the error response itself when it cannot.
func decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}
