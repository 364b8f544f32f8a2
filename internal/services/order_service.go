package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

const (
	orderIDPrefix = "ord_"

	orderEventCreated        = "order.created"
	orderEventStatusChanged  = "order.status.changed"
	orderEventPaymentUpdated = "order.payment.updated"

	maxOrderLines = 100
)

var (
	// ErrOrderInvalidInput indicates the caller supplied invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order does not exist or belongs to another user.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates the order cannot transition to the requested state.
	ErrOrderInvalidState = errors.New("order: invalid state")
	// ErrOrderConflict indicates a concurrent modification or duplicate id.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderTotalsMismatch indicates the client computed different totals than the server.
	ErrOrderTotalsMismatch = errors.New("order: totals mismatch")
)

// OrderServiceDeps bundles the collaborators required to construct an order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	clock     func() time.Time
	newID     func() string
	events    OrderEventPublisher
	logger    func(context.Context, string, map[string]any)
	sanitizer *bluemonday.Policy
}

// NewOrderService constructs an OrderService enforcing the lifecycle and totals rules.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders: deps.Orders,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:     idGen,
		events:    deps.Events,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	items, err := normalizeOrderItems(cmd.Items)
	if err != nil {
		return domain.Order{}, err
	}
	address, err := sanitizeAddress(s.sanitizer, cmd.ShippingAddress)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}
	if _, err := domain.ParsePaymentMethod(string(cmd.PaymentMethod)); err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}

	method, totals, err := resolveTotals(items, cmd.ShippingMethod, cmd.ClaimedTotals)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	order := domain.Order{
		ID:              s.nextOrderID(),
		UserID:          userID,
		Items:           items,
		ShippingAddress: address,
		ShippingMethod:  method,
		PaymentMethod:   cmd.PaymentMethod,
		Payment:         initialPayment(cmd.PaymentMethod, cmd.PaymentDetails, totals.Total, now),
		Totals:          totals,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	// Cash on delivery is the only method left awaiting payment; every other method is
	// recorded as paid as soon as the order exists.
	if order.PaymentMethod == domain.PaymentCOD {
		order.Status = domain.OrderStatusPending
	} else {
		order.Status = domain.OrderStatusConfirmed
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		UserID:        order.UserID,
		CurrentStatus: order.Status,
		Total:         order.Totals.Total,
		ActorID:       userID,
		OccurredAt:    now,
		Metadata: map[string]any{
			"paymentMethod":  string(order.PaymentMethod),
			"shippingMethod": string(order.ShippingMethod),
		},
	})

	return order, nil
}

func (s *orderService) ListMine(ctx context.Context, userID string) ([]domain.OrderSummary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	summaries := make([]domain.OrderSummary, 0, len(orders))
	for _, order := range orders {
		summaries = append(summaries, order.Summary())
	}
	return summaries, nil
}

func (s *orderService) GetOrder(ctx context.Context, userID, orderID string) (domain.Order, error) {
	userID = strings.TrimSpace(userID)
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if userID != "" && order.UserID != userID {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (s *orderService) UpdatePayment(ctx context.Context, cmd UpdatePaymentCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	switch cmd.Status {
	case domain.PaymentStatusPending, domain.PaymentStatusCompleted, domain.PaymentStatusFailed:
	default:
		return domain.Order{}, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, cmd.Status)
	}

	now := s.now()
	var prevStatus domain.OrderStatus
	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order) error {
		if err := s.checkOwner(order, cmd.UserID); err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return fmt.Errorf("%w: order is %s", ErrOrderInvalidState, order.Status)
		}
		prevStatus = order.Status
		order.Payment.Status = cmd.Status
		if txn := strings.TrimSpace(cmd.TransactionID); txn != "" {
			order.Payment.TransactionID = txn
		}
		if cmd.Status == domain.PaymentStatusCompleted {
			paidAt := now
			order.Payment.PaidAt = &paidAt
			order.Status = domain.OrderStatusConfirmed
		} else if order.Status == domain.OrderStatusConfirmed || order.Status == domain.OrderStatusPending {
			order.Status = domain.OrderStatusPending
		}
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventPaymentUpdated,
		OrderID:        order.ID,
		UserID:         order.UserID,
		PreviousStatus: prevStatus,
		CurrentStatus:  order.Status,
		Total:          order.Totals.Total,
		ActorID:        strings.TrimSpace(cmd.UserID),
		OccurredAt:     now,
		Metadata: map[string]any{
			"paymentStatus": string(cmd.Status),
		},
	})

	return order, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.TargetStatus.IsValid() {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.TargetStatus)
	}

	now := s.now()
	var prevStatus domain.OrderStatus
	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order) error {
		if cmd.ExpectedStatus != nil && order.Status != *cmd.ExpectedStatus {
			return fmt.Errorf("%w: expected status %q but was %q", ErrOrderConflict, *cmd.ExpectedStatus, order.Status)
		}
		prevStatus = order.Status
		return applyStatusTransition(order, cmd.TargetStatus, strings.TrimSpace(cmd.Reason), now)
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishStatusChanged(ctx, order, prevStatus, cmd.ActorID, cmd.Reason, now)
	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	now := s.now()
	reason := strings.TrimSpace(cmd.Reason)
	var prevStatus domain.OrderStatus
	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order) error {
		if err := s.checkOwner(order, cmd.UserID); err != nil {
			return err
		}
		prevStatus = order.Status
		return applyStatusTransition(order, domain.OrderStatusCancelled, reason, now)
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishStatusChanged(ctx, order, prevStatus, cmd.UserID, reason, now)
	return order, nil
}

func (s *orderService) checkOwner(order *domain.Order, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID != "" && order.UserID != userID {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, order.ID)
	}
	return nil
}

func applyStatusTransition(order *domain.Order, target domain.OrderStatus, reason string, now time.Time) error {
	if order.Status == target {
		return fmt.Errorf("%w: order is already %s", ErrOrderInvalidState, target)
	}
	if !order.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrOrderInvalidState, order.Status, target)
	}
	order.Status = target
	order.UpdatedAt = now
	if target == domain.OrderStatusCancelled {
		order.CancelReason = reason
	}
	return nil
}

// resolveTotals recomputes the totals for items. When the client omitted the shipping method the
// one whose totals match the claim is used.
func resolveTotals(items []domain.LineItem, method domain.ShippingMethod, claimed domain.Totals) (domain.ShippingMethod, domain.Totals, error) {
	if method == "" {
		for _, candidate := range []domain.ShippingMethod{domain.ShippingStandard, domain.ShippingExpress} {
			if domain.TotalsFor(items, candidate) == claimed {
				return candidate, claimed, nil
			}
		}
		method = domain.ShippingStandard
	} else {
		parsed, err := domain.ParseShippingMethod(string(method))
		if err != nil {
			return "", domain.Totals{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		method = parsed
	}

	totals := domain.TotalsFor(items, method)
	if claimed != (domain.Totals{}) && claimed != totals {
		return "", domain.Totals{}, fmt.Errorf("%w: client total %d, server total %d", ErrOrderTotalsMismatch, claimed.Total, totals.Total)
	}
	return method, totals, nil
}

func normalizeOrderItems(items []domain.LineItem) ([]domain.LineItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}
	if len(items) > maxOrderLines {
		return nil, fmt.Errorf("%w: order has more than %d lines", ErrOrderInvalidInput, maxOrderLines)
	}
	out := make([]domain.LineItem, 0, len(items))
	for i, item := range items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		item.Size = strings.TrimSpace(item.Size)
		item.Color = strings.TrimSpace(item.Color)
		switch {
		case item.ProductID == "":
			return nil, fmt.Errorf("%w: items[%d].productId is required", ErrOrderInvalidInput, i)
		case item.Quantity <= 0:
			return nil, fmt.Errorf("%w: items[%d].quantity must be positive", ErrOrderInvalidInput, i)
		case item.UnitPrice < 0:
			return nil, fmt.Errorf("%w: items[%d].price must not be negative", ErrOrderInvalidInput, i)
		case !domain.LineWithinLimits(item.UnitPrice, item.Quantity):
			return nil, fmt.Errorf("%w: items[%d] exceeds quantity %d or price %d", ErrOrderInvalidInput, i, domain.MaxLineQuantity, domain.MaxUnitPrice)
		}
		out = append(out, item)
	}
	if domain.SubtotalOf(out) >= domain.MaxSubtotal {
		return nil, fmt.Errorf("%w: order value cannot reach %d", ErrOrderInvalidInput, domain.MaxSubtotal)
	}
	return out, nil
}

func initialPayment(method domain.PaymentMethod, details domain.PaymentDetails, amount int64, now time.Time) domain.PaymentDetails {
	payment := domain.PaymentDetails{
		Method:        method,
		TransactionID: strings.TrimSpace(details.TransactionID),
		Amount:        amount,
		CardLast4:     lastFour(details.CardLast4),
		CardName:      strings.TrimSpace(details.CardName),
	}
	if method == domain.PaymentCOD {
		payment.Status = domain.PaymentStatusPending
		return payment
	}
	payment.Status = domain.PaymentStatusCompleted
	paidAt := now
	if details.PaidAt != nil && !details.PaidAt.IsZero() {
		paidAt = details.PaidAt.UTC()
	}
	payment.PaidAt = &paidAt
	return payment
}

func lastFour(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 4 {
		return value[len(value)-4:]
	}
	return value
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOrderInvalidInput) || errors.Is(err, ErrOrderInvalidState) ||
		errors.Is(err, ErrOrderConflict) || errors.Is(err, ErrOrderNotFound) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) publishStatusChanged(ctx context.Context, order domain.Order, prev domain.OrderStatus, actor, reason string, now time.Time) {
	var metadata map[string]any
	if reason = strings.TrimSpace(reason); reason != "" {
		metadata = map[string]any{"reason": reason}
	}
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		UserID:         order.UserID,
		PreviousStatus: prev,
		CurrentStatus:  order.Status,
		Total:          order.Totals.Total,
		ActorID:        strings.TrimSpace(actor),
		OccurredAt:     now,
		Metadata:       metadata,
	})
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": string(event.CurrentStatus),
		})
	}
}
