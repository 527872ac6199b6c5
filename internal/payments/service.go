package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/orders"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/metrics"
	"github.com/agromart/agromart-backend/pkg/outbox"
	"github.com/agromart/agromart-backend/pkg/outbox/payloads"
)

// Service runs payment attempts against placed orders.
type Service interface {
	Pay(ctx context.Context, userID, orderID uuid.UUID) (*IntentDTO, error)
	Status(ctx context.Context, userID, intentID uuid.UUID) (*IntentDTO, error)
}

type orderLifecycle interface {
	Transition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, actor *outbox.ActorRef) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires the payment service dependencies.
type ServiceParams struct {
	Repo    Repository
	Orders  orders.Repository
	Flow    orderLifecycle
	Gateway Gateway
	Outbox  outboxEmitter
	DB      txRunner
	Logger  *logger.Logger
	Metrics *metrics.Commerce
}

type service struct {
	repo    Repository
	orders  orders.Repository
	flow    orderLifecycle
	gateway Gateway
	outbox  outboxEmitter
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.Commerce
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Flow == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		orders:  params.Orders,
		flow:    params.Flow,
		gateway: params.Gateway,
		outbox:  params.Outbox,
		tx:      params.DB,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Pay moves a pending order to processing and records a payment intent. Online
// methods are then charged outside the transaction; a decline fails the order
// and returns its stock. Cash on delivery leaves the intent pending.
func (s *service) Pay(ctx context.Context, userID, orderID uuid.UUID) (*IntentDTO, error) {
	actor := &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)}

	var (
		order  *models.Order
		intent *models.PaymentIntent
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.loadOrder(ctx, s.orders.WithTx(tx), orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
				WithDetails(map[string]any{"status": order.Status})
		}
		if err := s.flow.Transition(ctx, tx, order, enums.OrderStatusProcessing, actor); err != nil {
			return err
		}
		intent, err = s.repo.WithTx(tx).Create(ctx, &models.PaymentIntent{
			OrderID: order.ID,
			UserID:  userID,
			Method:  order.PaymentMethod,
			Status:  enums.PaymentStatusPending,
			Amount:  order.Total,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.OrderTransition(string(enums.OrderStatusPending), string(enums.OrderStatusProcessing))

	if !order.PaymentMethod.IsOnline() {
		s.metrics.Payment(string(intent.Method), string(intent.Status))
		return NewIntentDTO(intent, order.Status), nil
	}

	result, chargeErr := s.gateway.Charge(ctx, ChargeRequest{
		IntentID: intent.ID,
		OrderID:  order.ID,
		Amount:   intent.Amount,
		Method:   intent.Method,
	})
	if chargeErr != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "payment gateway error", chargeErr)
		result = ChargeResult{Approved: false, DeclineReason: "gateway_error"}
	}

	if result.Approved {
		err = s.settle(ctx, order, intent, result, actor)
	} else {
		err = s.decline(ctx, order, intent, result, actor)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.Payment(string(intent.Method), string(intent.Status))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":          order.ID.String(),
		"payment_intent_id": intent.ID.String(),
		"status":            intent.Status,
	})
	s.logg.Info(logCtx, "payment attempt finished")
	return NewIntentDTO(intent, order.Status), nil
}

func (s *service) settle(ctx context.Context, order *models.Order, intent *models.PaymentIntent, result ChargeResult, actor *outbox.ActorRef) error {
	ref := result.Reference
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersTx := s.orders.WithTx(tx)
		applied, err := ordersTx.UpdatePaymentStatus(ctx, order.ID, enums.OrderStatusProcessing, enums.PaymentStatusSucceeded)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment status")
		}
		if !applied {
			return s.abandon(ctx, tx, order, intent, &ref, orderClosedReason, actor)
		}
		if err := s.repo.WithTx(tx).Update(ctx, intent.ID, map[string]any{
			"status":      enums.PaymentStatusSucceeded,
			"gateway_ref": ref,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment intent")
		}
		intent.Status = enums.PaymentStatusSucceeded
		intent.GatewayRef = &ref
		order.PaymentStatus = enums.PaymentStatusSucceeded
		return s.emit(ctx, tx, enums.EventPaymentSucceeded, intent, actor)
	})
}

// decline fails the order and returns its stock. When the order already left
// processing, only the intent is failed.
func (s *service) decline(ctx context.Context, order *models.Order, intent *models.PaymentIntent, result ChargeResult, actor *outbox.ActorRef) error {
	reason := result.DeclineReason
	if reason == "" {
		reason = declineReason
	}
	var (
		transitioned bool
		err          error
	)
	// A concurrent status change between the reload and the transition is
	// retried once; the second pass sees the new status.
	for range 2 {
		transitioned = false
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ordersTx := s.orders.WithTx(tx)
			current, err := s.loadOrder(ctx, ordersTx, order.ID)
			if err != nil {
				return err
			}
			*order = *current
			if current.Status != enums.OrderStatusProcessing {
				return s.abandon(ctx, tx, order, intent, nil, reason, actor)
			}

			if err := s.repo.WithTx(tx).Update(ctx, intent.ID, map[string]any{
				"status":         enums.PaymentStatusFailed,
				"failure_reason": reason,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment intent")
			}
			if _, err := ordersTx.UpdatePaymentStatus(ctx, order.ID, enums.OrderStatusProcessing, enums.PaymentStatusFailed); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment status")
			}
			if err := s.flow.Transition(ctx, tx, order, enums.OrderStatusFailed, actor); err != nil {
				return err
			}
			transitioned = true
			intent.Status = enums.PaymentStatusFailed
			intent.FailureReason = &reason
			order.PaymentStatus = enums.PaymentStatusFailed
			return s.emit(ctx, tx, enums.EventPaymentFailed, intent, actor)
		})
		if !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
			break
		}
	}
	if err != nil {
		return err
	}
	if transitioned {
		s.metrics.OrderTransition(string(enums.OrderStatusProcessing), string(enums.OrderStatusFailed))
	}
	return nil
}

// abandon fails an intent whose order was closed while the gateway was
// charging. The order keeps its status; a captured charge keeps its gateway
// reference so it can be refunded.
func (s *service) abandon(ctx context.Context, tx *gorm.DB, order *models.Order, intent *models.PaymentIntent, ref *string, reason string, actor *outbox.ActorRef) error {
	current, err := s.loadOrder(ctx, s.orders.WithTx(tx), order.ID)
	if err != nil {
		return err
	}
	*order = *current

	updates := map[string]any{
		"status":         enums.PaymentStatusFailed,
		"failure_reason": reason,
	}
	if ref != nil {
		updates["gateway_ref"] = *ref
	}
	if err := s.repo.WithTx(tx).Update(ctx, intent.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment intent")
	}
	intent.Status = enums.PaymentStatusFailed
	intent.FailureReason = &reason
	intent.GatewayRef = ref

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":          order.ID.String(),
		"order_status":      order.Status,
		"payment_intent_id": intent.ID.String(),
		"captured":          ref != nil,
	})
	s.logg.Warn(logCtx, "payment finished after order was closed")
	return s.emit(ctx, tx, enums.EventPaymentFailed, intent, actor)
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, intent *models.PaymentIntent, actor *outbox.ActorRef) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   intent.ID,
		Actor:         actor,
		Data: payloads.PaymentStatusEvent{
			PaymentIntentID: intent.ID,
			OrderID:         intent.OrderID,
			UserID:          intent.UserID,
			Method:          intent.Method,
			Status:          intent.Status,
			Amount:          intent.Amount,
			GatewayRef:      intent.GatewayRef,
			FailureReason:   intent.FailureReason,
		},
	})
}

func (s *service) Status(ctx context.Context, userID, intentID uuid.UUID) (*IntentDTO, error) {
	intent, err := s.repo.FindByID(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment intent")
	}
	if intent.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment does not belong to user")
	}
	order, err := s.loadOrder(ctx, s.orders, intent.OrderID)
	if err != nil {
		return nil, err
	}
	return NewIntentDTO(intent, order.Status), nil
}

func (s *service) loadOrder(ctx context.Context, repo orders.Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
