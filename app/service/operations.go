package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/gateway"
	"github.com/vibast-solutions/ms-go-gateways/app/repository"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

type gatewayCall func(ctx context.Context, g gateway.Gateway, order *entity.Order, settings gateway.Settings) (*types.ApiInfo, error)

// OrderStatus asks the gateway for the authoritative transaction state and
// folds it into the order.
func (s *CheckoutService) OrderStatus(ctx context.Context, cartNumber string) (*entity.Order, *types.ApiInfo, error) {
	return s.runGatewayOperation(ctx, cartNumber, gateway.CapabilityStatus, "order_status_checked", nil,
		func(ctx context.Context, g gateway.Gateway, order *entity.Order, settings gateway.Settings) (*types.ApiInfo, error) {
			return g.Status(ctx, order, settings)
		})
}

// CaptureOrder settles the authorized amount. Captures are full-amount.
func (s *CheckoutService) CaptureOrder(ctx context.Context, cartNumber string) (*entity.Order, *types.ApiInfo, error) {
	return s.runGatewayOperation(ctx, cartNumber, gateway.CapabilityCapture, "order_captured",
		func(order *entity.Order) {
			order.CapturedAmount = order.AmountTotal
		},
		func(ctx context.Context, g gateway.Gateway, order *entity.Order, settings gateway.Settings) (*types.ApiInfo, error) {
			return g.Capture(ctx, order, settings)
		})
}

// RefundOrder returns the captured amount to the customer. Refunds are
// full-amount.
func (s *CheckoutService) RefundOrder(ctx context.Context, cartNumber string) (*entity.Order, *types.ApiInfo, error) {
	return s.runGatewayOperation(ctx, cartNumber, gateway.CapabilityRefund, "order_refunded",
		func(order *entity.Order) {
			order.RefundedAmount = order.CapturedAmount
		},
		func(ctx context.Context, g gateway.Gateway, order *entity.Order, settings gateway.Settings) (*types.ApiInfo, error) {
			return g.Refund(ctx, order, settings)
		})
}

// CancelOrder voids an authorization that was never captured.
func (s *CheckoutService) CancelOrder(ctx context.Context, cartNumber string) (*entity.Order, *types.ApiInfo, error) {
	return s.runGatewayOperation(ctx, cartNumber, gateway.CapabilityCancel, "order_cancelled", nil,
		func(ctx context.Context, g gateway.Gateway, order *entity.Order, settings gateway.Settings) (*types.ApiInfo, error) {
			return g.Cancel(ctx, order, settings)
		})
}

// runGatewayOperation is the shared path for the synchronous gateway API
// calls: capability gate first, settings resolved before any network call,
// and the returned state applied only when it does not move the order
// backward.
func (s *CheckoutService) runGatewayOperation(
	ctx context.Context,
	cartNumber string,
	capability gateway.Capability,
	eventType string,
	mutate func(order *entity.Order),
	call gatewayCall,
) (*entity.Order, *types.ApiInfo, error) {
	order, err := s.GetOrder(ctx, cartNumber)
	if err != nil {
		return nil, nil, err
	}

	g, err := s.gateway(order.Gateway)
	if err != nil {
		return nil, nil, err
	}
	if !g.Capabilities().Has(capability) {
		return nil, nil, fmt.Errorf("%w: %s does not support %s", ErrOperationNotSupported, g.Code(), capability)
	}

	settings, err := s.settingsFor(ctx, g, nil)
	if err != nil {
		return nil, nil, err
	}

	info, err := call(ctx, g, order, settings)
	if err != nil {
		if errors.Is(err, gateway.ErrSettingMissing) || errors.Is(err, gateway.ErrOperationNotSupported) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrGatewayCallFailed, err)
	}

	previousState := order.PaymentState
	previousTransactionID := order.TransactionID

	if info.PaymentState.Rank() >= types.PaymentState(order.PaymentState).Rank() {
		order.PaymentState = int32(info.PaymentState)
	}
	if info.TransactionID != "" {
		transactionID := info.TransactionID
		order.TransactionID = &transactionID
	}
	if mutate != nil {
		mutate(order)
	}

	if mutate == nil && !orderChanged(order, previousState, previousTransactionID) {
		return order, info, nil
	}

	now := time.Now().UTC()
	order.UpdatedAt = now
	if err := s.orderRepo.Update(ctx, order); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, err
	}

	oldStatePtr := &previousState
	if previousState == order.PaymentState {
		oldStatePtr = nil
	}
	_ = s.eventRepo.Create(ctx, &entity.OrderEvent{
		OrderID:       order.ID,
		EventType:     eventType,
		OldState:      oldStatePtr,
		NewState:      order.PaymentState,
		TransactionID: order.TransactionID,
		CreatedAt:     now,
	})

	return order, info, nil
}

func orderChanged(order *entity.Order, previousState int32, previousTransactionID *string) bool {
	if order.PaymentState != previousState {
		return true
	}
	if (order.TransactionID == nil) != (previousTransactionID == nil) {
		return true
	}
	if order.TransactionID != nil && previousTransactionID != nil && *order.TransactionID != *previousTransactionID {
		return true
	}
	return false
}
