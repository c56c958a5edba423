package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/gateway"
	"github.com/vibast-solutions/ms-go-gateways/app/repository"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

// signatureHeaders and signatureFields name the places the supported gateways
// carry their callback signature; the matched value is kept on the audit row.
var signatureHeaders = []string{
	"Stripe-Signature",
	"X-ANET-Signature",
	"X-Klarna-Signature",
}

var signatureFields = []string{
	"onpay_hmac_sha1",
	"DIGEST",
	"signature",
}

// HandleCallback runs the full inbound-webhook pipeline: identify the cart
// when the URL does not carry it, verify and parse the payload, and advance
// the order. Every callback leaves an audit row whether it was trusted or not.
func (s *CheckoutService) HandleCallback(ctx context.Context, gatewayCode, cartNumber string, req *gateway.CallbackRequest) (*entity.Order, error) {
	g, err := s.gateway(gatewayCode)
	if err != nil {
		return nil, err
	}

	settings, err := s.settingsFor(ctx, g, nil)
	if err != nil {
		return nil, err
	}

	if cartNumber == "" {
		cartNumber, err = g.IdentifyCart(ctx, req, settings)
		if err != nil {
			s.persistCallbackRecord(ctx, nil, g.Code(), "", req, entity.CallbackRecordRejected,
				fmt.Sprintf("cart identification failed: %v", err))
			return nil, ErrCallbackRejected
		}
	}

	order, err := s.orderRepo.FindByCartNumber(ctx, cartNumber)
	if err != nil {
		return nil, err
	}
	if order == nil {
		s.persistCallbackRecord(ctx, nil, g.Code(), cartNumber, req, entity.CallbackRecordRejected,
			"order not found for cart number")
		return nil, ErrOrderNotFound
	}
	if order.Gateway != g.Code() {
		s.persistCallbackRecord(ctx, &order.ID, g.Code(), cartNumber, req, entity.CallbackRecordRejected,
			fmt.Sprintf("order belongs to gateway %s", order.Gateway))
		return nil, ErrCallbackRejected
	}

	info, err := g.ProcessCallback(ctx, order, req, settings)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrCallbackUntrusted):
			s.persistCallbackRecord(ctx, &order.ID, g.Code(), cartNumber, req, entity.CallbackRecordRejected, err.Error())
			return nil, ErrCallbackRejected
		case errors.Is(err, gateway.ErrCallbackIgnored):
			s.persistCallbackRecord(ctx, &order.ID, g.Code(), cartNumber, req, entity.CallbackRecordIgnored, err.Error())
			return order, ErrCallbackIgnored
		default:
			s.persistCallbackRecord(ctx, &order.ID, g.Code(), cartNumber, req, entity.CallbackRecordRejected,
				fmt.Sprintf("callback processing failed: %v", err))
			return nil, ErrCallbackRejected
		}
	}

	oldState := types.PaymentState(order.PaymentState)
	newState := info.PaymentState
	if newState.Rank() < oldState.Rank() {
		s.persistCallbackRecord(ctx, &order.ID, g.Code(), cartNumber, req, entity.CallbackRecordIgnored,
			fmt.Sprintf("state regression: %s -> %s", oldState, newState))
		return order, ErrCallbackIgnored
	}

	now := time.Now().UTC()
	previousState := order.PaymentState

	order.PaymentState = int32(newState)
	if info.TransactionID != "" {
		transactionID := info.TransactionID
		order.TransactionID = &transactionID
	}
	if info.CardType != "" {
		cardType := info.CardType
		order.CardType = &cardType
	}
	if info.CardMask != "" {
		cardMask := info.CardMask
		order.CardMask = &cardMask
	}
	switch newState {
	case types.PaymentStateCaptured:
		order.CapturedAmount = info.Amount
	case types.PaymentStateRefunded:
		order.RefundedAmount = info.Amount
	}
	order.UpdatedAt = now

	if err := s.orderRepo.Update(ctx, order); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	oldStatePtr := &previousState
	if previousState == order.PaymentState {
		oldStatePtr = nil
	}
	payloadJSON := string(req.Body())
	_ = s.eventRepo.Create(ctx, &entity.OrderEvent{
		OrderID:       order.ID,
		EventType:     "gateway_callback",
		OldState:      oldStatePtr,
		NewState:      order.PaymentState,
		TransactionID: order.TransactionID,
		PayloadJSON:   &payloadJSON,
		CreatedAt:     now,
	})

	s.persistCallbackRecord(ctx, &order.ID, g.Code(), cartNumber, req, entity.CallbackRecordProcessed, "")

	return order, nil
}

func (s *CheckoutService) persistCallbackRecord(
	ctx context.Context,
	orderID *uint64,
	gatewayCode, cartNumber string,
	req *gateway.CallbackRequest,
	status int32,
	reason string,
) {
	now := time.Now().UTC()

	var recordError *string
	if reason != "" {
		trimmed := truncate(reason, 1024)
		recordError = &trimmed
	}

	_ = s.callbackRepo.Create(ctx, &entity.CallbackRecord{
		OrderID:       orderID,
		Gateway:       gatewayCode,
		CartNumber:    cartNumber,
		CorrelationID: uuid.NewString(),
		Signature:     callbackSignature(req),
		PayloadJSON:   truncate(string(req.Body()), 65535),
		Status:        status,
		Error:         recordError,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func callbackSignature(req *gateway.CallbackRequest) string {
	for _, name := range signatureHeaders {
		if value := req.Header(name); value != "" {
			return value
		}
	}
	for _, name := range signatureFields {
		if value := req.Field(name); value != "" {
			return value
		}
	}
	return ""
}
