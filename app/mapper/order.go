package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

func OrderToResponse(item *entity.Order) *types.Order {
	if item == nil {
		return nil
	}

	return &types.Order{
		ID:             item.ID,
		CartNumber:     item.CartNumber,
		Gateway:        item.Gateway,
		AmountTotal:    item.AmountTotal.StringFixed(2),
		Currency:       item.Currency,
		PaymentState:   types.PaymentState(item.PaymentState).String(),
		TransactionID:  derefString(item.TransactionID),
		CardType:       derefString(item.CardType),
		CardMask:       derefString(item.CardMask),
		CapturedAmount: item.CapturedAmount.StringFixed(2),
		RefundedAmount: item.RefundedAmount.StringFixed(2),
		Properties:     cloneProperties(item.Properties),
		CreatedAt:      item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func OrdersToResponse(items []*entity.Order) []*types.Order {
	result := make([]*types.Order, 0, len(items))
	for _, item := range items {
		result = append(result, OrderToResponse(item))
	}
	return result
}

func ApiInfoToResponse(info *types.ApiInfo) *types.ApiInfoResponse {
	if info == nil {
		return nil
	}
	return &types.ApiInfoResponse{
		TransactionID: info.TransactionID,
		PaymentState:  info.PaymentState.String(),
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func cloneProperties(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
