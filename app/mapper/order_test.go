package mapper

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

func TestOrderToResponse(t *testing.T) {
	transactionID := "tx-1"
	cardType := "visa"
	created := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	item := &entity.Order{
		ID:             7,
		CartNumber:     "cart-42",
		Gateway:        "stripe",
		AmountTotal:    decimal.RequireFromString("199.9"),
		Currency:       "DKK",
		PaymentState:   int32(types.PaymentStateCaptured),
		TransactionID:  &transactionID,
		CardType:       &cardType,
		CapturedAmount: decimal.RequireFromString("199.9"),
		Properties:     map[string]string{"customer": "c-1"},
		CreatedAt:      created,
		UpdatedAt:      created,
	}

	resp := OrderToResponse(item)

	if resp.AmountTotal != "199.90" || resp.CapturedAmount != "199.90" {
		t.Fatalf("expected two-decimal amounts, got %s / %s", resp.AmountTotal, resp.CapturedAmount)
	}
	if resp.RefundedAmount != "0.00" {
		t.Fatalf("expected zero refunded amount, got %s", resp.RefundedAmount)
	}
	if resp.PaymentState != "captured" {
		t.Fatalf("unexpected state %q", resp.PaymentState)
	}
	if resp.TransactionID != "tx-1" || resp.CardType != "visa" || resp.CardMask != "" {
		t.Fatalf("unexpected card fields %+v", resp)
	}
	if resp.CreatedAt != "2026-03-01T12:30:00Z" {
		t.Fatalf("unexpected created_at %q", resp.CreatedAt)
	}
	if resp.Properties["customer"] != "c-1" {
		t.Fatalf("unexpected properties %v", resp.Properties)
	}

	resp.Properties["customer"] = "mutated"
	if item.Properties["customer"] != "c-1" {
		t.Fatal("expected response properties to be a copy")
	}
}

func TestOrderToResponseNil(t *testing.T) {
	if OrderToResponse(nil) != nil {
		t.Fatal("expected nil response for nil order")
	}
	if ApiInfoToResponse(nil) != nil {
		t.Fatal("expected nil response for nil api info")
	}
}

func TestOrdersToResponse(t *testing.T) {
	items := []*entity.Order{
		{CartNumber: "cart-1", AmountTotal: decimal.New(10, 0)},
		{CartNumber: "cart-2", AmountTotal: decimal.New(20, 0)},
	}

	result := OrdersToResponse(items)
	if len(result) != 2 || result[1].CartNumber != "cart-2" {
		t.Fatalf("unexpected result %+v", result)
	}
}
