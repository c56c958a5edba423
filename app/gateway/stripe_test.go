package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/signing"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

func stripeSignatureHeader(t *testing.T, payload []byte, secret string, ts int64) string {
	t.Helper()
	mac, err := signing.Sign(signing.HMACSHA256, []byte(secret), []byte(fmt.Sprintf("%d.%s", ts, payload)))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return fmt.Sprintf("t=%d,v1=%s", ts, signing.Encode(signing.EncodingHex, mac))
}

func stripeGatewayAt(now time.Time) *StripeGateway {
	g := NewStripeGateway(time.Second)
	g.now = func() time.Time { return now }
	return g
}

func TestStripeVerifySignature(t *testing.T) {
	now := time.Now()
	g := stripeGatewayAt(now)
	payload := []byte(`{"id":"evt_1"}`)

	header := stripeSignatureHeader(t, payload, "whsec_test", now.Unix())
	if !g.verifySignature(payload, header, "whsec_test", 300) {
		t.Fatal("expected signature to validate")
	}
	if g.verifySignature(payload, header, "wrong-secret", 300) {
		t.Fatal("expected signature with wrong secret to fail")
	}

	stale := stripeSignatureHeader(t, payload, "whsec_test", now.Add(-10*time.Minute).Unix())
	if g.verifySignature(payload, stale, "whsec_test", 300) {
		t.Fatal("expected stale timestamp to fail")
	}

	if g.verifySignature(payload, "v1=deadbeef", "whsec_test", 300) {
		t.Fatal("expected header without timestamp to fail")
	}
}

func TestStripeChargeState(t *testing.T) {
	cases := []struct {
		paid, captured, refunded bool
		want                     types.PaymentState
	}{
		{false, false, false, types.PaymentStateInitialized},
		{true, false, false, types.PaymentStateAuthorized},
		{true, true, false, types.PaymentStateCaptured},
		{true, true, true, types.PaymentStateRefunded},
		{true, false, true, types.PaymentStateCancelled},
	}

	for _, tc := range cases {
		got := StripeChargeState(tc.paid, tc.captured, tc.refunded)
		if got != tc.want {
			t.Errorf("paid=%v captured=%v refunded=%v: expected %s, got %s",
				tc.paid, tc.captured, tc.refunded, tc.want, got)
		}
	}
}

func stripeCallbackRequest(t *testing.T, payload []byte, secret string, now time.Time) *CallbackRequest {
	t.Helper()
	header := http.Header{}
	header.Set("Stripe-Signature", stripeSignatureHeader(t, payload, secret, now.Unix()))
	return NewCallbackRequestFromParts(header, nil, nil, payload)
}

func TestStripeProcessCallbackCapturedCharge(t *testing.T) {
	now := time.Now()
	g := stripeGatewayAt(now)

	payload := []byte(`{
		"id": "evt_1",
		"type": "charge.captured",
		"data": {"object": {
			"id": "ch_1",
			"amount": 12345,
			"paid": true,
			"captured": true,
			"refunded": false,
			"metadata": {"cart_number": "cart-42"},
			"payment_method_details": {"card": {"brand": "visa", "last4": "4242"}}
		}}
	}`)
	req := stripeCallbackRequest(t, payload, "whsec_test", now)
	settings := Settings{stripeSettingWebhookSecret: "whsec_test"}
	order := &entity.Order{CartNumber: "cart-42", Gateway: "stripe"}

	info, err := g.ProcessCallback(context.Background(), order, req, settings)
	if err != nil {
		t.Fatalf("process callback failed: %v", err)
	}

	if info.PaymentState != types.PaymentStateCaptured {
		t.Fatalf("expected captured, got %s", info.PaymentState)
	}
	if info.TransactionID != "ch_1" {
		t.Fatalf("unexpected transaction id %q", info.TransactionID)
	}
	if info.Amount.String() != "123.45" {
		t.Fatalf("unexpected amount %s", info.Amount)
	}
	if info.CardType != "visa" || info.CardMask != "************4242" {
		t.Fatalf("unexpected card info %q %q", info.CardType, info.CardMask)
	}
}

func TestStripeProcessCallbackRejectsBadSignature(t *testing.T) {
	now := time.Now()
	g := stripeGatewayAt(now)

	payload := []byte(`{"id":"evt_1","type":"charge.captured"}`)
	req := stripeCallbackRequest(t, payload, "whsec_other", now)
	order := &entity.Order{CartNumber: "cart-42", Gateway: "stripe"}

	_, err := g.ProcessCallback(context.Background(), order, req, Settings{stripeSettingWebhookSecret: "whsec_test"})
	if !errors.Is(err, ErrCallbackUntrusted) {
		t.Fatalf("expected ErrCallbackUntrusted, got %v", err)
	}
}

func TestStripeProcessCallbackIgnoresNonChargeEvents(t *testing.T) {
	now := time.Now()
	g := stripeGatewayAt(now)

	payload := []byte(`{"id":"evt_1","type":"customer.created","data":{"object":{}}}`)
	req := stripeCallbackRequest(t, payload, "whsec_test", now)
	order := &entity.Order{CartNumber: "cart-42", Gateway: "stripe"}

	_, err := g.ProcessCallback(context.Background(), order, req, Settings{stripeSettingWebhookSecret: "whsec_test"})
	if !errors.Is(err, ErrCallbackIgnored) {
		t.Fatalf("expected ErrCallbackIgnored, got %v", err)
	}
}

func TestStripeIdentifyCartFromChargeMetadata(t *testing.T) {
	now := time.Now()
	g := stripeGatewayAt(now)

	payload := []byte(`{
		"id": "evt_1",
		"type": "charge.succeeded",
		"data": {"object": {"id": "ch_1", "metadata": {"cart_number": "cart-7"}}}
	}`)
	req := stripeCallbackRequest(t, payload, "whsec_test", now)

	cart, err := g.IdentifyCart(context.Background(), req, Settings{stripeSettingWebhookSecret: "whsec_test"})
	if err != nil {
		t.Fatalf("identify cart failed: %v", err)
	}
	if cart != "cart-7" {
		t.Fatalf("expected cart-7, got %q", cart)
	}
}

func TestStripeProcessCallbackFailsWithoutWebhookSecret(t *testing.T) {
	now := time.Now()
	g := stripeGatewayAt(now)

	req := stripeCallbackRequest(t, []byte(`{}`), "whsec_test", now)
	order := &entity.Order{CartNumber: "cart-42"}

	_, err := g.ProcessCallback(context.Background(), order, req, Settings{})
	if !errors.Is(err, ErrSettingMissing) {
		t.Fatalf("expected ErrSettingMissing, got %v", err)
	}
}
