package gateway

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/signing"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

func onPayTestOrder() *entity.Order {
	return &entity.Order{
		CartNumber:  "cart-42",
		Gateway:     "onpay",
		AmountTotal: decimal.RequireFromString("199.95"),
		Currency:    "DKK",
	}
}

func onPaySignedForm(t *testing.T, fields url.Values, secret string) url.Values {
	t.Helper()

	flat := map[string]string{}
	for name := range fields {
		flat[name] = fields.Get(name)
	}
	mac, err := signing.Sign(signing.HMACSHA1, []byte(secret), signing.SortedByKey(flat, onPayFieldPrefix))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	fields.Set(onPayHMACField, signing.Encode(signing.EncodingHex, mac))
	return fields
}

func TestOnPayGeneratePaymentFormIsSigned(t *testing.T) {
	g := NewOnPayGateway()
	settings := Settings{onPaySettingGatewayID: "gw-1", onPaySettingSecret: "onpay-secret"}
	urls := FormURLs{
		Continue: "https://shop.example/continue",
		Cancel:   "https://shop.example/cancel",
		Callback: "https://shop.example/callback",
	}

	form, err := g.GeneratePaymentForm(context.Background(), onPayTestOrder(), urls, settings)
	if err != nil {
		t.Fatalf("generate payment form failed: %v", err)
	}

	if form.Action != onPayWindowURL {
		t.Fatalf("unexpected action %q", form.Action)
	}
	if form.Fields["onpay_amount"] != "19995" {
		t.Fatalf("expected minor units amount, got %q", form.Fields["onpay_amount"])
	}
	if form.Fields["onpay_testmode"] != "1" {
		t.Fatal("expected test mode flag")
	}

	candidate := form.Fields[onPayHMACField]
	verifiable := map[string]string{}
	for name, value := range form.Fields {
		if name != onPayHMACField {
			verifiable[name] = value
		}
	}
	message := signing.SortedByKey(verifiable, onPayFieldPrefix)
	if !signing.Verify(signing.HMACSHA1, signing.EncodingHex, []byte("onpay-secret"), message, candidate) {
		t.Fatal("expected form hmac to verify")
	}
}

func TestOnPayProcessCallbackAuthorizes(t *testing.T) {
	g := NewOnPayGateway()
	settings := Settings{onPaySettingSecret: "onpay-secret"}

	form := onPaySignedForm(t, url.Values{
		"onpay_reference": {"cart-42"},
		"onpay_number":    {"tx-99"},
		"onpay_amount":    {"19995"},
		"onpay_currency":  {"DKK"},
		"onpay_errorcode": {"0"},
		"onpay_cardtype":  {"visa"},
	}, "onpay-secret")
	req := NewCallbackRequestFromParts(nil, nil, form, nil)

	info, err := g.ProcessCallback(context.Background(), onPayTestOrder(), req, settings)
	if err != nil {
		t.Fatalf("process callback failed: %v", err)
	}

	if info.PaymentState != types.PaymentStateAuthorized {
		t.Fatalf("expected authorized, got %s", info.PaymentState)
	}
	if info.TransactionID != "tx-99" {
		t.Fatalf("unexpected transaction id %q", info.TransactionID)
	}
	if info.Amount.String() != "199.95" {
		t.Fatalf("unexpected amount %s", info.Amount)
	}
}

func TestOnPayProcessCallbackRejectsBadHMAC(t *testing.T) {
	g := NewOnPayGateway()
	settings := Settings{onPaySettingSecret: "onpay-secret"}

	form := onPaySignedForm(t, url.Values{
		"onpay_reference": {"cart-42"},
		"onpay_amount":    {"19995"},
	}, "onpay-secret")
	form.Set("onpay_amount", "99999")
	req := NewCallbackRequestFromParts(nil, nil, form, nil)

	_, err := g.ProcessCallback(context.Background(), onPayTestOrder(), req, settings)
	if !errors.Is(err, ErrCallbackUntrusted) {
		t.Fatalf("expected ErrCallbackUntrusted, got %v", err)
	}
}

func TestOnPayProcessCallbackIgnoresForeignCart(t *testing.T) {
	g := NewOnPayGateway()
	settings := Settings{onPaySettingSecret: "onpay-secret"}

	form := onPaySignedForm(t, url.Values{
		"onpay_reference": {"other-cart"},
		"onpay_amount":    {"100"},
	}, "onpay-secret")
	req := NewCallbackRequestFromParts(nil, nil, form, nil)

	_, err := g.ProcessCallback(context.Background(), onPayTestOrder(), req, settings)
	if !errors.Is(err, ErrCallbackIgnored) {
		t.Fatalf("expected ErrCallbackIgnored, got %v", err)
	}
}

func TestOnPayIdentifyCartFromReference(t *testing.T) {
	g := NewOnPayGateway()
	settings := Settings{onPaySettingSecret: "onpay-secret"}

	form := onPaySignedForm(t, url.Values{
		"onpay_reference": {"cart-42"},
		"onpay_uuid":      {"uuid-1"},
	}, "onpay-secret")
	req := NewCallbackRequestFromParts(nil, nil, form, nil)

	cart, err := g.IdentifyCart(context.Background(), req, settings)
	if err != nil {
		t.Fatalf("identify cart failed: %v", err)
	}
	if cart != "cart-42" {
		t.Fatalf("expected cart-42, got %q", cart)
	}
}

func TestOnPayHasNoAPISurface(t *testing.T) {
	g := NewOnPayGateway()
	if len(g.Capabilities()) != 0 {
		t.Fatal("expected no capabilities")
	}
	if _, err := g.Capture(context.Background(), onPayTestOrder(), Settings{}); !errors.Is(err, ErrOperationNotSupported) {
		t.Fatalf("expected ErrOperationNotSupported, got %v", err)
	}
}
