package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/signing"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

func anetSignedRequest(t *testing.T, payload []byte, signatureKey string) *CallbackRequest {
	t.Helper()
	mac, err := signing.Sign(signing.HMACSHA512, []byte(signatureKey), payload)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	header := http.Header{}
	header.Set(authorizeNetSignatureHeader, authorizeNetSignaturePrefix+signing.Encode(signing.EncodingHex, mac))
	return NewCallbackRequestFromParts(header, nil, nil, payload)
}

func TestAuthorizeNetProcessCallbackAuthCapture(t *testing.T) {
	g := NewAuthorizeNetGateway(0)
	settings := Settings{anetSettingSignatureKey: "anet-signature-key"}

	payload := []byte(`{
		"notificationId": "notif-1",
		"eventType": "net.authorize.payment.authcapture.created",
		"payload": {"id": "60123", "entityName": "transaction", "responseCode": 1, "authAmount": 45.00}
	}`)
	req := anetSignedRequest(t, payload, "anet-signature-key")
	order := &entity.Order{CartNumber: "cart-42", Gateway: "authorizenet"}

	info, err := g.ProcessCallback(context.Background(), order, req, settings)
	if err != nil {
		t.Fatalf("process callback failed: %v", err)
	}

	if info.PaymentState != types.PaymentStateCaptured {
		t.Fatalf("expected captured, got %s", info.PaymentState)
	}
	if info.TransactionID != "60123" {
		t.Fatalf("unexpected transaction id %q", info.TransactionID)
	}
	if info.Amount.String() != "45" {
		t.Fatalf("unexpected amount %s", info.Amount)
	}
}

func TestAuthorizeNetProcessCallbackRejectsBadSignature(t *testing.T) {
	g := NewAuthorizeNetGateway(0)
	settings := Settings{anetSettingSignatureKey: "anet-signature-key"}

	payload := []byte(`{"eventType":"net.authorize.payment.authcapture.created","payload":{"entityName":"transaction","responseCode":1}}`)
	req := anetSignedRequest(t, payload, "some-other-key")
	order := &entity.Order{CartNumber: "cart-42"}

	_, err := g.ProcessCallback(context.Background(), order, req, settings)
	if !errors.Is(err, ErrCallbackUntrusted) {
		t.Fatalf("expected ErrCallbackUntrusted, got %v", err)
	}
}

func TestAuthorizeNetProcessCallbackIgnoresDeclines(t *testing.T) {
	g := NewAuthorizeNetGateway(0)
	settings := Settings{anetSettingSignatureKey: "anet-signature-key"}

	payload := []byte(`{
		"eventType": "net.authorize.payment.authcapture.created",
		"payload": {"id": "60123", "entityName": "transaction", "responseCode": 2}
	}`)
	req := anetSignedRequest(t, payload, "anet-signature-key")
	order := &entity.Order{CartNumber: "cart-42"}

	_, err := g.ProcessCallback(context.Background(), order, req, settings)
	if !errors.Is(err, ErrCallbackIgnored) {
		t.Fatalf("expected ErrCallbackIgnored, got %v", err)
	}
}

func TestAuthorizeNetEventState(t *testing.T) {
	cases := map[string]types.PaymentState{
		"net.authorize.payment.authcapture.created":      types.PaymentStateCaptured,
		"net.authorize.payment.priorauthcapture.created": types.PaymentStateCaptured,
		"net.authorize.payment.capture.created":          types.PaymentStateCaptured,
		"net.authorize.payment.authorization.created":    types.PaymentStateAuthorized,
		"net.authorize.payment.refund.created":           types.PaymentStateRefunded,
		"net.authorize.payment.void.created":             types.PaymentStateCancelled,
		"net.authorize.customer.created":                 types.PaymentStateInitialized,
	}

	for eventType, want := range cases {
		if got := AuthorizeNetEventState(eventType); got != want {
			t.Errorf("event %s: expected %s, got %s", eventType, want, got)
		}
	}
}

func TestAuthorizeNetTransactionState(t *testing.T) {
	cases := map[string]types.PaymentState{
		"authorizedPendingCapture":  types.PaymentStateAuthorized,
		"capturedPendingSettlement": types.PaymentStateCaptured,
		"settledSuccessfully":       types.PaymentStateCaptured,
		"voided":                    types.PaymentStateCancelled,
		"refundSettledSuccessfully": types.PaymentStateRefunded,
		"refundPendingSettlement":   types.PaymentStateRefunded,
		"somethingElse":             types.PaymentStateInitialized,
	}

	for status, want := range cases {
		if got := AuthorizeNetTransactionState(status); got != want {
			t.Errorf("status %s: expected %s, got %s", status, want, got)
		}
	}
}

func TestCardMaskLast4(t *testing.T) {
	if got := cardMaskLast4("XXXX1111"); got != "1111" {
		t.Fatalf("expected 1111, got %q", got)
	}
	if got := cardMaskLast4("1111"); got != "1111" {
		t.Fatalf("expected short mask to pass through, got %q", got)
	}
}

func TestAuthorizeNetRefundRequiresCardMask(t *testing.T) {
	g := NewAuthorizeNetGateway(0)
	transactionID := "60123"
	order := &entity.Order{CartNumber: "cart-42", TransactionID: &transactionID}
	settings := Settings{anetSettingAPILoginID: "login", anetSettingTransactionKey: "key"}

	if _, err := g.Refund(context.Background(), order, settings); err == nil {
		t.Fatal("expected refund without card mask to fail")
	}
}
