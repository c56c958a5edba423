package gateway

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestRegistryLooksUpByNormalizedCode(t *testing.T) {
	reg := NewRegistry(NewInvoiceGateway(), NewOnPayGateway())

	g, err := reg.Get(" Invoice ")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if g.Code() != "invoice" {
		t.Fatalf("unexpected gateway %s", g.Code())
	}

	if _, err := reg.Get("worldpay"); !errors.Is(err, ErrGatewayNotSupported) {
		t.Fatalf("expected ErrGatewayNotSupported, got %v", err)
	}

	if !reflect.DeepEqual(reg.Codes(), []string{"invoice", "onpay"}) {
		t.Fatalf("unexpected codes %v", reg.Codes())
	}
}

func TestCapabilitySetList(t *testing.T) {
	set := NewCapabilitySet(CapabilityRefund, CapabilityCapture)

	if !reflect.DeepEqual(set.List(), []string{"capture", "refund"}) {
		t.Fatalf("expected sorted capability list, got %v", set.List())
	}
	if set.Has(CapabilityStatus) {
		t.Fatal("expected status to be absent")
	}
}

func TestPaymentFormHTMLEscapesValues(t *testing.T) {
	form := &PaymentForm{
		Action: "https://pay.example/window",
		Fields: map[string]string{"note": `"quoted" & <tagged>`},
	}

	html := form.HTML()
	if !strings.Contains(html, `method="POST"`) {
		t.Fatalf("expected default POST method, got %s", html)
	}
	if strings.Contains(html, "<tagged>") {
		t.Fatalf("expected field value to be escaped, got %s", html)
	}
}
