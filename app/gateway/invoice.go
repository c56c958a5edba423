package gateway

import (
	"context"
	"fmt"

	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

const (
	invoiceSettingContinueURL = "continueurl"
	invoiceSettingCancelURL   = "cancelurl"
)

// InvoiceGateway is plain invoicing: no external gateway is involved. The
// payment form posts straight back to the platform's callback URL and the
// order is authorized on the spot, to be captured when the merchant invoices.
type InvoiceGateway struct {
	UnsupportedOperations
}

func NewInvoiceGateway() *InvoiceGateway {
	return &InvoiceGateway{}
}

func (g *InvoiceGateway) Code() string {
	return "invoice"
}

func (g *InvoiceGateway) DefaultSettings() Settings {
	return Settings{
		invoiceSettingContinueURL: "",
		invoiceSettingCancelURL:   "",
	}
}

func (g *InvoiceGateway) Capabilities() CapabilitySet {
	return NewCapabilitySet()
}

func (g *InvoiceGateway) GeneratePaymentForm(_ context.Context, order *entity.Order, urls FormURLs, _ Settings) (*PaymentForm, error) {
	return &PaymentForm{
		Action: urls.Callback,
		Method: "POST",
		Fields: map[string]string{"cart_number": order.CartNumber},
	}, nil
}

func (g *InvoiceGateway) ContinueURL(_ *entity.Order, settings Settings) (string, error) {
	return settings.Required(invoiceSettingContinueURL)
}

func (g *InvoiceGateway) CancelURL(_ *entity.Order, settings Settings) (string, error) {
	return settings.Required(invoiceSettingCancelURL)
}

func (g *InvoiceGateway) IdentifyCart(_ context.Context, req *CallbackRequest, _ Settings) (string, error) {
	cart := req.Field("cart_number")
	if cart == "" {
		return "", fmt.Errorf("%w: cart number missing", ErrCallbackIgnored)
	}
	return cart, nil
}

func (g *InvoiceGateway) ProcessCallback(_ context.Context, order *entity.Order, req *CallbackRequest, _ Settings) (*types.CallbackInfo, error) {
	if cart := req.Field("cart_number"); cart != "" && cart != order.CartNumber {
		return nil, fmt.Errorf("%w: post is for cart %s", ErrCallbackIgnored, cart)
	}
	return &types.CallbackInfo{
		Amount:        order.AmountTotal,
		TransactionID: "invoice-" + order.CartNumber,
		PaymentState:  types.PaymentStateAuthorized,
	}, nil
}
