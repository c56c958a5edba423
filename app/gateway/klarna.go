package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/signing"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

const (
	klarnaAPITest = "https://api.playground.klarna.com"
	klarnaAPILive = "https://api.klarna.com"

	klarnaSignatureHeader = "X-Klarna-Signature"

	klarnaSettingMerchantID   = "merchantid"
	klarnaSettingSharedSecret = "sharedsecret"
	klarnaSettingCountry      = "country"
	klarnaSettingLocale       = "locale"
	klarnaSettingContinueURL  = "continueurl"
	klarnaSettingCancelURL    = "cancelurl"
)

type KlarnaGateway struct {
	api *apiClient
}

func NewKlarnaGateway(timeout time.Duration) *KlarnaGateway {
	return &KlarnaGateway{api: newAPIClient(timeout)}
}

func (g *KlarnaGateway) Code() string {
	return "klarna"
}

func (g *KlarnaGateway) DefaultSettings() Settings {
	return Settings{
		"mode":                    "test",
		klarnaSettingMerchantID:   "",
		klarnaSettingSharedSecret: "",
		klarnaSettingCountry:      "SE",
		klarnaSettingLocale:       "sv-se",
		klarnaSettingContinueURL:  "",
		klarnaSettingCancelURL:    "",
	}
}

func (g *KlarnaGateway) Capabilities() CapabilitySet {
	return NewCapabilitySet(CapabilityStatus, CapabilityCapture, CapabilityRefund, CapabilityCancel)
}

func (g *KlarnaGateway) GeneratePaymentForm(ctx context.Context, order *entity.Order, urls FormURLs, settings Settings) (*PaymentForm, error) {
	headers, err := klarnaAuthHeaders(settings)
	if err != nil {
		return nil, err
	}

	units := minorUnits(order.AmountTotal)
	payload := map[string]any{
		"purchase_country":    strings.ToUpper(settings.Get(klarnaSettingCountry)),
		"purchase_currency":   strings.ToUpper(order.Currency),
		"locale":              settings.Get(klarnaSettingLocale),
		"order_amount":        units,
		"order_tax_amount":    0,
		"merchant_reference1": order.CartNumber,
		"order_lines": []map[string]any{
			{
				"name":         "order-" + order.CartNumber,
				"quantity":     1,
				"unit_price":   units,
				"total_amount": units,
			},
		},
		"merchant_urls": map[string]string{
			"confirmation": urls.Continue,
			"checkout":     urls.Cancel,
			"push":         urls.Callback,
		},
	}

	body, err := g.api.postJSON(ctx, g.endpoint(settings)+"/checkout/v3/orders", headers, payload)
	if err != nil {
		return nil, err
	}

	var response struct {
		OrderID     string `json:"order_id"`
		CheckoutURL string `json:"checkout_url"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	if strings.TrimSpace(response.CheckoutURL) == "" {
		return nil, errors.New("klarna checkout url missing")
	}

	return &PaymentForm{
		Action: strings.TrimSpace(response.CheckoutURL),
		Method: "GET",
		Fields: map[string]string{},
	}, nil
}

func (g *KlarnaGateway) ContinueURL(_ *entity.Order, settings Settings) (string, error) {
	return settings.Required(klarnaSettingContinueURL)
}

func (g *KlarnaGateway) CancelURL(_ *entity.Order, settings Settings) (string, error) {
	return settings.Required(klarnaSettingCancelURL)
}

func (g *KlarnaGateway) IdentifyCart(_ context.Context, req *CallbackRequest, settings Settings) (string, error) {
	event, err := g.parseEvent(req, settings)
	if err != nil {
		return "", err
	}
	if event.MerchantReference == "" {
		return "", fmt.Errorf("%w: push carries no merchant reference", ErrCallbackIgnored)
	}
	return event.MerchantReference, nil
}

func (g *KlarnaGateway) ProcessCallback(_ context.Context, order *entity.Order, req *CallbackRequest, settings Settings) (*types.CallbackInfo, error) {
	event, err := g.parseEvent(req, settings)
	if err != nil {
		return nil, err
	}
	if event.MerchantReference != "" && event.MerchantReference != order.CartNumber {
		return nil, fmt.Errorf("%w: push is for reference %s", ErrCallbackIgnored, event.MerchantReference)
	}

	state := KlarnaStatusState(event.Status)
	if state == types.PaymentStateInitialized {
		return nil, fmt.Errorf("%w: status %s", ErrCallbackIgnored, event.Status)
	}

	return &types.CallbackInfo{
		Amount:        fromMinorUnits(event.OrderAmount),
		TransactionID: event.OrderID,
		PaymentState:  state,
	}, nil
}

func (g *KlarnaGateway) Status(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	headers, err := klarnaAuthHeaders(settings)
	if err != nil {
		return nil, err
	}
	orderID, err := orderTransactionID(order)
	if err != nil {
		return nil, err
	}

	body, err := g.api.getJSON(ctx, g.orderManagementURL(settings, orderID, ""), headers)
	if err != nil {
		return nil, err
	}

	var response struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	return &types.ApiInfo{
		TransactionID: orderID,
		PaymentState:  KlarnaStatusState(response.Status),
	}, nil
}

func (g *KlarnaGateway) Capture(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	payload := map[string]any{"captured_amount": minorUnits(order.AmountTotal)}
	return g.orderManagementCall(ctx, order, settings, "captures", payload, types.PaymentStateCaptured)
}

func (g *KlarnaGateway) Refund(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	payload := map[string]any{"refunded_amount": minorUnits(order.AmountTotal)}
	return g.orderManagementCall(ctx, order, settings, "refunds", payload, types.PaymentStateRefunded)
}

func (g *KlarnaGateway) Cancel(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	return g.orderManagementCall(ctx, order, settings, "cancel", map[string]any{}, types.PaymentStateCancelled)
}

func (g *KlarnaGateway) orderManagementCall(ctx context.Context, order *entity.Order, settings Settings, operation string, payload map[string]any, resulting types.PaymentState) (*types.ApiInfo, error) {
	headers, err := klarnaAuthHeaders(settings)
	if err != nil {
		return nil, err
	}
	orderID, err := orderTransactionID(order)
	if err != nil {
		return nil, err
	}

	if _, err := g.api.postJSON(ctx, g.orderManagementURL(settings, orderID, operation), headers, payload); err != nil {
		return nil, err
	}
	return &types.ApiInfo{TransactionID: orderID, PaymentState: resulting}, nil
}

type klarnaPushEvent struct {
	OrderID           string `json:"order_id"`
	Status            string `json:"status"`
	MerchantReference string `json:"merchant_reference1"`
	OrderAmount       int64  `json:"order_amount"`
}

func (g *KlarnaGateway) parseEvent(req *CallbackRequest, settings Settings) (*klarnaPushEvent, error) {
	parsed, err := req.Event(g.Code(), func() (any, error) {
		sharedSecret, err := settings.Required(klarnaSettingSharedSecret)
		if err != nil {
			return nil, err
		}

		// Push notifications sign the whole payload rather than fields.
		candidate := req.Header(klarnaSignatureHeader)
		if !signing.Verify(signing.HMACSHA256, signing.EncodingBase64, []byte(sharedSecret), req.Body(), candidate) {
			return nil, ErrCallbackUntrusted
		}

		var event klarnaPushEvent
		if err := json.Unmarshal(req.Body(), &event); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCallbackIgnored, err)
		}
		event.OrderID = strings.TrimSpace(event.OrderID)
		event.Status = strings.TrimSpace(event.Status)
		event.MerchantReference = strings.TrimSpace(event.MerchantReference)
		if event.OrderID == "" {
			event.OrderID = strings.TrimSpace(req.Field("order_id"))
		}
		return &event, nil
	})
	if err != nil {
		return nil, err
	}
	return parsed.(*klarnaPushEvent), nil
}

func (g *KlarnaGateway) endpoint(settings Settings) string {
	if settings.TestMode() {
		return klarnaAPITest
	}
	return klarnaAPILive
}

func (g *KlarnaGateway) orderManagementURL(settings Settings, orderID, operation string) string {
	base := g.endpoint(settings) + "/ordermanagement/v1/orders/" + url.PathEscape(orderID)
	if operation == "" {
		return base
	}
	return base + "/" + operation
}

func klarnaAuthHeaders(settings Settings) (map[string]string, error) {
	merchantID, err := settings.Required(klarnaSettingMerchantID)
	if err != nil {
		return nil, err
	}
	sharedSecret, err := settings.Required(klarnaSettingSharedSecret)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": basicAuth(merchantID, sharedSecret)}, nil
}

// KlarnaStatusState maps both checkout statuses (checkout_complete) and
// order-management statuses (AUTHORIZED, CAPTURED, ...) onto the shared
// lifecycle.
func KlarnaStatusState(status string) types.PaymentState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "checkout_complete", "authorized":
		return types.PaymentStateAuthorized
	case "captured", "part_captured":
		return types.PaymentStateCaptured
	case "cancelled", "expired":
		return types.PaymentStateCancelled
	case "refunded":
		return types.PaymentStateRefunded
	default:
		return types.PaymentStateInitialized
	}
}
