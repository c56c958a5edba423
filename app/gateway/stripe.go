package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/signing"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

const (
	stripeAPIBase                  = "https://api.stripe.com"
	stripeDefaultToleranceSeconds  = 300
	stripeSettingSecretKey         = "secretkey"
	stripeSettingWebhookSecret     = "webhooksecret"
	stripeSettingContinueURL       = "continueurl"
	stripeSettingCancelURL         = "cancelurl"
	stripeSettingAuthorizeOnly     = "authorizeonly"
	stripeSettingToleranceSeconds  = "signaturetoleranceseconds"
)

type StripeGateway struct {
	api *apiClient
	now func() time.Time
}

func NewStripeGateway(timeout time.Duration) *StripeGateway {
	return &StripeGateway{
		api: newAPIClient(timeout),
		now: time.Now,
	}
}

func (g *StripeGateway) Code() string {
	return "stripe"
}

func (g *StripeGateway) DefaultSettings() Settings {
	return Settings{
		"mode":                        "test",
		stripeSettingSecretKey:        "",
		stripeSettingWebhookSecret:    "",
		stripeSettingContinueURL:      "",
		stripeSettingCancelURL:        "",
		stripeSettingAuthorizeOnly:    "false",
		stripeSettingToleranceSeconds: strconv.Itoa(stripeDefaultToleranceSeconds),
	}
}

func (g *StripeGateway) Capabilities() CapabilitySet {
	return NewCapabilitySet(CapabilityStatus, CapabilityCapture, CapabilityRefund, CapabilityCancel)
}

func (g *StripeGateway) GeneratePaymentForm(ctx context.Context, order *entity.Order, urls FormURLs, settings Settings) (*PaymentForm, error) {
	secretKey, err := settings.Required(stripeSettingSecretKey)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("mode", "payment")
	values.Set("line_items[0][quantity]", "1")
	values.Set("line_items[0][price_data][currency]", strings.ToLower(order.Currency))
	values.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(minorUnits(order.AmountTotal), 10))
	values.Set("line_items[0][price_data][product_data][name]", "order-"+order.CartNumber)
	values.Set("client_reference_id", order.CartNumber)
	values.Set("metadata[cart_number]", order.CartNumber)
	values.Set("success_url", urls.Continue)
	values.Set("cancel_url", urls.Cancel)
	if settings.Bool(stripeSettingAuthorizeOnly) {
		values.Set("payment_intent_data[capture_method]", "manual")
	}

	body, err := g.api.postForm(ctx, stripeAPIBase+"/v1/checkout/sessions", stripeHeaders(secretKey), values)
	if err != nil {
		return nil, err
	}

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, err
	}
	if strings.TrimSpace(session.URL) == "" {
		return nil, errors.New("stripe checkout session url missing")
	}

	return &PaymentForm{
		Action: strings.TrimSpace(session.URL),
		Method: "GET",
		Fields: map[string]string{},
	}, nil
}

func (g *StripeGateway) ContinueURL(_ *entity.Order, settings Settings) (string, error) {
	return settings.Required(stripeSettingContinueURL)
}

func (g *StripeGateway) CancelURL(_ *entity.Order, settings Settings) (string, error) {
	return settings.Required(stripeSettingCancelURL)
}

func (g *StripeGateway) IdentifyCart(_ context.Context, req *CallbackRequest, settings Settings) (string, error) {
	event, err := g.parseEvent(req, settings)
	if err != nil {
		return "", err
	}
	if cart := strings.TrimSpace(event.Charge.Metadata["cart_number"]); cart != "" {
		return cart, nil
	}
	return "", fmt.Errorf("%w: cart number missing from charge metadata", ErrCallbackIgnored)
}

func (g *StripeGateway) ProcessCallback(_ context.Context, order *entity.Order, req *CallbackRequest, settings Settings) (*types.CallbackInfo, error) {
	event, err := g.parseEvent(req, settings)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(event.Type, "charge.") {
		return nil, fmt.Errorf("%w: event type %s", ErrCallbackIgnored, event.Type)
	}
	if cart := strings.TrimSpace(event.Charge.Metadata["cart_number"]); cart != "" && cart != order.CartNumber {
		return nil, fmt.Errorf("%w: charge belongs to cart %s", ErrCallbackIgnored, cart)
	}

	info := &types.CallbackInfo{
		Amount:        fromMinorUnits(event.Charge.Amount),
		TransactionID: strings.TrimSpace(event.Charge.ID),
		PaymentState:  StripeChargeState(event.Charge.Paid, event.Charge.Captured, event.Charge.Refunded),
		CardType:      strings.TrimSpace(event.Charge.PaymentMethodDetails.Card.Brand),
	}
	if last4 := strings.TrimSpace(event.Charge.PaymentMethodDetails.Card.Last4); last4 != "" {
		info.CardMask = "************" + last4
	}
	return info, nil
}

func (g *StripeGateway) Status(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	secretKey, chargeID, err := g.chargeCallPrereqs(order, settings)
	if err != nil {
		return nil, err
	}

	body, err := g.api.getJSON(ctx, stripeAPIBase+"/v1/charges/"+url.PathEscape(chargeID), stripeHeaders(secretKey))
	if err != nil {
		return nil, err
	}
	return stripeChargeAPIInfo(body)
}

func (g *StripeGateway) Capture(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	secretKey, chargeID, err := g.chargeCallPrereqs(order, settings)
	if err != nil {
		return nil, err
	}

	body, err := g.api.postForm(ctx, stripeAPIBase+"/v1/charges/"+url.PathEscape(chargeID)+"/capture", stripeHeaders(secretKey), url.Values{})
	if err != nil {
		return nil, err
	}
	return stripeChargeAPIInfo(body)
}

func (g *StripeGateway) Refund(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	info, err := g.refundCharge(ctx, order, settings)
	if err != nil {
		return nil, err
	}
	info.PaymentState = types.PaymentStateRefunded
	return info, nil
}

// Cancel releases an uncaptured authorization. Stripe models the release as
// a refund of the uncaptured charge.
func (g *StripeGateway) Cancel(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	info, err := g.refundCharge(ctx, order, settings)
	if err != nil {
		return nil, err
	}
	info.PaymentState = types.PaymentStateCancelled
	return info, nil
}

func (g *StripeGateway) refundCharge(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	secretKey, chargeID, err := g.chargeCallPrereqs(order, settings)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("charge", chargeID)
	if _, err := g.api.postForm(ctx, stripeAPIBase+"/v1/refunds", stripeHeaders(secretKey), values); err != nil {
		return nil, err
	}
	return &types.ApiInfo{TransactionID: chargeID}, nil
}

func (g *StripeGateway) chargeCallPrereqs(order *entity.Order, settings Settings) (string, string, error) {
	secretKey, err := settings.Required(stripeSettingSecretKey)
	if err != nil {
		return "", "", err
	}
	if order.TransactionID == nil || strings.TrimSpace(*order.TransactionID) == "" {
		return "", "", errors.New("order has no stripe charge id")
	}
	return secretKey, strings.TrimSpace(*order.TransactionID), nil
}

type stripeEvent struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Charge struct {
		ID                   string            `json:"id"`
		Amount               int64             `json:"amount"`
		Paid                 bool              `json:"paid"`
		Captured             bool              `json:"captured"`
		Refunded             bool              `json:"refunded"`
		Metadata             map[string]string `json:"metadata"`
		PaymentMethodDetails struct {
			Card struct {
				Brand string `json:"brand"`
				Last4 string `json:"last4"`
			} `json:"card"`
		} `json:"payment_method_details"`
	}
}

func (g *StripeGateway) parseEvent(req *CallbackRequest, settings Settings) (*stripeEvent, error) {
	parsed, err := req.Event(g.Code(), func() (any, error) {
		webhookSecret, err := settings.Required(stripeSettingWebhookSecret)
		if err != nil {
			return nil, err
		}

		tolerance := int64(stripeDefaultToleranceSeconds)
		if raw := settings.Get(stripeSettingToleranceSeconds); raw != "" {
			if n, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil && n > 0 {
				tolerance = n
			}
		}

		if !g.verifySignature(req.Body(), req.Header("Stripe-Signature"), webhookSecret, tolerance) {
			return nil, ErrCallbackUntrusted
		}

		var event struct {
			ID   string `json:"id"`
			Type string `json:"type"`
			Data struct {
				Object json.RawMessage `json:"object"`
			} `json:"data"`
		}
		if err := json.Unmarshal(req.Body(), &event); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCallbackIgnored, err)
		}

		result := &stripeEvent{ID: strings.TrimSpace(event.ID), Type: strings.TrimSpace(event.Type)}
		if len(event.Data.Object) > 0 {
			if err := json.Unmarshal(event.Data.Object, &result.Charge); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCallbackIgnored, err)
			}
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return parsed.(*stripeEvent), nil
}

// verifySignature checks the Stripe-Signature scheme: the header carries a
// timestamp and one or more v1 HMAC-SHA256 hex signatures over
// "<timestamp>.<body>", with a replay-tolerance window on the timestamp.
func (g *StripeGateway) verifySignature(payload []byte, signatureHeader, webhookSecret string, toleranceSeconds int64) bool {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" {
		return false
	}

	var ts string
	v1 := make([]string, 0, 1)
	for _, part := range strings.Split(signatureHeader, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "t=") {
			ts = strings.TrimPrefix(part, "t=")
		}
		if strings.HasPrefix(part, "v1=") {
			v1 = append(v1, strings.TrimPrefix(part, "v1="))
		}
	}
	if ts == "" || len(v1) == 0 {
		return false
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	now := g.now().Unix()
	if now-tsUnix > toleranceSeconds || tsUnix-now > toleranceSeconds {
		return false
	}

	message := []byte(ts + "." + string(payload))
	for _, candidate := range v1 {
		if signing.Verify(signing.HMACSHA256, signing.EncodingHex, []byte(webhookSecret), message, candidate) {
			return true
		}
	}
	return false
}

// StripeChargeState maps the charge flag triple onto the shared lifecycle:
// an unpaid charge has not moved, a paid-uncaptured charge is an
// authorization, and the refunded flag turns either form of success into its
// reversal.
func StripeChargeState(paid, captured, refunded bool) types.PaymentState {
	if !paid {
		return types.PaymentStateInitialized
	}
	if !captured {
		if refunded {
			return types.PaymentStateCancelled
		}
		return types.PaymentStateAuthorized
	}
	if refunded {
		return types.PaymentStateRefunded
	}
	return types.PaymentStateCaptured
}

func stripeChargeAPIInfo(body []byte) (*types.ApiInfo, error) {
	var charge struct {
		ID       string `json:"id"`
		Paid     bool   `json:"paid"`
		Captured bool   `json:"captured"`
		Refunded bool   `json:"refunded"`
	}
	if err := json.Unmarshal(body, &charge); err != nil {
		return nil, err
	}
	return &types.ApiInfo{
		TransactionID: strings.TrimSpace(charge.ID),
		PaymentState:  StripeChargeState(charge.Paid, charge.Captured, charge.Refunded),
	}, nil
}

func stripeHeaders(secretKey string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + secretKey}
}
