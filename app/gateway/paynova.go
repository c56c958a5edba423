package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/signing"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

const (
	paynovaAPITest = "https://testapi.paynova.com/api"
	paynovaAPILive = "https://api.paynova.com/api"

	paynovaSettingMerchantID  = "merchantid"
	paynovaSettingPassword    = "password"
	paynovaSettingSecret      = "secret"
	paynovaSettingContinueURL = "continueurl"
	paynovaSettingCancelURL   = "cancelurl"

	paynovaDigestField = "DIGEST"
)

// paynovaDigestOrder is the exact field order Paynova signs its post-back
// with; the digest does not survive reordering.
var paynovaDigestOrder = []string{
	"ORDER_NUMBER",
	"PAYMENT_1_STATUS",
	"PAYMENT_1_AMOUNT",
	"PAYMENT_1_TRANSACTION_ID",
}

type PaynovaGateway struct {
	api *apiClient
}

func NewPaynovaGateway(timeout time.Duration) *PaynovaGateway {
	return &PaynovaGateway{api: newAPIClient(timeout)}
}

func (g *PaynovaGateway) Code() string {
	return "paynova"
}

func (g *PaynovaGateway) DefaultSettings() Settings {
	return Settings{
		"mode":                    "test",
		paynovaSettingMerchantID:  "",
		paynovaSettingPassword:    "",
		paynovaSettingSecret:      "",
		paynovaSettingContinueURL: "",
		paynovaSettingCancelURL:   "",
	}
}

func (g *PaynovaGateway) Capabilities() CapabilitySet {
	return NewCapabilitySet(CapabilityCapture, CapabilityRefund)
}

func (g *PaynovaGateway) GeneratePaymentForm(ctx context.Context, order *entity.Order, urls FormURLs, settings Settings) (*PaymentForm, error) {
	merchantID, err := settings.Required(paynovaSettingMerchantID)
	if err != nil {
		return nil, err
	}
	password, err := settings.Required(paynovaSettingPassword)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"orderNumber":  order.CartNumber,
		"currencyCode": strings.ToUpper(order.Currency),
		"totalAmount":  order.AmountTotal.StringFixed(2),
		"checkout": map[string]string{
			"urlRedirectSuccess": urls.Continue,
			"urlRedirectCancel":  urls.Cancel,
			"urlCallback":        urls.Callback,
		},
	}

	headers := map[string]string{"Authorization": basicAuth(merchantID, password)}
	body, err := g.api.postJSON(ctx, g.endpoint(settings)+"/orders/create", headers, payload)
	if err != nil {
		return nil, err
	}

	var response struct {
		OrderID string `json:"orderId"`
		URL     string `json:"url"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	if strings.TrimSpace(response.URL) == "" {
		return nil, errors.New("paynova checkout url missing")
	}

	return &PaymentForm{
		Action: strings.TrimSpace(response.URL),
		Method: "GET",
		Fields: map[string]string{},
	}, nil
}

func (g *PaynovaGateway) ContinueURL(_ *entity.Order, settings Settings) (string, error) {
	return settings.Required(paynovaSettingContinueURL)
}

func (g *PaynovaGateway) CancelURL(_ *entity.Order, settings Settings) (string, error) {
	return settings.Required(paynovaSettingCancelURL)
}

func (g *PaynovaGateway) IdentifyCart(_ context.Context, req *CallbackRequest, settings Settings) (string, error) {
	event, err := g.parseEvent(req, settings)
	if err != nil {
		return "", err
	}
	return event.orderNumber, nil
}

func (g *PaynovaGateway) ProcessCallback(_ context.Context, order *entity.Order, req *CallbackRequest, settings Settings) (*types.CallbackInfo, error) {
	event, err := g.parseEvent(req, settings)
	if err != nil {
		return nil, err
	}
	if event.orderNumber != order.CartNumber {
		return nil, fmt.Errorf("%w: post-back is for order %s", ErrCallbackIgnored, event.orderNumber)
	}

	state := PaynovaStatusState(event.status)
	if state == types.PaymentStateInitialized {
		return nil, fmt.Errorf("%w: status %s", ErrCallbackIgnored, event.status)
	}

	return &types.CallbackInfo{
		Amount:        event.amount,
		TransactionID: event.transactionID,
		PaymentState:  state,
		CardType:      event.cardType,
	}, nil
}

func (g *PaynovaGateway) Status(context.Context, *entity.Order, Settings) (*types.ApiInfo, error) {
	return nil, ErrOperationNotSupported
}

func (g *PaynovaGateway) Capture(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	return g.transactionCall(ctx, order, settings, "finalize", types.PaymentStateCaptured)
}

func (g *PaynovaGateway) Refund(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	return g.transactionCall(ctx, order, settings, "refund", types.PaymentStateRefunded)
}

func (g *PaynovaGateway) Cancel(context.Context, *entity.Order, Settings) (*types.ApiInfo, error) {
	return nil, ErrOperationNotSupported
}

func (g *PaynovaGateway) transactionCall(ctx context.Context, order *entity.Order, settings Settings, operation string, resulting types.PaymentState) (*types.ApiInfo, error) {
	merchantID, err := settings.Required(paynovaSettingMerchantID)
	if err != nil {
		return nil, err
	}
	password, err := settings.Required(paynovaSettingPassword)
	if err != nil {
		return nil, err
	}
	transactionID, err := orderTransactionID(order)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"totalAmount": order.AmountTotal.StringFixed(2),
	}
	headers := map[string]string{"Authorization": basicAuth(merchantID, password)}
	url := fmt.Sprintf("%s/transactions/%s/%s", g.endpoint(settings), transactionID, operation)
	if _, err := g.api.postJSON(ctx, url, headers, payload); err != nil {
		return nil, err
	}

	return &types.ApiInfo{TransactionID: transactionID, PaymentState: resulting}, nil
}

type paynovaCallback struct {
	orderNumber   string
	status        string
	amount        decimal.Decimal
	transactionID string
	cardType      string
}

func (g *PaynovaGateway) parseEvent(req *CallbackRequest, settings Settings) (*paynovaCallback, error) {
	parsed, err := req.Event(g.Code(), func() (any, error) {
		secret, err := settings.Required(paynovaSettingSecret)
		if err != nil {
			return nil, err
		}

		fields := req.Fields()
		candidate := strings.TrimSpace(fields[paynovaDigestField])

		message, err := signing.ExplicitOrder(fields, paynovaDigestOrder, ",")
		if err != nil {
			// A post-back missing a signed field cannot be trusted.
			return nil, fmt.Errorf("%w: %v", ErrCallbackUntrusted, err)
		}
		if !signing.Verify(signing.HMACSHA1, signing.EncodingHex, []byte(secret), message, candidate) {
			return nil, ErrCallbackUntrusted
		}

		amountRaw := strings.ReplaceAll(strings.TrimSpace(fields["PAYMENT_1_AMOUNT"]), ",", ".")
		amount, err := decimal.NewFromString(amountRaw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad amount %q", ErrCallbackIgnored, amountRaw)
		}

		return &paynovaCallback{
			orderNumber:   strings.TrimSpace(fields["ORDER_NUMBER"]),
			status:        strings.TrimSpace(fields["PAYMENT_1_STATUS"]),
			amount:        amount,
			transactionID: strings.TrimSpace(fields["PAYMENT_1_TRANSACTION_ID"]),
			cardType:      strings.TrimSpace(fields["PAYMENT_1_CARD_TYPE"]),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return parsed.(*paynovaCallback), nil
}

func (g *PaynovaGateway) endpoint(settings Settings) string {
	if settings.TestMode() {
		return paynovaAPITest
	}
	return paynovaAPILive
}

// PaynovaStatusState maps Paynova payment statuses onto the shared lifecycle.
func PaynovaStatusState(status string) types.PaymentState {
	switch strings.TrimSpace(status) {
	case "Pending":
		return types.PaymentStatePendingExternalSystem
	case "Completed", "PartiallyCompleted":
		return types.PaymentStateCaptured
	case "Authorized":
		return types.PaymentStateAuthorized
	default:
		return types.PaymentStateInitialized
	}
}
