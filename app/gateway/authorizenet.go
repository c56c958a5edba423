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
	authorizeNetAPITest  = "https://apitest.authorize.net/xml/v1/request.api"
	authorizeNetAPILive  = "https://api.authorize.net/xml/v1/request.api"
	authorizeNetPageTest = "https://test.authorize.net/payment/payment"
	authorizeNetPageLive = "https://accept.authorize.net/payment/payment"

	authorizeNetSignatureHeader = "X-ANET-Signature"
	authorizeNetSignaturePrefix = "sha512="

	anetSettingAPILoginID     = "apiloginid"
	anetSettingTransactionKey = "transactionkey"
	anetSettingSignatureKey   = "signaturekey"
	anetSettingContinueURL    = "continueurl"
	anetSettingCancelURL      = "cancelurl"
	anetSettingAuthorizeOnly  = "authorizeonly"

	// Keys carrying this prefix are passed through to the hosted payment
	// page as JSON setting blobs, e.g. hosted_hostedPaymentButtonOptions.
	anetHostedSettingPrefix = "hosted_"
)

type AuthorizeNetGateway struct {
	api *apiClient
}

func NewAuthorizeNetGateway(timeout time.Duration) *AuthorizeNetGateway {
	return &AuthorizeNetGateway{api: newAPIClient(timeout)}
}

func (g *AuthorizeNetGateway) Code() string {
	return "authorizenet"
}

func (g *AuthorizeNetGateway) DefaultSettings() Settings {
	return Settings{
		"mode":                    "test",
		anetSettingAPILoginID:     "",
		anetSettingTransactionKey: "",
		anetSettingSignatureKey:   "",
		anetSettingContinueURL:    "",
		anetSettingCancelURL:      "",
		anetSettingAuthorizeOnly:  "false",
	}
}

func (g *AuthorizeNetGateway) Capabilities() CapabilitySet {
	return NewCapabilitySet(CapabilityStatus, CapabilityCapture, CapabilityRefund, CapabilityCancel)
}

func (g *AuthorizeNetGateway) GeneratePaymentForm(ctx context.Context, order *entity.Order, urls FormURLs, settings Settings) (*PaymentForm, error) {
	auth, err := anetAuthentication(settings)
	if err != nil {
		return nil, err
	}

	transactionType := "authCaptureTransaction"
	if settings.Bool(anetSettingAuthorizeOnly) {
		transactionType = "authOnlyTransaction"
	}

	hostedSettings := []map[string]string{
		{
			"settingName":  "hostedPaymentReturnOptions",
			"settingValue": fmt.Sprintf(`{"showReceipt":true,"url":%q,"cancelUrl":%q}`, urls.Continue, urls.Cancel),
		},
	}
	if extra, err := settings.OptionGroup(anetHostedSettingPrefix); err == nil && extra != nil {
		var blobs map[string]string
		if json.Unmarshal(extra, &blobs) == nil {
			for name, value := range blobs {
				hostedSettings = append(hostedSettings, map[string]string{
					"settingName":  name,
					"settingValue": value,
				})
			}
		}
	}

	payload := map[string]any{
		"getHostedPaymentPageRequest": map[string]any{
			"merchantAuthentication": auth,
			"transactionRequest": map[string]any{
				"transactionType": transactionType,
				"amount":          order.AmountTotal.StringFixed(2),
				"order": map[string]string{
					"invoiceNumber": order.CartNumber,
				},
			},
			"hostedPaymentSettings": map[string]any{
				"setting": hostedSettings,
			},
		},
	}

	body, err := g.api.postJSON(ctx, anetEndpoint(settings), nil, payload)
	if err != nil {
		return nil, err
	}

	var response struct {
		Token    string          `json:"token"`
		Messages anetMessageList `json:"messages"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	if err := response.Messages.err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(response.Token) == "" {
		return nil, errors.New("authorize.net hosted payment token missing")
	}

	action := authorizeNetPageTest
	if !settings.TestMode() {
		action = authorizeNetPageLive
	}
	return &PaymentForm{
		Action: action,
		Method: "POST",
		Fields: map[string]string{"token": strings.TrimSpace(response.Token)},
	}, nil
}

func (g *AuthorizeNetGateway) ContinueURL(_ *entity.Order, settings Settings) (string, error) {
	return settings.Required(anetSettingContinueURL)
}

func (g *AuthorizeNetGateway) CancelURL(_ *entity.Order, settings Settings) (string, error) {
	return settings.Required(anetSettingCancelURL)
}

// IdentifyCart must partially process the webhook: the notification body
// carries only the gateway transaction id, so finding the merchant cart means
// verifying the event and then asking the API for the transaction's invoice
// number. The event cache keeps ProcessCallback from re-verifying.
func (g *AuthorizeNetGateway) IdentifyCart(ctx context.Context, req *CallbackRequest, settings Settings) (string, error) {
	event, err := g.parseEvent(req, settings)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(event.Payload.ID) == "" {
		return "", fmt.Errorf("%w: notification has no transaction id", ErrCallbackIgnored)
	}

	details, err := g.transactionDetails(ctx, settings, event.Payload.ID)
	if err != nil {
		return "", err
	}
	cart := strings.TrimSpace(details.Transaction.Order.InvoiceNumber)
	if cart == "" {
		return "", fmt.Errorf("%w: transaction %s has no invoice number", ErrCallbackIgnored, event.Payload.ID)
	}
	return cart, nil
}

func (g *AuthorizeNetGateway) ProcessCallback(_ context.Context, _ *entity.Order, req *CallbackRequest, settings Settings) (*types.CallbackInfo, error) {
	event, err := g.parseEvent(req, settings)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(event.Payload.EntityName, "transaction") {
		return nil, fmt.Errorf("%w: entity %s", ErrCallbackIgnored, event.Payload.EntityName)
	}
	if event.Payload.ResponseCode != 1 {
		return nil, fmt.Errorf("%w: response code %d", ErrCallbackIgnored, event.Payload.ResponseCode)
	}

	state := AuthorizeNetEventState(event.EventType)
	if state == types.PaymentStateInitialized {
		return nil, fmt.Errorf("%w: event type %s", ErrCallbackIgnored, event.EventType)
	}

	return &types.CallbackInfo{
		Amount:        decimal.NewFromFloat(event.Payload.AuthAmount),
		TransactionID: strings.TrimSpace(event.Payload.ID),
		PaymentState:  state,
	}, nil
}

func (g *AuthorizeNetGateway) Status(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	transactionID, err := orderTransactionID(order)
	if err != nil {
		return nil, err
	}

	details, err := g.transactionDetails(ctx, settings, transactionID)
	if err != nil {
		return nil, err
	}
	return &types.ApiInfo{
		TransactionID: transactionID,
		PaymentState:  AuthorizeNetTransactionState(details.Transaction.TransactionStatus),
	}, nil
}

func (g *AuthorizeNetGateway) Capture(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	transactionID, err := orderTransactionID(order)
	if err != nil {
		return nil, err
	}

	request := map[string]any{
		"transactionType": "priorAuthCaptureTransaction",
		"amount":          order.AmountTotal.StringFixed(2),
		"refTransId":      transactionID,
	}
	if err := g.createTransaction(ctx, settings, request); err != nil {
		return nil, err
	}
	return &types.ApiInfo{TransactionID: transactionID, PaymentState: types.PaymentStateCaptured}, nil
}

func (g *AuthorizeNetGateway) Refund(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	transactionID, err := orderTransactionID(order)
	if err != nil {
		return nil, err
	}
	if order.CardMask == nil || strings.TrimSpace(*order.CardMask) == "" {
		return nil, errors.New("refund requires the order's card mask")
	}

	request := map[string]any{
		"transactionType": "refundTransaction",
		"amount":          order.AmountTotal.StringFixed(2),
		"payment": map[string]any{
			"creditCard": map[string]string{
				"cardNumber":     cardMaskLast4(*order.CardMask),
				"expirationDate": "XXXX",
			},
		},
		"refTransId": transactionID,
	}
	if err := g.createTransaction(ctx, settings, request); err != nil {
		return nil, err
	}
	return &types.ApiInfo{TransactionID: transactionID, PaymentState: types.PaymentStateRefunded}, nil
}

func (g *AuthorizeNetGateway) Cancel(ctx context.Context, order *entity.Order, settings Settings) (*types.ApiInfo, error) {
	transactionID, err := orderTransactionID(order)
	if err != nil {
		return nil, err
	}

	request := map[string]any{
		"transactionType": "voidTransaction",
		"refTransId":      transactionID,
	}
	if err := g.createTransaction(ctx, settings, request); err != nil {
		return nil, err
	}
	return &types.ApiInfo{TransactionID: transactionID, PaymentState: types.PaymentStateCancelled}, nil
}

type anetWebhookEvent struct {
	NotificationID string `json:"notificationId"`
	EventType      string `json:"eventType"`
	Payload        struct {
		ID           string  `json:"id"`
		EntityName   string  `json:"entityName"`
		ResponseCode int     `json:"responseCode"`
		AuthAmount   float64 `json:"authAmount"`
	} `json:"payload"`
}

func (g *AuthorizeNetGateway) parseEvent(req *CallbackRequest, settings Settings) (*anetWebhookEvent, error) {
	parsed, err := req.Event(g.Code(), func() (any, error) {
		signatureKey, err := settings.Required(anetSettingSignatureKey)
		if err != nil {
			return nil, err
		}

		header := req.Header(authorizeNetSignatureHeader)
		if !strings.HasPrefix(strings.ToLower(header), authorizeNetSignaturePrefix) {
			return nil, ErrCallbackUntrusted
		}
		candidate := header[len(authorizeNetSignaturePrefix):]
		if !signing.Verify(signing.HMACSHA512, signing.EncodingHex, []byte(signatureKey), req.Body(), candidate) {
			return nil, ErrCallbackUntrusted
		}

		var event anetWebhookEvent
		if err := json.Unmarshal(req.Body(), &event); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCallbackIgnored, err)
		}
		return &event, nil
	})
	if err != nil {
		return nil, err
	}
	return parsed.(*anetWebhookEvent), nil
}

type anetTransactionDetails struct {
	Transaction struct {
		TransID           string `json:"transId"`
		TransactionStatus string `json:"transactionStatus"`
		Order             struct {
			InvoiceNumber string `json:"invoiceNumber"`
		} `json:"order"`
	} `json:"transaction"`
	Messages anetMessageList `json:"messages"`
}

func (g *AuthorizeNetGateway) transactionDetails(ctx context.Context, settings Settings, transactionID string) (*anetTransactionDetails, error) {
	auth, err := anetAuthentication(settings)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"getTransactionDetailsRequest": map[string]any{
			"merchantAuthentication": auth,
			"transId":                transactionID,
		},
	}
	body, err := g.api.postJSON(ctx, anetEndpoint(settings), nil, payload)
	if err != nil {
		return nil, err
	}

	var details anetTransactionDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, err
	}
	if err := details.Messages.err(); err != nil {
		return nil, err
	}
	return &details, nil
}

func (g *AuthorizeNetGateway) createTransaction(ctx context.Context, settings Settings, transactionRequest map[string]any) error {
	auth, err := anetAuthentication(settings)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"createTransactionRequest": map[string]any{
			"merchantAuthentication": auth,
			"transactionRequest":     transactionRequest,
		},
	}
	body, err := g.api.postJSON(ctx, anetEndpoint(settings), nil, payload)
	if err != nil {
		return err
	}

	var response struct {
		TransactionResponse struct {
			ResponseCode string `json:"responseCode"`
		} `json:"transactionResponse"`
		Messages anetMessageList `json:"messages"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return err
	}
	if err := response.Messages.err(); err != nil {
		return err
	}
	if response.TransactionResponse.ResponseCode != "1" {
		return fmt.Errorf("authorize.net transaction declined: code=%s", response.TransactionResponse.ResponseCode)
	}
	return nil
}

type anetMessageList struct {
	ResultCode string `json:"resultCode"`
	Message    []struct {
		Code string `json:"code"`
		Text string `json:"text"`
	} `json:"message"`
}

func (m anetMessageList) err() error {
	if strings.EqualFold(m.ResultCode, "ok") || m.ResultCode == "" {
		return nil
	}
	if len(m.Message) > 0 {
		return fmt.Errorf("authorize.net error: code=%s text=%s", m.Message[0].Code, m.Message[0].Text)
	}
	return fmt.Errorf("authorize.net error: result=%s", m.ResultCode)
}

func anetAuthentication(settings Settings) (map[string]string, error) {
	loginID, err := settings.Required(anetSettingAPILoginID)
	if err != nil {
		return nil, err
	}
	transactionKey, err := settings.Required(anetSettingTransactionKey)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"name":           loginID,
		"transactionKey": transactionKey,
	}, nil
}

func anetEndpoint(settings Settings) string {
	if settings.TestMode() {
		return authorizeNetAPITest
	}
	return authorizeNetAPILive
}

// AuthorizeNetEventState maps webhook event types by lifecycle substring,
// e.g. net.authorize.payment.authcapture.created.
func AuthorizeNetEventState(eventType string) types.PaymentState {
	eventType = strings.ToLower(eventType)
	switch {
	case strings.Contains(eventType, ".authcapture."),
		strings.Contains(eventType, ".priorauthcapture."),
		strings.Contains(eventType, ".capture."):
		return types.PaymentStateCaptured
	case strings.Contains(eventType, ".authorization."):
		return types.PaymentStateAuthorized
	case strings.Contains(eventType, ".refund."):
		return types.PaymentStateRefunded
	case strings.Contains(eventType, ".void."):
		return types.PaymentStateCancelled
	default:
		return types.PaymentStateInitialized
	}
}

// AuthorizeNetTransactionState maps getTransactionDetails status strings.
func AuthorizeNetTransactionState(status string) types.PaymentState {
	switch strings.TrimSpace(status) {
	case "authorizedPendingCapture":
		return types.PaymentStateAuthorized
	case "capturedPendingSettlement", "settledSuccessfully":
		return types.PaymentStateCaptured
	case "voided":
		return types.PaymentStateCancelled
	case "refundSettledSuccessfully", "refundPendingSettlement":
		return types.PaymentStateRefunded
	default:
		return types.PaymentStateInitialized
	}
}

func orderTransactionID(order *entity.Order) (string, error) {
	if order.TransactionID == nil || strings.TrimSpace(*order.TransactionID) == "" {
		return "", errors.New("order has no gateway transaction id")
	}
	return strings.TrimSpace(*order.TransactionID), nil
}

func cardMaskLast4(mask string) string {
	mask = strings.TrimSpace(mask)
	if len(mask) <= 4 {
		return mask
	}
	return mask[len(mask)-4:]
}
