package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/signing"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

const (
	onPayWindowURL = "https://onpay.io/window/v3/"

	onPayFieldPrefix = "onpay_"
	onPayHMACField   = "onpay_hmac_sha1"

	onPaySettingGatewayID   = "gatewayid"
	onPaySettingSecret      = "secret"
	onPaySettingContinueURL = "continueurl"
	onPaySettingCancelURL   = "cancelurl"
)

// OnPayGateway integrates the OnPay payment window. Both the outbound form
// and the inbound callback are signed with an HMAC-SHA1 over the sorted,
// lowercased onpay_* fields; there is no synchronous API surface.
type OnPayGateway struct {
	UnsupportedOperations
}

func NewOnPayGateway() *OnPayGateway {
	return &OnPayGateway{}
}

func (g *OnPayGateway) Code() string {
	return "onpay"
}

func (g *OnPayGateway) DefaultSettings() Settings {
	return Settings{
		"mode":                  "test",
		onPaySettingGatewayID:   "",
		onPaySettingSecret:      "",
		onPaySettingContinueURL: "",
		onPaySettingCancelURL:   "",
	}
}

func (g *OnPayGateway) Capabilities() CapabilitySet {
	return NewCapabilitySet()
}

func (g *OnPayGateway) GeneratePaymentForm(_ context.Context, order *entity.Order, urls FormURLs, settings Settings) (*PaymentForm, error) {
	gatewayID, err := settings.Required(onPaySettingGatewayID)
	if err != nil {
		return nil, err
	}
	secret, err := settings.Required(onPaySettingSecret)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{
		"onpay_gatewayid":   gatewayID,
		"onpay_currency":    strings.ToUpper(order.Currency),
		"onpay_amount":      strconv.FormatInt(minorUnits(order.AmountTotal), 10),
		"onpay_reference":   order.CartNumber,
		"onpay_accepturl":   urls.Continue,
		"onpay_declineurl":  urls.Cancel,
		"onpay_callbackurl": urls.Callback,
	}
	if settings.TestMode() {
		fields["onpay_testmode"] = "1"
	}

	mac, err := signing.Sign(signing.HMACSHA1, []byte(secret), signing.SortedByKey(fields, onPayFieldPrefix))
	if err != nil {
		return nil, err
	}
	fields[onPayHMACField] = signing.Encode(signing.EncodingHex, mac)

	return &PaymentForm{
		Action: onPayWindowURL,
		Method: "POST",
		Fields: fields,
	}, nil
}

func (g *OnPayGateway) ContinueURL(_ *entity.Order, settings Settings) (string, error) {
	return settings.Required(onPaySettingContinueURL)
}

func (g *OnPayGateway) CancelURL(_ *entity.Order, settings Settings) (string, error) {
	return settings.Required(onPaySettingCancelURL)
}

func (g *OnPayGateway) IdentifyCart(_ context.Context, req *CallbackRequest, settings Settings) (string, error) {
	event, err := g.parseEvent(req, settings)
	if err != nil {
		return "", err
	}
	return event.reference, nil
}

func (g *OnPayGateway) ProcessCallback(_ context.Context, order *entity.Order, req *CallbackRequest, settings Settings) (*types.CallbackInfo, error) {
	event, err := g.parseEvent(req, settings)
	if err != nil {
		return nil, err
	}
	if event.reference != order.CartNumber {
		return nil, fmt.Errorf("%w: callback is for cart %s", ErrCallbackIgnored, event.reference)
	}
	if event.errorCode != "" && event.errorCode != "0" {
		return nil, fmt.Errorf("%w: onpay error code %s", ErrCallbackIgnored, event.errorCode)
	}

	return &types.CallbackInfo{
		Amount:        fromMinorUnits(event.amount),
		TransactionID: event.transactionID,
		PaymentState:  types.PaymentStateAuthorized,
		CardType:      event.cardType,
	}, nil
}

type onPayCallback struct {
	reference     string
	transactionID string
	amount        int64
	errorCode     string
	cardType      string
}

func (g *OnPayGateway) parseEvent(req *CallbackRequest, settings Settings) (*onPayCallback, error) {
	parsed, err := req.Event(g.Code(), func() (any, error) {
		secret, err := settings.Required(onPaySettingSecret)
		if err != nil {
			return nil, err
		}

		fields := req.Fields()
		candidate := strings.TrimSpace(fields[onPayHMACField])
		delete(fields, onPayHMACField)

		message := signing.SortedByKey(fields, onPayFieldPrefix)
		if !signing.Verify(signing.HMACSHA1, signing.EncodingHex, []byte(secret), message, candidate) {
			return nil, ErrCallbackUntrusted
		}

		amount, _ := strconv.ParseInt(strings.TrimSpace(fields["onpay_amount"]), 10, 64)
		event := &onPayCallback{
			reference:     strings.TrimSpace(fields["onpay_reference"]),
			transactionID: strings.TrimSpace(fields["onpay_number"]),
			amount:        amount,
			errorCode:     strings.TrimSpace(fields["onpay_errorcode"]),
			cardType:      strings.TrimSpace(fields["onpay_cardtype"]),
		}
		if event.transactionID == "" {
			event.transactionID = strings.TrimSpace(fields["onpay_uuid"])
		}
		if event.reference == "" {
			return nil, fmt.Errorf("%w: callback carries no reference", ErrCallbackIgnored)
		}
		return event, nil
	})
	if err != nil {
		return nil, err
	}
	return parsed.(*onPayCallback), nil
}
