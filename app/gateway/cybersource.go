package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-gateways/app/entity"
	"github.com/vibast-solutions/ms-go-gateways/app/signing"
	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

const (
	cyberSourcePayTest = "https://testsecureacceptance.cybersource.com/pay"
	cyberSourcePayLive = "https://secureacceptance.cybersource.com/pay"

	cyberSourceSettingAccessKey     = "accesskey"
	cyberSourceSettingProfileID     = "profileid"
	cyberSourceSettingSecretKey     = "secretkey"
	cyberSourceSettingContinueURL   = "continueurl"
	cyberSourceSettingCancelURL     = "cancelurl"
	cyberSourceSettingAuthorizeOnly = "authorizeonly"
)

// CyberSourceGateway implements the Secure Acceptance hosted checkout. The
// gateway dictates field order through signed_field_names on both legs, so
// canonicalization uses the explicit-order policy with the comma-joined
// key=value convention Secure Acceptance signs.
type CyberSourceGateway struct {
	UnsupportedOperations
	now     func() time.Time
	newUUID func() string
}

func NewCyberSourceGateway() *CyberSourceGateway {
	return &CyberSourceGateway{
		now:     time.Now,
		newUUID: uuid.NewString,
	}
}

func (g *CyberSourceGateway) Code() string {
	return "cybersource"
}

func (g *CyberSourceGateway) DefaultSettings() Settings {
	return Settings{
		"mode":                          "test",
		cyberSourceSettingAccessKey:     "",
		cyberSourceSettingProfileID:     "",
		cyberSourceSettingSecretKey:     "",
		cyberSourceSettingContinueURL:   "",
		cyberSourceSettingCancelURL:     "",
		cyberSourceSettingAuthorizeOnly: "false",
	}
}

func (g *CyberSourceGateway) Capabilities() CapabilitySet {
	return NewCapabilitySet()
}

func (g *CyberSourceGateway) GeneratePaymentForm(_ context.Context, order *entity.Order, urls FormURLs, settings Settings) (*PaymentForm, error) {
	accessKey, err := settings.Required(cyberSourceSettingAccessKey)
	if err != nil {
		return nil, err
	}
	profileID, err := settings.Required(cyberSourceSettingProfileID)
	if err != nil {
		return nil, err
	}
	secretKey, err := settings.Required(cyberSourceSettingSecretKey)
	if err != nil {
		return nil, err
	}

	transactionType := "sale"
	if settings.Bool(cyberSourceSettingAuthorizeOnly) {
		transactionType = "authorization"
	}

	signedNames := []string{
		"access_key", "profile_id", "transaction_uuid", "signed_field_names",
		"unsigned_field_names", "signed_date_time", "locale", "transaction_type",
		"reference_number", "amount", "currency",
		"override_custom_receipt_page", "override_custom_cancel_page",
	}
	fields := map[string]string{
		"access_key":                   accessKey,
		"profile_id":                   profileID,
		"transaction_uuid":             g.newUUID(),
		"signed_field_names":           strings.Join(signedNames, ","),
		"unsigned_field_names":         "",
		"signed_date_time":             g.now().UTC().Format("2006-01-02T15:04:05Z"),
		"locale":                       "en",
		"transaction_type":             transactionType,
		"reference_number":             order.CartNumber,
		"amount":                       order.AmountTotal.StringFixed(2),
		"currency":                     strings.ToLower(order.Currency),
		"override_custom_receipt_page": urls.Continue,
		"override_custom_cancel_page":  urls.Cancel,
	}

	message, err := signing.ExplicitOrder(fields, signedNames, ",")
	if err != nil {
		return nil, err
	}
	mac, err := signing.Sign(signing.HMACSHA256, []byte(secretKey), message)
	if err != nil {
		return nil, err
	}
	fields["signature"] = signing.Encode(signing.EncodingBase64, mac)

	action := cyberSourcePayTest
	if !settings.TestMode() {
		action = cyberSourcePayLive
	}
	return &PaymentForm{
		Action: action,
		Method: "POST",
		Fields: fields,
	}, nil
}

func (g *CyberSourceGateway) ContinueURL(_ *entity.Order, settings Settings) (string, error) {
	return settings.Required(cyberSourceSettingContinueURL)
}

func (g *CyberSourceGateway) CancelURL(_ *entity.Order, settings Settings) (string, error) {
	return settings.Required(cyberSourceSettingCancelURL)
}

func (g *CyberSourceGateway) IdentifyCart(_ context.Context, req *CallbackRequest, settings Settings) (string, error) {
	event, err := g.parseEvent(req, settings)
	if err != nil {
		return "", err
	}
	return event.referenceNumber, nil
}

func (g *CyberSourceGateway) ProcessCallback(_ context.Context, order *entity.Order, req *CallbackRequest, settings Settings) (*types.CallbackInfo, error) {
	event, err := g.parseEvent(req, settings)
	if err != nil {
		return nil, err
	}
	if event.referenceNumber != order.CartNumber {
		return nil, fmt.Errorf("%w: post-back is for reference %s", ErrCallbackIgnored, event.referenceNumber)
	}

	state := CyberSourceDecisionState(event.decision, event.transactionType)
	if state == types.PaymentStateInitialized {
		return nil, fmt.Errorf("%w: decision %s", ErrCallbackIgnored, event.decision)
	}

	return &types.CallbackInfo{
		Amount:        event.amount,
		TransactionID: event.transactionID,
		PaymentState:  state,
		CardType:      cyberSourceCardTypeName(event.cardType),
		CardMask:      event.cardNumber,
	}, nil
}

type cyberSourceCallback struct {
	decision        string
	transactionType string
	referenceNumber string
	transactionID   string
	amount          decimal.Decimal
	cardType        string
	cardNumber      string
}

func (g *CyberSourceGateway) parseEvent(req *CallbackRequest, settings Settings) (*cyberSourceCallback, error) {
	parsed, err := req.Event(g.Code(), func() (any, error) {
		secretKey, err := settings.Required(cyberSourceSettingSecretKey)
		if err != nil {
			return nil, err
		}

		fields := req.Fields()
		candidate := strings.TrimSpace(fields["signature"])
		signedNames := strings.Split(strings.TrimSpace(fields["signed_field_names"]), ",")
		if len(signedNames) == 0 || signedNames[0] == "" {
			return nil, ErrCallbackUntrusted
		}

		message, err := signing.ExplicitOrder(fields, signedNames, ",")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCallbackUntrusted, err)
		}
		if !signing.Verify(signing.HMACSHA256, signing.EncodingBase64, []byte(secretKey), message, candidate) {
			return nil, ErrCallbackUntrusted
		}

		amountRaw := strings.TrimSpace(fields["auth_amount"])
		if amountRaw == "" {
			amountRaw = strings.TrimSpace(fields["req_amount"])
		}
		amount, _ := decimal.NewFromString(amountRaw)

		return &cyberSourceCallback{
			decision:        strings.ToUpper(strings.TrimSpace(fields["decision"])),
			transactionType: strings.TrimSpace(fields["req_transaction_type"]),
			referenceNumber: strings.TrimSpace(fields["req_reference_number"]),
			transactionID:   strings.TrimSpace(fields["transaction_id"]),
			amount:          amount,
			cardType:        strings.TrimSpace(fields["req_card_type"]),
			cardNumber:      strings.TrimSpace(fields["req_card_number"]),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return parsed.(*cyberSourceCallback), nil
}

// CyberSourceDecisionState maps the Secure Acceptance decision vocabulary.
// DECLINE deliberately maps to Initialized: a declined attempt leaves the
// order free for the customer to retry.
func CyberSourceDecisionState(decision, transactionType string) types.PaymentState {
	switch strings.ToUpper(strings.TrimSpace(decision)) {
	case "ACCEPT":
		if strings.EqualFold(strings.TrimSpace(transactionType), "authorization") {
			return types.PaymentStateAuthorized
		}
		return types.PaymentStateCaptured
	case "REVIEW":
		return types.PaymentStatePendingExternalSystem
	case "CANCEL":
		return types.PaymentStateCancelled
	default:
		return types.PaymentStateInitialized
	}
}

func cyberSourceCardTypeName(code string) string {
	switch strings.TrimSpace(code) {
	case "001":
		return "Visa"
	case "002":
		return "Mastercard"
	case "003":
		return "American Express"
	case "004":
		return "Discover"
	default:
		return strings.TrimSpace(code)
	}
}
