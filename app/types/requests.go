package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type StartPaymentRequest struct {
	Gateway          string            `json:"gateway"`
	CartNumber       string            `json:"cart_number"`
	Amount           string            `json:"amount"`
	Currency         string            `json:"currency"`
	ContinueURL      string            `json:"continue_url"`
	CancelURL        string            `json:"cancel_url"`
	CallbackURL      string            `json:"callback_url"`
	CommunicationURL string            `json:"communication_url"`
	Properties       map[string]string `json:"properties"`
	Settings         map[string]string `json:"settings"`
}

func NewStartPaymentRequestFromContext(ctx echo.Context) (*StartPaymentRequest, error) {
	var body StartPaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Gateway = strings.ToLower(strings.TrimSpace(ctx.Param("gateway")))
	body.CartNumber = strings.TrimSpace(body.CartNumber)
	body.Amount = strings.TrimSpace(body.Amount)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.ContinueURL = strings.TrimSpace(body.ContinueURL)
	body.CancelURL = strings.TrimSpace(body.CancelURL)
	body.CallbackURL = strings.TrimSpace(body.CallbackURL)
	body.CommunicationURL = strings.TrimSpace(body.CommunicationURL)

	return &body, nil
}

func (r *StartPaymentRequest) Validate() error {
	if r.Gateway == "" {
		return errors.New("gateway is required")
	}
	if r.CartNumber == "" {
		return errors.New("cart_number is required")
	}
	amount, err := r.DecimalAmount()
	if err != nil {
		return errors.New("amount must be a decimal number")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be > 0")
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	if r.ContinueURL == "" {
		return errors.New("continue_url is required")
	}
	if r.CancelURL == "" {
		return errors.New("cancel_url is required")
	}
	if r.CallbackURL == "" {
		return errors.New("callback_url is required")
	}
	return nil
}

func (r *StartPaymentRequest) DecimalAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(r.Amount)
}

type OrderOperationRequest struct {
	CartNumber string
}

func NewOrderOperationRequestFromContext(ctx echo.Context) (*OrderOperationRequest, error) {
	cart := strings.TrimSpace(ctx.Param("cart"))
	if cart == "" {
		return nil, errors.New("cart number is required")
	}
	return &OrderOperationRequest{CartNumber: cart}, nil
}

type ListOrdersRequest struct {
	Gateway      string
	HasState     bool
	PaymentState PaymentState
	Limit        int32
	Offset       int32
}

func NewListOrdersRequestFromContext(ctx echo.Context) (*ListOrdersRequest, error) {
	req := &ListOrdersRequest{
		Gateway: strings.ToLower(strings.TrimSpace(ctx.QueryParam("gateway"))),
		Limit:   100,
		Offset:  0,
	}

	stateRaw := strings.TrimSpace(ctx.QueryParam("state"))
	if stateRaw != "" {
		state, err := strconv.ParseInt(stateRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.HasState = true
		req.PaymentState = PaymentState(state)
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}
	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListOrdersRequest) Validate() error {
	if r.Limit <= 0 || r.Limit > 500 {
		return errors.New("limit must be between 1 and 500")
	}
	if r.Offset < 0 {
		return errors.New("offset must be >= 0")
	}
	if r.HasState && !IsValidPaymentState(r.PaymentState) {
		return errors.New("invalid state")
	}
	return nil
}
