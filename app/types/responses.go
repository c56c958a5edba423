package types

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Order struct {
	ID             uint64            `json:"id"`
	CartNumber     string            `json:"cart_number"`
	Gateway        string            `json:"gateway"`
	AmountTotal    string            `json:"amount_total"`
	Currency       string            `json:"currency"`
	PaymentState   string            `json:"payment_state"`
	TransactionID  string            `json:"transaction_id,omitempty"`
	CardType       string            `json:"card_type,omitempty"`
	CardMask       string            `json:"card_mask,omitempty"`
	CapturedAmount string            `json:"captured_amount"`
	RefundedAmount string            `json:"refunded_amount"`
	Properties     map[string]string `json:"properties,omitempty"`
	CreatedAt      string            `json:"created_at"`
	UpdatedAt      string            `json:"updated_at"`
}

type OrderEnvelopeResponse struct {
	Order *Order `json:"order"`
}

type ListOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

type PaymentFormResponse struct {
	Order  *Order            `json:"order"`
	Action string            `json:"action"`
	Method string            `json:"method"`
	Fields map[string]string `json:"fields"`
	HTML   string            `json:"html"`
}

type OrderOperationResponse struct {
	Order   *Order           `json:"order"`
	ApiInfo *ApiInfoResponse `json:"api_info"`
}

type ApiInfoResponse struct {
	TransactionID string `json:"transaction_id"`
	PaymentState  string `json:"payment_state"`
}

type GatewayDescriptor struct {
	Code         string   `json:"code"`
	Capabilities []string `json:"capabilities"`
}

type ListGatewaysResponse struct {
	Gateways []*GatewayDescriptor `json:"gateways"`
}
