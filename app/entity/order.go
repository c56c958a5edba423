package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID uint64

	CartNumber string
	Gateway    string

	AmountTotal decimal.Decimal
	Currency    string

	PaymentState int32

	TransactionID *string
	CardType      *string
	CardMask      *string

	CapturedAmount decimal.Decimal
	RefundedAmount decimal.Decimal

	Properties map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}
