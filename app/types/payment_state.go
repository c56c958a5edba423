package types

import "github.com/shopspring/decimal"

// PaymentState is the shared payment lifecycle every gateway vocabulary is
// normalized onto.
type PaymentState int32

const (
	PaymentStateInitialized           PaymentState = 0
	PaymentStatePendingExternalSystem PaymentState = 5
	PaymentStateAuthorized            PaymentState = 10
	PaymentStateCaptured              PaymentState = 20
	PaymentStateRefunded              PaymentState = 30
	PaymentStateCancelled             PaymentState = 40
)

func (s PaymentState) String() string {
	switch s {
	case PaymentStateInitialized:
		return "initialized"
	case PaymentStatePendingExternalSystem:
		return "pending_external_system"
	case PaymentStateAuthorized:
		return "authorized"
	case PaymentStateCaptured:
		return "captured"
	case PaymentStateRefunded:
		return "refunded"
	case PaymentStateCancelled:
		return "cancelled"
	default:
		return "initialized"
	}
}

func IsValidPaymentState(s PaymentState) bool {
	switch s {
	case PaymentStateInitialized,
		PaymentStatePendingExternalSystem,
		PaymentStateAuthorized,
		PaymentStateCaptured,
		PaymentStateRefunded,
		PaymentStateCancelled:
		return true
	default:
		return false
	}
}

// Rank orders states along the lifecycle so a verified callback can be
// refused when it would move an order backward. Refunded and Cancelled are
// terminal peers.
func (s PaymentState) Rank() int {
	switch s {
	case PaymentStateInitialized:
		return 0
	case PaymentStatePendingExternalSystem:
		return 1
	case PaymentStateAuthorized:
		return 2
	case PaymentStateCaptured:
		return 3
	case PaymentStateRefunded, PaymentStateCancelled:
		return 4
	default:
		return 0
	}
}

// CallbackInfo is the authoritative payment fact extracted from one verified
// inbound callback. It is produced once and never mutated.
type CallbackInfo struct {
	Amount        decimal.Decimal
	TransactionID string
	PaymentState  PaymentState
	CardType      string
	CardMask      string
}

// ApiInfo is the result of a synchronous gateway API call (status, capture,
// refund, cancel).
type ApiInfo struct {
	TransactionID string
	PaymentState  PaymentState
}
