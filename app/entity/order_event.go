package entity

import "time"

type OrderEvent struct {
	ID uint64

	OrderID uint64

	EventType string

	OldState *int32
	NewState int32

	TransactionID *string
	PayloadJSON   *string

	CreatedAt time.Time
}
