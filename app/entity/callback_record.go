package entity

import "time"

const (
	CallbackRecordProcessed int32 = 10
	CallbackRecordIgnored   int32 = 15
	CallbackRecordRejected  int32 = 20
)

// CallbackRecord is the audit row kept for every inbound webhook, trusted or
// not. Rejected rows keep the raw payload so replayed or forged callbacks can
// be inspected after the fact.
type CallbackRecord struct {
	ID uint64

	OrderID *uint64

	Gateway       string
	CartNumber    string
	CorrelationID string
	Signature     string
	PayloadJSON   string
	Status        int32
	Error         *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
