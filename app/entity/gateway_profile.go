package entity

import "time"

// GatewayProfile is the per-store configuration row for one gateway: a flat
// string-to-string settings mapping merged over the gateway's declared
// defaults at request time.
type GatewayProfile struct {
	ID uint64

	Gateway  string
	Enabled  bool
	Settings map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}
