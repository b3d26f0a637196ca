package model

import "time"

// User carries the slice of the user profile this service owns: the mapping
// to the gateway-side customer object.
type User struct {
	ID                string // UUID
	Email             string
	GatewayCustomerID string // empty until first subscription attempt
	CreatedAt         time.Time
}
