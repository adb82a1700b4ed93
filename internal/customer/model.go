package customer

import "time"

// Customer represents a deposit account owner.
type Customer struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
}
