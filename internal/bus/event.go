package bus

import "time"

// Event kinds published on the bus.
const (
	KindMessageInserted = "message.inserted"
	KindMessageUpdated  = "message.updated"
	KindContactUpdated  = "contact.updated"
	KindStatusChanged   = "console.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
