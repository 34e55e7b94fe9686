package store

// Message direction values.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message delivery status values, as written back by the workflow engine.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// Contact represents a console contact. Contacts are created by the
// automation backend and never deleted here, only deactivated.
type Contact struct {
	ID                 string
	Phone              string
	Name               string
	Tags               string
	Notes              string
	LastMessageAt      int64 // unix ms, 0 = no cached message
	LastMessagePreview string
	InboundCount       int
	OutboundCount      int
	Active             bool
	CreatedAt          int64
	UpdatedAt          int64
}

// Message represents a single WhatsApp message row. Timestamps are unix
// milliseconds with 0 meaning absent. ContactID may be empty: the workflow
// engine sometimes records messages by raw phone number only.
type Message struct {
	ID            string
	ProviderMsgID string
	FromNumber    string
	ToNumber      string
	Direction     string
	Type          string // text, image, button, template, ...
	Body          string
	MediaURL      string
	ButtonText    string
	Status        string
	SentAt        int64
	DeliveredAt   int64
	ReadAt        int64
	FailedAt      int64
	ContactID     string
	CreatedAt     int64
	UpdatedAt     int64
}
