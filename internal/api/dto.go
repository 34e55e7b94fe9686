package api

import (
	"github.com/chatdeck/chatdeck/internal/store"
	"github.com/chatdeck/chatdeck/internal/view"
)

// ContactDTO is the wire shape of a roster row.
type ContactDTO struct {
	ID            string `json:"id"`
	Phone         string `json:"phone"`
	Name          string `json:"name,omitempty"`
	Tags          string `json:"tags,omitempty"`
	Notes         string `json:"notes,omitempty"`
	LastMessageAt int64  `json:"last_message_at_unix_ms,omitempty"`
	Preview       string `json:"preview,omitempty"`
	InboundCount  int    `json:"inbound_count"`
	OutboundCount int    `json:"outbound_count"`
	Unread        bool   `json:"unread"`
}

// MessageDTO is the wire shape of a thread message.
type MessageDTO struct {
	ID            string `json:"id"`
	ProviderMsgID string `json:"provider_msg_id,omitempty"`
	FromNumber    string `json:"from"`
	ToNumber      string `json:"to"`
	Direction     string `json:"direction"`
	Type          string `json:"type"`
	Body          string `json:"body,omitempty"`
	MediaURL      string `json:"media_url,omitempty"`
	ButtonText    string `json:"button_text,omitempty"`
	Status        string `json:"status"`
	SentAt        int64  `json:"sent_at_unix_ms,omitempty"`
	DeliveredAt   int64  `json:"delivered_at_unix_ms,omitempty"`
	ReadAt        int64  `json:"read_at_unix_ms,omitempty"`
	FailedAt      int64  `json:"failed_at_unix_ms,omitempty"`
	ContactID     string `json:"contact_id,omitempty"`
	CreatedAt     int64  `json:"created_at_unix_ms"`
}

func entryDTO(e *view.Entry) ContactDTO {
	return ContactDTO{
		ID:            e.Contact.ID,
		Phone:         e.Contact.Phone,
		Name:          e.Contact.Name,
		Tags:          e.Contact.Tags,
		Notes:         e.Contact.Notes,
		LastMessageAt: e.Contact.LastMessageAt,
		Preview:       e.Preview,
		InboundCount:  e.Contact.InboundCount,
		OutboundCount: e.Contact.OutboundCount,
		Unread:        e.Unread,
	}
}

func messageDTO(m *store.Message) MessageDTO {
	return MessageDTO{
		ID:            m.ID,
		ProviderMsgID: m.ProviderMsgID,
		FromNumber:    m.FromNumber,
		ToNumber:      m.ToNumber,
		Direction:     m.Direction,
		Type:          m.Type,
		Body:          m.Body,
		MediaURL:      m.MediaURL,
		ButtonText:    m.ButtonText,
		Status:        m.Status,
		SentAt:        m.SentAt,
		DeliveredAt:   m.DeliveredAt,
		ReadAt:        m.ReadAt,
		FailedAt:      m.FailedAt,
		ContactID:     m.ContactID,
		CreatedAt:     m.CreatedAt,
	}
}

func messageDTOs(msgs []store.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(msgs))
	for i := range msgs {
		out = append(out, messageDTO(&msgs[i]))
	}
	return out
}

func entryDTOs(entries []view.Entry) []ContactDTO {
	out := make([]ContactDTO, 0, len(entries))
	for i := range entries {
		out = append(out, entryDTO(&entries[i]))
	}
	return out
}
