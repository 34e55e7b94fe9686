package store

import (
	"database/sql"
	"fmt"
	"time"
)

// effectiveTS orders messages by sent_at when the workflow engine recorded
// one, falling back to created_at for rows written before delivery.
const effectiveTS = "CASE WHEN sent_at > 0 THEN sent_at ELSE created_at END"

const messageColumns = `id, provider_msg_id, from_number, to_number, direction, type, body,
	media_url, button_text, status, sent_at, delivered_at, read_at, failed_at,
	contact_id, created_at, updated_at`

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ProviderMsgID, &m.FromNumber, &m.ToNumber, &m.Direction,
		&m.Type, &m.Body, &m.MediaURL, &m.ButtonText, &m.Status,
		&m.SentAt, &m.DeliveredAt, &m.ReadAt, &m.FailedAt,
		&m.ContactID, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (db *DB) queryMessages(query string, args ...any) ([]Message, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MessagesByContact returns messages owned by a contact id, newest first,
// capped at limit.
func (db *DB) MessagesByContact(contactID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	return db.queryMessages(fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE contact_id = ?
		ORDER BY %s DESC
		LIMIT ?`, messageColumns, effectiveTS), contactID, limit)
}

// MessagesByPhone returns messages addressed to or from a raw phone number,
// newest first, capped at limit. This is the second address space: rows the
// workflow engine recorded without a contact reference.
func (db *DB) MessagesByPhone(phone string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	return db.queryMessages(fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE from_number = ? OR to_number = ?
		ORDER BY %s DESC
		LIMIT ?`, messageColumns, effectiveTS), phone, phone, limit)
}

// LatestMessage returns the newest message across both address spaces for a
// contact, or nil when the contact has no messages.
func (db *DB) LatestMessage(contactID, phone string) (*Message, error) {
	row := db.QueryRow(fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE contact_id = ? OR from_number = ? OR to_number = ?
		ORDER BY %s DESC
		LIMIT 1`, messageColumns, effectiveTS), contactID, phone, phone)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMessage inserts a new message row.
func (db *DB) InsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	if m.CreatedAt == 0 {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	_, err := db.Exec(`
		INSERT INTO messages (id, provider_msg_id, from_number, to_number, direction, type, body,
			media_url, button_text, status, sent_at, delivered_at, read_at, failed_at,
			contact_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProviderMsgID, m.FromNumber, m.ToNumber, m.Direction, m.Type, m.Body,
		m.MediaURL, m.ButtonText, m.Status, m.SentAt, m.DeliveredAt, m.ReadAt, m.FailedAt,
		m.ContactID, m.CreatedAt, m.UpdatedAt)
	return err
}

// UpsertByProviderID inserts a message or, when a row with the same provider
// message id already exists, updates its delivery fields. Idempotent against
// repeated workflow write-backs.
func (db *DB) UpsertByProviderID(m *Message) (inserted bool, err error) {
	if m.ProviderMsgID == "" {
		return true, db.InsertMessage(m)
	}

	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		UPDATE messages SET
			status = ?,
			sent_at = CASE WHEN ? > 0 THEN ? ELSE sent_at END,
			delivered_at = CASE WHEN ? > 0 THEN ? ELSE delivered_at END,
			read_at = CASE WHEN ? > 0 THEN ? ELSE read_at END,
			failed_at = CASE WHEN ? > 0 THEN ? ELSE failed_at END,
			updated_at = ?
		WHERE provider_msg_id = ?`,
		m.Status, m.SentAt, m.SentAt, m.DeliveredAt, m.DeliveredAt,
		m.ReadAt, m.ReadAt, m.FailedAt, m.FailedAt, now, m.ProviderMsgID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return false, nil
	}
	return true, db.InsertMessage(m)
}

// MarkInboundRead stamps read status on all unread inbound messages of a
// contact in one batch. Returns the number of rows updated; zero on a
// repeat call, which makes the transition idempotent.
func (db *DB) MarkInboundRead(contactID string, readAt int64) (int64, error) {
	res, err := db.Exec(`
		UPDATE messages SET status = ?, read_at = ?, updated_at = ?
		WHERE contact_id = ? AND direction = ? AND read_at = 0`,
		StatusRead, readAt, time.Now().UnixMilli(), contactID, DirectionInbound)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkMessageFailed flips a message to failed status with a failure stamp.
func (db *DB) MarkMessageFailed(id string, failedAt int64) error {
	_, err := db.Exec(`
		UPDATE messages SET status = ?, failed_at = ?, updated_at = ?
		WHERE id = ?`,
		StatusFailed, failedAt, time.Now().UnixMilli(), id)
	return err
}

// HasUnreadInbound reports whether a contact has any inbound message
// without a read timestamp. Served by the unread index, so it is cheap
// enough to run per contact on every roster load.
func (db *DB) HasUnreadInbound(contactID string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM messages
			WHERE contact_id = ? AND direction = ? AND read_at = 0
		)`, contactID, DirectionInbound).Scan(&exists)
	return exists, err
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
