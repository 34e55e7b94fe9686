package store

import (
	"database/sql"
	"fmt"
	"time"
)

const contactColumns = `id, phone, name, tags, notes, last_message_at, last_message_preview,
	inbound_count, outbound_count, active, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.Phone, &c.Name, &c.Tags, &c.Notes,
		&c.LastMessageAt, &c.LastMessagePreview,
		&c.InboundCount, &c.OutboundCount, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// UpsertContact inserts or updates a contact keyed by id. Name, tags and
// notes only overwrite when non-empty, mirroring how the automation backend
// fills contacts in incrementally.
func (db *DB) UpsertContact(c *Contact) error {
	now := time.Now().UnixMilli()
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	_, err := db.Exec(`
		INSERT INTO contacts (id, phone, name, tags, notes, last_message_at, last_message_preview,
			inbound_count, outbound_count, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phone = excluded.phone,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
			tags = CASE WHEN excluded.tags != '' THEN excluded.tags ELSE contacts.tags END,
			notes = CASE WHEN excluded.notes != '' THEN excluded.notes ELSE contacts.notes END,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		c.ID, c.Phone, c.Name, c.Tags, c.Notes, c.LastMessageAt, c.LastMessagePreview,
		c.InboundCount, c.OutboundCount, c.Active, c.CreatedAt, now)
	return err
}

// GetContact returns a contact by id, or nil when missing.
func (db *DB) GetContact(id string) (*Contact, error) {
	row := db.QueryRow(fmt.Sprintf(`SELECT %s FROM contacts WHERE id = ?`, contactColumns), id)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetContactByPhone returns a contact by phone number, or nil when missing.
func (db *DB) GetContactByPhone(phone string) (*Contact, error) {
	row := db.QueryRow(fmt.Sprintf(`SELECT %s FROM contacts WHERE phone = ?`, contactColumns), phone)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListActiveContacts returns all active contacts ordered by cached last
// message timestamp descending, contacts without messages last.
func (db *DB) ListActiveContacts() ([]Contact, error) {
	rows, err := db.Query(fmt.Sprintf(`
		SELECT %s FROM contacts
		WHERE active = 1
		ORDER BY last_message_at DESC, created_at ASC`, contactColumns))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// UpdateContactCache refreshes the cached last-message timestamp and preview.
// Newest wins: a write-back carrying an older timestamp than the current
// cache leaves the row untouched, so out-of-order delivery records cannot
// regress the roster preview.
func (db *DB) UpdateContactCache(id string, lastMessageAt int64, preview string) error {
	_, err := db.Exec(`
		UPDATE contacts SET
			last_message_preview = CASE WHEN ? >= last_message_at THEN ? ELSE last_message_preview END,
			last_message_at = CASE WHEN ? >= last_message_at THEN ? ELSE last_message_at END,
			updated_at = ?
		WHERE id = ?`,
		lastMessageAt, preview, lastMessageAt, lastMessageAt, time.Now().UnixMilli(), id)
	return err
}

// BumpContactCounter increments the inbound or outbound message counter.
func (db *DB) BumpContactCounter(id, direction string) error {
	column := "outbound_count"
	if direction == DirectionInbound {
		column = "inbound_count"
	}
	_, err := db.Exec(fmt.Sprintf(`
		UPDATE contacts SET %s = %s + 1, updated_at = ? WHERE id = ?`, column, column),
		time.Now().UnixMilli(), id)
	return err
}

// DeactivateContact marks a contact inactive. Contacts are never deleted.
func (db *DB) DeactivateContact(id string) error {
	_, err := db.Exec(`UPDATE contacts SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), id)
	return err
}

// ContactCount returns the total number of contacts.
func (db *DB) ContactCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&count)
	return count, err
}
