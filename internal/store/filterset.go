package store

// FilterMembers holds the distinct contact ids and raw phone numbers that
// match a status predicate. Both address spaces qualify a contact.
type FilterMembers struct {
	ContactIDs []string
	Phones     []string
}

func (db *DB) filterMembers(idQuery, phoneQuery string, args ...any) (*FilterMembers, error) {
	members := &FilterMembers{}

	rows, err := db.Query(idQuery, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members.ContactIDs = append(members.ContactIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	phoneRows, err := db.Query(phoneQuery, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = phoneRows.Close() }()
	for phoneRows.Next() {
		var phone string
		if err := phoneRows.Scan(&phone); err != nil {
			return nil, err
		}
		members.Phones = append(members.Phones, phone)
	}
	return members, phoneRows.Err()
}

// OutboundStatusMembers returns contacts and phone numbers with at least one
// outbound message in the given delivery status.
func (db *DB) OutboundStatusMembers(status string) (*FilterMembers, error) {
	return db.filterMembers(`
		SELECT DISTINCT contact_id FROM messages
		WHERE direction = ? AND status = ? AND contact_id != ''`, `
		SELECT DISTINCT to_number FROM messages
		WHERE direction = ? AND status = ? AND to_number != ''`,
		DirectionOutbound, status)
}

// RepliedMembers returns contacts and phone numbers with at least one
// inbound message, regardless of status.
func (db *DB) RepliedMembers() (*FilterMembers, error) {
	return db.filterMembers(`
		SELECT DISTINCT contact_id FROM messages
		WHERE direction = ? AND contact_id != ''`, `
		SELECT DISTINCT from_number FROM messages
		WHERE direction = ? AND from_number != ''`,
		DirectionInbound)
}
