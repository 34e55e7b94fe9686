package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/chatdeck/chatdeck/internal/store"
	"go.uber.org/zap"
)

// RosterEntry is one aggregated contact row for the contact list.
type RosterEntry struct {
	Contact store.Contact
	Preview string
	// Unread is only meaningful when UnreadKnown is true. A failed
	// per-contact lookup leaves the flag unknown and consumers must keep
	// whatever they already display.
	Unread      bool
	UnreadKnown bool
}

// Service produces reconciled threads and the aggregated contact roster.
type Service struct {
	db        *store.DB
	logger    *zap.Logger
	pageSize  int
	freshness time.Duration
}

// NewService creates a timeline service. Zero pageSize and freshness fall
// back to the defaults.
func NewService(db *store.DB, logger *zap.Logger, pageSize int, freshness time.Duration) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &Service{db: db, logger: logger, pageSize: pageSize, freshness: freshness}
}

// Thread returns the reconciled message timeline for one contact, ascending
// by effective timestamp, plus the more-available flag. A contact with no
// messages yields an empty thread and no error.
func (s *Service) Thread(c *store.Contact) ([]store.Message, bool, error) {
	byContact, err := s.db.MessagesByContact(c.ID, s.pageSize)
	if err != nil {
		return nil, false, fmt.Errorf("messages by contact: %w", err)
	}
	byPhone, err := s.db.MessagesByPhone(c.Phone, s.pageSize)
	if err != nil {
		return nil, false, fmt.Errorf("messages by phone: %w", err)
	}
	msgs, hasMore := Reconcile(byContact, byPhone, s.pageSize)
	return msgs, hasMore, nil
}

// Roster aggregates all active contacts into list entries. Contacts whose
// cached preview is fresh skip the per-contact latest-message lookup; stale
// ones are refreshed and the cache written back. The result is ordered by
// last-message timestamp descending, contacts without messages last.
func (s *Service) Roster(now time.Time) ([]RosterEntry, error) {
	contacts, err := s.db.ListActiveContacts()
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	entries := make([]RosterEntry, 0, len(contacts))
	for _, c := range contacts {
		entry := RosterEntry{Contact: c, Preview: c.LastMessagePreview}
		if IsFresh(&c, now, s.freshness) {
			// The cached preview is trusted, but the unread flag cannot be
			// cached: a mark-read must show up on the next load. The indexed
			// existence check is cheap enough to run every cycle.
			s.lookupUnread(&entry)
		} else {
			s.refreshEntry(&entry)
		}
		entries = append(entries, entry)
	}

	// Refreshes may reorder; cached ordering from the store is not enough.
	sortRoster(entries)
	return entries, nil
}

// lookupUnread fills the unread flag from the unread index. A lookup error
// leaves the flag unknown; consumers keep what they already display.
func (s *Service) lookupUnread(entry *RosterEntry) {
	unread, err := s.db.HasUnreadInbound(entry.Contact.ID)
	if err != nil {
		s.logger.Warn("unread lookup failed", zap.String("contact_id", entry.Contact.ID), zap.Error(err))
		return
	}
	entry.Unread = unread
	entry.UnreadKnown = true
}

// refreshEntry performs the per-contact lookup, updates the entry in place
// and writes the refreshed preview back to the contact cache. Lookup errors
// leave the cached fields in place; the next cycle retries.
func (s *Service) refreshEntry(entry *RosterEntry) {
	c := &entry.Contact
	latest, err := s.db.LatestMessage(c.ID, c.Phone)
	if err != nil {
		s.logger.Warn("roster refresh failed", zap.String("contact_id", c.ID), zap.Error(err))
		return
	}
	if latest == nil {
		entry.Unread = false
		entry.UnreadKnown = true
		return
	}

	entry.Preview = Preview(latest)
	entry.Unread = Unread(latest)
	entry.UnreadKnown = true
	c.LastMessageAt = EffectiveTimestamp(latest)
	c.LastMessagePreview = entry.Preview

	if err := s.db.UpdateContactCache(c.ID, c.LastMessageAt, entry.Preview); err != nil {
		s.logger.Warn("contact cache write-back failed", zap.String("contact_id", c.ID), zap.Error(err))
	}
}

// MarkRead stamps read state on every unread inbound message of a contact in
// one batch. Idempotent: a repeat call matches zero rows.
func (s *Service) MarkRead(contactID string) (int64, error) {
	return s.db.MarkInboundRead(contactID, time.Now().UnixMilli())
}

func sortRoster(entries []RosterEntry) {
	// Stable: equal timestamps and the zero-timestamp tail keep their order.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Contact.LastMessageAt > entries[j].Contact.LastMessageAt
	})
}
