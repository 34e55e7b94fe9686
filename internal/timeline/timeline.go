// Package timeline reconciles message rows fetched through two address
// spaces (owning contact id and raw phone number) into a single ordered,
// deduplicated thread, and derives the roster presentation fields.
package timeline

import (
	"sort"
	"time"

	"github.com/chatdeck/chatdeck/internal/store"
)

// DefaultPageSize is the per-thread fetch ceiling.
const DefaultPageSize = 50

// DefaultFreshness is the window inside which a contact's cached preview is
// trusted without a per-contact lookup.
const DefaultFreshness = time.Hour

const previewMax = 50

// EffectiveTimestamp returns the sort key for a message: sent_at when the
// workflow engine recorded one, created_at otherwise.
func EffectiveTimestamp(m *store.Message) int64 {
	if m.SentAt > 0 {
		return m.SentAt
	}
	return m.CreatedAt
}

// Reconcile merges the two query results into one chronological thread.
// Duplicates (the same row returned by both predicates) are kept once, first
// occurrence wins. The sort is stable, so ties keep their insertion order.
// hasMore is a heuristic: a full page from either fetch means more rows
// probably exist.
func Reconcile(byContact, byPhone []store.Message, limit int) (msgs []store.Message, hasMore bool) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	seen := make(map[string]struct{}, len(byContact)+len(byPhone))
	for _, m := range byContact {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		msgs = append(msgs, m)
	}
	for _, m := range byPhone {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		msgs = append(msgs, m)
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return EffectiveTimestamp(&msgs[i]) < EffectiveTimestamp(&msgs[j])
	})

	hasMore = len(byContact) >= limit || len(byPhone) >= limit
	return msgs, hasMore
}

// Preview derives the roster preview text for a message.
func Preview(m *store.Message) string {
	switch {
	case m.Type == "button" && m.ButtonText != "":
		return truncate(m.ButtonText)
	case m.Body != "":
		return truncate(m.Body)
	case m.MediaURL != "":
		return "[Image]"
	default:
		return "[Media]"
	}
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= previewMax {
		return s
	}
	return string(runes[:previewMax]) + "..."
}

// Unread reports whether a message counts as unread inbound.
func Unread(m *store.Message) bool {
	return m.Direction == store.DirectionInbound && m.ReadAt == 0
}

// IsFresh is the cache staleness policy: a contact's cached preview is
// trusted when it exists and its timestamp is inside the freshness window.
func IsFresh(c *store.Contact, now time.Time, window time.Duration) bool {
	if c.LastMessageAt == 0 || c.LastMessagePreview == "" {
		return false
	}
	return now.UnixMilli()-c.LastMessageAt <= window.Milliseconds()
}
