// Package filter computes status-filter membership for the contact roster:
// the set of contacts and raw phone numbers with at least one outbound
// message in a given delivery status, or any inbound message for "replied".
package filter

import (
	"fmt"

	"github.com/chatdeck/chatdeck/internal/store"
)

// Kind identifies a roster status filter.
type Kind string

const (
	All       Kind = "all"
	Failed    Kind = "failed"
	NotFailed Kind = "not_failed"
	Delivered Kind = "delivered"
	Read      Kind = "read"
	Replied   Kind = "replied"
)

// ParseKind validates a filter name from the API.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", All:
		return All, nil
	case Failed, NotFailed, Delivered, Read, Replied:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// Set is an ephemeral membership set for one filter kind. It is recomputed
// whenever the active filter changes and used only for membership tests.
type Set struct {
	kind       Kind
	contactIDs map[string]struct{}
	phones     map[string]struct{}
}

// Compute builds the membership set for a filter kind.
func Compute(db *store.DB, kind Kind) (*Set, error) {
	set := &Set{
		kind:       kind,
		contactIDs: make(map[string]struct{}),
		phones:     make(map[string]struct{}),
	}

	var members *store.FilterMembers
	var err error
	switch kind {
	case All:
		return set, nil
	case Failed, NotFailed:
		members, err = db.OutboundStatusMembers(store.StatusFailed)
	case Delivered:
		members, err = db.OutboundStatusMembers(store.StatusDelivered)
	case Read:
		members, err = db.OutboundStatusMembers(store.StatusRead)
	case Replied:
		members, err = db.RepliedMembers()
	default:
		return nil, fmt.Errorf("unknown filter %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("compute filter %s: %w", kind, err)
	}

	for _, id := range members.ContactIDs {
		set.contactIDs[id] = struct{}{}
	}
	for _, phone := range members.Phones {
		set.phones[phone] = struct{}{}
	}
	return set, nil
}

// Matches reports whether a contact passes the filter. Membership in either
// address space qualifies; not_failed is the negation of failed membership.
func (s *Set) Matches(c *store.Contact) bool {
	switch s.kind {
	case All:
		return true
	case NotFailed:
		return !s.contains(c)
	default:
		return s.contains(c)
	}
}

func (s *Set) contains(c *store.Contact) bool {
	if _, ok := s.contactIDs[c.ID]; ok {
		return true
	}
	_, ok := s.phones[c.Phone]
	return ok
}
