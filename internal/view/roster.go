// Package view holds the materialized console view-state: the contact
// roster and the open chat thread. Both merge two concurrently active
// update sources (periodic polling and pushed bus events) into one
// snapshot, guarded by generation counters so a superseded request can
// never overwrite state for a newer one.
package view

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chatdeck/chatdeck/internal/bus"
	"github.com/chatdeck/chatdeck/internal/filter"
	"github.com/chatdeck/chatdeck/internal/status"
	"github.com/chatdeck/chatdeck/internal/store"
	"github.com/chatdeck/chatdeck/internal/timeline"
	"go.uber.org/zap"
)

// DefaultPollInterval is the roster refresh cadence.
const DefaultPollInterval = 30 * time.Second

// Entry is one rendered contact row.
type Entry struct {
	Contact store.Contact
	Preview string
	Unread  bool
}

// RosterLoader aggregates the contact roster. Satisfied by timeline.Service.
type RosterLoader interface {
	Roster(now time.Time) ([]timeline.RosterEntry, error)
}

// Roster is the contact list view-state.
type Roster struct {
	svc     RosterLoader
	db      *store.DB
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger

	pollInterval time.Duration

	mu        sync.Mutex
	entries   []Entry
	search    string
	filterSet *filter.Set
	filterGen int

	cancel context.CancelFunc
	unsub  func()
}

// NewRoster creates the roster view-state. machine may be nil.
func NewRoster(svc RosterLoader, db *store.DB, b *bus.Bus, machine *status.Machine, logger *zap.Logger, pollInterval time.Duration) *Roster {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Roster{
		svc:          svc,
		db:           db,
		bus:          b,
		machine:      machine,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

// Start performs the initial blocking load, then begins polling and
// subscribes to message events. The initial load is the only call whose
// failure is surfaced; later cycles self-heal.
func (r *Roster) Start(ctx context.Context) error {
	if err := r.refresh(); err != nil {
		return err
	}
	if r.machine != nil {
		r.machine.ObserveCycle(nil)
	}

	ctx, r.cancel = context.WithCancel(ctx)
	ch, unsub := r.bus.Subscribe("message.", 256)
	r.unsub = unsub

	go func() {
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				err := r.refresh()
				if err != nil {
					r.logger.Warn("roster refresh skipped", zap.Error(err))
				}
				if r.machine != nil {
					r.machine.ObserveCycle(err)
				}
			case evt := <-ch:
				r.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop releases the poll timer and the bus subscription.
func (r *Roster) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
}

// refresh reloads the aggregated roster and merges it into the current
// entries. The merge is non-destructive: when the aggregation took the
// cached path and cannot tell whether a contact is unread, the flag already
// on screen is kept.
func (r *Roster) refresh() error {
	fresh, err := r.svc.Roster(time.Now())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := make(map[string]Entry, len(r.entries))
	for _, e := range r.entries {
		prev[e.Contact.ID] = e
	}

	entries := make([]Entry, 0, len(fresh))
	for _, agg := range fresh {
		e := Entry{Contact: agg.Contact, Preview: agg.Preview}
		if agg.UnreadKnown {
			e.Unread = agg.Unread
		} else if old, ok := prev[agg.Contact.ID]; ok {
			e.Unread = old.Unread
		}
		entries = append(entries, e)
	}
	r.entries = entries
	return nil
}

// handleEvent merges one pushed message event into the roster without a
// full reload.
func (r *Roster) handleEvent(evt bus.Event) {
	msg, ok := evt.Payload.(*store.Message)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		e := &r.entries[i]
		if !messageBelongsTo(msg, &e.Contact) {
			continue
		}
		ts := timeline.EffectiveTimestamp(msg)
		if ts >= e.Contact.LastMessageAt {
			e.Contact.LastMessageAt = ts
			e.Preview = timeline.Preview(msg)
			e.Unread = timeline.Unread(msg)
		} else if evt.Kind == bus.KindMessageUpdated && msg.Direction == store.DirectionInbound && msg.ReadAt > 0 {
			// An older inbound message got read-stamped; the newest message
			// decides the flag, so only clear it when nothing newer is unread.
			e.Unread = false
		}
		sortEntries(r.entries)
		return
	}
}

// SetSearch updates the roster search string.
func (r *Roster) SetSearch(q string) {
	r.mu.Lock()
	r.search = strings.ToLower(strings.TrimSpace(q))
	r.mu.Unlock()
}

// SetFilter recomputes the status filter membership asynchronously.
// Last request wins: results from a superseded filter change are dropped.
func (r *Roster) SetFilter(kind filter.Kind) {
	r.mu.Lock()
	r.filterGen++
	gen := r.filterGen
	if kind == filter.All {
		r.filterSet = nil
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	go func() {
		set, err := filter.Compute(r.db, kind)
		if err != nil {
			r.logger.Warn("filter compute failed", zap.String("filter", string(kind)), zap.Error(err))
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if gen != r.filterGen {
			// A newer filter change superseded this one.
			return
		}
		r.filterSet = set
	}()
}

// Snapshot returns the filtered, searched roster rows.
func (r *Roster) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if r.filterSet != nil && !r.filterSet.Matches(&e.Contact) {
			continue
		}
		if r.search != "" && !MatchesSearch(&e.Contact, r.search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// MatchesSearch reports whether a contact matches a lowercased search term
// by name, phone or tags.
func MatchesSearch(c *store.Contact, q string) bool {
	return strings.Contains(strings.ToLower(c.Name), q) ||
		strings.Contains(c.Phone, q) ||
		strings.Contains(strings.ToLower(c.Tags), q)
}

func messageBelongsTo(m *store.Message, c *store.Contact) bool {
	if m.ContactID != "" && m.ContactID == c.ID {
		return true
	}
	return c.Phone != "" && (m.FromNumber == c.Phone || m.ToNumber == c.Phone)
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Contact.LastMessageAt > entries[j].Contact.LastMessageAt
	})
}
