package timeline

import (
	"strings"
	"testing"
	"time"

	"github.com/chatdeck/chatdeck/internal/store"
)

func msg(id string, sentAt, createdAt int64) store.Message {
	return store.Message{ID: id, Direction: store.DirectionInbound, SentAt: sentAt, CreatedAt: createdAt}
}

func TestEffectiveTimestampFallsBackToCreatedAt(t *testing.T) {
	m := msg("m", 0, 500)
	if got := EffectiveTimestamp(&m); got != 500 {
		t.Errorf("got %d, want created_at 500", got)
	}
	m.SentAt = 300
	if got := EffectiveTimestamp(&m); got != 300 {
		t.Errorf("got %d, want sent_at 300", got)
	}
}

func TestReconcileDedupsAndSortsAscending(t *testing.T) {
	byContact := []store.Message{msg("a", 3000, 0), msg("b", 1000, 0)}
	// "b" comes back through the phone path too, plus one phone-only row.
	byPhone := []store.Message{msg("c", 2000, 0), msg("b", 1000, 0)}

	got, hasMore := Reconcile(byContact, byPhone, 50)
	if hasMore {
		t.Error("hasMore = true, want false for partial pages")
	}
	want := []string{"b", "c", "a"}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestReconcileTiesAreStable(t *testing.T) {
	byContact := []store.Message{msg("x", 1000, 0), msg("y", 1000, 0)}
	byPhone := []store.Message{msg("z", 1000, 0)}

	got, _ := Reconcile(byContact, byPhone, 50)
	want := []string{"x", "y", "z"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d = %s, want %s (insertion order for ties)", i, got[i].ID, id)
		}
	}
}

func TestReconcileEmptyInputs(t *testing.T) {
	got, hasMore := Reconcile(nil, nil, 50)
	if len(got) != 0 || hasMore {
		t.Errorf("got %d messages hasMore=%v, want empty and false", len(got), hasMore)
	}
}

func TestReconcileHasMoreOnFullPage(t *testing.T) {
	var byContact []store.Message
	for i := 0; i < 3; i++ {
		byContact = append(byContact, msg(strings.Repeat("a", i+1), int64(i+1)*100, 0))
	}

	_, hasMore := Reconcile(byContact, nil, 3)
	if !hasMore {
		t.Error("a full contact page should flag more available")
	}

	_, hasMore = Reconcile(byContact[:2], nil, 3)
	if hasMore {
		t.Error("a partial page should not flag more available")
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("x", 60)
	tests := []struct {
		name string
		m    store.Message
		want string
	}{
		{"body", store.Message{Type: "text", Body: "hello"}, "hello"},
		{"button label wins", store.Message{Type: "button", Body: "fallback", ButtonText: "Confirm"}, "Confirm"},
		{"button without label uses body", store.Message{Type: "button", Body: "fallback"}, "fallback"},
		{"image", store.Message{Type: "image", MediaURL: "https://cdn/x.jpg"}, "[Image]"},
		{"media", store.Message{Type: "audio"}, "[Media]"},
		{"long body truncated", store.Message{Type: "text", Body: long}, long[:50] + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(&tt.m); got != tt.want {
				t.Errorf("Preview() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPreviewTruncationLength(t *testing.T) {
	got := Preview(&store.Message{Type: "text", Body: strings.Repeat("a", 60)})
	if len(got) != 53 {
		t.Errorf("truncated preview length = %d, want 53 (50 + ellipsis)", len(got))
	}

	short := strings.Repeat("a", 40)
	if got := Preview(&store.Message{Type: "text", Body: short}); got != short {
		t.Errorf("40-char body modified: %q", got)
	}

	exact := strings.Repeat("a", 50)
	if got := Preview(&store.Message{Type: "text", Body: exact}); got != exact {
		t.Errorf("50-char body modified: %q", got)
	}
}

func TestUnread(t *testing.T) {
	m := store.Message{Direction: store.DirectionInbound}
	if !Unread(&m) {
		t.Error("inbound without read_at should be unread")
	}
	m.ReadAt = 100
	if Unread(&m) {
		t.Error("read-stamped message should not be unread")
	}
	out := store.Message{Direction: store.DirectionOutbound}
	if Unread(&out) {
		t.Error("outbound message should never be unread")
	}
}

func TestIsFresh(t *testing.T) {
	now := time.Now()
	c := store.Contact{
		LastMessageAt:      now.Add(-30 * time.Minute).UnixMilli(),
		LastMessagePreview: "hi",
	}
	if !IsFresh(&c, now, time.Hour) {
		t.Error("30-minute-old cache should be fresh")
	}

	c.LastMessageAt = now.Add(-2 * time.Hour).UnixMilli()
	if IsFresh(&c, now, time.Hour) {
		t.Error("2-hour-old cache should be stale")
	}

	c.LastMessageAt = now.Add(-30 * time.Minute).UnixMilli()
	c.LastMessagePreview = ""
	if IsFresh(&c, now, time.Hour) {
		t.Error("cache without a preview is never fresh")
	}

	c.LastMessageAt = 0
	if IsFresh(&c, now, time.Hour) {
		t.Error("contact without messages is never fresh")
	}
}
