package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/notepane/internal/models"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "note.saved", Data: map[string]string{"id": "a"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: note.saved") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"a"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func countPrefix(msgs []string, event string) int {
	n := 0
	for _, m := range msgs {
		if strings.HasPrefix(m, "event: "+event+"\n") {
			n++
		}
	}
	return n
}

func TestPublishState_NotesChangedOnlyWhenListDiffers(t *testing.T) {
	b := NewBroker(time.Nanosecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st := models.State{Notes: []models.Note{{ID: "1", Title: "A", UpdatedAt: ts}}}
	b.PublishState(st)
	time.Sleep(5 * time.Millisecond)

	// Selection changes alone keep the list fingerprint.
	st.SelectedID = "1"
	b.PublishState(st)

	msgs := drain(ch)
	if got := countPrefix(msgs, EventStateChanged); got != 2 {
		t.Errorf("state events = %d, want 2", got)
	}
	if got := countPrefix(msgs, EventNotesChanged); got != 1 {
		t.Errorf("notes events = %d, want 1", got)
	}
	if len(msgs) == 0 || !strings.Contains(msgs[len(msgs)-1], `"selected_id":"1"`) {
		t.Errorf("state payload missing selection: %q", msgs)
	}

	st.Notes = append(st.Notes, models.Note{ID: "2", UpdatedAt: ts.Add(-time.Hour)})
	b.PublishState(st)
	msgs = drain(ch)
	if got := countPrefix(msgs, EventNotesChanged); got != 1 {
		t.Errorf("notes events after change = %d, want 1", got)
	}
	for _, m := range msgs {
		if strings.HasPrefix(m, "event: "+EventNotesChanged) && !strings.Contains(m, `"count":2`) {
			t.Errorf("notes payload = %q", m)
		}
	}
}

func TestPublishState_NotesChangedThrottled(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.PublishState(models.State{Notes: []models.Note{{ID: "1", UpdatedAt: ts}}})
	b.PublishState(models.State{Notes: []models.Note{{ID: "2", UpdatedAt: ts}}})

	msgs := drain(ch)
	if got := countPrefix(msgs, EventStateChanged); got != 2 {
		t.Errorf("state events = %d, want 2", got)
	}
	if got := countPrefix(msgs, EventNotesChanged); got != 1 {
		t.Errorf("notes events = %d, want 1 (throttled)", got)
	}
}

func TestPublishState_ThrottledChangeFlushedAfterWindow(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := []models.Note{{ID: "2", UpdatedAt: ts}, {ID: "1", UpdatedAt: ts}}
	b.PublishState(models.State{Notes: []models.Note{{ID: "1", UpdatedAt: ts}}})
	b.PublishState(models.State{Notes: second})

	// No further state arrives; the pending change must still go out.
	time.Sleep(250 * time.Millisecond)
	msgs := drain(ch)
	if got := countPrefix(msgs, EventNotesChanged); got != 2 {
		t.Fatalf("notes events = %d, want 2 (leading + trailing)", got)
	}
	last := msgs[len(msgs)-1]
	if !strings.HasPrefix(last, "event: "+EventNotesChanged) || !strings.Contains(last, `"count":2`) {
		t.Errorf("trailing event = %q", last)
	}
}

func TestPublishState_PendingDroppedWhenListReverts(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first := models.State{Notes: []models.Note{{ID: "1", UpdatedAt: ts}}}
	b.PublishState(first)
	b.PublishState(models.State{Notes: []models.Note{}})
	b.PublishState(first)

	time.Sleep(250 * time.Millisecond)
	if got := countPrefix(drain(ch), EventNotesChanged); got != 1 {
		t.Errorf("notes events = %d, want 1", got)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishState(models.State{Notes: []models.Note{}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: state.changed") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "note.saved", Data: map[string]string{"id": "x"}})
	b.PublishState(models.State{})
}
