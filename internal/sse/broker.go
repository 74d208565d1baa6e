// Package sse implements a Server-Sent Events broker that fans controller
// state out to browser clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/notepane/internal/checksum"
	"github.com/starford/notepane/internal/models"
)

// Event types emitted by the broker.
const (
	EventStateChanged = "state.changed"
	EventNotesChanged = "notes.changed"
	EventReady        = "ready"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NotesChanged is the payload of a notes.changed event.
type NotesChanged struct {
	Count    int    `json:"count"`
	Checksum string `json:"checksum"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients, last note fingerprint, throttle state). Public methods
// communicate with this loop through channels, so no mutexes are required.
type Broker struct {
	notesMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	stateCh       chan models.State
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. notesThrottle bounds how often
// notes.changed is emitted.
func NewBroker(notesThrottle time.Duration) *Broker {
	if notesThrottle <= 0 {
		notesThrottle = 2 * time.Second
	}

	b := &Broker{
		notesMin:      notesThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		stateCh:       make(chan models.State, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		lastNotes time.Time
		lastSum   string
		pending   *NotesChanged
		flush     <-chan time.Time
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	emitNotes := func(nc NotesChanged) {
		lastNotes = time.Now()
		lastSum = nc.Checksum
		pending = nil
		flush = nil
		broadcast(Event{Type: EventNotesChanged, Data: nc})
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case st := <-b.stateCh:
			broadcast(Event{Type: EventStateChanged, Data: st})

			sum := checksum.Notes(st.Notes)
			if sum == lastSum {
				pending = nil
				continue
			}
			nc := NotesChanged{Count: len(st.Notes), Checksum: sum}
			// Inside the throttle window the latest change waits for the trailing flush.
			if wait := b.notesMin - time.Since(lastNotes); wait > 0 {
				pending = &nc
				if flush == nil {
					flush = time.After(wait)
				}
				continue
			}
			emitNotes(nc)

		case <-flush:
			flush = nil
			if pending != nil {
				emitNotes(*pending)
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishState broadcasts a controller snapshot as state.changed, followed by
// a throttled notes.changed when the note list differs from the last one sent.
// A change that lands inside the throttle window is sent when the window ends.
// Its signature matches notes.Controller.Subscribe.
func (b *Broker) PublishState(st models.State) {
	if b.closed.Load() {
		return
	}
	select {
	case b.stateCh <- st:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
