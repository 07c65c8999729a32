// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/jotter/internal/storage"
)

// Event represents an SSE event to broadcast. A non-empty Owner limits
// delivery to that owner's subscribers and unfiltered ones.
type Event struct {
	Type  string      `json:"type"`
	Owner string      `json:"-"`
	Data  interface{} `json:"data"`
}

// ItemData is the payload of checklist.* and note.* events.
type ItemData struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Owner    string `json:"owner"`
	Category string `json:"category"`
	ID       string `json:"id"`
	Archived bool   `json:"archived,omitempty"`
}

type itemEventReq struct {
	action string
	path   string
}

type subscribeReq struct {
	ch    chan []byte
	owner string
}

// IdentifyFunc names the subscriber behind an SSE request. An empty owner
// subscribes to every event.
type IdentifyFunc func(r *http.Request) (owner string)

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + per-owner links throttle timestamps). Public methods communicate
// with this loop through channels, so no mutexes are required.
type Broker struct {
	linksMin time.Duration
	identify IdentifyFunc

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	itemEventCh   chan itemEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given links.updated throttle
// interval.
func NewBroker(linksThrottle time.Duration) *Broker {
	if linksThrottle <= 0 {
		linksThrottle = 2 * time.Second
	}

	b := &Broker{
		linksMin:      linksThrottle,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		itemEventCh:   make(chan itemEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

// SetIdentify installs the function ServeHTTP uses to scope subscriptions.
// It must be called before the broker serves requests.
func (b *Broker) SetIdentify(fn IdentifyFunc) { b.identify = fn }

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastLinks := make(map[string]time.Time)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch, owner := range clients {
			if owner != "" && event.Owner != "" && owner != event.Owner {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case req := <-b.subscribeCh:
			clients[req.ch] = req.owner

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.itemEventCh:
			doc, err := storage.ParseDocPath(req.path)
			if err != nil {
				continue
			}
			switch req.action {
			case "created", "updated", "deleted":
			default:
				continue
			}
			broadcast(Event{
				Type:  string(doc.Kind) + "." + req.action,
				Owner: doc.Owner,
				Data: ItemData{
					Path:     req.path,
					Kind:     string(doc.Kind),
					Owner:    doc.Owner,
					Category: doc.Category,
					ID:       doc.ID,
					Archived: doc.Archived,
				},
			})

			now := time.Now()
			if now.Sub(lastLinks[doc.Owner]) >= b.linksMin {
				lastLinks[doc.Owner] = now
				broadcast(Event{Type: "links.updated", Owner: doc.Owner, Data: map[string]string{"owner": doc.Owner}})
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

// Subscribe adds a new client and returns its channel. A non-empty owner
// limits the client to that owner's events.
func (b *Broker) Subscribe(owner string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscribeReq{ch: ch, owner: owner}:
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

// Publish sends an event to all matching clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishItemEvent publishes a document change (action is created, updated
// or deleted) followed by a throttled links.updated for the document's owner.
// Paths outside the vault layout are dropped.
func (b *Broker) PublishItemEvent(action, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.itemEventCh <- itemEventReq{action: action, path: path}:
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

	var owner string
	if b.identify != nil {
		owner = b.identify(r)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(owner)
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
