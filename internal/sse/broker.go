// Package sse implements a Server-Sent Events broker for selection, highlight,
// visibility and catalogue updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Event types published by seqsync. The part before the first dot is the
// event family, which clients may subscribe to as a whole.
const (
	TypeSelectionChanged  = "selection.changed"
	TypeHighlightsChanged = "highlights.changed"
	TypeHoverChanged      = "hover.changed"
	TypeVisibilityResult  = "visibility.result"
	TypeStructureLoaded   = "structure.loaded"
	TypeStructureCreated  = "structure.created"
	TypeStructureUpdated  = "structure.updated"
	TypeStructureDeleted  = "structure.deleted"
	TypeCatalogUpdated    = "catalog.updated"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Publisher is the sending half of the broker.
type Publisher interface {
	Publish(event Event)
}

// Filter selects event types by exact name or by family. A nil Filter
// accepts everything.
type Filter map[string]struct{}

// NewFilter builds a filter from names such as "selection" or
// "visibility.result". No names gives a nil filter.
func NewFilter(names ...string) Filter {
	var f Filter
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if f == nil {
			f = Filter{}
		}
		f[n] = struct{}{}
	}
	return f
}

// Accepts reports whether typ passes the filter.
func (f Filter) Accepts(typ string) bool {
	if f == nil {
		return true
	}
	if _, ok := f[typ]; ok {
		return true
	}
	family, _, _ := strings.Cut(typ, ".")
	_, ok := f[family]
	return ok
}

type subscription struct {
	ch     chan []byte
	filter Filter
}

type structureEventReq struct {
	kind string
	path string
}

const (
	// keepAlive is the interval of comment lines sent to idle clients.
	keepAlive = 15 * time.Second
	// retryMillis is the reconnect delay suggested to EventSource clients.
	retryMillis  = 3000
	clientBuffer = 64
)

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop owns the client set, the event id counter and the
// catalog throttle. Public methods talk to it over channels.
type Broker struct {
	catalogMin time.Duration

	subscribeCh      chan subscription
	unsubscribeCh    chan chan []byte
	publishCh        chan Event
	structureEventCh chan structureEventReq
	countReqCh       chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

var _ Publisher = (*Broker)(nil)

// NewBroker creates a broker. catalog.updated is sent at most once per
// catalogThrottle however many manifests change.
func NewBroker(catalogThrottle time.Duration) *Broker {
	if catalogThrottle <= 0 {
		catalogThrottle = 2 * time.Second
	}

	b := &Broker{
		catalogMin:       catalogThrottle,
		subscribeCh:      make(chan subscription),
		unsubscribeCh:    make(chan chan []byte),
		publishCh:        make(chan Event, 256),
		structureEventCh: make(chan structureEventReq, 256),
		countReqCh:       make(chan chan int),
		stopCh:           make(chan struct{}),
		stopped:          make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]Filter)
	var (
		lastCatalog time.Time
		seq         uint64
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		for ch, filter := range clients {
			if !filter.Accepts(event.Type) {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
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

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.filter

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.structureEventCh:
			typ := "structure." + req.kind
			switch typ {
			case TypeStructureCreated, TypeStructureUpdated, TypeStructureDeleted:
				broadcast(Event{Type: typ, Data: map[string]string{"path": req.path}})
			default:
				continue
			}

			if now := time.Now(); now.Sub(lastCatalog) >= b.catalogMin {
				lastCatalog = now
				broadcast(Event{Type: TypeCatalogUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the event loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client receiving the events accepted by filter.
func (b *Broker) Subscribe(filter Filter) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, filter: filter}:
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

// Publish sends an event to every client whose filter accepts it.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishStructureEvent publishes a manifest change (kind is created, updated
// or deleted) and a throttled catalog.updated event. Other kinds are dropped.
func (b *Broker) PublishStructureEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.structureEventCh <- structureEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional
// "types" query parameter is a comma-separated Filter.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var filter Filter
	if types := r.URL.Query().Get("types"); types != "" {
		filter = NewFilter(strings.Split(types, ",")...)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	flusher.Flush()

	ch := b.Subscribe(filter)
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
