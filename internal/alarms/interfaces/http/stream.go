package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	alarmapp "alarm-dashboard/internal/alarms/application"
	"alarm-dashboard/internal/observability/metrics"
)

const (
	EventSnapshot = "snapshot"
	EventAlarm    = "alarm"
)

// Message is one push payload.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Broker fans out snapshots and alarm events to connected clients.
type Broker struct {
	mu      sync.Mutex
	clients map[chan Message]struct{}
}

// NewBroker constructs a broker.
func NewBroker() *Broker {
	return &Broker{clients: make(map[chan Message]struct{})}
}

// Notify implements AlarmNotifier.
func (b *Broker) Notify(_ context.Context, event alarmapp.AlarmEvent) {
	b.publish(EventAlarm, event)
}

// PublishSnapshot implements SnapshotPublisher.
func (b *Broker) PublishSnapshot(_ context.Context, snapshot alarmapp.Snapshot) {
	b.publish(EventSnapshot, snapshot)
}

func (b *Broker) publish(event string, value any) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	b.broadcast(Message{Event: event, Data: payload})
}

// Subscribe registers a new client channel.
func (b *Broker) Subscribe() chan Message {
	if b == nil {
		return nil
	}
	ch := make(chan Message, 16)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	metrics.AddDashboardSubscribers(1)
	return ch
}

// Unsubscribe removes a client channel.
func (b *Broker) Unsubscribe(ch chan Message) {
	if b == nil || ch == nil {
		return
	}
	b.mu.Lock()
	if _, ok := b.clients[ch]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
	metrics.AddDashboardSubscribers(-1)
}

// Subscribers returns the number of connected clients.
func (b *Broker) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// broadcast drops the message for clients whose buffer is full.
func (b *Broker) broadcast(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// SnapshotSource provides the current snapshot to new subscribers.
type SnapshotSource interface {
	Snapshot() alarmapp.Snapshot
}

// StreamHandler serves the SSE dashboard stream.
type StreamHandler struct {
	broker *Broker
	source SnapshotSource
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(broker *Broker, source SnapshotSource) *StreamHandler {
	return &StreamHandler{broker: broker, source: source}
}

// ServeHTTP handles GET /api/v1/dashboard/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	ch := h.broker.Subscribe()
	if ch == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	if h.source != nil {
		if snapshot := h.source.Snapshot(); snapshot.Ready() {
			if payload, err := json.Marshal(snapshot); err == nil {
				writeEvent(w, EventSnapshot, payload)
			}
		}
	}
	flusher.Flush()

	notify := r.Context().Done()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, msg.Event, msg.Data)
			flusher.Flush()
		case <-notify:
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, payload []byte) {
	_, _ = w.Write([]byte("event: " + event + "\n"))
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n\n"))
}
