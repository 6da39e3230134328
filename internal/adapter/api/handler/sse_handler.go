package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/V4T54L/safewatch/internal/adapter/metrics"
	"github.com/V4T54L/safewatch/internal/domain"
)

const (
	defaultSubscriberBuffer = 64
	defaultHeartbeat        = 25 * time.Second
)

// SSEBroker is the registry of live dashboard subscribers. Events published
// to it go to every subscriber connected at that moment; nothing is stored
// or replayed.
type SSEBroker struct {
	logger    *slog.Logger
	metrics   *metrics.NotifierMetrics
	buffer    int
	heartbeat time.Duration

	mu      sync.RWMutex
	clients map[chan domain.NotificationEvent]struct{}
	closed  bool
}

// NewSSEBroker creates a new SSEBroker. buffer is the per-subscriber queue
// length; a subscriber whose queue is full misses the event. m may be nil.
func NewSSEBroker(logger *slog.Logger, buffer int, m *metrics.NotifierMetrics) *SSEBroker {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &SSEBroker{
		logger:    logger.With("component", "sse_broker"),
		metrics:   m,
		buffer:    buffer,
		heartbeat: defaultHeartbeat,
		clients:   make(map[chan domain.NotificationEvent]struct{}),
	}
}

// Subscribe registers a new subscriber. The returned func unregisters it and
// is safe to call more than once.
func (b *SSEBroker) Subscribe() (<-chan domain.NotificationEvent, func()) {
	ch := make(chan domain.NotificationEvent, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.clients[ch] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.Subscribers.Set(float64(count))
	}
	b.logger.Info("SSE client connected", "subscribers", count)

	var once sync.Once
	return ch, func() { once.Do(func() { b.removeClient(ch) }) }
}

// Publish broadcasts the event. It never blocks on a slow subscriber and
// never fails.
func (b *SSEBroker) Publish(ctx context.Context, event domain.NotificationEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues(event.Type).Inc()
	}
	for client := range b.clients {
		select {
		case client <- event:
		default:
			// Slow subscriber; it misses this event.
			if b.metrics != nil {
				b.metrics.EventsDropped.Inc()
			}
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (b *SSEBroker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every subscriber. Later subscribers are closed at once.
func (b *SSEBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for client := range b.clients {
		delete(b.clients, client)
		close(client)
	}
	if b.metrics != nil {
		b.metrics.Subscribers.Set(0)
	}
}

func (b *SSEBroker) removeClient(client chan domain.NotificationEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
		if b.metrics != nil {
			b.metrics.Subscribers.Set(float64(len(b.clients)))
		}
		b.logger.Info("SSE client disconnected", "subscribers", len(b.clients))
	}
}

// ServeHTTP streams events to one client as server-sent events. The first
// message is always a connected acknowledgement.
func (b *SSEBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, unsubscribe := b.Subscribe()
	defer unsubscribe()

	hello := domain.NewNotificationEvent(domain.EventConnected, "Connected to notifications", nil)
	if err := writeEvent(w, hello); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(b.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return // Broker closed
			}
			if err := writeEvent(w, event); err != nil {
				b.logger.Debug("failed to write to SSE client, dropping", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event domain.NotificationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
