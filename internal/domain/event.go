package domain

import (
	"encoding/json"
	"time"
)

// Notification event types.
const (
	EventConnected       = "connected"
	EventScrapingStarted = "scraping_started"
	EventDataScraped     = "data_scraped"
	EventAnalysisStarted = "analysis_started"
	EventNewAnalysis     = "new_analysis"
)

// NotificationEvent is an ephemeral pipeline lifecycle event. It is never
// persisted and carries no delivery guarantee.
type NotificationEvent struct {
	Type      string
	Message   string
	Timestamp time.Time
	Data      map[string]any
}

// NewNotificationEvent stamps an event with the current UTC time.
func NewNotificationEvent(eventType, message string, data map[string]any) NotificationEvent {
	return NotificationEvent{
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// MarshalJSON flattens Data next to type, message and timestamp, which is the
// shape the dashboard consumes. The three reserved keys cannot be overridden.
func (e NotificationEvent) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Data)+3)
	for k, v := range e.Data {
		out[k] = v
	}
	out["type"] = e.Type
	out["message"] = e.Message
	out["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON: every non-reserved key lands in Data.
func (e *NotificationEvent) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = NotificationEvent{}
	if v, ok := raw["type"].(string); ok {
		e.Type = v
	}
	if v, ok := raw["message"].(string); ok {
		e.Message = v
	}
	if v, ok := raw["timestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			e.Timestamp = ts
		}
	}
	delete(raw, "type")
	delete(raw, "message")
	delete(raw, "timestamp")
	if len(raw) > 0 {
		e.Data = raw
	}
	return nil
}
