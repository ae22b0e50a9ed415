package stream

import (
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestEventEnvelopeRoundTrip(t *testing.T) {
	t.Parallel()

	ev, err := NewEvent("trip.assigned", "trip-service", map[string]string{"trip_id": "trip-1"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Fatalf("envelope missing id or timestamp: %+v", ev)
	}

	got := eventFromMessage(redis.XMessage{ID: "1-0", Values: stringify(eventValues(ev))})

	if got.ID != ev.ID || got.Type != ev.Type || got.Source != ev.Source {
		t.Errorf("envelope fields lost: %+v vs %+v", got, ev)
	}
	if !got.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("timestamp lost precision: %v vs %v", got.Timestamp, ev.Timestamp)
	}

	var payload map[string]string
	if err := json.Unmarshal(got.Data, &payload); err != nil {
		t.Fatalf("payload did not survive: %v", err)
	}
	if payload["trip_id"] != "trip-1" {
		t.Errorf("unexpected payload: %v", payload)
	}
}

func TestEventFromMessage_ToleratesMissingFields(t *testing.T) {
	t.Parallel()

	got := eventFromMessage(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"type": "init"}})
	if got.Type != EventTypeInit {
		t.Errorf("expected init type, got %q", got.Type)
	}
	if got.ID != "" || got.Source != "" {
		t.Errorf("missing fields should stay zero: %+v", got)
	}
}

// stringify mirrors how go-redis hands XMessage values back to the reader.
func stringify(values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		out[k] = v.(string)
	}
	return out
}
